package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// DashboardTokenBytes is the entropy of dashboard, confirmation and creation tokens (32 hex chars)
	DashboardTokenBytes = 16
	// MessageURLLength is the length of a message link token
	MessageURLLength = 8

	base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// GenerateHexToken creates a cryptographically secure hex string from nBytes random bytes
func GenerateHexToken(nBytes int) (string, error) {
	bytes := make([]byte, nBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateBase62 creates a cryptographically secure alphanumeric string of the given length
func GenerateBase62(length int) (string, error) {
	max := big.NewInt(int64(len(base62Alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = base62Alphabet[n.Int64()]
	}
	return string(out), nil
}
