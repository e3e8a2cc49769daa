package services

import (
	"errors"
	"fmt"
	"strings"

	"smiles/internal/auth"
	appErr "smiles/internal/errors"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const maxTokenAttempts = 10

var validate = validator.New()

// TokenSource draws the random values behind every link the app hands out
type TokenSource struct {
	// Hex draws dashboard, confirmation and creation tokens
	Hex func() (string, error)
	// Base62 draws message link tokens
	Base62 func() (string, error)
}

// DefaultTokenSource draws 32 hex character tokens and 8 character base62 message links
func DefaultTokenSource() TokenSource {
	return TokenSource{
		Hex: func() (string, error) {
			return auth.GenerateHexToken(auth.DashboardTokenBytes)
		},
		Base62: func() (string, error) {
			return auth.GenerateBase62(auth.MessageURLLength)
		},
	}
}

// uniqueToken draws values until one is not already stored in column, giving up after maxTokenAttempts
func uniqueToken(tx *gorm.DB, model interface{}, column string, draw func() (string, error)) (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := draw()
		if err != nil {
			return "", fmt.Errorf("failed to generate %s: %w", column, err)
		}

		var count int64
		if err := tx.Model(model).Where(column+" = ?", token).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check %s uniqueness: %w", column, err)
		}
		if count == 0 {
			return token, nil
		}
	}

	return "", appErr.Newf(appErr.ErrTokenExhausted, "could not generate a unique %s after %d attempts", column, maxTokenAttempts)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}
