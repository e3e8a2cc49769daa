package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrConflict          = errors.New("resource already exists")
	ErrDelivery          = errors.New("email delivery failed")
	ErrTokenExhausted    = errors.New("could not generate a unique token")
)

// Error pairs one of the sentinel kinds with copy that is safe to show a user
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(message string) error {
	return New(ErrValidation, message)
}

func NotFound(resource string) error {
	return New(ErrNotFound, resource+" not found")
}

func Conflict(message string) error {
	return New(ErrConflict, message)
}

func RateLimited(reason string) error {
	return New(ErrRateLimitExceeded, reason)
}

// Message returns the user-facing copy of err, or fallback when err carries none
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
