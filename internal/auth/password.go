package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// Operator password bounds. bcrypt only reads the first 72 bytes, so longer
// passwords are refused instead of being silently truncated.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// ErrInvalidCredentials reports a password that does not match its hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidatePassword applies the operator password policy.
func ValidatePassword(password string) error {
	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	case len(password) > MaxPasswordBytes:
		return domain.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

// HashPassword validates an operator password and hashes it with cost.
func HashPassword(password string, cost int) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword checks plain against a stored hash. A mismatch yields
// ErrInvalidCredentials; a corrupt hash yields a wrapped bcrypt error.
func VerifyPassword(hashed, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("verify password: %w", err)
	}
}
