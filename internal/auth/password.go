// Package auth hashes and verifies customer passwords.
package auth

import (
	"errors"
	"fmt"

	"github.com/dukerupert/harvest/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum acceptable password length
	MinPasswordLength = 8

	// MaxPasswordLength is bcrypt's input limit in bytes
	MaxPasswordLength = 72

	// bcryptCost is the cost factor for bcrypt hashing
	bcryptCost = 12
)

var (
	ErrPasswordTooShort = &domain.Error{Code: domain.EINVALID, Message: "Password must be at least 8 characters"}
	ErrPasswordTooLong  = &domain.Error{Code: domain.EINVALID, Message: "Password must be at most 72 bytes"}
	ErrPasswordMismatch = errors.New("password does not match")
)

// ValidatePassword checks the length limits enforced by HashPassword.
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword generates a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword checks if the provided password matches the hash
func VerifyPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}

// dummyHash is compared against when the account does not exist so unknown
// emails take as long to reject as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("harvest-timing-equalizer"), bcryptCost)

// BurnCompare performs a password comparison whose result is discarded.
func BurnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
