package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost defines the bcrypt work factor.
const bcryptCost = 12

// minPasswordLength is the shortest operator password accepted.
const minPasswordLength = 8

// ErrWeakPassword indicates a password shorter than minPasswordLength.
var ErrWeakPassword = errors.New("password too short")

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
