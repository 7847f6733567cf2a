package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by VerifyPassword when the plaintext does
// not match the stored hash.
var ErrPasswordMismatch = errors.New("password does not match")

// HashPassword creates a bcrypt hash for an account password.
func HashPassword(password string) (string, error) {
	// bcrypt caps the input at 72 bytes
	if len(password) > 72 {
		return "", bcrypt.ErrPasswordTooLong
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// VerifyPassword checks a plaintext password against a stored bcrypt hash.
func VerifyPassword(hashedPassword, providedPassword string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(providedPassword))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// SecretEqual compares a shared secret in constant time.
func SecretEqual(expected, provided string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
