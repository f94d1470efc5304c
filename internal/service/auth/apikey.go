package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// KeyVerifier defines the interface for checking a presented service
// API key against the configured credential.
type KeyVerifier interface {
	// Verify compares the stored hash with a presented key. Returns nil
	// on success or ErrInvalidAPIKey on mismatch.
	Verify(hashedKey, key string) error
}

// BcryptVerifier implements KeyVerifier using bcrypt.
type BcryptVerifier struct{}

// NewBcryptVerifier creates a new BcryptVerifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Verify implements the KeyVerifier interface using bcrypt.
func (v *BcryptVerifier) Verify(hashedKey, key string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidAPIKey
		}
		return err
	}
	return nil
}
