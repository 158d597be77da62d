package auth

import (
	"golang.org/x/crypto/bcrypt"

	"library-catalog/internal/errors"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

func HashPassword(password string) ([]byte, error) {
	if len(password) < MinPasswordLength {
		return nil, errors.ErrInvalidInput.WithDetails("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewAppError(errors.InvalidInput, "password cannot be hashed").WithDetails(err.Error())
	}
	return hash, nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
