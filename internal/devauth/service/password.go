package service

import (
	"errors"
	"unicode"
)

// minPasswordLength is the marketplace password floor.
const minPasswordLength = 12

var (
	ErrWeakPassword = errors.New(
		"password must be at least 12 characters and include upper and lower case letters, a digit and a special character")
	ErrPasswordConfirmMismatch = errors.New("passwords do not match")
)

// ValidatePassword enforces the marketplace password policy: length plus one
// of each character class.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}
