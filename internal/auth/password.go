package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordManager hashes and verifies passwords with bcrypt.
type PasswordManager struct {
	cost      int
	minLength int
}

func NewPasswordManager(bcryptCost, minLength int) *PasswordManager {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if minLength < 8 {
		minLength = 8
	}
	return &PasswordManager{cost: bcryptCost, minLength: minLength}
}

// HashPassword returns the bcrypt hash of a password.
func (p *PasswordManager) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether a password matches its stored hash.
func (p *PasswordManager) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateStrength enforces the minimum password policy: length, at least
// one letter and one digit.
func (p *PasswordManager) ValidateStrength(password string) error {
	if len(password) < p.minLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, p.minLength)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: must contain at least one letter and one digit", ErrWeakPassword)
	}
	return nil
}
