package softdelete

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash.
var ErrMismatchedHashAndPassword = errors.New("hashed password does not match password")

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password can not be empty")

// BcryptHasher is the default PasswordHasher.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using the build's default cost.
func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{Cost: passwordHashCost()}
}

// HashPassword will generate a password hash
func (h BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	cost := h.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(hash), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
