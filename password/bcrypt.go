package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt reads at most 72 bytes of input; longer passwords are rejected rather
// than silently truncated.
const bcryptMaxBytes = 72

// BcryptConfig holds the bcrypt work factor and plaintext bounds.
type BcryptConfig struct {
	// Cost is the bcrypt work factor. Zero means bcrypt.DefaultCost.
	Cost int
	// MinPasswordBytes is enforced by Hash only.
	MinPasswordBytes int
}

// Bcrypt is a Scheme over golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost     int
	minBytes int
}

// NewBcrypt validates cfg and returns a hasher.
func NewBcrypt(cfg BcryptConfig) (*Bcrypt, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.MinPasswordBytes < 0 || cfg.MinPasswordBytes > bcryptMaxBytes {
		return nil, errors.New("bcrypt min password length out of range")
	}
	return &Bcrypt{cost: cost, minBytes: cfg.MinPasswordBytes}, nil
}

// Recognizes reports whether encodedHash looks like a bcrypt hash.
func (b *Bcrypt) Recognizes(encodedHash string) bool {
	return hasPrefix(encodedHash, "$2a$", "$2b$", "$2y$")
}

// Hash derives a new bcrypt hash.
func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) < b.minBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > bcryptMaxBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify compares password with encodedHash.
func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	if len(password) > bcryptMaxBytes {
		return false, ErrPasswordTooLong
	}
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether encodedHash uses a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}
