package password

import (
	"errors"
	"strings"
)

// DefaultMaxPasswordBytes caps the plaintext length accepted by both schemes.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordTooShort is returned by Hash for input below the configured minimum.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned by Hash and Verify for input above the configured maximum.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedHash is returned by Verify when the stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnknownScheme is returned by Chain.Verify for a hash no member recognises.
	ErrUnknownScheme = errors.New("unknown password hash scheme")
)

// Hasher hashes new passwords and verifies plaintext against stored hashes.
// Verify reports a mismatch as (false, nil).
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Scheme is implemented by hashers that can recognise their own encoding.
type Scheme interface {
	Hasher
	Recognizes(encodedHash string) bool
}

// Chain hashes with Primary and verifies with whichever scheme recognises the
// stored hash.
type Chain struct {
	Primary Scheme
	Legacy  []Scheme
}

// Hash hashes with the primary scheme.
func (c Chain) Hash(password string) (string, error) {
	return c.Primary.Hash(password)
}

// Verify dispatches on the hash encoding.
func (c Chain) Verify(password, encodedHash string) (bool, error) {
	if c.Primary.Recognizes(encodedHash) {
		return c.Primary.Verify(password, encodedHash)
	}
	for _, s := range c.Legacy {
		if s.Recognizes(encodedHash) {
			return s.Verify(password, encodedHash)
		}
	}
	return false, ErrUnknownScheme
}

// NeedsRehash reports whether encodedHash was produced by a legacy scheme.
func (c Chain) NeedsRehash(encodedHash string) bool {
	return !c.Primary.Recognizes(encodedHash)
}

func hasPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
