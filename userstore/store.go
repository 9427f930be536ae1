package userstore

import (
	"errors"
	"strings"
)

var (
	// ErrAccountNotFound is returned by FindByUsername when no account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateAccount is returned when creating an account whose id or username exists.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrInvalidAccount is returned when creating an account without id, username or hash.
	ErrInvalidAccount = errors.New("invalid account")
)

// Account is a stored user record.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Authorities  []string
}

func (a Account) validate() error {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Username) == "" || a.PasswordHash == "" {
		return ErrInvalidAccount
	}
	return nil
}

func cloneAccount(a Account) Account {
	a.Authorities = append([]string(nil), a.Authorities...)
	return a
}
