package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/userstore"
)

// Account is the user record the engine reads at login.
type Account = userstore.Account

// LockoutState is the per-account failed-attempt counter and lock deadline.
type LockoutState = lockout.State

// ErrAccountNotFound must be returned (possibly wrapped) by
// UserStore.FindByUsername when no account has the given username. Any other
// error is treated as the store being unavailable.
var ErrAccountNotFound = userstore.ErrAccountNotFound

// UserStore is the record store the engine consumes. Implementations must be
// safe for concurrent use, and SetLockoutState must write one account
// atomically. userstore.MemoryStore and userstore.PostgresStore satisfy it.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (Account, error)
	GetLockoutState(ctx context.Context, accountID string) (LockoutState, error)
	SetLockoutState(ctx context.Context, accountID string, state LockoutState) error
	SetLastLogin(ctx context.Context, accountID string, at time.Time) error
}

// LoginResult is returned by Engine.Login.
type LoginResult = flows.LoginResult

// Principal is the identity behind a valid access token. It is derived from
// the token alone.
type Principal = flows.Principal

// RefreshResult is returned by Engine.RefreshSession. RefreshToken is the
// presented token unless rotation is enabled.
type RefreshResult = flows.RefreshResult

// PasswordHasher hashes and verifies passwords. The password package
// provides argon2id and bcrypt implementations.
type PasswordHasher = password.Hasher

var (
	_ UserStore = (*userstore.MemoryStore)(nil)
	_ UserStore = (*userstore.PostgresStore)(nil)
)
