package revocation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable indicates the revocation backend could not be reached.
	ErrUnavailable = errors.New("revocation backend unavailable")
	// ErrEmptyID is returned when a caller revokes an empty token id.
	ErrEmptyID = errors.New("empty token id")
)

// Store records revoked token ids.
//
// Revoke is idempotent. RevokeIfAbsent is the compare-and-set form: it
// records id only when no live entry exists and reports whether this call
// did so, so exactly one of several concurrent callers gets true.
// IsRevoked reports false for ids never revoked and for entries past their
// recorded expiry. Sweep drops entries whose expiry is at or before now and
// returns how many were removed; it is housekeeping only.
type Store interface {
	Revoke(ctx context.Context, id string, expiresAt time.Time) error
	RevokeIfAbsent(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, id string) (bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}
