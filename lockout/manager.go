package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/keylock"
)

var (
	// ErrUnavailable indicates the lockout state could not be read or written.
	ErrUnavailable = errors.New("lockout backend unavailable")
	// ErrInvalidPolicy is returned by NewManager for a non-positive threshold or duration.
	ErrInvalidPolicy = errors.New("invalid lockout policy")
)

const defaultStripes = 256

// State is the lockout record of one account.
type State struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// LockedAt reports whether the lock is present and still in the future.
func (s State) LockedAt(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// ExpiredAt reports whether a lock is present but no longer in force.
func (s State) ExpiredAt(now time.Time) bool {
	return s.LockedUntil != nil && !s.LockedUntil.After(now)
}

// IsZero reports whether the state is the initial Open/0 state.
func (s State) IsZero() bool {
	return s.FailedAttempts == 0 && s.LockedUntil == nil
}

// Policy is the lockout threshold and lock duration.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// Validate checks that both fields are positive.
func (p Policy) Validate() error {
	if p.Threshold <= 0 {
		return fmt.Errorf("%w: threshold must be > 0", ErrInvalidPolicy)
	}
	if p.Duration <= 0 {
		return fmt.Errorf("%w: duration must be > 0", ErrInvalidPolicy)
	}
	return nil
}

// StateStore reads and writes lockout state. SetLockoutState must be atomic
// for a single account (one row or one key).
type StateStore interface {
	GetLockoutState(ctx context.Context, accountID string) (State, error)
	SetLockoutState(ctx context.Context, accountID string, state State) error
}

// AtomicStateStore is implemented by stores shared between processes. The
// store applies NextFailureState itself in one atomic step, so the manager's
// in-process lock is not relied on.
type AtomicStateStore interface {
	StateStore
	ApplyFailure(ctx context.Context, accountID string, now time.Time, policy Policy) (State, error)
}

// NextFailureState is the transition taken on a failed credential check.
//
// An active lock is left untouched. A lock that has already expired resets
// the counter before this failure is counted. Reaching the threshold sets
// LockedUntil to now + Duration.
func NextFailureState(s State, now time.Time, p Policy) State {
	if s.LockedAt(now) {
		return s
	}
	failed := s.FailedAttempts
	if s.ExpiredAt(now) || failed < 0 {
		failed = 0
	}
	failed++

	next := State{FailedAttempts: failed}
	if failed >= p.Threshold {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
	}
	return next
}

// Config configures a Manager.
type Config struct {
	Policy Policy
	// Stripes is the number of per-account lock stripes. Zero means 256.
	Stripes int
	Now     func() time.Time
}

// Manager applies the lockout state machine to accounts held in a StateStore.
type Manager struct {
	store  StateStore
	atomic AtomicStateStore
	policy Policy
	locks  *keylock.Striped
	now    func() time.Time
}

// NewManager returns a Manager over store.
func NewManager(store StateStore, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("nil lockout state store")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Stripes <= 0 {
		cfg.Stripes = defaultStripes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		store:  store,
		policy: cfg.Policy,
		locks:  keylock.New(cfg.Stripes),
		now:    cfg.Now,
	}
	if a, ok := store.(AtomicStateStore); ok {
		m.atomic = a
	}
	return m, nil
}

// Policy returns the configured policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// RecordFailure counts one failed credential check and reports whether the
// account is locked afterwards.
func (m *Manager) RecordFailure(ctx context.Context, accountID string) (bool, error) {
	now := m.now()

	if m.atomic != nil {
		next, err := m.atomic.ApplyFailure(ctx, accountID, now, m.policy)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return next.LockedAt(now), nil
	}

	unlock := m.locks.Lock(accountID)
	defer unlock()

	current, err := m.store.GetLockoutState(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	next := NextFailureState(current, now, m.policy)
	if err := m.store.SetLockoutState(ctx, accountID, next); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return next.LockedAt(now), nil
}

// RecordSuccess zeroes the counter and clears any lock.
func (m *Manager) RecordSuccess(ctx context.Context, accountID string) error {
	unlock := m.locks.Lock(accountID)
	defer unlock()

	if err := m.store.SetLockoutState(ctx, accountID, State{}); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Unlock is the administrative form of RecordSuccess.
func (m *Manager) Unlock(ctx context.Context, accountID string) error {
	return m.RecordSuccess(ctx, accountID)
}

// IsLocked reports whether the account is locked right now. A past-due lock
// reads as unlocked; when the manager owns the read-modify-write it also
// writes the reset back. Atomic stores are left as they are: an unguarded
// write here could erase a failure another instance just applied.
func (m *Manager) IsLocked(ctx context.Context, accountID string) (bool, error) {
	now := m.now()

	state, err := m.store.GetLockoutState(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if state.LockedAt(now) {
		return true, nil
	}
	if state.ExpiredAt(now) && m.atomic == nil {
		m.resetExpired(ctx, accountID, now)
	}
	return false, nil
}

// State returns the stored state of an account as is. With an
// AtomicStateStore a lapsed lock is not written back by IsLocked, so the
// result may still show the threshold count and a LockedUntil in the past
// until the next failure or success. Use State.LockedAt, or IsLocked, for
// the effective status; NextFailureState treats such a state as reset.
func (m *Manager) State(ctx context.Context, accountID string) (State, error) {
	state, err := m.store.GetLockoutState(ctx, accountID)
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return state, nil
}

// resetExpired clears a stale lock. Errors are dropped: NextFailureState
// already treats a stale lock as a reset, so a missed write changes nothing.
func (m *Manager) resetExpired(ctx context.Context, accountID string, now time.Time) {
	unlock := m.locks.Lock(accountID)
	defer unlock()

	current, err := m.store.GetLockoutState(ctx, accountID)
	if err != nil || !current.ExpiredAt(now) {
		return
	}
	_ = m.store.SetLockoutState(ctx, accountID, State{})
}
