package userstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/lockout"
)

type memoryRecord struct {
	account   Account
	lockout   lockout.State
	lastLogin time.Time
}

// MemoryStore keeps accounts in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]*memoryRecord
	byUsername map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*memoryRecord),
		byUsername: make(map[string]string),
	}
}

// Create adds an account.
func (s *MemoryStore) Create(_ context.Context, a Account) error {
	if err := a.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; ok {
		return ErrDuplicateAccount
	}
	if _, ok := s.byUsername[a.Username]; ok {
		return ErrDuplicateAccount
	}
	s.byID[a.ID] = &memoryRecord{account: cloneAccount(a)}
	s.byUsername[a.Username] = a.ID
	return nil
}

// FindByUsername returns the account with the exact username.
func (s *MemoryStore) FindByUsername(_ context.Context, username string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return cloneAccount(s.byID[id].account), nil
}

// GetLockoutState returns the stored lockout state.
func (s *MemoryStore) GetLockoutState(_ context.Context, accountID string) (lockout.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[accountID]
	if !ok {
		return lockout.State{}, nil
	}
	return copyState(rec.lockout), nil
}

// SetLockoutState replaces the stored lockout state.
func (s *MemoryStore) SetLockoutState(_ context.Context, accountID string, st lockout.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[accountID]; ok {
		rec.lockout = copyState(st)
	}
	return nil
}

// SetLastLogin records the time of the latest successful login.
func (s *MemoryStore) SetLastLogin(_ context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[accountID]; ok {
		rec.lastLogin = at
	}
	return nil
}

// LastLogin returns the recorded last-login time, zero if none.
func (s *MemoryStore) LastLogin(accountID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.byID[accountID]; ok {
		return rec.lastLogin
	}
	return time.Time{}
}

func copyState(st lockout.State) lockout.State {
	if st.LockedUntil != nil {
		t := *st.LockedUntil
		st.LockedUntil = &t
	}
	return st
}
