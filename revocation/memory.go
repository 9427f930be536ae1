package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

// MemoryConfig tunes a MemoryStore.
type MemoryConfig struct {
	// Shards is the number of independently locked partitions. Zero means 32.
	Shards int
	Now    func() time.Time
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// MemoryStore is an in-process Store. Ids are spread over shards so that
// writers on unrelated ids rarely contend, while readers of one shard run
// concurrently.
type MemoryStore struct {
	shards []*memoryShard
	now    func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	n := cfg.Shards
	if n <= 0 {
		n = defaultShards
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &MemoryStore{shards: make([]*memoryShard, n), now: now}
	for i := range s.shards {
		s.shards[i] = &memoryShard{entries: make(map[string]time.Time)}
	}
	return s
}

func (s *MemoryStore) shard(id string) *memoryShard {
	return s.shards[xxhash.Sum64String(id)%uint64(len(s.shards))]
}

// Revoke records id until expiresAt. Revoking an id whose expiry already
// passed is a no-op.
func (s *MemoryStore) Revoke(_ context.Context, id string, expiresAt time.Time) error {
	if id == "" {
		return ErrEmptyID
	}
	if !expiresAt.After(s.now()) {
		return nil
	}

	sh := s.shard(id)
	sh.mu.Lock()
	if current, ok := sh.entries[id]; !ok || expiresAt.After(current) {
		sh.entries[id] = expiresAt
	}
	sh.mu.Unlock()
	return nil
}

// RevokeIfAbsent records id unless a live entry already exists. The check
// and the insert happen under one shard lock. An expiry already in the past
// records nothing and reports false.
func (s *MemoryStore) RevokeIfAbsent(_ context.Context, id string, expiresAt time.Time) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}
	now := s.now()
	if !expiresAt.After(now) {
		return false, nil
	}

	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if current, ok := sh.entries[id]; ok && current.After(now) {
		return false, nil
	}
	sh.entries[id] = expiresAt
	return true, nil
}

// IsRevoked reports whether id is revoked. A stale entry found on lookup is
// removed.
func (s *MemoryStore) IsRevoked(_ context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	now := s.now()

	sh := s.shard(id)
	sh.mu.RLock()
	expiresAt, ok := sh.entries[id]
	sh.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if expiresAt.After(now) {
		return true, nil
	}

	sh.mu.Lock()
	if current, ok := sh.entries[id]; ok && !current.After(now) {
		delete(sh.entries, id)
	}
	sh.mu.Unlock()
	return false, nil
}

// Sweep removes every entry whose expiry is at or before now.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sh.mu.Lock()
		for id, expiresAt := range sh.entries {
			if !expiresAt.After(now) {
				delete(sh.entries, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of entries currently held, stale ones included.
func (s *MemoryStore) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}
