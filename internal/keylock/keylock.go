// Package keylock provides striped per-key mutual exclusion.
package keylock

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Striped maps keys onto a fixed set of mutexes. Two keys may share a stripe;
// one key always maps to the same stripe, so holders of a key exclude each
// other without a global lock.
type Striped struct {
	stripes []sync.Mutex
}

// New returns a Striped lock with n stripes (minimum 1).
func New(n int) *Striped {
	if n < 1 {
		n = 1
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for key and returns its unlock func.
func (s *Striped) Lock(key string) func() {
	m := &s.stripes[xxhash.Sum64String(key)%uint64(len(s.stripes))]
	m.Lock()
	return m.Unlock
}
