package authcore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/userstore"
)

const (
	testUser     = "alice"
	testAccount  = "acct-alice"
	testPassword = "correct-password-123"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testConfig keeps argon2 cheap so the suite stays fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = append([]byte(nil), testSecret...)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Revocation.SweepInterval = 0
	return cfg
}

func newSeededStore(t *testing.T, cfg Config) *userstore.MemoryStore {
	t.Helper()
	h, err := password.NewArgon2(cfg.argon2Config())
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}
	hash, err := h.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := userstore.NewMemoryStore()
	if err := store.Create(context.Background(), userstore.Account{
		ID:           testAccount,
		Username:     testUser,
		Email:        "alice@example.com",
		PasswordHash: hash,
		Authorities:  []string{"ROLE_USER"},
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return store
}

type testEngine struct {
	*Engine
	store *userstore.MemoryStore
	clock *testClock
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	store := newSeededStore(t, cfg)
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(store).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	return &testEngine{Engine: engine, store: store, clock: clock}
}

func (te *testEngine) lockoutState(t *testing.T) LockoutState {
	t.Helper()
	st, err := te.store.GetLockoutState(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("lockout state: %v", err)
	}
	return st
}

func mustLogin(t *testing.T, e *Engine) *LoginResult {
	t.Helper()
	res, err := e.Login(context.Background(), testUser, testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

var errBackendDown = errors.New("backend down")

// flakyStore wraps a MemoryStore and fails selected calls on demand.
type flakyStore struct {
	*userstore.MemoryStore
	failFind      atomic.Bool
	failLockout   atomic.Bool
	failLastLogin atomic.Bool
}

func (s *flakyStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	if s.failFind.Load() {
		return Account{}, errBackendDown
	}
	return s.MemoryStore.FindByUsername(ctx, username)
}

func (s *flakyStore) GetLockoutState(ctx context.Context, id string) (LockoutState, error) {
	if s.failLockout.Load() {
		return LockoutState{}, errBackendDown
	}
	return s.MemoryStore.GetLockoutState(ctx, id)
}

func (s *flakyStore) SetLockoutState(ctx context.Context, id string, st LockoutState) error {
	if s.failLockout.Load() {
		return errBackendDown
	}
	return s.MemoryStore.SetLockoutState(ctx, id, st)
}

func (s *flakyStore) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	if s.failLastLogin.Load() {
		return errBackendDown
	}
	return s.MemoryStore.SetLastLogin(ctx, id, at)
}

// slowRevocations widens the window between the revocation check and the
// revocation write so concurrent refreshes overlap.
type slowRevocations struct {
	*revocation.MemoryStore
	delay time.Duration
}

func (s *slowRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.IsRevoked(ctx, id)
}

// refreshConcurrently redeems token from n goroutines at once, spread over
// engines, and returns the successful results and the errors.
func refreshConcurrently(t *testing.T, token string, n int, engines ...*Engine) ([]*RefreshResult, []error) {
	t.Helper()
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []*RefreshResult
		errs    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		e := engines[i%len(engines)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			out, err := e.RefreshSession(context.Background(), token)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results = append(results, out)
		}()
	}
	close(start)
	wg.Wait()
	return results, errs
}
