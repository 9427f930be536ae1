package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/revocation"
)

func TestLoginIssuesTokenPair(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	res := mustLogin(t, te.Engine)
	if res.AccountID != testAccount {
		t.Fatalf("unexpected account id %q", res.AccountID)
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.AccessToken == res.RefreshToken {
		t.Fatal("expected two distinct non-empty tokens")
	}
	if !res.AccessExpiresAt.Equal(te.clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("unexpected access expiry %v", res.AccessExpiresAt)
	}
	if !res.RefreshExpiresAt.After(res.AccessExpiresAt) {
		t.Fatal("refresh token must outlive access token")
	}
	if len(res.Authorities) != 1 || res.Authorities[0] != "ROLE_USER" {
		t.Fatalf("unexpected authorities %v", res.Authorities)
	}
	if !te.store.LastLogin(testAccount).Equal(te.clock.Now()) {
		t.Fatal("expected last login to be recorded")
	}

	p, err := te.Authenticate(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.AccountID != testAccount || p.TokenID == "" || p.Authorities[0] != "ROLE_USER" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestLoginUnknownUserIsInvalidCredentials(t *testing.T) {
	te := newTestEngine(t, nil)

	_, err := te.Login(context.Background(), "mallory", testPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLocksAtThreshold(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := te.Login(ctx, testUser, "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	st := te.lockoutState(t)
	if st.FailedAttempts != 5 || st.LockedUntil == nil {
		t.Fatalf("expected Locked/5, got %+v", st)
	}

	_, err := te.Login(ctx, testUser, testPassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}
	locked, err := te.IsAccountLocked(ctx, testAccount)
	if err != nil || !locked {
		t.Fatalf("expected locked, got %v %v", locked, err)
	}
}

func TestLockedLoginLeavesStateUntouched(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Lockout.Threshold = 2 })
	ctx := context.Background()

	te.Login(ctx, testUser, "wrong-password")
	te.Login(ctx, testUser, "wrong-password")
	before := te.lockoutState(t)

	te.clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := te.Login(ctx, testUser, "wrong-password"); !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("expected ErrAccountLocked, got %v", err)
		}
	}

	after := te.lockoutState(t)
	if after.FailedAttempts != before.FailedAttempts || !after.LockedUntil.Equal(*before.LockedUntil) {
		t.Fatalf("locked logins must not change state: before %+v after %+v", before, after)
	}
}

func TestLockExpiresAndSuccessResets(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Lockout.Threshold = 3 })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		te.Login(ctx, testUser, "wrong-password")
	}
	te.clock.Advance(15 * time.Minute)

	if _, err := te.Login(ctx, testUser, testPassword); err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
	if st := te.lockoutState(t); !st.IsZero() {
		t.Fatalf("expected Open/0 after success, got %+v", st)
	}
}

func TestSuccessResetsPartialCounter(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Lockout.Threshold = 3 })
	ctx := context.Background()

	te.Login(ctx, testUser, "wrong-password")
	te.Login(ctx, testUser, "wrong-password")
	mustLogin(t, te.Engine)

	te.Login(ctx, testUser, "wrong-password")
	te.Login(ctx, testUser, "wrong-password")
	if locked, _ := te.IsAccountLocked(ctx, testAccount); locked {
		t.Fatal("counter must restart after a successful login")
	}
}

func TestUnlockAccount(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Lockout.Threshold = 1 })
	ctx := context.Background()

	te.Login(ctx, testUser, "wrong-password")
	if _, err := te.Login(ctx, testUser, testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	if err := te.UnlockAccount(ctx, testAccount); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	mustLogin(t, te.Engine)
}

func TestConcurrentFailuresLockOnce(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := te.Login(ctx, testUser, "wrong-password")
			if !errors.Is(err, ErrInvalidCredentials) && !errors.Is(err, ErrAccountLocked) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	st := te.lockoutState(t)
	if st.FailedAttempts != 5 || st.LockedUntil == nil {
		t.Fatalf("expected exactly Locked/5, got %+v", st)
	}
}

func TestStoreFailureDoesNotCountAsAttempt(t *testing.T) {
	cfg := testConfig()
	store := &flakyStore{MemoryStore: newSeededStore(t, cfg)}
	engine, err := New().WithConfig(cfg).WithUserStore(store).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()
	ctx := context.Background()

	store.failFind.Store(true)
	_, err = engine.Login(ctx, testUser, "wrong-password")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on lookup failure, got %v", err)
	}
	store.failFind.Store(false)

	store.failLockout.Store(true)
	_, err = engine.Login(ctx, testUser, "wrong-password")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on lockout failure, got %v", err)
	}
	store.failLockout.Store(false)

	st, _ := store.GetLockoutState(ctx, testAccount)
	if !st.IsZero() {
		t.Fatalf("store failures must not count, got %+v", st)
	}
	if got := engine.MetricsSnapshot().Counters[MetricStoreUnavailable]; got != 2 {
		t.Fatalf("expected 2 store-unavailable events, got %d", got)
	}
}

func TestLastLoginFailureIsNotFatal(t *testing.T) {
	cfg := testConfig()
	store := &flakyStore{MemoryStore: newSeededStore(t, cfg)}
	store.failLastLogin.Store(true)
	engine, err := New().WithConfig(cfg).WithUserStore(store).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	if _, err := engine.Login(context.Background(), testUser, testPassword); err != nil {
		t.Fatalf("expected login despite last-login failure, got %v", err)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	res := mustLogin(t, te.Engine)

	if _, err := te.Authenticate(ctx, "not-a-token"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}

	sig := strings.LastIndex(res.AccessToken, ".") + 5
	b := []byte(res.AccessToken)
	if b[sig] == 'x' {
		b[sig] = 'y'
	} else {
		b[sig] = 'x'
	}
	if _, err := te.Authenticate(ctx, string(b)); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	if _, err := te.Authenticate(ctx, res.RefreshToken); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind for refresh token, got %v", err)
	}

	te.clock.Advance(15 * time.Minute)
	if _, err := te.Authenticate(ctx, res.AccessToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	res := mustLogin(t, te.Engine)

	te.Logout(ctx, res.AccessToken)
	if _, err := te.Authenticate(ctx, res.AccessToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked after logout, got %v", err)
	}

	// A second login yields a fresh token that is not affected.
	other := mustLogin(t, te.Engine)
	if _, err := te.Authenticate(ctx, other.AccessToken); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	te.Logout(ctx, "garbage")
	te.Logout(ctx, res.AccessToken)
}

func TestRefreshSession(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	res := mustLogin(t, te.Engine)

	te.clock.Advance(time.Minute)
	out, err := te.RefreshSession(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if out.Rotated || out.RefreshToken != res.RefreshToken {
		t.Fatal("refresh token must be returned unchanged without rotation")
	}
	if out.AccessToken == res.AccessToken {
		t.Fatal("expected a new access token")
	}
	if _, err := te.Authenticate(ctx, out.AccessToken); err != nil {
		t.Fatalf("refreshed access token rejected: %v", err)
	}

	if _, err := te.RefreshSession(ctx, res.AccessToken); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind for access token, got %v", err)
	}
}

func TestRefreshRotationRevokesPresentedToken(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Token.RotateRefresh = true })
	ctx := context.Background()
	res := mustLogin(t, te.Engine)

	out, err := te.RefreshSession(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !out.Rotated || out.RefreshToken == res.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}
	if _, err := te.RefreshSession(ctx, res.RefreshToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked on reuse, got %v", err)
	}
	if _, err := te.RefreshSession(ctx, out.RefreshToken); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

func TestRefreshRotationHasSingleWinner(t *testing.T) {
	cfg := testConfig()
	cfg.Token.RotateRefresh = true
	revocations := &slowRevocations{
		MemoryStore: revocation.NewMemoryStore(revocation.MemoryConfig{}),
		delay:       5 * time.Millisecond,
	}
	engine, err := New().
		WithConfig(cfg).
		WithUserStore(newSeededStore(t, cfg)).
		WithRevocationStore(revocations).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	res := mustLogin(t, engine)

	results, errs := refreshConcurrently(t, res.RefreshToken, 8, engine)
	if len(results) != 1 {
		t.Fatalf("expected exactly one rotation, got %d", len(results))
	}
	for _, err := range errs {
		if !errors.Is(err, ErrRevoked) {
			t.Fatalf("expected ErrRevoked for losers, got %v", err)
		}
	}
	if _, err := engine.RefreshSession(context.Background(), results[0].RefreshToken); err != nil {
		t.Fatalf("winner's refresh token rejected: %v", err)
	}
}

func TestRevokeToken(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	res := mustLogin(t, te.Engine)

	if err := te.RevokeToken(ctx, res.RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := te.RefreshSession(ctx, res.RefreshToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	if err := te.RevokeToken(ctx, "junk"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}

	te.clock.Advance(8 * 24 * time.Hour)
	if err := te.RevokeToken(ctx, res.AccessToken); err != nil {
		t.Fatalf("revoking an expired token must be a no-op, got %v", err)
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()
	if _, err := e.Login(ctx, "u", "p"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if _, err := e.Authenticate(ctx, "t"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	e.Logout(ctx, "t")
	e.Close()
	if len(e.MetricsSnapshot().Counters) != 0 {
		t.Fatal("expected empty snapshot")
	}
	if cfg := e.Config(); cfg.Token.Secret != nil || cfg.Lockout.Threshold != 0 {
		t.Fatalf("expected zero config from nil engine, got %+v", cfg.Lockout)
	}
}

func TestMetricsAndAudit(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := NewChannelAuditSink(16)

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(newSeededStore(t, cfg)).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()

	engine.Login(ctx, testUser, "wrong-password")
	res := mustLogin(t, engine)
	engine.Logout(ctx, res.AccessToken)
	engine.Close()

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginFailure] != 1 || snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLogout] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
	var total uint64
	for _, n := range snap.Histograms[MetricLoginLatency] {
		total += n
	}
	if total != 2 {
		t.Fatalf("expected 2 login latency samples, got %d", total)
	}

	var types []string
	for len(types) < 3 {
		select {
		case ev := <-sink.Events():
			if strings.Contains(ev.Error, "password") {
				t.Fatal("audit event leaked credential detail")
			}
			types = append(types, ev.EventType)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for audit events, got %v", types)
		}
	}
	want := []string{AuditLoginFailure, AuditLoginSuccess, AuditLogout}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: want %s, got %s", i, want[i], types[i])
		}
	}
	if engine.AuditDropped() != 0 {
		t.Fatal("no events should have been dropped")
	}
}
