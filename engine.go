package authcore

import (
	"context"
	"sync"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/revocation"
)

// Engine is the authentication flow: login with lockout, token
// authentication, refresh and logout. It is immutable after Build and safe
// for concurrent use.
type Engine struct {
	config  Config
	deps    *flows.Deps
	metrics *metrics.Metrics
	audit   *audit.Dispatcher
	sweeper *revocation.Sweeper

	closeOnce sync.Once
}

// Login checks username and password and, on success, issues an access and
// a refresh token.
//
// Unknown usernames and wrong passwords both fail with ErrInvalidCredentials,
// including the attempt that locks the account. A locked account fails with
// ErrAccountLocked without comparing the password. A store failure yields
// ErrStoreUnavailable and does not count as a failed attempt.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrNotReady
	}
	res, err := flows.RunLogin(ctx, username, password, e.deps)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// Authenticate validates an access token and returns the principal it
// carries. The user store is not consulted, so authorities are those
// captured at issuance.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if e == nil {
		return nil, ErrNotReady
	}
	p, err := flows.RunAuthenticate(ctx, accessToken, e.deps)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// RefreshSession exchanges a refresh token for a new access token. With
// Config.Token.RotateRefresh the presented refresh token is revoked and a
// replacement returned.
func (e *Engine) RefreshSession(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil {
		return nil, ErrNotReady
	}
	res, err := flows.RunRefresh(ctx, refreshToken, e.deps)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// Logout revokes an access token until its expiry. It never fails; an
// invalid token is ignored and a revocation failure is logged.
func (e *Engine) Logout(ctx context.Context, accessToken string) {
	if e == nil {
		return
	}
	flows.RunLogout(ctx, accessToken, e.deps)
}

// RevokeToken revokes an access or refresh token and, unlike Logout,
// reports failures. An already expired token is accepted as a no-op.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	if e == nil {
		return ErrNotReady
	}
	return mapError(flows.RunRevoke(ctx, token, e.deps))
}

// UnlockAccount clears the failed-attempt counter and any lock.
func (e *Engine) UnlockAccount(ctx context.Context, accountID string) error {
	if e == nil {
		return ErrNotReady
	}
	return mapError(flows.RunUnlock(ctx, accountID, e.deps))
}

// IsAccountLocked reports whether accountID is locked right now.
func (e *Engine) IsAccountLocked(ctx context.Context, accountID string) (bool, error) {
	if e == nil {
		return false, ErrNotReady
	}
	locked, err := flows.RunIsLocked(ctx, accountID, e.deps)
	if err != nil {
		return false, mapError(err)
	}
	return locked, nil
}

// Close stops the revocation sweeper and drains the audit dispatcher.
// It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.sweeper.Stop()
		e.audit.Close()
	})
}

// AuditDropped returns how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and, when enabled, latency
// histograms. With metrics disabled both maps are empty.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with. A
// nil engine reports the zero Config.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}
