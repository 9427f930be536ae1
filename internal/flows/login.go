package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/userstore"
)

// LoginResult is a successful login: a fresh token pair and the account's
// authorities.
type LoginResult struct {
	AccountID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Authorities      []string
}

// RunLogin checks credentials against the user store and the lockout state.
//
// Order: find account, refuse if locked (no password comparison, no counter
// change), compare password, then record the outcome. A mismatch that
// triggers the lock still reports invalid credentials. Store failures never
// count as a failed attempt.
func RunLogin(ctx context.Context, username, password string, deps *Deps) (*LoginResult, error) {
	if !deps.ready() {
		return nil, ErrNotReady
	}
	defer deps.Metrics.Since(metrics.LoginLatency, time.Now())

	acct, err := deps.findAccount(ctx, username)
	if err != nil {
		if errors.Is(err, userstore.ErrAccountNotFound) {
			_, _ = deps.VerifyPassword(password, deps.DummyHash)
			deps.Metrics.Inc(metrics.LoginFailure)
			deps.emit(ctx, EventLoginFailure, false, "", "", ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, deps.unavailable("find_account", err)
	}

	locked, err := deps.isLocked(ctx, acct.ID)
	if err != nil {
		return nil, deps.unavailable("lockout_read", err)
	}
	if locked {
		deps.Metrics.Inc(metrics.LoginRejectedLocked)
		deps.emit(ctx, EventLoginLocked, false, acct.ID, "", ErrAccountLocked)
		return nil, ErrAccountLocked
	}

	ok, err := deps.VerifyPassword(password, acct.PasswordHash)
	if err != nil {
		deps.Logger.Warn().Err(err).Str("account_id", acct.ID).Msg("password verification error treated as mismatch")
		ok = false
	}

	if !ok {
		nowLocked, err := deps.recordFailure(ctx, acct.ID)
		if err != nil {
			return nil, deps.unavailable("lockout_failure", err)
		}
		deps.Metrics.Inc(metrics.LoginFailure)
		deps.emit(ctx, EventLoginFailure, false, acct.ID, "", ErrInvalidCredentials)
		if nowLocked {
			deps.Metrics.Inc(metrics.AccountLocked)
			deps.emit(ctx, EventAccountLocked, true, acct.ID, "", nil)
		}
		return nil, ErrInvalidCredentials
	}

	if err := deps.recordSuccess(ctx, acct.ID); err != nil {
		return nil, deps.unavailable("lockout_success", err)
	}

	now := deps.now()
	if err := deps.setLastLogin(ctx, acct.ID, now); err != nil {
		deps.Logger.Warn().Err(err).Str("account_id", acct.ID).Msg("last login update failed")
	}

	access, err := deps.Codec.IssueAccess(acct.ID, acct.Authorities)
	if err != nil {
		return nil, &wrapped{kind: ErrIssue, cause: err}
	}
	refresh, err := deps.Codec.IssueRefresh(acct.ID, acct.Authorities)
	if err != nil {
		return nil, &wrapped{kind: ErrIssue, cause: err}
	}

	deps.Metrics.Inc(metrics.LoginSuccess)
	deps.emit(ctx, EventLoginSuccess, true, acct.ID, access.Claims.ID, nil)

	return &LoginResult{
		AccountID:        acct.ID,
		AccessToken:      access.Value,
		AccessExpiresAt:  access.Claims.ExpiresAt.Time,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.Claims.ExpiresAt.Time,
		Authorities:      access.Claims.Authorities,
	}, nil
}

func (d *Deps) findAccount(ctx context.Context, username string) (userstore.Account, error) {
	ctx, cancel := d.storeCtx(ctx)
	defer cancel()
	return d.Users.FindByUsername(ctx, username)
}

func (d *Deps) isLocked(ctx context.Context, accountID string) (bool, error) {
	ctx, cancel := d.storeCtx(ctx)
	defer cancel()
	return d.Lockout.IsLocked(ctx, accountID)
}

func (d *Deps) recordFailure(ctx context.Context, accountID string) (bool, error) {
	ctx, cancel := d.storeCtx(ctx)
	defer cancel()
	return d.Lockout.RecordFailure(ctx, accountID)
}

func (d *Deps) recordSuccess(ctx context.Context, accountID string) error {
	ctx, cancel := d.storeCtx(ctx)
	defer cancel()
	return d.Lockout.RecordSuccess(ctx, accountID)
}

func (d *Deps) setLastLogin(ctx context.Context, accountID string, at time.Time) error {
	ctx, cancel := d.storeCtx(ctx)
	defer cancel()
	return d.Users.SetLastLogin(ctx, accountID, at)
}
