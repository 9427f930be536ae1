package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
)

// RunLogout revokes an access token until its natural expiry. It never
// fails: an undecodable token is ignored and a store error is only logged.
func RunLogout(ctx context.Context, accessToken string, deps *Deps) {
	if !deps.ready() {
		return
	}
	claims, err := deps.Codec.DecodeKind(accessToken, jwt.KindAccess)
	if err != nil {
		deps.Logger.Debug().Str("reason", auditCode(err)).Msg("logout ignored undecodable token")
		return
	}
	if err := deps.revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		deps.Metrics.Inc(metrics.StoreUnavailable)
		deps.Logger.Warn().Err(err).Str("account_id", claims.Subject).Str("token_id", claims.ID).Msg("logout revocation failed")
		deps.emit(ctx, EventLogout, false, claims.Subject, claims.ID, ErrStoreUnavailable)
		return
	}
	deps.Metrics.Inc(metrics.Logout)
	deps.emit(ctx, EventLogout, true, claims.Subject, claims.ID, nil)
}

// RunRevoke revokes a token of either kind. A token that has already
// expired needs no entry and is accepted as a no-op.
func RunRevoke(ctx context.Context, token string, deps *Deps) error {
	if !deps.ready() {
		return ErrNotReady
	}
	claims, err := deps.Codec.Decode(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil
		}
		return err
	}
	if err := deps.revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return deps.unavailable("revoke", err)
	}
	deps.Metrics.Inc(metrics.TokenRevoked)
	deps.emit(ctx, EventTokenRevoked, true, claims.Subject, claims.ID, nil)
	return nil
}

// RunUnlock clears the lockout state of an account.
func RunUnlock(ctx context.Context, accountID string, deps *Deps) error {
	if !deps.ready() {
		return ErrNotReady
	}
	ctx, cancel := deps.storeCtx(ctx)
	defer cancel()
	if err := deps.Lockout.Unlock(ctx, accountID); err != nil {
		return deps.unavailable("unlock", err)
	}
	deps.Metrics.Inc(metrics.AccountUnlocked)
	deps.emit(ctx, EventAccountUnlock, true, accountID, "", nil)
	return nil
}

// RunIsLocked reports the current lock status of an account.
func RunIsLocked(ctx context.Context, accountID string, deps *Deps) (bool, error) {
	if !deps.ready() {
		return false, ErrNotReady
	}
	locked, err := deps.isLocked(ctx, accountID)
	if err != nil {
		return false, deps.unavailable("lockout_read", err)
	}
	return locked, nil
}
