package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
)

// RefreshResult carries the new access token and, when rotation is on, the
// replacement refresh token.
type RefreshResult struct {
	AccountID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Rotated          bool
}

// RunRefresh exchanges a valid, unrevoked refresh token for a new access
// token. With rotation the presented refresh token is revoked before the
// replacement is issued, so a failed revocation issues nothing. The
// revocation is a conditional claim: of several concurrent refreshes of one
// token exactly one rotates and the rest fail with ErrRevoked.
func RunRefresh(ctx context.Context, refreshToken string, deps *Deps) (*RefreshResult, error) {
	if !deps.ready() {
		return nil, ErrNotReady
	}
	defer deps.Metrics.Since(metrics.RefreshLatency, time.Now())

	res, err := runRefresh(ctx, refreshToken, deps)
	if err != nil {
		deps.Metrics.Inc(metrics.RefreshFailure)
		deps.emit(ctx, EventRefreshFailure, false, "", "", err)
		return nil, err
	}
	deps.Metrics.Inc(metrics.RefreshSuccess)
	deps.emit(ctx, EventRefreshSuccess, true, res.AccountID, "", nil)
	return res, nil
}

func runRefresh(ctx context.Context, refreshToken string, deps *Deps) (*RefreshResult, error) {
	claims, err := deps.Codec.DecodeKind(refreshToken, jwt.KindRefresh)
	if err != nil {
		return nil, err
	}
	if err := deps.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	res := &RefreshResult{
		AccountID:        claims.Subject,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: claims.ExpiresAt.Time,
	}

	if deps.RotateRefresh {
		if err := deps.claimRevocation(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return nil, err
		}
		next, err := deps.Codec.IssueRefresh(claims.Subject, claims.Authorities)
		if err != nil {
			return nil, &wrapped{kind: ErrIssue, cause: err}
		}
		res.RefreshToken = next.Value
		res.RefreshExpiresAt = next.Claims.ExpiresAt.Time
		res.Rotated = true
		deps.Metrics.Inc(metrics.RefreshRotated)
	}

	access, err := deps.Codec.IssueAccess(claims.Subject, claims.Authorities)
	if err != nil {
		return nil, &wrapped{kind: ErrIssue, cause: err}
	}
	res.AccessToken = access.Value
	res.AccessExpiresAt = access.Claims.ExpiresAt.Time
	return res, nil
}
