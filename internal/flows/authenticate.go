package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
)

// Principal is the identity carried by a valid access token. It is built
// from the token's claims only; the user store is not consulted.
type Principal struct {
	AccountID   string
	Authorities []string
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// RunAuthenticate decodes an access token and checks it has not been revoked.
func RunAuthenticate(ctx context.Context, accessToken string, deps *Deps) (*Principal, error) {
	if !deps.ready() {
		return nil, ErrNotReady
	}
	defer deps.Metrics.Since(metrics.AuthenticateLatency, time.Now())

	claims, err := deps.Codec.DecodeKind(accessToken, jwt.KindAccess)
	if err != nil {
		deps.Metrics.Inc(metrics.AuthenticateFailure)
		return nil, err
	}
	if err := deps.checkRevoked(ctx, claims.ID); err != nil {
		deps.Metrics.Inc(metrics.AuthenticateFailure)
		return nil, err
	}

	deps.Metrics.Inc(metrics.AuthenticateSuccess)
	return principalFrom(claims), nil
}

func (d *Deps) checkRevoked(ctx context.Context, tokenID string) error {
	ctx, cancel := d.storeCtx(ctx)
	defer cancel()

	revoked, err := d.Revocations.IsRevoked(ctx, tokenID)
	if err != nil {
		return d.unavailable("revocation_lookup", err)
	}
	if revoked {
		d.Metrics.Inc(metrics.RevokedTokenRejected)
		return ErrRevoked
	}
	return nil
}

func (d *Deps) revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, cancel := d.storeCtx(ctx)
	defer cancel()
	return d.Revocations.Revoke(ctx, tokenID, expiresAt)
}

// claimRevocation revokes tokenID only if no other caller already has. A
// lost race is reported as ErrRevoked.
func (d *Deps) claimRevocation(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, cancel := d.storeCtx(ctx)
	defer cancel()

	won, err := d.Revocations.RevokeIfAbsent(ctx, tokenID, expiresAt)
	if err != nil {
		return d.unavailable("revoke_refresh", err)
	}
	if !won {
		d.Metrics.Inc(metrics.RevokedTokenRejected)
		return ErrRevoked
	}
	return nil
}

func principalFrom(c *jwt.Claims) *Principal {
	p := &Principal{
		AccountID:   c.Subject,
		Authorities: append([]string(nil), c.Authorities...),
		TokenID:     c.ID,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
