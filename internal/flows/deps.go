package flows

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/MrEthical07/authcore/userstore"
)

var (
	ErrNotReady           = errors.New("engine not ready")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrRevoked            = errors.New("token revoked")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrIssue              = errors.New("token issuance failed")
)

// Audit event names.
const (
	EventLoginSuccess   = "login_success"
	EventLoginFailure   = "login_failure"
	EventLoginLocked    = "login_rejected_locked"
	EventAccountLocked  = "account_locked"
	EventAccountUnlock  = "account_unlocked"
	EventRefreshSuccess = "refresh_success"
	EventRefreshFailure = "refresh_failure"
	EventLogout         = "logout"
	EventTokenRevoked   = "token_revoked"
)

// Users is the user-record store as seen by the login flow.
type Users interface {
	FindByUsername(ctx context.Context, username string) (userstore.Account, error)
	SetLastLogin(ctx context.Context, accountID string, at time.Time) error
}

// Deps is built once by the Engine.
type Deps struct {
	Codec       *jwt.Codec
	Revocations revocation.Store
	Lockout     *lockout.Manager
	Users       Users

	VerifyPassword func(password, encodedHash string) (bool, error)
	// DummyHash is verified against when the username is unknown so that
	// unknown and known users take comparable time.
	DummyHash string

	StoreTimeout  time.Duration
	RotateRefresh bool

	Now     func() time.Time
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Audit   *audit.Dispatcher
}

func (d *Deps) ready() bool {
	return d != nil &&
		d.Codec != nil &&
		d.Revocations != nil &&
		d.Lockout != nil &&
		d.Users != nil &&
		d.VerifyPassword != nil
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// storeCtx bounds one store call by StoreTimeout.
func (d *Deps) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.StoreTimeout)
}

func (d *Deps) unavailable(op string, err error) error {
	d.Metrics.Inc(metrics.StoreUnavailable)
	d.Logger.Warn().Err(err).Str("op", op).Msg("store unavailable")
	return &wrapped{kind: ErrStoreUnavailable, cause: err}
}

func (d *Deps) emit(ctx context.Context, event string, success bool, accountID, tokenID string, err error) {
	if d.Audit == nil {
		return
	}
	ev := audit.Event{
		Timestamp: d.now().UTC(),
		EventType: event,
		AccountID: accountID,
		TokenID:   tokenID,
		Success:   success,
	}
	if err != nil {
		ev.Error = auditCode(err)
	}
	d.Audit.Emit(ctx, ev)
}

// wrapped pairs a flow sentinel with its underlying cause.
type wrapped struct {
	kind  error
	cause error
}

func (w *wrapped) Error() string {
	if w.cause == nil {
		return w.kind.Error()
	}
	return w.kind.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() []error {
	if w.cause == nil {
		return []error{w.kind}
	}
	return []error{w.kind, w.cause}
}

func auditCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, jwt.ErrExpired):
		return "expired"
	case errors.Is(err, jwt.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, jwt.ErrWrongKind):
		return "wrong_token_kind"
	case errors.Is(err, jwt.ErrMalformed):
		return "malformed_token"
	default:
		return "internal_error"
	}
}
