package authcore

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure kinds the Engine reports.
type ErrorKind uint8

const (
	KindInvalidCredentials ErrorKind = iota + 1
	KindAccountLocked
	KindMalformedToken
	KindBadSignature
	KindExpired
	KindRevoked
	KindStoreUnavailable
	KindWrongTokenKind
	KindNotReady
	KindInternal
)

var kindNames = map[ErrorKind]string{
	KindInvalidCredentials: "invalid_credentials",
	KindAccountLocked:      "account_locked",
	KindMalformedToken:     "malformed_token",
	KindBadSignature:       "bad_signature",
	KindExpired:            "expired",
	KindRevoked:            "revoked",
	KindStoreUnavailable:   "store_unavailable",
	KindWrongTokenKind:     "wrong_token_kind",
	KindNotReady:           "not_ready",
	KindInternal:           "internal",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is the single error type returned by Engine methods. Error() holds
// only the kind's message; the underlying cause is reachable through
// errors.Unwrap for server-side logging and is never shown to callers.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrRevoked)
// works regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrInvalidCredentials = newError(KindInvalidCredentials, "invalid credentials")
	ErrAccountLocked      = newError(KindAccountLocked, "account locked")
	ErrMalformedToken     = newError(KindMalformedToken, "malformed token")
	ErrBadSignature       = newError(KindBadSignature, "token signature invalid")
	ErrExpired            = newError(KindExpired, "token expired")
	ErrRevoked            = newError(KindRevoked, "token revoked")
	ErrStoreUnavailable   = newError(KindStoreUnavailable, "backing store unavailable")
	ErrWrongTokenKind     = newError(KindWrongTokenKind, "wrong token kind")
	ErrNotReady           = newError(KindNotReady, "engine not initialized")
	ErrInternal           = newError(KindInternal, "internal error")
)

// KindOf returns the kind of an Engine error, or zero for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
