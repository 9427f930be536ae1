package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
)

// mapError translates flow and codec errors into *Error. This is the only
// place lower-layer errors are coarsened.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var base *Error
	switch {
	case errors.Is(err, flows.ErrStoreUnavailable):
		base = ErrStoreUnavailable
	case errors.Is(err, flows.ErrInvalidCredentials):
		base = ErrInvalidCredentials
	case errors.Is(err, flows.ErrAccountLocked):
		base = ErrAccountLocked
	case errors.Is(err, flows.ErrRevoked):
		base = ErrRevoked
	case errors.Is(err, flows.ErrNotReady):
		base = ErrNotReady
	case errors.Is(err, jwt.ErrWrongKind):
		base = ErrWrongTokenKind
	case errors.Is(err, jwt.ErrExpired):
		base = ErrExpired
	case errors.Is(err, jwt.ErrBadSignature):
		base = ErrBadSignature
	case errors.Is(err, jwt.ErrMalformed):
		base = ErrMalformedToken
	default:
		base = ErrInternal
	}
	return &Error{Kind: base.Kind, Message: base.Message, Err: err}
}
