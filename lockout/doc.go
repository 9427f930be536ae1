// Package lockout implements the per-account failed-login state machine.
//
// An account is Open until Threshold consecutive failures lock it for
// Duration. Expiry is discovered lazily on the next access; no timer runs.
// State lives in a [StateStore] owned by the caller (normally the user
// record store) and is never cached by the [Manager].
//
// # Counter reset on expiry
//
// A lock observed as expired counts as a reset: the next failure starts again
// from one, and IsLocked writes the reset back when it sees a stale lock.
package lockout
