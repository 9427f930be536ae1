// Package authcore is the credential and token core of a web backend:
// username/password login with failed-attempt lockout, signed access and
// refresh tokens, and server-side token revocation.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// [Error] and value types (LoginResult, Principal, MetricsSnapshot). Flow
// orchestration, metrics and audit dispatch live under internal/. The token
// codec (jwt), revocation store (revocation), lockout state machine
// (lockout), password hashing (password) and reference user stores
// (userstore) are importable on their own.
//
// # What this package must NOT do
//
//   - Return lower-layer errors to callers. Every Engine error is an [*Error]
//     with one of a closed set of kinds.
//   - Log or audit passwords, token strings or key material.
//   - Count a store failure as a failed login attempt.
//
// # Performance contract
//
// Authenticate is the hot path: one signature check and one revocation
// lookup, no user-store access. Login costs one password verification and
// at most three user-store round trips.
package authcore
