// Package jwt issues and decodes the signed session tokens used by authcore.
//
// Tokens are compact JWS strings signed with a symmetric HMAC key. Access and
// refresh tokens share one encoding and differ only in their kind claim and
// TTL; callers that need a specific kind use [Codec.DecodeKind].
//
// # What this package must NOT do
//
//   - Hold per-token state. Revocation lives in package revocation.
//   - Return claims from a token whose signature or expiry did not verify.
package jwt
