// Package revocation tracks token ids that must be rejected before their
// natural expiry.
//
// Entries are keyed by token id and remember the token's expiry; an entry is
// reclaimable once that expiry passes because the codec already rejects
// expired tokens. [MemoryStore] serves single-instance deployments and
// [RedisStore] shares state across instances.
package revocation
