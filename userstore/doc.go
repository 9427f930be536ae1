// Package userstore provides user-record stores for the authentication
// engine: an in-process [MemoryStore] and a PostgreSQL-backed
// [PostgresStore].
//
// Both implement lookup by username, lockout state read/write
// (lockout.StateStore) and the last-login write. PostgresStore also
// implements lockout.AtomicStateStore, applying the failure transition
// under a row lock so several engine instances can share one database.
//
// Lockout reads for an unknown account id return the zero state and writes
// are no-ops.
package userstore
