// Package password hashes and verifies account passwords.
//
// Two schemes are provided: [Argon2] (Argon2id, PHC string encoding) and
// [Bcrypt]. Both satisfy [Hasher]. [Chain] hashes with one scheme while still
// verifying hashes produced by the others, so a deployment can move from
// bcrypt to Argon2id without forcing resets.
//
// # Output format
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//	$2a$<cost>$<salt+hash>
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
