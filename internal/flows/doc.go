// Package flows contains the orchestration behind every Engine operation.
//
// Each Run* function takes a Deps value and touches nothing outside it: the
// Engine builds Deps once and delegates. Failures come back as the sentinel
// errors declared here or as the jwt package's token errors; the root
// package maps both onto its public error kinds.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package.
//   - Log or audit passwords or token strings.
package flows
