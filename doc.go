// Package mtAuth is the authentication core of the MikroTik management
// backend: registration, password login with optional TOTP second factor,
// backup codes, account lockout, password change and email-token reset.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// mtAuth is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore], [Mailer] and [AuditSink] contracts, and value types
// (LoginResult, Account, MetricsSnapshot). Flow orchestration, lockout
// arithmetic, rate limiting, secret sealing and audit dispatch live under
// internal/ and are never exported.
//
// Persistence is pluggable: store/memstore keeps credentials in memory,
// store/pgstore uses PostgreSQL through pgx. Every mutation of lockout
// counters, backup codes and reset tokens runs inside
// [CredentialStore.Update], so concurrent requests never lose an update.
//
// # Error model
//
// Operations return the sentinel errors in errors.go. [ResultFromError]
// maps them to stable codes (INVALID_CREDENTIALS, ACCOUNT_LOCKED, ...) for
// transports. Store, hashing and signing failures are logged and surface
// as [ErrInternal].
//
// # What this package must NOT do
//
//   - Reveal whether an email is registered through login or reset errors.
//   - Return password hashes, TOTP secrets or reset tokens outside the
//     one-time setup and mail paths.
//   - Import any sub-package that re-imports mtAuth (no import cycles).
package mtAuth
