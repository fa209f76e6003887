// Package internal contains helper utilities that are intentionally private to mtAuth,
// including reset token generation and hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - limiters: domain-specific rate limiters (password reset, register)
//   - lockout: failed-attempt counter and timed lock state machine
//   - rate: core Redis-backed rate limit primitives
//   - secretbox: authenticated encryption for TOTP secrets at rest
//   - validation: username and email format rules
//   - httpapi: chi routes for the /auth endpoints
//
// # What this package must NOT do
//
//   - Export types that appear in the public mtAuth API.
//   - Be imported by any package outside the mtAuth module.
package internal
