// Package audit implements the append-only authentication and security event
// logs and their async delivery.
//
// # Components
//
//   - [Sink] - consumer interface (channel, JSON writer, fan-out, no-op).
//   - [Dispatcher] - buffered async relay with drop-if-full / block-if-full semantics.
//   - [AuthEvent] - one login, second factor, registration or credential change attempt.
//   - [SecurityEvent] - severity-tagged state change such as a lockout.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Engine and flow functions. Events are never read
// back or deleted.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import mtAuth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
