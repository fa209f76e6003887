// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunVerifySecondFactor, RunRegister, etc.)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. Every read-modify-write of a credential goes
// through Env.Update, so lockout counters, backup code consumption and reset
// token expiry are evaluated against the store's clock inside one
// transaction.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, token manager,
// password hasher, TOTP engine, mailer, rate limiters, audit sink and metrics.
// They do NOT own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import mtAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
//   - Start goroutines or retry store calls.
package flows
