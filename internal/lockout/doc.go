// Package lockout implements the per-account failed-attempt state machine.
//
// Unlocked --failure (count < threshold)--> Unlocked
// Unlocked --failure (count = threshold)--> Locked(now + duration)
// Locked   --evaluate after expiry-------> Unlocked (count reset)
// any      --reset------------------------> Unlocked (count reset)
//
// There is no sweeper. Elapsed locks are cleared the next time Evaluate runs,
// so callers must persist the State after evaluating it.
//
// # What this package must NOT do
//
//   - Perform I/O. Callers run it inside their own store transaction.
//   - Read the wall clock. The time is always supplied.
package lockout
