// Package password hashes and verifies credentials and validates candidate
// passwords against a configurable policy.
//
// # Output format
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] is also provided. It hashes backup codes and verifies bcrypt
// password hashes imported from older deployments. [Chain] dispatches
// verification on the stored format and reports legacy hashes through
// NeedsUpgrade so the caller can re-hash after the next successful login.
//
// # Policy
//
// [Policy.Validate] is pure and reports every violated rule. The rule set is
// picked explicitly with [ProfileStandard] or [ProfileStrict]; the two are
// never merged.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other mtAuth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
