// Package totp implements RFC 6238 time-based one-time passwords on top of
// github.com/pquerna/otp, plus single-use backup codes.
//
// Secrets are base32 without padding. Backup codes are eight digits and are
// persisted only as hashes produced by a CodeHasher.
package totp
