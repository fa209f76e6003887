package mtAuth

import (
	"errors"
	"strings"

	"github.com/MrEthical07/mtAuth/password"
)

var (
	// ErrInvalidCredentials is returned for a wrong password and for an unknown
	// email alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidOrExpiredToken covers malformed, expired, unknown and wrong-kind
	// tokens, pre-2FA and reset tokens included.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrInvalidTwoFactorCode is an exported constant or variable used by the authentication engine.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	// ErrWeakPassword is wrapped by *WeakPasswordError.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrUserAlreadyExists is an exported constant or variable used by the authentication engine.
	ErrUserAlreadyExists = errors.New("username already exists")
	// ErrEmailAlreadyExists is an exported constant or variable used by the authentication engine.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidEmailFormat is an exported constant or variable used by the authentication engine.
	ErrInvalidEmailFormat = errors.New("invalid email format")
	// ErrInvalidUsernameFormat is an exported constant or variable used by the authentication engine.
	ErrInvalidUsernameFormat = errors.New("invalid username format")
	// ErrTwoFactorAlreadyEnabled is an exported constant or variable used by the authentication engine.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrTwoFactorNotEnabled is an exported constant or variable used by the authentication engine.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrTwoFactorNotSetUp is returned by EnableTwoFactor before SetupTwoFactor.
	// At the HTTP boundary it renders like ErrInvalidTwoFactorCode.
	ErrTwoFactorNotSetUp = errors.New("two-factor not set up")
	// ErrNotFound is returned by CredentialStore implementations on a miss.
	ErrNotFound = errors.New("credential not found")
	// ErrInternal hides store, hashing and signing failures from callers. The
	// cause is logged.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRateLimited is returned by throttled operations other than login.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidConfig is an exported constant or variable used by the authentication engine.
	ErrInvalidConfig = errors.New("invalid config")
)

// WeakPasswordError lists every policy rule a candidate password violates.
type WeakPasswordError struct {
	Violations []password.Violation
}

func (e *WeakPasswordError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return ErrWeakPassword.Error()
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, string(v))
	}
	return ErrWeakPassword.Error() + ": " + strings.Join(parts, ", ")
}

// Unwrap makes errors.Is(err, ErrWeakPassword) hold.
func (e *WeakPasswordError) Unwrap() error {
	return ErrWeakPassword
}

// Messages returns the human-readable text of each violation.
func (e *WeakPasswordError) Messages() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Message())
	}
	return out
}

func newWeakPasswordError(violations []password.Violation) error {
	cp := make([]password.Violation, len(violations))
	copy(cp, violations)
	return &WeakPasswordError{Violations: cp}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
