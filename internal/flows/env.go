package flows

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/password"
)

// Auth event kinds.
const (
	KindLogin          = "login"
	KindSecondFactor   = "2fa_verify"
	KindRegister       = "register"
	KindPasswordChange = "password_change"
	KindPasswordReset  = "password_reset"
	KindTwoFactorSetup = "2fa_setup"
	KindTwoFactorOn    = "2fa_enable"
	KindTwoFactorOff   = "2fa_disable"
)

// Security event kinds.
const (
	SecAccountLocked       = "account_locked"
	SecAccountUnlocked     = "account_unlocked"
	SecPasswordChanged     = "password_changed"
	SecPasswordReset       = "password_reset"
	SecTwoFactorEnabled    = "2fa_enabled"
	SecTwoFactorDisabled   = "2fa_disabled"
	SecBackupCodesRenewed  = "backup_codes_regenerated"
	SecBackupCodeUsed      = "backup_code_used"
	SecResetTokenRequested = "password_reset_requested"
)

// Failure reasons recorded on auth events.
const (
	ReasonUserNotFound    = "user_not_found"
	ReasonInvalidPassword = "invalid_password"
	ReasonAccountLocked   = "account_locked"
	ReasonRateLimited     = "rate_limited"
	ReasonEmptyInput      = "empty_input"
	ReasonTokenExpired    = "token_expired"
	ReasonTokenInvalid    = "token_invalid"
	ReasonInvalidCode     = "invalid_code"
	ReasonWeakPassword    = "weak_password"
	ReasonDuplicate       = "duplicate"
	ReasonInvalidInput    = "invalid_input"
	ReasonNotSetUp        = "not_set_up"
	ReasonAlreadyEnabled  = "already_enabled"
	ReasonNotEnabled      = "not_enabled"
	ReasonInternal        = "internal"
)

// Errors is the host sentinel table shared by every flow.
type Errors struct {
	EngineNotReady          error
	InvalidCredentials      error
	AccountLocked           error
	InvalidOrExpiredToken   error
	InvalidTwoFactorCode    error
	TwoFactorAlreadyEnabled error
	TwoFactorNotEnabled     error
	TwoFactorNotSetUp       error
	UserAlreadyExists       error
	EmailAlreadyExists      error
	InvalidEmailFormat      error
	InvalidUsernameFormat   error
	NotFound                error
	Internal                error
	LoginRateLimited        error
	RateLimited             error

	// WeakPassword wraps policy violations into the host error type.
	WeakPassword func([]password.Violation) error
}

// Env carries the dependencies every flow needs: the credential store,
// request context accessors, the clock and the observability hooks.
type Env struct {
	Now                  func() time.Time
	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string

	GetByEmail      func(context.Context, string) (*Credential, error)
	GetByID         func(context.Context, string) (*Credential, error)
	GetByResetToken func(context.Context, string) (*Credential, error)
	Create          func(context.Context, *Credential) error
	Update          func(context.Context, string, func(*Credential, time.Time) error) (*Credential, error)
	IsNotFound      func(error) bool

	MetricInc    func(int)
	EmitAuth     func(context.Context, audit.AuthEvent)
	EmitSecurity func(context.Context, audit.SecurityEvent)
	LogError     func(context.Context, string, error)
	Warn         func(string, ...any)

	Errors Errors
}

func normalizeEnv(env *Env) {
	if env.Now == nil {
		env.Now = time.Now
	}
	if env.ClientIPFromContext == nil {
		env.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if env.UserAgentFromContext == nil {
		env.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if env.IsNotFound == nil {
		env.IsNotFound = func(error) bool { return false }
	}
	if env.MetricInc == nil {
		env.MetricInc = func(int) {}
	}
	if env.EmitAuth == nil {
		env.EmitAuth = func(context.Context, audit.AuthEvent) {}
	}
	if env.EmitSecurity == nil {
		env.EmitSecurity = func(context.Context, audit.SecurityEvent) {}
	}
	if env.LogError == nil {
		env.LogError = func(context.Context, string, error) {}
	}
	if env.Warn == nil {
		env.Warn = func(string, ...any) {}
	}
	if env.Errors.WeakPassword == nil {
		fallback := env.Errors.InvalidCredentials
		env.Errors.WeakPassword = func([]password.Violation) error { return fallback }
	}
}

func (env *Env) storeReady() bool {
	return env.GetByID != nil && env.Update != nil
}

// internal logs err with full detail and returns the opaque sentinel.
func (env *Env) internal(ctx context.Context, op string, err error) error {
	env.LogError(ctx, op, err)
	return env.Errors.Internal
}

func (env *Env) authEvent(ctx context.Context, kind string, c *Credential) audit.AuthEvent {
	ev := audit.AuthEvent{
		Timestamp: env.Now().UTC(),
		Kind:      kind,
		IP:        env.ClientIPFromContext(ctx),
		UserAgent: env.UserAgentFromContext(ctx),
	}
	if c != nil {
		ev.UserID = c.ID
		ev.Username = c.Username
		ev.Email = c.Email
	}
	return ev
}

func (env *Env) emitAuthFailure(ctx context.Context, kind string, c *Credential, reason string) {
	ev := env.authEvent(ctx, kind, c)
	ev.FailureReason = reason
	env.EmitAuth(ctx, ev)
}

func (env *Env) emitAuthSuccess(ctx context.Context, kind string, c *Credential) {
	ev := env.authEvent(ctx, kind, c)
	ev.Success = true
	env.EmitAuth(ctx, ev)
}

func (env *Env) emitSecurity(ctx context.Context, kind, userID, description string, severity audit.Severity) {
	env.EmitSecurity(ctx, audit.SecurityEvent{
		Timestamp:   env.Now().UTC(),
		Kind:        kind,
		UserID:      userID,
		Description: description,
		Severity:    severity,
		IP:          env.ClientIPFromContext(ctx),
		UserAgent:   env.UserAgentFromContext(ctx),
	})
}

// loadByID maps a store miss to notFound and any other failure to Internal.
func (env *Env) loadByID(ctx context.Context, op, userID string, notFound error) (*Credential, error) {
	if userID == "" {
		return nil, notFound
	}
	c, err := env.GetByID(ctx, userID)
	if err != nil {
		if env.IsNotFound(err) {
			return nil, notFound
		}
		return nil, env.internal(ctx, op, err)
	}
	return c, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
