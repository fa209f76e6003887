package flows

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/password"
)

// PasswordResetDeps captures reset request and redeem dependencies.
type PasswordResetDeps struct {
	Env

	TTL         time.Duration
	FrontendURL string

	// CheckRequestLimiter throttles reset requests per email and client IP.
	CheckRequestLimiter func(ctx context.Context, email, ip string) error

	NewToken        func() (string, error)
	// CheckTokenShape rejects tokens that could never have been minted.
	CheckTokenShape func(string) error
	HashToken       func(string) string
	HashPassword    func(string) (string, error)
	ValidatePolicy  func(string) []password.Violation
	SendReset       func(ctx context.Context, email, link string) error

	Metrics PasswordMetrics
}

var errResetTokenExpired = errors.New("reset token expired")

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	normalizeEnv(&deps.Env)
	if deps.TTL <= 0 {
		deps.TTL = time.Hour
	}
}

// ResetLink builds the frontend link that carries token.
func ResetLink(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// RunRequestPasswordReset mints a reset token for a known email and mails the
// link. The caller sees the same nil result for unknown emails, throttled
// requests and delivery failures.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.GetByEmail == nil || !deps.storeReady() || deps.NewToken == nil ||
		deps.HashToken == nil || deps.SendReset == nil {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if email == "" {
		return deps.Errors.InvalidEmailFormat
	}
	deps.MetricInc(deps.Metrics.ResetRequested)

	if deps.CheckRequestLimiter != nil {
		if err := deps.CheckRequestLimiter(ctx, email, deps.ClientIPFromContext(ctx)); err != nil {
			deps.Warn("mtauth: password reset request throttled", "error", err)
			return nil
		}
	}

	cred, err := deps.GetByEmail(ctx, email)
	if err != nil {
		if !deps.IsNotFound(err) {
			deps.LogError(ctx, "password reset request: load credential", err)
		}
		return nil
	}

	token, err := deps.NewToken()
	if err != nil {
		deps.LogError(ctx, "password reset request: mint token", err)
		return nil
	}
	tokenHash := deps.HashToken(token)

	updated, err := deps.Update(ctx, cred.ID, func(c *Credential, now time.Time) error {
		expires := now.Add(deps.TTL)
		c.ResetTokenHash = tokenHash
		c.ResetTokenExpiresAt = &expires
		return nil
	})
	if err != nil {
		deps.LogError(ctx, "password reset request: persist token", err)
		return nil
	}

	if err := deps.SendReset(ctx, updated.Email, ResetLink(deps.FrontendURL, token)); err != nil {
		deps.Warn("mtauth: password reset email failed", "user_id", updated.ID, "error", err)
	}
	deps.emitSecurity(ctx, SecResetTokenRequested, updated.ID, "password reset requested", audit.SeverityLow)
	return nil
}

// RunRedeemPasswordReset sets a new password from a reset token. Unknown and
// expired tokens fail identically; an expired token is cleared.
func RunRedeemPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.GetByResetToken == nil || !deps.storeReady() || deps.HashToken == nil ||
		deps.HashPassword == nil || deps.ValidatePolicy == nil {
		return deps.Errors.EngineNotReady
	}

	token = strings.TrimSpace(token)
	if token == "" || (deps.CheckTokenShape != nil && deps.CheckTokenShape(token) != nil) {
		deps.MetricInc(deps.Metrics.ResetFailure)
		deps.emitAuthFailure(ctx, KindPasswordReset, nil, ReasonTokenInvalid)
		return deps.Errors.InvalidOrExpiredToken
	}

	if violations := deps.ValidatePolicy(newPassword); len(violations) > 0 {
		deps.MetricInc(deps.Metrics.ResetFailure)
		deps.emitAuthFailure(ctx, KindPasswordReset, nil, ReasonWeakPassword)
		return deps.Errors.WeakPassword(violations)
	}

	tokenHash := deps.HashToken(token)
	cred, err := deps.GetByResetToken(ctx, tokenHash)
	if err != nil {
		if !deps.IsNotFound(err) {
			return deps.internal(ctx, "password reset redeem: load credential", err)
		}
		deps.MetricInc(deps.Metrics.ResetFailure)
		deps.emitAuthFailure(ctx, KindPasswordReset, nil, ReasonTokenInvalid)
		return deps.Errors.InvalidOrExpiredToken
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return deps.internal(ctx, "password reset redeem: hash", err)
	}

	var expired bool
	updated, err := deps.Update(ctx, cred.ID, func(c *Credential, now time.Time) error {
		if c.ResetTokenHash != tokenHash {
			return errResetTokenExpired
		}
		if c.ResetTokenExpiresAt == nil || !now.Before(*c.ResetTokenExpiresAt) {
			expired = true
			c.clearResetToken()
			return nil
		}
		c.PasswordHash = hash
		c.PasswordChangedAt = &now
		c.clearResetToken()
		c.FailedLoginAttempts = 0
		c.LockedUntil = nil
		return nil
	})
	if errors.Is(err, errResetTokenExpired) {
		deps.MetricInc(deps.Metrics.ResetFailure)
		deps.emitAuthFailure(ctx, KindPasswordReset, cred, ReasonTokenInvalid)
		return deps.Errors.InvalidOrExpiredToken
	}
	if err != nil {
		return deps.internal(ctx, "password reset redeem: persist", err)
	}
	if expired {
		deps.MetricInc(deps.Metrics.ResetFailure)
		deps.emitAuthFailure(ctx, KindPasswordReset, updated, ReasonTokenExpired)
		return deps.Errors.InvalidOrExpiredToken
	}

	deps.MetricInc(deps.Metrics.ResetSuccess)
	deps.emitAuthSuccess(ctx, KindPasswordReset, updated)
	deps.emitSecurity(ctx, SecPasswordReset, updated.ID, "password reset via email token", audit.SeverityMedium)
	return nil
}
