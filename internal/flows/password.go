package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/password"
)

// PasswordMetrics carries metric IDs for password change and reset.
type PasswordMetrics struct {
	ChangeSuccess  int
	ChangeFailure  int
	ResetRequested int
	ResetSuccess   int
	ResetFailure   int
}

// ChangePasswordDeps captures change-password dependencies.
type ChangePasswordDeps struct {
	Env

	VerifyPassword func(string, string) (bool, error)
	HashPassword   func(string) (string, error)
	ValidatePolicy func(string) []password.Violation

	Metrics PasswordMetrics
}

var errPasswordHashMoved = errors.New("password changed concurrently")

// RunChangePassword replaces the password of an authenticated account after
// checking the current one and the policy.
func RunChangePassword(ctx context.Context, userID, current, next string, deps ChangePasswordDeps) error {
	normalizeEnv(&deps.Env)
	if !deps.storeReady() || deps.VerifyPassword == nil || deps.HashPassword == nil || deps.ValidatePolicy == nil {
		return deps.Errors.EngineNotReady
	}

	cred, err := deps.loadByID(ctx, "change password: load credential", userID, deps.Errors.NotFound)
	if err != nil {
		return err
	}

	ok, verr := deps.VerifyPassword(current, cred.PasswordHash)
	if verr != nil || !ok {
		deps.MetricInc(deps.Metrics.ChangeFailure)
		deps.emitAuthFailure(ctx, KindPasswordChange, cred, ReasonInvalidPassword)
		return deps.Errors.InvalidCredentials
	}

	if violations := deps.ValidatePolicy(next); len(violations) > 0 {
		deps.MetricInc(deps.Metrics.ChangeFailure)
		deps.emitAuthFailure(ctx, KindPasswordChange, cred, ReasonWeakPassword)
		return deps.Errors.WeakPassword(violations)
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return deps.internal(ctx, "change password: hash", err)
	}

	verified := cred.PasswordHash
	updated, err := deps.Update(ctx, userID, func(c *Credential, now time.Time) error {
		// the current password was checked against this hash
		if c.PasswordHash != verified {
			return errPasswordHashMoved
		}
		c.PasswordHash = hash
		c.PasswordChangedAt = &now
		return nil
	})
	if errors.Is(err, errPasswordHashMoved) {
		deps.MetricInc(deps.Metrics.ChangeFailure)
		return deps.Errors.InvalidCredentials
	}
	if err != nil {
		return deps.internal(ctx, "change password: persist", err)
	}

	deps.MetricInc(deps.Metrics.ChangeSuccess)
	deps.emitAuthSuccess(ctx, KindPasswordChange, updated)
	deps.emitSecurity(ctx, SecPasswordChanged, updated.ID, "password changed", audit.SeverityMedium)
	return nil
}
