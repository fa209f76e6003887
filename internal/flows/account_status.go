package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/internal/lockout"
	"github.com/MrEthical07/mtAuth/jwt"
)

// LockoutInfo is the evaluated lock state of one account.
type LockoutInfo struct {
	Locked         bool
	FailedAttempts int
	LockedUntil    *time.Time
	Remaining      time.Duration
}

// AccountStatusDeps captures lockout query and unlock dependencies.
type AccountStatusDeps struct {
	Env

	Lockout lockout.Policy

	UnlockMetric int
}

// RunLockoutStatus evaluates the lock of userID, persisting a lazy clear of
// an elapsed lock.
func RunLockoutStatus(ctx context.Context, userID string, deps AccountStatusDeps) (LockoutInfo, error) {
	normalizeEnv(&deps.Env)
	if !deps.storeReady() {
		return LockoutInfo{}, deps.Errors.EngineNotReady
	}
	if deps.Lockout.Threshold <= 0 || deps.Lockout.Duration <= 0 {
		deps.Lockout = lockout.DefaultPolicy()
	}
	if _, err := deps.loadByID(ctx, "lockout status: load credential", userID, deps.Errors.NotFound); err != nil {
		return LockoutInfo{}, err
	}

	var info LockoutInfo
	_, err := deps.Update(ctx, userID, func(c *Credential, now time.Time) error {
		st := c.lockoutState()
		info.Locked = deps.Lockout.Evaluate(&st, now) == lockout.Locked
		c.setLockoutState(st)
		info.FailedAttempts = st.FailedAttempts
		info.LockedUntil = cloneTime(st.LockedUntil)
		info.Remaining = deps.Lockout.Remaining(st, now)
		return nil
	})
	if err != nil {
		return LockoutInfo{}, deps.internal(ctx, "lockout status: evaluate", err)
	}
	return info, nil
}

// RunUnlockAccount clears the failure counter and any lock.
func RunUnlockAccount(ctx context.Context, userID string, deps AccountStatusDeps) error {
	normalizeEnv(&deps.Env)
	if !deps.storeReady() {
		return deps.Errors.EngineNotReady
	}
	if _, err := deps.loadByID(ctx, "unlock: load credential", userID, deps.Errors.NotFound); err != nil {
		return err
	}

	var wasLocked bool
	updated, err := deps.Update(ctx, userID, func(c *Credential, now time.Time) error {
		wasLocked = c.LockedUntil != nil && now.Before(*c.LockedUntil)
		c.FailedLoginAttempts = 0
		c.LockedUntil = nil
		return nil
	})
	if err != nil {
		return deps.internal(ctx, "unlock: persist", err)
	}

	if wasLocked {
		deps.MetricInc(deps.UnlockMetric)
		deps.emitSecurity(ctx, SecAccountUnlocked, updated.ID, "account unlocked by administrator", audit.SeverityMedium)
	}
	return nil
}

// SessionDeps captures session token validation dependencies.
type SessionDeps struct {
	Env

	Decode func(string) jwt.DecodeResult
}

// SessionClaims is the validated content of a session token.
type SessionClaims struct {
	UserID    string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RunValidateSession decodes a session token. Pre-auth tokens are rejected.
func RunValidateSession(_ context.Context, token string, deps SessionDeps) (*SessionClaims, error) {
	normalizeEnv(&deps.Env)
	if deps.Decode == nil {
		return nil, deps.Errors.EngineNotReady
	}
	res := deps.Decode(token)
	if res.Status != jwt.StatusOK || res.Claims == nil || res.Claims.PreAuth {
		return nil, deps.Errors.InvalidOrExpiredToken
	}
	out := &SessionClaims{
		UserID:    res.Claims.Subject,
		SessionID: res.Claims.ID,
	}
	if res.Claims.IssuedAt != nil {
		out.IssuedAt = res.Claims.IssuedAt.Time
	}
	if res.Claims.ExpiresAt != nil {
		out.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return out, nil
}
