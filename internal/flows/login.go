package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/internal/lockout"
	"github.com/MrEthical07/mtAuth/jwt"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	UserID            string
	SessionToken      string
	SessionID         string
	ExpiresAt         time.Time
	TwoFactorRequired bool
	PreAuthToken      string
}

// LoginMetrics carries metric IDs needed by login and second factor flows.
type LoginMetrics struct {
	LoginSuccess        int
	LoginFailure        int
	LoginLocked         int
	LoginRateLimited    int
	AccountLocked       int
	TwoFactorRequired   int
	SecondFactorSuccess int
	SecondFactorFailure int
	BackupCodeUsed      int
	PasswordUpgraded    int
}

// LoginDeps captures login and second factor dependencies.
type LoginDeps struct {
	Env

	Lockout        lockout.Policy
	UpgradeOnLogin bool

	CheckLoginRate     func(context.Context, string) error
	IncrementLoginRate func(context.Context, string) error
	ResetLoginRate     func(context.Context, string) error

	VerifyPassword       func(string, string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)

	IssueSession func(string) (jwt.Issued, error)
	IssuePreAuth func(string) (jwt.Issued, error)

	Metrics LoginMetrics
}

func normalizeLoginDeps(deps *LoginDeps) {
	normalizeEnv(&deps.Env)
	if deps.Lockout.Threshold <= 0 || deps.Lockout.Duration <= 0 {
		deps.Lockout = lockout.DefaultPolicy()
	}
}

// RunLogin checks email and password. Accounts without a second factor get a
// session; accounts with one get a short-lived pre-auth token instead.
func RunLogin(ctx context.Context, email, pass string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.GetByEmail == nil || !deps.storeReady() || deps.VerifyPassword == nil ||
		deps.IssueSession == nil || deps.IssuePreAuth == nil {
		return nil, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)
	email = NormalizeEmail(email)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, ip); err != nil {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			ev := deps.authEvent(ctx, KindLogin, nil)
			ev.Email = email
			ev.FailureReason = ReasonRateLimited
			deps.EmitAuth(ctx, ev)
			return nil, deps.Errors.LoginRateLimited
		}
	}

	if email == "" || pass == "" {
		deps.countRate(ctx, ip)
		deps.MetricInc(deps.Metrics.LoginFailure)
		ev := deps.authEvent(ctx, KindLogin, nil)
		ev.Email = email
		ev.FailureReason = ReasonEmptyInput
		deps.EmitAuth(ctx, ev)
		return nil, deps.Errors.InvalidCredentials
	}

	cred, err := deps.GetByEmail(ctx, email)
	if err != nil {
		if !deps.IsNotFound(err) {
			return nil, deps.internal(ctx, "login: load credential", err)
		}
		deps.countRate(ctx, ip)
		deps.MetricInc(deps.Metrics.LoginFailure)
		// Attempted emails for unknown accounts are not recorded.
		ev := deps.authEvent(ctx, KindLogin, nil)
		ev.FailureReason = ReasonUserNotFound
		deps.EmitAuth(ctx, ev)
		return nil, deps.Errors.InvalidCredentials
	}

	// Locked accounts are rejected before the password is looked at.
	var locked bool
	cred, err = deps.Update(ctx, cred.ID, func(c *Credential, now time.Time) error {
		st := c.lockoutState()
		locked = deps.Lockout.Evaluate(&st, now) == lockout.Locked
		c.setLockoutState(st)
		return nil
	})
	if err != nil {
		return nil, deps.internal(ctx, "login: evaluate lockout", err)
	}
	if locked {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.emitAuthFailure(ctx, KindLogin, cred, ReasonAccountLocked)
		return nil, deps.Errors.AccountLocked
	}

	ok, verr := deps.VerifyPassword(pass, cred.PasswordHash)
	if verr != nil {
		deps.Warn("mtauth: password verification error", "user_id", cred.ID, "error", verr)
	}
	if verr != nil || !ok {
		deps.countRate(ctx, ip)
		return nil, registerLoginFailure(ctx, KindLogin, cred, ReasonInvalidPassword, deps.Errors.InvalidCredentials, &deps)
	}

	if deps.UpgradeOnLogin {
		upgradePasswordHash(ctx, cred, pass, &deps)
	}
	pass = ""

	if cred.TwoFactorEnabled {
		issued, err := deps.IssuePreAuth(cred.ID)
		if err != nil {
			return nil, deps.internal(ctx, "login: issue pre-auth token", err)
		}
		deps.MetricInc(deps.Metrics.TwoFactorRequired)
		return &LoginResult{
			UserID:            cred.ID,
			TwoFactorRequired: true,
			PreAuthToken:      issued.Token,
			ExpiresAt:         issued.ExpiresAt,
		}, nil
	}

	return completeLogin(ctx, cred.ID, &deps)
}

// completeLogin re-checks the lock, resets the counter, stamps the login
// time and issues a session.
func completeLogin(ctx context.Context, userID string, deps *LoginDeps) (*LoginResult, error) {
	var locked bool
	cred, err := deps.Update(ctx, userID, func(c *Credential, now time.Time) error {
		st := c.lockoutState()
		if deps.Lockout.Evaluate(&st, now) == lockout.Locked {
			locked = true
			c.setLockoutState(st)
			return nil
		}
		deps.Lockout.Reset(&st)
		c.setLockoutState(st)
		c.LastLoginAt = &now
		return nil
	})
	if err != nil {
		return nil, deps.internal(ctx, "login: complete", err)
	}
	if locked {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.emitAuthFailure(ctx, KindLogin, cred, ReasonAccountLocked)
		return nil, deps.Errors.AccountLocked
	}
	return issueSession(ctx, cred, false, false, deps)
}

// issueSession signs the session token and records the successful login.
func issueSession(ctx context.Context, cred *Credential, twoFactor, backupCode bool, deps *LoginDeps) (*LoginResult, error) {
	issued, err := deps.IssueSession(cred.ID)
	if err != nil {
		return nil, deps.internal(ctx, "login: issue session", err)
	}
	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			deps.Warn("mtauth: login throttle reset failed", "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	ev := deps.authEvent(ctx, KindLogin, cred)
	ev.Success = true
	ev.SessionID = issued.ID
	ev.TwoFactorUsed = twoFactor
	ev.BackupCodeUsed = backupCode
	deps.EmitAuth(ctx, ev)

	return &LoginResult{
		UserID:       cred.ID,
		SessionToken: issued.Token,
		SessionID:    issued.ID,
		ExpiresAt:    issued.ExpiresAt,
	}, nil
}

// registerLoginFailure counts a failed attempt and reports the lock
// transition when this attempt reached the threshold.
func registerLoginFailure(ctx context.Context, kind string, cred *Credential, reason string, fail error, deps *LoginDeps) error {
	var alreadyLocked, lockedNow bool
	updated, err := deps.Update(ctx, cred.ID, func(c *Credential, now time.Time) error {
		st := c.lockoutState()
		if deps.Lockout.Evaluate(&st, now) == lockout.Locked {
			alreadyLocked = true
		} else {
			lockedNow = deps.Lockout.RegisterFailure(&st, now)
		}
		c.setLockoutState(st)
		return nil
	})
	if err != nil {
		return deps.internal(ctx, "login: register failure", err)
	}

	switch {
	case lockedNow:
		deps.MetricInc(deps.Metrics.AccountLocked)
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.emitAuthFailure(ctx, kind, updated, ReasonAccountLocked)
		deps.emitSecurity(ctx, SecAccountLocked, updated.ID,
			fmt.Sprintf("account locked after %d failed attempts", updated.FailedLoginAttempts),
			audit.SeverityHigh)
		return deps.Errors.AccountLocked
	case alreadyLocked:
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.emitAuthFailure(ctx, kind, updated, ReasonAccountLocked)
		return deps.Errors.AccountLocked
	default:
		if kind == KindLogin {
			deps.MetricInc(deps.Metrics.LoginFailure)
		} else {
			deps.MetricInc(deps.Metrics.SecondFactorFailure)
		}
		deps.emitAuthFailure(ctx, kind, updated, reason)
		return fail
	}
}

func upgradePasswordHash(ctx context.Context, cred *Credential, pass string, deps *LoginDeps) {
	if deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil {
		return
	}
	needs, err := deps.PasswordNeedsUpgrade(cred.PasswordHash)
	if err != nil || !needs {
		return
	}
	upgraded, err := deps.HashPassword(pass)
	if err != nil {
		deps.Warn("mtauth: password hash upgrade generation failed", "user_id", cred.ID, "error", err)
		return
	}
	previous := cred.PasswordHash
	_, err = deps.Update(ctx, cred.ID, func(c *Credential, _ time.Time) error {
		// a concurrent password change wins
		if c.PasswordHash != previous {
			return errHashChanged
		}
		c.PasswordHash = upgraded
		return nil
	})
	if err != nil {
		if !errors.Is(err, errHashChanged) {
			deps.Warn("mtauth: password hash upgrade update failed", "user_id", cred.ID, "error", err)
		}
		return
	}
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
}

var errHashChanged = errors.New("password hash changed concurrently")

func (deps *LoginDeps) countRate(ctx context.Context, ip string) {
	if deps.IncrementLoginRate == nil {
		return
	}
	if err := deps.IncrementLoginRate(ctx, ip); err != nil {
		deps.Warn("mtauth: login throttle increment failed", "error", err)
	}
}
