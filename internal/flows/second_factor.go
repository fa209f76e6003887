package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/internal/lockout"
	"github.com/MrEthical07/mtAuth/jwt"
)

// SecondFactorDeps extends LoginDeps with token decoding and code checks.
type SecondFactorDeps struct {
	LoginDeps

	Decode            func(string) jwt.DecodeResult
	OpenSecret        func(string) (string, error)
	VerifyTOTP        func(secret, code string, at time.Time) bool
	CodeAt            func(secret string, at time.Time) (string, error)
	ConsumeBackupCode func(hashed []string, code string) ([]string, bool, error)
	BackupCodeDigits  int

	AllowEmailDelivery bool
	SendTOTPCode       func(ctx context.Context, email, code string) error
}

var errLockedDuringVerify = errors.New("account locked")

func normalizeSecondFactorDeps(deps *SecondFactorDeps) {
	normalizeLoginDeps(&deps.LoginDeps)
	if deps.BackupCodeDigits <= 0 {
		deps.BackupCodeDigits = 8
	}
}

// decodePreAuth returns the subject of a valid pre-auth token.
func (deps *SecondFactorDeps) decodePreAuth(token string) (string, string, bool) {
	res := deps.Decode(token)
	switch res.Status {
	case jwt.StatusOK:
		if res.Claims == nil || !res.Claims.PreAuth || res.Claims.Subject == "" {
			return "", ReasonTokenInvalid, false
		}
		return res.Claims.Subject, "", true
	case jwt.StatusExpired:
		return "", ReasonTokenExpired, false
	default:
		return "", ReasonTokenInvalid, false
	}
}

// RunVerifySecondFactor completes a login that stopped at the second factor.
// A TOTP code is tried first; an input shaped like a backup code is then
// checked against the stored hashes and consumed in the same update.
func RunVerifySecondFactor(ctx context.Context, preAuthToken, code string, deps SecondFactorDeps) (*LoginResult, error) {
	normalizeSecondFactorDeps(&deps)
	if !deps.storeReady() || deps.Decode == nil || deps.IssueSession == nil ||
		deps.OpenSecret == nil || deps.VerifyTOTP == nil {
		return nil, deps.Errors.EngineNotReady
	}

	userID, reason, ok := deps.decodePreAuth(preAuthToken)
	if !ok {
		deps.MetricInc(deps.Metrics.SecondFactorFailure)
		deps.emitAuthFailure(ctx, KindSecondFactor, nil, reason)
		return nil, deps.Errors.InvalidOrExpiredToken
	}

	cred, err := deps.loadByID(ctx, "2fa verify: load credential", userID, deps.Errors.InvalidOrExpiredToken)
	if err != nil {
		return nil, err
	}
	if !cred.TwoFactorEnabled {
		deps.emitAuthFailure(ctx, KindSecondFactor, cred, ReasonNotEnabled)
		return nil, deps.Errors.InvalidOrExpiredToken
	}

	code = strings.TrimSpace(code)
	var (
		usedBackup  bool
		lockedNow   bool
		rejected    bool
		remaining   int
		internalErr error
	)
	updated, err := deps.Update(ctx, userID, func(c *Credential, now time.Time) error {
		st := c.lockoutState()
		if deps.Lockout.Evaluate(&st, now) == lockout.Locked {
			c.setLockoutState(st)
			return errLockedDuringVerify
		}

		matched := false
		if c.TOTPSecret != "" {
			secret, err := deps.OpenSecret(c.TOTPSecret)
			if err != nil {
				internalErr = err
				return err
			}
			matched = deps.VerifyTOTP(secret, code, now)
		}
		if !matched && deps.ConsumeBackupCode != nil && looksLikeBackupCode(code, deps.BackupCodeDigits) {
			left, ok, err := deps.ConsumeBackupCode(c.BackupCodes, code)
			if err != nil {
				internalErr = err
				return err
			}
			if ok {
				matched = true
				usedBackup = true
				c.BackupCodes = left
				remaining = len(left)
			}
		}

		if !matched {
			rejected = true
			lockedNow = deps.Lockout.RegisterFailure(&st, now)
			c.setLockoutState(st)
			return nil
		}
		deps.Lockout.Reset(&st)
		c.setLockoutState(st)
		c.LastLoginAt = &now
		return nil
	})
	switch {
	case errors.Is(err, errLockedDuringVerify):
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.emitAuthFailure(ctx, KindSecondFactor, cred, ReasonAccountLocked)
		return nil, deps.Errors.AccountLocked
	case internalErr != nil:
		return nil, deps.internal(ctx, "2fa verify: check code", internalErr)
	case err != nil:
		return nil, deps.internal(ctx, "2fa verify: update", err)
	}

	if rejected {
		if lockedNow {
			deps.MetricInc(deps.Metrics.AccountLocked)
			deps.MetricInc(deps.Metrics.LoginLocked)
			deps.emitAuthFailure(ctx, KindSecondFactor, updated, ReasonAccountLocked)
			deps.emitSecurity(ctx, SecAccountLocked, updated.ID,
				"account locked after repeated second factor failures", audit.SeverityHigh)
			return nil, deps.Errors.AccountLocked
		}
		deps.MetricInc(deps.Metrics.SecondFactorFailure)
		deps.emitAuthFailure(ctx, KindSecondFactor, updated, ReasonInvalidCode)
		return nil, deps.Errors.InvalidTwoFactorCode
	}

	deps.MetricInc(deps.Metrics.SecondFactorSuccess)
	if usedBackup {
		deps.MetricInc(deps.Metrics.BackupCodeUsed)
		deps.emitSecurity(ctx, SecBackupCodeUsed, updated.ID,
			backupCodeUsedDescription(remaining), audit.SeverityMedium)
	}
	return issueSession(ctx, updated, true, usedBackup, &deps.LoginDeps)
}

// RunEmailSecondFactorCode mails the current TOTP code to the account holder
// of a valid pre-auth token. Unknown tokens fail without sending anything.
func RunEmailSecondFactorCode(ctx context.Context, preAuthToken string, deps SecondFactorDeps) error {
	normalizeSecondFactorDeps(&deps)
	if !deps.AllowEmailDelivery {
		return deps.Errors.InvalidOrExpiredToken
	}
	if deps.GetByID == nil || deps.Decode == nil || deps.OpenSecret == nil ||
		deps.CodeAt == nil || deps.SendTOTPCode == nil {
		return deps.Errors.EngineNotReady
	}

	userID, _, ok := deps.decodePreAuth(preAuthToken)
	if !ok {
		return deps.Errors.InvalidOrExpiredToken
	}
	cred, err := deps.loadByID(ctx, "2fa email: load credential", userID, deps.Errors.InvalidOrExpiredToken)
	if err != nil {
		return err
	}
	if !cred.TwoFactorEnabled || cred.TOTPSecret == "" {
		return deps.Errors.InvalidOrExpiredToken
	}

	secret, err := deps.OpenSecret(cred.TOTPSecret)
	if err != nil {
		return deps.internal(ctx, "2fa email: open secret", err)
	}
	code, err := deps.CodeAt(secret, deps.Now())
	if err != nil {
		return deps.internal(ctx, "2fa email: generate code", err)
	}
	if err := deps.SendTOTPCode(ctx, cred.Email, code); err != nil {
		deps.Warn("mtauth: totp code email failed", "user_id", cred.ID, "error", err)
	}
	return nil
}

func looksLikeBackupCode(code string, digits int) bool {
	code = strings.ReplaceAll(code, "-", "")
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func backupCodeUsedDescription(remaining int) string {
	if remaining == 1 {
		return "backup code used, 1 code remaining"
	}
	return fmt.Sprintf("backup code used, %d codes remaining", remaining)
}
