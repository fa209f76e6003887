package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/mtAuth/internal/audit"
)

// TwoFactorSetup is returned once by setup; the plaintext is never stored.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	ManualEntryKey  string
	BackupCodes     []string
}

// TwoFactorMetrics carries metric IDs for the 2FA management flows.
type TwoFactorMetrics struct {
	SetupSuccess      int
	EnableSuccess     int
	EnableFailure     int
	DisableSuccess    int
	DisableFailure    int
	BackupRegenerated int
}

// TwoFactorDeps captures 2FA setup, enable, disable and backup renewal
// dependencies.
type TwoFactorDeps struct {
	Env

	Issuer          string
	BackupCodeCount int

	GenerateSecret      func() (string, error)
	ProvisioningURI     func(secret, account, issuer string) (string, error)
	FormatManualKey     func(string) string
	SealSecret          func(string) (string, error)
	OpenSecret          func(string) (string, error)
	VerifyTOTP          func(secret, code string, at time.Time) bool
	GenerateBackupCodes func(int) (plain, hashed []string, err error)
	SendBackupCodes     func(ctx context.Context, email string, codes []string) error

	Metrics TwoFactorMetrics
}

var (
	errTwoFactorEnabled    = errors.New("two-factor already enabled")
	errTwoFactorDisabled   = errors.New("two-factor not enabled")
	errTwoFactorNoSecret   = errors.New("two-factor not set up")
	errTwoFactorBadCode    = errors.New("two-factor code rejected")
	errTwoFactorOpenSecret = errors.New("two-factor secret unreadable")
)

func normalizeTwoFactorDeps(deps *TwoFactorDeps) {
	normalizeEnv(&deps.Env)
	if deps.BackupCodeCount <= 0 {
		deps.BackupCodeCount = 8
	}
	if deps.FormatManualKey == nil {
		deps.FormatManualKey = func(s string) string { return s }
	}
}

// RunSetupTwoFactor mints a secret and a backup batch for an account whose
// second factor is still off. The secret and hashes are persisted with the
// flag left false; enabling is a separate step.
func RunSetupTwoFactor(ctx context.Context, userID string, deps TwoFactorDeps) (*TwoFactorSetup, error) {
	normalizeTwoFactorDeps(&deps)
	if !deps.storeReady() || deps.GenerateSecret == nil || deps.ProvisioningURI == nil ||
		deps.SealSecret == nil || deps.GenerateBackupCodes == nil {
		return nil, deps.Errors.EngineNotReady
	}

	cred, err := deps.loadByID(ctx, "2fa setup: load credential", userID, deps.Errors.NotFound)
	if err != nil {
		return nil, err
	}
	if cred.TwoFactorEnabled {
		deps.emitAuthFailure(ctx, KindTwoFactorSetup, cred, ReasonAlreadyEnabled)
		return nil, deps.Errors.TwoFactorAlreadyEnabled
	}

	secret, err := deps.GenerateSecret()
	if err != nil {
		return nil, deps.internal(ctx, "2fa setup: generate secret", err)
	}
	uri, err := deps.ProvisioningURI(secret, cred.Email, deps.Issuer)
	if err != nil {
		return nil, deps.internal(ctx, "2fa setup: provisioning uri", err)
	}
	plain, hashed, err := deps.GenerateBackupCodes(deps.BackupCodeCount)
	if err != nil {
		return nil, deps.internal(ctx, "2fa setup: backup codes", err)
	}
	sealed, err := deps.SealSecret(secret)
	if err != nil {
		return nil, deps.internal(ctx, "2fa setup: seal secret", err)
	}

	updated, err := deps.Update(ctx, userID, func(c *Credential, _ time.Time) error {
		if c.TwoFactorEnabled {
			return errTwoFactorEnabled
		}
		c.TOTPSecret = sealed
		c.BackupCodes = hashed
		return nil
	})
	if errors.Is(err, errTwoFactorEnabled) {
		return nil, deps.Errors.TwoFactorAlreadyEnabled
	}
	if err != nil {
		return nil, deps.internal(ctx, "2fa setup: persist", err)
	}

	deps.MetricInc(deps.Metrics.SetupSuccess)
	deps.emitAuthSuccess(ctx, KindTwoFactorSetup, updated)
	return &TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: uri,
		ManualEntryKey:  deps.FormatManualKey(secret),
		BackupCodes:     plain,
	}, nil
}

// checkCode verifies a TOTP code against the sealed secret held by c.
func (deps *TwoFactorDeps) checkCode(c *Credential, code string, now time.Time) error {
	if c.TOTPSecret == "" {
		return errTwoFactorNoSecret
	}
	secret, err := deps.OpenSecret(c.TOTPSecret)
	if err != nil {
		return errors.Join(errTwoFactorOpenSecret, err)
	}
	if !deps.VerifyTOTP(secret, strings.TrimSpace(code), now) {
		return errTwoFactorBadCode
	}
	return nil
}

// RunEnableTwoFactor confirms the pending secret with a TOTP code and turns
// the second factor on. A wrong code does not count toward lockout.
func RunEnableTwoFactor(ctx context.Context, userID, code string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)
	if !deps.storeReady() || deps.OpenSecret == nil || deps.VerifyTOTP == nil {
		return deps.Errors.EngineNotReady
	}

	cred, err := deps.loadByID(ctx, "2fa enable: load credential", userID, deps.Errors.NotFound)
	if err != nil {
		return err
	}

	updated, err := deps.Update(ctx, userID, func(c *Credential, now time.Time) error {
		if c.TwoFactorEnabled {
			return errTwoFactorEnabled
		}
		if err := deps.checkCode(c, code, now); err != nil {
			return err
		}
		c.TwoFactorEnabled = true
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errTwoFactorEnabled):
		deps.emitAuthFailure(ctx, KindTwoFactorOn, cred, ReasonAlreadyEnabled)
		return deps.Errors.TwoFactorAlreadyEnabled
	case errors.Is(err, errTwoFactorNoSecret):
		deps.MetricInc(deps.Metrics.EnableFailure)
		deps.emitAuthFailure(ctx, KindTwoFactorOn, cred, ReasonNotSetUp)
		return deps.Errors.TwoFactorNotSetUp
	case errors.Is(err, errTwoFactorBadCode):
		deps.MetricInc(deps.Metrics.EnableFailure)
		deps.emitAuthFailure(ctx, KindTwoFactorOn, cred, ReasonInvalidCode)
		return deps.Errors.InvalidTwoFactorCode
	default:
		return deps.internal(ctx, "2fa enable: persist", err)
	}

	deps.MetricInc(deps.Metrics.EnableSuccess)
	deps.emitAuthSuccess(ctx, KindTwoFactorOn, updated)
	deps.emitSecurity(ctx, SecTwoFactorEnabled, updated.ID, "two-factor authentication enabled", audit.SeverityMedium)
	return nil
}

// RunDisableTwoFactor turns the second factor off after a valid TOTP code.
// Backup codes are not accepted here. Secret, codes and flag are cleared
// together.
func RunDisableTwoFactor(ctx context.Context, userID, code string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)
	if !deps.storeReady() || deps.OpenSecret == nil || deps.VerifyTOTP == nil {
		return deps.Errors.EngineNotReady
	}

	cred, err := deps.loadByID(ctx, "2fa disable: load credential", userID, deps.Errors.NotFound)
	if err != nil {
		return err
	}

	updated, err := deps.Update(ctx, userID, func(c *Credential, now time.Time) error {
		if !c.TwoFactorEnabled {
			return errTwoFactorDisabled
		}
		if err := deps.checkCode(c, code, now); err != nil {
			return err
		}
		c.TwoFactorEnabled = false
		c.TOTPSecret = ""
		c.BackupCodes = nil
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errTwoFactorDisabled):
		deps.emitAuthFailure(ctx, KindTwoFactorOff, cred, ReasonNotEnabled)
		return deps.Errors.TwoFactorNotEnabled
	case errors.Is(err, errTwoFactorBadCode):
		deps.MetricInc(deps.Metrics.DisableFailure)
		deps.emitAuthFailure(ctx, KindTwoFactorOff, cred, ReasonInvalidCode)
		return deps.Errors.InvalidTwoFactorCode
	default:
		return deps.internal(ctx, "2fa disable: persist", err)
	}

	deps.MetricInc(deps.Metrics.DisableSuccess)
	deps.emitAuthSuccess(ctx, KindTwoFactorOff, updated)
	deps.emitSecurity(ctx, SecTwoFactorDisabled, updated.ID, "two-factor authentication disabled", audit.SeverityHigh)
	return nil
}

// RunRegenerateBackupCodes replaces the backup batch after a valid TOTP code
// and mails the new plaintext codes to the account holder.
func RunRegenerateBackupCodes(ctx context.Context, userID, code string, deps TwoFactorDeps) ([]string, error) {
	normalizeTwoFactorDeps(&deps)
	if !deps.storeReady() || deps.OpenSecret == nil || deps.VerifyTOTP == nil || deps.GenerateBackupCodes == nil {
		return nil, deps.Errors.EngineNotReady
	}

	cred, err := deps.loadByID(ctx, "backup codes: load credential", userID, deps.Errors.NotFound)
	if err != nil {
		return nil, err
	}
	if !cred.TwoFactorEnabled {
		return nil, deps.Errors.TwoFactorNotEnabled
	}

	plain, hashed, err := deps.GenerateBackupCodes(deps.BackupCodeCount)
	if err != nil {
		return nil, deps.internal(ctx, "backup codes: generate", err)
	}

	updated, err := deps.Update(ctx, userID, func(c *Credential, now time.Time) error {
		if !c.TwoFactorEnabled {
			return errTwoFactorDisabled
		}
		if err := deps.checkCode(c, code, now); err != nil {
			return err
		}
		c.BackupCodes = hashed
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errTwoFactorDisabled):
		return nil, deps.Errors.TwoFactorNotEnabled
	case errors.Is(err, errTwoFactorBadCode):
		deps.emitAuthFailure(ctx, KindTwoFactorSetup, cred, ReasonInvalidCode)
		return nil, deps.Errors.InvalidTwoFactorCode
	default:
		return nil, deps.internal(ctx, "backup codes: persist", err)
	}

	if deps.SendBackupCodes != nil {
		if err := deps.SendBackupCodes(ctx, updated.Email, plain); err != nil {
			deps.Warn("mtauth: backup codes email failed", "user_id", updated.ID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.BackupRegenerated)
	deps.emitSecurity(ctx, SecBackupCodesRenewed, updated.ID, "backup codes regenerated", audit.SeverityMedium)
	return plain, nil
}
