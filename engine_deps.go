package mtAuth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/mtAuth/internal"
	internalflows "github.com/MrEthical07/mtAuth/internal/flows"
	"github.com/MrEthical07/mtAuth/internal/lockout"
	"github.com/MrEthical07/mtAuth/internal/validation"
	"github.com/MrEthical07/mtAuth/totp"
)

func (e *Engine) buildFlowService() internalflows.Service {
	env := e.flowEnv()
	login := e.loginFlowDeps(env)

	return internalflows.New(internalflows.Deps{
		Login:          login,
		SecondFactor:   e.secondFactorFlowDeps(login),
		TwoFactor:      e.twoFactorFlowDeps(env),
		ChangePassword: e.changePasswordFlowDeps(env),
		PasswordReset:  e.passwordResetFlowDeps(env),
		Register:       e.registerFlowDeps(env),
		AccountStatus: internalflows.AccountStatusDeps{
			Env:          env,
			Lockout:      e.lockoutPolicy(),
			UnlockMetric: int(MetricAccountUnlocked),
		},
		Session: internalflows.SessionDeps{
			Env:    env,
			Decode: e.tokens.Decode,
		},
	})
}

func (e *Engine) flowEnv() internalflows.Env {
	return internalflows.Env{
		Now:                  e.now,
		ClientIPFromContext:  clientIPFromContext,
		UserAgentFromContext: userAgentFromContext,

		GetByEmail:      e.store.GetByEmail,
		GetByID:         e.store.GetByID,
		GetByResetToken: e.store.GetByResetToken,
		Create:          e.store.Create,
		Update:          e.store.Update,
		IsNotFound:      isNotFound,

		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAuth:     e.audit.EmitAuth,
		EmitSecurity: e.audit.EmitSecurity,
		LogError:     e.logError,
		Warn:         e.warn,

		Errors: internalflows.Errors{
			EngineNotReady:          ErrEngineNotReady,
			InvalidCredentials:      ErrInvalidCredentials,
			AccountLocked:           ErrAccountLocked,
			InvalidOrExpiredToken:   ErrInvalidOrExpiredToken,
			InvalidTwoFactorCode:    ErrInvalidTwoFactorCode,
			TwoFactorAlreadyEnabled: ErrTwoFactorAlreadyEnabled,
			TwoFactorNotEnabled:     ErrTwoFactorNotEnabled,
			TwoFactorNotSetUp:       ErrTwoFactorNotSetUp,
			UserAlreadyExists:       ErrUserAlreadyExists,
			EmailAlreadyExists:      ErrEmailAlreadyExists,
			InvalidEmailFormat:      ErrInvalidEmailFormat,
			InvalidUsernameFormat:   ErrInvalidUsernameFormat,
			NotFound:                ErrNotFound,
			Internal:                ErrInternal,
			LoginRateLimited:        ErrLoginRateLimited,
			RateLimited:             ErrRateLimited,
			WeakPassword:            newWeakPasswordError,
		},
	}
}

func (e *Engine) lockoutPolicy() lockout.Policy {
	return lockout.Policy{
		Threshold: e.config.Lockout.Threshold,
		Duration:  e.config.Lockout.Duration,
	}
}

func (e *Engine) loginFlowDeps(env internalflows.Env) internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		Env:            env,
		Lockout:        e.lockoutPolicy(),
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,

		VerifyPassword:       e.passwords.Verify,
		PasswordNeedsUpgrade: e.passwords.NeedsUpgrade,
		HashPassword:         e.passwords.Hash,

		IssueSession: e.tokens.IssueSession,
		IssuePreAuth: e.tokens.IssuePreAuth,

		Metrics: internalflows.LoginMetrics{
			LoginSuccess:        int(MetricLoginSuccess),
			LoginFailure:        int(MetricLoginFailure),
			LoginLocked:         int(MetricLoginLocked),
			LoginRateLimited:    int(MetricLoginRateLimited),
			AccountLocked:       int(MetricAccountLocked),
			TwoFactorRequired:   int(MetricTwoFactorRequired),
			SecondFactorSuccess: int(MetricSecondFactorSuccess),
			SecondFactorFailure: int(MetricSecondFactorFailure),
			BackupCodeUsed:      int(MetricBackupCodeUsed),
			PasswordUpgraded:    int(MetricPasswordUpgraded),
		},
	}
	if e.loginLimiter != nil {
		deps.CheckLoginRate = e.loginLimiter.CheckLogin
		deps.IncrementLoginRate = e.loginLimiter.IncrementLogin
		deps.ResetLoginRate = e.loginLimiter.ResetLogin
	}
	return deps
}

func (e *Engine) secondFactorFlowDeps(login internalflows.LoginDeps) internalflows.SecondFactorDeps {
	return internalflows.SecondFactorDeps{
		LoginDeps:  login,
		Decode:     e.tokens.Decode,
		OpenSecret: e.secrets.Open,
		VerifyTOTP: e.totp.Verify,
		CodeAt:     e.totp.CodeAt,
		ConsumeBackupCode: func(hashed []string, code string) ([]string, bool, error) {
			return totp.ConsumeBackupCode(hashed, code, e.backupHasher)
		},
		BackupCodeDigits:   totp.BackupCodeDigits,
		AllowEmailDelivery: e.config.TOTP.AllowEmailDelivery,
		SendTOTPCode:       e.sendTOTPCode,
	}
}

func (e *Engine) twoFactorFlowDeps(env internalflows.Env) internalflows.TwoFactorDeps {
	return internalflows.TwoFactorDeps{
		Env:             env,
		Issuer:          e.config.TOTP.Issuer,
		BackupCodeCount: e.config.TOTP.BackupCodeCount,

		GenerateSecret:  e.totp.GenerateSecret,
		ProvisioningURI: e.totp.ProvisioningURI,
		FormatManualKey: totp.FormatManualKey,
		SealSecret:      e.secrets.Seal,
		OpenSecret:      e.secrets.Open,
		VerifyTOTP:      e.totp.Verify,
		GenerateBackupCodes: func(n int) ([]string, []string, error) {
			return totp.GenerateBackupCodes(n, e.backupHasher)
		},
		SendBackupCodes: e.sendBackupCodes,

		Metrics: internalflows.TwoFactorMetrics{
			SetupSuccess:      int(MetricTwoFactorSetup),
			EnableSuccess:     int(MetricTwoFactorEnabled),
			EnableFailure:     int(MetricTwoFactorEnableFailure),
			DisableSuccess:    int(MetricTwoFactorDisabled),
			DisableFailure:    int(MetricTwoFactorDisableFailure),
			BackupRegenerated: int(MetricBackupCodesRegenerated),
		},
	}
}

func (e *Engine) passwordMetrics() internalflows.PasswordMetrics {
	return internalflows.PasswordMetrics{
		ChangeSuccess:  int(MetricPasswordChangeSuccess),
		ChangeFailure:  int(MetricPasswordChangeFailure),
		ResetRequested: int(MetricPasswordResetRequest),
		ResetSuccess:   int(MetricPasswordResetSuccess),
		ResetFailure:   int(MetricPasswordResetFailure),
	}
}

func (e *Engine) changePasswordFlowDeps(env internalflows.Env) internalflows.ChangePasswordDeps {
	return internalflows.ChangePasswordDeps{
		Env:            env,
		VerifyPassword: e.passwords.Verify,
		HashPassword:   e.passwords.Hash,
		ValidatePolicy: e.policy.Validate,
		Metrics:        e.passwordMetrics(),
	}
}

func (e *Engine) passwordResetFlowDeps(env internalflows.Env) internalflows.PasswordResetDeps {
	deps := internalflows.PasswordResetDeps{
		Env:             env,
		TTL:             e.config.PasswordReset.TokenTTL,
		FrontendURL:     e.config.PasswordReset.FrontendURL,
		NewToken:        internal.NewResetToken,
		CheckTokenShape: internal.CheckResetToken,
		HashToken:       internal.HashResetToken,
		HashPassword:    e.passwords.Hash,
		ValidatePolicy:  e.policy.Validate,
		SendReset:       e.sendPasswordReset,
		Metrics:         e.passwordMetrics(),
	}
	if e.resetLimiter != nil {
		deps.CheckRequestLimiter = e.resetLimiter.CheckRequest
	}
	return deps
}

func (e *Engine) registerFlowDeps(env internalflows.Env) internalflows.RegisterDeps {
	deps := internalflows.RegisterDeps{
		Env:              env,
		DefaultRole:      e.config.Account.DefaultRole,
		ValidateUsername: validation.Username,
		ValidateEmail:    validation.Email,
		ValidatePolicy:   e.policy.Validate,
		HashPassword:     e.passwords.Hash,
		NewID:            uuid.NewString,
		IsDuplicate: func(err error) error {
			switch {
			case errors.Is(err, ErrUserAlreadyExists):
				return ErrUserAlreadyExists
			case errors.Is(err, ErrEmailAlreadyExists):
				return ErrEmailAlreadyExists
			default:
				return nil
			}
		},
		Metrics: internalflows.AccountMetrics{
			RegisterSuccess:     int(MetricRegisterSuccess),
			RegisterFailure:     int(MetricRegisterFailure),
			RegisterDuplicate:   int(MetricRegisterDuplicate),
			RegisterRateLimited: int(MetricRegisterRateLimited),
		},
	}
	if e.registerLimiter != nil {
		deps.CheckRegisterLimiter = e.registerLimiter.Enforce
	}
	return deps
}

/*
====================================
MAIL
====================================
*/

func (e *Engine) sendPasswordReset(ctx context.Context, email, link string) error {
	if e.mailer == nil {
		e.warn("mtauth: no mailer configured, password reset email dropped", "email", email)
		return nil
	}
	return e.withMailTimeout(ctx, func(ctx context.Context) error {
		return e.mailer.SendPasswordReset(ctx, email, link)
	})
}

func (e *Engine) sendBackupCodes(ctx context.Context, email string, codes []string) error {
	if e.mailer == nil {
		e.warn("mtauth: no mailer configured, backup codes email dropped", "email", email)
		return nil
	}
	return e.withMailTimeout(ctx, func(ctx context.Context) error {
		return e.mailer.SendBackupCodes(ctx, email, codes)
	})
}

func (e *Engine) sendTOTPCode(ctx context.Context, email, code string) error {
	if e.mailer == nil {
		e.warn("mtauth: no mailer configured, totp code email dropped", "email", email)
		return nil
	}
	return e.withMailTimeout(ctx, func(ctx context.Context) error {
		return e.mailer.SendTOTPCode(ctx, email, code)
	})
}

const mailTimeout = 10 * time.Second

func (e *Engine) withMailTimeout(ctx context.Context, send func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	return send(ctx)
}
