package mtAuth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/internal/flows"
	"github.com/MrEthical07/mtAuth/internal/limiters"
	"github.com/MrEthical07/mtAuth/internal/rate"
	"github.com/MrEthical07/mtAuth/internal/secretbox"
	"github.com/MrEthical07/mtAuth/jwt"
	"github.com/MrEthical07/mtAuth/password"
	"github.com/MrEthical07/mtAuth/totp"
)

// Engine defines a public type used by mtAuth APIs.
//
// Engine is built once by [Builder.Build] and is safe for concurrent use.
// Every operation is a single logical request; all lockout and counter
// mutations go through CredentialStore.Update.
type Engine struct {
	config Config

	store  CredentialStore
	mailer Mailer
	logger *zap.Logger
	now    func() time.Time

	audit      AuditSink
	dispatcher *audit.Dispatcher
	metrics    *Metrics

	loginLimiter    *rate.Limiter
	resetLimiter    *limiters.PasswordResetLimiter
	registerLimiter *limiters.RegisterLimiter

	passwords    *password.Chain
	policy       password.Policy
	backupHasher *password.Bcrypt
	totp         *totp.Engine
	secrets      *secretbox.Box
	tokens       *jwt.Manager

	flow flows.Service
}

// Close drains the audit dispatcher. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil || e.dispatcher == nil {
		return
	}
	e.dispatcher.Close()
}

// AuditDropped returns the number of events the async dispatcher dropped
// because its buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.dispatcher == nil {
		return 0
	}
	return e.dispatcher.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// PasswordPolicy returns the active password policy, for callers that want
// to pre-validate input.
func (e *Engine) PasswordPolicy() password.Policy {
	return e.policy
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login checks email and password. An unknown email and a wrong password
// both return ErrInvalidCredentials. A locked account returns
// ErrAccountLocked before the password is examined. When the account has
// two-factor enabled the result carries TwoFactorRequired and a pre-2FA
// token instead of a session.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()
	}
	return e.flow.Login(ctx, email, pass)
}

// VerifySecondFactor describes the verifysecondfactor operation and its observable behavior.
//
// VerifySecondFactor exchanges a pre-2FA token and a TOTP or backup code for
// a session. Wrong codes count towards the account lockout. A consumed
// backup code cannot be used again.
func (e *Engine) VerifySecondFactor(ctx context.Context, preAuthToken, code string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.flow.VerifySecondFactor(ctx, preAuthToken, code)
}

// EmailSecondFactorCode mails the current TOTP code of the account behind a
// pre-2FA token. It is disabled unless TOTP.AllowEmailDelivery is set.
func (e *Engine) EmailSecondFactorCode(ctx context.Context, preAuthToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.flow.EmailSecondFactorCode(ctx, preAuthToken)
}

// ValidateSession decodes a session token. Pre-2FA tokens are rejected.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*SessionClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.flow.ValidateSession(ctx, token)
}

func (e *Engine) logError(ctx context.Context, op string, err error) {
	e.logger.Error("mtauth: internal error",
		zap.String("op", op),
		zap.String("ip", clientIPFromContext(ctx)),
		zap.Error(err),
	)
}

func (e *Engine) warn(msg string, kv ...any) {
	e.logger.Sugar().Warnw(msg, kv...)
}
