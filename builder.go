package mtAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/internal/limiters"
	"github.com/MrEthical07/mtAuth/internal/rate"
	"github.com/MrEthical07/mtAuth/internal/secretbox"
	"github.com/MrEthical07/mtAuth/jwt"
	"github.com/MrEthical07/mtAuth/password"
	"github.com/MrEthical07/mtAuth/totp"
)

// Builder defines a public type used by mtAuth APIs.
//
// A Builder produces exactly one Engine; Build fails on reuse.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	mailer    Mailer
	auditSink AuditSink
	logger    *zap.Logger
	now       func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New starts from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the Redis-backed throttles enabled in the configuration.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the required persistence backend.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the outbound mailer. Without one, mail is logged and
// dropped.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default is zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the clock used for audit timestamps, tokens and TOTP
// verification. Lockout and reset expiry use the store's clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration and constructs every component. It
// fails when the store is missing, when ProductionMode enables a throttle
// without Redis, or when any component rejects its parameters.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	throttled := cfg.Security.EnableIPThrottle ||
		cfg.PasswordReset.EnableIPThrottle || cfg.PasswordReset.EnableEmailThrottle ||
		cfg.Account.EnableIPThrottle || cfg.Account.EnableEmailThrottle
	if b.redis == nil && throttled && cfg.Security.ProductionMode {
		return nil, errors.New("ProductionMode throttles require redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		store:   b.store,
		mailer:  b.mailer,
		logger:  logger,
		now:     now,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = audit.NoOpSink{}
	}
	if d := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink); d != nil {
		engine.dispatcher = d
		engine.audit = d
	} else {
		engine.audit = sink
	}

	// -------- THROTTLES --------
	if b.redis != nil {
		if cfg.Security.EnableIPThrottle {
			engine.loginLimiter = rate.New(b.redis, rate.Config{
				MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
				LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
			})
		}
		if cfg.PasswordReset.EnableIPThrottle || cfg.PasswordReset.EnableEmailThrottle {
			engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
				EnableEmailThrottle: cfg.PasswordReset.EnableEmailThrottle,
				EnableIPThrottle:    cfg.PasswordReset.EnableIPThrottle,
				Window:              cfg.PasswordReset.ThrottleWindow,
				MaxRequests:         cfg.PasswordReset.MaxRequests,
			})
		}
		if cfg.Account.EnableIPThrottle || cfg.Account.EnableEmailThrottle {
			engine.registerLimiter = limiters.NewRegisterLimiter(b.redis, limiters.RegisterConfig{
				EnableEmailThrottle: cfg.Account.EnableEmailThrottle,
				EnableIPThrottle:    cfg.Account.EnableIPThrottle,
				MaxAttempts:         cfg.Account.MaxAttempts,
				Cooldown:            cfg.Account.Cooldown,
			})
		}
	} else if throttled {
		logger.Warn("mtauth: throttles configured without redis, running unthrottled")
	}

	// -------- PASSWORD HASHING --------
	hasher, err := newPasswordHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	engine.passwords = hasher
	engine.policy = password.Policy{
		Profile:   cfg.Password.Policy,
		MinLength: cfg.Password.MinLength,
	}

	codeHasher, err := password.NewBcrypt(cfg.TOTP.BackupCodeCost)
	if err != nil {
		return nil, err
	}
	engine.backupHasher = codeHasher

	// -------- TOTP --------
	te, err := totp.New(totp.Config{
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.Period,
		Skew:      cfg.TOTP.Skew,
		Algorithm: cfg.TOTP.Algorithm,
	})
	if err != nil {
		return nil, err
	}
	engine.totp = te

	var box *secretbox.Box
	if len(cfg.Security.EncryptionKey) > 0 {
		box, err = secretbox.New(cfg.Security.EncryptionKey)
	} else {
		logger.Warn("mtauth: no encryption key configured, TOTP secrets sealed with an ephemeral key")
		box, err = secretbox.NewEphemeral()
	}
	if err != nil {
		return nil, err
	}
	engine.secrets = box

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		SessionTTL:    cfg.JWT.SessionTTL,
		PreAuthTTL:    cfg.JWT.PreAuthTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	engine.flow = engine.buildFlowService()
	b.built = true

	return engine, nil
}

// newPasswordHasher returns the primary hasher chained with the other
// algorithm so hashes written by either keep verifying.
func newPasswordHasher(cfg PasswordConfig) (*password.Chain, error) {
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	argon, err := password.NewArgon2(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if cfg.Algorithm == "bcrypt" {
		if err != nil {
			// argon2 parameters are only validated for the argon2id primary
			return password.NewChain(bc), nil
		}
		return password.NewChain(bc, argon), nil
	}
	if err != nil {
		return nil, err
	}
	return password.NewChain(argon, bc), nil
}
