package mtAuth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrEthical07/mtAuth/password"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvJWTSecret          = "MTAUTH_JWT_SECRET"
	EnvJWTSessionTTL      = "MTAUTH_JWT_SESSION_TTL"
	EnvJWTPreAuthTTL      = "MTAUTH_JWT_PREAUTH_TTL"
	EnvJWTIssuer          = "MTAUTH_JWT_ISSUER"
	EnvJWTAudience        = "MTAUTH_JWT_AUDIENCE"
	EnvPasswordAlgorithm  = "MTAUTH_PASSWORD_ALGORITHM"
	EnvPasswordPolicy     = "MTAUTH_PASSWORD_POLICY"
	EnvPasswordMinLength  = "MTAUTH_PASSWORD_MIN_LENGTH"
	EnvTOTPIssuer         = "MTAUTH_TOTP_ISSUER"
	EnvTOTPSkew           = "MTAUTH_TOTP_SKEW"
	EnvTOTPEmailDelivery  = "MTAUTH_TOTP_EMAIL_DELIVERY"
	EnvLockoutThreshold   = "MTAUTH_LOCKOUT_THRESHOLD"
	EnvLockoutDuration    = "MTAUTH_LOCKOUT_DURATION"
	EnvResetTokenTTL      = "MTAUTH_RESET_TOKEN_TTL"
	EnvFrontendURL        = "MTAUTH_FRONTEND_URL"
	EnvDefaultRole        = "MTAUTH_DEFAULT_ROLE"
	EnvAuditEnabled       = "MTAUTH_AUDIT_ENABLED"
	EnvMetricsEnabled     = "MTAUTH_METRICS_ENABLED"
	EnvProductionMode     = "MTAUTH_PRODUCTION_MODE"
	EnvEncryptionKey      = "MTAUTH_ENCRYPTION_KEY"
	EnvLoginIPThrottle    = "MTAUTH_LOGIN_IP_THROTTLE"
	EnvMaxLoginAttempts   = "MTAUTH_MAX_LOGIN_ATTEMPTS"
	EnvLoginCooldown      = "MTAUTH_LOGIN_COOLDOWN"
	legacyJWTSecret       = "JWT_SECRET_KEY"
	legacyTOTPIssuer      = "TOTP_ISSUER_NAME"
	legacyMaxLogin        = "MAX_LOGIN_ATTEMPTS"
	legacyLockoutMinutes  = "LOCKOUT_DURATION_MINUTES"
	legacyMinPasswordLen  = "MIN_PASSWORD_LENGTH"
	legacyFrontendURL     = "FRONTEND_URL"
	legacyTOTPValidWindow = "TOTP_VALID_WINDOW"
)

// LoadConfigFromEnv overlays environment variables onto DefaultConfig.
// Each file in files is loaded with godotenv first; a missing file is not an
// error. Variables already set in the process environment win over files.
// The result is not validated.
func LoadConfigFromEnv(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: load %s: %v", ErrInvalidConfig, f, err)
		}
	}

	cfg := defaultConfig()
	p := envParser{}

	if v, ok := p.lookup(EnvJWTSecret, legacyJWTSecret); ok {
		cfg.JWT.PrivateKey = []byte(v)
	}
	p.duration(&cfg.JWT.SessionTTL, EnvJWTSessionTTL)
	p.duration(&cfg.JWT.PreAuthTTL, EnvJWTPreAuthTTL)
	p.str(&cfg.JWT.Issuer, EnvJWTIssuer)
	p.str(&cfg.JWT.Audience, EnvJWTAudience)

	p.str(&cfg.Password.Algorithm, EnvPasswordAlgorithm)
	if v, ok := p.lookup(EnvPasswordPolicy); ok {
		switch strings.ToLower(v) {
		case "standard":
			cfg.Password.Policy = password.ProfileStandard
		case "strict":
			cfg.Password.Policy = password.ProfileStrict
		default:
			p.fail(EnvPasswordPolicy, fmt.Errorf("unknown profile %q", v))
		}
	}
	p.integer(&cfg.Password.MinLength, EnvPasswordMinLength, legacyMinPasswordLen)

	p.str(&cfg.TOTP.Issuer, EnvTOTPIssuer, legacyTOTPIssuer)
	p.integer(&cfg.TOTP.Skew, EnvTOTPSkew, legacyTOTPValidWindow)
	p.boolean(&cfg.TOTP.AllowEmailDelivery, EnvTOTPEmailDelivery)

	p.integer(&cfg.Lockout.Threshold, EnvLockoutThreshold, legacyMaxLogin)
	p.duration(&cfg.Lockout.Duration, EnvLockoutDuration)
	if v, ok := p.lookup(legacyLockoutMinutes); ok {
		if _, set := p.lookup(EnvLockoutDuration); !set {
			n, err := strconv.Atoi(v)
			if err != nil {
				p.fail(legacyLockoutMinutes, err)
			} else {
				cfg.Lockout.Duration = time.Duration(n) * time.Minute
			}
		}
	}

	p.duration(&cfg.PasswordReset.TokenTTL, EnvResetTokenTTL)
	p.str(&cfg.PasswordReset.FrontendURL, EnvFrontendURL, legacyFrontendURL)
	p.str(&cfg.Account.DefaultRole, EnvDefaultRole)
	p.boolean(&cfg.Audit.Enabled, EnvAuditEnabled)
	p.boolean(&cfg.Metrics.Enabled, EnvMetricsEnabled)

	p.boolean(&cfg.Security.ProductionMode, EnvProductionMode)
	if v, ok := p.lookup(EnvEncryptionKey); ok {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			p.fail(EnvEncryptionKey, err)
		} else {
			cfg.Security.EncryptionKey = key
		}
	}
	p.boolean(&cfg.Security.EnableIPThrottle, EnvLoginIPThrottle)
	p.integer(&cfg.Security.MaxLoginAttempts, EnvMaxLoginAttempts)
	p.duration(&cfg.Security.LoginCooldownDuration, EnvLoginCooldown)

	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

// envParser records the first parse failure and ignores later ones.
type envParser struct {
	err error
}

func (p *envParser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
}

// lookup returns the first non-empty value among keys.
func (p *envParser) lookup(keys ...string) (string, bool) {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v, true
		}
	}
	return "", false
}

func (p *envParser) str(dst *string, keys ...string) {
	if v, ok := p.lookup(keys...); ok {
		*dst = v
	}
}

func (p *envParser) integer(dst *int, keys ...string) {
	if v, ok := p.lookup(keys...); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(keys[0], err)
			return
		}
		*dst = n
	}
}

func (p *envParser) boolean(dst *bool, keys ...string) {
	if v, ok := p.lookup(keys...); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(keys[0], err)
			return
		}
		*dst = b
	}
}

func (p *envParser) duration(dst *time.Duration, keys ...string) {
	if v, ok := p.lookup(keys...); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(keys[0], err)
			return
		}
		*dst = d
	}
}
