package mtAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/mtAuth/password"
)

// Config defines a public type used by mtAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	TOTP          TOTPConfig
	Lockout       LockoutConfig
	PasswordReset PasswordResetConfig
	Account       AccountConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Security      SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by mtAuth APIs.
//
// SessionTTL bounds session tokens; PreAuthTTL bounds the token handed out
// between a correct password and a verified second factor.
type JWTConfig struct {
	SessionTTL    time.Duration
	PreAuthTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by mtAuth APIs.
//
// Memory, Time, Parallelism, SaltLength and KeyLength are argon2id costs.
// BcryptCost applies when Algorithm is "bcrypt" and to legacy verification.
type PasswordConfig struct {
	Algorithm      string // "argon2id" (default) or "bcrypt"
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	BcryptCost     int
	UpgradeOnLogin bool

	Policy    password.Profile
	MinLength int
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by mtAuth APIs.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string

	BackupCodeCount int
	// BackupCodeCost is the bcrypt cost used for stored backup code hashes.
	BackupCodeCost int

	// AllowEmailDelivery enables EmailSecondFactorCode.
	AllowEmailDelivery bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by mtAuth APIs.
//
// Threshold consecutive failed attempts lock an account for Duration.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
PASSWORD RESET / ACCOUNT
====================================
*/

// PasswordResetConfig defines a public type used by mtAuth APIs.
type PasswordResetConfig struct {
	TokenTTL    time.Duration
	FrontendURL string

	// Request throttle; requires a Redis client on the builder.
	EnableIPThrottle    bool
	EnableEmailThrottle bool
	ThrottleWindow      time.Duration
	MaxRequests         int
}

// AccountConfig defines a public type used by mtAuth APIs.
type AccountConfig struct {
	DefaultRole string

	// Registration throttle; requires a Redis client on the builder.
	EnableIPThrottle    bool
	EnableEmailThrottle bool
	MaxAttempts         int
	Cooldown            time.Duration
}

// AuditConfig defines a public type used by mtAuth APIs.
//
// When Enabled, events flow through an async buffered dispatcher.
// Otherwise the sink is called inline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by mtAuth APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by mtAuth APIs.
//
// EncryptionKey seals TOTP secrets at rest. When empty an ephemeral key is
// generated, which ProductionMode refuses.
type SecurityConfig struct {
	ProductionMode bool
	EncryptionKey  []byte

	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development-friendly configuration. Keys are not
// set; callers must provide JWT.PrivateKey.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SessionTTL:    time.Hour,
			PreAuthTTL:    5 * time.Minute,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Algorithm:      "argon2id",
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			BcryptCost:     12,
			UpgradeOnLogin: true,
			Policy:         password.ProfileStandard,
		},
		TOTP: TOTPConfig{
			Issuer:          "PLUS App",
			Digits:          6,
			Period:          30,
			Skew:            1,
			Algorithm:       "SHA1",
			BackupCodeCount: 8,
			BackupCodeCost:  10,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:            time.Hour,
			FrontendURL:         "http://localhost:3000",
			EnableIPThrottle:    true,
			EnableEmailThrottle: true,
			ThrottleWindow:      15 * time.Minute,
			MaxRequests:         5,
		},
		Account: AccountConfig{
			DefaultRole:         "user",
			EnableIPThrottle:    true,
			EnableEmailThrottle: true,
			MaxAttempts:         5,
			Cooldown:            15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode:        false,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      20,
			LoginCooldownDuration: 15 * time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Security.EncryptionKey = cloneBytes(cfg.Security.EncryptionKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first rule the configuration breaks. ProductionMode
// adds hardening rules on top of the structural ones.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.SessionTTL <= 0 {
		return errors.New("JWT SessionTTL must be > 0")
	}
	if c.JWT.PreAuthTTL <= 0 {
		return errors.New("JWT PreAuthTTL must be > 0")
	}
	if c.JWT.PreAuthTTL >= c.JWT.SessionTTL {
		return errors.New("JWT PreAuthTTL must be shorter than SessionTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Password
	switch c.Password.Algorithm {
	case "argon2id":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	case "bcrypt":
	default:
		return errors.New("Password Algorithm must be 'argon2id' or 'bcrypt'")
	}
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}
	switch c.Password.Policy {
	case password.ProfileStandard, password.ProfileStrict:
	default:
		return errors.New("Password Policy is invalid")
	}
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}

	// TOTP
	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 {
		return errors.New("TOTP Skew must be >= 0")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TOTP.BackupCodeCount <= 0 {
		return errors.New("TOTP BackupCodeCount must be > 0")
	}
	if c.TOTP.BackupCodeCost < 4 || c.TOTP.BackupCodeCost > 31 {
		return errors.New("TOTP BackupCodeCost must be between 4 and 31")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Password Reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.PasswordReset.FrontendURL == "" {
		return errors.New("PasswordReset FrontendURL is required")
	}
	if c.PasswordReset.EnableIPThrottle || c.PasswordReset.EnableEmailThrottle {
		if c.PasswordReset.ThrottleWindow <= 0 {
			return errors.New("PasswordReset ThrottleWindow must be > 0 when throttling is enabled")
		}
		if c.PasswordReset.MaxRequests <= 0 {
			return errors.New("PasswordReset MaxRequests must be > 0 when throttling is enabled")
		}
	}

	// Account
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole is required")
	}
	if c.Account.EnableIPThrottle || c.Account.EnableEmailThrottle {
		if c.Account.MaxAttempts <= 0 {
			return errors.New("Account MaxAttempts must be > 0 when throttling is enabled")
		}
		if c.Account.Cooldown <= 0 {
			return errors.New("Account Cooldown must be > 0 when throttling is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Security
	if len(c.Security.EncryptionKey) != 0 && len(c.Security.EncryptionKey) != 32 {
		return errors.New("Security EncryptionKey must be 32 bytes")
	}
	if c.Security.EnableIPThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("MaxLoginAttempts must be > 0 when IP throttle is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("LoginCooldownDuration must be > 0 when IP throttle is enabled")
		}
	}

	if c.Security.ProductionMode {
		if len(c.Security.EncryptionKey) == 0 {
			return errors.New("ProductionMode requires Security EncryptionKey")
		}
		if c.JWT.SessionTTL > 24*time.Hour {
			return errors.New("ProductionMode requires JWT SessionTTL <= 24h")
		}
		if c.JWT.PreAuthTTL > 10*time.Minute {
			return errors.New("ProductionMode requires JWT PreAuthTTL <= 10m")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Algorithm == "argon2id" {
			if c.Password.Memory < 64*1024 {
				return errors.New("ProductionMode requires Password Memory >= 65536 KB")
			}
			if c.Password.Time < 2 {
				return errors.New("ProductionMode requires Password Time >= 2")
			}
			if c.Password.KeyLength < 32 {
				return errors.New("ProductionMode requires Password KeyLength >= 32")
			}
		}
		if c.Password.Algorithm == "bcrypt" && c.Password.BcryptCost < 12 {
			return errors.New("ProductionMode requires Password BcryptCost >= 12")
		}
		if c.TOTP.Skew > 2 {
			return errors.New("ProductionMode requires TOTP Skew <= 2")
		}
		if c.TOTP.BackupCodeCount < 8 {
			return errors.New("ProductionMode requires TOTP BackupCodeCount >= 8")
		}
		if c.PasswordReset.TokenTTL > 24*time.Hour {
			return errors.New("ProductionMode requires PasswordReset TokenTTL <= 24h")
		}
		if !strings.HasPrefix(c.PasswordReset.FrontendURL, "https://") {
			return errors.New("ProductionMode requires an https PasswordReset FrontendURL")
		}
	}

	return nil
}
