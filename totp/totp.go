package totp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
)

const secretBytes = 20

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config controls code shape and the accepted clock-drift window.
type Config struct {
	Digits    int
	Period    int
	Skew      int
	Algorithm string
}

// DefaultConfig is RFC 6238 SHA1, 6 digits, 30 second steps, ±1 step.
func DefaultConfig() Config {
	return Config{
		Digits:    6,
		Period:    30,
		Skew:      1,
		Algorithm: "SHA1",
	}
}

// Engine generates secrets, provisioning URIs and verifies codes.
type Engine struct {
	opts pqtotp.ValidateOpts
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, errors.New("totp digits must be 6 or 8")
	}
	if cfg.Period <= 0 {
		return nil, errors.New("totp period must be > 0")
	}
	if cfg.Skew < 0 {
		return nil, errors.New("totp skew must be >= 0")
	}
	alg, err := parseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	return &Engine{
		opts: pqtotp.ValidateOpts{
			Period:    uint(cfg.Period),
			Skew:      uint(cfg.Skew),
			Digits:    otp.Digits(cfg.Digits),
			Algorithm: alg,
		},
	}, nil
}

// GenerateSecret returns a fresh base32 (unpadded) shared secret.
func (e *Engine) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth:// enrollment URI for secret. The
// result depends only on its inputs and the engine configuration.
func (e *Engine) ProvisioningURI(secret, accountEmail, issuer string) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountEmail,
		Period:      e.opts.Period,
		Secret:      raw,
		Digits:      e.opts.Digits,
		Algorithm:   e.opts.Algorithm,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// Verify reports whether code is valid for secret at the given time,
// accepting the configured number of adjacent steps on either side.
func (e *Engine) Verify(secret, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != e.opts.Digits.Length() || !isDigits(code) {
		return false
	}
	ok, err := pqtotp.ValidateCustom(code, normalizeSecret(secret), at.UTC(), e.opts)
	return err == nil && ok
}

// CodeAt returns the code for secret at the given time.
func (e *Engine) CodeAt(secret string, at time.Time) (string, error) {
	return pqtotp.GenerateCodeCustom(normalizeSecret(secret), at.UTC(), e.opts)
}

// Digits returns the configured code length.
func (e *Engine) Digits() int {
	return e.opts.Digits.Length()
}

// FormatManualKey groups secret in blocks of four for manual entry.
func FormatManualKey(secret string) string {
	var b strings.Builder
	for i, r := range secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeSecret(secret string) ([]byte, error) {
	raw, err := b32.DecodeString(normalizeSecret(secret))
	if err != nil || len(raw) == 0 {
		return nil, errors.New("invalid totp secret")
	}
	return raw, nil
}

func normalizeSecret(secret string) string {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	return strings.TrimRight(s, "=")
}

func parseAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, errors.New("unsupported totp algorithm")
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
