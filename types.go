package mtAuth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/internal/flows"
)

// Credential is the persisted authentication record of one account.
//
// TwoFactorEnabled implies a non-empty TOTPSecret; CheckInvariants reports a
// violation. TOTPSecret holds the sealed form, BackupCodes hold bcrypt hashes
// and ResetTokenHash holds the sha256 hex digest of the outstanding reset
// token.
type Credential = flows.Credential

// CredentialStore is the persistence contract the engine runs against.
//
// Lookups return ErrNotFound on a miss. Create returns ErrUserAlreadyExists
// or ErrEmailAlreadyExists on a unique violation. Update is the atomic
// read-modify-write boundary: the store loads the record under a row lock,
// calls fn with its own current time, and persists only when fn returns nil.
// An error from fn is returned unchanged.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByID(ctx context.Context, id string) (*Credential, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*Credential, error)
	Create(ctx context.Context, c *Credential) error
	Update(ctx context.Context, id string, fn func(c *Credential, now time.Time) error) (*Credential, error)
}

// Mailer delivers outbound account email. Failures are logged by the
// engine and never roll back the state change that triggered them.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
	SendBackupCodes(ctx context.Context, email string, codes []string) error
	SendTOTPCode(ctx context.Context, email, code string) error
}

// LoginResult is returned by [Engine.Login] and [Engine.VerifySecondFactor].
// When TwoFactorRequired is set only PreAuthToken is populated.
type LoginResult = flows.LoginResult

// TwoFactorSetup carries the plaintext secret and backup codes returned
// once by [Engine.SetupTwoFactor].
type TwoFactorSetup = flows.TwoFactorSetup

// LockoutInfo is returned by [Engine.LockoutStatus].
type LockoutInfo = flows.LockoutInfo

// SessionClaims is returned by [Engine.ValidateSession].
type SessionClaims = flows.SessionClaims

// Account is the public projection of a Credential. It never carries
// hashes, secrets or reset state.
type Account struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

func accountFromCredential(c *Credential) *Account {
	if c == nil {
		return nil
	}
	a := &Account{
		ID:               c.ID,
		Username:         c.Username,
		Email:            c.Email,
		Role:             c.Role,
		TwoFactorEnabled: c.TwoFactorEnabled,
		CreatedAt:        c.CreatedAt,
	}
	if c.LastLoginAt != nil {
		t := *c.LastLoginAt
		a.LastLoginAt = &t
	}
	return a
}

// AuthEvent is an append-only authentication record.
type AuthEvent = internalaudit.AuthEvent

// SecurityEvent is an append-only, severity-tagged security record.
type SecurityEvent = internalaudit.SecurityEvent

// Severity grades a SecurityEvent.
type Severity = internalaudit.Severity

// Severity levels.
const (
	SeverityLow      = internalaudit.SeverityLow
	SeverityMedium   = internalaudit.SeverityMedium
	SeverityHigh     = internalaudit.SeverityHigh
	SeverityCritical = internalaudit.SeverityCritical
)

// AuditSink receives events from the engine, inline or through the async
// dispatcher when Config.Audit.Enabled is set.
type AuditSink = internalaudit.Sink

// AuditRecord is one event as delivered by ChannelSink.
type AuditRecord = internalaudit.Record

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// Events are dropped when the buffer is full.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Auth event kinds.
const (
	EventLogin          = flows.KindLogin
	EventSecondFactor   = flows.KindSecondFactor
	EventRegister       = flows.KindRegister
	EventPasswordChange = flows.KindPasswordChange
	EventPasswordReset  = flows.KindPasswordReset
	EventTwoFactorSetup = flows.KindTwoFactorSetup
	EventTwoFactorOn    = flows.KindTwoFactorOn
	EventTwoFactorOff   = flows.KindTwoFactorOff
)

// Security event kinds.
const (
	SecurityAccountLocked       = flows.SecAccountLocked
	SecurityAccountUnlocked     = flows.SecAccountUnlocked
	SecurityPasswordChanged     = flows.SecPasswordChanged
	SecurityPasswordReset       = flows.SecPasswordReset
	SecurityTwoFactorEnabled    = flows.SecTwoFactorEnabled
	SecurityTwoFactorDisabled   = flows.SecTwoFactorDisabled
	SecurityBackupCodesRenewed  = flows.SecBackupCodesRenewed
	SecurityBackupCodeUsed      = flows.SecBackupCodeUsed
	SecurityResetTokenRequested = flows.SecResetTokenRequested
)
