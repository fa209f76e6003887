package flows

import (
	"errors"
	"time"

	"github.com/MrEthical07/mtAuth/internal/lockout"
)

var errTwoFactorWithoutSecret = errors.New("two-factor enabled without a secret")

// Credential is the persisted authentication record of one account.
type Credential struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string
	TOTPSecret          string
	TwoFactorEnabled    bool
	BackupCodes         []string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	PasswordChangedAt   *time.Time
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time
	Role                string
	CreatedAt           time.Time
}

// CheckInvariants reports a record that must never be persisted.
func (c *Credential) CheckInvariants() error {
	if c.TwoFactorEnabled && c.TOTPSecret == "" {
		return errTwoFactorWithoutSecret
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.BackupCodes != nil {
		out.BackupCodes = append([]string(nil), c.BackupCodes...)
	}
	out.LockedUntil = cloneTime(c.LockedUntil)
	out.LastLoginAt = cloneTime(c.LastLoginAt)
	out.PasswordChangedAt = cloneTime(c.PasswordChangedAt)
	out.ResetTokenExpiresAt = cloneTime(c.ResetTokenExpiresAt)
	return &out
}

func (c *Credential) lockoutState() lockout.State {
	return lockout.State{FailedAttempts: c.FailedLoginAttempts, LockedUntil: c.LockedUntil}
}

func (c *Credential) setLockoutState(s lockout.State) {
	c.FailedLoginAttempts = s.FailedAttempts
	c.LockedUntil = s.LockedUntil
}

func (c *Credential) clearResetToken() {
	c.ResetTokenHash = ""
	c.ResetTokenExpiresAt = nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
