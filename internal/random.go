package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const resetSecretSize = 32

// NewResetToken returns a URL-safe token carrying 32 random bytes.
func NewResetToken() (string, error) {
	var secret [resetSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// HashResetToken returns the hex sha256 of token, the only form that is
// persisted.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var errResetTokenShape = errors.New("invalid reset token")

// CheckResetToken reports whether token decodes to the secret size minted by
// NewResetToken.
func CheckResetToken(token string) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != resetSecretSize {
		return errResetTokenShape
	}
	return nil
}
