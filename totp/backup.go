package totp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// BackupCodeDigits is the length of a generated backup code.
const BackupCodeDigits = 8

// DefaultBackupCodeCount is the size of a freshly issued batch.
const DefaultBackupCodeCount = 8

// ErrBackupCodeCount is returned for a non-positive batch size.
var ErrBackupCodeCount = errors.New("backup code count must be > 0")

// CodeHasher hashes and verifies backup codes. password.Bcrypt satisfies it.
type CodeHasher interface {
	Hash(code string) (string, error)
	Verify(code, encoded string) (bool, error)
}

// GenerateBackupCodes returns count distinct plaintext codes and their
// hashes in the same order. Only the hashes are meant to be persisted.
func GenerateBackupCodes(count int, h CodeHasher) (plain []string, hashed []string, err error) {
	if count <= 0 {
		return nil, nil, ErrBackupCodeCount
	}

	seen := make(map[string]struct{}, count)
	plain = make([]string, 0, count)
	for len(plain) < count {
		code, err := randomDigits(BackupCodeDigits)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		plain = append(plain, code)
	}

	hashed = make([]string, count)
	for i, code := range plain {
		hashed[i], err = h.Hash(code)
		if err != nil {
			return nil, nil, fmt.Errorf("hash backup code: %w", err)
		}
	}
	return plain, hashed, nil
}

// ConsumeBackupCode looks for candidate among hashed. On a match it returns
// the remaining hashes with the matched entry removed and true. The input
// slice is not modified.
func ConsumeBackupCode(hashed []string, candidate string, h CodeHasher) ([]string, bool, error) {
	candidate = strings.TrimSpace(strings.ReplaceAll(candidate, "-", ""))
	if len(candidate) != BackupCodeDigits || !isDigits(candidate) {
		return hashed, false, nil
	}

	for i, encoded := range hashed {
		ok, err := h.Verify(candidate, encoded)
		if err != nil {
			return hashed, false, err
		}
		if !ok {
			continue
		}
		remaining := make([]string, 0, len(hashed)-1)
		remaining = append(remaining, hashed[:i]...)
		remaining = append(remaining, hashed[i+1:]...)
		return remaining, true, nil
	}
	return hashed, false, nil
}

func randomDigits(n int) (string, error) {
	limit := big.NewInt(10)
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
