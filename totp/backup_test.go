package totp

import (
	"errors"
	"testing"

	"github.com/MrEthical07/mtAuth/password"
	"golang.org/x/crypto/bcrypt"
)

func testHasher(t *testing.T) CodeHasher {
	t.Helper()
	h, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	return h
}

func TestGenerateBackupCodes(t *testing.T) {
	h := testHasher(t)
	plain, hashed, err := GenerateBackupCodes(DefaultBackupCodeCount, h)
	if err != nil {
		t.Fatalf("GenerateBackupCodes error: %v", err)
	}
	if len(plain) != DefaultBackupCodeCount || len(hashed) != DefaultBackupCodeCount {
		t.Fatalf("expected %d codes, got %d plain %d hashed", DefaultBackupCodeCount, len(plain), len(hashed))
	}

	seen := map[string]bool{}
	for i, code := range plain {
		if len(code) != BackupCodeDigits || !isDigits(code) {
			t.Fatalf("unexpected code shape %q", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
		if hashed[i] == code {
			t.Fatal("expected hashed code to differ from plaintext")
		}
		ok, err := h.Verify(code, hashed[i])
		if err != nil || !ok {
			t.Fatalf("expected hash %d to match its code, ok=%v err=%v", i, ok, err)
		}
	}
}

func TestGenerateBackupCodesRejectsZero(t *testing.T) {
	if _, _, err := GenerateBackupCodes(0, testHasher(t)); !errors.Is(err, ErrBackupCodeCount) {
		t.Fatalf("expected ErrBackupCodeCount, got %v", err)
	}
}

func TestConsumeBackupCodeSingleUse(t *testing.T) {
	h := testHasher(t)
	plain, hashed, err := GenerateBackupCodes(3, h)
	if err != nil {
		t.Fatalf("GenerateBackupCodes error: %v", err)
	}

	remaining, ok, err := ConsumeBackupCode(hashed, plain[1], h)
	if err != nil || !ok {
		t.Fatalf("expected first use to succeed, ok=%v err=%v", ok, err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(remaining))
	}
	if len(hashed) != 3 {
		t.Fatal("expected input slice to be left intact")
	}

	_, ok, err = ConsumeBackupCode(remaining, plain[1], h)
	if err != nil || ok {
		t.Fatalf("expected reuse to fail, ok=%v err=%v", ok, err)
	}

	_, ok, err = ConsumeBackupCode(remaining, plain[0], h)
	if err != nil || !ok {
		t.Fatalf("expected other code to remain usable, ok=%v err=%v", ok, err)
	}
}

func TestConsumeBackupCodeIgnoresMalformed(t *testing.T) {
	h := testHasher(t)
	_, hashed, err := GenerateBackupCodes(2, h)
	if err != nil {
		t.Fatalf("GenerateBackupCodes error: %v", err)
	}
	for _, c := range []string{"", "1234", "abcdefgh", "123456789"} {
		rem, ok, err := ConsumeBackupCode(hashed, c, h)
		if err != nil || ok || len(rem) != 2 {
			t.Fatalf("expected %q to be a clean miss, ok=%v err=%v", c, ok, err)
		}
	}
}
