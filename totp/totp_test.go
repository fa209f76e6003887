package totp

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return e
}

func TestRFC6238Vectors(t *testing.T) {
	type vector struct {
		unix int64
		want string
	}
	cases := []struct {
		algorithm string
		secret    string
		vectors   []vector
	}{
		{
			algorithm: "SHA1",
			secret:    "12345678901234567890",
			vectors: []vector{
				{59, "94287082"},
				{1111111109, "07081804"},
				{1111111111, "14050471"},
				{1234567890, "89005924"},
				{2000000000, "69279037"},
				{20000000000, "65353130"},
			},
		},
		{
			algorithm: "SHA256",
			secret:    "12345678901234567890123456789012",
			vectors: []vector{
				{59, "46119246"},
				{1111111109, "68084774"},
				{1111111111, "67062674"},
				{1234567890, "91819424"},
				{2000000000, "90698825"},
				{20000000000, "77737706"},
			},
		},
	}

	for _, tc := range cases {
		e := newEngine(t, Config{Digits: 8, Period: 30, Skew: 0, Algorithm: tc.algorithm})
		secret := b32.EncodeToString([]byte(tc.secret))
		for _, v := range tc.vectors {
			at := time.Unix(v.unix, 0)
			got, err := e.CodeAt(secret, at)
			if err != nil {
				t.Fatalf("%s CodeAt(%d) error: %v", tc.algorithm, v.unix, err)
			}
			if got != v.want {
				t.Fatalf("%s at %d: expected %s, got %s", tc.algorithm, v.unix, v.want, got)
			}
			if !e.Verify(secret, v.want, at) {
				t.Fatalf("%s at %d: expected Verify to accept %s", tc.algorithm, v.unix, v.want)
			}
		}
	}
}

func TestVerifyWindow(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	secret, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}

	now := time.Unix(1_700_000_010, 0)
	code, err := e.CodeAt(secret, now)
	if err != nil {
		t.Fatalf("CodeAt error: %v", err)
	}

	if !e.Verify(secret, code, now) {
		t.Fatal("expected current code to verify")
	}
	if !e.Verify(secret, code, now.Add(30*time.Second)) {
		t.Fatal("expected code one step old to verify")
	}
	if !e.Verify(secret, code, now.Add(-30*time.Second)) {
		t.Fatal("expected code one step early to verify")
	}
	if e.Verify(secret, code, now.Add(90*time.Second)) {
		t.Fatal("expected code three steps old to be rejected")
	}
	if e.Verify(secret, code, now.Add(-90*time.Second)) {
		t.Fatal("expected code three steps early to be rejected")
	}
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	secret, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}
	now := time.Now()
	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		if e.Verify(secret, code, now) {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
}

func TestGenerateSecretShape(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	a, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}
	b, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct secrets")
	}
	if strings.Contains(a, "=") {
		t.Fatalf("expected unpadded base32, got %s", a)
	}
	raw, err := b32.DecodeString(a)
	if err != nil || len(raw) != secretBytes {
		t.Fatalf("expected %d raw bytes, got %d err=%v", secretBytes, len(raw), err)
	}
}

func TestProvisioningURIDeterministic(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	secret, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}

	first, err := e.ProvisioningURI(secret, "ops@example.net", "MikroTik Manager")
	if err != nil {
		t.Fatalf("ProvisioningURI error: %v", err)
	}
	second, err := e.ProvisioningURI(secret, "ops@example.net", "MikroTik Manager")
	if err != nil {
		t.Fatalf("ProvisioningURI error: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic URI, got %q and %q", first, second)
	}

	u, err := url.Parse(first)
	if err != nil {
		t.Fatalf("parse URI: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected URI %s", first)
	}
	q := u.Query()
	if q.Get("secret") != secret {
		t.Fatalf("expected secret %s in URI, got %s", secret, q.Get("secret"))
	}
	if q.Get("issuer") != "MikroTik Manager" {
		t.Fatalf("expected issuer in URI, got %q", q.Get("issuer"))
	}
	if !strings.Contains(u.Path, "ops@example.net") {
		t.Fatalf("expected account in label, got %s", u.Path)
	}
}

func TestProvisioningURIRejectsBadSecret(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	if _, err := e.ProvisioningURI("not base32!", "a@b.c", "x"); err == nil {
		t.Fatal("expected invalid secret to fail")
	}
}

func TestFormatManualKey(t *testing.T) {
	got := FormatManualKey("JBSWY3DPEHPK3PXP")
	if got != "JBSW Y3DP EHPK 3PXP" {
		t.Fatalf("unexpected manual key %q", got)
	}
	if FormatManualKey("ABC") != "ABC" {
		t.Fatal("expected short key unchanged")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	bad := []Config{
		{Digits: 7, Period: 30},
		{Digits: 6, Period: 0},
		{Digits: 6, Period: 30, Skew: -1},
		{Digits: 6, Period: 30, Algorithm: "MD5"},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Fatalf("expected config %+v to be rejected", cfg)
		}
	}
}
