package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/mtAuth/internal/audit"
	"github.com/MrEthical07/mtAuth/internal/lockout"
	"github.com/MrEthical07/mtAuth/jwt"
	"github.com/MrEthical07/mtAuth/password"
)

var (
	errEngineNotReady  = errors.New("engine not ready")
	errInvalidCreds    = errors.New("invalid credentials")
	errLocked          = errors.New("locked")
	errBadToken        = errors.New("bad token")
	errBadCode         = errors.New("bad code")
	errAlreadyEnabled  = errors.New("already enabled")
	errNotEnabled      = errors.New("not enabled")
	errNotSetUp        = errors.New("not set up")
	errUserExists      = errors.New("user exists")
	errEmailExists     = errors.New("email exists")
	errBadEmail        = errors.New("bad email")
	errBadUsername     = errors.New("bad username")
	errNotFound        = errors.New("not found")
	errInternal        = errors.New("internal")
	errLoginThrottled  = errors.New("login throttled")
	errThrottled       = errors.New("throttled")
	errWeak            = errors.New("weak")
	errStoreNotFound   = errors.New("store: not found")
	errStoreBroken     = errors.New("store: broken")
	errDuplicateInsert = errors.New("store: duplicate")
)

func testErrors() Errors {
	return Errors{
		EngineNotReady:          errEngineNotReady,
		InvalidCredentials:      errInvalidCreds,
		AccountLocked:           errLocked,
		InvalidOrExpiredToken:   errBadToken,
		InvalidTwoFactorCode:    errBadCode,
		TwoFactorAlreadyEnabled: errAlreadyEnabled,
		TwoFactorNotEnabled:     errNotEnabled,
		TwoFactorNotSetUp:       errNotSetUp,
		UserAlreadyExists:       errUserExists,
		EmailAlreadyExists:      errEmailExists,
		InvalidEmailFormat:      errBadEmail,
		InvalidUsernameFormat:   errBadUsername,
		NotFound:                errNotFound,
		Internal:                errInternal,
		LoginRateLimited:        errLoginThrottled,
		RateLimited:             errThrottled,
		WeakPassword: func(v []password.Violation) error {
			return errWeak
		},
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStore struct {
	mu      sync.Mutex
	clock   *fakeClock
	byID    map[string]*Credential
	updates int
	broken  bool
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{clock: clock, byID: map[string]*Credential{}}
}

func (s *fakeStore) put(c *Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[c.ID] = c.Clone()
}

func (s *fakeStore) get(id string) *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id].Clone()
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil, errStoreBroken
	}
	for _, c := range s.byID {
		if c.Email == email {
			return c.Clone(), nil
		}
	}
	return nil, errStoreNotFound
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil, errStoreBroken
	}
	c, ok := s.byID[id]
	if !ok {
		return nil, errStoreNotFound
	}
	return c.Clone(), nil
}

func (s *fakeStore) GetByResetToken(_ context.Context, hash string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.byID {
		if hash != "" && c.ResetTokenHash == hash {
			return c.Clone(), nil
		}
	}
	return nil, errStoreNotFound
}

func (s *fakeStore) Create(_ context.Context, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Email == c.Email || existing.Username == c.Username {
			return errDuplicateInsert
		}
	}
	s.byID[c.ID] = c.Clone()
	return nil
}

func (s *fakeStore) Update(_ context.Context, id string, fn func(*Credential, time.Time) error) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, errStoreNotFound
	}
	work := c.Clone()
	if err := fn(work, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := work.CheckInvariants(); err != nil {
		return nil, err
	}
	s.byID[id] = work
	s.updates++
	return work.Clone(), nil
}

type recorder struct {
	mu       sync.Mutex
	auth     []audit.AuthEvent
	security []audit.SecurityEvent
	metrics  map[int]int
}

func newRecorder() *recorder {
	return &recorder{metrics: map[int]int{}}
}

func (r *recorder) EmitAuth(_ context.Context, ev audit.AuthEvent) {
	r.mu.Lock()
	r.auth = append(r.auth, ev)
	r.mu.Unlock()
}

func (r *recorder) EmitSecurity(_ context.Context, ev audit.SecurityEvent) {
	r.mu.Lock()
	r.security = append(r.security, ev)
	r.mu.Unlock()
}

func (r *recorder) lastAuth() audit.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.auth) == 0 {
		return audit.AuthEvent{}
	}
	return r.auth[len(r.auth)-1]
}

func (r *recorder) securityKinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.security))
	for _, ev := range r.security {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	clock *fakeClock
	store *fakeStore
	rec   *recorder
	env   Env
}

func newHarness() *harness {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newFakeStore(clock)
	rec := newRecorder()
	h := &harness{clock: clock, store: store, rec: rec}
	h.env = Env{
		Now:             clock.Now,
		GetByEmail:      store.GetByEmail,
		GetByID:         store.GetByID,
		GetByResetToken: store.GetByResetToken,
		Create:          store.Create,
		Update:          store.Update,
		IsNotFound:      func(err error) bool { return errors.Is(err, errStoreNotFound) },
		MetricInc:       func(id int) { rec.mu.Lock(); rec.metrics[id]++; rec.mu.Unlock() },
		EmitAuth:        rec.EmitAuth,
		EmitSecurity:    rec.EmitSecurity,
		Errors:          testErrors(),
	}
	return h
}

// Test doubles: the hash of p is "h:"+p, a sealed secret is "sealed:"+s and
// the valid TOTP code for any secret is "123456".
func fakeVerify(p, hash string) (bool, error) { return hash == "h:"+p, nil }
func fakeHash(p string) (string, error)       { return "h:" + p, nil }
func fakeSeal(s string) (string, error)       { return "sealed:" + s, nil }
func fakeOpen(s string) (string, error) {
	if !strings.HasPrefix(s, "sealed:") {
		return "", errors.New("bad seal")
	}
	return strings.TrimPrefix(s, "sealed:"), nil
}
func fakeTOTP(_ string, code string, _ time.Time) bool { return code == "123456" }

func fakeConsume(hashed []string, code string) ([]string, bool, error) {
	for i, h := range hashed {
		if h == "h:"+code {
			out := append([]string(nil), hashed[:i]...)
			return append(out, hashed[i+1:]...), true, nil
		}
	}
	return hashed, false, nil
}

type fakeTokens struct {
	clock *fakeClock
	n     int
}

func (f *fakeTokens) issue(subject string, pre bool) (jwt.Issued, error) {
	f.n++
	prefix := "session:"
	if pre {
		prefix = "pre:"
	}
	return jwt.Issued{Token: prefix + subject, ID: "sid-" + subject, ExpiresAt: f.clock.Now().Add(time.Hour)}, nil
}

func (f *fakeTokens) decode(token string) jwt.DecodeResult {
	switch {
	case strings.HasPrefix(token, "pre:"):
		c := &jwt.Claims{PreAuth: true}
		c.Subject = strings.TrimPrefix(token, "pre:")
		return jwt.DecodeResult{Status: jwt.StatusOK, Claims: c}
	case strings.HasPrefix(token, "session:"):
		c := &jwt.Claims{}
		c.Subject = strings.TrimPrefix(token, "session:")
		return jwt.DecodeResult{Status: jwt.StatusOK, Claims: c}
	case token == "expired":
		return jwt.DecodeResult{Status: jwt.StatusExpired}
	default:
		return jwt.DecodeResult{Status: jwt.StatusMalformed}
	}
}

func (h *harness) loginDeps() LoginDeps {
	tokens := &fakeTokens{clock: h.clock}
	return LoginDeps{
		Env:            h.env,
		Lockout:        lockout.Policy{Threshold: 5, Duration: 15 * time.Minute},
		VerifyPassword: fakeVerify,
		HashPassword:   fakeHash,
		IssueSession:   func(s string) (jwt.Issued, error) { return tokens.issue(s, false) },
		IssuePreAuth:   func(s string) (jwt.Issued, error) { return tokens.issue(s, true) },
		Metrics: LoginMetrics{
			LoginSuccess: 1, LoginFailure: 2, LoginLocked: 3, LoginRateLimited: 4, AccountLocked: 5,
			TwoFactorRequired: 6, SecondFactorSuccess: 7, SecondFactorFailure: 8, BackupCodeUsed: 9,
			PasswordUpgraded: 10,
		},
	}
}

func (h *harness) secondFactorDeps() SecondFactorDeps {
	tokens := &fakeTokens{clock: h.clock}
	return SecondFactorDeps{
		LoginDeps:         h.loginDeps(),
		Decode:            tokens.decode,
		OpenSecret:        fakeOpen,
		VerifyTOTP:        fakeTOTP,
		CodeAt:            func(string, time.Time) (string, error) { return "123456", nil },
		ConsumeBackupCode: fakeConsume,
	}
}

func (h *harness) twoFactorDeps() TwoFactorDeps {
	return TwoFactorDeps{
		Env:             h.env,
		Issuer:          "PLUS App",
		GenerateSecret:  func() (string, error) { return "JBSWY3DPEHPK3PXP", nil },
		ProvisioningURI: func(s, a, i string) (string, error) { return "otpauth://totp/" + i + ":" + a + "?secret=" + s, nil },
		SealSecret:      fakeSeal,
		OpenSecret:      fakeOpen,
		VerifyTOTP:      fakeTOTP,
		GenerateBackupCodes: func(n int) ([]string, []string, error) {
			plain := make([]string, n)
			hashed := make([]string, n)
			for i := range plain {
				plain[i] = strings.Repeat(string(rune('1'+i%9)), 8)
				hashed[i] = "h:" + plain[i]
			}
			return plain, hashed, nil
		},
	}
}

func (h *harness) seed(id, email string) {
	h.store.put(&Credential{
		ID:           id,
		Username:     "user" + id,
		Email:        email,
		PasswordHash: "h:Correct#Horse1",
		CreatedAt:    h.clock.Now(),
	})
}

func (h *harness) seedTwoFactor(id, email string, backup ...string) {
	hashed := make([]string, 0, len(backup))
	for _, b := range backup {
		hashed = append(hashed, "h:"+b)
	}
	h.store.put(&Credential{
		ID:               id,
		Username:         "user" + id,
		Email:            email,
		PasswordHash:     "h:Correct#Horse1",
		TOTPSecret:       "sealed:JBSWY3DPEHPK3PXP",
		TwoFactorEnabled: true,
		BackupCodes:      hashed,
		CreatedAt:        h.clock.Now(),
	})
}

func TestLoginWithoutSecondFactorIssuesSession(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")

	res, err := RunLogin(context.Background(), " A@Example.com ", "Correct#Horse1", h.loginDeps())
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if res.TwoFactorRequired || res.SessionToken != "session:u1" {
		t.Fatalf("unexpected result %+v", res)
	}
	c := h.store.get("u1")
	if c.LastLoginAt == nil || !c.LastLoginAt.Equal(h.clock.Now()) {
		t.Fatalf("expected last login stamped, got %v", c.LastLoginAt)
	}
	ev := h.rec.lastAuth()
	if ev.Kind != KindLogin || !ev.Success || ev.SessionID != "sid-u1" {
		t.Fatalf("unexpected audit event %+v", ev)
	}
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")

	_, errUnknown := RunLogin(context.Background(), "nobody@example.com", "whatever", h.loginDeps())
	unknownEvent := h.rec.lastAuth()
	_, errWrong := RunLogin(context.Background(), "a@example.com", "whatever", h.loginDeps())

	if !errors.Is(errUnknown, errInvalidCreds) || !errors.Is(errWrong, errInvalidCreds) {
		t.Fatalf("expected invalid credentials for both, got %v / %v", errUnknown, errWrong)
	}
	if unknownEvent.UserID != "" || unknownEvent.Email != "" || unknownEvent.FailureReason != ReasonUserNotFound {
		t.Fatalf("unexpected unknown-account event %+v", unknownEvent)
	}
}

func TestLoginLocksAfterThresholdAndRecovers(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	deps := h.loginDeps()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := RunLogin(ctx, "a@example.com", "wrong", deps); !errors.Is(err, errInvalidCreds) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}
	if _, err := RunLogin(ctx, "a@example.com", "wrong", deps); !errors.Is(err, errLocked) {
		t.Fatalf("expected locking attempt to report locked, got %v", err)
	}
	kinds := h.rec.securityKinds()
	if len(kinds) != 1 || kinds[0] != SecAccountLocked {
		t.Fatalf("expected one account_locked event, got %v", kinds)
	}
	if h.rec.security[0].Severity != audit.SeverityHigh {
		t.Fatalf("expected high severity, got %s", h.rec.security[0].Severity)
	}

	if _, err := RunLogin(ctx, "a@example.com", "Correct#Horse1", deps); !errors.Is(err, errLocked) {
		t.Fatalf("expected correct password to be rejected while locked, got %v", err)
	}

	h.clock.Advance(15*time.Minute + time.Second)
	if _, err := RunLogin(ctx, "a@example.com", "Correct#Horse1", deps); err != nil {
		t.Fatalf("expected login after lock elapsed, got %v", err)
	}
	c := h.store.get("u1")
	if c.FailedLoginAttempts != 0 || c.LockedUntil != nil {
		t.Fatalf("expected counters cleared, got %d %v", c.FailedLoginAttempts, c.LockedUntil)
	}
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	deps := h.loginDeps()
	deps.CheckLoginRate = func(context.Context, string) error { return errors.New("over budget") }

	if _, err := RunLogin(context.Background(), "a@example.com", "Correct#Horse1", deps); !errors.Is(err, errLoginThrottled) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if h.store.updates != 0 {
		t.Fatalf("expected no store writes, got %d", h.store.updates)
	}
}

func TestLoginStoreFailureIsInternal(t *testing.T) {
	h := newHarness()
	h.store.broken = true
	var logged error
	deps := h.loginDeps()
	deps.LogError = func(_ context.Context, _ string, err error) { logged = err }

	if _, err := RunLogin(context.Background(), "a@example.com", "x", deps); !errors.Is(err, errInternal) {
		t.Fatalf("expected internal, got %v", err)
	}
	if !errors.Is(logged, errStoreBroken) {
		t.Fatalf("expected store error logged, got %v", logged)
	}
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	deps := h.loginDeps()
	deps.UpgradeOnLogin = true
	deps.PasswordNeedsUpgrade = func(string) (bool, error) { return true, nil }
	deps.HashPassword = func(p string) (string, error) { return "h2:" + p, nil }

	if _, err := RunLogin(context.Background(), "a@example.com", "Correct#Horse1", deps); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := h.store.get("u1").PasswordHash; got != "h2:Correct#Horse1" {
		t.Fatalf("expected upgraded hash, got %q", got)
	}
}

func TestLoginWithSecondFactorReturnsPreAuth(t *testing.T) {
	h := newHarness()
	h.seedTwoFactor("u2", "b@example.com")

	res, err := RunLogin(context.Background(), "b@example.com", "Correct#Horse1", h.loginDeps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.TwoFactorRequired || res.PreAuthToken != "pre:u2" || res.SessionToken != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.store.get("u2").LastLoginAt != nil {
		t.Fatal("expected no last login before second factor")
	}
	for _, ev := range h.rec.auth {
		if ev.Success {
			t.Fatalf("unexpected success event before second factor: %+v", ev)
		}
	}
}

func TestVerifySecondFactorWithTOTP(t *testing.T) {
	h := newHarness()
	h.seedTwoFactor("u2", "b@example.com")

	res, err := RunVerifySecondFactor(context.Background(), "pre:u2", "123456", h.secondFactorDeps())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.SessionToken != "session:u2" {
		t.Fatalf("unexpected session %+v", res)
	}
	ev := h.rec.lastAuth()
	if !ev.Success || !ev.TwoFactorUsed || ev.BackupCodeUsed {
		t.Fatalf("unexpected audit %+v", ev)
	}
}

func TestVerifySecondFactorBackupCodeSingleUse(t *testing.T) {
	h := newHarness()
	h.seedTwoFactor("u2", "b@example.com", "11112222", "33334444")
	deps := h.secondFactorDeps()
	ctx := context.Background()

	if _, err := RunVerifySecondFactor(ctx, "pre:u2", "1111-2222", deps); err != nil {
		t.Fatalf("expected backup code accepted, got %v", err)
	}
	if got := h.store.get("u2").BackupCodes; len(got) != 1 || got[0] != "h:33334444" {
		t.Fatalf("expected consumed code removed, got %v", got)
	}
	if !h.rec.lastAuth().BackupCodeUsed {
		t.Fatal("expected backup code flag on audit event")
	}
	if kinds := h.rec.securityKinds(); len(kinds) != 1 || kinds[0] != SecBackupCodeUsed {
		t.Fatalf("expected backup_code_used event, got %v", kinds)
	}

	if _, err := RunVerifySecondFactor(ctx, "pre:u2", "11112222", deps); !errors.Is(err, errBadCode) {
		t.Fatalf("expected replay rejected, got %v", err)
	}
	if got := h.store.get("u2").FailedLoginAttempts; got != 1 {
		t.Fatalf("expected replay to count as failure, got %d", got)
	}
}

func TestVerifySecondFactorRejectsBadTokens(t *testing.T) {
	h := newHarness()
	h.seedTwoFactor("u2", "b@example.com")
	deps := h.secondFactorDeps()

	for _, tok := range []string{"expired", "garbage", "session:u2", "pre:missing"} {
		if _, err := RunVerifySecondFactor(context.Background(), tok, "123456", deps); !errors.Is(err, errBadToken) {
			t.Fatalf("token %q: expected invalid token, got %v", tok, err)
		}
	}
	if h.store.updates != 0 {
		t.Fatalf("expected no writes for rejected tokens, got %d", h.store.updates)
	}
}

func TestVerifySecondFactorFailuresLock(t *testing.T) {
	h := newHarness()
	h.seedTwoFactor("u2", "b@example.com")
	deps := h.secondFactorDeps()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := RunVerifySecondFactor(ctx, "pre:u2", "000000", deps); !errors.Is(err, errBadCode) {
			t.Fatalf("attempt %d: expected bad code, got %v", i+1, err)
		}
	}
	if _, err := RunVerifySecondFactor(ctx, "pre:u2", "000000", deps); !errors.Is(err, errLocked) {
		t.Fatalf("expected lock on fifth failure, got %v", err)
	}
	if _, err := RunVerifySecondFactor(ctx, "pre:u2", "123456", deps); !errors.Is(err, errLocked) {
		t.Fatalf("expected valid code rejected while locked, got %v", err)
	}
}

func TestEmailSecondFactorCode(t *testing.T) {
	h := newHarness()
	h.seedTwoFactor("u2", "b@example.com")
	deps := h.secondFactorDeps()
	var sentTo, sentCode string
	deps.SendTOTPCode = func(_ context.Context, email, code string) error {
		sentTo, sentCode = email, code
		return nil
	}

	if err := RunEmailSecondFactorCode(context.Background(), "pre:u2", deps); !errors.Is(err, errBadToken) {
		t.Fatalf("expected disabled delivery to be rejected, got %v", err)
	}
	deps.AllowEmailDelivery = true
	if err := RunEmailSecondFactorCode(context.Background(), "pre:u2", deps); err != nil {
		t.Fatalf("email code: %v", err)
	}
	if sentTo != "b@example.com" || sentCode != "123456" {
		t.Fatalf("unexpected delivery %q %q", sentTo, sentCode)
	}
}

func TestSetupEnableDisableTwoFactor(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	deps := h.twoFactorDeps()
	ctx := context.Background()

	setup, err := RunSetupTwoFactor(ctx, "u1", deps)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if len(setup.BackupCodes) != 8 || !strings.Contains(setup.ProvisioningURI, "PLUS App:a@example.com") {
		t.Fatalf("unexpected setup %+v", setup)
	}
	c := h.store.get("u1")
	if c.TwoFactorEnabled || c.TOTPSecret != "sealed:JBSWY3DPEHPK3PXP" || len(c.BackupCodes) != 8 {
		t.Fatalf("expected pending secret with flag off, got %+v", c)
	}

	if err := RunEnableTwoFactor(ctx, "u1", "000000", deps); !errors.Is(err, errBadCode) {
		t.Fatalf("expected wrong code rejected, got %v", err)
	}
	c = h.store.get("u1")
	if c.TwoFactorEnabled || c.FailedLoginAttempts != 0 {
		t.Fatalf("expected flag off and no lockout count, got %+v", c)
	}

	if err := RunEnableTwoFactor(ctx, "u1", "123456", deps); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !h.store.get("u1").TwoFactorEnabled {
		t.Fatal("expected flag on")
	}
	if _, err := RunSetupTwoFactor(ctx, "u1", deps); !errors.Is(err, errAlreadyEnabled) {
		t.Fatalf("expected setup refused once enabled, got %v", err)
	}

	if err := RunDisableTwoFactor(ctx, "u1", "11111111", deps); !errors.Is(err, errBadCode) {
		t.Fatalf("expected backup code refused for disable, got %v", err)
	}
	if err := RunDisableTwoFactor(ctx, "u1", "123456", deps); err != nil {
		t.Fatalf("disable: %v", err)
	}
	c = h.store.get("u1")
	if c.TwoFactorEnabled || c.TOTPSecret != "" || c.BackupCodes != nil {
		t.Fatalf("expected 2fa state cleared, got %+v", c)
	}
	if err := RunDisableTwoFactor(ctx, "u1", "123456", deps); !errors.Is(err, errNotEnabled) {
		t.Fatalf("expected not enabled, got %v", err)
	}

	kinds := h.rec.securityKinds()
	if len(kinds) != 2 || kinds[0] != SecTwoFactorEnabled || kinds[1] != SecTwoFactorDisabled {
		t.Fatalf("unexpected security events %v", kinds)
	}
}

func TestEnableWithoutSetup(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	if err := RunEnableTwoFactor(context.Background(), "u1", "123456", h.twoFactorDeps()); !errors.Is(err, errNotSetUp) {
		t.Fatalf("expected not set up, got %v", err)
	}
}

func TestRegenerateBackupCodes(t *testing.T) {
	h := newHarness()
	h.seedTwoFactor("u2", "b@example.com", "11112222")
	deps := h.twoFactorDeps()
	var mailed []string
	deps.SendBackupCodes = func(_ context.Context, _ string, codes []string) error {
		mailed = codes
		return errors.New("smtp down")
	}

	if _, err := RunRegenerateBackupCodes(context.Background(), "u2", "000000", deps); !errors.Is(err, errBadCode) {
		t.Fatalf("expected bad code, got %v", err)
	}
	codes, err := RunRegenerateBackupCodes(context.Background(), "u2", "123456", deps)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(codes) != 8 || len(mailed) != 8 {
		t.Fatalf("expected 8 codes returned and mailed, got %d / %d", len(codes), len(mailed))
	}
	if got := h.store.get("u2").BackupCodes; len(got) != 8 || got[0] != "h:"+codes[0] {
		t.Fatalf("expected stored batch replaced, got %v", got)
	}
}

func TestChangePassword(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	deps := ChangePasswordDeps{
		Env:            h.env,
		VerifyPassword: fakeVerify,
		HashPassword:   fakeHash,
		ValidatePolicy: password.NewPolicy(password.ProfileStandard).Validate,
	}
	ctx := context.Background()

	if err := RunChangePassword(ctx, "u1", "nope", "N3w!Passphrase", deps); !errors.Is(err, errInvalidCreds) {
		t.Fatalf("expected wrong current password, got %v", err)
	}
	if err := RunChangePassword(ctx, "u1", "Correct#Horse1", "weak", deps); !errors.Is(err, errWeak) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if err := RunChangePassword(ctx, "u1", "Correct#Horse1", "N3w!Passphrase", deps); err != nil {
		t.Fatalf("change: %v", err)
	}
	c := h.store.get("u1")
	if c.PasswordHash != "h:N3w!Passphrase" || c.PasswordChangedAt == nil {
		t.Fatalf("unexpected credential %+v", c)
	}
	if kinds := h.rec.securityKinds(); len(kinds) != 1 || kinds[0] != SecPasswordChanged {
		t.Fatalf("unexpected security events %v", kinds)
	}
}

func (h *harness) resetDeps(sent *[]string) PasswordResetDeps {
	n := 0
	return PasswordResetDeps{
		Env:         h.env,
		TTL:         time.Hour,
		FrontendURL: "https://app.example.com/",
		NewToken: func() (string, error) {
			n++
			return "tok" + strings.Repeat("x", n), nil
		},
		HashToken:      func(t string) string { return "sha:" + t },
		HashPassword:   fakeHash,
		ValidatePolicy: password.NewPolicy(password.ProfileStandard).Validate,
		SendReset: func(_ context.Context, _ string, link string) error {
			*sent = append(*sent, link)
			return nil
		},
	}
}

func TestPasswordResetLifecycle(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	var sent []string
	deps := h.resetDeps(&sent)
	ctx := context.Background()

	if err := RunRequestPasswordReset(ctx, "ghost@example.com", deps); err != nil {
		t.Fatalf("expected unknown email to succeed silently, got %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("expected nothing sent for unknown email, got %v", sent)
	}

	if err := RunRequestPasswordReset(ctx, "a@example.com", deps); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := RunRequestPasswordReset(ctx, "a@example.com", deps); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if len(sent) != 2 || sent[0] != "https://app.example.com/reset-password?token=tokx" {
		t.Fatalf("unexpected links %v", sent)
	}

	if err := RunRedeemPasswordReset(ctx, "tokx", "N3w!Passphrase", deps); !errors.Is(err, errBadToken) {
		t.Fatalf("expected superseded token rejected, got %v", err)
	}
	if err := RunRedeemPasswordReset(ctx, "tokxx", "weak", deps); !errors.Is(err, errWeak) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if err := RunRedeemPasswordReset(ctx, "tokxx", "N3w!Passphrase", deps); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	c := h.store.get("u1")
	if c.PasswordHash != "h:N3w!Passphrase" || c.ResetTokenHash != "" || c.ResetTokenExpiresAt != nil {
		t.Fatalf("unexpected credential %+v", c)
	}
	if err := RunRedeemPasswordReset(ctx, "tokxx", "An0ther!Pass", deps); !errors.Is(err, errBadToken) {
		t.Fatalf("expected single use, got %v", err)
	}
}

func TestPasswordResetExpiredTokenDoesNotMutatePassword(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	var sent []string
	deps := h.resetDeps(&sent)
	ctx := context.Background()

	if err := RunRequestPasswordReset(ctx, "a@example.com", deps); err != nil {
		t.Fatalf("request: %v", err)
	}
	h.clock.Advance(time.Hour + time.Second)

	if err := RunRedeemPasswordReset(ctx, "tokx", "N3w!Passphrase", deps); !errors.Is(err, errBadToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
	c := h.store.get("u1")
	if c.PasswordHash != "h:Correct#Horse1" {
		t.Fatalf("expected password unchanged, got %q", c.PasswordHash)
	}
	if c.ResetTokenHash != "" {
		t.Fatal("expected expired token cleared")
	}
}

func TestPasswordResetMalformedTokenSkipsLookup(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	var sent []string
	deps := h.resetDeps(&sent)
	ctx := context.Background()

	if err := RunRequestPasswordReset(ctx, "a@example.com", deps); err != nil {
		t.Fatalf("request: %v", err)
	}

	lookups := 0
	lookup := deps.GetByResetToken
	deps.GetByResetToken = func(ctx context.Context, hash string) (*Credential, error) {
		lookups++
		return lookup(ctx, hash)
	}
	deps.CheckTokenShape = func(token string) error {
		if len(token) != 4 {
			return errors.New("bad shape")
		}
		return nil
	}

	if err := RunRedeemPasswordReset(ctx, "tok!!", "N3w!Passphrase", deps); !errors.Is(err, errBadToken) {
		t.Fatalf("expected malformed token rejected, got %v", err)
	}
	if lookups != 0 {
		t.Fatalf("expected no store lookup for a malformed token, got %d", lookups)
	}
	if ev := h.rec.lastAuth(); ev.FailureReason != ReasonTokenInvalid {
		t.Fatalf("unexpected event %+v", ev)
	}
	if c := h.store.get("u1"); c.ResetTokenHash == "" {
		t.Fatal("expected outstanding token untouched")
	}

	if err := RunRedeemPasswordReset(ctx, "tokx", "N3w!Passphrase", deps); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if lookups != 1 {
		t.Fatalf("expected one lookup, got %d", lookups)
	}
}

func TestPasswordResetRedeemClearsLock(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	until := h.clock.Now().Add(10 * time.Minute)
	h.store.Update(context.Background(), "u1", func(c *Credential, _ time.Time) error {
		c.FailedLoginAttempts = 5
		c.LockedUntil = &until
		return nil
	})
	var sent []string
	deps := h.resetDeps(&sent)
	ctx := context.Background()

	if err := RunRequestPasswordReset(ctx, "a@example.com", deps); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := RunRedeemPasswordReset(ctx, "tokx", "N3w!Passphrase", deps); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	c := h.store.get("u1")
	if c.FailedLoginAttempts != 0 || c.LockedUntil != nil {
		t.Fatalf("expected lock cleared, got %d %v", c.FailedLoginAttempts, c.LockedUntil)
	}
}

func TestPasswordResetThrottledStillSucceeds(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	var sent []string
	deps := h.resetDeps(&sent)
	deps.CheckRequestLimiter = func(context.Context, string, string) error { return errors.New("limited") }

	if err := RunRequestPasswordReset(context.Background(), "a@example.com", deps); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(sent) != 0 || h.store.get("u1").ResetTokenHash != "" {
		t.Fatal("expected nothing minted while throttled")
	}
}

func registerDeps(h *harness) RegisterDeps {
	n := 0
	return RegisterDeps{
		Env:         h.env,
		DefaultRole: "user",
		ValidateUsername: func(u string) error {
			if len(u) < 3 {
				return errors.New("short")
			}
			return nil
		},
		ValidateEmail: func(e string) error {
			if !strings.Contains(e, "@") {
				return errors.New("no at")
			}
			return nil
		},
		ValidatePolicy: password.NewPolicy(password.ProfileStandard).Validate,
		HashPassword:   fakeHash,
		NewID: func() string {
			n++
			return "id" + strings.Repeat("1", n)
		},
		IsDuplicate: func(err error) error {
			if errors.Is(err, errDuplicateInsert) {
				return errEmailExists
			}
			return nil
		},
	}
}

func TestRegister(t *testing.T) {
	h := newHarness()
	deps := registerDeps(h)
	ctx := context.Background()

	cred, err := RunRegister(ctx, RegisterRequest{Username: "alice", Email: "Alice@Example.com", Password: "Correct#Horse1"}, deps)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if cred.Email != "alice@example.com" || cred.TwoFactorEnabled || cred.Role != "user" {
		t.Fatalf("unexpected credential %+v", cred)
	}

	cases := []struct {
		req  RegisterRequest
		want error
	}{
		{RegisterRequest{Username: "al", Email: "x@example.com", Password: "Correct#Horse1"}, errBadUsername},
		{RegisterRequest{Username: "bobby", Email: "nope", Password: "Correct#Horse1"}, errBadEmail},
		{RegisterRequest{Username: "bobby", Email: "b@example.com", Password: "short"}, errWeak},
		{RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "Correct#Horse1"}, errEmailExists},
	}
	for i, tc := range cases {
		if _, err := RunRegister(ctx, tc.req, deps); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestLockoutStatusAndUnlock(t *testing.T) {
	h := newHarness()
	h.seed("u1", "a@example.com")
	until := h.clock.Now().Add(10 * time.Minute)
	h.store.Update(context.Background(), "u1", func(c *Credential, _ time.Time) error {
		c.FailedLoginAttempts = 5
		c.LockedUntil = &until
		return nil
	})
	deps := AccountStatusDeps{Env: h.env}
	ctx := context.Background()

	info, err := RunLockoutStatus(ctx, "u1", deps)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !info.Locked || info.Remaining != 10*time.Minute {
		t.Fatalf("unexpected info %+v", info)
	}
	if err := RunUnlockAccount(ctx, "u1", deps); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	info, _ = RunLockoutStatus(ctx, "u1", deps)
	if info.Locked || info.FailedAttempts != 0 {
		t.Fatalf("expected unlocked, got %+v", info)
	}
	if kinds := h.rec.securityKinds(); len(kinds) != 1 || kinds[0] != SecAccountUnlocked {
		t.Fatalf("unexpected security events %v", kinds)
	}
	if _, err := RunLockoutStatus(ctx, "ghost", deps); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestValidateSessionRejectsPreAuth(t *testing.T) {
	tokens := &fakeTokens{clock: &fakeClock{}}
	deps := SessionDeps{Env: Env{Errors: testErrors()}, Decode: tokens.decode}

	claims, err := RunValidateSession(context.Background(), "session:u1", deps)
	if err != nil || claims.UserID != "u1" {
		t.Fatalf("expected valid session, got %+v %v", claims, err)
	}
	if _, err := RunValidateSession(context.Background(), "pre:u1", deps); !errors.Is(err, errBadToken) {
		t.Fatalf("expected pre-auth rejected, got %v", err)
	}
}

func TestEngineNotReady(t *testing.T) {
	if _, err := RunLogin(context.Background(), "a", "b", LoginDeps{Env: Env{Errors: testErrors()}}); !errors.Is(err, errEngineNotReady) {
		t.Fatalf("expected engine not ready, got %v", err)
	}
}
