package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/mtAuth/password"
)

// RegisterRequest is the sign-up input.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// AccountMetrics carries metric IDs for account creation.
type AccountMetrics struct {
	RegisterSuccess     int
	RegisterFailure     int
	RegisterDuplicate   int
	RegisterRateLimited int
}

// RegisterDeps captures account creation dependencies.
type RegisterDeps struct {
	Env

	DefaultRole string

	ValidateUsername func(string) error
	ValidateEmail    func(string) error
	ValidatePolicy   func(string) []password.Violation
	HashPassword     func(string) (string, error)
	NewID            func() string

	// CheckRegisterLimiter throttles sign-ups per email and client IP.
	CheckRegisterLimiter func(ctx context.Context, email, ip string) error
	// IsDuplicate maps a store error to the matching duplicate sentinel, or
	// returns nil for any other failure.
	IsDuplicate func(error) error

	Metrics AccountMetrics
}

// RunRegister creates an account with a hashed password and the second
// factor off. Username and email format are checked before the policy.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*Credential, error) {
	normalizeEnv(&deps.Env)
	if deps.Create == nil || deps.ValidateUsername == nil || deps.ValidateEmail == nil ||
		deps.ValidatePolicy == nil || deps.HashPassword == nil || deps.NewID == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.IsDuplicate == nil {
		deps.IsDuplicate = func(error) error { return nil }
	}

	username := strings.TrimSpace(req.Username)
	email := NormalizeEmail(req.Email)

	fail := func(reason string, err error) (*Credential, error) {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		ev := deps.authEvent(ctx, KindRegister, nil)
		ev.Username = username
		ev.Email = email
		ev.FailureReason = reason
		deps.EmitAuth(ctx, ev)
		return nil, err
	}

	if err := deps.ValidateUsername(username); err != nil {
		return fail(ReasonInvalidInput, deps.Errors.InvalidUsernameFormat)
	}
	if err := deps.ValidateEmail(email); err != nil {
		return fail(ReasonInvalidInput, deps.Errors.InvalidEmailFormat)
	}
	if violations := deps.ValidatePolicy(req.Password); len(violations) > 0 {
		return fail(ReasonWeakPassword, deps.Errors.WeakPassword(violations))
	}

	if deps.CheckRegisterLimiter != nil {
		if err := deps.CheckRegisterLimiter(ctx, email, deps.ClientIPFromContext(ctx)); err != nil {
			deps.MetricInc(deps.Metrics.RegisterRateLimited)
			return fail(ReasonRateLimited, deps.Errors.RateLimited)
		}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, deps.internal(ctx, "register: hash password", err)
	}

	cred := &Credential{
		ID:           deps.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         deps.DefaultRole,
		CreatedAt:    deps.Now().UTC(),
	}
	if err := deps.Create(ctx, cred); err != nil {
		if dup := deps.IsDuplicate(err); dup != nil {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			return fail(ReasonDuplicate, dup)
		}
		return nil, deps.internal(ctx, "register: create", err)
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.emitAuthSuccess(ctx, KindRegister, cred)
	return cred, nil
}
