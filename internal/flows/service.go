package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.Update != nil && s.deps.Login.IssueSession != nil
}

func (s Service) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	return RunLogin(ctx, email, pass, s.deps.Login)
}

func (s Service) VerifySecondFactor(ctx context.Context, preAuthToken, code string) (*LoginResult, error) {
	return RunVerifySecondFactor(ctx, preAuthToken, code, s.deps.SecondFactor)
}

func (s Service) EmailSecondFactorCode(ctx context.Context, preAuthToken string) error {
	return RunEmailSecondFactorCode(ctx, preAuthToken, s.deps.SecondFactor)
}

func (s Service) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	return RunSetupTwoFactor(ctx, userID, s.deps.TwoFactor)
}

func (s Service) EnableTwoFactor(ctx context.Context, userID, code string) error {
	return RunEnableTwoFactor(ctx, userID, code, s.deps.TwoFactor)
}

func (s Service) DisableTwoFactor(ctx context.Context, userID, code string) error {
	return RunDisableTwoFactor(ctx, userID, code, s.deps.TwoFactor)
}

func (s Service) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	return RunRegenerateBackupCodes(ctx, userID, code, s.deps.TwoFactor)
}

func (s Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	return RunChangePassword(ctx, userID, current, next, s.deps.ChangePassword)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	return RunRequestPasswordReset(ctx, email, s.deps.PasswordReset)
}

func (s Service) RedeemPasswordReset(ctx context.Context, token, newPassword string) error {
	return RunRedeemPasswordReset(ctx, token, newPassword, s.deps.PasswordReset)
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*Credential, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) LockoutStatus(ctx context.Context, userID string) (LockoutInfo, error) {
	return RunLockoutStatus(ctx, userID, s.deps.AccountStatus)
}

func (s Service) UnlockAccount(ctx context.Context, userID string) error {
	return RunUnlockAccount(ctx, userID, s.deps.AccountStatus)
}

func (s Service) ValidateSession(ctx context.Context, token string) (*SessionClaims, error) {
	return RunValidateSession(ctx, token, s.deps.Session)
}
