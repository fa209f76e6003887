package mtAuth

import "context"

// SetupTwoFactor describes the setuptwofactor operation and its observable behavior.
//
// SetupTwoFactor generates a fresh secret and backup codes for userID and
// persists them sealed and hashed, leaving two-factor disabled until
// EnableTwoFactor confirms a code. Calling it again replaces any pending
// secret. It returns ErrTwoFactorAlreadyEnabled when the factor is active.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.flow.SetupTwoFactor(ctx, userID)
}

// EnableTwoFactor turns two-factor on after checking code against the
// pending secret. The backup codes are mailed on success.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.flow.EnableTwoFactor(ctx, userID, code)
}

// DisableTwoFactor requires a current TOTP code and clears the secret and
// every backup code.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.flow.DisableTwoFactor(ctx, userID, code)
}

// RegenerateBackupCodes replaces every backup code after checking a current
// TOTP code. The new plaintext codes are returned once.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.flow.RegenerateBackupCodes(ctx, userID, code)
}
