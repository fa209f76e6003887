package mtAuth

import "context"

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword returns ErrInvalidCredentials when current does not match
// and a *WeakPasswordError when next fails the policy. Use
// ChangePasswordResult to map the wrong-password case for display.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.flow.ChangePassword(ctx, userID, current, next)
}

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset always returns nil so callers cannot learn whether
// email is registered. Known accounts get a single-use token by mail;
// throttled requests are dropped silently.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.flow.RequestPasswordReset(ctx, email)
}

// RedeemPasswordReset sets a new password using a reset token. The token is
// consumed on success and the lockout is cleared. Unknown, used and expired
// tokens all return ErrInvalidOrExpiredToken.
func (e *Engine) RedeemPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.flow.RedeemPasswordReset(ctx, token, newPassword)
}
