package mtAuth

import (
	"context"

	"github.com/MrEthical07/mtAuth/internal/flows"
)

// Register describes the register operation and its observable behavior.
//
// Register validates username and email format, then the password policy,
// and creates the account with two-factor off and the configured default
// role. A taken username or email returns ErrUserAlreadyExists or
// ErrEmailAlreadyExists; a policy failure returns a *WeakPasswordError.
func (e *Engine) Register(ctx context.Context, username, email, pass string) (*Account, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	c, err := e.flow.Register(ctx, flows.RegisterRequest{
		Username: username,
		Email:    email,
		Password: pass,
	})
	if err != nil {
		return nil, err
	}
	return accountFromCredential(c), nil
}

// Account returns the public projection of userID.
func (e *Engine) Account(ctx context.Context, userID string) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrNotFound
	}
	c, err := e.store.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		e.logError(ctx, "account: load credential", err)
		return nil, ErrInternal
	}
	return accountFromCredential(c), nil
}
