package mtAuth

import "context"

// LockoutStatus reports whether userID is locked, how many consecutive
// failures are recorded and how long the lock has left. An elapsed lock is
// cleared and persisted as a side effect.
func (e *Engine) LockoutStatus(ctx context.Context, userID string) (LockoutInfo, error) {
	if e == nil {
		return LockoutInfo{}, ErrEngineNotReady
	}
	return e.flow.LockoutStatus(ctx, userID)
}

// UnlockAccount describes the unlockaccount operation and its observable behavior.
//
// UnlockAccount clears the lock and the failure counter. The
// account_unlocked security event is emitted only when a lock was active.
func (e *Engine) UnlockAccount(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.flow.UnlockAccount(ctx, userID)
}
