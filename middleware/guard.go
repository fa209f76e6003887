package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	mtAuth "github.com/MrEthical07/mtAuth"
)

// SessionValidator is satisfied by *mtAuth.Engine.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*mtAuth.SessionClaims, error)
}

// AccountLoader is satisfied by *mtAuth.Engine.
type AccountLoader interface {
	Account(ctx context.Context, userID string) (*mtAuth.Account, error)
}

// RequireSession rejects requests without a valid session bearer token and
// stores the validated claims with mtAuth.WithSessionClaims. Pre-2FA tokens
// are rejected.
func RequireSession(engine SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, mtAuth.ErrInvalidOrExpiredToken)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, mtAuth.ErrInvalidOrExpiredToken)
				return
			}

			claims, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				writeError(w, mtAuth.ErrInvalidOrExpiredToken)
				return
			}

			ctx := mtAuth.WithSessionClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTwoFactor must run after RequireSession. It rejects accounts that
// have not enabled two-factor authentication with 2FA_NOT_ENABLED.
func RequireTwoFactor(accounts AccountLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := mtAuth.SessionClaimsFromContext(r.Context())
			if !ok || accounts == nil {
				writeError(w, mtAuth.ErrInvalidOrExpiredToken)
				return
			}

			acct, err := accounts.Account(r.Context(), claims.UserID)
			if err != nil {
				writeError(w, err)
				return
			}
			if !acct.TwoFactorEnabled {
				writeError(w, mtAuth.ErrTwoFactorNotEnabled)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, err error) {
	res := mtAuth.ResultFromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.HTTPStatus)
	_ = json.NewEncoder(w).Encode(res)
}
