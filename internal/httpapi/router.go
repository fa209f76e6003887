// Package httpapi is the thin JSON boundary over mtAuth.Engine used by the
// server binary. Every response body carries success, code and message in
// the shape of mtAuth.Result.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	mtAuth "github.com/MrEthical07/mtAuth"
	"github.com/MrEthical07/mtAuth/middleware"
)

// Authenticator is the engine surface the handlers call. *mtAuth.Engine
// satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, pass string) (*mtAuth.LoginResult, error)
	VerifySecondFactor(ctx context.Context, preAuthToken, code string) (*mtAuth.LoginResult, error)
	EmailSecondFactorCode(ctx context.Context, preAuthToken string) error
	Register(ctx context.Context, username, email, pass string) (*mtAuth.Account, error)
	Account(ctx context.Context, userID string) (*mtAuth.Account, error)
	ValidateSession(ctx context.Context, token string) (*mtAuth.SessionClaims, error)
	SetupTwoFactor(ctx context.Context, userID string) (*mtAuth.TwoFactorSetup, error)
	EnableTwoFactor(ctx context.Context, userID, code string) error
	DisableTwoFactor(ctx context.Context, userID, code string) error
	RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	RequestPasswordReset(ctx context.Context, email string) error
	RedeemPasswordReset(ctx context.Context, token, newPassword string) error
}

// Options configures NewRouter.
type Options struct {
	Logger *zap.Logger
	// CORSOrigins lists allowed browser origins. Empty allows none.
	CORSOrigins []string
	// TrustProxy honours X-Forwarded-For for the client IP.
	TrustProxy bool
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

type handler struct {
	auth Authenticator
}

// NewRouter wires the /auth routes onto a chi router.
func NewRouter(auth Authenticator, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{auth: auth}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(accessLog(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.ClientInfo(opts.TrustProxy))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/register", h.register)
		ar.Post("/login", h.login)
		ar.Post("/verify-2fa", h.verifySecondFactor)
		ar.Post("/send-2fa-code", h.sendSecondFactorCode)
		ar.Post("/forgot-password", h.forgotPassword)
		ar.Post("/reset-password", h.resetPassword)

		ar.Group(func(pr chi.Router) {
			pr.Use(middleware.RequireSession(auth))

			pr.Get("/me", h.me)
			pr.Post("/setup-2fa", h.setupTwoFactor)
			pr.Post("/enable-2fa", h.enableTwoFactor)
			pr.Post("/change-password", h.changePassword)

			pr.Group(func(tr chi.Router) {
				tr.Use(middleware.RequireTwoFactor(auth))
				tr.Post("/disable-2fa", h.disableTwoFactor)
				tr.Post("/backup-codes", h.regenerateBackupCodes)
			})
		})
	})

	return r
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
