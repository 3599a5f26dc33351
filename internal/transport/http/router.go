package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ruinabla/auth-api/internal/application/auth"
	"github.com/ruinabla/auth-api/internal/application/passkey"
	"github.com/ruinabla/auth-api/internal/application/session"
	totpapp "github.com/ruinabla/auth-api/internal/application/totp"
	"github.com/ruinabla/auth-api/internal/config"
	"github.com/ruinabla/auth-api/internal/domain"
	"github.com/ruinabla/auth-api/internal/infrastructure/dynamo"
	"github.com/ruinabla/auth-api/internal/infrastructure/smtp"
	"github.com/ruinabla/auth-api/internal/transport/http/handler"
	appmiddleware "github.com/ruinabla/auth-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo       *dynamo.UserRepo
	SessionRepo    *dynamo.SessionRepo
	TOTPSecretRepo *dynamo.TOTPSecretRepo
	PasskeyRepo    *dynamo.PasskeyRepo
	EmailTokenRepo *dynamo.EmailTokenRepo
	ChallengeRepo  *dynamo.ChallengeRepo
	Mailer         smtp.Mailer

	// DevIdentity is nil in production; main.go wires it only for
	// non-production environments.
	DevIdentity auth.TestIdentityProvider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	sessionTTL := time.Duration(cfg.SessionDays) * 24 * time.Hour
	rememberTTL := time.Duration(cfg.RememberSessionDays) * 24 * time.Hour

	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo: deps.SessionRepo,
		UserRepo:    deps.UserRepo,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Users:       deps.UserRepo,
		TOTPSecrets: deps.TOTPSecretRepo,
		Passkeys:    deps.PasskeyRepo,
		Tokens:      deps.EmailTokenRepo,
		Sessions:    sessionSvc,
		Mailer:      deps.Mailer,
		DevIdentity: deps.DevIdentity,
		BaseURL:     cfg.BaseURL,
		SessionTTL:  sessionTTL,
		RememberTTL: rememberTTL,
		DevTTL:      time.Duration(cfg.DevSessionMinutes) * time.Minute,
		TokenTTL:    time.Hour,
	})
	totpSvc := totpapp.NewService(totpapp.ServiceDeps{
		TOTPSecrets: deps.TOTPSecretRepo,
		Users:       deps.UserRepo,
		Issuer:      cfg.TOTPIssuer,
	})
	passkeySvc := passkey.NewService(passkey.ServiceDeps{
		Passkeys:    deps.PasskeyRepo,
		Challenges:  deps.ChallengeRepo,
		Users:       deps.UserRepo,
		Sessions:    sessionSvc,
		RPID:        cfg.RPID,
		RPName:      cfg.RPName,
		SessionTTL:  sessionTTL,
		RememberTTL: rememberTTL,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	totpH := handler.NewTOTPHandler(totpSvc)
	passkeyH := handler.NewPasskeyHandler(passkeySvc)
	adminH := handler.NewAdminHandler(sessionSvc)

	authMw := appmiddleware.Auth(sessionSvc)

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/verify-totp", authH.VerifyTOTP)
		r.Post("/auth/verify-email", authH.VerifyEmail)
		r.With(sensitiveRL.Limit).Post("/auth/resend-verification", authH.ResendVerification)
		r.With(sensitiveRL.Limit).Post("/auth/request-reset", authH.RequestReset)
		r.Post("/auth/reset-password", authH.ResetPassword)

		r.With(sensitiveRL.Limit).Post("/passkey/login-options", passkeyH.LoginOptions)
		r.With(sensitiveRL.Limit).Post("/passkey/login", passkeyH.Login)
		r.Post("/passkey/2fa-options", passkeyH.SecondFactorOptions)
		r.Post("/passkey/verify-2fa", passkeyH.VerifySecondFactor)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/logout", authH.Logout)
			r.Get("/auth/me", authH.Me)

			r.Get("/totp/enabled", totpH.Enabled)
			r.Post("/totp/enable", totpH.Enable)
			r.Post("/totp/verify-enable", totpH.VerifyEnable)
			r.Post("/totp/disable", totpH.Disable)
			r.Get("/totp/backup-codes", totpH.BackupCodes)
			r.Post("/totp/regenerate-backup-codes", totpH.RegenerateBackupCodes)

			r.Post("/passkey/register-options", passkeyH.RegisterOptions)
			r.Post("/passkey/register", passkeyH.Register)
			r.Get("/passkey", passkeyH.List)
			r.Delete("/passkey/{id}", passkeyH.Delete)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/admin/sessions/purge", adminH.PurgeSessions)
			})
		})
	})

	return r
}
