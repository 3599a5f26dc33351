// Package auth implements the login state machine: password verification,
// second-factor dispatch, email verification and password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruinabla/auth-api/internal/domain"
	"github.com/ruinabla/auth-api/internal/infrastructure/smtp"
	"github.com/ruinabla/auth-api/internal/pkg/backupcode"
	"github.com/ruinabla/auth-api/internal/pkg/id"
	"github.com/ruinabla/auth-api/internal/pkg/passhash"
	pkgtoken "github.com/ruinabla/auth-api/internal/pkg/token"
	pkgtotp "github.com/ruinabla/auth-api/internal/pkg/totp"
)

const emailTokenBytes = 32

// Second-factor method names returned to the client after password
// verification.
const (
	MethodTOTP    = "totp"
	MethodPasskey = "passkey"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

type VerifyTOTPRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Remember bool   `json:"remember"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// LoginResult is either an issued session (Session and User set) or a
// second-factor demand (Requires2FA set, Session nil).
type LoginResult struct {
	Requires2FA bool
	UserID      string
	Email       string
	Methods     []string
	Session     *domain.Session
	User        *domain.User
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	VerifyLoginTOTP(ctx context.Context, req VerifyTOTPRequest) (*domain.Session, *domain.User, error)
	VerifyEmail(ctx context.Context, token string) (*domain.Session, *domain.User, error)
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	Logout(ctx context.Context, sessionID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	SetEmailVerified(ctx context.Context, userID string) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

type totpStore interface {
	Get(ctx context.Context, userID string) (*domain.TOTPSecret, error)
	ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error)
}

type passkeyStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Passkey, error)
}

type tokenStore interface {
	Put(ctx context.Context, t *domain.EmailToken) error
	Get(ctx context.Context, token string) (*domain.EmailToken, error)
	Delete(ctx context.Context, token string) error
}

type sessionManager interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAll(ctx context.Context, userID string) error
}

type service struct {
	users       userStore
	totpSecrets totpStore
	passkeys    passkeyStore
	tokens      tokenStore
	sessions    sessionManager
	mailer      smtp.Mailer
	devIdentity TestIdentityProvider

	baseURL     string
	sessionTTL  time.Duration
	rememberTTL time.Duration
	devTTL      time.Duration
	tokenTTL    time.Duration
}

type ServiceDeps struct {
	Users       userStore
	TOTPSecrets totpStore
	Passkeys    passkeyStore
	Tokens      tokenStore
	Sessions    sessionManager
	Mailer      smtp.Mailer
	DevIdentity TestIdentityProvider // nil outside development

	BaseURL     string
	SessionTTL  time.Duration
	RememberTTL time.Duration
	DevTTL      time.Duration
	TokenTTL    time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:       deps.Users,
		totpSecrets: deps.TOTPSecrets,
		passkeys:    deps.Passkeys,
		tokens:      deps.Tokens,
		sessions:    deps.Sessions,
		mailer:      deps.Mailer,
		devIdentity: deps.DevIdentity,
		baseURL:     deps.BaseURL,
		sessionTTL:  deps.SessionTTL,
		rememberTTL: deps.RememberTTL,
		devTTL:      deps.DevTTL,
		tokenTTL:    deps.TokenTTL,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	hash, err := passhash.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:        id.New(),
		Email:         req.Email,
		PasswordHash:  hash,
		EmailVerified: false,
		Role:          domain.RoleUser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	// No session on register: the account stays unusable until the mailed
	// verification link is followed. A mail failure is logged, not surfaced.
	s.sendVerification(ctx, u.Email)
	return u, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if s.devIdentity != nil {
		if u, ok := s.devIdentity.Identify(req.Email, req.Password); ok {
			sess, err := s.sessions.Create(ctx, u.UserID, s.devTTL)
			if err != nil {
				return nil, err
			}
			return &LoginResult{Session: sess, User: u}, nil
		}
	}

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if !passhash.Verify(req.Password, u.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	methods, err := s.secondFactorMethods(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	if len(methods) > 0 {
		return &LoginResult{
			Requires2FA: true,
			UserID:      u.UserID,
			Email:       u.Email,
			Methods:     methods,
		}, nil
	}

	sess, err := s.sessions.Create(ctx, u.UserID, s.loginTTL(req.Remember))
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess, User: u}, nil
}

func (s *service) VerifyLoginTOTP(ctx context.Context, req VerifyTOTPRequest) (*domain.Session, *domain.User, error) {
	rec, err := s.totpSecrets.Get(ctx, req.UserID)
	if err != nil || !rec.Enabled {
		return nil, nil, fmt.Errorf("totp is not enabled: %w", domain.ErrBadRequest)
	}

	if !pkgtotp.Verify(rec.Secret, req.Code) {
		// Not a current-window code; try it as a single-use backup code.
		consumed, err := s.totpSecrets.ConsumeBackupCode(ctx, req.UserID, backupcode.Normalize(req.Code))
		if err != nil {
			return nil, nil, err
		}
		if !consumed {
			return nil, nil, fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
		}
	}

	u, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
	}
	sess, err := s.sessions.Create(ctx, u.UserID, s.loginTTL(req.Remember))
	if err != nil {
		return nil, nil, err
	}
	return sess, u, nil
}

func (s *service) VerifyEmail(ctx context.Context, token string) (*domain.Session, *domain.User, error) {
	t, err := s.tokens.Get(ctx, token)
	if err != nil || t.Type != domain.TokenVerifyEmail {
		return nil, nil, fmt.Errorf("invalid token: %w", domain.ErrNotFound)
	}
	if t.ExpiresAt <= time.Now().Unix() {
		if err := s.tokens.Delete(ctx, token); err != nil {
			slog.Warn("failed to delete expired token", "type", t.Type, "err", err)
		}
		return nil, nil, fmt.Errorf("token expired: %w", domain.ErrBadRequest)
	}
	u, err := s.users.GetByEmail(ctx, t.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid token: %w", domain.ErrNotFound)
	}
	if err := s.users.SetEmailVerified(ctx, u.UserID); err != nil {
		return nil, nil, err
	}
	u.EmailVerified = true
	if err := s.tokens.Delete(ctx, token); err != nil {
		slog.Warn("failed to consume verification token", "err", err)
	}
	// Verification doubles as login.
	sess, err := s.sessions.Create(ctx, u.UserID, s.sessionTTL)
	if err != nil {
		return nil, nil, err
	}
	return sess, u, nil
}

func (s *service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("no account for this email: %w", domain.ErrNotFound)
	}
	if u.EmailVerified {
		return nil
	}
	s.sendVerification(ctx, u.Email)
	return nil
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	// The response is identical whether or not the account exists, so this
	// endpoint cannot be used to enumerate registered addresses.
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil
	}
	tok, err := pkgtoken.New(emailTokenBytes)
	if err != nil {
		return nil
	}
	t := &domain.EmailToken{
		Token:     tok,
		Email:     u.Email,
		Type:      domain.TokenResetPassword,
		ExpiresAt: time.Now().Add(s.tokenTTL).Unix(),
	}
	if err := s.tokens.Put(ctx, t); err != nil {
		slog.Warn("failed to store reset token", "err", err)
		return nil
	}
	subject, body := smtp.PasswordResetEmail(s.baseURL + "/reset-password/" + tok)
	if err := s.mailer.SendEmail(u.Email, subject, body); err != nil {
		slog.Warn("failed to send reset email", "err", err)
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if len(req.NewPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", domain.ErrBadRequest)
	}
	t, err := s.tokens.Get(ctx, req.Token)
	if err != nil || t.Type != domain.TokenResetPassword {
		return fmt.Errorf("invalid token: %w", domain.ErrNotFound)
	}
	if t.ExpiresAt <= time.Now().Unix() {
		if err := s.tokens.Delete(ctx, req.Token); err != nil {
			slog.Warn("failed to delete expired token", "type", t.Type, "err", err)
		}
		return fmt.Errorf("token expired: %w", domain.ErrBadRequest)
	}
	u, err := s.users.GetByEmail(ctx, t.Email)
	if err != nil {
		return fmt.Errorf("invalid token: %w", domain.ErrNotFound)
	}
	hash, err := passhash.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, u.UserID, hash); err != nil {
		return err
	}
	if err := s.tokens.Delete(ctx, req.Token); err != nil {
		slog.Warn("failed to consume reset token", "err", err)
	}
	// Force re-authentication everywhere.
	return s.sessions.InvalidateAll(ctx, u.UserID)
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Invalidate(ctx, sessionID)
}

func (s *service) loginTTL(remember bool) time.Duration {
	if remember {
		return s.rememberTTL
	}
	return s.sessionTTL
}

// secondFactorMethods resolves which second factors stand between a correct
// password and a session. A missing TOTP record means none is enrolled; any
// other storage error aborts the login rather than degrading it to
// password-only.
func (s *service) secondFactorMethods(ctx context.Context, userID string) ([]string, error) {
	var methods []string
	rec, err := s.totpSecrets.Get(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup totp secret: %w", err)
	}
	if err == nil && rec.Enabled {
		methods = append(methods, MethodTOTP)
	}
	pks, err := s.passkeys.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list passkeys: %w", err)
	}
	if len(pks) > 0 {
		methods = append(methods, MethodPasskey)
	}
	return methods, nil
}

func (s *service) sendVerification(ctx context.Context, email string) {
	tok, err := pkgtoken.New(emailTokenBytes)
	if err != nil {
		slog.Warn("failed to generate verification token", "err", err)
		return
	}
	t := &domain.EmailToken{
		Token:     tok,
		Email:     email,
		Type:      domain.TokenVerifyEmail,
		ExpiresAt: time.Now().Add(s.tokenTTL).Unix(),
	}
	if err := s.tokens.Put(ctx, t); err != nil {
		slog.Warn("failed to store verification token", "err", err)
		return
	}
	subject, body := smtp.VerificationEmail(s.baseURL + "/verify-email/" + tok)
	if err := s.mailer.SendEmail(email, subject, body); err != nil {
		slog.Warn("failed to send verification email", "err", err)
	}
}
