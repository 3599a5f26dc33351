// Package totp manages TOTP enrollment: secret provisioning, enable
// confirmation, disable, and backup code lifecycle.
package totp

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruinabla/auth-api/internal/domain"
	"github.com/ruinabla/auth-api/internal/pkg/backupcode"
	"github.com/ruinabla/auth-api/internal/pkg/passhash"
	pkgtotp "github.com/ruinabla/auth-api/internal/pkg/totp"
)

// EnrollResult carries everything the client needs to finish enrollment:
// the raw secret for manual entry, the otpauth URI, a QR data URL and the
// freshly generated backup codes (shown exactly once).
type EnrollResult struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	QR          string   `json:"qr"`
	BackupCodes []string `json:"backupCodes"`
}

type Service interface {
	Status(ctx context.Context, userID string) (bool, error)
	// Enable provisions a new secret in the pending state. The secret does
	// not govern login until VerifyEnable proves the authenticator works.
	Enable(ctx context.Context, userID string) (*EnrollResult, error)
	VerifyEnable(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, password string) error
	BackupCodes(ctx context.Context, userID string) ([]string, error)
	RegenerateBackupCodes(ctx context.Context, userID, password string) ([]string, error)
}

type totpStore interface {
	Get(ctx context.Context, userID string) (*domain.TOTPSecret, error)
	Put(ctx context.Context, s *domain.TOTPSecret) error
	Enable(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
	SetBackupCodes(ctx context.Context, userID string, codes []string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	totpSecrets totpStore
	users       userStore
	issuer      string
}

type ServiceDeps struct {
	TOTPSecrets totpStore
	Users       userStore
	Issuer      string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		totpSecrets: deps.TOTPSecrets,
		users:       deps.Users,
		issuer:      deps.Issuer,
	}
}

func (s *service) Status(ctx context.Context, userID string) (bool, error) {
	rec, err := s.totpSecrets.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Enabled, nil
}

func (s *service) Enable(ctx context.Context, userID string) (*EnrollResult, error) {
	if rec, err := s.totpSecrets.Get(ctx, userID); err == nil && rec.Enabled {
		return nil, fmt.Errorf("totp already enabled: %w", domain.ErrBadRequest)
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	secret, err := pkgtotp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	codes, err := backupcode.Generate(backupcode.DefaultCount)
	if err != nil {
		return nil, err
	}
	if err := s.totpSecrets.Put(ctx, &domain.TOTPSecret{
		UserID:      userID,
		Secret:      secret,
		Enabled:     false,
		BackupCodes: codes,
	}); err != nil {
		return nil, err
	}
	uri := pkgtotp.URI(secret, u.Email, s.issuer)
	qr, err := pkgtotp.QRCode(uri)
	if err != nil {
		return nil, err
	}
	return &EnrollResult{Secret: secret, URI: uri, QR: qr, BackupCodes: codes}, nil
}

func (s *service) VerifyEnable(ctx context.Context, userID, code string) error {
	rec, err := s.totpSecrets.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("no pending totp enrollment: %w", domain.ErrBadRequest)
	}
	if rec.Enabled {
		return fmt.Errorf("totp already enabled: %w", domain.ErrBadRequest)
	}
	if !pkgtotp.Verify(rec.Secret, code) {
		return fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
	}
	return s.totpSecrets.Enable(ctx, userID)
}

func (s *service) Disable(ctx context.Context, userID, password string) error {
	if err := s.verifyPassword(ctx, userID, password); err != nil {
		return err
	}
	return s.totpSecrets.Delete(ctx, userID)
}

func (s *service) BackupCodes(ctx context.Context, userID string) ([]string, error) {
	rec, err := s.totpSecrets.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("totp is not enabled: %w", domain.ErrBadRequest)
	}
	return rec.BackupCodes, nil
}

func (s *service) RegenerateBackupCodes(ctx context.Context, userID, password string) ([]string, error) {
	if err := s.verifyPassword(ctx, userID, password); err != nil {
		return nil, err
	}
	if _, err := s.totpSecrets.Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("totp is not enabled: %w", domain.ErrBadRequest)
	}
	codes, err := backupcode.Generate(backupcode.DefaultCount)
	if err != nil {
		return nil, err
	}
	if err := s.totpSecrets.SetBackupCodes(ctx, userID, codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// verifyPassword re-proves the caller's current password. Security-posture
// changes must not be possible with a stolen session alone.
func (s *service) verifyPassword(ctx context.Context, userID, password string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !passhash.Verify(password, u.PasswordHash) {
		return fmt.Errorf("invalid password: %w", domain.ErrUnauthorized)
	}
	return nil
}
