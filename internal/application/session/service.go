// Package session manages opaque bearer sessions: creation, validation with
// a live user join, and invalidation.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruinabla/auth-api/internal/domain"
	pkgtoken "github.com/ruinabla/auth-api/internal/pkg/token"
)

// sessionIDBytes is the entropy of a bearer session ID (hex-encoded to 64
// characters).
const sessionIDBytes = 32

type Service interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error)
	// Validate resolves a bearer session ID to its session and owning user.
	// The user's role is read live, so a role change takes effect on the
	// next validated request. Missing, expired and orphaned sessions all
	// map to ErrUnauthorized.
	Validate(ctx context.Context, sessionID string) (*domain.User, *domain.Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAll(ctx context.Context, userID string) error
	PurgeExpired(ctx context.Context) (int, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now int64) (int, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	sessionRepo sessionStore
	userRepo    userStore
}

type ServiceDeps struct {
	SessionRepo sessionStore
	UserRepo    userStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		sessionRepo: deps.SessionRepo,
		userRepo:    deps.UserRepo,
	}
}

func (s *service) Create(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	sid, err := pkgtoken.New(sessionIDBytes)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID: sid,
		UserID:    userID,
		ExpiresAt: now.Add(ttl).Unix(),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) Validate(ctx context.Context, sessionID string) (*domain.User, *domain.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid session: %w", domain.ErrUnauthorized)
	}
	if sess.Expired(time.Now()) {
		// TTL will reap the row eventually; delete now so the token dies
		// immediately.
		if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
			slog.Warn("failed to delete expired session", "session_id", sessionID, "err", err)
		}
		return nil, nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("session user missing: %w", domain.ErrUnauthorized)
	}
	return u, sess, nil
}

func (s *service) Invalidate(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Delete(ctx, sessionID)
}

func (s *service) InvalidateAll(ctx context.Context, userID string) error {
	return s.sessionRepo.DeleteByUser(ctx, userID)
}

func (s *service) PurgeExpired(ctx context.Context) (int, error) {
	return s.sessionRepo.DeleteExpired(ctx, time.Now().Unix())
}
