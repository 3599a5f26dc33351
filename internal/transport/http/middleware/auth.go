package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ruinabla/auth-api/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller: the session presented as the Bearer
// token and the user it resolved to, with the role read live at request time.
type Identity struct {
	User    *domain.User
	Session *domain.Session
}

// SessionValidator resolves a bearer session ID to its user and session.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string) (*domain.User, *domain.Session, error)
}

// Auth returns middleware that validates the Bearer session ID and injects
// the resolved identity into the request context.
func Auth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			sessionID := strings.TrimPrefix(authHeader, "Bearer ")
			u, sess, err := sessions.Validate(r.Context(), sessionID)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), &Identity{User: u, Session: sess})))
		})
	}
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the authenticated identity from the request
// context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}
