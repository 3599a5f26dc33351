package auth

import (
	"crypto/subtle"

	"github.com/ruinabla/auth-api/internal/domain"
)

// TestIdentityProvider short-circuits the password check for a fixture
// account. It is an explicit injection seam: main.go wires an implementation
// only outside production, so production builds carry a nil provider and no
// bypass path at all.
type TestIdentityProvider interface {
	Identify(email, password string) (*domain.User, bool)
}

// StaticIdentity matches a single fixed credential pair against a
// pre-provisioned user.
type StaticIdentity struct {
	User     *domain.User
	Password string
}

func (p *StaticIdentity) Identify(email, password string) (*domain.User, bool) {
	if p.User == nil || email != p.User.Email {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(p.Password)) != 1 {
		return nil, false
	}
	return p.User, true
}
