// Package passkey manages WebAuthn credential registration and assertion.
// Challenges are persisted server-side and consumed atomically, so a
// completion call can never present a challenge the server did not issue.
// Attestation statements and assertion signatures are not verified; only the
// credential's public key is stored.
package passkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruinabla/auth-api/internal/domain"
	"github.com/ruinabla/auth-api/internal/pkg/id"
	pkgtoken "github.com/ruinabla/auth-api/internal/pkg/token"
)

const (
	challengeBytes  = 32
	challengeTTL    = 5 * time.Minute
	ceremonyTimeout = 60_000 // milliseconds, surfaced in options payloads

	scopeAssert      = "assert"
	scopeRegisterFmt = "register:%s"
)

type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserEntity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type CredParam struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

type CredentialDescriptor struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Transports []string `json:"transports,omitempty"`
}

type AuthenticatorSelection struct {
	ResidentKey      string `json:"residentKey"`
	UserVerification string `json:"userVerification"`
}

type RegistrationOptions struct {
	Challenge              string                 `json:"challenge"`
	RP                     RelyingParty           `json:"rp"`
	User                   UserEntity             `json:"user"`
	PubKeyCredParams       []CredParam            `json:"pubKeyCredParams"`
	Timeout                int                    `json:"timeout"`
	ExcludeCredentials     []CredentialDescriptor `json:"excludeCredentials"`
	AuthenticatorSelection AuthenticatorSelection `json:"authenticatorSelection"`
}

type AssertionOptions struct {
	Challenge        string                 `json:"challenge"`
	RPID             string                 `json:"rpId"`
	Timeout          int                    `json:"timeout"`
	UserVerification string                 `json:"userVerification"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials,omitempty"`
}

// SecondFactorOptions is the pre-login probe response: whether the account
// has passkeys at all, and assertion options when it does.
type SecondFactorOptions struct {
	HasPasskeys bool              `json:"hasPasskeys"`
	Options     *AssertionOptions `json:"passkeyOptions,omitempty"`
}

type RegisterRequest struct {
	CredentialID   string   `json:"credentialId" validate:"required"`
	PublicKey      string   `json:"publicKey" validate:"required"`
	ClientDataJSON string   `json:"clientDataJSON" validate:"required"`
	Transports     []string `json:"transports"`
	Name           string   `json:"name"`
}

type LoginRequest struct {
	CredentialID   string `json:"credentialId" validate:"required"`
	ClientDataJSON string `json:"clientDataJSON" validate:"required"`
	Remember       bool   `json:"remember"`
}

type SecondFactorRequest struct {
	UserID         string `json:"userId" validate:"required"`
	CredentialID   string `json:"credentialId" validate:"required"`
	ClientDataJSON string `json:"clientDataJSON" validate:"required"`
	Remember       bool   `json:"remember"`
}

type Service interface {
	RegistrationOptions(ctx context.Context, userID string) (*RegistrationOptions, error)
	CompleteRegistration(ctx context.Context, userID string, req RegisterRequest) (*domain.Passkey, error)
	LoginOptions(ctx context.Context) (*AssertionOptions, error)
	CompleteLogin(ctx context.Context, req LoginRequest) (*domain.Session, *domain.User, error)
	SecondFactorOptions(ctx context.Context, userID string) (*SecondFactorOptions, error)
	CompleteSecondFactor(ctx context.Context, req SecondFactorRequest) (*domain.Session, *domain.User, error)
	List(ctx context.Context, userID string) ([]domain.Passkey, error)
	Delete(ctx context.Context, userID, passkeyID string) error
}

type passkeyStore interface {
	Put(ctx context.Context, p *domain.Passkey) error
	Get(ctx context.Context, passkeyID string) (*domain.Passkey, error)
	GetByCredentialID(ctx context.Context, credentialID string) (*domain.Passkey, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Passkey, error)
	Delete(ctx context.Context, passkeyID string) error
	IncrementCounter(ctx context.Context, passkeyID string) error
}

type challengeStore interface {
	Put(ctx context.Context, c *domain.PasskeyChallenge) error
	Consume(ctx context.Context, challenge, scope string, now int64) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type sessionManager interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error)
}

type service struct {
	passkeys   passkeyStore
	challenges challengeStore
	users      userStore
	sessions   sessionManager

	rpID        string
	rpName      string
	sessionTTL  time.Duration
	rememberTTL time.Duration
}

type ServiceDeps struct {
	Passkeys   passkeyStore
	Challenges challengeStore
	Users      userStore
	Sessions   sessionManager

	RPID        string
	RPName      string
	SessionTTL  time.Duration
	RememberTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		passkeys:    deps.Passkeys,
		challenges:  deps.Challenges,
		users:       deps.Users,
		sessions:    deps.Sessions,
		rpID:        deps.RPID,
		rpName:      deps.RPName,
		sessionTTL:  deps.SessionTTL,
		rememberTTL: deps.RememberTTL,
	}
}

func (s *service) RegistrationOptions(ctx context.Context, userID string) (*RegistrationOptions, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	challenge, err := s.issueChallenge(ctx, fmt.Sprintf(scopeRegisterFmt, userID))
	if err != nil {
		return nil, err
	}
	existing, err := s.passkeys.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &RegistrationOptions{
		Challenge: challenge,
		RP:        RelyingParty{ID: s.rpID, Name: s.rpName},
		User:      UserEntity{ID: u.UserID, Name: u.Email, DisplayName: u.Email},
		PubKeyCredParams: []CredParam{
			{Type: "public-key", Alg: -7},   // ES256
			{Type: "public-key", Alg: -257}, // RS256
		},
		Timeout:            ceremonyTimeout,
		ExcludeCredentials: descriptors(existing),
		AuthenticatorSelection: AuthenticatorSelection{
			ResidentKey:      "preferred",
			UserVerification: "preferred",
		},
	}, nil
}

func (s *service) CompleteRegistration(ctx context.Context, userID string, req RegisterRequest) (*domain.Passkey, error) {
	cd, err := parseClientData(req.ClientDataJSON)
	if err != nil || cd.Type != ceremonyCreate {
		return nil, fmt.Errorf("malformed client data: %w", domain.ErrBadRequest)
	}
	scope := fmt.Sprintf(scopeRegisterFmt, userID)
	if err := s.challenges.Consume(ctx, cd.Challenge, scope, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("unknown or expired challenge: %w", domain.ErrUnauthorized)
	}
	if _, err := s.passkeys.GetByCredentialID(ctx, req.CredentialID); err == nil {
		return nil, fmt.Errorf("credential already registered: %w", domain.ErrConflict)
	}
	name := req.Name
	if name == "" {
		name = "Passkey"
	}
	p := &domain.Passkey{
		PasskeyID:    id.New(),
		UserID:       userID,
		CredentialID: req.CredentialID,
		PublicKey:    req.PublicKey,
		Counter:      0,
		Transports:   req.Transports,
		Name:         strings.TrimSpace(name),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.passkeys.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) LoginOptions(ctx context.Context) (*AssertionOptions, error) {
	challenge, err := s.issueChallenge(ctx, scopeAssert)
	if err != nil {
		return nil, err
	}
	// No allowCredentials: primary login relies on discoverable credentials.
	return &AssertionOptions{
		Challenge:        challenge,
		RPID:             s.rpID,
		Timeout:          ceremonyTimeout,
		UserVerification: "preferred",
	}, nil
}

func (s *service) CompleteLogin(ctx context.Context, req LoginRequest) (*domain.Session, *domain.User, error) {
	pk, err := s.verifyAssertion(ctx, req.CredentialID, req.ClientDataJSON)
	if err != nil {
		return nil, nil, err
	}
	if err := s.passkeys.IncrementCounter(ctx, pk.PasskeyID); err != nil {
		return nil, nil, err
	}
	return s.issueSession(ctx, pk.UserID, req.Remember)
}

func (s *service) SecondFactorOptions(ctx context.Context, userID string) (*SecondFactorOptions, error) {
	pks, err := s.passkeys.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(pks) == 0 {
		return &SecondFactorOptions{HasPasskeys: false}, nil
	}
	challenge, err := s.issueChallenge(ctx, scopeAssert)
	if err != nil {
		return nil, err
	}
	return &SecondFactorOptions{
		HasPasskeys: true,
		Options: &AssertionOptions{
			Challenge:        challenge,
			RPID:             s.rpID,
			Timeout:          ceremonyTimeout,
			UserVerification: "preferred",
			AllowCredentials: descriptors(pks),
		},
	}, nil
}

func (s *service) CompleteSecondFactor(ctx context.Context, req SecondFactorRequest) (*domain.Session, *domain.User, error) {
	pk, err := s.verifyAssertion(ctx, req.CredentialID, req.ClientDataJSON)
	if err != nil {
		return nil, nil, err
	}
	// The credential must belong to the account that passed the password
	// check; a foreign passkey must not complete someone else's login, and
	// must not touch the credential's counter either.
	if pk.UserID != req.UserID {
		return nil, nil, fmt.Errorf("credential does not belong to this account: %w", domain.ErrUnauthorized)
	}
	if err := s.passkeys.IncrementCounter(ctx, pk.PasskeyID); err != nil {
		return nil, nil, err
	}
	return s.issueSession(ctx, pk.UserID, req.Remember)
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Passkey, error) {
	return s.passkeys.ListByUser(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID, passkeyID string) error {
	pk, err := s.passkeys.Get(ctx, passkeyID)
	if err != nil {
		return fmt.Errorf("passkey not found: %w", domain.ErrNotFound)
	}
	if pk.UserID != userID {
		return fmt.Errorf("passkey belongs to another user: %w", domain.ErrForbidden)
	}
	return s.passkeys.Delete(ctx, passkeyID)
}

// verifyAssertion checks the ceremony type, consumes the stored challenge
// and resolves the asserted credential. The counter is bumped by the caller
// once every check on the assertion has passed.
func (s *service) verifyAssertion(ctx context.Context, credentialID, clientDataJSON string) (*domain.Passkey, error) {
	cd, err := parseClientData(clientDataJSON)
	if err != nil || cd.Type != ceremonyGet {
		return nil, fmt.Errorf("malformed client data: %w", domain.ErrBadRequest)
	}
	if err := s.challenges.Consume(ctx, cd.Challenge, scopeAssert, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("unknown or expired challenge: %w", domain.ErrUnauthorized)
	}
	pk, err := s.passkeys.GetByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("unknown credential: %w", domain.ErrUnauthorized)
	}
	return pk, nil
}

func (s *service) issueSession(ctx context.Context, userID string, remember bool) (*domain.Session, *domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("unknown credential: %w", domain.ErrUnauthorized)
	}
	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}
	sess, err := s.sessions.Create(ctx, userID, ttl)
	if err != nil {
		return nil, nil, err
	}
	return sess, u, nil
}

func (s *service) issueChallenge(ctx context.Context, scope string) (string, error) {
	challenge, err := pkgtoken.NewChallenge(challengeBytes)
	if err != nil {
		return "", err
	}
	if err := s.challenges.Put(ctx, &domain.PasskeyChallenge{
		Challenge: challenge,
		Scope:     scope,
		ExpiresAt: time.Now().Add(challengeTTL).Unix(),
	}); err != nil {
		return "", err
	}
	return challenge, nil
}

func descriptors(pks []domain.Passkey) []CredentialDescriptor {
	out := make([]CredentialDescriptor, 0, len(pks))
	for _, pk := range pks {
		out = append(out, CredentialDescriptor{
			Type:       "public-key",
			ID:         pk.CredentialID,
			Transports: pk.Transports,
		})
	}
	return out
}
