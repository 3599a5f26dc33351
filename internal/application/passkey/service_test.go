package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ruinabla/auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockPasskeyStore struct{ mock.Mock }

func (m *mockPasskeyStore) Put(ctx context.Context, p *domain.Passkey) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPasskeyStore) Get(ctx context.Context, passkeyID string) (*domain.Passkey, error) {
	args := m.Called(ctx, passkeyID)
	if p, _ := args.Get(0).(*domain.Passkey); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPasskeyStore) GetByCredentialID(ctx context.Context, credentialID string) (*domain.Passkey, error) {
	args := m.Called(ctx, credentialID)
	if p, _ := args.Get(0).(*domain.Passkey); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockPasskeyStore) ListByUser(ctx context.Context, userID string) ([]domain.Passkey, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Passkey), args.Error(1)
}
func (m *mockPasskeyStore) Delete(ctx context.Context, passkeyID string) error {
	return m.Called(ctx, passkeyID).Error(0)
}
func (m *mockPasskeyStore) IncrementCounter(ctx context.Context, passkeyID string) error {
	return m.Called(ctx, passkeyID).Error(0)
}

type mockChallengeStore struct{ mock.Mock }

func (m *mockChallengeStore) Put(ctx context.Context, c *domain.PasskeyChallenge) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockChallengeStore) Consume(ctx context.Context, challenge, scope string, now int64) error {
	return m.Called(ctx, challenge, scope, now).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionManager struct{ mock.Mock }

func (m *mockSessionManager) Create(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	args := m.Called(ctx, userID, ttl)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

type deps struct {
	passkeys   *mockPasskeyStore
	challenges *mockChallengeStore
	users      *mockUserStore
	sessions   *mockSessionManager
}

func newDeps() *deps {
	return &deps{
		passkeys:   &mockPasskeyStore{},
		challenges: &mockChallengeStore{},
		users:      &mockUserStore{},
		sessions:   &mockSessionManager{},
	}
}

func (d *deps) service() Service {
	return NewService(ServiceDeps{
		Passkeys:    d.passkeys,
		Challenges:  d.challenges,
		Users:       d.users,
		Sessions:    d.sessions,
		RPID:        "localhost",
		RPName:      "Ruinabla",
		SessionTTL:  14 * 24 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
	})
}

func encodeClientData(t *testing.T, ceremony, challenge string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{
		"type":      ceremony,
		"challenge": challenge,
		"origin":    "http://localhost:3000",
	})
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(b)
}

// --- RegistrationOptions ---

func TestRegistrationOptions_PersistsScopedChallenge(t *testing.T) {
	d := newDeps()
	d.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "alice@example.com"}, nil)
	var stored *domain.PasskeyChallenge
	d.challenges.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.PasskeyChallenge)
	}).Return(nil)
	d.passkeys.On("ListByUser", mock.Anything, "u1").Return([]domain.Passkey{
		{CredentialID: "cred-1", Transports: []string{"usb"}},
	}, nil)

	opts, err := d.service().RegistrationOptions(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "register:u1", stored.Scope)
	assert.Equal(t, opts.Challenge, stored.Challenge)
	assert.InDelta(t, time.Now().Add(5*time.Minute).Unix(), stored.ExpiresAt, 5)

	assert.Equal(t, "localhost", opts.RP.ID)
	assert.Equal(t, "alice@example.com", opts.User.Name)
	require.Len(t, opts.ExcludeCredentials, 1)
	assert.Equal(t, "cred-1", opts.ExcludeCredentials[0].ID)
}

// --- CompleteRegistration ---

func TestCompleteRegistration_StoresCredential(t *testing.T) {
	d := newDeps()
	d.challenges.On("Consume", mock.Anything, "chal", "register:u1", mock.Anything).Return(nil)
	d.passkeys.On("GetByCredentialID", mock.Anything, "cred-1").Return(nil, domain.ErrNotFound)
	var stored *domain.Passkey
	d.passkeys.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.Passkey)
	}).Return(nil)

	pk, err := d.service().CompleteRegistration(context.Background(), "u1", RegisterRequest{
		CredentialID:   "cred-1",
		PublicKey:      "pubkey",
		ClientDataJSON: encodeClientData(t, "webauthn.create", "chal"),
		Transports:     []string{"internal"},
		Name:           "MacBook",
	})

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "cred-1", stored.CredentialID)
	assert.Equal(t, int64(0), stored.Counter)
	assert.Equal(t, "MacBook", stored.Name)
	assert.Equal(t, pk.PasskeyID, stored.PasskeyID)
}

func TestCompleteRegistration_WrongCeremonyType_BadRequest(t *testing.T) {
	d := newDeps()

	_, err := d.service().CompleteRegistration(context.Background(), "u1", RegisterRequest{
		CredentialID:   "cred-1",
		PublicKey:      "pubkey",
		ClientDataJSON: encodeClientData(t, "webauthn.get", "chal"),
	})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	d.challenges.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteRegistration_UnknownChallenge_Unauthorized(t *testing.T) {
	d := newDeps()
	d.challenges.On("Consume", mock.Anything, "chal", "register:u1", mock.Anything).
		Return(domain.ErrNotFound)

	_, err := d.service().CompleteRegistration(context.Background(), "u1", RegisterRequest{
		CredentialID:   "cred-1",
		PublicKey:      "pubkey",
		ClientDataJSON: encodeClientData(t, "webauthn.create", "chal"),
	})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	d.passkeys.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCompleteRegistration_DuplicateCredential_Conflict(t *testing.T) {
	d := newDeps()
	d.challenges.On("Consume", mock.Anything, "chal", "register:u1", mock.Anything).Return(nil)
	d.passkeys.On("GetByCredentialID", mock.Anything, "cred-1").
		Return(&domain.Passkey{PasskeyID: "pk1"}, nil)

	_, err := d.service().CompleteRegistration(context.Background(), "u1", RegisterRequest{
		CredentialID:   "cred-1",
		PublicKey:      "pubkey",
		ClientDataJSON: encodeClientData(t, "webauthn.create", "chal"),
	})

	assert.True(t, errors.Is(err, domain.ErrConflict))
}

// --- LoginOptions / CompleteLogin ---

func TestLoginOptions_AssertScope_NoAllowList(t *testing.T) {
	d := newDeps()
	var stored *domain.PasskeyChallenge
	d.challenges.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.PasskeyChallenge)
	}).Return(nil)

	opts, err := d.service().LoginOptions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "assert", stored.Scope)
	assert.Empty(t, opts.AllowCredentials)
	assert.Equal(t, "localhost", opts.RPID)
}

func TestCompleteLogin_IncrementsCounterAndIssuesSession(t *testing.T) {
	d := newDeps()
	d.challenges.On("Consume", mock.Anything, "chal", "assert", mock.Anything).Return(nil)
	d.passkeys.On("GetByCredentialID", mock.Anything, "cred-1").
		Return(&domain.Passkey{PasskeyID: "pk1", UserID: "u1", CredentialID: "cred-1"}, nil)
	d.passkeys.On("IncrementCounter", mock.Anything, "pk1").Return(nil)
	d.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	d.sessions.On("Create", mock.Anything, "u1", 14*24*time.Hour).
		Return(&domain.Session{SessionID: "sid"}, nil)

	sess, u, err := d.service().CompleteLogin(context.Background(), LoginRequest{
		CredentialID:   "cred-1",
		ClientDataJSON: encodeClientData(t, "webauthn.get", "chal"),
	})

	require.NoError(t, err)
	assert.Equal(t, "sid", sess.SessionID)
	assert.Equal(t, "u1", u.UserID)
	d.passkeys.AssertCalled(t, "IncrementCounter", mock.Anything, "pk1")
}

func TestCompleteLogin_UnknownCredential_Unauthorized(t *testing.T) {
	d := newDeps()
	d.challenges.On("Consume", mock.Anything, "chal", "assert", mock.Anything).Return(nil)
	d.passkeys.On("GetByCredentialID", mock.Anything, "cred-1").Return(nil, domain.ErrNotFound)

	_, _, err := d.service().CompleteLogin(context.Background(), LoginRequest{
		CredentialID:   "cred-1",
		ClientDataJSON: encodeClientData(t, "webauthn.get", "chal"),
	})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestCompleteLogin_Remember_UsesLongerTTL(t *testing.T) {
	d := newDeps()
	d.challenges.On("Consume", mock.Anything, "chal", "assert", mock.Anything).Return(nil)
	d.passkeys.On("GetByCredentialID", mock.Anything, "cred-1").
		Return(&domain.Passkey{PasskeyID: "pk1", UserID: "u1"}, nil)
	d.passkeys.On("IncrementCounter", mock.Anything, "pk1").Return(nil)
	d.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	d.sessions.On("Create", mock.Anything, "u1", 30*24*time.Hour).
		Return(&domain.Session{SessionID: "sid"}, nil)

	_, _, err := d.service().CompleteLogin(context.Background(), LoginRequest{
		CredentialID:   "cred-1",
		ClientDataJSON: encodeClientData(t, "webauthn.get", "chal"),
		Remember:       true,
	})

	require.NoError(t, err)
	d.sessions.AssertExpectations(t)
}

// --- second factor ---

func TestSecondFactorOptions_NoPasskeys(t *testing.T) {
	d := newDeps()
	d.passkeys.On("ListByUser", mock.Anything, "u1").Return([]domain.Passkey{}, nil)

	opts, err := d.service().SecondFactorOptions(context.Background(), "u1")

	require.NoError(t, err)
	assert.False(t, opts.HasPasskeys)
	assert.Nil(t, opts.Options)
	d.challenges.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestSecondFactorOptions_ListsOwnCredentials(t *testing.T) {
	d := newDeps()
	d.passkeys.On("ListByUser", mock.Anything, "u1").Return([]domain.Passkey{
		{CredentialID: "cred-1"}, {CredentialID: "cred-2"},
	}, nil)
	d.challenges.On("Put", mock.Anything, mock.Anything).Return(nil)

	opts, err := d.service().SecondFactorOptions(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, opts.HasPasskeys)
	require.NotNil(t, opts.Options)
	require.Len(t, opts.Options.AllowCredentials, 2)
}

func TestCompleteSecondFactor_ForeignCredential_Unauthorized(t *testing.T) {
	d := newDeps()
	d.challenges.On("Consume", mock.Anything, "chal", "assert", mock.Anything).Return(nil)
	d.passkeys.On("GetByCredentialID", mock.Anything, "cred-1").
		Return(&domain.Passkey{PasskeyID: "pk1", UserID: "someone-else"}, nil)

	_, _, err := d.service().CompleteSecondFactor(context.Background(), SecondFactorRequest{
		UserID:         "u1",
		CredentialID:   "cred-1",
		ClientDataJSON: encodeClientData(t, "webauthn.get", "chal"),
	})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	d.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	// A rejected foreign assertion must leave the victim credential's
	// counter untouched.
	d.passkeys.AssertNotCalled(t, "IncrementCounter", mock.Anything, mock.Anything)
}

func TestCompleteSecondFactor_OwnCredential_BumpsCounter(t *testing.T) {
	d := newDeps()
	d.challenges.On("Consume", mock.Anything, "chal", "assert", mock.Anything).Return(nil)
	d.passkeys.On("GetByCredentialID", mock.Anything, "cred-1").
		Return(&domain.Passkey{PasskeyID: "pk1", UserID: "u1"}, nil)
	d.passkeys.On("IncrementCounter", mock.Anything, "pk1").Return(nil)
	d.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	d.sessions.On("Create", mock.Anything, "u1", 14*24*time.Hour).
		Return(&domain.Session{SessionID: "sid"}, nil)

	sess, _, err := d.service().CompleteSecondFactor(context.Background(), SecondFactorRequest{
		UserID:         "u1",
		CredentialID:   "cred-1",
		ClientDataJSON: encodeClientData(t, "webauthn.get", "chal"),
	})

	require.NoError(t, err)
	assert.Equal(t, "sid", sess.SessionID)
	d.passkeys.AssertCalled(t, "IncrementCounter", mock.Anything, "pk1")
}

func TestSecondFactorOptions_StorageError_Propagates(t *testing.T) {
	d := newDeps()
	d.passkeys.On("ListByUser", mock.Anything, "u1").
		Return([]domain.Passkey{}, errors.New("dynamodb unavailable"))

	_, err := d.service().SecondFactorOptions(context.Background(), "u1")

	assert.Error(t, err)
	d.challenges.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- Delete ---

func TestDelete_OwnPasskey(t *testing.T) {
	d := newDeps()
	d.passkeys.On("Get", mock.Anything, "pk1").Return(&domain.Passkey{PasskeyID: "pk1", UserID: "u1"}, nil)
	d.passkeys.On("Delete", mock.Anything, "pk1").Return(nil)

	require.NoError(t, d.service().Delete(context.Background(), "u1", "pk1"))
	d.passkeys.AssertExpectations(t)
}

func TestDelete_ForeignPasskey_Forbidden(t *testing.T) {
	d := newDeps()
	d.passkeys.On("Get", mock.Anything, "pk1").Return(&domain.Passkey{PasskeyID: "pk1", UserID: "u2"}, nil)

	err := d.service().Delete(context.Background(), "u1", "pk1")

	assert.True(t, errors.Is(err, domain.ErrForbidden))
	d.passkeys.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDelete_Missing_NotFound(t *testing.T) {
	d := newDeps()
	d.passkeys.On("Get", mock.Anything, "pk1").Return(nil, domain.ErrNotFound)

	err := d.service().Delete(context.Background(), "u1", "pk1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// --- clientData parsing ---

func TestParseClientData_ToleratesPadding(t *testing.T) {
	b, err := json.Marshal(map[string]string{"type": "webauthn.get", "challenge": "chal"})
	require.NoError(t, err)
	padded := base64.URLEncoding.EncodeToString(b)

	cd, err := parseClientData(padded)

	require.NoError(t, err)
	assert.Equal(t, "chal", cd.Challenge)
}

func TestParseClientData_Garbage(t *testing.T) {
	_, err := parseClientData("!!not-base64!!")
	assert.Error(t, err)
}
