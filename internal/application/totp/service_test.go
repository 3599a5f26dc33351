package totp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ruinabla/auth-api/internal/domain"
	"github.com/ruinabla/auth-api/internal/pkg/passhash"
	pkgtotp "github.com/ruinabla/auth-api/internal/pkg/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockTOTPStore struct{ mock.Mock }

func (m *mockTOTPStore) Get(ctx context.Context, userID string) (*domain.TOTPSecret, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*domain.TOTPSecret); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTOTPStore) Put(ctx context.Context, s *domain.TOTPSecret) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockTOTPStore) Enable(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockTOTPStore) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockTOTPStore) SetBackupCodes(ctx context.Context, userID string, codes []string) error {
	return m.Called(ctx, userID, codes).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func newService(ts *mockTOTPStore, us *mockUserStore) Service {
	return NewService(ServiceDeps{TOTPSecrets: ts, Users: us, Issuer: "Ruinabla"})
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := passhash.Hash(password)
	require.NoError(t, err)
	return h
}

// --- Status ---

func TestStatus_NoRecord_False(t *testing.T) {
	ts := &mockTOTPStore{}
	ts.On("Get", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	enabled, err := newService(ts, nil).Status(context.Background(), "u1")

	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestStatus_PendingRecord_False(t *testing.T) {
	ts := &mockTOTPStore{}
	ts.On("Get", mock.Anything, "u1").Return(&domain.TOTPSecret{UserID: "u1", Enabled: false}, nil)

	enabled, err := newService(ts, nil).Status(context.Background(), "u1")

	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestStatus_StorageError_Propagates(t *testing.T) {
	ts := &mockTOTPStore{}
	ts.On("Get", mock.Anything, "u1").Return(nil, errors.New("dynamodb: service unavailable"))

	enabled, err := newService(ts, nil).Status(context.Background(), "u1")

	assert.Error(t, err)
	assert.False(t, enabled)
}

// --- Enable ---

func TestEnable_StoresPendingSecretWithBackupCodes(t *testing.T) {
	ts := &mockTOTPStore{}
	us := &mockUserStore{}
	ts.On("Get", mock.Anything, "u1").Return(nil, domain.ErrNotFound)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "alice@example.com"}, nil)
	var stored *domain.TOTPSecret
	ts.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.TOTPSecret)
	}).Return(nil)

	res, err := newService(ts, us).Enable(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Enabled, "secret must start pending")
	assert.Len(t, stored.BackupCodes, 10)
	assert.Equal(t, stored.Secret, res.Secret)
	assert.Equal(t, stored.BackupCodes, res.BackupCodes)
	assert.Contains(t, res.URI, "otpauth://totp/")
	assert.Contains(t, res.URI, "Ruinabla:alice@example.com")
	assert.True(t, strings.HasPrefix(res.QR, "data:image/png;base64,"))
}

func TestEnable_AlreadyEnabled_BadRequest(t *testing.T) {
	ts := &mockTOTPStore{}
	ts.On("Get", mock.Anything, "u1").Return(&domain.TOTPSecret{UserID: "u1", Enabled: true}, nil)

	_, err := newService(ts, nil).Enable(context.Background(), "u1")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- VerifyEnable (scenario C) ---

func TestVerifyEnable_WrongCode_Unauthorized_StaysPending(t *testing.T) {
	ts := &mockTOTPStore{}
	secret, err := pkgtotp.GenerateSecret()
	require.NoError(t, err)
	ts.On("Get", mock.Anything, "u1").Return(&domain.TOTPSecret{
		UserID: "u1", Secret: secret, Enabled: false,
	}, nil)

	err = newService(ts, nil).VerifyEnable(context.Background(), "u1", "000000")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	ts.AssertNotCalled(t, "Enable", mock.Anything, mock.Anything)
}

func TestVerifyEnable_CorrectCode_Enables(t *testing.T) {
	ts := &mockTOTPStore{}
	secret, err := pkgtotp.GenerateSecret()
	require.NoError(t, err)
	code, err := pkgtotp.Code(secret, uint64(time.Now().Unix()/30))
	require.NoError(t, err)

	ts.On("Get", mock.Anything, "u1").Return(&domain.TOTPSecret{
		UserID: "u1", Secret: secret, Enabled: false,
	}, nil)
	ts.On("Enable", mock.Anything, "u1").Return(nil)

	require.NoError(t, newService(ts, nil).VerifyEnable(context.Background(), "u1", code))
	ts.AssertExpectations(t)
}

func TestVerifyEnable_NoPendingEnrollment_BadRequest(t *testing.T) {
	ts := &mockTOTPStore{}
	ts.On("Get", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	err := newService(ts, nil).VerifyEnable(context.Background(), "u1", "123456")

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- Disable ---

func TestDisable_WrongPassword_Unauthorized(t *testing.T) {
	ts := &mockTOTPStore{}
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID: "u1", PasswordHash: hashOf(t, "correct-horse"),
	}, nil)

	err := newService(ts, us).Disable(context.Background(), "u1", "wrong-horse")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	ts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDisable_PasswordReproof_DeletesRecord(t *testing.T) {
	ts := &mockTOTPStore{}
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID: "u1", PasswordHash: hashOf(t, "correct-horse"),
	}, nil)
	ts.On("Delete", mock.Anything, "u1").Return(nil)

	require.NoError(t, newService(ts, us).Disable(context.Background(), "u1", "correct-horse"))
	ts.AssertExpectations(t)
}

// --- Backup codes ---

func TestBackupCodes_ReturnsRemaining(t *testing.T) {
	ts := &mockTOTPStore{}
	ts.On("Get", mock.Anything, "u1").Return(&domain.TOTPSecret{
		UserID: "u1", Enabled: true, BackupCodes: []string{"AAAA1111", "BBBB2222"},
	}, nil)

	codes, err := newService(ts, nil).BackupCodes(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA1111", "BBBB2222"}, codes)
}

func TestRegenerateBackupCodes_ReplacesWholeSet(t *testing.T) {
	ts := &mockTOTPStore{}
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID: "u1", PasswordHash: hashOf(t, "correct-horse"),
	}, nil)
	ts.On("Get", mock.Anything, "u1").Return(&domain.TOTPSecret{UserID: "u1", Enabled: true}, nil)
	var replaced []string
	ts.On("SetBackupCodes", mock.Anything, "u1", mock.Anything).Run(func(args mock.Arguments) {
		replaced = args.Get(2).([]string)
	}).Return(nil)

	codes, err := newService(ts, us).RegenerateBackupCodes(context.Background(), "u1", "correct-horse")

	require.NoError(t, err)
	assert.Len(t, codes, 10)
	assert.Equal(t, codes, replaced)
}

func TestRegenerateBackupCodes_WrongPassword_Unauthorized(t *testing.T) {
	ts := &mockTOTPStore{}
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID: "u1", PasswordHash: hashOf(t, "correct-horse"),
	}, nil)

	_, err := newService(ts, us).RegenerateBackupCodes(context.Background(), "u1", "wrong-horse")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	ts.AssertNotCalled(t, "SetBackupCodes", mock.Anything, mock.Anything, mock.Anything)
}
