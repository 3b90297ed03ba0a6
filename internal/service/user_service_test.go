package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/visionforge/detect-api/internal/config"
	"github.com/visionforge/detect-api/internal/service/auth"
)

func newTestUserService(t *testing.T, users *fakeUserStore) UserService {
	t.Helper()
	tokens, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	svc, err := NewUserService(
		nopDB(t),
		users,
		auth.NewBcryptHasher(bcrypt.MinCost),
		auth.NewBcryptVerifier(),
		tokens,
		discardLogger(),
	)
	require.NoError(t, err)
	return svc
}

func TestRegisterHashesPassword(t *testing.T) {
	users := newFakeUserStore()
	svc := newTestUserService(t, users)

	user, err := svc.Register(context.Background(), "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Empty(t, user.Password)
	assert.NotEmpty(t, user.HashedPassword)
	assert.NotEqual(t, "hunter2hunter2", user.HashedPassword)
}

func TestRegisterRejectsInvalidAccount(t *testing.T) {
	users := newFakeUserStore()
	svc := newTestUserService(t, users)

	_, err := svc.Register(context.Background(), "not-an-email", "hunter2hunter2")
	require.Error(t, err)

	_, err = svc.Register(context.Background(), "bob@example.com", "short")
	require.Error(t, err)

	assert.Empty(t, users.users)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newFakeUserStore()
	svc := newTestUserService(t, users)

	_, err := svc.Register(context.Background(), "carol@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "carol@example.com", "anotherpassword")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthenticateIssuesToken(t *testing.T) {
	users := newFakeUserStore()
	svc := newTestUserService(t, users)

	registered, err := svc.Register(context.Background(), "dave@example.com", "hunter2hunter2")
	require.NoError(t, err)

	token, user, err := svc.Authenticate(context.Background(), "dave@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, registered.ID, user.ID)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	users := newFakeUserStore()
	svc := newTestUserService(t, users)

	_, err := svc.Register(context.Background(), "erin@example.com", "hunter2hunter2")
	require.NoError(t, err)

	// wrong password and unknown email come back identical
	_, _, err = svc.Authenticate(context.Background(), "erin@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Authenticate(context.Background(), "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
