package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionforge/detect-api/internal/config"
	"github.com/visionforge/detect-api/internal/domain"
	"github.com/visionforge/detect-api/internal/service"
	"github.com/visionforge/detect-api/internal/service/auth"
)

// fakeUserService implements service.UserService for handler tests.
type fakeUserService struct {
	registerErr error
	authErr     error
	user        *domain.User
	token       string
}

func (s *fakeUserService) Register(_ context.Context, email, _ string) (*domain.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	user := *s.user
	user.Email = email
	return &user, nil
}

func (s *fakeUserService) Authenticate(_ context.Context, _, _ string) (string, *domain.User, error) {
	if s.authErr != nil {
		return "", nil, s.authErr
	}
	return s.token, s.user, nil
}

func testJWTService(t *testing.T) auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)
	return svc
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRegisterSuccess(t *testing.T) {
	users := &fakeUserService{user: &domain.User{ID: 7}}
	h := NewAuthHandler(users, testJWTService(t))

	w := postJSON(t, h.Register, "/api/auth/register", RegisterRequest{
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.UserID)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestRegisterValidation(t *testing.T) {
	users := &fakeUserService{user: &domain.User{ID: 1}}
	h := NewAuthHandler(users, testJWTService(t))

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "hunter2hunter2"}},
		{"short password", RegisterRequest{Email: "a@b.com", Password: "short"}},
		{"empty", RegisterRequest{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, h.Register, "/api/auth/register", tc.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := &fakeUserService{registerErr: service.ErrEmailExists}
	h := NewAuthHandler(users, testJWTService(t))

	w := postJSON(t, h.Register, "/api/auth/register", RegisterRequest{
		Email:    "taken@example.com",
		Password: "hunter2hunter2",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginSuccess(t *testing.T) {
	users := &fakeUserService{user: &domain.User{ID: 3}, token: "signed-token"}
	h := NewAuthHandler(users, testJWTService(t))

	w := postJSON(t, h.Login, "/api/auth/login", LoginRequest{
		Email:    "bob@example.com",
		Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.UserID)
	assert.Equal(t, "signed-token", resp.AccessToken)
}

func TestLoginInvalidCredentials(t *testing.T) {
	users := &fakeUserService{authErr: service.ErrInvalidCredentials}
	h := NewAuthHandler(users, testJWTService(t))

	w := postJSON(t, h.Login, "/api/auth/login", LoginRequest{
		Email:    "bob@example.com",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginMalformedBody(t *testing.T) {
	users := &fakeUserService{}
	h := NewAuthHandler(users, testJWTService(t))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.Login(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
