package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltahq/volta/internal/identity/application/auth"
	identityCommands "github.com/voltahq/volta/internal/identity/application/commands"
	identityDomain "github.com/voltahq/volta/internal/identity/domain"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*identityDomain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*identityDomain.User)}
}

func (r *fakeUserRepo) Save(_ context.Context, user *identityDomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID()] = user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*identityDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, identityDomain.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*identityDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email() == email {
			return user, nil
		}
	}
	return nil, identityDomain.ErrUserNotFound
}

func testServer(t *testing.T) (*Server, *fakeUserRepo) {
	t.Helper()

	users := newFakeUserRepo()
	tokens := auth.NewTokenService("test-secret", time.Hour, 24*time.Hour)

	handler := NewHandler(Deps{
		Tokens:   tokens,
		Register: identityCommands.NewRegisterUserHandler(users, tokens, nil),
		Login:    identityCommands.NewLoginHandler(users, tokens, nil),
		Refresh:  identityCommands.NewRefreshHandler(users, tokens),
	}, nil)

	return NewServer(DefaultServerConfig(), handler, nil), users
}

func doRequest(t *testing.T, server *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := testServer(t)

	rec := doRequest(t, server, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	server, _ := testServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/tasks", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestAuthenticatedRoutesRejectGarbageToken(t *testing.T) {
	server, _ := testServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/tasks", "not-a-jwt", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterReturnsUserAndTokens(t *testing.T) {
	server, users := testServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse",
		"timezone": "Europe/Berlin",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var body authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ada@example.com", body.User.Email)
	assert.Equal(t, "Europe/Berlin", body.User.Timezone)
	assert.NotEmpty(t, body.Tokens.AccessToken)
	assert.NotEmpty(t, body.Tokens.RefreshToken)

	saved, err := users.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", saved.PasswordHash())
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	server, _ := testServer(t)

	payload := map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse",
		"timezone": "UTC",
	}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/auth/register", "", payload)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginRoundTrip(t *testing.T) {
	server, _ := testServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse",
		"timezone": "UTC",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Tokens.AccessToken)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	server, _ := testServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse",
		"timezone": "UTC",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// An access token is not accepted where a refresh token is expected
	rec = doRequest(t, server, http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{
		"refreshToken": body.Tokens.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{
		"refreshToken": body.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "accessToken"))
}
