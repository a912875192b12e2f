package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/substratehq/substrate/core"
	"github.com/substratehq/substrate/modules/auth"
	"github.com/substratehq/substrate/pkg/jwt"
)

func newAuthRouter(t *testing.T) http.Handler {
	t.Helper()

	tokens, err := jwt.New("router-test-key")
	require.NoError(t, err)

	svc := auth.NewService(auth.NewMemoryUserStore(), tokens,
		auth.Config{TokenTTL: time.Hour, Issuer: "test"},
		auth.WithBcryptCost(bcrypt.MinCost))

	return auth.NewRouter(tokens, auth.RouterConfig{Service: svc})
}

func post(t *testing.T, router http.Handler, path, body string) (*httptest.ResponseRecorder, core.Envelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env core.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(t)

	rec, env := post(t, router, "/register",
		`{"email":"new@example.com","name":"New","password":"long-enough"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])

	user, ok := data["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new@example.com", user["email"])
	assert.NotContains(t, user, "password_hash", "hash never leaves the API")

	rec, _ = post(t, router, "/register",
		`{"email":"new@example.com","name":"Again","password":"long-enough"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = post(t, router, "/register", `{"email":"bad","password":"long-enough"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(t)
	_, _ = post(t, router, "/register",
		`{"email":"login@example.com","password":"long-enough"}`)

	rec, env := post(t, router, "/login",
		`{"email":"login@example.com","password":"long-enough"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = post(t, router, "/login",
		`{"email":"login@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
}

func TestMeEndpoint(t *testing.T) {
	t.Parallel()

	router := newAuthRouter(t)
	_, env := post(t, router, "/register",
		`{"email":"me@example.com","name":"Me","password":"long-enough"}`)
	data := env.Data.(map[string]any)
	token := data["token"].(string)

	t.Run("with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var env core.Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		user := env.Data.(map[string]any)
		assert.Equal(t, "me@example.com", user["email"])
	})

	t.Run("without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
