package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/substrate/pkg/jwt"
)

func TestGenerateParse(t *testing.T) {
	t.Parallel()

	svc, err := jwt.New("test-signing-key-0123456789abcdef")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		in := jwt.StandardClaims{
			Subject:   "user-123",
			Issuer:    "substrate",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		}
		token, err := svc.Generate(in)
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, "."), 3)

		var out jwt.StandardClaims
		require.NoError(t, svc.Parse(token, &out))
		assert.Equal(t, in, out)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(jwt.StandardClaims{
			Subject:   "user-123",
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)

		var out jwt.StandardClaims
		assert.ErrorIs(t, svc.Parse(token, &out), jwt.ErrExpiredToken)
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(jwt.StandardClaims{Subject: "user-123"})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		parts[1] = parts[1][:len(parts[1])-2] + "xx"
		var out jwt.StandardClaims
		assert.ErrorIs(t, svc.Parse(strings.Join(parts, "."), &out), jwt.ErrInvalidSignature)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		t.Parallel()

		other, err := jwt.New("another-key-entirely")
		require.NoError(t, err)

		token, err := svc.Generate(jwt.StandardClaims{Subject: "user-123"})
		require.NoError(t, err)

		var out jwt.StandardClaims
		assert.ErrorIs(t, other.Parse(token, &out), jwt.ErrInvalidSignature)
	})

	t.Run("malformed token rejected", func(t *testing.T) {
		t.Parallel()

		var out jwt.StandardClaims
		assert.ErrorIs(t, svc.Parse("not-a-token", &out), jwt.ErrInvalidToken)
	})
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := jwt.New("")
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc, err := jwt.New("test-signing-key-0123456789abcdef")
	require.NoError(t, err)

	var gotClaims jwt.StandardClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := jwt.ClaimsFromContext(r.Context())
		require.True(t, ok)
		gotClaims = claims
		w.WriteHeader(http.StatusOK)
	})
	protected := jwt.Middleware(svc, nil)(next)

	t.Run("valid token passes", func(t *testing.T) {
		token, err := svc.Generate(jwt.StandardClaims{
			Subject:   "user-123",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-123", gotClaims.Subject)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
