package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/substratehq/substrate/modules/auth"
	"github.com/substratehq/substrate/pkg/jwt"
)

func newTestService(t *testing.T, opts ...auth.Option) *auth.Service {
	t.Helper()

	tokens, err := jwt.New("test-signing-key")
	require.NoError(t, err)

	opts = append([]auth.Option{auth.WithBcryptCost(bcrypt.MinCost)}, opts...)
	return auth.NewService(auth.NewMemoryUserStore(), tokens,
		auth.Config{TokenTTL: time.Hour, Issuer: "test"}, opts...)
}

func TestServiceRegister(t *testing.T) {
	t.Parallel()

	t.Run("creates account with token", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		user, token, err := svc.Register(context.Background(), "Ada@Example.com", "Ada", "correct-horse")
		require.NoError(t, err)

		assert.Equal(t, "ada@example.com", user.Email, "email is normalized")
		assert.Equal(t, "Ada", user.Name)
		assert.NotEmpty(t, token)
		assert.NotEqual(t, "correct-horse", user.PasswordHash)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		_, _, err := svc.Register(ctx, "dup@example.com", "First", "password-one")
		require.NoError(t, err)

		_, _, err = svc.Register(ctx, "DUP@example.com", "Second", "password-two")
		assert.ErrorIs(t, err, auth.ErrEmailTaken, "normalization makes duplicates collide")
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()

		_, _, err := svc.Register(ctx, "not-an-email", "X", "long-enough")
		assert.ErrorIs(t, err, auth.ErrInvalidEmail)

		_, _, err = svc.Register(ctx, "ok@example.com", "X", "short")
		assert.ErrorIs(t, err, auth.ErrWeakPassword)
	})

	t.Run("concurrent registrations collide on one email", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func(i int) {
				defer wg.Done()
				_, _, errs[i] = svc.Register(ctx, "race@example.com", "R", "password-one")
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, auth.ErrEmailTaken)
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestServiceLogin(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	registered, _, err := svc.Register(ctx, "login@example.com", "L", "valid-password")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		t.Parallel()

		user, token, err := svc.Login(ctx, "login@example.com", "valid-password")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()

		_, _, err := svc.Login(ctx, "login@example.com", "wrong-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email gets the same error", func(t *testing.T) {
		t.Parallel()

		_, _, err := svc.Login(ctx, "ghost@example.com", "whatever-pass")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestServiceTokenRoundTrip(t *testing.T) {
	t.Parallel()

	tokens, err := jwt.New("round-trip-key")
	require.NoError(t, err)
	svc := auth.NewService(auth.NewMemoryUserStore(), tokens,
		auth.Config{TokenTTL: time.Hour, Issuer: "substrate"},
		auth.WithBcryptCost(bcrypt.MinCost))

	user, token, err := svc.Register(context.Background(), "claims@example.com", "C", "valid-password")
	require.NoError(t, err)

	var claims jwt.StandardClaims
	require.NoError(t, tokens.Parse(token, &claims))
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "substrate", claims.Issuer)

	parsed, err := uuid.Parse(claims.Subject)
	require.NoError(t, err)
	assert.Equal(t, user.ID, parsed)
}
