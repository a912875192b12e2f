package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/substrate/pkg/ratelimit"
)

func TestNewFixedWindowValidation(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()

	_, err := ratelimit.NewFixedWindow(nil, 5, time.Minute)
	assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)

	_, err = ratelimit.NewFixedWindow(store, 0, time.Minute)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)

	_, err = ratelimit.NewFixedWindow(store, 5, 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidWindow)
}

func TestFixedWindowAllow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("limit enforced within window", func(t *testing.T) {
		t.Parallel()

		fw, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), 3, time.Minute)
		require.NoError(t, err)

		for i := range 3 {
			res, err := fw.Allow(ctx, "key")
			require.NoError(t, err)
			assert.True(t, res.Allowed, "request %d should be allowed", i+1)
			assert.Equal(t, 2-i, res.Remaining)
		}

		res, err := fw.Allow(ctx, "key")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Zero(t, res.Remaining)
		assert.Positive(t, res.RetryAfter())
	})

	t.Run("window expiry resets count", func(t *testing.T) {
		t.Parallel()

		fw, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), 1, 30*time.Millisecond)
		require.NoError(t, err)

		res, err := fw.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, res.Allowed)

		res, err = fw.Allow(ctx, "key")
		require.NoError(t, err)
		assert.False(t, res.Allowed)

		time.Sleep(50 * time.Millisecond)

		res, err = fw.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()

		fw, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), 1, time.Minute)
		require.NoError(t, err)

		res, err := fw.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, res.Allowed)

		res, err = fw.Allow(ctx, "b")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		t.Parallel()

		fw, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), 1, time.Minute)
		require.NoError(t, err)

		_, err = fw.Allow(ctx, "")
		assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
	})

	t.Run("reset clears window", func(t *testing.T) {
		t.Parallel()

		fw, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), 1, time.Minute)
		require.NoError(t, err)

		_, err = fw.Allow(ctx, "key")
		require.NoError(t, err)
		require.NoError(t, fw.Reset(ctx, "key"))

		res, err := fw.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})
}

func TestMemoryStoreConcurrency(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			_, _, _ = store.IncrementAndGet(ctx, "shared", time.Minute)
		}()
	}
	wg.Wait()

	count, _, err := store.IncrementAndGet(ctx, "shared", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines+1), count)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	fw, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), 2, time.Minute)
	require.NoError(t, err)

	handler := ratelimit.Middleware(fw, ratelimit.ByClientIP)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
		req.RemoteAddr = ip + ":51234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do("10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)

	rec = do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different client is unaffected.
	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code)
}
