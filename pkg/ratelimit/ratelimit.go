// Package ratelimit implements a fixed-window request limiter over a
// pluggable counter store. The API uses it to cap login attempts and
// subscription mutations per client.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrStoreRequired = errors.New("ratelimit: store is required")
	ErrInvalidLimit  = errors.New("ratelimit: limit must be positive")
	ErrInvalidWindow = errors.New("ratelimit: window must be positive")
	ErrKeyRequired   = errors.New("ratelimit: key is required")
)

// Result reports the outcome of a limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait; zero when allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Store is the counter backend. IncrementAndGet must atomically bump the
// counter for key, starting a fresh window with the given TTL when the key
// is new, and return the post-increment count plus the remaining TTL.
type Store interface {
	IncrementAndGet(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	Reset(ctx context.Context, key string) error
}

// FixedWindow allows at most limit requests per window per key.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
}

func NewFixedWindow(store Store, limit int, window time.Duration) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &FixedWindow{store: store, limit: limit, window: window}, nil
}

// Allow consumes one slot for key and reports whether it fit in the window.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	count, ttl, err := fw.store.IncrementAndGet(ctx, key, fw.window)
	if err != nil {
		return nil, err
	}

	remaining := fw.limit - int(count)
	return &Result{
		Allowed:   count <= int64(fw.limit),
		Limit:     fw.limit,
		Remaining: max(0, remaining),
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

// Reset clears the window for key.
func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return fw.store.Reset(ctx, key)
}
