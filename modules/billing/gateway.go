package billing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaymentGateway is the capability the engine needs from a payment
// processor. Failures are opaque to the caller and never retried
// automatically; the user re-invokes subscribe explicitly.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// CancelRemote tells the processor to stop renewing. Best-effort: the
	// local cancellation proceeds even if the remote call fails.
	CancelRemote(ctx context.Context, userID uuid.UUID, planID string) error
}

type ChargeRequest struct {
	UserID      uuid.UUID
	PlanID      string
	AmountCents int64
}

type ChargeResult struct {
	TransactionID string
}

// ErrPaymentDeclined is the opaque decline a gateway returns; callers only
// learn that the charge did not go through.
var ErrPaymentDeclined = errors.New("payment declined by gateway")

// MockGateway simulates a remote payment processor: bounded random latency
// and a configurable decline rate. It is the only gateway implementation;
// real processor integration is out of scope by design.
type MockGateway struct {
	mu          sync.Mutex
	rng         *rand.Rand
	failureRate float64
	maxLatency  time.Duration
}

type MockGatewayOption func(*MockGateway)

// WithFailureRate overrides the default 10% decline rate. Zero makes every
// charge succeed, which tests rely on.
func WithFailureRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) {
		if rate >= 0 && rate <= 1 {
			g.failureRate = rate
		}
	}
}

// WithMaxLatency bounds the simulated network delay.
func WithMaxLatency(d time.Duration) MockGatewayOption {
	return func(g *MockGateway) {
		if d >= 0 {
			g.maxLatency = d
		}
	}
}

// WithSeed makes the gateway deterministic for tests.
func WithSeed(seed int64) MockGatewayOption {
	return func(g *MockGateway) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

func NewMockGateway(opts ...MockGatewayOption) *MockGateway {
	g := &MockGateway{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		failureRate: 0.1,
		maxLatency:  time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	g.mu.Lock()
	delay := g.randDelay(g.maxLatency)
	declined := g.rng.Float64() < g.failureRate
	g.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	if declined {
		return nil, ErrPaymentDeclined
	}

	return &ChargeResult{
		TransactionID: fmt.Sprintf("txn_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8]),
	}, nil
}

func (g *MockGateway) CancelRemote(ctx context.Context, userID uuid.UUID, planID string) error {
	g.mu.Lock()
	delay := g.randDelay(g.maxLatency / 2)
	g.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// randDelay must be called with the mutex held.
func (g *MockGateway) randDelay(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(g.rng.Int63n(int64(max)))
}
