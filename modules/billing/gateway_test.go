package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/substrate/modules/billing"
)

func TestMockGatewayCharge(t *testing.T) {
	t.Parallel()

	req := billing.ChargeRequest{UserID: uuid.New(), PlanID: "basic", AmountCents: 999}

	t.Run("zero failure rate always succeeds", func(t *testing.T) {
		t.Parallel()

		gw := billing.NewMockGateway(
			billing.WithFailureRate(0),
			billing.WithMaxLatency(0),
		)
		for i := 0; i < 50; i++ {
			result, err := gw.Charge(context.Background(), req)
			require.NoError(t, err)
			assert.NotEmpty(t, result.TransactionID)
		}
	})

	t.Run("full failure rate always declines", func(t *testing.T) {
		t.Parallel()

		gw := billing.NewMockGateway(
			billing.WithFailureRate(1),
			billing.WithMaxLatency(0),
		)
		for i := 0; i < 50; i++ {
			_, err := gw.Charge(context.Background(), req)
			assert.ErrorIs(t, err, billing.ErrPaymentDeclined)
		}
	})

	t.Run("default rate declines roughly one in ten", func(t *testing.T) {
		t.Parallel()

		gw := billing.NewMockGateway(
			billing.WithMaxLatency(0),
			billing.WithSeed(1),
		)
		var declined int
		for i := 0; i < 1000; i++ {
			if _, err := gw.Charge(context.Background(), req); err != nil {
				declined++
			}
		}
		assert.InDelta(t, 100, declined, 40)
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		t.Parallel()

		gw := billing.NewMockGateway(
			billing.WithFailureRate(0),
			billing.WithMaxLatency(5*time.Second),
		)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := gw.Charge(ctx, req)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("deterministic with a seed", func(t *testing.T) {
		t.Parallel()

		outcomes := func() []bool {
			gw := billing.NewMockGateway(billing.WithMaxLatency(0), billing.WithSeed(99))
			var out []bool
			for i := 0; i < 20; i++ {
				_, err := gw.Charge(context.Background(), req)
				out = append(out, err == nil)
			}
			return out
		}
		assert.Equal(t, outcomes(), outcomes())
	})
}

func TestMockGatewayCancelRemote(t *testing.T) {
	t.Parallel()

	gw := billing.NewMockGateway(billing.WithMaxLatency(0))
	require.NoError(t, gw.CancelRemote(context.Background(), uuid.New(), "basic"))

	slow := billing.NewMockGateway(billing.WithMaxLatency(5 * time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, slow.CancelRemote(ctx, uuid.New(), "basic"), context.Canceled)
}
