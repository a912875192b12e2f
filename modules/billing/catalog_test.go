package billing_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/substrate/modules/billing"
)

const seedYAML = `
plans:
  - id: basic
    name: Basic
    description: For individuals getting started
    price_cents: 999
    billing_period: monthly
    features:
      - "1 project"
      - "Community support"
  - id: pro
    name: Pro
    price_cents: 1999
    features:
      - "10 projects"
      - "Priority support"
  - id: enterprise-yearly
    name: Enterprise Yearly
    price_cents: 49999
    billing_period: yearly
  - id: retired
    name: Retired
    price_cents: 100
    active: false
`

func TestCatalogSeed(t *testing.T) {
	t.Parallel()

	t.Run("loads and defaults", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryPlanStore()
		catalog := billing.NewCatalog(store)
		ctx := context.Background()

		n, err := catalog.Seed(ctx, []byte(seedYAML))
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		basic, err := catalog.Plan(ctx, "basic")
		require.NoError(t, err)
		assert.Equal(t, billing.PeriodMonthly, basic.BillingPeriod)
		assert.Equal(t, []string{"1 project", "Community support"}, basic.Features)

		pro, err := catalog.Plan(ctx, "pro")
		require.NoError(t, err)
		assert.Equal(t, billing.PeriodMonthly, pro.BillingPeriod, "missing period defaults to monthly")

		_, err = catalog.Plan(ctx, "retired")
		assert.ErrorIs(t, err, billing.ErrPlanNotFound, "inactive seed plans are not purchasable")
	})

	t.Run("plans ordered by price", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryPlanStore()
		catalog := billing.NewCatalog(store)
		ctx := context.Background()

		_, err := catalog.Seed(ctx, []byte(seedYAML))
		require.NoError(t, err)

		plans, err := catalog.Plans(ctx)
		require.NoError(t, err)
		require.Len(t, plans, 3)
		assert.Equal(t, "basic", plans[0].ID)
		assert.Equal(t, "pro", plans[1].ID)
		assert.Equal(t, "enterprise-yearly", plans[2].ID)
	})

	t.Run("reseed updates price but keeps identity", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryPlanStore()
		catalog := billing.NewCatalog(store)
		ctx := context.Background()

		_, err := catalog.Seed(ctx, []byte(seedYAML))
		require.NoError(t, err)

		_, err = catalog.Seed(ctx, []byte(`
plans:
  - id: basic
    name: Basic
    price_cents: 1299
    billing_period: monthly
`))
		require.NoError(t, err)

		basic, err := catalog.Plan(ctx, "basic")
		require.NoError(t, err)
		assert.Equal(t, int64(1299), basic.PriceCents)
	})

	t.Run("rejects malformed seeds", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryPlanStore()
		catalog := billing.NewCatalog(store)
		ctx := context.Background()

		cases := map[string]string{
			"not yaml":       `{{{`,
			"empty":          `plans: []`,
			"missing id":     "plans:\n  - name: NoID\n    price_cents: 1",
			"missing name":   "plans:\n  - id: anon\n    price_cents: 1",
			"negative price": "plans:\n  - id: neg\n    name: Neg\n    price_cents: -1",
			"bad period":     "plans:\n  - id: odd\n    name: Odd\n    price_cents: 1\n    billing_period: hourly",
		}
		for name, raw := range cases {
			_, err := catalog.Seed(ctx, []byte(raw))
			assert.ErrorIs(t, err, billing.ErrInvalidSeed, "case %q", name)
		}
	})
}

func TestCatalogSeedFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	catalog := billing.NewCatalog(billing.NewMemoryPlanStore())
	n, err := catalog.SeedFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = catalog.SeedFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
