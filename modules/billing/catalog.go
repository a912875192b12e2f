package billing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Catalog exposes the purchasable plan set and loads plan definitions from
// a YAML seed file at boot.
type Catalog struct {
	store PlanStore
}

func NewCatalog(store PlanStore) *Catalog {
	if store == nil {
		panic("billing: plan store is required")
	}
	return &Catalog{store: store}
}

// Plans returns active plans ordered by price, cheapest first.
func (c *Catalog) Plans(ctx context.Context) ([]Plan, error) {
	return c.store.ListActive(ctx)
}

// Plan returns a single active plan by ID.
func (c *Catalog) Plan(ctx context.Context, id string) (*Plan, error) {
	return c.store.ActivePlan(ctx, id)
}

var ErrInvalidSeed = errors.New("invalid plan seed")

type seedFile struct {
	Plans []seedPlan `yaml:"plans"`
}

type seedPlan struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	PriceCents    int64    `yaml:"price_cents"`
	BillingPeriod string   `yaml:"billing_period"`
	Features      []string `yaml:"features"`
	Active        *bool    `yaml:"active"`
}

func (p seedPlan) validate() error {
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, errors.New("plan id is required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, fmt.Errorf("plan %q: name is required", p.ID))
	}
	if p.PriceCents < 0 {
		errs = append(errs, fmt.Errorf("plan %q: price must not be negative", p.ID))
	}
	switch BillingPeriod(p.BillingPeriod) {
	case PeriodMonthly, PeriodYearly, "":
	default:
		errs = append(errs, fmt.Errorf("plan %q: unknown billing period %q", p.ID, p.BillingPeriod))
	}
	return errors.Join(errs...)
}

// SeedFromFile upserts every plan defined in the YAML file at path. Plans
// already in the store keep their identity; prices and metadata are
// refreshed. Missing from the file does not deactivate a stored plan.
func (c *Catalog) SeedFromFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read plan seed: %w", err)
	}
	return c.Seed(ctx, raw)
}

// Seed parses and upserts plans from raw YAML.
func (c *Catalog) Seed(ctx context.Context, raw []byte) (int, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, errors.Join(ErrInvalidSeed, err)
	}
	if len(file.Plans) == 0 {
		return 0, errors.Join(ErrInvalidSeed, errors.New("seed defines no plans"))
	}

	now := time.Now().UTC()
	for i, sp := range file.Plans {
		if err := sp.validate(); err != nil {
			return i, errors.Join(ErrInvalidSeed, err)
		}

		period := BillingPeriod(sp.BillingPeriod)
		if period == "" {
			period = PeriodMonthly
		}
		active := true
		if sp.Active != nil {
			active = *sp.Active
		}

		plan := Plan{
			ID:            sp.ID,
			Name:          sp.Name,
			Description:   sp.Description,
			PriceCents:    sp.PriceCents,
			BillingPeriod: period,
			Features:      sp.Features,
			Active:        active,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := c.store.Upsert(ctx, plan); err != nil {
			return i, fmt.Errorf("upsert plan %q: %w", sp.ID, err)
		}
	}
	return len(file.Plans), nil
}
