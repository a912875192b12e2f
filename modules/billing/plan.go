package billing

import "time"

// BillingPeriod is the cadence a plan renews on.
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

// Next returns the period end for a window starting at t. Unrecognized
// periods fall back to monthly, matching how unknown values were billed
// historically.
func (p BillingPeriod) Next(t time.Time) time.Time {
	switch p {
	case PeriodYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// Plan is immutable reference data: once a subscription references a plan,
// the price is copied into the invoice rather than re-read live.
type Plan struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	PriceCents    int64         `json:"price_cents"`
	Features      []string      `json:"features"`
	BillingPeriod BillingPeriod `json:"billing_period"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
