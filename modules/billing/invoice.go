package billing

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus tracks a billing attempt. Once terminal it never changes.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceFailed    InvoiceStatus = "failed"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s InvoiceStatus) IsTerminal() bool {
	return s != InvoicePending
}

// Invoice records one monetary transaction per subscription event. Amounts
// are minor units of a single implied currency.
type Invoice struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	PlanID      string        `json:"plan_id"`
	AmountCents int64         `json:"amount_cents"`
	Status      InvoiceStatus `json:"status"`
	PeriodStart time.Time     `json:"billing_period_start"`
	PeriodEnd   time.Time     `json:"billing_period_end"`
	PaymentDate *time.Time    `json:"payment_date,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	PlanName string `json:"plan_name,omitempty"`
}

// newInvoice opens a pending invoice for plan at now. The invoice period
// follows the plan's billing period, so yearly plans get year-long invoice
// windows.
func newInvoice(userID uuid.UUID, plan Plan, now time.Time) *Invoice {
	return &Invoice{
		ID:          uuid.New(),
		UserID:      userID,
		PlanID:      plan.ID,
		AmountCents: plan.PriceCents,
		Status:      InvoicePending,
		PeriodStart: now,
		PeriodEnd:   plan.BillingPeriod.Next(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
