package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStore persists subscription rows. Implementations must make
// Supersede and Transition atomic per user: two concurrent calls for the
// same user may never both observe "no current subscription".
type SubscriptionStore interface {
	// Supersede cancels the user's current subscription, if any, and
	// inserts sub as the new current row in one atomic step. Returns
	// ErrSubscriptionConflict when a concurrent supersession wins the race.
	Supersede(ctx context.Context, sub *Subscription) error

	// Current returns the newest row with a current status, joined with
	// plan display data. Returns ErrNoActiveSubscription when none exists.
	Current(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// History returns every row for the user, newest first.
	History(ctx context.Context, userID uuid.UUID) ([]Subscription, error)

	// Transition moves the user's current subscription to the target
	// status after validating the state machine. Returns
	// ErrNoActiveSubscription or ErrInvalidTransition accordingly.
	Transition(ctx context.Context, userID uuid.UUID, to Status) (*Subscription, error)
}

// InvoiceStore is the append-mostly ledger. Terminal invoices are immutable.
type InvoiceStore interface {
	Create(ctx context.Context, inv *Invoice) error

	// SetStatus transitions a pending invoice. Returns ErrInvoiceFinalized
	// if the invoice already reached a terminal state.
	SetStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus, paymentDate *time.Time) error

	ByUser(ctx context.Context, userID uuid.UUID) ([]Invoice, error)
	ByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
}

// PlanStore backs the catalog.
type PlanStore interface {
	// ActivePlan returns the plan only when it exists and is active;
	// ErrPlanNotFound otherwise.
	ActivePlan(ctx context.Context, id string) (*Plan, error)

	// ListActive returns purchasable plans ordered by price.
	ListActive(ctx context.Context) ([]Plan, error)

	// Upsert inserts or updates a plan definition; used by the seed loader.
	Upsert(ctx context.Context, plan Plan) error
}
