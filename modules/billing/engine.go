package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/substratehq/substrate/pkg/email"
)

// Service is the subscription lifecycle API the HTTP layer consumes.
type Service interface {
	Subscribe(ctx context.Context, userID uuid.UUID, planID string) (*Subscription, error)
	ChangePlan(ctx context.Context, userID uuid.UUID, newPlanID string) (*Subscription, error)
	UpdateStatus(ctx context.Context, userID uuid.UUID, to Status) (*Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	Current(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	History(ctx context.Context, userID uuid.UUID) ([]Subscription, error)
	Invoices(ctx context.Context, userID uuid.UUID) ([]Invoice, error)
	Invoice(ctx context.Context, userID, invoiceID uuid.UUID) (*Invoice, error)
}

// EmailResolver looks up the billing address for a user; receipts are
// skipped when it is not configured.
type EmailResolver func(ctx context.Context, userID uuid.UUID) (string, error)

// Engine enforces the single-current-subscription invariant and drives
// payment capture and the invoice ledger.
type Engine struct {
	subs     SubscriptionStore
	invoices InvoiceStore
	plans    PlanStore
	gateway  PaymentGateway

	log            *slog.Logger
	mailer         email.Sender
	resolveEmail   EmailResolver
	now            func() time.Time
	gatewayTimeout time.Duration
}

type EngineOption func(*Engine)

// WithClock overrides the time source; tests pin it to assert window laws.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithGatewayTimeout bounds each payment call. A timeout counts as a
// failed payment, never as a payment left pending.
func WithGatewayTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.gatewayTimeout = d
		}
	}
}

// WithReceipts enables receipt emails for paid invoices.
func WithReceipts(mailer email.Sender, resolve EmailResolver) EngineOption {
	return func(e *Engine) {
		e.mailer = mailer
		e.resolveEmail = resolve
	}
}

func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine panics on nil dependencies to fail fast during wiring.
func NewEngine(subs SubscriptionStore, invoices InvoiceStore, plans PlanStore, gateway PaymentGateway, opts ...EngineOption) *Engine {
	if subs == nil || invoices == nil || plans == nil || gateway == nil {
		panic("billing: all engine dependencies are required")
	}

	e := &Engine{
		subs:           subs,
		invoices:       invoices,
		plans:          plans,
		gateway:        gateway,
		log:            slog.Default(),
		now:            func() time.Time { return time.Now().UTC() },
		gatewayTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe creates a new trialing subscription to planID, superseding any
// current subscription. The subscription row survives a failed payment; the
// failure is recorded on the invoice and surfaced as ErrPaymentFailed.
func (e *Engine) Subscribe(ctx context.Context, userID uuid.UUID, planID string) (*Subscription, error) {
	plan, err := e.plans.ActivePlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	sub := newSubscription(userID, *plan, now)

	// The store makes cancel-old-insert-new atomic per user. One retry
	// covers the losing side of a supersession race; the retried call
	// observes the winner's row and supersedes it normally.
	if err := e.subs.Supersede(ctx, sub); err != nil {
		if !errors.Is(err, ErrSubscriptionConflict) {
			return nil, fmt.Errorf("supersede subscription: %w", err)
		}
		sub = newSubscription(userID, *plan, e.now())
		if err := e.subs.Supersede(ctx, sub); err != nil {
			return nil, fmt.Errorf("supersede subscription after conflict: %w", err)
		}
	}

	inv := newInvoice(userID, *plan, now)
	if err := e.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if err := e.capturePayment(ctx, sub, inv, *plan); err != nil {
		return sub, err
	}

	sub.PlanName = plan.Name
	sub.PlanPriceCents = plan.PriceCents
	sub.PlanPeriod = plan.BillingPeriod
	return sub, nil
}

// capturePayment charges the gateway under a timeout and finalizes the
// invoice. Invoice updates run on a cancellation-free context: the ledger
// must record the outcome even when the request context is gone.
func (e *Engine) capturePayment(ctx context.Context, sub *Subscription, inv *Invoice, plan Plan) error {
	chargeCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	defer cancel()

	result, chargeErr := e.gateway.Charge(chargeCtx, ChargeRequest{
		UserID:      sub.UserID,
		PlanID:      plan.ID,
		AmountCents: plan.PriceCents,
	})

	ledgerCtx := context.WithoutCancel(ctx)
	if chargeErr != nil {
		if err := e.invoices.SetStatus(ledgerCtx, inv.ID, InvoiceFailed, nil); err != nil {
			e.log.ErrorContext(ctx, "failed to mark invoice failed",
				"invoice_id", inv.ID, "error", err)
		}
		return errors.Join(ErrPaymentFailed, chargeErr)
	}

	paidAt := e.now()
	if err := e.invoices.SetStatus(ledgerCtx, inv.ID, InvoicePaid, &paidAt); err != nil {
		e.log.ErrorContext(ctx, "failed to mark invoice paid",
			"invoice_id", inv.ID, "transaction_id", result.TransactionID, "error", err)
	}

	e.sendReceipt(ledgerCtx, sub.UserID, plan, inv)
	return nil
}

func (e *Engine) sendReceipt(ctx context.Context, userID uuid.UUID, plan Plan, inv *Invoice) {
	if e.mailer == nil || e.resolveEmail == nil {
		return
	}

	addr, err := e.resolveEmail(ctx, userID)
	if err != nil {
		e.log.WarnContext(ctx, "cannot resolve billing email", "user_id", userID, "error", err)
		return
	}

	msg := email.Message{
		To:      addr,
		Subject: fmt.Sprintf("Receipt for your %s subscription", plan.Name),
		BodyHTML: fmt.Sprintf(
			"<p>Your payment of $%.2f for the %s plan was received.</p><p>Invoice: %s</p>",
			float64(inv.AmountCents)/100, plan.Name, inv.ID,
		),
		Tag: "billing-receipt",
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		// Receipts are best-effort; the invoice is already settled.
		e.log.WarnContext(ctx, "failed to send receipt", "user_id", userID, "error", err)
	}
}

// ChangePlan validates the target plan and delegates to Subscribe, which
// performs the supersession. The trial window resets; there is no
// proration.
func (e *Engine) ChangePlan(ctx context.Context, userID uuid.UUID, newPlanID string) (*Subscription, error) {
	if _, err := e.plans.ActivePlan(ctx, newPlanID); err != nil {
		return nil, err
	}
	return e.Subscribe(ctx, userID, newPlanID)
}

// UpdateStatus transitions the user's current subscription. Illegal target
// states are rejected by the store against the state machine.
func (e *Engine) UpdateStatus(ctx context.Context, userID uuid.UUID, to Status) (*Subscription, error) {
	return e.subs.Transition(ctx, userID, to)
}

// Cancel moves the current subscription to cancelled. The period end is
// untouched: access persists until the paid-for window closes.
func (e *Engine) Cancel(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	current, err := e.subs.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	remoteCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	defer cancel()
	if err := e.gateway.CancelRemote(remoteCtx, userID, current.PlanID); err != nil {
		// Opaque remote failure does not block the local cancellation.
		e.log.WarnContext(ctx, "remote cancellation failed",
			"user_id", userID, "plan_id", current.PlanID, "error", err)
	}

	return e.subs.Transition(ctx, userID, StatusCancelled)
}

// Current returns the user's single trialing-or-active subscription with
// plan display data, or ErrNoActiveSubscription.
func (e *Engine) Current(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return e.subs.Current(ctx, userID)
}

// History returns the full subscription audit trail, newest first.
func (e *Engine) History(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	return e.subs.History(ctx, userID)
}

// Invoices returns the user's billing history, newest first.
func (e *Engine) Invoices(ctx context.Context, userID uuid.UUID) ([]Invoice, error) {
	return e.invoices.ByUser(ctx, userID)
}

// Invoice returns a single invoice. Another user's invoice reads as not
// found rather than forbidden, so IDs cannot be probed.
func (e *Engine) Invoice(ctx context.Context, userID, invoiceID uuid.UUID) (*Invoice, error) {
	inv, err := e.invoices.ByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, ErrInvoiceNotFound
	}
	return inv, nil
}
