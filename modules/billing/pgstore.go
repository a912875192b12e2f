package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/substratehq/substrate/pkg/pg"
)

// PgSubscriptionStore persists subscriptions in Postgres. A partial unique
// index on (user_id) over current statuses backstops the single-current
// invariant; the transactional row lock in Supersede resolves races before
// they hit the index.
type PgSubscriptionStore struct {
	pool *pgxpool.Pool
}

func NewPgSubscriptionStore(pool *pgxpool.Pool) *PgSubscriptionStore {
	return &PgSubscriptionStore{pool: pool}
}

const subscriptionColumns = `
	s.id, s.user_id, s.plan_id, s.status, s.trial_ends_at,
	s.current_period_start, s.current_period_end, s.cancelled_at,
	s.created_at, s.updated_at,
	p.name, p.price_cents, p.billing_period`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &sub.TrialEndsAt,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelledAt,
		&sub.CreatedAt, &sub.UpdatedAt,
		&sub.PlanName, &sub.PlanPriceCents, &sub.PlanPeriod,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PgSubscriptionStore) Supersede(ctx context.Context, sub *Subscription) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin supersede tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock the user's current row (if any) so concurrent supersessions
	// serialize here instead of colliding on the partial unique index.
	_, err = tx.Exec(ctx, `
		UPDATE subscriptions
		SET status = 'cancelled', cancelled_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM subscriptions
			WHERE user_id = $1 AND status IN ('trialing', 'active')
			FOR UPDATE
		)`, sub.UserID)
	if err != nil {
		return fmt.Errorf("cancel current subscription: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO subscriptions (
			id, user_id, plan_id, status, trial_ends_at,
			current_period_start, current_period_end,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.UserID, sub.PlanID, sub.Status, sub.TrialEndsAt,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ErrSubscriptionConflict
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if pg.IsUniqueViolation(err) {
			return ErrSubscriptionConflict
		}
		return fmt.Errorf("commit supersede tx: %w", err)
	}
	return nil
}

func (s *PgSubscriptionStore) Current(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.user_id = $1 AND s.status IN ('trialing', 'active')
		ORDER BY s.created_at DESC
		LIMIT 1`, userID))
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("query current subscription: %w", err)
	}
	return sub, nil
}

func (s *PgSubscriptionStore) History(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query subscription history: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (s *PgSubscriptionStore) Transition(ctx context.Context, userID uuid.UUID, to Status) (*Subscription, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id uuid.UUID
	var from Status
	err = tx.QueryRow(ctx, `
		SELECT id, status FROM subscriptions
		WHERE user_id = $1 AND status IN ('trialing', 'active')
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`, userID).Scan(&id, &from)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("lock current subscription: %w", err)
	}

	if !from.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}

	cancelledAt := "cancelled_at"
	if to == StatusCancelled {
		cancelledAt = "now()"
	}
	_, err = tx.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, cancelled_at = `+cancelledAt+`, updated_at = now()
		WHERE id = $1`, id, to)
	if err != nil {
		return nil, fmt.Errorf("update subscription status: %w", err)
	}

	sub, err := scanSubscription(tx.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("reload subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition tx: %w", err)
	}
	return sub, nil
}

// PgInvoiceStore persists the invoice ledger.
type PgInvoiceStore struct {
	pool *pgxpool.Pool
}

func NewPgInvoiceStore(pool *pgxpool.Pool) *PgInvoiceStore {
	return &PgInvoiceStore{pool: pool}
}

const invoiceColumns = `
	i.id, i.user_id, i.plan_id, i.amount_cents, i.status,
	i.billing_period_start, i.billing_period_end, i.payment_date,
	i.created_at, i.updated_at, p.name`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.PlanID, &inv.AmountCents, &inv.Status,
		&inv.PeriodStart, &inv.PeriodEnd, &inv.PaymentDate,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.PlanName,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *PgInvoiceStore) Create(ctx context.Context, inv *Invoice) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invoices (
			id, user_id, plan_id, amount_cents, status,
			billing_period_start, billing_period_end,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.UserID, inv.PlanID, inv.AmountCents, inv.Status,
		inv.PeriodStart, inv.PeriodEnd, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *PgInvoiceStore) SetStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus, paymentDate *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET status = $2, payment_date = $3, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, status, paymentDate)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already-finalized for callers.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check invoice existence: %w", err)
		}
		if !exists {
			return ErrInvoiceNotFound
		}
		return ErrInvoiceFinalized
	}
	return nil
}

func (s *PgInvoiceStore) ByUser(ctx context.Context, userID uuid.UUID) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		JOIN plans p ON p.id = i.plan_id
		WHERE i.user_id = $1
		ORDER BY i.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *PgInvoiceStore) ByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		JOIN plans p ON p.id = i.plan_id
		WHERE i.id = $1`, id))
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("query invoice: %w", err)
	}
	return inv, nil
}

// PgPlanStore persists the plan catalog.
type PgPlanStore struct {
	pool *pgxpool.Pool
}

func NewPgPlanStore(pool *pgxpool.Pool) *PgPlanStore {
	return &PgPlanStore{pool: pool}
}

func (s *PgPlanStore) ActivePlan(ctx context.Context, id string) (*Plan, error) {
	var plan Plan
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, price_cents, features,
		       billing_period, active, created_at, updated_at
		FROM plans
		WHERE id = $1 AND active`, id).Scan(
		&plan.ID, &plan.Name, &plan.Description, &plan.PriceCents, &plan.Features,
		&plan.BillingPeriod, &plan.Active, &plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("query plan: %w", err)
	}
	return &plan, nil
}

func (s *PgPlanStore) ListActive(ctx context.Context) ([]Plan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, price_cents, features,
		       billing_period, active, created_at, updated_at
		FROM plans
		WHERE active
		ORDER BY price_cents, id`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		var plan Plan
		err := rows.Scan(
			&plan.ID, &plan.Name, &plan.Description, &plan.PriceCents, &plan.Features,
			&plan.BillingPeriod, &plan.Active, &plan.CreatedAt, &plan.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, plan)
	}
	return out, rows.Err()
}

func (s *PgPlanStore) Upsert(ctx context.Context, plan Plan) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO plans (
			id, name, description, price_cents, features,
			billing_period, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price_cents = EXCLUDED.price_cents,
			features = EXCLUDED.features,
			billing_period = EXCLUDED.billing_period,
			active = EXCLUDED.active,
			updated_at = now()`,
		plan.ID, plan.Name, plan.Description, plan.PriceCents, plan.Features,
		plan.BillingPeriod, plan.Active, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

var (
	_ SubscriptionStore = (*PgSubscriptionStore)(nil)
	_ InvoiceStore      = (*PgInvoiceStore)(nil)
	_ PlanStore         = (*PgPlanStore)(nil)
)
