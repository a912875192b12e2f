package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySubscriptionStore keeps subscription history in process memory. A
// single mutex serializes supersessions and transitions, which gives the
// same per-user atomicity the SQL store gets from row locks.
type MemorySubscriptionStore struct {
	mu     sync.Mutex
	byUser map[uuid.UUID][]*Subscription
	plans  PlanStore
}

func NewMemorySubscriptionStore(plans PlanStore) *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		byUser: make(map[uuid.UUID][]*Subscription),
		plans:  plans,
	}
}

func (s *MemorySubscriptionStore) Supersede(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, existing := range s.byUser[sub.UserID] {
		if existing.Status.IsCurrent() {
			cancelledAt := now
			existing.Status = StatusCancelled
			existing.CancelledAt = &cancelledAt
			existing.UpdatedAt = now
		}
	}

	cp := *sub
	s.byUser[sub.UserID] = append(s.byUser[sub.UserID], &cp)
	return nil
}

func (s *MemorySubscriptionStore) Current(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(ctx, userID)
}

func (s *MemorySubscriptionStore) currentLocked(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	rows := s.byUser[userID]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Status.IsCurrent() {
			out := *rows[i]
			s.joinPlan(ctx, &out)
			return &out, nil
		}
	}
	return nil, ErrNoActiveSubscription
}

func (s *MemorySubscriptionStore) History(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.byUser[userID]
	out := make([]Subscription, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		cp := *rows[i]
		s.joinPlan(ctx, &cp)
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemorySubscriptionStore) Transition(ctx context.Context, userID uuid.UUID, to Status) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.byUser[userID]
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if !row.Status.IsCurrent() {
			continue
		}
		if !row.Status.CanTransitionTo(to) {
			return nil, ErrInvalidTransition
		}

		now := time.Now().UTC()
		row.Status = to
		row.UpdatedAt = now
		if to == StatusCancelled {
			cancelledAt := now
			row.CancelledAt = &cancelledAt
		}

		out := *row
		s.joinPlan(ctx, &out)
		return &out, nil
	}
	return nil, ErrNoActiveSubscription
}

func (s *MemorySubscriptionStore) joinPlan(ctx context.Context, sub *Subscription) {
	if s.plans == nil {
		return
	}
	if plan, err := s.plans.ActivePlan(ctx, sub.PlanID); err == nil {
		sub.PlanName = plan.Name
		sub.PlanPriceCents = plan.PriceCents
		sub.PlanPeriod = plan.BillingPeriod
	}
}

// MemoryInvoiceStore is the in-process invoice ledger.
type MemoryInvoiceStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*Invoice
}

func NewMemoryInvoiceStore() *MemoryInvoiceStore {
	return &MemoryInvoiceStore{byID: make(map[uuid.UUID]*Invoice)}
}

func (s *MemoryInvoiceStore) Create(ctx context.Context, inv *Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *inv
	s.byID[inv.ID] = &cp
	return nil
}

func (s *MemoryInvoiceStore) SetStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus, paymentDate *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	if inv.Status.IsTerminal() {
		return ErrInvoiceFinalized
	}

	inv.Status = status
	inv.PaymentDate = paymentDate
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryInvoiceStore) ByUser(ctx context.Context, userID uuid.UUID) ([]Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Invoice
	for _, inv := range s.byID {
		if inv.UserID == userID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryInvoiceStore) ByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

// MemoryPlanStore holds the plan catalog in memory.
type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: make(map[string]Plan)}
}

func (s *MemoryPlanStore) ActivePlan(ctx context.Context, id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok || !plan.Active {
		return nil, ErrPlanNotFound
	}
	return &plan, nil
}

func (s *MemoryPlanStore) ListActive(ctx context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		if plan.Active {
			out = append(out, plan)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriceCents != out[j].PriceCents {
			return out[i].PriceCents < out[j].PriceCents
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryPlanStore) Upsert(ctx context.Context, plan Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.plans[plan.ID]; ok {
		plan.CreatedAt = existing.CreatedAt
	}
	s.plans[plan.ID] = plan
	return nil
}
