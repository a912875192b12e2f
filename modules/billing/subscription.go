package billing

import (
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of subscription states. Arbitrary strings are
// rejected at the API boundary; transitions are validated against the state
// machine below.
type Status string

const (
	StatusTrialing  Status = "trialing"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// statusTransitions is the per-row state machine:
//
//	trialing -> active | cancelled | expired
//	active   -> cancelled | expired
//	cancelled, expired: terminal
var statusTransitions = map[Status][]Status{
	StatusTrialing: {StatusActive, StatusCancelled, StatusExpired},
	StatusActive:   {StatusCancelled, StatusExpired},
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusTrialing, StatusActive, StatusCancelled, StatusExpired:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// IsCurrent reports whether the status counts toward the single current
// subscription per user.
func (s Status) IsCurrent() bool {
	return s == StatusTrialing || s == StatusActive
}

// CanTransitionTo reports whether the state machine permits moving to
// target. Terminal states permit nothing.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TrialDays is the fixed trial window applied to every new subscription
// regardless of plan.
const TrialDays = 7

// Subscription is one row of a user's subscription history. Supersession
// and cancellation never delete rows; history is the audit trail.
type Subscription struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	PlanID             string     `json:"plan_id"`
	Status             Status     `json:"status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// Plan display data joined in read paths.
	PlanName       string        `json:"plan_name,omitempty"`
	PlanPriceCents int64         `json:"plan_price_cents,omitempty"`
	PlanPeriod     BillingPeriod `json:"billing_period,omitempty"`
}

// newSubscription builds a trialing subscription for plan starting at now.
func newSubscription(userID uuid.UUID, plan Plan, now time.Time) *Subscription {
	trialEnd := now.AddDate(0, 0, TrialDays)
	return &Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             StatusTrialing,
		TrialEndsAt:        &trialEnd,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   plan.BillingPeriod.Next(now),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// IsTrialExpiredAt reports whether the trial window has elapsed at ts.
// There is no background sweep; callers inspect this on read.
func (s *Subscription) IsTrialExpiredAt(ts time.Time) bool {
	return s.TrialEndsAt != nil && ts.After(*s.TrialEndsAt)
}
