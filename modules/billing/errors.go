package billing

import "errors"

var (
	ErrPlanNotFound         = errors.New("plan not found or inactive")
	ErrNoActiveSubscription = errors.New("no active subscription found")
	ErrPaymentFailed        = errors.New("payment processing failed")

	ErrInvalidStatus        = errors.New("invalid subscription status")
	ErrInvalidTransition    = errors.New("illegal subscription status transition")
	ErrSubscriptionConflict = errors.New("concurrent subscription update, retry")

	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrInvoiceFinalized = errors.New("invoice already in a terminal state")
)
