package billing

import "errors"

var (
	// ErrDuplicatePayment means the external transaction id was already
	// recorded. Webhook handlers must treat this as "already processed"
	// and acknowledge success, never as a retryable failure.
	ErrDuplicatePayment = errors.New("payment with this external transaction id already recorded")

	ErrNotFound         = errors.New("record not found")
	ErrForbidden        = errors.New("resource belongs to another tutor")
	ErrAlreadyCancelled = errors.New("subscription is already cancelled")
	ErrInvalidState     = errors.New("operation not valid for current state")
)
