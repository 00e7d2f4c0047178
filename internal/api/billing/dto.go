package billing

import (
	"time"

	domain "billing-app/internal/domain/billing"
)

// SubscriptionSummary is one row of the tutor's subscription list.
type SubscriptionSummary struct {
	ID              uint          `json:"id"`
	PlanName        string        `json:"plan_name"`
	State           string        `json:"state"`
	FinalPrice      float64       `json:"final_price"`
	DiscountPercent float64       `json:"discount_percent"`
	StartDate       time.Time     `json:"start_date"`
	NextBillingDate *time.Time    `json:"next_billing_date,omitempty"`
	Alert           *domain.Alert `json:"alert,omitempty"`
}

// SubscriptionDetail adds payments and the state timeline.
type SubscriptionDetail struct {
	SubscriptionSummary
	GraceDaysUsed int            `json:"grace_days_used"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	CancelReason  *string        `json:"cancel_reason,omitempty"`
	HasAccess     bool           `json:"has_access"`
	Payments      []PaymentEntry `json:"payments"`
	History       []HistoryEntry `json:"history"`
}

type PaymentEntry struct {
	ID          uint       `json:"id"`
	Kind        string     `json:"kind"`
	Amount      float64    `json:"amount"`
	State       string     `json:"state"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type HistoryEntry struct {
	PriorState *string   `json:"prior_state,omitempty"`
	NewState   string    `json:"new_state"`
	Reason     string    `json:"reason"`
	ChangedBy  string    `json:"changed_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}
