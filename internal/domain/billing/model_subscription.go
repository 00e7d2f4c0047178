package billing

import (
	"time"

	"billing-app/internal/domain/plans"
	"billing-app/internal/domain/users"
)

// Subscription is a tutor's recurring billing relationship to a plan.
// Rows are never deleted; CANCELLED is a terminal state kept for history.
type Subscription struct {
	ID              uint `gorm:"primaryKey"`
	TutorID         uint `gorm:"index;not null"`
	Tutor           users.Tutor
	PlanID          uint `gorm:"not null"`
	Plan            plans.Plan
	State           SubscriptionState `gorm:"type:varchar(16);not null;default:'ACTIVE';index"`
	FinalPrice      float64
	DiscountPercent float64
	StartDate       time.Time
	NextBillingDate *time.Time
	GraceDaysUsed   int `gorm:"not null;default:0"`
	GraceStartDate  *time.Time
	CancelledAt     *time.Time
	CancelReason    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Payments []Payment           `gorm:"foreignKey:SubscriptionID"`
	History  []StateHistoryEntry `gorm:"foreignKey:SubscriptionID"`
}

func (s *Subscription) IsCancelled() bool {
	return s.State == StateCancelled
}

// HasAccess reports whether the tutor has access at the given instant.
// ACTIVE grants access only once the initial payment settled: the next
// billing date is nil between checkout initiation and the first approved
// notification, and a checkout that never pays must not unlock anything.
// Cancelled subscriptions keep access until the next billing date passes.
func (s *Subscription) HasAccess(now time.Time) bool {
	switch s.State {
	case StateActive:
		return s.NextBillingDate != nil
	case StateGrace:
		return true
	case StateDelinquent:
		return false
	case StateCancelled:
		return s.NextBillingDate != nil && now.Before(*s.NextBillingDate)
	}
	return false
}
