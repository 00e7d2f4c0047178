package billing

import (
	"time"

	"billing-app/internal/domain/plans"
	"billing-app/internal/domain/users"
)

// Enrollment is a standalone one-off course enrollment. It is created pending
// when a checkout is initiated and activated by an approved payment; stale
// pending rows are reclaimed by the expiration scheduler.
type Enrollment struct {
	ID        uint `gorm:"primaryKey"`
	TutorID   uint `gorm:"index;not null"`
	Tutor     users.Tutor
	PlanID    uint `gorm:"not null"`
	Plan      plans.Plan
	Status    EnrollmentStatus `gorm:"type:varchar(16);not null;default:'pending';index"`
	CreatedAt time.Time        `gorm:"index"`
	UpdatedAt time.Time
}

// MonthlyEnrollment is one billing period of a subscription, e.g. "2026-09".
// Unlike standalone enrollments these are backed by the subscription state
// machine, so expiring one also writes a StateHistoryEntry for its parent.
type MonthlyEnrollment struct {
	ID             uint `gorm:"primaryKey"`
	SubscriptionID uint `gorm:"index;not null"`
	Subscription   Subscription
	Period         string `gorm:"type:varchar(7);not null"` // YYYY-MM
	Amount         float64
	Status         MonthlyStatus `gorm:"type:varchar(16);not null;default:'pending';index"`
	CreatedAt      time.Time     `gorm:"index"`
	UpdatedAt      time.Time
}
