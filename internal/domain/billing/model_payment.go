package billing

import "time"

// Payment is a single payment attempt/result tied to a subscription or a
// standalone enrollment. The unique index on ExternalTransactionID is the
// idempotency mechanism for webhook redelivery: the processor retries
// notifications on any uncertainty, so the same transaction id can arrive
// any number of times on concurrent connections. NULLs don't collide, so
// multiple pending checkouts without a settled transaction are legal.
type Payment struct {
	ID                    uint  `gorm:"primaryKey"`
	SubscriptionID        *uint `gorm:"index"`
	Subscription          *Subscription
	EnrollmentID          *uint       `gorm:"index"`
	Kind                  PaymentKind `gorm:"type:varchar(32);not null"`
	Amount                float64
	State                 PaymentState `gorm:"type:varchar(16);not null;default:'pending';index"`
	ExternalTransactionID *string      `gorm:"uniqueIndex"`
	ExternalPreferenceID  *string
	PaymentDate           *time.Time
	CreatedAt             time.Time `gorm:"index"`
}
