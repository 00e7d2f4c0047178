package billing

import "time"

// StateHistoryEntry is the append-only narrative of a subscription's state
// changes. Written in the same transaction as the transition itself.
type StateHistoryEntry struct {
	ID             uint `gorm:"primaryKey"`
	SubscriptionID uint `gorm:"index;not null"`
	PriorState     *SubscriptionState
	NewState       SubscriptionState `gorm:"type:varchar(16);not null"`
	Reason         string
	ChangedBy      string    `gorm:"type:varchar(16)"` // webhook | scheduler | tutor | admin | system
	CreatedAt      time.Time `gorm:"index"`
}
