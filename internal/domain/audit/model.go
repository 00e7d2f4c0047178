package audit

import "time"

// AuditAlert is the append-only record of an anomaly. Metadata holds the
// marshalled details blob; rows are never updated or deleted.
type AuditAlert struct {
	ID          uint      `gorm:"primaryKey"`
	AlertType   AlertType `gorm:"type:varchar(48);not null;index"`
	Severity    Severity  `gorm:"type:varchar(16);not null;index"`
	Category    string    `gorm:"type:varchar(32)"`
	EntityType  string    `gorm:"type:varchar(32)"`
	EntityID    string    `gorm:"type:varchar(64)"`
	Description string
	Metadata    string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"index"`
}
