package users

import "time"

// Tutor is the billing owner of subscriptions and enrollments. Account
// management and authentication live elsewhere; this model exists for
// ownership checks and foreign keys.
type Tutor struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Lastname string
	Tel      string
	Email    string `gorm:"not null;uniqueIndex:idx_tutors_email"`
	Role     string

	CreatedAt time.Time
	UpdatedAt time.Time
}
