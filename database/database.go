package database

import (
	"fmt"
	"log"
	"os"

	"billing-app/internal/domain/audit"
	"billing-app/internal/domain/billing"
	"billing-app/internal/domain/plans"
	"billing-app/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("❌ DB_URL not set")
	}

	// TranslateError turns the unique-index violation on the external
	// transaction id into gorm.ErrDuplicatedKey, which the ledger relies on
	// for webhook idempotency.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}

	DB = db

	if err := DB.AutoMigrate(
		// core
		&users.Tutor{},
		&plans.Plan{},

		// billing
		&billing.Subscription{},
		&billing.Payment{},
		&billing.Enrollment{},
		&billing.MonthlyEnrollment{},
		&billing.StateHistoryEntry{},

		// operational
		&audit.AuditAlert{},
	); err != nil {
		log.Fatal("❌ AutoMigrate error:", err)
	}

	fmt.Println("✅ Connected and migrated successfully")
}
