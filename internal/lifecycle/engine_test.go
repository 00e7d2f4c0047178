package lifecycle

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"billing-app/internal/domain/billing"
	"billing-app/internal/domain/plans"
	"billing-app/internal/domain/users"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&users.Tutor{}, &plans.Plan{},
		&billing.Subscription{}, &billing.Payment{},
		&billing.StateHistoryEntry{},
	))
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, state billing.SubscriptionState) *billing.Subscription {
	t.Helper()
	// Subtests share the DB; the email must clear its unique index.
	var n int64
	require.NoError(t, db.Model(&users.Tutor{}).Count(&n).Error)
	tutor := users.Tutor{Name: "Ana", Lastname: "Suarez", Email: fmt.Sprintf("ana%d@example.com", n+1)}
	require.NoError(t, db.Create(&tutor).Error)
	plan := plans.Plan{Name: "Mensual", BasePrice: 50, Interval: "monthly", Active: true}
	require.NoError(t, db.Create(&plan).Error)

	sub := billing.Subscription{
		TutorID:    tutor.ID,
		PlanID:     plan.ID,
		State:      state,
		FinalPrice: 50,
		StartDate:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&sub).Error)
	return &sub
}

func lastHistory(t *testing.T, db *gorm.DB, subID uint) billing.StateHistoryEntry {
	t.Helper()
	var entry billing.StateHistoryEntry
	require.NoError(t, db.Where("subscription_id = ?", subID).Order("id desc").First(&entry).Error)
	return entry
}

func TestRecordFailedBilling(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, zap.NewNop())
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	t.Run("active enters grace", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateActive)
		require.NoError(t, engine.RecordFailedBilling(sub.ID, now))

		var got billing.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, billing.StateGrace, got.State)
		assert.Equal(t, 0, got.GraceDaysUsed)
		require.NotNil(t, got.GraceStartDate)
		assert.True(t, got.GraceStartDate.Equal(now))

		entry := lastHistory(t, db, sub.ID)
		assert.Equal(t, billing.StateGrace, entry.NewState)
		assert.Equal(t, "webhook", entry.ChangedBy)
	})

	t.Run("already in grace is untouched", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateGrace)
		require.NoError(t, engine.RecordFailedBilling(sub.ID, now))

		var got billing.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, billing.StateGrace, got.State)

		var count int64
		db.Model(&billing.StateHistoryEntry{}).Where("subscription_id = ?", sub.ID).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		assert.ErrorIs(t, engine.RecordFailedBilling(9999, now), billing.ErrNotFound)
	})
}

func TestAccrueGraceDay(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, zap.NewNop())
	now := time.Date(2026, 9, 2, 3, 0, 0, 0, time.UTC)

	t.Run("increments until the cap", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateGrace)

		require.NoError(t, engine.AccrueGraceDay(sub.ID, now))
		require.NoError(t, engine.AccrueGraceDay(sub.ID, now))

		var got billing.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, billing.StateGrace, got.State)
		assert.Equal(t, 2, got.GraceDaysUsed)

		// Third day exhausts the allowance.
		require.NoError(t, engine.AccrueGraceDay(sub.ID, now))
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, billing.StateDelinquent, got.State)
		assert.Equal(t, 3, got.GraceDaysUsed)

		entry := lastHistory(t, db, sub.ID)
		assert.Equal(t, billing.StateDelinquent, entry.NewState)
		assert.Equal(t, "scheduler", entry.ChangedBy)
	})

	t.Run("rejects non-grace states", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateActive)
		assert.ErrorIs(t, engine.AccrueGraceDay(sub.ID, now), billing.ErrInvalidState)
	})
}

func TestHandleSuccessfulPayment(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, zap.NewNop())
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	t.Run("grace recovers to active", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateGrace)
		start := now.AddDate(0, 0, -2)
		sub.GraceDaysUsed = 2
		sub.GraceStartDate = &start
		require.NoError(t, db.Save(sub).Error)

		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return engine.HandleSuccessfulPayment(tx, sub, now)
		}))

		var got billing.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, billing.StateActive, got.State)
		assert.Zero(t, got.GraceDaysUsed)
		assert.Nil(t, got.GraceStartDate)
		require.NotNil(t, got.NextBillingDate)
		assert.True(t, got.NextBillingDate.Equal(now.AddDate(0, 1, 0)))
	})

	t.Run("delinquent recovers to active", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateDelinquent)
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return engine.HandleSuccessfulPayment(tx, sub, now)
		}))

		var got billing.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, billing.StateActive, got.State)
	})

	t.Run("early payment extends from the anchor", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateActive)
		anchor := now.AddDate(0, 0, 5)
		sub.NextBillingDate = &anchor
		require.NoError(t, db.Save(sub).Error)

		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return engine.HandleSuccessfulPayment(tx, sub, now)
		}))

		var got billing.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		require.NotNil(t, got.NextBillingDate)
		assert.True(t, got.NextBillingDate.Equal(anchor.AddDate(0, 1, 0)))
	})

	t.Run("cancelled is never resurrected", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateCancelled)
		err := db.Transaction(func(tx *gorm.DB) error {
			return engine.HandleSuccessfulPayment(tx, sub, now)
		})
		assert.ErrorIs(t, err, billing.ErrInvalidState)
	})
}

func TestCancel(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, zap.NewNop())
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	t.Run("cancel keeps the billing date", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateActive)
		next := now.AddDate(0, 0, 12)
		sub.NextBillingDate = &next
		require.NoError(t, db.Save(sub).Error)

		require.NoError(t, engine.Cancel(sub.ID, "too expensive", "tutor", now))

		var got billing.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, billing.StateCancelled, got.State)
		require.NotNil(t, got.CancelledAt)
		require.NotNil(t, got.CancelReason)
		assert.Equal(t, "too expensive", *got.CancelReason)
		require.NotNil(t, got.NextBillingDate)
		assert.True(t, got.NextBillingDate.Equal(next))
		assert.True(t, got.HasAccess(now))
		assert.False(t, got.HasAccess(next.AddDate(0, 0, 1)))
	})

	t.Run("double cancel fails", func(t *testing.T) {
		sub := seedSubscription(t, db, billing.StateActive)
		require.NoError(t, engine.Cancel(sub.ID, "", "tutor", now))
		assert.ErrorIs(t, engine.Cancel(sub.ID, "", "tutor", now), billing.ErrAlreadyCancelled)
	})
}
