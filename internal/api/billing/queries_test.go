package billing

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	domain "billing-app/internal/domain/billing"
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
		&domain.Subscription{}, &domain.Payment{},
		&domain.Enrollment{}, &domain.MonthlyEnrollment{},
		&domain.StateHistoryEntry{},
	))
	return db
}

func seedTutor(t *testing.T, db *gorm.DB, email string) *users.Tutor {
	t.Helper()
	tutor := users.Tutor{Name: "Ana", Lastname: "Suarez", Email: email}
	require.NoError(t, db.Create(&tutor).Error)
	return &tutor
}

func seedPlan(t *testing.T, db *gorm.DB) *plans.Plan {
	t.Helper()
	plan := plans.Plan{Name: "Mensual", BasePrice: 50, Interval: "monthly", Active: true}
	require.NoError(t, db.Create(&plan).Error)
	return &plan
}

func TestListSubscriptionsWithAlerts(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tutor := seedTutor(t, db, "ana@example.com")
	plan := seedPlan(t, db)

	graceStart := now.AddDate(0, 0, -2)
	soon := now.AddDate(0, 0, 2)
	far := now.AddDate(0, 0, 20)

	subs := []domain.Subscription{
		{TutorID: tutor.ID, PlanID: plan.ID, State: domain.StateGrace, GraceDaysUsed: 2, GraceStartDate: &graceStart, FinalPrice: 50},
		{TutorID: tutor.ID, PlanID: plan.ID, State: domain.StateActive, NextBillingDate: &soon, FinalPrice: 50},
		{TutorID: tutor.ID, PlanID: plan.ID, State: domain.StateActive, NextBillingDate: &far, FinalPrice: 50},
	}
	for i := range subs {
		require.NoError(t, db.Create(&subs[i]).Error)
	}

	// Someone else's subscription must not leak into the list.
	other := seedTutor(t, db, "otro@example.com")
	require.NoError(t, db.Create(&domain.Subscription{TutorID: other.ID, PlanID: plan.ID, State: domain.StateActive}).Error)

	got, err := ListSubscriptions(db, tutor.ID, now)
	require.NoError(t, err)
	require.Len(t, got, 3)

	byID := map[uint]SubscriptionSummary{}
	for _, s := range got {
		assert.Equal(t, "Mensual", s.PlanName)
		byID[s.ID] = s
	}

	require.NotNil(t, byID[subs[0].ID].Alert)
	assert.Equal(t, domain.AlertEnGracia, byID[subs[0].ID].Alert.Type)
	assert.Equal(t, 1, byID[subs[0].ID].Alert.DaysRemaining)

	require.NotNil(t, byID[subs[1].ID].Alert)
	assert.Equal(t, domain.AlertProximoCobro, byID[subs[1].ID].Alert.Type)
	assert.Equal(t, 2, byID[subs[1].ID].Alert.DaysRemaining)

	assert.Nil(t, byID[subs[2].ID].Alert)
}

func TestGetSubscriptionDetail(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tutor := seedTutor(t, db, "ana@example.com")
	other := seedTutor(t, db, "otro@example.com")
	plan := seedPlan(t, db)

	next := now.AddDate(0, 0, 20)
	sub := domain.Subscription{TutorID: tutor.ID, PlanID: plan.ID, State: domain.StateActive, FinalPrice: 50, NextBillingDate: &next}
	require.NoError(t, db.Create(&sub).Error)

	paid := now.AddDate(0, -1, 0)
	require.NoError(t, db.Create(&domain.Payment{
		SubscriptionID: &sub.ID, Kind: domain.KindMonthlyRecurring,
		Amount: 50, State: domain.PaymentApproved, PaymentDate: &paid,
	}).Error)

	prior := domain.StateGrace
	require.NoError(t, db.Create(&domain.StateHistoryEntry{
		SubscriptionID: sub.ID, PriorState: &prior, NewState: domain.StateActive,
		Reason: "payment approved", ChangedBy: "webhook",
	}).Error)

	t.Run("owner sees everything", func(t *testing.T) {
		detail, err := GetSubscriptionDetail(db, tutor.ID, sub.ID, now)
		require.NoError(t, err)
		assert.True(t, detail.HasAccess)
		require.Len(t, detail.Payments, 1)
		assert.Equal(t, 50.0, detail.Payments[0].Amount)
		require.Len(t, detail.History, 1)
		assert.Equal(t, "GRACE", *detail.History[0].PriorState)
		assert.Equal(t, "ACTIVE", detail.History[0].NewState)
	})

	t.Run("other tutor is forbidden", func(t *testing.T) {
		_, err := GetSubscriptionDetail(db, other.ID, sub.ID, now)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("missing subscription", func(t *testing.T) {
		_, err := GetSubscriptionDetail(db, tutor.ID, 9999, now)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListPayments(t *testing.T) {
	db := newTestDB(t)

	tutor := seedTutor(t, db, "ana@example.com")
	other := seedTutor(t, db, "otro@example.com")
	plan := seedPlan(t, db)

	sub := domain.Subscription{TutorID: tutor.ID, PlanID: plan.ID, State: domain.StateActive}
	require.NoError(t, db.Create(&sub).Error)
	enr := domain.Enrollment{TutorID: tutor.ID, PlanID: plan.ID, Status: domain.EnrollmentActive}
	require.NoError(t, db.Create(&enr).Error)
	otherSub := domain.Subscription{TutorID: other.ID, PlanID: plan.ID, State: domain.StateActive}
	require.NoError(t, db.Create(&otherSub).Error)

	require.NoError(t, db.Create(&domain.Payment{SubscriptionID: &sub.ID, Kind: domain.KindMonthlyRecurring, Amount: 50, State: domain.PaymentApproved}).Error)
	require.NoError(t, db.Create(&domain.Payment{EnrollmentID: &enr.ID, Kind: domain.KindInitialEnrollment, Amount: 120, State: domain.PaymentApproved}).Error)
	require.NoError(t, db.Create(&domain.Payment{SubscriptionID: &otherSub.ID, Kind: domain.KindMonthlyRecurring, Amount: 50, State: domain.PaymentApproved}).Error)

	got, err := ListPayments(db, tutor.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
