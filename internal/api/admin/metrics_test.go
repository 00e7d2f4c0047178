package admin

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	))
	return db
}

func TestComputeMetrics(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)

	tutor := users.Tutor{Name: "Ana", Lastname: "Suarez", Email: "ana@example.com"}
	require.NoError(t, db.Create(&tutor).Error)
	plan := plans.Plan{Name: "Mensual", BasePrice: 50, Interval: "monthly", Active: true}
	require.NoError(t, db.Create(&plan).Error)

	thisMonth := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	seed := []billing.Subscription{
		{TutorID: tutor.ID, PlanID: plan.ID, State: billing.StateActive},
		{TutorID: tutor.ID, PlanID: plan.ID, State: billing.StateActive},
		{TutorID: tutor.ID, PlanID: plan.ID, State: billing.StateActive},
		{TutorID: tutor.ID, PlanID: plan.ID, State: billing.StateGrace},
		{TutorID: tutor.ID, PlanID: plan.ID, State: billing.StateDelinquent},
		{TutorID: tutor.ID, PlanID: plan.ID, State: billing.StateCancelled, CancelledAt: &thisMonth},
		{TutorID: tutor.ID, PlanID: plan.ID, State: billing.StateCancelled, CancelledAt: &lastMonth},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	// Approved payments: two this month, one last month, one pending.
	thisPaid := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	lastPaid := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	subID := seed[0].ID
	for _, p := range []billing.Payment{
		{SubscriptionID: &subID, Kind: billing.KindMonthlyRecurring, Amount: 50, State: billing.PaymentApproved, PaymentDate: &thisPaid},
		{SubscriptionID: &subID, Kind: billing.KindMonthlyRecurring, Amount: 30, State: billing.PaymentApproved, PaymentDate: &thisPaid},
		{SubscriptionID: &subID, Kind: billing.KindMonthlyRecurring, Amount: 99, State: billing.PaymentApproved, PaymentDate: &lastPaid},
		{SubscriptionID: &subID, Kind: billing.KindMonthlyRecurring, Amount: 77, State: billing.PaymentPending},
	} {
		require.NoError(t, db.Create(&p).Error)
	}

	metrics, err := ComputeMetrics(db, now)
	require.NoError(t, err)

	assert.EqualValues(t, 3, metrics.SubscriptionsByState["ACTIVE"])
	assert.EqualValues(t, 1, metrics.SubscriptionsByState["GRACE"])
	assert.EqualValues(t, 1, metrics.SubscriptionsByState["DELINQUENT"])
	assert.EqualValues(t, 2, metrics.SubscriptionsByState["CANCELLED"])
	assert.EqualValues(t, 7, metrics.TotalSubscriptions)

	var sum int64
	for _, n := range metrics.SubscriptionsByState {
		sum += n
	}
	assert.EqualValues(t, metrics.TotalSubscriptions, sum, "state counts must sum to the total")

	assert.EqualValues(t, 1, metrics.CancelledThisMonth)
	assert.InDelta(t, 80.0, metrics.RevenueThisMonth, 0.001)

	// 1 / (3 active + 1 grace + 1 delinquent + 1 cancelled this month)
	assert.InDelta(t, 1.0/6.0, metrics.CancellationRate, 0.0001)
}

func TestComputeMetricsEmptyStore(t *testing.T) {
	db := newTestDB(t)

	metrics, err := ComputeMetrics(db, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, metrics.TotalSubscriptions)
	assert.Zero(t, metrics.CancellationRate)
	assert.Zero(t, metrics.RevenueThisMonth)
}
