package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateAlert(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	days := func(d int) *time.Time {
		ts := now.AddDate(0, 0, d)
		return &ts
	}

	tests := []struct {
		name          string
		state         SubscriptionState
		graceDaysUsed int
		graceStart    *time.Time
		nextBilling   *time.Time
		want          *Alert
	}{
		{
			name:          "grace with one day left",
			state:         StateGrace,
			graceDaysUsed: 2,
			graceStart:    days(-2),
			want:          &Alert{Type: AlertEnGracia, DaysRemaining: 1},
		},
		{
			name:          "grace fully consumed floors at zero",
			state:         StateGrace,
			graceDaysUsed: 5,
			graceStart:    days(-5),
			want:          &Alert{Type: AlertEnGracia, DaysRemaining: 0},
		},
		{
			name:  "delinquent is always morosa",
			state: StateDelinquent,
			want:  &Alert{Type: AlertMorosa, DaysRemaining: 0},
		},
		{
			name:        "active due in two days",
			state:       StateActive,
			nextBilling: days(2),
			want:        &Alert{Type: AlertProximoCobro, DaysRemaining: 2},
		},
		{
			name:        "active due at the window edge",
			state:       StateActive,
			nextBilling: days(3),
			want:        &Alert{Type: AlertProximoCobro, DaysRemaining: 3},
		},
		{
			name:        "partial day rounds up",
			state:       StateActive,
			nextBilling: func() *time.Time { ts := now.Add(36 * time.Hour); return &ts }(),
			want:        &Alert{Type: AlertProximoCobro, DaysRemaining: 2},
		},
		{
			name:        "active far from billing has no alert",
			state:       StateActive,
			nextBilling: days(10),
			want:        nil,
		},
		{
			name:        "active with overdue billing date has no alert",
			state:       StateActive,
			nextBilling: days(-1),
			want:        nil,
		},
		{
			name:  "active without a billing date has no alert",
			state: StateActive,
			want:  nil,
		},
		{
			name:        "cancelled never alerts",
			state:       StateCancelled,
			nextBilling: days(1),
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := CalculateAlert(tt.state, tt.graceDaysUsed, tt.graceStart, tt.nextBilling, now)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestCalculateAlertDeterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	next := now.Add(48 * time.Hour)

	first := CalculateAlert(StateActive, 0, nil, &next, now)
	for i := 0; i < 100; i++ {
		again := CalculateAlert(StateActive, 0, nil, &next, now)
		require.Equal(t, first, again)
	}
}

func TestHasAccess(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 10)
	past := now.AddDate(0, 0, -10)

	// ACTIVE has access only after the initial payment set a billing date.
	assert.False(t, (&Subscription{State: StateActive}).HasAccess(now))
	assert.True(t, (&Subscription{State: StateActive, NextBillingDate: &future}).HasAccess(now))
	assert.True(t, (&Subscription{State: StateGrace}).HasAccess(now))
	assert.False(t, (&Subscription{State: StateDelinquent}).HasAccess(now))

	// Cancelled keeps access until the paid period runs out.
	assert.True(t, (&Subscription{State: StateCancelled, NextBillingDate: &future}).HasAccess(now))
	assert.False(t, (&Subscription{State: StateCancelled, NextBillingDate: &past}).HasAccess(now))
	assert.False(t, (&Subscription{State: StateCancelled}).HasAccess(now))
}
