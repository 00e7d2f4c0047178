package admin

import (
	"time"

	"gorm.io/gorm"

	"billing-app/internal/domain/billing"
)

// DashboardMetrics is the admin overview: subscription population, current
// month money, and churn.
type DashboardMetrics struct {
	SubscriptionsByState map[string]int64 `json:"subscriptions_by_state"`
	TotalSubscriptions   int64            `json:"total_subscriptions"`
	CancelledThisMonth   int64            `json:"cancelled_this_month"`
	RevenueThisMonth     float64          `json:"revenue_this_month"`
	CancellationRate     float64          `json:"cancellation_rate"`
}

// ComputeMetrics builds the dashboard numbers for the month containing `now`.
// Counts by state always sum to the total, and the cancellation rate uses
// this month's cancellations over the reachable population:
//
//	cancelled_this_month / (active + grace + delinquent + cancelled_this_month)
func ComputeMetrics(db *gorm.DB, now time.Time) (*DashboardMetrics, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	metrics := &DashboardMetrics{SubscriptionsByState: map[string]int64{
		string(billing.StateActive):     0,
		string(billing.StateGrace):      0,
		string(billing.StateDelinquent): 0,
		string(billing.StateCancelled):  0,
	}}

	var rows []struct {
		State billing.SubscriptionState
		N     int64
	}
	if err := db.Model(&billing.Subscription{}).
		Select("state, COUNT(*) AS n").
		Group("state").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		metrics.SubscriptionsByState[string(r.State)] = r.N
		metrics.TotalSubscriptions += r.N
	}

	if err := db.Model(&billing.Subscription{}).
		Where("cancelled_at >= ? AND cancelled_at < ?", monthStart, monthEnd).
		Count(&metrics.CancelledThisMonth).Error; err != nil {
		return nil, err
	}

	var revenue *float64
	if err := db.Model(&billing.Payment{}).
		Select("SUM(amount)").
		Where("state = ? AND payment_date >= ? AND payment_date < ?", billing.PaymentApproved, monthStart, monthEnd).
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	if revenue != nil {
		metrics.RevenueThisMonth = *revenue
	}

	denominator := metrics.SubscriptionsByState[string(billing.StateActive)] +
		metrics.SubscriptionsByState[string(billing.StateGrace)] +
		metrics.SubscriptionsByState[string(billing.StateDelinquent)] +
		metrics.CancelledThisMonth
	if denominator > 0 {
		metrics.CancellationRate = float64(metrics.CancelledThisMonth) / float64(denominator)
	}
	return metrics, nil
}
