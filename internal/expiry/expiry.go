package expiry

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"billing-app/internal/alerts"
	"billing-app/internal/domain/audit"
	"billing-app/internal/domain/billing"
)

// Service forecloses stale pending work: checkouts that were started but
// never paid. The logic is a plain function of `now` and store state so it
// can be invoked from the daily cron, from the admin endpoint, or from a
// test, with identical behavior.
type Service struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Emitter *alerts.Emitter
}

func NewService(db *gorm.DB, log *zap.Logger, emitter *alerts.Emitter) *Service {
	return &Service{DB: db, Log: log, Emitter: emitter}
}

// Result reports how many rows each category expired in one run.
type Result struct {
	ByCategory map[string]int64 `json:"counts_by_category"`
	Total      int64            `json:"total"`
}

// ExpireStale transitions every pending row older than the cutoff to its
// expired status. Updates are set-based: one conditional UPDATE per category,
// never a per-row loop, so two overlapping runs cannot race row-by-row and a
// re-run over the same data is a no-op. Rows created exactly at the cutoff
// are kept (strict "older than").
func (s *Service) ExpireStale(now time.Time) (Result, error) {
	cutoff := now.AddDate(0, 0, -billing.ExpirationDays)
	result := Result{ByCategory: make(map[string]int64)}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		n, err := s.expireMonthly(tx, cutoff)
		if err != nil {
			return fmt.Errorf("monthly enrollments: %w", err)
		}
		result.ByCategory["monthly_enrollments"] = n

		res := tx.Model(&billing.Enrollment{}).
			Where("status = ? AND created_at < ?", billing.EnrollmentPending, cutoff).
			Update("status", billing.EnrollmentExpired)
		if res.Error != nil {
			return fmt.Errorf("enrollments: %w", res.Error)
		}
		result.ByCategory["enrollments"] = res.RowsAffected

		res = tx.Model(&billing.Payment{}).
			Where("state = ? AND created_at < ?", billing.PaymentPending, cutoff).
			Update("state", billing.PaymentExpired)
		if res.Error != nil {
			return fmt.Errorf("payments: %w", res.Error)
		}
		result.ByCategory["payments"] = res.RowsAffected
		return nil
	})
	if err != nil {
		s.Emitter.Raise(audit.ExpirationRunFailed, "expiration run aborted: "+err.Error(), map[string]string{
			"cutoff": cutoff.Format(time.RFC3339),
		})
		return Result{}, err
	}

	for _, n := range result.ByCategory {
		result.Total += n
	}
	s.Log.Info("expiration run finished",
		zap.Int64("total", result.Total),
		zap.Int64("monthly_enrollments", result.ByCategory["monthly_enrollments"]),
		zap.Int64("enrollments", result.ByCategory["enrollments"]),
		zap.Int64("payments", result.ByCategory["payments"]),
		zap.Time("cutoff", cutoff))
	return result, nil
}

// expireMonthly is the one category with state-machine bookkeeping: the
// parent subscription gets a history entry for each expired period. The
// candidate ids are read inside the same transaction as the update, so the
// history rows match exactly the rows flipped.
func (s *Service) expireMonthly(tx *gorm.DB, cutoff time.Time) (int64, error) {
	var candidates []struct {
		ID             uint
		SubscriptionID uint
		Period         string
		SubState       billing.SubscriptionState
	}
	if err := tx.Model(&billing.MonthlyEnrollment{}).
		Select("monthly_enrollments.id, monthly_enrollments.subscription_id, monthly_enrollments.period, subscriptions.state AS sub_state").
		Joins("JOIN subscriptions ON subscriptions.id = monthly_enrollments.subscription_id").
		Where("monthly_enrollments.status = ? AND monthly_enrollments.created_at < ?", billing.MonthlyPending, cutoff).
		Find(&candidates).Error; err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	ids := make([]uint, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	res := tx.Model(&billing.MonthlyEnrollment{}).
		Where("id IN ?", ids).
		Update("status", billing.MonthlyExpired)
	if res.Error != nil {
		return 0, res.Error
	}

	// Annotation entries: prior == new, the subscription state itself did
	// not move, but the timeline records that the period was foreclosed.
	entries := make([]billing.StateHistoryEntry, len(candidates))
	for i, c := range candidates {
		state := c.SubState
		entries[i] = billing.StateHistoryEntry{
			SubscriptionID: c.SubscriptionID,
			PriorState:     &state,
			NewState:       state,
			Reason:         "monthly enrollment " + c.Period + " expired unpaid",
			ChangedBy:      "scheduler",
		}
	}
	if err := tx.Create(&entries).Error; err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
