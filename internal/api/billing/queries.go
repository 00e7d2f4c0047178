package billing

import (
	"errors"
	"time"

	"gorm.io/gorm"

	domain "billing-app/internal/domain/billing"
)

// ListSubscriptions returns every subscription of the tutor, newest first,
// each with its derived alert.
func ListSubscriptions(db *gorm.DB, tutorID uint, now time.Time) ([]SubscriptionSummary, error) {
	var subs []domain.Subscription
	if err := db.Preload("Plan").
		Where("tutor_id = ?", tutorID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}

	out := make([]SubscriptionSummary, len(subs))
	for i, s := range subs {
		out[i] = summarize(&s, now)
	}
	return out, nil
}

// GetSubscriptionDetail loads one subscription with payments and timeline.
// Asking for another tutor's subscription is ErrForbidden, not ErrNotFound:
// the row exists, the caller just may not see it.
func GetSubscriptionDetail(db *gorm.DB, tutorID, subID uint, now time.Time) (*SubscriptionDetail, error) {
	var sub domain.Subscription
	err := db.Preload("Plan").
		Preload("Payments", func(q *gorm.DB) *gorm.DB { return q.Order("created_at DESC") }).
		Preload("History", func(q *gorm.DB) *gorm.DB { return q.Order("created_at DESC, id DESC") }).
		First(&sub, subID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if sub.TutorID != tutorID {
		return nil, domain.ErrForbidden
	}

	detail := SubscriptionDetail{
		SubscriptionSummary: summarize(&sub, now),
		GraceDaysUsed:       sub.GraceDaysUsed,
		CancelledAt:         sub.CancelledAt,
		CancelReason:        sub.CancelReason,
		HasAccess:           sub.HasAccess(now),
		Payments:            make([]PaymentEntry, len(sub.Payments)),
		History:             make([]HistoryEntry, len(sub.History)),
	}
	for i, p := range sub.Payments {
		detail.Payments[i] = PaymentEntry{
			ID:          p.ID,
			Kind:        string(p.Kind),
			Amount:      p.Amount,
			State:       string(p.State),
			PaymentDate: p.PaymentDate,
			CreatedAt:   p.CreatedAt,
		}
	}
	for i, h := range sub.History {
		entry := HistoryEntry{
			NewState:  string(h.NewState),
			Reason:    h.Reason,
			ChangedBy: h.ChangedBy,
			CreatedAt: h.CreatedAt,
		}
		if h.PriorState != nil {
			prior := string(*h.PriorState)
			entry.PriorState = &prior
		}
		detail.History[i] = entry
	}
	return &detail, nil
}

// ListPayments returns the tutor's payments across all their subscriptions
// and enrollments, newest first.
func ListPayments(db *gorm.DB, tutorID uint) ([]PaymentEntry, error) {
	var payments []domain.Payment
	err := db.
		Select("payments.*").
		Joins("LEFT JOIN subscriptions ON subscriptions.id = payments.subscription_id").
		Joins("LEFT JOIN enrollments ON enrollments.id = payments.enrollment_id").
		Where("subscriptions.tutor_id = ? OR enrollments.tutor_id = ?", tutorID, tutorID).
		Order("payments.created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	out := make([]PaymentEntry, len(payments))
	for i, p := range payments {
		out[i] = PaymentEntry{
			ID:          p.ID,
			Kind:        string(p.Kind),
			Amount:      p.Amount,
			State:       string(p.State),
			PaymentDate: p.PaymentDate,
			CreatedAt:   p.CreatedAt,
		}
	}
	return out, nil
}

func summarize(s *domain.Subscription, now time.Time) SubscriptionSummary {
	return SubscriptionSummary{
		ID:              s.ID,
		PlanName:        s.Plan.Name,
		State:           string(s.State),
		FinalPrice:      s.FinalPrice,
		DiscountPercent: s.DiscountPercent,
		StartDate:       s.StartDate,
		NextBillingDate: s.NextBillingDate,
		Alert:           domain.CalculateAlert(s.State, s.GraceDaysUsed, s.GraceStartDate, s.NextBillingDate, now),
	}
}
