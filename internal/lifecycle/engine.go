package lifecycle

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"billing-app/internal/domain/billing"
)

// Engine owns every subscription state transition. Handlers and the scheduler
// never write the state column directly: all paths go through here so each
// change lands with its StateHistoryEntry in the same transaction.
type Engine struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewEngine(db *gorm.DB, log *zap.Logger) *Engine {
	return &Engine{DB: db, Log: log}
}

// transition flips the state and appends the history row inside tx.
func (e *Engine) transition(tx *gorm.DB, sub *billing.Subscription, to billing.SubscriptionState, reason, changedBy string) error {
	prior := sub.State
	sub.State = to
	if err := tx.Save(sub).Error; err != nil {
		return err
	}
	entry := billing.StateHistoryEntry{
		SubscriptionID: sub.ID,
		PriorState:     &prior,
		NewState:       to,
		Reason:         reason,
		ChangedBy:      changedBy,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	e.Log.Info("subscription state changed",
		zap.Uint("subscription_id", sub.ID),
		zap.String("from", string(prior)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
		zap.String("changed_by", changedBy))
	return nil
}

// RecordFailedBilling reacts to a failed or missed charge. An ACTIVE
// subscription enters GRACE with the clock started; a subscription already
// in GRACE or DELINQUENT is left alone (the daily accrual handles it).
func (e *Engine) RecordFailedBilling(subID uint, now time.Time) error {
	return e.DB.Transaction(func(tx *gorm.DB) error {
		var sub billing.Subscription
		if err := tx.First(&sub, subID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return billing.ErrNotFound
			}
			return err
		}
		if sub.State != billing.StateActive {
			return nil
		}
		sub.GraceDaysUsed = 0
		sub.GraceStartDate = &now
		return e.transition(tx, &sub, billing.StateGrace, "billing attempt failed", "webhook")
	})
}

// AccrueGraceDay burns one grace day for a subscription in GRACE. When the
// allowance is exhausted the subscription falls to DELINQUENT. Calling it on
// any other state is an ErrInvalidState so the scheduler notices bad queries.
func (e *Engine) AccrueGraceDay(subID uint, now time.Time) error {
	return e.DB.Transaction(func(tx *gorm.DB) error {
		var sub billing.Subscription
		if err := tx.First(&sub, subID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return billing.ErrNotFound
			}
			return err
		}
		if sub.State != billing.StateGrace {
			return billing.ErrInvalidState
		}
		sub.GraceDaysUsed++
		if sub.GraceDaysUsed >= billing.GraceMaxDays {
			return e.transition(tx, &sub, billing.StateDelinquent, "grace period exhausted", "scheduler")
		}
		return tx.Save(&sub).Error
	})
}

// HandleSuccessfulPayment recovers a subscription after an approved charge.
// It runs inside the caller's transaction so the recovery is atomic with the
// payment insert. GRACE and DELINQUENT return to ACTIVE with the grace
// counters wiped; an already-ACTIVE subscription just advances its billing
// date. Cancelled subscriptions are never resurrected.
func (e *Engine) HandleSuccessfulPayment(tx *gorm.DB, sub *billing.Subscription, now time.Time) error {
	if sub.IsCancelled() {
		return billing.ErrInvalidState
	}

	next := nextBillingFrom(sub, now)
	sub.NextBillingDate = &next

	if sub.State == billing.StateActive {
		return tx.Save(sub).Error
	}

	sub.GraceDaysUsed = 0
	sub.GraceStartDate = nil
	return e.transition(tx, sub, billing.StateActive, "payment approved", "webhook")
}

// Cancel moves a subscription to CANCELLED. The next billing date is left
// untouched: the tutor keeps access until the period they already paid for
// runs out. Cancelling twice is an error the API maps to 400.
func (e *Engine) Cancel(subID uint, reason, changedBy string, now time.Time) error {
	return e.DB.Transaction(func(tx *gorm.DB) error {
		var sub billing.Subscription
		if err := tx.First(&sub, subID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return billing.ErrNotFound
			}
			return err
		}
		if sub.IsCancelled() {
			return billing.ErrAlreadyCancelled
		}
		sub.CancelledAt = &now
		if reason != "" {
			sub.CancelReason = &reason
		}
		return e.transition(tx, &sub, billing.StateCancelled, "cancelled: "+displayReason(reason), changedBy)
	})
}

func displayReason(reason string) string {
	if reason == "" {
		return "no reason given"
	}
	return reason
}

// nextBillingFrom advances the billing anchor by one month. When the previous
// date is in the future (early payment) it extends from that anchor rather
// than from now, so tutors never lose paid days.
func nextBillingFrom(sub *billing.Subscription, now time.Time) time.Time {
	anchor := now
	if sub.NextBillingDate != nil && sub.NextBillingDate.After(now) {
		anchor = *sub.NextBillingDate
	}
	return anchor.AddDate(0, 1, 0)
}
