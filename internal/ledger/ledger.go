package ledger

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"billing-app/internal/domain/billing"
	"billing-app/internal/lifecycle"
)

// Ledger is the single write path for payment rows. Replay protection lives
// in the database, not in application memory: the unique index on the
// external transaction id rejects redelivered webhooks even across concurrent
// connections and process restarts.
type Ledger struct {
	DB     *gorm.DB
	Engine *lifecycle.Engine
	Log    *zap.Logger
}

func New(db *gorm.DB, engine *lifecycle.Engine, log *zap.Logger) *Ledger {
	return &Ledger{DB: db, Engine: engine, Log: log}
}

// RecordPaymentInput describes one settled or pending payment to record.
type RecordPaymentInput struct {
	SubscriptionID        *uint
	EnrollmentID          *uint
	Kind                  billing.PaymentKind
	Amount                float64
	State                 billing.PaymentState
	ExternalTransactionID *string
	ExternalPreferenceID  *string
}

// RecordPayment records the payment and applies its side effects in one
// transaction. A payment row lives through checkout → settlement: an
// approved notification settles the pending row its checkout opened (sets
// the external id, state and payment date in place), so paid work never
// leaves a pending row behind for the scheduler to foreclose. A new row is
// inserted only when no open pending row exists for the reference, e.g. a
// retry charge the processor initiated on its own.
//
// Either way the unique index stays the idempotency gate: a second delivery
// of the same external transaction id returns billing.ErrDuplicatePayment
// with nothing written.
func (l *Ledger) RecordPayment(in RecordPaymentInput, now time.Time) (*billing.Payment, error) {
	var payment billing.Payment

	err := l.DB.Transaction(func(tx *gorm.DB) error {
		settled, err := l.settlePending(tx, in, now)
		if err != nil {
			return err
		}
		if settled != nil {
			payment = *settled
		} else {
			payment = billing.Payment{
				SubscriptionID:        in.SubscriptionID,
				EnrollmentID:          in.EnrollmentID,
				Kind:                  in.Kind,
				Amount:                in.Amount,
				State:                 in.State,
				ExternalTransactionID: in.ExternalTransactionID,
				ExternalPreferenceID:  in.ExternalPreferenceID,
			}
			if in.State == billing.PaymentApproved {
				payment.PaymentDate = &now
			}
			if err := tx.Create(&payment).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return billing.ErrDuplicatePayment
				}
				return err
			}
		}
		if payment.State != billing.PaymentApproved {
			return nil
		}
		return l.applyApproved(tx, &payment, now)
	})
	if err != nil {
		return nil, err
	}

	l.Log.Info("payment recorded",
		zap.Uint("payment_id", payment.ID),
		zap.String("kind", string(payment.Kind)),
		zap.String("state", string(payment.State)),
		zap.Float64("amount", payment.Amount))
	return &payment, nil
}

// settlePending flips the checkout's open pending row to approved inside tx.
// Returns nil when the input is not an approval or no pending row matches.
func (l *Ledger) settlePending(tx *gorm.DB, in RecordPaymentInput, now time.Time) (*billing.Payment, error) {
	if in.State != billing.PaymentApproved {
		return nil, nil
	}

	q := tx.Where("state = ?", billing.PaymentPending)
	switch {
	case in.SubscriptionID != nil:
		q = q.Where("subscription_id = ? AND kind = ?", *in.SubscriptionID, in.Kind)
	case in.EnrollmentID != nil:
		q = q.Where("enrollment_id = ?", *in.EnrollmentID)
	default:
		return nil, nil
	}

	var pending billing.Payment
	if err := q.Order("created_at ASC, id ASC").First(&pending).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	pending.State = billing.PaymentApproved
	pending.Amount = in.Amount
	pending.ExternalTransactionID = in.ExternalTransactionID
	if in.ExternalPreferenceID != nil {
		pending.ExternalPreferenceID = in.ExternalPreferenceID
	}
	pending.PaymentDate = &now
	if err := tx.Save(&pending).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, billing.ErrDuplicatePayment
		}
		return nil, err
	}
	return &pending, nil
}

func (l *Ledger) applyApproved(tx *gorm.DB, payment *billing.Payment, now time.Time) error {
	if payment.EnrollmentID != nil {
		result := tx.Model(&billing.Enrollment{}).
			Where("id = ? AND status = ?", *payment.EnrollmentID, billing.EnrollmentPending).
			Update("status", billing.EnrollmentActive)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return billing.ErrNotFound
		}
		return nil
	}

	if payment.SubscriptionID == nil {
		return billing.ErrInvalidState
	}

	var sub billing.Subscription
	if err := tx.First(&sub, *payment.SubscriptionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.ErrNotFound
		}
		return err
	}
	if err := l.Engine.HandleSuccessfulPayment(tx, &sub, now); err != nil {
		return err
	}

	if payment.Kind == billing.KindMonthlyRecurring {
		// Oldest open period first: processor retries can drift a settlement
		// past the month boundary, so the period is matched by what is
		// pending, never recomputed from the settlement clock. Best effort:
		// subscriptions predating monthly tracking have no row.
		var monthly billing.MonthlyEnrollment
		err := tx.Where("subscription_id = ? AND status = ?", sub.ID, billing.MonthlyPending).
			Order("period ASC, id ASC").
			First(&monthly).Error
		switch {
		case err == nil:
			if err := tx.Model(&monthly).Update("status", billing.MonthlyPaid).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}
	}
	return nil
}
