package paymentwebhook

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"billing-app/internal/alerts"
	"billing-app/internal/domain/audit"
	"billing-app/internal/domain/billing"
	"billing-app/internal/ledger"
	"billing-app/internal/lifecycle"
)

// amountTolerance absorbs processor-side rounding of decimal amounts.
const amountTolerance = 0.01

// Notification is the payment processor's webhook payload after decoding.
type Notification struct {
	ExternalTransactionID string  `json:"externalTransactionId" binding:"required"`
	Amount                float64 `json:"amount"`
	Status                string  `json:"status" binding:"required"`
	ExternalReference     string  `json:"externalReference" binding:"required"`
}

// outcome tells the HTTP layer what to answer. The processor retries on
// anything but 2xx, so retryable maps to 500 and everything else to 200.
type outcome struct {
	retryable bool
	detail    string
}

// Processor turns processor notifications into ledger writes and state
// transitions. It holds no per-request state and is safe for concurrent use.
type Processor struct {
	DB      *gorm.DB
	Ledger  *ledger.Ledger
	Engine  *lifecycle.Engine
	Emitter *alerts.Emitter
	Log     *zap.Logger
}

// reference is the parsed externalReference: what the money is for.
type reference struct {
	kind string // subscription | enrollment | monthly
	id   uint
}

func parseReference(raw string) (reference, error) {
	kind, idPart, ok := strings.Cut(raw, "-")
	if !ok {
		return reference{}, fmt.Errorf("malformed external reference %q", raw)
	}
	switch kind {
	case "subscription", "enrollment", "monthly":
	default:
		return reference{}, fmt.Errorf("unknown reference kind %q", kind)
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil || id == 0 {
		return reference{}, fmt.Errorf("bad reference id in %q", raw)
	}
	return reference{kind: kind, id: uint(id)}, nil
}

func (p *Processor) process(n Notification, now time.Time) outcome {
	ref, err := parseReference(n.ExternalReference)
	if err != nil {
		p.Emitter.Raise(audit.WebhookProcessingError, err.Error(), map[string]string{
			"transaction_id": n.ExternalTransactionID,
		})
		// A malformed reference will never parse on retry.
		return outcome{detail: "unprocessable reference"}
	}

	switch n.Status {
	case "approved":
		return p.handleApproved(n, ref, now)
	case "rejected", "cancelled":
		return p.handleFailed(n, ref, now)
	case "charged_back":
		p.Emitter.Raise(audit.ChargebackReceived,
			fmt.Sprintf("chargeback on transaction %s for %s", n.ExternalTransactionID, n.ExternalReference),
			metaFor(n, ref))
		return outcome{detail: "chargeback recorded"}
	case "refunded":
		p.Emitter.Raise(audit.RefundProcessed,
			fmt.Sprintf("refund on transaction %s for %s", n.ExternalTransactionID, n.ExternalReference),
			metaFor(n, ref))
		return outcome{detail: "refund recorded"}
	default:
		p.Emitter.Raise(audit.WebhookProcessingError,
			fmt.Sprintf("unexpected notification status %q on transaction %s", n.Status, n.ExternalTransactionID),
			metaFor(n, ref))
		return outcome{retryable: true, detail: "unexpected status"}
	}
}

func (p *Processor) handleApproved(n Notification, ref reference, now time.Time) outcome {
	in := ledger.RecordPaymentInput{
		Amount:                n.Amount,
		State:                 billing.PaymentApproved,
		ExternalTransactionID: &n.ExternalTransactionID,
	}

	var expected float64
	switch ref.kind {
	case "subscription", "monthly":
		var sub billing.Subscription
		if err := p.DB.First(&sub, ref.id).Error; err != nil {
			return p.lookupFailure(n, ref, err)
		}
		expected = sub.FinalPrice
		in.SubscriptionID = &sub.ID
		in.Kind = billing.KindMonthlyRecurring
		if ref.kind == "subscription" {
			in.Kind = billing.KindInitialEnrollment
		}
	case "enrollment":
		var enr billing.Enrollment
		if err := p.DB.Preload("Plan").First(&enr, ref.id).Error; err != nil {
			return p.lookupFailure(n, ref, err)
		}
		expected = enr.Plan.BasePrice
		in.EnrollmentID = &enr.ID
		in.Kind = billing.KindInitialEnrollment
	}

	if math.Abs(n.Amount-expected) > amountTolerance {
		meta := metaFor(n, ref)
		meta["expected_amount"] = strconv.FormatFloat(expected, 'f', 2, 64)
		p.Emitter.Raise(audit.AmountMismatch,
			fmt.Sprintf("transaction %s paid %.2f but %s expects %.2f",
				n.ExternalTransactionID, n.Amount, n.ExternalReference, expected),
			meta)
		// Acknowledged but NOT credited: a human resolves the discrepancy.
		return outcome{detail: "amount mismatch, held for review"}
	}

	if _, err := p.Ledger.RecordPayment(in, now); err != nil {
		if errors.Is(err, billing.ErrDuplicatePayment) {
			p.Emitter.Raise(audit.DuplicatePayment,
				fmt.Sprintf("transaction %s delivered again", n.ExternalTransactionID),
				metaFor(n, ref))
			return outcome{detail: "already processed"}
		}
		p.Emitter.Raise(audit.WebhookProcessingError,
			fmt.Sprintf("recording transaction %s failed: %v", n.ExternalTransactionID, err),
			metaFor(n, ref))
		return outcome{retryable: true, detail: "recording failed"}
	}
	return outcome{detail: "payment recorded"}
}

func (p *Processor) handleFailed(n Notification, ref reference, now time.Time) outcome {
	if ref.kind == "enrollment" {
		// Standalone enrollments just stay pending until the scheduler
		// forecloses them.
		return outcome{detail: "failure acknowledged"}
	}
	if err := p.Engine.RecordFailedBilling(ref.id, now); err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return p.lookupFailure(n, ref, err)
		}
		p.Emitter.Raise(audit.WebhookProcessingError,
			fmt.Sprintf("handling failed billing for %s: %v", n.ExternalReference, err),
			metaFor(n, ref))
		return outcome{retryable: true, detail: "state transition failed"}
	}
	return outcome{detail: "failure recorded"}
}

func (p *Processor) lookupFailure(n Notification, ref reference, err error) outcome {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, billing.ErrNotFound) {
		p.Emitter.Raise(audit.WebhookProcessingError,
			fmt.Sprintf("notification %s references missing %s %d", n.ExternalTransactionID, ref.kind, ref.id),
			metaFor(n, ref))
		// Retrying will not make the row appear.
		return outcome{detail: "unknown reference"}
	}
	p.Log.Error("webhook lookup failed", zap.Error(err), zap.String("reference", n.ExternalReference))
	return outcome{retryable: true, detail: "lookup failed"}
}

func metaFor(n Notification, ref reference) map[string]string {
	return map[string]string{
		"entity_type":    ref.kind,
		"entity_id":      strconv.FormatUint(uint64(ref.id), 10),
		"transaction_id": n.ExternalTransactionID,
		"amount":         strconv.FormatFloat(n.Amount, 'f', 2, 64),
	}
}
