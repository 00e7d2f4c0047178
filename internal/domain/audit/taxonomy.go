package audit

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

type AlertType string

const (
	ChargebackReceived     AlertType = "CHARGEBACK_RECEIVED"
	AmountMismatch         AlertType = "AMOUNT_MISMATCH"
	SuspiciousIP           AlertType = "SUSPICIOUS_IP"
	RefundProcessed        AlertType = "REFUND_PROCESSED"
	DuplicatePayment       AlertType = "DUPLICATE_PAYMENT"
	WebhookProcessingError AlertType = "WEBHOOK_PROCESSING_ERROR"
	HighFailureRate        AlertType = "HIGH_FAILURE_RATE"
	ExpirationRunFailed    AlertType = "EXPIRATION_RUN_FAILED"
)

// DefaultSeverity maps each alert type to the severity it normally carries.
// Callers may override when the context warrants it.
func (t AlertType) DefaultSeverity() Severity {
	switch t {
	case ChargebackReceived, AmountMismatch, SuspiciousIP:
		return SeverityCritical
	case RefundProcessed, DuplicatePayment, WebhookProcessingError,
		HighFailureRate, ExpirationRunFailed:
		return SeverityWarning
	}
	return SeverityInfo
}

// Category groups alerts for dashboards: fraud signatures vs money movement
// vs operational noise.
func (t AlertType) Category() string {
	switch t {
	case ChargebackReceived, AmountMismatch, SuspiciousIP:
		return "fraud"
	case RefundProcessed, DuplicatePayment:
		return "payment"
	}
	return "operational"
}
