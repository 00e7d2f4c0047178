package billing

// SubscriptionState is the lifecycle state of a recurring subscription.
type SubscriptionState string

const (
	StateActive     SubscriptionState = "ACTIVE"
	StateGrace      SubscriptionState = "GRACE"
	StateDelinquent SubscriptionState = "DELINQUENT"
	StateCancelled  SubscriptionState = "CANCELLED"
)

type PaymentState string

const (
	PaymentPending  PaymentState = "pending"
	PaymentApproved PaymentState = "approved"
	PaymentExpired  PaymentState = "expired"
)

type PaymentKind string

const (
	KindInitialEnrollment PaymentKind = "initial_enrollment"
	KindMonthlyRecurring  PaymentKind = "monthly_recurring"
)

type EnrollmentStatus string

const (
	EnrollmentPending EnrollmentStatus = "pending"
	EnrollmentActive  EnrollmentStatus = "active"
	EnrollmentExpired EnrollmentStatus = "expired"
)

type MonthlyStatus string

const (
	MonthlyPending MonthlyStatus = "pending"
	MonthlyPaid    MonthlyStatus = "paid"
	MonthlyExpired MonthlyStatus = "expired"
)

const (
	// GraceMaxDays bounds grace_days_used; exhausting it forces DELINQUENT.
	GraceMaxDays = 3

	// AlertWindowDays is how close the next billing date must be before the
	// PROXIMO_COBRO alert appears. It matches GraceMaxDays only by
	// coincidence; the two can diverge independently.
	AlertWindowDays = 3

	// ExpirationDays is the age after which pending work is foreclosed.
	ExpirationDays = 30
)
