package billing

import (
	"math"
	"time"
)

// AlertType values are the user-facing alert identifiers, kept in Spanish
// because the frontend renders them verbatim.
type AlertType string

const (
	AlertEnGracia     AlertType = "EN_GRACIA"
	AlertMorosa       AlertType = "MOROSA"
	AlertProximoCobro AlertType = "PROXIMO_COBRO"
)

// Alert is the derived per-subscription warning shown to the tutor.
type Alert struct {
	Type          AlertType `json:"tipo"`
	DaysRemaining int       `json:"dias_restantes"`
}

// CalculateAlert derives the alert for a subscription, or nil when none
// applies. It is a pure function of its inputs: no clock, no I/O. The caller
// supplies `now` so the result is reproducible in tests.
func CalculateAlert(state SubscriptionState, graceDaysUsed int, graceStart, nextBilling *time.Time, now time.Time) *Alert {
	switch state {
	case StateGrace:
		remaining := GraceMaxDays - graceDaysUsed
		if remaining < 0 {
			remaining = 0
		}
		return &Alert{Type: AlertEnGracia, DaysRemaining: remaining}

	case StateDelinquent:
		return &Alert{Type: AlertMorosa, DaysRemaining: 0}

	case StateActive:
		if nextBilling == nil {
			return nil
		}
		until := nextBilling.Sub(now)
		if until <= 0 {
			return nil
		}
		// Partial days count as a full day: due in 36h means "in 2 days".
		days := int(math.Ceil(until.Hours() / 24))
		if days > AlertWindowDays {
			return nil
		}
		return &Alert{Type: AlertProximoCobro, DaysRemaining: days}
	}

	return nil
}
