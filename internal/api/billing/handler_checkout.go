package billing

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domain "billing-app/internal/domain/billing"
	"billing-app/internal/domain/plans"
	"billing-app/internal/ledger"
)

type subscribeRequest struct {
	PlanID          uint    `json:"plan_id" binding:"required"`
	DiscountPercent float64 `json:"discount_percent"`
}

type enrollRequest struct {
	PlanID uint `json:"plan_id" binding:"required"`
}

// CheckoutHandler starts payment flows. Each checkout leaves a pending
// payment row whose external reference the processor echoes back in the
// webhook; pending rows that are never paid are foreclosed by the nightly
// expiration run.
type CheckoutHandler struct {
	DB     *gorm.DB
	Ledger *ledger.Ledger
	Log    *zap.Logger
}

// Subscribe handles POST /billing/subscriptions: opens a subscription and a
// pending initial payment. The subscription carries no next billing date
// until the initial payment approves, so it grants no access while unpaid.
func (h *CheckoutHandler) Subscribe(c *gin.Context) {
	tutorID := c.GetUint("tutor_id")
	if tutorID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "discount_percent out of range"})
		return
	}

	plan, err := activePlan(h.DB, req.PlanID, "monthly")
	if err != nil {
		respondPlanError(c, err)
		return
	}

	now := time.Now().UTC()
	finalPrice := plan.BasePrice * (1 - req.DiscountPercent/100)

	sub := domain.Subscription{
		TutorID:         tutorID,
		PlanID:          plan.ID,
		State:           domain.StateActive,
		FinalPrice:      finalPrice,
		DiscountPercent: req.DiscountPercent,
		StartDate:       now,
	}
	if err := h.DB.Create(&sub).Error; err != nil {
		h.Log.Error("creating subscription failed", zap.Error(err), zap.Uint("tutor_id", tutorID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	if _, err := h.Ledger.RecordPayment(ledger.RecordPaymentInput{
		SubscriptionID: &sub.ID,
		Kind:           domain.KindInitialEnrollment,
		Amount:         finalPrice,
		State:          domain.PaymentPending,
	}, now); err != nil {
		h.Log.Error("creating initial payment failed", zap.Error(err), zap.Uint("subscription_id", sub.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"subscription_id":    sub.ID,
		"external_reference": fmt.Sprintf("subscription-%d", sub.ID),
		"amount":             finalPrice,
	})
}

// Enroll handles POST /billing/enrollments: a pending one-off enrollment
// activated when its payment is approved.
func (h *CheckoutHandler) Enroll(c *gin.Context) {
	tutorID := c.GetUint("tutor_id")
	if tutorID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	plan, err := activePlan(h.DB, req.PlanID, "one_off")
	if err != nil {
		respondPlanError(c, err)
		return
	}

	now := time.Now().UTC()
	enr := domain.Enrollment{TutorID: tutorID, PlanID: plan.ID, Status: domain.EnrollmentPending}
	if err := h.DB.Create(&enr).Error; err != nil {
		h.Log.Error("creating enrollment failed", zap.Error(err), zap.Uint("tutor_id", tutorID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create enrollment"})
		return
	}

	if _, err := h.Ledger.RecordPayment(ledger.RecordPaymentInput{
		EnrollmentID: &enr.ID,
		Kind:         domain.KindInitialEnrollment,
		Amount:       plan.BasePrice,
		State:        domain.PaymentPending,
	}, now); err != nil {
		h.Log.Error("creating enrollment payment failed", zap.Error(err), zap.Uint("enrollment_id", enr.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"enrollment_id":      enr.ID,
		"external_reference": fmt.Sprintf("enrollment-%d", enr.ID),
		"amount":             plan.BasePrice,
	})
}

// MonthlyCheckout handles POST /billing/subscriptions/:id/monthly-checkout:
// opens the current period's monthly enrollment plus its pending payment.
// Sits behind the subscription guard, so only tutors with access reach it.
func (h *CheckoutHandler) MonthlyCheckout(c *gin.Context) {
	tutorID := c.GetUint("tutor_id")
	if tutorID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	subID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription id"})
		return
	}

	var sub domain.Subscription
	if err := h.DB.First(&sub, subID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	if sub.TutorID != tutorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Subscription belongs to another tutor"})
		return
	}
	if sub.IsCancelled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription is cancelled"})
		return
	}

	now := time.Now().UTC()
	period := now.Format("2006-01")

	// One open period per subscription.
	var existing int64
	h.DB.Model(&domain.MonthlyEnrollment{}).
		Where("subscription_id = ? AND period = ?", sub.ID, period).
		Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Period already has a checkout"})
		return
	}

	monthly := domain.MonthlyEnrollment{
		SubscriptionID: sub.ID,
		Period:         period,
		Amount:         sub.FinalPrice,
		Status:         domain.MonthlyPending,
	}
	if err := h.DB.Create(&monthly).Error; err != nil {
		h.Log.Error("creating monthly enrollment failed", zap.Error(err), zap.Uint("subscription_id", sub.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create monthly enrollment"})
		return
	}

	if _, err := h.Ledger.RecordPayment(ledger.RecordPaymentInput{
		SubscriptionID: &sub.ID,
		Kind:           domain.KindMonthlyRecurring,
		Amount:         sub.FinalPrice,
		State:          domain.PaymentPending,
	}, now); err != nil {
		h.Log.Error("creating monthly payment failed", zap.Error(err), zap.Uint("subscription_id", sub.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"monthly_enrollment_id": monthly.ID,
		"period":                period,
		"external_reference":    fmt.Sprintf("monthly-%d", sub.ID),
		"amount":                sub.FinalPrice,
	})
}

func activePlan(db *gorm.DB, planID uint, interval string) (*plans.Plan, error) {
	var plan plans.Plan
	if err := db.First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if !plan.Active || plan.Interval != interval {
		return nil, domain.ErrInvalidState
	}
	return &plan, nil
}

func respondPlanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan is not available for this checkout"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plan"})
	}
}
