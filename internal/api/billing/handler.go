package billing

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domain "billing-app/internal/domain/billing"
	"billing-app/internal/lifecycle"
)

// Handler serves the tutor-facing billing endpoints. All routes sit behind
// the JWT middleware, which puts the authenticated tutor id on the context.
type Handler struct {
	DB     *gorm.DB
	Engine *lifecycle.Engine
	Log    *zap.Logger
}

// ListSubscriptions handles GET /billing/subscriptions.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	tutorID := c.GetUint("tutor_id")
	if tutorID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	subs, err := ListSubscriptions(h.DB, tutorID, time.Now().UTC())
	if err != nil {
		h.Log.Error("listing subscriptions failed", zap.Error(err), zap.Uint("tutor_id", tutorID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}
	c.JSON(http.StatusOK, subs)
}

// GetSubscription handles GET /billing/subscriptions/:id.
func (h *Handler) GetSubscription(c *gin.Context) {
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

	detail, err := GetSubscriptionDetail(h.DB, tutorID, subID, time.Now().UTC())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Subscription belongs to another tutor"})
	case err != nil:
		h.Log.Error("loading subscription failed", zap.Error(err), zap.Uint("subscription_id", subID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
	default:
		c.JSON(http.StatusOK, detail)
	}
}

// ListPayments handles GET /billing/payments.
func (h *Handler) ListPayments(c *gin.Context) {
	tutorID := c.GetUint("tutor_id")
	if tutorID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	payments, err := ListPayments(h.DB, tutorID)
	if err != nil {
		h.Log.Error("listing payments failed", zap.Error(err), zap.Uint("tutor_id", tutorID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

// CancelSubscription handles POST /billing/subscriptions/:id/cancel.
func (h *Handler) CancelSubscription(c *gin.Context) {
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

	var req cancelRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	// Ownership check before touching state.
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

	err = h.Engine.Cancel(subID, req.Reason, "tutor", time.Now().UTC())
	switch {
	case errors.Is(err, domain.ErrAlreadyCancelled):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription is already cancelled"})
	case err != nil:
		h.Log.Error("cancel failed", zap.Error(err), zap.Uint("subscription_id", subID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel subscription"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Subscription cancelled, access continues until the period end"})
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, strconv.ErrSyntax
	}
	return uint(id), nil
}
