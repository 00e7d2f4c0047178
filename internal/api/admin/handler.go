package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"billing-app/internal/alerts"
	"billing-app/internal/domain/audit"
	"billing-app/internal/domain/billing"
	"billing-app/internal/expiry"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler serves the back-office endpoints. Routes sit behind the JWT
// middleware plus the admin-role check.
type Handler struct {
	DB      *gorm.DB
	Expiry  *expiry.Service
	Emitter *alerts.Emitter
	Log     *zap.Logger
}

type subscriptionRow struct {
	ID              uint       `json:"id"`
	TutorID         uint       `json:"tutor_id"`
	TutorEmail      string     `json:"tutor_email"`
	PlanName        string     `json:"plan_name"`
	State           string     `json:"state"`
	FinalPrice      float64    `json:"final_price"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
	GraceDaysUsed   int        `json:"grace_days_used"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListSubscriptions handles GET /admin/subscriptions with pagination and
// optional ?state= and ?plan_id= filters.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}

	// Fresh chain per finisher; gorm chains are single-use.
	base := func() *gorm.DB {
		q := h.DB.Model(&billing.Subscription{}).
			Joins("JOIN tutors ON tutors.id = subscriptions.tutor_id").
			Joins("JOIN plans ON plans.id = subscriptions.plan_id")
		if state := c.Query("state"); state != "" {
			q = q.Where("subscriptions.state = ?", state)
		}
		if planID := c.Query("plan_id"); planID != "" {
			q = q.Where("subscriptions.plan_id = ?", planID)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		h.Log.Error("counting subscriptions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	var items []subscriptionRow
	err := base().Select(
		"subscriptions.id, subscriptions.tutor_id, tutors.email AS tutor_email, " +
			"plans.name AS plan_name, subscriptions.state, subscriptions.final_price, " +
			"subscriptions.next_billing_date, subscriptions.grace_days_used, subscriptions.created_at").
		Order("subscriptions.created_at DESC, subscriptions.id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&items).Error
	if err != nil {
		h.Log.Error("listing subscriptions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"page":      page,
		"page_size": size,
		"total":     total,
	})
}

// GetMetrics handles GET /admin/metrics.
func (h *Handler) GetMetrics(c *gin.Context) {
	metrics, err := ComputeMetrics(h.DB, time.Now().UTC())
	if err != nil {
		h.Log.Error("computing metrics failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute metrics"})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// ListAlerts handles GET /admin/alerts with ?severity=, ?type=, ?since=,
// ?limit= filters.
func (h *Handler) ListAlerts(c *gin.Context) {
	filters := alerts.Filters{
		Severity: audit.Severity(c.Query("severity")),
		Type:     audit.AlertType(c.Query("type")),
	}
	if since := c.Query("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filters.Since = ts
	}
	if limit := c.Query("limit"); limit != "" {
		filters.Limit, _ = strconv.Atoi(limit)
	}

	rows, err := h.Emitter.ListRecent(filters)
	if err != nil {
		h.Log.Error("listing alerts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load alerts"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// RunExpiration handles POST /admin/expirations/run: the synchronous
// administrative entry to the same logic the nightly cron triggers.
func (h *Handler) RunExpiration(c *gin.Context) {
	result, err := h.Expiry.ExpireStale(time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Expiration run failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
