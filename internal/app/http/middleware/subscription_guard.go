package middleware

import (
	"net/http"
	"time"

	"billing-app/database"
	"billing-app/internal/domain/billing"

	"github.com/gin-gonic/gin"
)

// RequireActiveSubscription gates content routes on billing standing. GRACE
// still has access; DELINQUENT does not; CANCELLED keeps access until the
// already-paid period ends.
func RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		tutorID := c.GetUint("tutor_id")
		if tutorID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var subs []billing.Subscription
		if err := database.DB.Where("tutor_id = ?", tutorID).Find(&subs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check subscription"})
			return
		}

		now := time.Now().UTC()
		for i := range subs {
			if subs[i].HasAccess(now) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "No subscription with access"})
	}
}
