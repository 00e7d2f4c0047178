package plans

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"billing-app/database"
	"billing-app/internal/domain/plans"
)

// ListPlans handles GET /plans: the public catalog tutors choose from.
func ListPlans(c *gin.Context) {
	var active []plans.Plan
	if err := database.DB.Where("active = ?", true).Order("base_price ASC").Find(&active).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}
	c.JSON(http.StatusOK, active)
}
