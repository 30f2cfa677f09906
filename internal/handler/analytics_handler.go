package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/shortlink/internal/middleware"
	"github.com/user/shortlink/internal/models"
	"github.com/user/shortlink/internal/service"
)

// AnalyticsHandler serves the per-link analytics read API.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Summary handles GET /api/analytics/:id?page=N.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "Unauthorized",
			Code:  models.ErrCodeUnauthorized,
		})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid link id",
			Code:  models.ErrCodeInvalidInput,
		})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	summary, err := h.analytics.Summary(c.Request.Context(), id, ownerID, page)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Series handles GET /api/analytics/:id/series?interval=daily.
func (h *AnalyticsHandler) Series(c *gin.Context) {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "Unauthorized",
			Code:  models.ErrCodeUnauthorized,
		})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid link id",
			Code:  models.ErrCodeInvalidInput,
		})
		return
	}

	interval := c.DefaultQuery("interval", "daily")

	points, err := h.analytics.Series(c.Request.Context(), id, ownerID, interval)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"interval": interval, "points": points})
}
