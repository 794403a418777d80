package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatelink/marketplace/internal/api/middleware"
	"estatelink/marketplace/internal/services"
)

// RestProfileHandler serves the caller's profile and ingests their analytics.
type RestProfileHandler struct {
	profiles  services.IProfileService
	analytics services.IAnalyticsService
}

// NewRestProfileHandler creates a new RestProfileHandler.
func NewRestProfileHandler(profiles services.IProfileService, analytics services.IAnalyticsService) *RestProfileHandler {
	return &RestProfileHandler{profiles: profiles, analytics: analytics}
}

// GetMe handles GET /v1/me
func (h *RestProfileHandler) GetMe(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Request.Context(), middleware.ActorFrom(c).ProfileID)
	if err != nil {
		respondError(c, err, "load profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// IngestAnalytics handles POST /v1/analytics
func (h *RestProfileHandler) IngestAnalytics(c *gin.Context) {
	var batch services.AnalyticsBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		respondBadRequest(c, "Invalid analytics batch")
		return
	}
	written, err := h.analytics.Ingest(c.Request.Context(), middleware.ActorFrom(c).ProfileID, batch)
	if err != nil {
		respondError(c, err, "record analytics")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"written": written})
}
