package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"estatelink/marketplace/internal/api/middleware"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/services"
)

// RestDashboardHandler serves the role dashboards.
type RestDashboardHandler struct {
	dashboards services.IDashboardService
}

// NewRestDashboardHandler creates a new RestDashboardHandler.
func NewRestDashboardHandler(dashboards services.IDashboardService) *RestDashboardHandler {
	return &RestDashboardHandler{dashboards: dashboards}
}

type dashboardFunc func(ctx context.Context, actor models.Actor) (*services.Dashboard, error)

func (h *RestDashboardHandler) serve(c *gin.Context, build dashboardFunc) {
	dashboard, err := build(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err, "load dashboard")
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// Buyer handles GET /v1/dashboard/buyer
func (h *RestDashboardHandler) Buyer(c *gin.Context) { h.serve(c, h.dashboards.BuyerDashboard) }

// Agent handles GET /v1/dashboard/agent
func (h *RestDashboardHandler) Agent(c *gin.Context) { h.serve(c, h.dashboards.AgentDashboard) }

// Admin handles GET /v1/dashboard/admin
func (h *RestDashboardHandler) Admin(c *gin.Context) { h.serve(c, h.dashboards.AdminDashboard) }
