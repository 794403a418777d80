package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatelink/marketplace/internal/api/middleware"
	"estatelink/marketplace/internal/services"
)

// RestOfferHandler handles REST requests for offer intents.
type RestOfferHandler struct {
	offers services.IOfferIntentService
}

// NewRestOfferHandler creates a new RestOfferHandler.
func NewRestOfferHandler(offers services.IOfferIntentService) *RestOfferHandler {
	return &RestOfferHandler{offers: offers}
}

// CreateOffer handles POST /v1/offers
func (h *RestOfferHandler) CreateOffer(c *gin.Context) {
	var input services.CreateOfferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	intent, err := h.offers.CreateOfferIntent(c.Request.Context(), middleware.ActorFrom(c), input)
	if err != nil {
		respondError(c, err, "start offer")
		return
	}
	c.JSON(http.StatusCreated, intent)
}

// GetOffer handles GET /v1/offers/:id
func (h *RestOfferHandler) GetOffer(c *gin.Context) {
	intent, err := h.offers.GetOfferIntent(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "load offer")
		return
	}
	c.JSON(http.StatusOK, intent)
}

// GetOfferStatus handles GET /v1/offers/:id/status
func (h *RestOfferHandler) GetOfferStatus(c *gin.Context) {
	view, err := h.offers.GetOfferStatus(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "load offer status")
		return
	}
	c.JSON(http.StatusOK, view)
}

type assignAgentRequest struct {
	AgentID string `json:"agent_id"`
}

// AssignAgent handles POST /v1/offers/:id/assign. Without agent_id the caller assigns themselves.
func (h *RestOfferHandler) AssignAgent(c *gin.Context) {
	var req assignAgentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	intent, err := h.offers.AssignAgent(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.AgentID)
	if err != nil {
		respondError(c, err, "assign agent")
		return
	}
	c.JSON(http.StatusOK, intent)
}

// MarkQuestionnaireCompleted handles POST /v1/offers/:id/questionnaire-complete
func (h *RestOfferHandler) MarkQuestionnaireCompleted(c *gin.Context) {
	intent, err := h.offers.MarkQuestionnaireCompleted(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "save questionnaire")
		return
	}
	c.JSON(http.StatusOK, intent)
}

// MarkAgentSummaryGenerated handles POST /v1/offers/:id/summary
func (h *RestOfferHandler) MarkAgentSummaryGenerated(c *gin.Context) {
	intent, err := h.offers.MarkAgentSummaryGenerated(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "generate summary")
		return
	}
	c.JSON(http.StatusOK, intent)
}
