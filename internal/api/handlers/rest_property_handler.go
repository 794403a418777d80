package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatelink/marketplace/internal/api/middleware"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/services"
)

// RestPropertyHandler handles property snapshots, saved properties and tour requests.
type RestPropertyHandler struct {
	properties services.IPropertyService
}

// NewRestPropertyHandler creates a new RestPropertyHandler.
func NewRestPropertyHandler(properties services.IPropertyService) *RestPropertyHandler {
	return &RestPropertyHandler{properties: properties}
}

// PropertyReady handles POST /v1/properties/ready
func (h *RestPropertyHandler) PropertyReady(c *gin.Context) {
	var data models.PropertyData
	if err := c.ShouldBindJSON(&data); err != nil {
		respondBadRequest(c, "mls_id and address are required")
		return
	}
	stored, err := h.properties.RecordPropertyData(c.Request.Context(), data)
	if err != nil {
		respondError(c, err, "record property")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": stored})
}

type savePropertyRequest struct {
	MLSID string `json:"mls_id" binding:"required"`
}

// SaveProperty handles POST /v1/properties/saved
func (h *RestPropertyHandler) SaveProperty(c *gin.Context) {
	var req savePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "mls_id is required")
		return
	}
	saved, err := h.properties.SaveProperty(c.Request.Context(), middleware.ActorFrom(c), req.MLSID)
	if err != nil {
		respondError(c, err, "save property")
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// ListSavedProperties handles GET /v1/properties/saved
func (h *RestPropertyHandler) ListSavedProperties(c *gin.Context) {
	saved, err := h.properties.ListSavedProperties(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err, "load saved properties")
		return
	}
	if saved == nil {
		saved = []models.SavedProperty{}
	}
	c.JSON(http.StatusOK, gin.H{"data": saved})
}

// RequestTour handles POST /v1/tours
func (h *RestPropertyHandler) RequestTour(c *gin.Context) {
	var input services.TourInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	tour, err := h.properties.RequestTour(c.Request.Context(), middleware.ActorFrom(c), input)
	if err != nil {
		respondError(c, err, "request tour")
		return
	}
	c.JSON(http.StatusCreated, tour)
}

// ListTours handles GET /v1/tours
func (h *RestPropertyHandler) ListTours(c *gin.Context) {
	tours, err := h.properties.ListTours(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err, "load tours")
		return
	}
	if tours == nil {
		tours = []models.TourRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"data": tours})
}
