package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatelink/marketplace/internal/api/middleware"
	"estatelink/marketplace/internal/services"
)

// RestConsultationHandler handles REST requests for consultation bookings.
type RestConsultationHandler struct {
	consultations services.IConsultationService
}

// NewRestConsultationHandler creates a new RestConsultationHandler.
func NewRestConsultationHandler(consultations services.IConsultationService) *RestConsultationHandler {
	return &RestConsultationHandler{consultations: consultations}
}

type scheduleRequest struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	MeetingLink string `json:"meeting_link"`
	AgentNotes  string `json:"agent_notes"`
}

type completeRequest struct {
	Notes string `json:"notes"`
}

type reportIssueRequest struct {
	Details string `json:"details"`
}

// Schedule handles POST /v1/offers/:id/consultations
func (h *RestConsultationHandler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	booking, err := h.consultations.Schedule(c.Request.Context(), middleware.ActorFrom(c), services.ScheduleInput{
		OfferIntentID: c.Param("id"),
		Date:          req.Date,
		Time:          req.Time,
		MeetingLink:   req.MeetingLink,
		AgentNotes:    req.AgentNotes,
	})
	if err != nil {
		respondError(c, err, "schedule consultation")
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// Latest handles GET /v1/offers/:id/consultations/latest
func (h *RestConsultationHandler) Latest(c *gin.Context) {
	view, err := h.consultations.Latest(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "load consultation")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reschedule handles POST /v1/consultations/:id/reschedule
func (h *RestConsultationHandler) Reschedule(c *gin.Context) {
	var input services.RescheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	booking, err := h.consultations.Reschedule(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err, "reschedule consultation")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// Complete handles POST /v1/consultations/:id/complete
func (h *RestConsultationHandler) Complete(c *gin.Context) {
	var req completeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	booking, err := h.consultations.Complete(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Notes)
	if err != nil {
		respondError(c, err, "complete consultation")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ReportIssue handles POST /v1/consultations/:id/report-issue
func (h *RestConsultationHandler) ReportIssue(c *gin.Context) {
	var req reportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	booking, err := h.consultations.ReportIssue(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Details)
	if err != nil {
		respondError(c, err, "report issue")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// Cancel handles POST /v1/consultations/:id/cancel
func (h *RestConsultationHandler) Cancel(c *gin.Context) {
	booking, err := h.consultations.Cancel(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "cancel consultation")
		return
	}
	c.JSON(http.StatusOK, booking)
}
