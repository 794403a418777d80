package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"estatelink/marketplace/internal/api/middleware"
	"estatelink/marketplace/internal/auth"
	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/services"
)

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler dispatches the consultation actions of the booking widget.
type JsonApiHandler struct {
	cfg           *config.Config
	profiles      services.IProfileService
	offers        services.IOfferIntentService
	consultations services.IConsultationService
	methods       map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
func NewJsonApiHandler(
	cfg *config.Config,
	profiles services.IProfileService,
	offers services.IOfferIntentService,
	consultations services.IConsultationService,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:           cfg,
		profiles:      profiles,
		offers:        offers,
		consultations: consultations,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                    h.ping,
		"scheduleConsultation":    h.scheduleConsultation,
		"rescheduleConsultation":  h.rescheduleConsultation,
		"completeConsultation":    h.completeConsultation,
		"reportConsultationIssue": h.reportConsultationIssue,
		"cancelConsultation":      h.cancelConsultation,
		"getOfferStatus":          h.getOfferStatus,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	if authErr := h.checkAuthForMethod(c, req.Method); authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

// checkAuthForMethod validates the bearer token for non-public methods and stores the
// caller in the gin context the same way the REST auth middleware does.
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	if !h.methodRequiresAuth(method) {
		return nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return NewApiError("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return NewApiError("Authorization header format must be Bearer {token}")
	}
	claims, err := auth.ValidateIdentityToken(parts[1], h.cfg.JwtSecret)
	if err != nil {
		logging.GetLogger().WithError(err).WithField("method", method).Debug("Token validation failed")
		return NewApiError(fmt.Sprintf("Invalid or expired token: %v", err))
	}

	profile, err := h.profiles.EnsureProfile(c.Request.Context(), claims)
	if err != nil {
		logging.GetLogger().WithError(err).WithField("method", method).Error("Failed to ensure profile")
		return NewApiError("Failed to load profile. Please try again.")
	}

	c.Set(middleware.ContextKeyProfileID, profile.ID)
	c.Set(middleware.ContextKeyRole, claims.UserType)
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	case "ping":
		return false
	default:
		return true
	}
}

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	resp := JsonApiResponse{Success: true, Data: data}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	resp := JsonApiResponse{Success: false, Error: message}
	c.JSON(http.StatusOK, resp)
}

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// serviceError converts a service failure into the message shown to the caller.
func serviceError(c *gin.Context, err error, action string) *ApiError {
	status, message := classify(err, action)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		logging.GetLogger().WithError(err).WithField("action", action).Error("JSON API call failed")
	}
	return NewApiError(message)
}

// parseRequiredSingleArgFromArray takes the raw JSON message for 'arguments',
// expects it to be a JSON array with at least one element,
// and unmarshals that first element into targetVarPtr.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}
	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}
	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}
	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

type bookingArgs struct {
	BookingID string `json:"booking_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Notes     string `json:"notes"`
	Details   string `json:"details"`
}

func (h *JsonApiHandler) parseBookingArgs(args json.RawMessage) (*bookingArgs, *ApiError) {
	var a bookingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &a); apiErr != nil {
		return nil, apiErr
	}
	if strings.TrimSpace(a.BookingID) == "" {
		return nil, NewApiError("booking_id is required")
	}
	return &a, nil
}

func (h *JsonApiHandler) scheduleConsultation(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var input services.ScheduleInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &input); apiErr != nil {
		return nil, apiErr
	}
	booking, err := h.consultations.Schedule(c.Request.Context(), middleware.ActorFrom(c), input)
	if err != nil {
		return nil, serviceError(c, err, "schedule consultation")
	}
	return booking, nil
}

func (h *JsonApiHandler) rescheduleConsultation(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	a, apiErr := h.parseBookingArgs(args)
	if apiErr != nil {
		return nil, apiErr
	}
	booking, err := h.consultations.Reschedule(c.Request.Context(), middleware.ActorFrom(c), a.BookingID, services.RescheduleInput{Date: a.Date, Time: a.Time})
	if err != nil {
		return nil, serviceError(c, err, "reschedule consultation")
	}
	return booking, nil
}

func (h *JsonApiHandler) completeConsultation(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	a, apiErr := h.parseBookingArgs(args)
	if apiErr != nil {
		return nil, apiErr
	}
	booking, err := h.consultations.Complete(c.Request.Context(), middleware.ActorFrom(c), a.BookingID, a.Notes)
	if err != nil {
		return nil, serviceError(c, err, "complete consultation")
	}
	return booking, nil
}

func (h *JsonApiHandler) reportConsultationIssue(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	a, apiErr := h.parseBookingArgs(args)
	if apiErr != nil {
		return nil, apiErr
	}
	booking, err := h.consultations.ReportIssue(c.Request.Context(), middleware.ActorFrom(c), a.BookingID, a.Details)
	if err != nil {
		return nil, serviceError(c, err, "report issue")
	}
	return booking, nil
}

func (h *JsonApiHandler) cancelConsultation(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	a, apiErr := h.parseBookingArgs(args)
	if apiErr != nil {
		return nil, apiErr
	}
	booking, err := h.consultations.Cancel(c.Request.Context(), middleware.ActorFrom(c), a.BookingID)
	if err != nil {
		return nil, serviceError(c, err, "cancel consultation")
	}
	return booking, nil
}

func (h *JsonApiHandler) getOfferStatus(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var a struct {
		OfferIntentID string `json:"offer_intent_id"`
	}
	if apiErr := h.parseRequiredSingleArgFromArray(args, &a); apiErr != nil {
		return nil, apiErr
	}
	view, err := h.offers.GetOfferStatus(c.Request.Context(), middleware.ActorFrom(c), a.OfferIntentID)
	if err != nil {
		return nil, serviceError(c, err, "load offer status")
	}
	return view, nil
}
