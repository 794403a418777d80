package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/cache"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/services"
)

// errorVariant tells the client to render the message as a destructive toast.
const errorVariant = "destructive"

var conflictErrors = []error{
	services.ErrAlreadyExists,
	services.ErrConsultationCompleted,
	services.ErrConsultationCancelled,
	services.ErrIssueReported,
	services.ErrInvalidTransition,
	cache.ErrLocked,
}

// classify maps a service error to an HTTP status and the message shown to the user.
// Unexpected errors get the generic retry message for action.
func classify(err error, action string) (int, string) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Message
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "You do not have permission to do this"
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict, target.Error()
		}
	}
	return http.StatusInternalServerError, fmt.Sprintf("Failed to %s. Please try again.", action)
}

// respondError writes err as a JSON error body. Server-side failures are logged.
func respondError(c *gin.Context, err error, action string) {
	status, message := classify(err, action)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		logging.GetLogger().WithError(err).WithFields(logrus.Fields{"path": c.FullPath(), "action": action}).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": message, "variant": errorVariant})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "variant": errorVariant})
}
