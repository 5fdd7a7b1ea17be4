package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/hireflow/internal/api/middleware"
	"github.com/timmy/hireflow/internal/prompts"
	"github.com/timmy/hireflow/internal/service"
)

// errorStatus maps pipeline errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrApplicationNotFound),
		errors.Is(err, service.ErrRequirementNotFound),
		errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, service.ErrResumeNotStored):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAnalysisInProgress),
		errors.Is(err, service.ErrRetryLimitReached):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyResume),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrNotRetryable),
		errors.Is(err, prompts.ErrUnknownProfile):
		return http.StatusBadRequest
	case service.IsRateLimited(err):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrParseFailure):
		return http.StatusBadGateway
	}
	switch service.FailedStage(err) {
	case service.StageScore, service.StageNotify:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail writes {success:false, error, retryable} and logs server-side failures.
func fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request failed")
	}
	c.JSON(status, gin.H{
		"success":   false,
		"error":     err.Error(),
		"retryable": service.IsRateLimited(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}
