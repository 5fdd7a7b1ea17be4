package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/repository"
	"github.com/timmy/hireflow/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// NotificationHandler exposes status-change triggers and the audit log.
type NotificationHandler struct {
	status StatusChanger
	log    NotificationLog
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(status StatusChanger, log NotificationLog) *NotificationHandler {
	return &NotificationHandler{status: status, log: log}
}

// StatusChange handles POST /api/v1/notifications/status-change. It is the
// hook called when a status was changed outside this service.
func (h *NotificationHandler) StatusChange(c *gin.Context) {
	var req service.StatusChange
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if req.ApplicationID == "" || req.NewStatus == "" {
		badRequest(c, "applicationId and newStatus are required")
		return
	}

	res, err := h.status.TriggerStatusChange(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"notified": res.Notified,
	})
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	f := repository.NotificationFilter{
		Type:   domain.NotificationType(c.Query("type")),
		Status: domain.NotificationStatus(c.Query("status")),
		Limit:  defaultListLimit,
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		f.Limit = min(n, maxListLimit)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "offset must be a non-negative integer")
			return
		}
		f.Offset = n
	}

	records, total, err := h.log.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": records,
		"total":         total,
	})
}

// Retry handles POST /api/v1/notifications/:id/retry.
func (h *NotificationHandler) Retry(c *gin.Context) {
	rec, err := h.log.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := errorStatus(err)
		body := gin.H{
			"success": false,
			"error":   err.Error(),
		}
		if rec != nil {
			body["notification"] = rec
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"notification": rec,
	})
}
