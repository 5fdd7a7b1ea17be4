package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/hireflow/internal/domain"
)

// ApplicationHandler handles status transitions, history and resume links.
type ApplicationHandler struct {
	status  StatusChanger
	resumes ResumeLinker
}

// NewApplicationHandler creates a new application handler.
func NewApplicationHandler(status StatusChanger, resumes ResumeLinker) *ApplicationHandler {
	return &ApplicationHandler{status: status, resumes: resumes}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor"`
	Note   string `json:"note"`
}

// ChangeStatus handles POST /api/v1/applications/:id/status.
func (h *ApplicationHandler) ChangeStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = "api"
	}

	res, err := h.status.ChangeStatus(c.Request.Context(), c.Param("id"), domain.ApplicationStatus(req.Status), actor, req.Note)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  res,
	})
}

// History handles GET /api/v1/applications/:id/history.
func (h *ApplicationHandler) History(c *gin.Context) {
	entries, err := h.status.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": entries,
	})
}

// Resume handles GET /api/v1/applications/:id/resume.
func (h *ApplicationHandler) Resume(c *gin.Context) {
	link, err := h.resumes.ResumeURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"resume":  link,
	})
}
