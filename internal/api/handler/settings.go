package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/hireflow/internal/service"
)

// SettingsHandler reads and updates the pipeline settings.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Get handles GET /api/v1/settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.store.Load(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Update handles PUT /api/v1/settings. The threshold is clamped to 0..100.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req service.RunSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	s, err := h.store.Save(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
