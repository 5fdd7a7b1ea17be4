package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MatchHandler exposes the job matching engine.
type MatchHandler struct {
	matcher Matcher
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(matcher Matcher) *MatchHandler {
	return &MatchHandler{matcher: matcher}
}

type matchRequest struct {
	JobRequirementID string   `json:"jobRequirementId" binding:"required"`
	ApplicationIDs   []string `json:"applicationIds"`
}

// Match handles POST /api/v1/match.
func (h *MatchHandler) Match(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	res, err := h.matcher.Match(c.Request.Context(), req.JobRequirementID, req.ApplicationIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":                    true,
		"jobRequirementId":           res.JobRequirementID,
		"threshold":                  res.Threshold,
		"matches":                    res.Matches,
		"failures":                   res.Failures,
		"highScoreCandidates":        res.HighScoreCandidates,
		"candidateNotificationsSent": res.CandidateNotificationsSent,
		"recruiterNotificationsSent": res.RecruiterNotificationsSent,
	})
}
