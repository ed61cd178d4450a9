package handlers

import (
	"net/http"

	"studypath/internal/observability"
	"studypath/internal/services"

	"github.com/gin-gonic/gin"
)

// ProgressHandler serves mastery tracking endpoints
type ProgressHandler struct {
	progress *services.ProgressService
	logger   *observability.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progress *services.ProgressService, logger *observability.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, logger: logger}
}

// GetLevelProgress returns per-subtopic mastery for a level plus the recent
// daily score history
func (h *ProgressHandler) GetLevelProgress(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	levelID, ok := pathID(c, "id")
	if !ok {
		return
	}

	progress, err := h.progress.GetLevelProgress(c.Request.Context(), userID, levelID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// GetTestEligibility reports the next test number and difficulty for a subtopic
func (h *ProgressHandler) GetTestEligibility(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	subtopicID, ok := pathID(c, "id")
	if !ok {
		return
	}

	eligibility, err := h.progress.GetTestEligibility(c.Request.Context(), userID, subtopicID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibility)
}

// GetQuestionStats returns lifetime and trailing-window answer statistics
func (h *ProgressHandler) GetQuestionStats(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	subtopicID, ok := pathID(c, "id")
	if !ok {
		return
	}

	stats, err := h.progress.GetQuestionStats(c.Request.Context(), userID, subtopicID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
