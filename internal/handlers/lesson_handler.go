package handlers

import (
	"net/http"

	"studypath/internal/observability"
	"studypath/internal/services"

	"github.com/gin-gonic/gin"
)

// LessonHandler serves lesson content and completion endpoints
type LessonHandler struct {
	lessons *services.LessonService
	logger  *observability.Logger
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(lessons *services.LessonService, logger *observability.Logger) *LessonHandler {
	return &LessonHandler{lessons: lessons, logger: logger}
}

// GetLessons returns a subtopic's lessons, generating them on first access
func (h *LessonHandler) GetLessons(c *gin.Context) {
	subtopicID, ok := pathID(c, "id")
	if !ok {
		return
	}

	lessons, err := h.lessons.GenerateLessonsForSubtopic(c.Request.Context(), subtopicID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": lessons})
}

// Complete marks a lesson completed for the user
func (h *LessonHandler) Complete(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.lessons.CompleteLesson(c.Request.Context(), userID, lessonID); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "lesson completed"})
}

type goDeeperRequest struct {
	Question string `json:"question" binding:"required"`
}

// GoDeeper answers a follow-up question about a lesson
func (h *LessonHandler) GoDeeper(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req goDeeperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid question", err.Error())
		return
	}

	explanation, err := h.lessons.GoDeeper(c.Request.Context(), userID, lessonID, req.Question)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": explanation})
}
