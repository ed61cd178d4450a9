package handlers

import (
	"net/http"

	"studypath/internal/models"
	"studypath/internal/observability"
	"studypath/internal/services"

	"github.com/gin-gonic/gin"
)

// AssessmentHandler serves the adaptive placement assessment endpoints
type AssessmentHandler struct {
	assessments *services.AssessmentService
	logger      *observability.Logger
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(assessments *services.AssessmentService, logger *observability.Logger) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments, logger: logger}
}

// Start creates a new assessment for a subject
func (h *AssessmentHandler) Start(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	subjectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessments.StartAssessment(c.Request.Context(), userID, subjectID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assessment": assessment})
}

// Get returns an assessment and its next question while in progress
func (h *AssessmentHandler) Get(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	assessmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	assessment, next, err := h.assessments.GetAssessment(c.Request.Context(), userID, assessmentID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	response := gin.H{"assessment": assessment}
	if next != nil {
		response["next_question"] = sanitizeQuestion(next)
	}
	c.JSON(http.StatusOK, response)
}

type submitAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     *int   `json:"answer" binding:"required"`
}

// SubmitAnswer grades one answer and returns the next question or the
// finalized assessment
func (h *AssessmentHandler) SubmitAnswer(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	assessmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid answer submission", err.Error())
		return
	}

	result, err := h.assessments.SubmitAnswer(c.Request.Context(), userID, assessmentID, req.QuestionID, *req.Answer)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	response := gin.H{
		"correct":        result.Correct,
		"explanation":    result.Explanation,
		"done":           result.Done,
		"answers_so_far": result.AnswersSoFar,
		"question_limit": result.QuestionLimit,
	}
	if result.Done {
		response["assessment"] = result.Assessment
	}
	if result.NextQuestion != nil {
		response["next_question"] = sanitizeQuestion(result.NextQuestion)
	}
	c.JSON(http.StatusOK, response)
}

// Finalize completes an assessment early
func (h *AssessmentHandler) Finalize(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	assessmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessments.FinalizeAssessment(c.Request.Context(), userID, assessmentID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessment": assessment})
}

// sanitizeQuestion strips grading fields before a question goes to the client
func sanitizeQuestion(q *models.AssessmentQuestion) gin.H {
	return gin.H{
		"id":       q.ID,
		"question": q.Question,
		"options":  q.Options,
		"level":    q.Level,
		"level_id": q.LevelID,
	}
}
