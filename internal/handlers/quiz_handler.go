package handlers

import (
	"net/http"

	"studypath/internal/models"
	"studypath/internal/observability"
	"studypath/internal/services"

	"github.com/gin-gonic/gin"
)

// QuizHandler serves quiz generation and grading endpoints
type QuizHandler struct {
	quizzes *services.QuizService
	logger  *observability.Logger
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(quizzes *services.QuizService, logger *observability.Logger) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, logger: logger}
}

// Create generates a quiz for a subtopic, optionally narrowed to a custom topic
func (h *QuizHandler) Create(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)

	var req services.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid quiz request", err.Error())
		return
	}

	quiz, err := h.quizzes.CreateQuiz(c.Request.Context(), userID, req)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quiz": sanitizeQuiz(quiz)})
}

// Get returns a quiz without grading fields
func (h *QuizHandler) Get(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	quizID, ok := pathID(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizzes.GetQuiz(c.Request.Context(), userID, quizID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz": sanitizeQuiz(quiz)})
}

type submitAttemptRequest struct {
	Answers []int `json:"answers" binding:"required"`
}

// SubmitAttempt grades a quiz submission and returns the full questions with
// explanations alongside the score
func (h *QuizHandler) SubmitAttempt(c *gin.Context) {
	userID, _ := GetUserIDFromSession(c)
	quizID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid attempt submission", err.Error())
		return
	}

	result, err := h.quizzes.SubmitAttempt(c.Request.Context(), userID, quizID, req.Answers)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// sanitizeQuiz strips answers and explanations from an unanswered quiz
func sanitizeQuiz(quiz *models.Quiz) gin.H {
	questions := make([]gin.H, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions = append(questions, gin.H{
			"question": q.Question,
			"options":  q.Options,
		})
	}
	return gin.H{
		"id":          quiz.ID,
		"subtopic_id": quiz.SubtopicID,
		"topic":       quiz.Topic,
		"difficulty":  quiz.Difficulty,
		"questions":   questions,
		"created_at":  quiz.CreatedAt,
	}
}
