package handlers

import (
	"net/http"
	"strconv"

	"studypath/internal/observability"
	"studypath/internal/services"
	contextutils "studypath/internal/utils"

	"github.com/gin-gonic/gin"
)

// SubjectHandler serves the subject, level and subtopic catalog
type SubjectHandler struct {
	subjects *services.SubjectService
	logger   *observability.Logger
}

// NewSubjectHandler creates a new subject handler
func NewSubjectHandler(subjects *services.SubjectService, logger *observability.Logger) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, logger: logger}
}

// ListSubjects returns all subjects
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.subjects.ListSubjects(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

// GetSubject returns one subject with its levels and, when placed, the
// user's current level
func (h *SubjectHandler) GetSubject(c *gin.Context) {
	subjectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	subject, err := h.subjects.GetSubject(c.Request.Context(), subjectID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	levels, err := h.subjects.GetLevels(c.Request.Context(), subjectID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	response := gin.H{"subject": subject, "levels": levels}
	if userID, authed := GetUserIDFromSession(c); authed {
		placement, err := h.subjects.GetUserLevel(c.Request.Context(), userID, subjectID)
		if err == nil {
			response["current_level_id"] = placement.LevelID
		} else if contextutils.GetErrorCode(err) != contextutils.ErrorCodeRecordNotFound {
			HandleAppError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, response)
}

// GetSubtopics returns the subtopics of a level
func (h *SubjectHandler) GetSubtopics(c *gin.Context) {
	levelID, ok := pathID(c, "id")
	if !ok {
		return
	}

	subtopics, err := h.subjects.GetSubtopics(c.Request.Context(), levelID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subtopics": subtopics})
}

// pathID parses a numeric path parameter, responding with 400 on garbage
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid "+name+" parameter", c.Param(name))
		return 0, false
	}
	return id, true
}
