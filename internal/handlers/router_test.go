package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"studypath/internal/config"
	"studypath/internal/observability"
	"studypath/internal/services"

	"github.com/stretchr/testify/assert"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.SessionSecret = "test-secret"
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	cfg.Server.Debug = true
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	userService := services.NewUserServiceWithLogger(nil, cfg, logger)
	subjectService := services.NewSubjectServiceWithLogger(nil, logger)
	aiService := services.NewAIService(cfg, logger)
	assessmentService := services.NewAssessmentServiceWithLogger(nil, aiService, cfg, logger)
	progressService := services.NewProgressServiceWithLogger(nil, cfg, logger)
	quizService := services.NewQuizServiceWithLogger(nil, aiService, progressService, userService, cfg, logger)
	lessonService := services.NewLessonServiceWithLogger(nil, aiService, cfg, logger)

	return NewRouter(cfg, userService, subjectService, assessmentService, progressService, quizService, lessonService, logger)
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"ok"`)
}

func TestRouter_AuthRequired(t *testing.T) {
	router := newTestRouter(t)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/auth/me"},
		{http.MethodPost, "/v1/subjects/1/assessments"},
		{http.MethodGet, "/v1/assessments/1"},
		{http.MethodGet, "/v1/levels/1/progress"},
		{http.MethodGet, "/v1/subtopics/1/test-eligibility"},
		{http.MethodPost, "/v1/quizzes"},
		{http.MethodPost, "/v1/lessons/1/complete"},
	}

	for _, route := range protected {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, httptest.NewRequest(route.method, route.path, nil))
			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		})
	}
}

func TestRouter_InvalidPathParam(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/subjects/abc", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
