package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "studypath/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     contextutils.ErrorCode
		expected int
	}{
		{contextutils.ErrorCodeInvalidInput, http.StatusBadRequest},
		{contextutils.ErrorCodeMissingRequired, http.StatusBadRequest},
		{contextutils.ErrorCodeAssessmentCompleted, http.StatusBadRequest},
		{contextutils.ErrorCodeUnauthorized, http.StatusUnauthorized},
		{contextutils.ErrorCodeInvalidCredentials, http.StatusUnauthorized},
		{contextutils.ErrorCodeForbidden, http.StatusForbidden},
		{contextutils.ErrorCodeRecordNotFound, http.StatusNotFound},
		{contextutils.ErrorCodeRecordExists, http.StatusConflict},
		{contextutils.ErrorCodeTopicOutOfScope, http.StatusUnprocessableEntity},
		{contextutils.ErrorCodeTimeout, http.StatusRequestTimeout},
		{contextutils.ErrorCodeGenerationFailed, http.StatusBadGateway},
		{contextutils.ErrorCodeAIResponseInvalid, http.StatusBadGateway},
		{contextutils.ErrorCodeServiceUnavailable, http.StatusServiceUnavailable},
		{contextutils.ErrorCodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, recorder
}

func TestHandleAppError_TopicOutOfScope(t *testing.T) {
	c, recorder := testContext(t)

	HandleAppError(c, &contextutils.TopicOutOfScopeError{
		Reason:         "not about fractions",
		SuggestedTopic: "comparing fractions",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "TOPIC_OUT_OF_SCOPE", body["code"])
	assert.Equal(t, "not about fractions", body["reason"])
	assert.Equal(t, "comparing fractions", body["suggested_topic"])
}

func TestHandleAppError_AppError(t *testing.T) {
	c, recorder := testContext(t)

	HandleAppError(c, contextutils.WrapError(contextutils.ErrRecordNotFound, "quiz not found"))

	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "RECORD_NOT_FOUND", body["code"])
	assert.Contains(t, body, "retryable")
}

func TestHandleAppError_AlreadyCompleted(t *testing.T) {
	c, recorder := testContext(t)

	HandleAppError(c, contextutils.WrapError(contextutils.ErrAssessmentCompleted, "already done"))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleAppError_PlainError(t *testing.T) {
	c, recorder := testContext(t)

	HandleAppError(c, errors.New("something broke"))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}
