package contextutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "with details",
			err: &AppError{
				Code:    ErrorCodeGenerationFailed,
				Message: "Content generation failed",
				Details: "schema validation failed",
			},
			expected: "GENERATION_FAILED: Content generation failed - schema validation failed",
		},
		{
			name: "without details",
			err: &AppError{
				Code:    ErrorCodeRecordNotFound,
				Message: "Record not found",
			},
			expected: "RECORD_NOT_FOUND: Record not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Is(t *testing.T) {
	err := WrapError(ErrAssessmentCompleted, "finalize rejected")
	assert.True(t, errors.Is(err, ErrAssessmentCompleted))
	assert.False(t, errors.Is(err, ErrRecordNotFound))
}

func TestWrapError_PreservesCode(t *testing.T) {
	wrapped := WrapError(ErrRecordNotFound, "assessment lookup")
	appErr, ok := wrapped.(*AppError)
	assert.True(t, ok)
	assert.Equal(t, ErrorCodeRecordNotFound, appErr.Code)
	assert.Equal(t, "assessment lookup", appErr.Message)
}

func TestWrapError_PlainError(t *testing.T) {
	wrapped := WrapError(fmt.Errorf("connection refused"), "database ping")
	appErr, ok := wrapped.(*AppError)
	assert.True(t, ok)
	assert.Equal(t, ErrorCodeInternalError, appErr.Code)
	assert.Equal(t, "database ping", appErr.Message)
	assert.Equal(t, "connection refused", appErr.Details)
}

func TestWrapError_Nil(t *testing.T) {
	assert.NoError(t, WrapError(nil, "context"))
	assert.NoError(t, WrapErrorf(nil, "context %d", 1))
}

func TestWrapErrorf_WithWVerb(t *testing.T) {
	wrapped := WrapErrorf(ErrGenerationFailed, "pool build failed: %w", ErrGenerationFailed)
	appErr, ok := wrapped.(*AppError)
	assert.True(t, ok)
	assert.Equal(t, ErrorCodeGenerationFailed, appErr.Code)
	assert.True(t, errors.Is(wrapped, ErrGenerationFailed))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"app error", ErrUnauthorized, ErrorCodeUnauthorized},
		{"plain error", fmt.Errorf("boom"), ErrorCodeInternalError},
		{"wrapped app error", WrapError(ErrAssessmentCompleted, "x"), ErrorCodeAssessmentCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCode(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.False(t, IsRetryable(ErrGenerationFailed))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

func TestTopicOutOfScopeError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *TopicOutOfScopeError
		expected string
	}{
		{
			name:     "with suggestion",
			err:      &TopicOutOfScopeError{Reason: "calculus is beyond this level", SuggestedTopic: "fractions"},
			expected: "TOPIC_OUT_OF_SCOPE: calculus is beyond this level (try: fractions)",
		},
		{
			name:     "without suggestion",
			err:      &TopicOutOfScopeError{Reason: "not a math topic"},
			expected: "TOPIC_OUT_OF_SCOPE: not a math topic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_ToJSON(t *testing.T) {
	err := NewAppErrorWithCause(ErrorCodeGenerationFailed, SeverityError, "generation failed", "3 attempts", fmt.Errorf("status 500"))
	out := err.ToJSON()
	assert.Equal(t, "GENERATION_FAILED", out["code"])
	assert.Equal(t, "generation failed", out["message"])
	assert.Equal(t, "3 attempts", out["details"])
	assert.Equal(t, "status 500", out["cause"])
	assert.Equal(t, false, out["retryable"])
}
