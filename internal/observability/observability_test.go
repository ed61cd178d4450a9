package observability

import (
	"context"
	"testing"

	"studypath/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Disabled(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	assert.NotNil(t, logger)

	// No-op logger must not panic
	ctx := context.Background()
	logger.Info(ctx, "info", map[string]interface{}{"k": "v"})
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error", assert.AnError)
	logger.Debug(ctx, "debug", nil)
}

func TestNewLogger_NilConfig(t *testing.T) {
	logger := NewLogger(nil)
	assert.NotNil(t, logger)
	logger.Info(context.Background(), "still works")
}

func TestLogger_MergeFields(t *testing.T) {
	logger := NewLogger(nil)

	tests := []struct {
		name     string
		fields   []map[string]interface{}
		expected map[string]interface{}
	}{
		{"none", nil, map[string]interface{}{}},
		{"single nil", []map[string]interface{}{nil}, map[string]interface{}{}},
		{"single", []map[string]interface{}{{"a": 1}}, map[string]interface{}{"a": 1}},
		{
			"later wins",
			[]map[string]interface{}{{"a": 1, "b": 2}, {"b": 3}},
			map[string]interface{}{"a": 1, "b": 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, logger.mergeFields(tt.fields...))
		})
	}
}

func TestTraceFunction_SpanNaming(t *testing.T) {
	ctx, span := TraceAssessmentFunction(context.Background(), "SubmitAnswer", AttributeUserID(1))
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
	span.End()
}

func TestFinishSpan_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		FinishSpan(nil, nil)
		RecordSpanError(nil, assert.AnError)
	})

	_, span := TraceFunction(context.Background(), "test", "fn")
	err := assert.AnError
	assert.NotPanics(t, func() { FinishSpan(span, &err) })
}
