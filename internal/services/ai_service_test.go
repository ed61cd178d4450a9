package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studypath/internal/config"
	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAIService(t *testing.T, url string) *AIService {
	t.Helper()
	cfg := &config.Config{}
	cfg.AI.URL = url
	cfg.AI.Model = "test-model"
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	svc := NewAIService(cfg, logger)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

func chatReply(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestGenerateJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		fmt.Fprint(w, chatReply(`Here you go: {"is_relevant": true, "reason": "on topic"}`))
	}))
	defer server.Close()

	svc := newTestAIService(t, server.URL)
	raw, err := svc.GenerateJSON(context.Background(), "check relevance", topicRelevanceSchema)
	require.NoError(t, err)

	var parsed struct {
		IsRelevant bool `json:"is_relevant"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.True(t, parsed.IsRelevant)
}

func TestGenerateJSON_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			fmt.Fprint(w, chatReply("sorry, no JSON today"))
			return
		}
		fmt.Fprint(w, chatReply(`{"is_relevant": false, "reason": "off topic"}`))
	}))
	defer server.Close()

	svc := newTestAIService(t, server.URL)
	var slept []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	raw, err := svc.GenerateJSON(context.Background(), "check relevance", topicRelevanceSchema)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, 3, calls)
	// backoff grows linearly with the attempt number
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, slept)
}

func TestGenerateJSON_ExhaustsAttempts(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, chatReply("still no JSON"))
	}))
	defer server.Close()

	svc := newTestAIService(t, server.URL)
	_, err := svc.GenerateJSON(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeGenerationFailed, contextutils.GetErrorCode(err))
	assert.Equal(t, config.DefaultAIMaxAttempts, calls)
}

func TestGenerateJSON_SchemaFailureCountsAsAttempt(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// valid JSON but missing the required is_relevant field
		fmt.Fprint(w, chatReply(`{"reason": "who knows"}`))
	}))
	defer server.Close()

	svc := newTestAIService(t, server.URL)
	_, err := svc.GenerateJSON(context.Background(), "check relevance", topicRelevanceSchema)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeGenerationFailed, contextutils.GetErrorCode(err))
	assert.Equal(t, config.DefaultAIMaxAttempts, calls)
}

func TestGenerateJSON_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := newTestAIService(t, server.URL)
	_, err := svc.GenerateJSON(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeGenerationFailed, contextutils.GetErrorCode(err))
}

func TestGenerateJSON_APIKeyHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, chatReply(`{"ok": true}`))
	}))
	defer server.Close()

	svc := newTestAIService(t, server.URL)
	svc.cfg.AI.APIKey = "sk-test"
	_, err := svc.GenerateJSON(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"bare array", `[1, 2]`, `[1, 2]`, false},
		{"markdown fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"prose around object", `Sure! {"a": 1} Hope that helps.`, `{"a": 1}`, false},
		{"array before object", `[{"a": 1}]`, `[{"a": 1}]`, false},
		{"no json", "I cannot do that.", "", true},
		{"unterminated", `{"a": 1`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONBlock(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestGenerateJSON_CanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("not json"))
	}))
	defer server.Close()

	svc := newTestAIService(t, server.URL)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	_, err := svc.GenerateJSON(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
