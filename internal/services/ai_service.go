// Package services contains the business logic for placement assessments,
// mastery tracking, content generation and user management.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studypath/internal/config"
	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// AIServiceInterface defines the AI content generation contract.
// Responses are extracted from the model output, parsed and validated
// against a JSON schema before being returned.
type AIServiceInterface interface {
	GenerateJSON(ctx context.Context, prompt string, schema *gojsonschema.Schema) (json.RawMessage, error)
}

// AIService calls a chat-completions API and turns free-form model output
// into schema-validated JSON
type AIService struct {
	cfg    *config.Config
	logger *observability.Logger
	client *http.Client

	// overridable in tests to avoid real backoff sleeps
	sleep func(ctx context.Context, d time.Duration) error
}

// ChatRequest is the chat-completions request payload
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatMessage is a single message in a chat-completions conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the chat-completions response payload
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAIService creates a new AI service
func NewAIService(cfg *config.Config, logger *observability.Logger) *AIService {
	return &AIService{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout:   config.AIRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		sleep: sleepWithContext,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GenerateJSON asks the model for JSON matching the given schema. It retries
// up to the configured attempt budget with a linearly increasing backoff;
// a response that fails extraction, parsing or schema validation counts as
// a failed attempt. All attempts failing yields GENERATION_FAILED.
func (s *AIService) GenerateJSON(ctx context.Context, prompt string, schema *gojsonschema.Schema) (result0 json.RawMessage, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "GenerateJSON",
		attribute.Int("ai.prompt_length", len(prompt)),
		attribute.Int("ai.max_attempts", s.cfg.AIMaxAttempts()),
	)
	defer observability.FinishSpan(span, &err)

	maxAttempts := s.cfg.AIMaxAttempts()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, attemptErr := s.generateOnce(ctx, prompt, schema)
		if attemptErr == nil {
			span.SetAttributes(attribute.Int("ai.attempts_used", attempt))
			return raw, nil
		}
		lastErr = attemptErr

		s.logger.Warn(ctx, "AI generation attempt failed", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"error":        attemptErr.Error(),
		})

		if attempt < maxAttempts {
			if sleepErr := s.sleep(ctx, time.Duration(attempt)*config.AIRetryBackoffBase); sleepErr != nil {
				err = contextutils.WrapError(sleepErr, "generation canceled during backoff")
				return nil, err
			}
		}
	}

	span.SetAttributes(attribute.String("ai.result", "exhausted"))
	err = contextutils.NewAppErrorWithCause(
		contextutils.ErrorCodeGenerationFailed,
		contextutils.SeverityError,
		"Content generation failed",
		fmt.Sprintf("all %d attempts failed", maxAttempts),
		lastErr,
	)
	return nil, err
}

// generateOnce performs a single generation attempt
func (s *AIService) generateOnce(ctx context.Context, prompt string, schema *gojsonschema.Schema) (json.RawMessage, error) {
	content, err := s.callChatCompletions(ctx, prompt)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSONBlock(content)
	if err != nil {
		return nil, err
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "response is not valid JSON: %w", err)
	}

	if schema != nil {
		result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "schema validation error: %w", err)
		}
		if !result.Valid() {
			var problems []string
			for _, desc := range result.Errors() {
				problems = append(problems, desc.String())
			}
			return nil, contextutils.NewAppError(
				contextutils.ErrorCodeAIResponseInvalid,
				contextutils.SeverityError,
				"AI response failed schema validation",
				strings.Join(problems, "; "),
			)
		}
	}

	return json.RawMessage(raw), nil
}

// callChatCompletions sends one request to the configured chat-completions endpoint
func (s *AIService) callChatCompletions(ctx context.Context, prompt string) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "callChatCompletions",
		attribute.String("ai.model", s.cfg.AI.Model),
	)
	defer observability.FinishSpan(span, &err)

	reqBody := ChatRequest{
		Model: s.cfg.AI.Model,
		Messages: []ChatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   s.cfg.AI.MaxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "marshal_failed"))
		return "", contextutils.WrapError(err, "failed to marshal chat request")
	}

	url := strings.TrimRight(s.cfg.AI.URL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "request_build_failed"))
		return "", contextutils.WrapError(err, "failed to build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.AI.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AI.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "transport_error"))
		return "", contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "chat completions request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "read_failed"))
		return "", contextutils.WrapError(err, "failed to read chat response")
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("call.result", "http_error"))
		return "", contextutils.NewAppError(
			contextutils.ErrorCodeServiceUnavailable,
			contextutils.SeverityError,
			"chat completions returned non-200",
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body), 500)),
		)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		span.SetAttributes(attribute.String("call.result", "decode_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "failed to decode chat response: %w", err)
	}

	if chatResp.Error != nil {
		span.SetAttributes(attribute.String("call.result", "api_error"))
		return "", contextutils.NewAppError(
			contextutils.ErrorCodeServiceUnavailable,
			contextutils.SeverityError,
			"chat completions API error",
			chatResp.Error.Message,
		)
	}

	if len(chatResp.Choices) == 0 {
		span.SetAttributes(attribute.String("call.result", "empty_choices"))
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "chat response has no choices")
	}

	span.SetAttributes(attribute.String("call.result", "success"))
	return chatResp.Choices[0].Message.Content, nil
}

// extractJSONBlock pulls the first JSON object or array out of model output
// that may wrap it in prose or markdown fences
func extractJSONBlock(content string) (string, error) {
	objStart := strings.Index(content, "{")
	arrStart := strings.Index(content, "[")

	start := objStart
	closer := "}"
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start = arrStart
		closer = "]"
	}

	if start == -1 {
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "no JSON found in response")
	}

	end := strings.LastIndex(content, closer)
	if end == -1 || end < start {
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "unterminated JSON in response")
	}

	return content[start : end+1], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
