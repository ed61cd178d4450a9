package services

import (
	"context"
	"encoding/json"
	"testing"

	"studypath/internal/config"
	"studypath/internal/models"
	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

// stubAI returns a fixed response or error for every generation call
type stubAI struct {
	response json.RawMessage
	err      error
	prompts  []string
}

func (s *stubAI) GenerateJSON(ctx context.Context, prompt string, schema *gojsonschema.Schema) (json.RawMessage, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func newTestQuizService(ai AIServiceInterface) *QuizService {
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewQuizServiceWithLogger(nil, ai, nil, nil, cfg, logger)
}

func TestGradeScore(t *testing.T) {
	tests := []struct {
		name     string
		correct  int
		total    int
		expected int
	}{
		{"perfect", 5, 5, 100},
		{"none", 0, 5, 0},
		{"partial truncates", 2, 3, 66},
		{"empty quiz", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gradeScore(tt.correct, tt.total))
		})
	}
}

func TestDifficultyInstruction(t *testing.T) {
	seen := map[string]bool{}
	for tier := 1; tier <= 4; tier++ {
		instruction := difficultyInstruction(tier)
		assert.NotEmpty(t, instruction)
		assert.False(t, seen[instruction], "tiers must have distinct instructions")
		seen[instruction] = true
	}
	// out-of-range tiers fall back to the hardest instruction
	assert.Equal(t, difficultyInstruction(4), difficultyInstruction(7))
}

func TestBuildQuizPrompt(t *testing.T) {
	subtopic := &models.Subtopic{ID: 1, Name: "Fractions", Description: "Adding and comparing fractions", PromptHint: "Use visual framing"}
	exclude := []string{"What is 1/2 + 1/4?", "Which fraction is larger?"}

	prompt := buildQuizPrompt(subtopic, "mixed numbers", 3, 5, exclude)

	assert.Contains(t, prompt, `"Fractions"`)
	assert.Contains(t, prompt, "Adding and comparing fractions")
	assert.Contains(t, prompt, "Use visual framing")
	assert.Contains(t, prompt, "Focus specifically on: mixed numbers")
	assert.Contains(t, prompt, "Difficulty tier 3 of 4")
	assert.Contains(t, prompt, "What is 1/2 + 1/4?")
	assert.Contains(t, prompt, "Do NOT repeat")
}

func TestBuildQuizPrompt_NoExclusions(t *testing.T) {
	subtopic := &models.Subtopic{ID: 1, Name: "Fractions"}
	prompt := buildQuizPrompt(subtopic, "", 1, 5, nil)

	assert.NotContains(t, prompt, "Do NOT repeat")
	assert.NotContains(t, prompt, "Focus specifically on")
}

func TestCheckTopicRelevance_InScope(t *testing.T) {
	ai := &stubAI{response: json.RawMessage(`{"is_relevant": true, "reason": "fits"}`)}
	svc := newTestQuizService(ai)

	err := svc.checkTopicRelevance(context.Background(), &models.Subtopic{ID: 1, Name: "Fractions"}, "mixed numbers")
	require.NoError(t, err)
	require.Len(t, ai.prompts, 1)
	assert.Contains(t, ai.prompts[0], `"mixed numbers"`)
}

func TestCheckTopicRelevance_OutOfScope(t *testing.T) {
	ai := &stubAI{response: json.RawMessage(`{"is_relevant": false, "reason": "dinosaurs are not fractions", "suggested_topic": "comparing fractions"}`)}
	svc := newTestQuizService(ai)

	err := svc.checkTopicRelevance(context.Background(), &models.Subtopic{ID: 1, Name: "Fractions"}, "dinosaurs")
	require.Error(t, err)

	var oos *contextutils.TopicOutOfScopeError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "dinosaurs are not fractions", oos.Reason)
	assert.Equal(t, "comparing fractions", oos.SuggestedTopic)
}

func TestCheckTopicRelevance_GenerationFails(t *testing.T) {
	ai := &stubAI{err: contextutils.ErrGenerationFailed}
	svc := newTestQuizService(ai)

	err := svc.checkTopicRelevance(context.Background(), &models.Subtopic{ID: 1, Name: "Fractions"}, "anything")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeGenerationFailed, contextutils.GetErrorCode(err))
}
