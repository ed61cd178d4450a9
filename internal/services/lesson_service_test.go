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
)

func newTestLessonService(ai AIServiceInterface) *LessonService {
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewLessonServiceWithLogger(nil, ai, cfg, logger)
}

func TestBuildLessonPlanPrompt(t *testing.T) {
	subtopic := &models.Subtopic{ID: 1, Name: "Photosynthesis", Description: "How plants convert light", PromptHint: "Keep it concrete"}
	prompt := buildLessonPlanPrompt(subtopic, 4)

	assert.Contains(t, prompt, "4 short lessons")
	assert.Contains(t, prompt, `"Photosynthesis"`)
	assert.Contains(t, prompt, "How plants convert light")
	assert.Contains(t, prompt, "Keep it concrete")
	assert.Contains(t, prompt, `"lessons"`)
}

func TestBuildLessonContentPrompt(t *testing.T) {
	subtopic := &models.Subtopic{ID: 1, Name: "Photosynthesis"}
	prompt := buildLessonContentPrompt(subtopic, "Light reactions", "chlorophyll, ATP", 2, 4)

	assert.Contains(t, prompt, "lesson 2 of 4")
	assert.Contains(t, prompt, "Light reactions")
	assert.Contains(t, prompt, "chlorophyll, ATP")
	assert.Contains(t, prompt, `"content"`)
}

func TestCheckQuestionRelevance_OutOfScope(t *testing.T) {
	ai := &stubAI{response: json.RawMessage(`{"is_relevant": false, "reason": "off topic", "suggested_topic": "light reactions"}`)}
	svc := newTestLessonService(ai)

	err := svc.checkQuestionRelevance(context.Background(), &models.Lesson{ID: 1, Title: "Light reactions"}, "who won the world cup")
	require.Error(t, err)

	var oos *contextutils.TopicOutOfScopeError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "off topic", oos.Reason)
}

func TestCheckQuestionRelevance_InScope(t *testing.T) {
	ai := &stubAI{response: json.RawMessage(`{"is_relevant": true}`)}
	svc := newTestLessonService(ai)

	err := svc.checkQuestionRelevance(context.Background(), &models.Lesson{ID: 1, Title: "Light reactions"}, "what does chlorophyll do")
	require.NoError(t, err)
}

func TestLessonPlanDecoding(t *testing.T) {
	raw := json.RawMessage(`{"lessons": [{"title": "Intro", "outline": "basics"}, {"title": "Deep dive", "outline": "details"}]}`)

	var plan lessonPlan
	require.NoError(t, json.Unmarshal(raw, &plan))
	require.Len(t, plan.Lessons, 2)
	assert.Equal(t, "Intro", plan.Lessons[0].Title)
	assert.Equal(t, "details", plan.Lessons[1].Outline)
}
