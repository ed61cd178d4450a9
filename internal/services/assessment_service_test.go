package services

import (
	"fmt"
	"testing"
	"time"

	"studypath/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLevels() []models.Level {
	return []models.Level{
		{ID: 10, SubjectID: 1, Name: "Beginner", OrderIndex: 0},
		{ID: 20, SubjectID: 1, Name: "Elementary", OrderIndex: 1},
		{ID: 30, SubjectID: 1, Name: "Intermediate", OrderIndex: 2},
		{ID: 40, SubjectID: 1, Name: "Advanced", OrderIndex: 3},
		{ID: 50, SubjectID: 1, Name: "Expert", OrderIndex: 4},
	}
}

func question(id string, levelID int) models.AssessmentQuestion {
	return models.AssessmentQuestion{
		ID:      id,
		LevelID: levelID,
		Options: []string{"a", "b", "c", "d"},
	}
}

func TestNextQuestion_CurrentLevelFirst(t *testing.T) {
	levels := testLevels()
	pool := models.QuestionPool{
		20: {question("q20", 20)},
		30: {question("q30a", 30), question("q30b", 30)},
		40: {question("q40", 40)},
	}

	got := nextQuestion(levels, pool, 30, map[string]bool{})
	require.NotNil(t, got)
	assert.Equal(t, "q30a", got.ID)

	got = nextQuestion(levels, pool, 30, map[string]bool{"q30a": true})
	require.NotNil(t, got)
	assert.Equal(t, "q30b", got.ID)
}

func TestNextQuestion_HarderBeforeEasierAtEqualDistance(t *testing.T) {
	levels := testLevels()
	pool := models.QuestionPool{
		20: {question("q20", 20)},
		40: {question("q40", 40)},
	}

	// current level 30 is empty; distance 1 up (40) wins over distance 1 down (20)
	got := nextQuestion(levels, pool, 30, map[string]bool{})
	require.NotNil(t, got)
	assert.Equal(t, "q40", got.ID)

	got = nextQuestion(levels, pool, 30, map[string]bool{"q40": true})
	require.NotNil(t, got)
	assert.Equal(t, "q20", got.ID)
}

func TestNextQuestion_WidensSearchOutward(t *testing.T) {
	levels := testLevels()
	pool := models.QuestionPool{
		10: {question("q10", 10)},
		50: {question("q50", 50)},
	}

	got := nextQuestion(levels, pool, 20, map[string]bool{})
	require.NotNil(t, got)
	// from index 1, distance 1 and 2 are empty upward until 50 at distance 3;
	// 10 sits at distance 1 downward and is found first
	assert.Equal(t, "q10", got.ID)

	got = nextQuestion(levels, pool, 20, map[string]bool{"q10": true})
	require.NotNil(t, got)
	assert.Equal(t, "q50", got.ID)
}

func TestNextQuestion_ExhaustedPool(t *testing.T) {
	levels := testLevels()
	pool := models.QuestionPool{
		30: {question("q30", 30)},
	}

	assert.Nil(t, nextQuestion(levels, pool, 30, map[string]bool{"q30": true}))
	assert.Nil(t, nextQuestion(levels, models.QuestionPool{}, 30, map[string]bool{}))
}

func TestNextQuestion_UnknownCurrentLevel(t *testing.T) {
	pool := models.QuestionPool{30: {question("q30", 30)}}
	assert.Nil(t, nextQuestion(testLevels(), pool, 999, map[string]bool{}))
}

func TestApplyAnswer_AdaptiveWalkThreeLevels(t *testing.T) {
	levels := []models.Level{
		{ID: 10, SubjectID: 1, Name: "A", OrderIndex: 0},
		{ID: 20, SubjectID: 1, Name: "B", OrderIndex: 1},
		{ID: 30, SubjectID: 1, Name: "C", OrderIndex: 2},
	}
	pool := models.QuestionPool{
		10: {question("qA", 10)},
		20: {question("qB", 20)},
		30: {question("qC", 30)},
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := &models.Assessment{Pool: pool, CurrentLevelID: 20, Answers: []models.AdaptiveAnswer{}}

	first := nextQuestion(levels, pool, a.CurrentLevelID, askedSet(a.Answers))
	require.NotNil(t, first)
	assert.Equal(t, "qB", first.ID)

	correct, next, done := applyAnswer(a, levels, first, 0, 10, now)
	assert.True(t, correct)
	assert.False(t, done)
	assert.Equal(t, 30, a.CurrentLevelID)
	require.NotNil(t, next)
	assert.Equal(t, "qC", next.ID)

	correct, next, done = applyAnswer(a, levels, next, 1, 10, now)
	assert.False(t, correct)
	assert.False(t, done)
	// back at B with its question used; the selector falls through to A
	assert.Equal(t, 20, a.CurrentLevelID)
	require.NotNil(t, next)
	assert.Equal(t, "qA", next.ID)

	correct, next, done = applyAnswer(a, levels, next, 0, 10, now)
	assert.True(t, correct)
	assert.True(t, done)
	assert.Nil(t, next)

	require.Len(t, a.Answers, 3)
	assert.Equal(t, 1, a.Answers[1].SelectedOption)
	assert.Equal(t, 0, a.Answers[2].SelectedOption)
	assert.Equal(t, models.AssessmentCompleted, a.Status())
	assert.Equal(t, models.LevelScore{Correct: 1, Total: 1}, a.Scores[10])
	assert.Equal(t, models.LevelScore{Correct: 1, Total: 1}, a.Scores[20])
	assert.Equal(t, models.LevelScore{Correct: 0, Total: 1}, a.Scores[30])
	require.True(t, a.FinalLevelID.Valid)
	assert.EqualValues(t, 20, a.FinalLevelID.Int64)
}

func TestApplyAnswer_StopsAtQuestionBudget(t *testing.T) {
	levels := testLevels()
	pool := models.QuestionPool{}
	for _, level := range levels {
		pool[level.ID] = []models.AssessmentQuestion{
			question(fmt.Sprintf("q%d-1", level.ID), level.ID),
			question(fmt.Sprintf("q%d-2", level.ID), level.ID),
		}
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	budget := 4
	a := &models.Assessment{Pool: pool, CurrentLevelID: 30, Answers: []models.AdaptiveAnswer{}}

	next := nextQuestion(levels, pool, a.CurrentLevelID, askedSet(a.Answers))
	done := false
	for !done {
		require.NotNil(t, next)
		_, next, done = applyAnswer(a, levels, next, 0, budget, now)
		require.LessOrEqual(t, len(a.Answers), budget)
	}

	assert.Len(t, a.Answers, budget)
	assert.Nil(t, next)
	assert.True(t, a.CompletedAt.Valid)
	// the budget alone ended the run; the pool still has unasked questions
	assert.Greater(t, poolSize(pool), budget)
}

func TestComputeScores(t *testing.T) {
	answers := []models.AdaptiveAnswer{
		{QuestionID: "a", LevelID: 30, Correct: true},
		{QuestionID: "b", LevelID: 30, Correct: false},
		{QuestionID: "c", LevelID: 40, Correct: true},
		{QuestionID: "d", LevelID: 40, Correct: true},
		{QuestionID: "e", LevelID: 20, Correct: false},
	}

	scores := computeScores(answers)
	assert.Equal(t, models.LevelScore{Correct: 1, Total: 2}, scores[30])
	assert.Equal(t, models.LevelScore{Correct: 2, Total: 2}, scores[40])
	assert.Equal(t, models.LevelScore{Correct: 0, Total: 1}, scores[20])
	// levels never answered stay absent
	_, present := scores[10]
	assert.False(t, present)
}

func TestComputeScores_Empty(t *testing.T) {
	scores := computeScores(nil)
	assert.Empty(t, scores)
	assert.NotNil(t, scores)
}

func TestFinalizeInPlace(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := &models.Assessment{
		CurrentLevelID: 40,
		Answers: []models.AdaptiveAnswer{
			{QuestionID: "a", LevelID: 30, Correct: true},
		},
	}

	finalizeInPlace(a, now)

	assert.Equal(t, models.AssessmentCompleted, a.Status())
	require.True(t, a.FinalLevelID.Valid)
	assert.EqualValues(t, 40, a.FinalLevelID.Int64)
	// suggested level tracks the final placement level
	require.True(t, a.SuggestedLevelID.Valid)
	assert.EqualValues(t, 40, a.SuggestedLevelID.Int64)
	assert.Equal(t, now, a.CompletedAt.Time)
	assert.Equal(t, models.LevelScore{Correct: 1, Total: 1}, a.Scores[30])
}

func TestLevelIndex(t *testing.T) {
	levels := testLevels()
	assert.Equal(t, 0, levelIndex(levels, 10))
	assert.Equal(t, 2, levelIndex(levels, 30))
	assert.Equal(t, 4, levelIndex(levels, 50))
	assert.Equal(t, -1, levelIndex(levels, 99))
}

func TestLevelMovement(t *testing.T) {
	levels := testLevels()

	tests := []struct {
		name     string
		startIdx int
		correct  bool
		wantIdx  int
	}{
		{"correct moves up", 2, true, 3},
		{"incorrect moves down", 2, false, 1},
		{"correct clamped at top", 4, true, 4},
		{"incorrect clamped at bottom", 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIdx, moveLevel(levels, tt.startIdx, tt.correct))
		})
	}
}

func TestFindQuestion(t *testing.T) {
	pool := models.QuestionPool{
		10: {question("q1", 10)},
		20: {question("q2", 20), question("q3", 20)},
	}

	got := findQuestion(pool, "q3")
	require.NotNil(t, got)
	assert.Equal(t, 20, got.LevelID)
	assert.Nil(t, findQuestion(pool, "missing"))
}

func TestPoolSize(t *testing.T) {
	assert.Equal(t, 0, poolSize(models.QuestionPool{}))
	assert.Equal(t, 3, poolSize(models.QuestionPool{
		10: {question("a", 10)},
		20: {question("b", 20), question("c", 20)},
	}))
}

func TestBuildPoolPrompt(t *testing.T) {
	subject := &models.Subject{ID: 1, Name: "Algebra"}
	prompt := buildPoolPrompt(subject, testLevels(), 3)

	assert.Contains(t, prompt, `"Algebra"`)
	assert.Contains(t, prompt, "level_id 30")
	assert.Contains(t, prompt, "exactly 3 questions per level")
	assert.Contains(t, prompt, `"questions"`)
}
