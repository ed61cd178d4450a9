package services

import (
	"context"
	"fmt"
	"testing"

	"studypath/internal/config"
	"studypath/internal/models"
	"studypath/internal/observability"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailingScore(t *testing.T) {
	tests := []struct {
		name     string
		correct  int
		total    int
		expected int
	}{
		{"no history", 0, 0, 0},
		{"all correct", 40, 40, 100},
		{"none correct", 0, 40, 0},
		{"rounds up", 2, 3, 67},
		{"rounds down", 1, 3, 33},
		{"exact half", 20, 40, 50},
		{"91 percent", 37, 40, 93},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, trailingScore(tt.correct, tt.total))
		})
	}
}

func TestMasteryPassed(t *testing.T) {
	const window, threshold = 40, 90

	tests := []struct {
		name     string
		total    int
		trailing int
		expected bool
	}{
		{"full window above threshold", 40, 91, true},
		{"full window at threshold", 40, 90, false},
		{"full window perfect", 45, 100, true},
		{"short of window", 39, 100, false},
		{"no history", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, masteryPassed(tt.total, tt.trailing, window, threshold))
		})
	}
}

func TestDifficultyTier(t *testing.T) {
	const tierSize, maxTier = 10, 4

	tests := []struct {
		total    int
		expected int
	}{
		{0, 1},
		{9, 1},
		{10, 2},
		{19, 2},
		{20, 3},
		{30, 4},
		{39, 4},
		{40, 4},
		{200, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("total_%d", tt.total), func(t *testing.T) {
			assert.Equal(t, tt.expected, difficultyTier(tt.total, tierSize, maxTier))
		})
	}
}

func TestTestLabel(t *testing.T) {
	const tierSize, window = 10, 40

	tests := []struct {
		total      int
		wantNumber int
		wantLabel  string
	}{
		{0, 1, "Test 1"},
		{9, 1, "Test 1"},
		{10, 2, "Test 2"},
		{25, 3, "Test 3"},
		{39, 4, "Test 4"},
		{40, 5, models.PracticeTestLabel},
		{120, 13, models.PracticeTestLabel},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("total_%d", tt.total), func(t *testing.T) {
			number, label := testLabel(tt.total, tierSize, window)
			assert.Equal(t, tt.wantNumber, number)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestQuestionsUntilPass(t *testing.T) {
	const window = 40

	assert.Equal(t, 40, questionsUntilPass(0, window))
	assert.Equal(t, 1, questionsUntilPass(39, window))
	assert.Equal(t, 0, questionsUntilPass(40, window))
	assert.Equal(t, 0, questionsUntilPass(100, window))
}

func newMockProgressService(t *testing.T) (*ProgressService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	svc := NewProgressServiceWithLogger(db, &config.Config{}, logger)
	cleanup := func() {
		mock.ExpectClose()
		require.NoError(t, db.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	}
	return svc, mock, cleanup
}

func TestGetLevelProgress_RecordsDailySnapshot(t *testing.T) {
	svc, mock, cleanup := newMockProgressService(t)
	defer cleanup()

	subtopicRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Fractions")
	}
	windowRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"total", "window_correct", "window_total"}).AddRow(50, 8, 10)
	}

	mock.ExpectQuery("SELECT id, name FROM subtopics").WillReturnRows(subtopicRows())
	mock.ExpectQuery("WITH recent AS").WillReturnRows(windowRows())

	// reading level progress writes today's snapshot before the history query
	mock.ExpectQuery("SELECT id, name FROM subtopics").WillReturnRows(subtopicRows())
	mock.ExpectQuery("WITH recent AS").WillReturnRows(windowRows())
	mock.ExpectExec("INSERT INTO daily_level_scores").
		WithArgs(1, 3, sqlmock.AnyArg(), 80).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("SELECT score_date, score").
		WillReturnRows(sqlmock.NewRows([]string{"score_date", "score"}))

	progress, err := svc.GetLevelProgress(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, progress.Subtopics, 1)
	assert.Equal(t, 80, progress.Subtopics[0].TrailingScore)
	assert.Equal(t, "Fractions", progress.Subtopics[0].SubtopicName)
}
