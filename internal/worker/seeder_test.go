package worker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"studypath/internal/config"
	"studypath/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSeeder(t *testing.T) *Seeder {
	t.Helper()
	cfg := &config.Config{}
	cfg.Seeder.CheckpointFile = filepath.Join(t.TempDir(), "checkpoint.json")
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewSeeder(nil, nil, cfg, logger)
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	seeder := newTestSeeder(t)

	checkpoint := &Checkpoint{
		CompletedSubtopics: []int{3, 7, 11},
		UpdatedAt:          time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, seeder.saveCheckpoint(checkpoint))

	loaded, err := seeder.loadCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, checkpoint.CompletedSubtopics, loaded.CompletedSubtopics)
	assert.True(t, checkpoint.UpdatedAt.Equal(loaded.UpdatedAt))
}

func TestCheckpoint_MissingFileIsEmpty(t *testing.T) {
	seeder := newTestSeeder(t)

	loaded, err := seeder.loadCheckpoint()
	require.NoError(t, err)
	assert.Empty(t, loaded.CompletedSubtopics)
}

func TestCheckpoint_CorruptFile(t *testing.T) {
	seeder := newTestSeeder(t)
	require.NoError(t, os.WriteFile(seeder.checkpointPath(), []byte("not json"), 0o644))

	_, err := seeder.loadCheckpoint()
	assert.Error(t, err)
}

func TestCheckpoint_CompletedSet(t *testing.T) {
	checkpoint := &Checkpoint{CompletedSubtopics: []int{1, 2, 2, 5}}
	set := checkpoint.completedSet()

	assert.True(t, set[1])
	assert.True(t, set[5])
	assert.False(t, set[3])
}

func TestCheckpointPath_Default(t *testing.T) {
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	seeder := NewSeeder(nil, nil, cfg, logger)

	assert.Equal(t, config.DefaultCheckpointFile, seeder.checkpointPath())
}
