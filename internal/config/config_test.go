package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig_LoadsYAML(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
  session_secret: "secret"
  cors_origins:
    - "http://localhost:3000"
database:
  url: "postgres://localhost/studypath_test"
  conn_max_lifetime: 10m
ai:
  url: "http://localhost:11434/v1"
  model: "test-model"
assessment:
  question_budget: 12
seeder:
  delay_between_batches: 5s
`)
	t.Setenv("STUDYPATH_CONFIG_FILE", path)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/studypath_test", cfg.Database.URL)
	assert.Equal(t, 10*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "test-model", cfg.AI.Model)
	assert.Equal(t, 12, cfg.QuestionBudget())
	assert.Equal(t, 5*time.Second, cfg.SeederDelay())
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "8080"
database:
  url: "postgres://localhost/from_yaml"
`)
	t.Setenv("STUDYPATH_CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://localhost/from_env")
	t.Setenv("AI_MAX_ATTEMPTS", "5")
	t.Setenv("SERVER_CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/from_env", cfg.Database.URL)
	assert.Equal(t, 5, cfg.AIMaxAttempts())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestNewConfig_MissingFile(t *testing.T) {
	t.Setenv("STUDYPATH_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := NewConfig()
	assert.Error(t, err)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}

	assert.Equal(t, DefaultQuestionsPerLevel, cfg.QuestionsPerLevel())
	assert.Equal(t, DefaultQuestionBudget, cfg.QuestionBudget())
	assert.Equal(t, DefaultMasteryWindow, cfg.MasteryWindow())
	assert.Equal(t, DefaultMasteryPassThreshold, cfg.MasteryPassThreshold())
	assert.Equal(t, DefaultMasteryTierSize, cfg.MasteryTierSize())
	assert.Equal(t, DefaultMaxDifficulty, cfg.MasteryMaxDifficulty())
	assert.Equal(t, DefaultSeederConcurrency, cfg.SeederConcurrency())
	assert.Equal(t, DefaultSeederDelay, cfg.SeederDelay())
	assert.Equal(t, DefaultLessonsPerSubtopic, cfg.LessonsPerSubtopic())
	assert.Equal(t, DefaultAIMaxAttempts, cfg.AIMaxAttempts())
}

func TestConfig_ConfiguredValuesWin(t *testing.T) {
	cfg := &Config{}
	cfg.Mastery.WindowSize = 20
	cfg.Mastery.PassThreshold = 80
	cfg.Assessment.QuestionsPerLevel = 5

	assert.Equal(t, 20, cfg.MasteryWindow())
	assert.Equal(t, 80, cfg.MasteryPassThreshold())
	assert.Equal(t, 5, cfg.QuestionsPerLevel())
}
