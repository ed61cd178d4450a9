package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout  = 60 * time.Second
	AIRequestTimeout    = 3 * time.Minute
	ServerReadTimeout   = 30 * time.Second
	ServerWriteTimeout  = 4 * time.Minute
	ShutdownGracePeriod = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days

	// Retry backoff base for AI generation (linear: attempt * base)
	AIRetryBackoffBase = 1 * time.Second
)

// Placement assessment defaults
const (
	DefaultQuestionsPerLevel = 3
	DefaultQuestionBudget    = 10
	DefaultAIMaxAttempts     = 3
)

// Mastery tracking defaults
const (
	DefaultMasteryWindow        = 40
	DefaultMasteryPassThreshold = 90
	DefaultMasteryTierSize      = 10
	DefaultMaxDifficulty        = 4

	// Exclusion list size for quiz generation prompts
	QuizExclusionLimit = 20

	// Days of daily score history returned with level progress
	DailyHistoryDays = 30
)

// Seeder defaults
const (
	DefaultSeederConcurrency  = 3
	DefaultSeederDelay        = 2 * time.Second
	DefaultLessonsPerSubtopic = 4
	DefaultCheckpointFile     = ".seed-lessons-checkpoint.json"
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName = "studypath-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
