// Package models defines the core data structures used throughout the application.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// User represents a registered user
type User struct {
	ID               int          `json:"id" db:"id"`
	Username         string       `json:"username" db:"username"`
	PasswordHash     string       `json:"-" db:"password_hash"`
	CurrentStreak    int          `json:"current_streak" db:"current_streak"`
	LongestStreak    int          `json:"longest_streak" db:"longest_streak"`
	LastActivityDate sql.NullTime `json:"-" db:"last_activity_date"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// MarshalJSON includes the nullable activity date as a plain field
func (u User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := struct {
		Alias
		LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	}{Alias: Alias(u)}
	if u.LastActivityDate.Valid {
		aux.LastActivityDate = &u.LastActivityDate.Time
	}
	return json.Marshal(aux)
}

// Subject represents a course of study (e.g. Mathematics)
type Subject struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Level represents one rung of a subject's difficulty ladder.
// OrderIndex 0 is the easiest level.
type Level struct {
	ID          int    `json:"id" db:"id"`
	SubjectID   int    `json:"subject_id" db:"subject_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	OrderIndex  int    `json:"order_index" db:"order_index"`
}

// Subtopic represents a unit of study within a level
type Subtopic struct {
	ID          int    `json:"id" db:"id"`
	LevelID     int    `json:"level_id" db:"level_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	OrderIndex  int    `json:"order_index" db:"order_index"`
	PromptHint  string `json:"prompt_hint,omitempty" db:"prompt_hint"`
}

// Lesson is a generated lesson for a subtopic
type Lesson struct {
	ID         int       `json:"id" db:"id"`
	SubtopicID int       `json:"subtopic_id" db:"subtopic_id"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	OrderIndex int       `json:"order_index" db:"order_index"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AssessmentQuestion is a diagnostic multiple-choice question in a placement pool
type AssessmentQuestion struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Level         string   `json:"level"`
	LevelID       int      `json:"level_id"`
}

// QuestionPool holds diagnostic questions bucketed by level id. Every level
// of the subject has an entry, possibly empty.
type QuestionPool map[int][]AssessmentQuestion

// AdaptiveAnswer records one answered question during a placement assessment.
// The stored order is the answer sequence.
type AdaptiveAnswer struct {
	QuestionID     string `json:"question_id"`
	LevelID        int    `json:"level_id"`
	SelectedOption int    `json:"selected_option"`
	Correct        bool   `json:"correct"`
}

// LevelScore is the per-level tally computed when an assessment finalizes
type LevelScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// AssessmentStatus tracks where a placement assessment is in its lifecycle
type AssessmentStatus string

const (
	// AssessmentNotStarted means the pool exists but no answer has been recorded
	AssessmentNotStarted AssessmentStatus = "not_started"
	// AssessmentInProgress means at least one answer has been recorded
	AssessmentInProgress AssessmentStatus = "in_progress"
	// AssessmentCompleted is terminal
	AssessmentCompleted AssessmentStatus = "completed"
)

// Assessment is one adaptive placement run for a user and subject.
// The question pool is snapshotted at creation so the run is self-contained.
// The pool carries correct answers and explanations, so it never serializes
// to JSON; clients only see individual questions with grading fields removed.
type Assessment struct {
	ID               int                `json:"id" db:"id"`
	UserID           int                `json:"user_id" db:"user_id"`
	SubjectID        int                `json:"subject_id" db:"subject_id"`
	Pool             QuestionPool       `json:"-" db:"pool"`
	Answers          []AdaptiveAnswer   `json:"answers" db:"answers"`
	CurrentLevelID   int                `json:"current_level_id" db:"current_level_id"`
	FinalLevelID     sql.NullInt64      `json:"-" db:"final_level_id"`
	SuggestedLevelID sql.NullInt64      `json:"-" db:"suggested_level_id"`
	Scores           map[int]LevelScore `json:"scores,omitempty" db:"scores"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	CompletedAt      sql.NullTime       `json:"-" db:"completed_at"`
}

// Status derives the lifecycle state from the stored fields
func (a *Assessment) Status() AssessmentStatus {
	if a.CompletedAt.Valid {
		return AssessmentCompleted
	}
	if len(a.Answers) > 0 {
		return AssessmentInProgress
	}
	return AssessmentNotStarted
}

// MarshalJSON includes the nullable fields as plain values when present
func (a Assessment) MarshalJSON() ([]byte, error) {
	type Alias Assessment
	aux := struct {
		Alias
		Status           AssessmentStatus `json:"status"`
		FinalLevelID     *int64           `json:"final_level_id,omitempty"`
		SuggestedLevelID *int64           `json:"suggested_level_id,omitempty"`
		CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	}{Alias: Alias(a), Status: a.Status()}
	if a.FinalLevelID.Valid {
		aux.FinalLevelID = &a.FinalLevelID.Int64
	}
	if a.SuggestedLevelID.Valid {
		aux.SuggestedLevelID = &a.SuggestedLevelID.Int64
	}
	if a.CompletedAt.Valid {
		aux.CompletedAt = &a.CompletedAt.Time
	}
	return json.Marshal(aux)
}

// QuizQuestion is one generated practice question
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Quiz is a generated set of practice questions for a subtopic
type Quiz struct {
	ID         int            `json:"id" db:"id"`
	UserID     int            `json:"user_id" db:"user_id"`
	SubtopicID int            `json:"subtopic_id" db:"subtopic_id"`
	Topic      string         `json:"topic,omitempty" db:"topic"`
	Difficulty int            `json:"difficulty" db:"difficulty"`
	Questions  []QuizQuestion `json:"questions" db:"questions"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// QuizAttempt is a graded submission of a quiz
type QuizAttempt struct {
	ID          int       `json:"id" db:"id"`
	QuizID      int       `json:"quiz_id" db:"quiz_id"`
	UserID      int       `json:"user_id" db:"user_id"`
	Answers     []int     `json:"answers" db:"answers"`
	Score       int       `json:"score" db:"score"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// SubtopicQuestionRecord is one answered question, the substrate for mastery tracking
type SubtopicQuestionRecord struct {
	ID              int       `json:"id" db:"id"`
	SubtopicID      int       `json:"subtopic_id" db:"subtopic_id"`
	UserID          int       `json:"user_id" db:"user_id"`
	QuizID          int       `json:"quiz_id" db:"quiz_id"`
	QuestionText    string    `json:"question_text" db:"question_text"`
	QuestionHash    string    `json:"question_hash" db:"question_hash"`
	IsCorrect       bool      `json:"is_correct" db:"is_correct"`
	DifficultyLevel int       `json:"difficulty_level" db:"difficulty_level"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// SubtopicMastery is the computed mastery state for one subtopic
type SubtopicMastery struct {
	SubtopicID         int    `json:"subtopic_id"`
	SubtopicName       string `json:"subtopic_name"`
	TrailingScore      int    `json:"trailing_score"`
	TotalAnswered      int    `json:"total_answered"`
	Passed             bool   `json:"passed"`
	QuestionsUntilPass int    `json:"questions_until_pass"`
}

// TestEligibility describes what kind of test a user should take next for a subtopic
type TestEligibility struct {
	SubtopicID      int    `json:"subtopic_id"`
	DifficultyLevel int    `json:"difficulty_level"`
	TestNumber      int    `json:"test_number,omitempty"`
	TestLabel       string `json:"test_label"`
	Passed          bool   `json:"passed"`
	TotalAnswered   int    `json:"total_answered"`
}

// PracticeTestLabel is reported instead of a numbered test once the
// trailing window is fully populated.
const PracticeTestLabel = "practice"

// DailyScore is one day's snapshot of a level's average trailing score
type DailyScore struct {
	Date  time.Time `json:"date"`
	Score int       `json:"score"`
}

// LevelProgress aggregates mastery across a level's subtopics
type LevelProgress struct {
	LevelID         int               `json:"level_id"`
	LevelName       string            `json:"level_name"`
	Subtopics       []SubtopicMastery `json:"subtopics"`
	ProgressPercent int               `json:"progress_percent"`
	DailyHistory    []DailyScore      `json:"daily_history"`
}

// UserSubjectLevel records a user's current placement within a subject
type UserSubjectLevel struct {
	UserID    int       `json:"user_id" db:"user_id"`
	SubjectID int       `json:"subject_id" db:"subject_id"`
	LevelID   int       `json:"level_id" db:"level_id"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LessonProgress records a user's completion of a lesson
type LessonProgress struct {
	UserID      int       `json:"user_id" db:"user_id"`
	LessonID    int       `json:"lesson_id" db:"lesson_id"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}
