package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"studypath/internal/config"
	"studypath/internal/models"
	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// ProgressServiceInterface defines mastery tracking operations
type ProgressServiceInterface interface {
	GetSubtopicMastery(ctx context.Context, userID, subtopicID int) (*models.SubtopicMastery, error)
	GetTestEligibility(ctx context.Context, userID, subtopicID int) (*models.TestEligibility, error)
	GetQuestionStats(ctx context.Context, userID, subtopicID int) (*QuestionStats, error)
	RecordQuestionResults(ctx context.Context, userID, subtopicID, quizID int, results []QuestionResult) error
	RecordDailyScore(ctx context.Context, userID, levelID int) error
	GetLevelProgress(ctx context.Context, userID, levelID int) (*models.LevelProgress, error)
}

// QuestionResult is one graded quiz question to record against a subtopic
type QuestionResult struct {
	QuestionText    string
	IsCorrect       bool
	DifficultyLevel int
}

// QuestionStats summarizes a user's answer history for a subtopic
type QuestionStats struct {
	TotalAnswered   int  `json:"total_answered"`
	TotalCorrect    int  `json:"total_correct"`
	TrailingScore   int  `json:"trailing_score"`
	TrailingWindow  int  `json:"trailing_window"`
	DifficultyLevel int  `json:"difficulty_level"`
	Passed          bool `json:"passed"`
}

// ProgressService tracks per-subtopic mastery over a trailing answer window
// and maintains per-level daily score snapshots.
type ProgressService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewProgressServiceWithLogger creates a new progress service
func NewProgressServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ProgressService {
	return &ProgressService{db: db, cfg: cfg, logger: logger}
}

// trailingScore is the percentage of correct answers in the window, rounded
// to the nearest integer. No answers scores zero.
func trailingScore(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// masteryPassed requires a full window of history and a trailing score
// strictly above the pass threshold
func masteryPassed(totalAnswered, trailing, window, threshold int) bool {
	return totalAnswered >= window && trailing > threshold
}

// difficultyTier maps lifetime volume to a difficulty tier, one tier per
// tierSize questions answered, capped at maxTier
func difficultyTier(totalAnswered, tierSize, maxTier int) int {
	tier := totalAnswered/tierSize + 1
	if tier > maxTier {
		return maxTier
	}
	return tier
}

// testLabel numbers tests by completed tiers until the window fills, after
// which every run is labeled practice
func testLabel(totalAnswered, tierSize, window int) (int, string) {
	number := totalAnswered/tierSize + 1
	if totalAnswered >= window {
		return number, models.PracticeTestLabel
	}
	return number, fmt.Sprintf("Test %d", number)
}

func questionsUntilPass(totalAnswered, window int) int {
	if remaining := window - totalAnswered; remaining > 0 {
		return remaining
	}
	return 0
}

// GetSubtopicMastery computes the trailing-window mastery state for a subtopic
func (s *ProgressService) GetSubtopicMastery(ctx context.Context, userID, subtopicID int) (result0 *models.SubtopicMastery, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "GetSubtopicMastery",
		observability.AttributeUserID(userID),
		observability.AttributeSubtopicID(subtopicID),
	)
	defer observability.FinishSpan(span, &err)

	total, windowCorrect, windowTotal, err := s.windowCounts(ctx, userID, subtopicID)
	if err != nil {
		return nil, err
	}

	window := s.cfg.MasteryWindow()
	trailing := trailingScore(windowCorrect, windowTotal)

	mastery := &models.SubtopicMastery{
		SubtopicID:         subtopicID,
		TrailingScore:      trailing,
		TotalAnswered:      total,
		Passed:             masteryPassed(total, trailing, window, s.cfg.MasteryPassThreshold()),
		QuestionsUntilPass: questionsUntilPass(total, window),
	}

	span.SetAttributes(
		attribute.Int("mastery.trailing_score", trailing),
		attribute.Bool("mastery.passed", mastery.Passed),
	)
	return mastery, nil
}

// GetTestEligibility reports which test the user should take next for a
// subtopic and at what difficulty
func (s *ProgressService) GetTestEligibility(ctx context.Context, userID, subtopicID int) (result0 *models.TestEligibility, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "GetTestEligibility",
		observability.AttributeUserID(userID),
		observability.AttributeSubtopicID(subtopicID),
	)
	defer observability.FinishSpan(span, &err)

	total, windowCorrect, windowTotal, err := s.windowCounts(ctx, userID, subtopicID)
	if err != nil {
		return nil, err
	}

	window := s.cfg.MasteryWindow()
	tierSize := s.cfg.MasteryTierSize()
	trailing := trailingScore(windowCorrect, windowTotal)
	number, label := testLabel(total, tierSize, window)

	return &models.TestEligibility{
		SubtopicID:      subtopicID,
		DifficultyLevel: difficultyTier(total, tierSize, s.cfg.MasteryMaxDifficulty()),
		TestNumber:      number,
		TestLabel:       label,
		Passed:          masteryPassed(total, trailing, window, s.cfg.MasteryPassThreshold()),
		TotalAnswered:   total,
	}, nil
}

// GetQuestionStats returns lifetime and trailing-window answer statistics
func (s *ProgressService) GetQuestionStats(ctx context.Context, userID, subtopicID int) (result0 *QuestionStats, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "GetQuestionStats",
		observability.AttributeUserID(userID),
		observability.AttributeSubtopicID(subtopicID),
	)
	defer observability.FinishSpan(span, &err)

	var total, totalCorrect int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct)
		 FROM subtopic_question_records
		 WHERE user_id = $1 AND subtopic_id = $2`,
		userID, subtopicID,
	).Scan(&total, &totalCorrect)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to count question records")
	}

	_, windowCorrect, windowTotal, err := s.windowCounts(ctx, userID, subtopicID)
	if err != nil {
		return nil, err
	}

	window := s.cfg.MasteryWindow()
	trailing := trailingScore(windowCorrect, windowTotal)

	return &QuestionStats{
		TotalAnswered:   total,
		TotalCorrect:    totalCorrect,
		TrailingScore:   trailing,
		TrailingWindow:  window,
		DifficultyLevel: difficultyTier(total, s.cfg.MasteryTierSize(), s.cfg.MasteryMaxDifficulty()),
		Passed:          masteryPassed(total, trailing, window, s.cfg.MasteryPassThreshold()),
	}, nil
}

// RecordQuestionResults stores graded quiz questions against a subtopic,
// hashing the question text for dedup-aware history
func (s *ProgressService) RecordQuestionResults(ctx context.Context, userID, subtopicID, quizID int, results []QuestionResult) (err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "RecordQuestionResults",
		observability.AttributeUserID(userID),
		observability.AttributeSubtopicID(subtopicID),
		attribute.Int("results.count", len(results)),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO subtopic_question_records
			 (subtopic_id, user_id, quiz_id, question_text, question_hash, is_correct, difficulty_level, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
			subtopicID, userID, quizID, r.QuestionText,
			contextutils.QuestionHash(r.QuestionText), r.IsCorrect, r.DifficultyLevel,
		)
		if err != nil {
			return contextutils.WrapError(err, "failed to insert question record")
		}
	}

	if err := tx.Commit(); err != nil {
		return contextutils.WrapError(err, "failed to commit question records")
	}
	return nil
}

// RecordDailyScore snapshots today's level score as the mean of trailing
// scores across every subtopic of the level. Subtopics with no history count
// as zero. One row per user, level and UTC day; later snapshots overwrite.
func (s *ProgressService) RecordDailyScore(ctx context.Context, userID, levelID int) (err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "RecordDailyScore",
		observability.AttributeUserID(userID),
		observability.AttributeLevelID(levelID),
	)
	defer observability.FinishSpan(span, &err)

	subtopics, err := s.levelSubtopics(ctx, levelID)
	if err != nil {
		return err
	}
	if len(subtopics) == 0 {
		return nil
	}

	sum := 0
	for _, subtopic := range subtopics {
		_, windowCorrect, windowTotal, err := s.windowCounts(ctx, userID, subtopic.ID)
		if err != nil {
			return err
		}
		sum += trailingScore(windowCorrect, windowTotal)
	}
	score := int(math.Round(float64(sum) / float64(len(subtopics))))

	day := contextutils.DateUTC(time.Now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO daily_level_scores (user_id, level_id, score_date, score)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, level_id, score_date)
		 DO UPDATE SET score = EXCLUDED.score`,
		userID, levelID, day, score,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to upsert daily score")
	}

	span.SetAttributes(attribute.Int("daily.score", score))
	return nil
}

// GetLevelProgress returns per-subtopic mastery for a level, an overall
// progress percentage, and the recent daily score history
func (s *ProgressService) GetLevelProgress(ctx context.Context, userID, levelID int) (result0 *models.LevelProgress, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "GetLevelProgress",
		observability.AttributeUserID(userID),
		observability.AttributeLevelID(levelID),
	)
	defer observability.FinishSpan(span, &err)

	subtopics, err := s.levelSubtopics(ctx, levelID)
	if err != nil {
		return nil, err
	}

	progress := &models.LevelProgress{
		LevelID:   levelID,
		Subtopics: make([]models.SubtopicMastery, 0, len(subtopics)),
	}

	passed := 0
	for _, subtopic := range subtopics {
		mastery, err := s.GetSubtopicMastery(ctx, userID, subtopic.ID)
		if err != nil {
			return nil, err
		}
		mastery.SubtopicName = subtopic.Name
		if mastery.Passed {
			passed++
		}
		progress.Subtopics = append(progress.Subtopics, *mastery)
	}
	if len(subtopics) > 0 {
		progress.ProgressPercent = int(math.Round(float64(passed) / float64(len(subtopics)) * 100))
	}

	// Reading progress refreshes today's snapshot so the history always
	// includes the current day, quiz activity or not
	if err := s.RecordDailyScore(ctx, userID, levelID); err != nil {
		return nil, err
	}

	history, err := s.dailyHistory(ctx, userID, levelID, config.DailyHistoryDays)
	if err != nil {
		return nil, err
	}
	progress.DailyHistory = history

	return progress, nil
}

// windowCounts returns the lifetime total plus correct/total inside the
// trailing window, newest answers first
func (s *ProgressService) windowCounts(ctx context.Context, userID, subtopicID int) (total, windowCorrect, windowTotal int, err error) {
	err = s.db.QueryRowContext(ctx,
		`WITH recent AS (
		     SELECT is_correct
		     FROM subtopic_question_records
		     WHERE user_id = $1 AND subtopic_id = $2
		     ORDER BY created_at DESC, id DESC
		     LIMIT $3
		 )
		 SELECT
		     (SELECT COUNT(*) FROM subtopic_question_records WHERE user_id = $1 AND subtopic_id = $2),
		     COUNT(*) FILTER (WHERE is_correct),
		     COUNT(*)
		 FROM recent`,
		userID, subtopicID, s.cfg.MasteryWindow(),
	).Scan(&total, &windowCorrect, &windowTotal)
	if err != nil {
		return 0, 0, 0, contextutils.WrapError(err, "failed to query trailing window")
	}
	return total, windowCorrect, windowTotal, nil
}

type subtopicRef struct {
	ID   int
	Name string
}

func (s *ProgressService) levelSubtopics(ctx context.Context, levelID int) ([]subtopicRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM subtopics WHERE level_id = $1 ORDER BY id`,
		levelID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subtopics")
	}
	defer func() { _ = rows.Close() }()

	var refs []subtopicRef
	for rows.Next() {
		var ref subtopicRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan subtopic")
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *ProgressService) dailyHistory(ctx context.Context, userID, levelID, days int) ([]models.DailyScore, error) {
	cutoff := contextutils.DateUTC(time.Now()).AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx,
		`SELECT score_date, score
		 FROM daily_level_scores
		 WHERE user_id = $1 AND level_id = $2 AND score_date >= $3
		 ORDER BY score_date ASC`,
		userID, levelID, cutoff,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query daily history")
	}
	defer func() { _ = rows.Close() }()

	history := []models.DailyScore{}
	for rows.Next() {
		var entry models.DailyScore
		if err := rows.Scan(&entry.Date, &entry.Score); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan daily score")
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// RecentQuestionTexts returns the most recent question texts for a subtopic,
// used to keep freshly generated quizzes from repeating questions
func (s *ProgressService) RecentQuestionTexts(ctx context.Context, userID, subtopicID, limit int) (result0 []string, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "RecentQuestionTexts",
		observability.AttributeUserID(userID),
		observability.AttributeSubtopicID(subtopicID),
		attribute.Int("limit", limit),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT question_text
		 FROM subtopic_question_records
		 WHERE user_id = $1 AND subtopic_id = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		userID, subtopicID, limit,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query recent questions")
	}
	defer func() { _ = rows.Close() }()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan question text")
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}
