package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"studypath/internal/config"
	"studypath/internal/models"
	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// AssessmentServiceInterface defines operations for adaptive placement assessments
type AssessmentServiceInterface interface {
	StartAssessment(ctx context.Context, userID, subjectID int) (*models.Assessment, error)
	GetAssessment(ctx context.Context, userID, assessmentID int) (*models.Assessment, *models.AssessmentQuestion, error)
	SubmitAnswer(ctx context.Context, userID, assessmentID int, questionID string, answerIndex int) (*SubmitAnswerResult, error)
	FinalizeAssessment(ctx context.Context, userID, assessmentID int) (*models.Assessment, error)
}

// SubmitAnswerResult reports the outcome of one answered diagnostic question
type SubmitAnswerResult struct {
	Correct       bool                       `json:"correct"`
	Explanation   string                     `json:"explanation"`
	NextQuestion  *models.AssessmentQuestion `json:"next_question,omitempty"`
	Done          bool                       `json:"done"`
	Assessment    *models.Assessment         `json:"assessment"`
	AnswersSoFar  int                        `json:"answers_so_far"`
	QuestionLimit int                        `json:"question_limit"`
}

// AssessmentService drives the adaptive placement flow: it builds the
// diagnostic question pool, walks the user up and down the level ladder one
// step per answer, and finalizes placement when the run terminates.
type AssessmentService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
	ai     AIServiceInterface
}

// NewAssessmentServiceWithLogger creates a new assessment service
func NewAssessmentServiceWithLogger(db *sql.DB, ai AIServiceInterface, cfg *config.Config, logger *observability.Logger) *AssessmentService {
	return &AssessmentService{
		db:     db,
		cfg:    cfg,
		logger: logger,
		ai:     ai,
	}
}

// StartAssessment builds a fresh question pool for the subject and creates an
// assessment starting at the middle level. An empty pool finalizes the
// assessment immediately with zero answers.
func (s *AssessmentService) StartAssessment(ctx context.Context, userID, subjectID int) (result0 *models.Assessment, err error) {
	ctx, span := observability.TraceAssessmentFunction(ctx, "StartAssessment",
		observability.AttributeUserID(userID),
		observability.AttributeSubjectID(subjectID),
	)
	defer observability.FinishSpan(span, &err)

	subject, err := s.getSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	levels, err := s.getLevels(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "subject has no levels")
	}

	pool, err := s.buildQuestionPool(ctx, subject, levels)
	if err != nil {
		return nil, err
	}

	startLevel := levels[len(levels)/2]
	assessment := &models.Assessment{
		UserID:         userID,
		SubjectID:      subjectID,
		Pool:           pool,
		Answers:        []models.AdaptiveAnswer{},
		CurrentLevelID: startLevel.ID,
		CreatedAt:      time.Now().UTC(),
	}

	if poolSize(pool) == 0 {
		// Nothing to ask: terminate on the spot at the starting level
		now := time.Now().UTC()
		assessment.CompletedAt = sql.NullTime{Time: now, Valid: true}
		assessment.FinalLevelID = sql.NullInt64{Int64: int64(startLevel.ID), Valid: true}
		assessment.SuggestedLevelID = sql.NullInt64{Int64: int64(startLevel.ID), Valid: true}
		assessment.Scores = map[int]models.LevelScore{}
	}

	if err := s.insertAssessment(ctx, assessment); err != nil {
		return nil, err
	}

	if assessment.CompletedAt.Valid {
		if err := s.upsertUserSubjectLevel(ctx, userID, subjectID, startLevel.ID); err != nil {
			return nil, err
		}
	}

	s.logger.Info(ctx, "Assessment started", map[string]interface{}{
		"assessment_id": assessment.ID,
		"user_id":       userID,
		"subject_id":    subjectID,
		"pool_size":     poolSize(pool),
		"start_level":   startLevel.ID,
	})

	return assessment, nil
}

// GetAssessment returns the assessment and, while it is still running, the
// next question the user should answer.
func (s *AssessmentService) GetAssessment(ctx context.Context, userID, assessmentID int) (result0 *models.Assessment, result1 *models.AssessmentQuestion, err error) {
	ctx, span := observability.TraceAssessmentFunction(ctx, "GetAssessment",
		observability.AttributeUserID(userID),
		observability.AttributeAssessmentID(assessmentID),
	)
	defer observability.FinishSpan(span, &err)

	assessment, err := s.getAssessmentForUser(ctx, userID, assessmentID)
	if err != nil {
		return nil, nil, err
	}

	if assessment.Status() == models.AssessmentCompleted {
		return assessment, nil, nil
	}

	levels, err := s.getLevels(ctx, assessment.SubjectID)
	if err != nil {
		return nil, nil, err
	}

	next := nextQuestion(levels, assessment.Pool, assessment.CurrentLevelID, askedSet(assessment.Answers))
	return assessment, next, nil
}

// SubmitAnswer grades one diagnostic answer, records it, moves the current
// level one step, and auto-finalizes when the run terminates (budget reached
// or pool exhausted).
func (s *AssessmentService) SubmitAnswer(ctx context.Context, userID, assessmentID int, questionID string, answerIndex int) (result0 *SubmitAnswerResult, err error) {
	ctx, span := observability.TraceAssessmentFunction(ctx, "SubmitAnswer",
		observability.AttributeUserID(userID),
		observability.AttributeAssessmentID(assessmentID),
		attribute.String("question.id", questionID),
	)
	defer observability.FinishSpan(span, &err)

	assessment, err := s.getAssessmentForUser(ctx, userID, assessmentID)
	if err != nil {
		return nil, err
	}

	if assessment.Status() == models.AssessmentCompleted {
		return nil, contextutils.WrapError(contextutils.ErrAssessmentCompleted, "cannot answer a completed assessment")
	}

	levels, err := s.getLevels(ctx, assessment.SubjectID)
	if err != nil {
		return nil, err
	}

	question := findQuestion(assessment.Pool, questionID)
	if question == nil {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "question not in assessment pool")
	}
	if asked := askedSet(assessment.Answers); asked[questionID] {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "question already answered")
	}
	if answerIndex < 0 || answerIndex >= len(question.Options) {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "answer index out of range")
	}

	budget := s.cfg.QuestionBudget()
	correct, next, done := applyAnswer(assessment, levels, question, answerIndex, budget, time.Now().UTC())

	if err := s.updateAssessment(ctx, assessment); err != nil {
		return nil, err
	}
	if done {
		if err := s.upsertUserSubjectLevel(ctx, userID, assessment.SubjectID, assessment.CurrentLevelID); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Bool("answer.correct", correct),
		attribute.Bool("assessment.done", done),
		attribute.Int("assessment.answers", len(assessment.Answers)),
	)

	return &SubmitAnswerResult{
		Correct:       correct,
		Explanation:   question.Explanation,
		NextQuestion:  next,
		Done:          done,
		Assessment:    assessment,
		AnswersSoFar:  len(assessment.Answers),
		QuestionLimit: budget,
	}, nil
}

// FinalizeAssessment explicitly completes a run, for users who stop early.
// Finalizing an already completed assessment is an error.
func (s *AssessmentService) FinalizeAssessment(ctx context.Context, userID, assessmentID int) (result0 *models.Assessment, err error) {
	ctx, span := observability.TraceAssessmentFunction(ctx, "FinalizeAssessment",
		observability.AttributeUserID(userID),
		observability.AttributeAssessmentID(assessmentID),
	)
	defer observability.FinishSpan(span, &err)

	assessment, err := s.getAssessmentForUser(ctx, userID, assessmentID)
	if err != nil {
		return nil, err
	}

	if assessment.Status() == models.AssessmentCompleted {
		return nil, contextutils.WrapError(contextutils.ErrAssessmentCompleted, "assessment already completed")
	}

	finalizeInPlace(assessment, time.Now().UTC())

	if err := s.updateAssessment(ctx, assessment); err != nil {
		return nil, err
	}
	if err := s.upsertUserSubjectLevel(ctx, userID, assessment.SubjectID, assessment.CurrentLevelID); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Assessment finalized", map[string]interface{}{
		"assessment_id": assessment.ID,
		"final_level":   assessment.CurrentLevelID,
		"answers":       len(assessment.Answers),
	})

	return assessment, nil
}

// applyAnswer advances the run by one graded answer: it records the answer
// with the selected option, moves the current level one step, and picks the
// next question unless the budget is spent or the pool is exhausted, in
// which case it finalizes the assessment in place.
func applyAnswer(a *models.Assessment, levels []models.Level, question *models.AssessmentQuestion, answerIndex, budget int, now time.Time) (correct bool, next *models.AssessmentQuestion, done bool) {
	correct = answerIndex == question.CorrectAnswer
	a.Answers = append(a.Answers, models.AdaptiveAnswer{
		QuestionID:     question.ID,
		LevelID:        question.LevelID,
		SelectedOption: answerIndex,
		Correct:        correct,
	})

	currentIdx := moveLevel(levels, levelIndex(levels, a.CurrentLevelID), correct)
	a.CurrentLevelID = levels[currentIdx].ID

	if len(a.Answers) < budget {
		next = nextQuestion(levels, a.Pool, a.CurrentLevelID, askedSet(a.Answers))
	}
	done = next == nil
	if done {
		finalizeInPlace(a, now)
	}
	return correct, next, done
}

// finalizeInPlace computes scores and stamps the terminal fields. The
// suggested level is the final placement level, not a score-weighted pick.
func finalizeInPlace(a *models.Assessment, now time.Time) {
	a.Scores = computeScores(a.Answers)
	a.FinalLevelID = sql.NullInt64{Int64: int64(a.CurrentLevelID), Valid: true}
	a.SuggestedLevelID = sql.NullInt64{Int64: int64(a.CurrentLevelID), Valid: true}
	a.CompletedAt = sql.NullTime{Time: now, Valid: true}
}

// computeScores tallies per-level correct/total from the recorded answers.
// Levels never answered do not appear in the map.
func computeScores(answers []models.AdaptiveAnswer) map[int]models.LevelScore {
	scores := make(map[int]models.LevelScore)
	for _, ans := range answers {
		score := scores[ans.LevelID]
		score.Total++
		if ans.Correct {
			score.Correct++
		}
		scores[ans.LevelID] = score
	}
	return scores
}

// nextQuestion picks the next unasked question deterministically: the current
// level first, then outward one distance at a time, preferring harder over
// easier at equal distance. Returns nil when the pool is exhausted.
func nextQuestion(levels []models.Level, pool models.QuestionPool, currentLevelID int, asked map[string]bool) *models.AssessmentQuestion {
	currentIdx := levelIndex(levels, currentLevelID)
	if currentIdx < 0 {
		return nil
	}

	if q := firstUnasked(pool[levels[currentIdx].ID], asked); q != nil {
		return q
	}

	for k := 1; k < len(levels); k++ {
		if up := currentIdx + k; up < len(levels) {
			if q := firstUnasked(pool[levels[up].ID], asked); q != nil {
				return q
			}
		}
		if down := currentIdx - k; down >= 0 {
			if q := firstUnasked(pool[levels[down].ID], asked); q != nil {
				return q
			}
		}
	}
	return nil
}

func firstUnasked(questions []models.AssessmentQuestion, asked map[string]bool) *models.AssessmentQuestion {
	for i := range questions {
		if !asked[questions[i].ID] {
			return &questions[i]
		}
	}
	return nil
}

func findQuestion(pool models.QuestionPool, questionID string) *models.AssessmentQuestion {
	for _, questions := range pool {
		for i := range questions {
			if questions[i].ID == questionID {
				return &questions[i]
			}
		}
	}
	return nil
}

func askedSet(answers []models.AdaptiveAnswer) map[string]bool {
	asked := make(map[string]bool, len(answers))
	for _, ans := range answers {
		asked[ans.QuestionID] = true
	}
	return asked
}

// moveLevel steps one level up on a correct answer and one level down on an
// incorrect one, clamped to the ladder bounds
func moveLevel(levels []models.Level, currentIdx int, correct bool) int {
	if correct {
		if currentIdx < len(levels)-1 {
			return currentIdx + 1
		}
		return currentIdx
	}
	if currentIdx > 0 {
		return currentIdx - 1
	}
	return currentIdx
}

func levelIndex(levels []models.Level, levelID int) int {
	for i := range levels {
		if levels[i].ID == levelID {
			return i
		}
	}
	return -1
}

func poolSize(pool models.QuestionPool) int {
	total := 0
	for _, questions := range pool {
		total += len(questions)
	}
	return total
}

// buildQuestionPool generates diagnostic questions for every level of the
// subject in a single batched request and buckets them by level id. Any
// generation or validation failure fails the whole build; there is no
// partial pool.
func (s *AssessmentService) buildQuestionPool(ctx context.Context, subject *models.Subject, levels []models.Level) (result0 models.QuestionPool, err error) {
	ctx, span := observability.TraceAssessmentFunction(ctx, "buildQuestionPool",
		observability.AttributeSubjectID(subject.ID),
		attribute.Int("levels.count", len(levels)),
		attribute.Int("questions.per_level", s.cfg.QuestionsPerLevel()),
	)
	defer observability.FinishSpan(span, &err)

	prompt := buildPoolPrompt(subject, levels, s.cfg.QuestionsPerLevel())

	raw, err := s.ai.GenerateJSON(ctx, prompt, assessmentQuestionsSchema)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Questions []models.AssessmentQuestion `json:"questions"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "failed to decode question pool: %w", err)
	}

	// Every level gets an entry; questions with unknown level ids are dropped
	pool := make(models.QuestionPool, len(levels))
	known := make(map[int]bool, len(levels))
	for _, level := range levels {
		pool[level.ID] = []models.AssessmentQuestion{}
		known[level.ID] = true
	}
	dropped := 0
	for _, q := range payload.Questions {
		if !known[q.LevelID] {
			dropped++
			continue
		}
		pool[q.LevelID] = append(pool[q.LevelID], q)
	}

	if dropped > 0 {
		s.logger.Warn(ctx, "Dropped questions with unknown level ids", map[string]interface{}{
			"dropped": dropped,
			"subject": subject.ID,
		})
	}
	span.SetAttributes(
		attribute.Int("pool.size", poolSize(pool)),
		attribute.Int("pool.dropped", dropped),
	)

	return pool, nil
}

// buildPoolPrompt writes the single batched generation prompt covering all levels
func buildPoolPrompt(subject *models.Subject, levels []models.Level, perLevel int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are generating a placement assessment for the subject %q.\n", subject.Name)
	b.WriteString("Generate multiple-choice diagnostic questions for ALL of the following levels, ordered from easiest to hardest:\n\n")
	for _, level := range levels {
		fmt.Fprintf(&b, "- Level %q (level_id %d): %s\n", level.Name, level.ID, level.Description)
	}
	fmt.Fprintf(&b, "\nGenerate exactly %d questions per level. Each question must have exactly 4 options, ", perLevel)
	b.WriteString("a correct_answer index (0-3), a short explanation, the level name, the numeric level_id, and a unique string id.\n")
	b.WriteString(`Respond with JSON only, in the shape {"questions": [{"id": "...", "question": "...", "options": ["...","...","...","..."], "correct_answer": 0, "explanation": "...", "level": "...", "level_id": 1}]}.`)
	return b.String()
}

// ---- persistence ----

func (s *AssessmentService) getSubject(ctx context.Context, subjectID int) (*models.Subject, error) {
	var subject models.Subject
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, description, created_at FROM subjects WHERE id = $1`,
		subjectID,
	).Scan(&subject.ID, &subject.Name, &subject.Slug, &subject.Description, &subject.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "subject not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subject")
	}
	return &subject, nil
}

func (s *AssessmentService) getLevels(ctx context.Context, subjectID int) ([]models.Level, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, name, description, order_index
		 FROM levels WHERE subject_id = $1 ORDER BY order_index ASC`,
		subjectID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query levels")
	}
	defer func() { _ = rows.Close() }()

	var levels []models.Level
	for rows.Next() {
		var level models.Level
		if err := rows.Scan(&level.ID, &level.SubjectID, &level.Name, &level.Description, &level.OrderIndex); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan level")
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

func (s *AssessmentService) insertAssessment(ctx context.Context, a *models.Assessment) error {
	poolJSON, err := json.Marshal(a.Pool)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal pool")
	}
	answersJSON, err := json.Marshal(a.Answers)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal answers")
	}
	scoresJSON, err := marshalScores(a.Scores)
	if err != nil {
		return err
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO assessments
		 (user_id, subject_id, pool, answers, current_level_id, final_level_id, suggested_level_id, scores, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		a.UserID, a.SubjectID, poolJSON, answersJSON, a.CurrentLevelID,
		a.FinalLevelID, a.SuggestedLevelID, scoresJSON, a.CreatedAt, a.CompletedAt,
	).Scan(&a.ID)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert assessment")
	}
	return nil
}

func (s *AssessmentService) updateAssessment(ctx context.Context, a *models.Assessment) error {
	answersJSON, err := json.Marshal(a.Answers)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal answers")
	}
	scoresJSON, err := marshalScores(a.Scores)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE assessments
		 SET answers = $1, current_level_id = $2, final_level_id = $3,
		     suggested_level_id = $4, scores = $5, completed_at = $6
		 WHERE id = $7`,
		answersJSON, a.CurrentLevelID, a.FinalLevelID, a.SuggestedLevelID, scoresJSON, a.CompletedAt, a.ID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to update assessment")
	}
	return nil
}

func (s *AssessmentService) getAssessmentForUser(ctx context.Context, userID, assessmentID int) (*models.Assessment, error) {
	var (
		a           models.Assessment
		poolJSON    []byte
		answersJSON []byte
		scoresJSON  []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, subject_id, pool, answers, current_level_id,
		        final_level_id, suggested_level_id, scores, created_at, completed_at
		 FROM assessments WHERE id = $1`,
		assessmentID,
	).Scan(&a.ID, &a.UserID, &a.SubjectID, &poolJSON, &answersJSON, &a.CurrentLevelID,
		&a.FinalLevelID, &a.SuggestedLevelID, &scoresJSON, &a.CreatedAt, &a.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "assessment not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query assessment")
	}

	if a.UserID != userID {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "assessment belongs to another user")
	}

	if err := json.Unmarshal(poolJSON, &a.Pool); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode pool")
	}
	if err := json.Unmarshal(answersJSON, &a.Answers); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode answers")
	}
	if len(scoresJSON) > 0 && string(scoresJSON) != "null" {
		if err := json.Unmarshal(scoresJSON, &a.Scores); err != nil {
			return nil, contextutils.WrapError(err, "failed to decode scores")
		}
	}

	return &a, nil
}

func (s *AssessmentService) upsertUserSubjectLevel(ctx context.Context, userID, subjectID, levelID int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_subject_levels (user_id, subject_id, level_id, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, subject_id)
		 DO UPDATE SET level_id = EXCLUDED.level_id, updated_at = NOW()`,
		userID, subjectID, levelID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to upsert user subject level")
	}
	return nil
}

func marshalScores(scores map[int]models.LevelScore) ([]byte, error) {
	if scores == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal scores")
	}
	return data, nil
}
