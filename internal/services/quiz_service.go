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

// QuizServiceInterface defines quiz generation and grading operations
type QuizServiceInterface interface {
	CreateQuiz(ctx context.Context, userID int, req CreateQuizRequest) (*models.Quiz, error)
	GetQuiz(ctx context.Context, userID, quizID int) (*models.Quiz, error)
	SubmitAttempt(ctx context.Context, userID, quizID int, answers []int) (*AttemptResult, error)
}

// CreateQuizRequest asks for a quiz on a subtopic. Topic optionally narrows
// the quiz to a custom focus within the subtopic; it is vetted for relevance
// before any questions are generated.
type CreateQuizRequest struct {
	SubtopicID    int    `json:"subtopic_id" binding:"required"`
	Topic         string `json:"topic"`
	QuestionCount int    `json:"question_count"`
}

// AttemptResult is the graded outcome of a quiz submission
type AttemptResult struct {
	Attempt   *models.QuizAttempt   `json:"attempt"`
	Questions []models.QuizQuestion `json:"questions"`
	Correct   int                   `json:"correct"`
	Total     int                   `json:"total"`
}

// relevanceVerdict is the AI's judgment on whether a custom topic belongs
// to the subtopic
type relevanceVerdict struct {
	IsRelevant     bool   `json:"is_relevant"`
	Reason         string `json:"reason"`
	SuggestedTopic string `json:"suggested_topic"`
}

const defaultQuizQuestionCount = 5

// QuizService generates practice quizzes pitched at the user's current
// difficulty tier and feeds graded answers back into mastery tracking.
type QuizService struct {
	db       *sql.DB
	cfg      *config.Config
	logger   *observability.Logger
	ai       AIServiceInterface
	progress *ProgressService
	users    *UserService
}

// NewQuizServiceWithLogger creates a new quiz service
func NewQuizServiceWithLogger(db *sql.DB, ai AIServiceInterface, progress *ProgressService, users *UserService, cfg *config.Config, logger *observability.Logger) *QuizService {
	return &QuizService{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		ai:       ai,
		progress: progress,
		users:    users,
	}
}

// CreateQuiz generates a quiz for a subtopic. Custom topics are checked for
// relevance first and rejected with TOPIC_OUT_OF_SCOPE when they stray from
// the subtopic. Recently asked questions are excluded from generation.
func (s *QuizService) CreateQuiz(ctx context.Context, userID int, req CreateQuizRequest) (result0 *models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "CreateQuiz",
		observability.AttributeUserID(userID),
		observability.AttributeSubtopicID(req.SubtopicID),
		attribute.Bool("quiz.custom_topic", req.Topic != ""),
	)
	defer observability.FinishSpan(span, &err)

	subtopic, err := s.getSubtopic(ctx, req.SubtopicID)
	if err != nil {
		return nil, err
	}

	if req.Topic != "" {
		if err := s.checkTopicRelevance(ctx, subtopic, req.Topic); err != nil {
			return nil, err
		}
	}

	eligibility, err := s.progress.GetTestEligibility(ctx, userID, req.SubtopicID)
	if err != nil {
		return nil, err
	}

	exclude, err := s.progress.RecentQuestionTexts(ctx, userID, req.SubtopicID, config.QuizExclusionLimit)
	if err != nil {
		return nil, err
	}

	count := req.QuestionCount
	if count <= 0 {
		count = defaultQuizQuestionCount
	}

	prompt := buildQuizPrompt(subtopic, req.Topic, eligibility.DifficultyLevel, count, exclude)
	raw, err := s.ai.GenerateJSON(ctx, prompt, quizQuestionsSchema)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Questions []models.QuizQuestion `json:"questions"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "failed to decode quiz questions: %w", err)
	}

	quiz := &models.Quiz{
		UserID:     userID,
		SubtopicID: req.SubtopicID,
		Topic:      req.Topic,
		Difficulty: eligibility.DifficultyLevel,
		Questions:  payload.Questions,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.insertQuiz(ctx, quiz); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Quiz created", map[string]interface{}{
		"quiz_id":     quiz.ID,
		"subtopic_id": req.SubtopicID,
		"difficulty":  quiz.Difficulty,
		"questions":   len(quiz.Questions),
	})

	return quiz, nil
}

// GetQuiz returns a quiz owned by the user
func (s *QuizService) GetQuiz(ctx context.Context, userID, quizID int) (result0 *models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "GetQuiz",
		observability.AttributeUserID(userID),
		observability.AttributeQuizID(quizID),
	)
	defer observability.FinishSpan(span, &err)

	return s.getQuizForUser(ctx, userID, quizID)
}

// SubmitAttempt grades a quiz submission, records every question against the
// subtopic's mastery history, refreshes the daily level snapshot and advances
// the user's activity streak.
func (s *QuizService) SubmitAttempt(ctx context.Context, userID, quizID int, answers []int) (result0 *AttemptResult, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "SubmitAttempt",
		observability.AttributeUserID(userID),
		observability.AttributeQuizID(quizID),
	)
	defer observability.FinishSpan(span, &err)

	quiz, err := s.getQuizForUser(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if len(answers) != len(quiz.Questions) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput,
			"expected %d answers, got %d", len(quiz.Questions), len(answers))
	}

	correct := 0
	results := make([]QuestionResult, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		isCorrect := answers[i] == q.CorrectAnswer
		if isCorrect {
			correct++
		}
		results = append(results, QuestionResult{
			QuestionText:    q.Question,
			IsCorrect:       isCorrect,
			DifficultyLevel: quiz.Difficulty,
		})
	}

	score := gradeScore(correct, len(quiz.Questions))
	attempt := &models.QuizAttempt{
		QuizID:      quizID,
		UserID:      userID,
		Answers:     answers,
		Score:       score,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.insertAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	if err := s.progress.RecordQuestionResults(ctx, userID, quiz.SubtopicID, quizID, results); err != nil {
		return nil, err
	}

	levelID, err := s.subtopicLevelID(ctx, quiz.SubtopicID)
	if err != nil {
		return nil, err
	}
	if err := s.progress.RecordDailyScore(ctx, userID, levelID); err != nil {
		return nil, err
	}

	if err := s.users.TouchActivity(ctx, userID, time.Now()); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("attempt.score", score),
		attribute.Int("attempt.correct", correct),
	)

	return &AttemptResult{
		Attempt:   attempt,
		Questions: quiz.Questions,
		Correct:   correct,
		Total:     len(quiz.Questions),
	}, nil
}

func gradeScore(correct, total int) int {
	if total == 0 {
		return 0
	}
	return correct * 100 / total
}

// checkTopicRelevance rejects custom topics that do not belong to the subtopic
func (s *QuizService) checkTopicRelevance(ctx context.Context, subtopic *models.Subtopic, topic string) (err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "checkTopicRelevance",
		observability.AttributeSubtopicID(subtopic.ID),
	)
	defer observability.FinishSpan(span, &err)

	prompt := fmt.Sprintf(
		"A student working on the subtopic %q (%s) asked for a quiz about %q.\n"+
			"Decide whether that request is within the scope of the subtopic.\n"+
			`Respond with JSON only: {"is_relevant": true/false, "reason": "...", "suggested_topic": "..."}.`+
			" When irrelevant, suggest a related topic that is in scope.",
		subtopic.Name, subtopic.Description, topic,
	)

	raw, err := s.ai.GenerateJSON(ctx, prompt, topicRelevanceSchema)
	if err != nil {
		return err
	}

	var verdict relevanceVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "failed to decode relevance verdict: %w", err)
	}

	span.SetAttributes(attribute.Bool("topic.relevant", verdict.IsRelevant))
	if !verdict.IsRelevant {
		return &contextutils.TopicOutOfScopeError{
			Reason:         verdict.Reason,
			SuggestedTopic: verdict.SuggestedTopic,
		}
	}
	return nil
}

// difficultyInstruction spells out the expected question depth per tier
func difficultyInstruction(tier int) string {
	switch tier {
	case 1:
		return "Ask foundational questions testing basic definitions and single-step recall."
	case 2:
		return "Ask questions requiring understanding of concepts and simple two-step application."
	case 3:
		return "Ask questions combining multiple concepts with multi-step reasoning."
	default:
		return "Ask challenging questions with edge cases, subtle distinctions and multi-step analysis."
	}
}

// buildQuizPrompt writes the quiz generation prompt, pinning difficulty and
// listing recently asked questions to avoid repeats
func buildQuizPrompt(subtopic *models.Subtopic, topic string, tier, count int, exclude []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d multiple-choice practice questions for the subtopic %q.\n", count, subtopic.Name)
	if subtopic.Description != "" {
		fmt.Fprintf(&b, "Subtopic description: %s\n", subtopic.Description)
	}
	if subtopic.PromptHint != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", subtopic.PromptHint)
	}
	if topic != "" {
		fmt.Fprintf(&b, "Focus specifically on: %s\n", topic)
	}
	fmt.Fprintf(&b, "Difficulty tier %d of 4. %s\n", tier, difficultyInstruction(tier))
	if len(exclude) > 0 {
		b.WriteString("\nDo NOT repeat any of these recently asked questions:\n")
		for _, text := range exclude {
			fmt.Fprintf(&b, "- %s\n", text)
		}
	}
	b.WriteString("\nEach question must have exactly 4 options and a correct_answer index (0-3) with a short explanation.\n")
	b.WriteString(`Respond with JSON only: {"questions": [{"question": "...", "options": ["...","...","...","..."], "correct_answer": 0, "explanation": "..."}]}.`)
	return b.String()
}

// ---- persistence ----

func (s *QuizService) getSubtopic(ctx context.Context, subtopicID int) (*models.Subtopic, error) {
	var subtopic models.Subtopic
	var promptHint sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, level_id, name, description, order_index, prompt_hint
		 FROM subtopics WHERE id = $1`,
		subtopicID,
	).Scan(&subtopic.ID, &subtopic.LevelID, &subtopic.Name, &subtopic.Description, &subtopic.OrderIndex, &promptHint)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "subtopic not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subtopic")
	}
	subtopic.PromptHint = promptHint.String
	return &subtopic, nil
}

func (s *QuizService) subtopicLevelID(ctx context.Context, subtopicID int) (int, error) {
	var levelID int
	err := s.db.QueryRowContext(ctx,
		`SELECT level_id FROM subtopics WHERE id = $1`, subtopicID,
	).Scan(&levelID)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to query subtopic level")
	}
	return levelID, nil
}

func (s *QuizService) insertQuiz(ctx context.Context, quiz *models.Quiz) error {
	questionsJSON, err := json.Marshal(quiz.Questions)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal quiz questions")
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO quizzes (user_id, subtopic_id, topic, difficulty, questions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		quiz.UserID, quiz.SubtopicID, quiz.Topic, quiz.Difficulty, questionsJSON, quiz.CreatedAt,
	).Scan(&quiz.ID)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert quiz")
	}
	return nil
}

func (s *QuizService) getQuizForUser(ctx context.Context, userID, quizID int) (*models.Quiz, error) {
	var quiz models.Quiz
	var questionsJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, subtopic_id, topic, difficulty, questions, created_at
		 FROM quizzes WHERE id = $1`,
		quizID,
	).Scan(&quiz.ID, &quiz.UserID, &quiz.SubtopicID, &quiz.Topic, &quiz.Difficulty, &questionsJSON, &quiz.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "quiz not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query quiz")
	}
	if quiz.UserID != userID {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "quiz belongs to another user")
	}
	if err := json.Unmarshal(questionsJSON, &quiz.Questions); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode quiz questions")
	}
	return &quiz, nil
}

func (s *QuizService) insertAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	answersJSON, err := json.Marshal(attempt.Answers)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal answers")
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO quiz_attempts (quiz_id, user_id, answers, score, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		attempt.QuizID, attempt.UserID, answersJSON, attempt.Score, attempt.CompletedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert quiz attempt")
	}
	return nil
}
