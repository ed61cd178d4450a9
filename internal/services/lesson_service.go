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

// LessonServiceInterface defines lesson generation and progress operations
type LessonServiceInterface interface {
	GenerateLessonsForSubtopic(ctx context.Context, subtopicID int) ([]models.Lesson, error)
	GetLessons(ctx context.Context, subtopicID int) ([]models.Lesson, error)
	HasLessons(ctx context.Context, subtopicID int) (bool, error)
	CompleteLesson(ctx context.Context, userID, lessonID int) error
	GoDeeper(ctx context.Context, userID, lessonID int, question string) (string, error)
}

// lessonPlan is the AI's outline for a subtopic's lesson sequence
type lessonPlan struct {
	Lessons []struct {
		Title   string `json:"title"`
		Outline string `json:"outline"`
	} `json:"lessons"`
}

// LessonService generates lesson sequences for subtopics in two passes, a
// plan of titles and outlines followed by full content per lesson, and
// tracks which lessons each user has completed.
type LessonService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
	ai     AIServiceInterface
}

// NewLessonServiceWithLogger creates a new lesson service
func NewLessonServiceWithLogger(db *sql.DB, ai AIServiceInterface, cfg *config.Config, logger *observability.Logger) *LessonService {
	return &LessonService{db: db, cfg: cfg, logger: logger, ai: ai}
}

// GenerateLessonsForSubtopic builds the full lesson sequence for a subtopic.
// Existing lessons are returned as-is rather than regenerated.
func (s *LessonService) GenerateLessonsForSubtopic(ctx context.Context, subtopicID int) (result0 []models.Lesson, err error) {
	ctx, span := observability.TraceLessonFunction(ctx, "GenerateLessonsForSubtopic",
		observability.AttributeSubtopicID(subtopicID),
	)
	defer observability.FinishSpan(span, &err)

	existing, err := s.GetLessons(ctx, subtopicID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		span.SetAttributes(attribute.Bool("lessons.already_present", true))
		return existing, nil
	}

	subtopic, err := s.getSubtopic(ctx, subtopicID)
	if err != nil {
		return nil, err
	}

	plan, err := s.generatePlan(ctx, subtopic)
	if err != nil {
		return nil, err
	}

	lessons := make([]models.Lesson, 0, len(plan.Lessons))
	for i, planned := range plan.Lessons {
		content, err := s.generateContent(ctx, subtopic, planned.Title, planned.Outline, i+1, len(plan.Lessons))
		if err != nil {
			return nil, err
		}
		lesson := models.Lesson{
			SubtopicID: subtopicID,
			Title:      planned.Title,
			Content:    content,
			OrderIndex: i,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.insertLesson(ctx, &lesson); err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}

	s.logger.Info(ctx, "Lessons generated", map[string]interface{}{
		"subtopic_id": subtopicID,
		"count":       len(lessons),
	})
	return lessons, nil
}

// GetLessons returns the subtopic's lessons in order
func (s *LessonService) GetLessons(ctx context.Context, subtopicID int) (result0 []models.Lesson, err error) {
	ctx, span := observability.TraceLessonFunction(ctx, "GetLessons",
		observability.AttributeSubtopicID(subtopicID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subtopic_id, title, content, order_index, created_at
		 FROM lessons WHERE subtopic_id = $1 ORDER BY order_index ASC`,
		subtopicID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query lessons")
	}
	defer func() { _ = rows.Close() }()

	var lessons []models.Lesson
	for rows.Next() {
		var lesson models.Lesson
		if err := rows.Scan(&lesson.ID, &lesson.SubtopicID, &lesson.Title, &lesson.Content, &lesson.OrderIndex, &lesson.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan lesson")
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}

// HasLessons reports whether the subtopic already has generated lessons
func (s *LessonService) HasLessons(ctx context.Context, subtopicID int) (result0 bool, err error) {
	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lessons WHERE subtopic_id = $1`, subtopicID,
	).Scan(&count)
	if err != nil {
		return false, contextutils.WrapError(err, "failed to count lessons")
	}
	return count > 0, nil
}

// CompleteLesson marks a lesson completed for the user. Completing an
// already completed lesson is a no-op.
func (s *LessonService) CompleteLesson(ctx context.Context, userID, lessonID int) (err error) {
	ctx, span := observability.TraceLessonFunction(ctx, "CompleteLesson",
		observability.AttributeUserID(userID),
		attribute.Int("lesson.id", lessonID),
	)
	defer observability.FinishSpan(span, &err)

	if _, err := s.getLesson(ctx, lessonID); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lesson_progress (user_id, lesson_id, completed_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, lesson_id) DO NOTHING`,
		userID, lessonID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to record lesson completion")
	}
	return nil
}

// GoDeeper answers a follow-up question about a lesson. The question is
// vetted for relevance to the lesson first.
func (s *LessonService) GoDeeper(ctx context.Context, userID, lessonID int, question string) (result0 string, err error) {
	ctx, span := observability.TraceLessonFunction(ctx, "GoDeeper",
		observability.AttributeUserID(userID),
		attribute.Int("lesson.id", lessonID),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(question) == "" {
		return "", contextutils.WrapError(contextutils.ErrMissingRequired, "question is required")
	}

	lesson, err := s.getLesson(ctx, lessonID)
	if err != nil {
		return "", err
	}

	if err := s.checkQuestionRelevance(ctx, lesson, question); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(
		"A student read the lesson %q and asked: %s\n"+
			"Lesson content for context:\n%s\n\n"+
			"Answer the question with a deeper explanation that builds on the lesson.\n"+
			`Respond with JSON only: {"explanation": "..."}.`,
		lesson.Title, question, lesson.Content,
	)
	raw, err := s.ai.GenerateJSON(ctx, prompt, deeperExplanationSchema)
	if err != nil {
		return "", err
	}

	var payload struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "failed to decode explanation: %w", err)
	}
	return payload.Explanation, nil
}

func (s *LessonService) checkQuestionRelevance(ctx context.Context, lesson *models.Lesson, question string) error {
	prompt := fmt.Sprintf(
		"A student reading the lesson %q asked: %q\n"+
			"Decide whether the question is about the lesson's material.\n"+
			`Respond with JSON only: {"is_relevant": true/false, "reason": "...", "suggested_topic": "..."}.`,
		lesson.Title, question,
	)

	raw, err := s.ai.GenerateJSON(ctx, prompt, topicRelevanceSchema)
	if err != nil {
		return err
	}

	var verdict relevanceVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "failed to decode relevance verdict: %w", err)
	}
	if !verdict.IsRelevant {
		return &contextutils.TopicOutOfScopeError{
			Reason:         verdict.Reason,
			SuggestedTopic: verdict.SuggestedTopic,
		}
	}
	return nil
}

func (s *LessonService) generatePlan(ctx context.Context, subtopic *models.Subtopic) (result0 *lessonPlan, err error) {
	ctx, span := observability.TraceLessonFunction(ctx, "generatePlan",
		observability.AttributeSubtopicID(subtopic.ID),
	)
	defer observability.FinishSpan(span, &err)

	prompt := buildLessonPlanPrompt(subtopic, s.cfg.LessonsPerSubtopic())
	raw, err := s.ai.GenerateJSON(ctx, prompt, lessonPlanSchema)
	if err != nil {
		return nil, err
	}

	var plan lessonPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "failed to decode lesson plan: %w", err)
	}
	return &plan, nil
}

func (s *LessonService) generateContent(ctx context.Context, subtopic *models.Subtopic, title, outline string, position, total int) (result0 string, err error) {
	ctx, span := observability.TraceLessonFunction(ctx, "generateContent",
		observability.AttributeSubtopicID(subtopic.ID),
		attribute.Int("lesson.position", position),
	)
	defer observability.FinishSpan(span, &err)

	prompt := buildLessonContentPrompt(subtopic, title, outline, position, total)
	raw, err := s.ai.GenerateJSON(ctx, prompt, lessonContentSchema)
	if err != nil {
		return "", err
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "failed to decode lesson content: %w", err)
	}
	return payload.Content, nil
}

func buildLessonPlanPrompt(subtopic *models.Subtopic, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a sequence of %d short lessons teaching the subtopic %q.\n", count, subtopic.Name)
	if subtopic.Description != "" {
		fmt.Fprintf(&b, "Subtopic description: %s\n", subtopic.Description)
	}
	if subtopic.PromptHint != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", subtopic.PromptHint)
	}
	b.WriteString("Lessons must build on each other from fundamentals to application.\n")
	b.WriteString(`Respond with JSON only: {"lessons": [{"title": "...", "outline": "..."}]}.`)
	return b.String()
}

func buildLessonContentPrompt(subtopic *models.Subtopic, title, outline string, position, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write lesson %d of %d for the subtopic %q.\n", position, total, subtopic.Name)
	fmt.Fprintf(&b, "Lesson title: %s\n", title)
	if outline != "" {
		fmt.Fprintf(&b, "Outline to follow: %s\n", outline)
	}
	b.WriteString("Write the full lesson in markdown with worked examples.\n")
	b.WriteString(`Respond with JSON only: {"content": "..."}.`)
	return b.String()
}

func (s *LessonService) getSubtopic(ctx context.Context, subtopicID int) (*models.Subtopic, error) {
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

func (s *LessonService) getLesson(ctx context.Context, lessonID int) (*models.Lesson, error) {
	var lesson models.Lesson
	err := s.db.QueryRowContext(ctx,
		`SELECT id, subtopic_id, title, content, order_index, created_at
		 FROM lessons WHERE id = $1`,
		lessonID,
	).Scan(&lesson.ID, &lesson.SubtopicID, &lesson.Title, &lesson.Content, &lesson.OrderIndex, &lesson.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "lesson not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query lesson")
	}
	return &lesson, nil
}

func (s *LessonService) insertLesson(ctx context.Context, lesson *models.Lesson) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO lessons (subtopic_id, title, content, order_index, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		lesson.SubtopicID, lesson.Title, lesson.Content, lesson.OrderIndex, lesson.CreatedAt,
	).Scan(&lesson.ID)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert lesson")
	}
	return nil
}
