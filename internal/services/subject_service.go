package services

import (
	"context"
	"database/sql"

	"studypath/internal/models"
	"studypath/internal/observability"
	contextutils "studypath/internal/utils"
)

// SubjectServiceInterface exposes the subject catalog
type SubjectServiceInterface interface {
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	GetSubject(ctx context.Context, subjectID int) (*models.Subject, error)
	GetLevels(ctx context.Context, subjectID int) ([]models.Level, error)
	GetSubtopics(ctx context.Context, levelID int) ([]models.Subtopic, error)
	GetUserLevel(ctx context.Context, userID, subjectID int) (*models.UserSubjectLevel, error)
	AllSubtopics(ctx context.Context) ([]models.Subtopic, error)
}

// SubjectService reads the subject, level and subtopic catalog
type SubjectService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSubjectServiceWithLogger creates a new subject service
func NewSubjectServiceWithLogger(db *sql.DB, logger *observability.Logger) *SubjectService {
	return &SubjectService{db: db, logger: logger}
}

// ListSubjects returns all subjects
func (s *SubjectService) ListSubjects(ctx context.Context) (result0 []models.Subject, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "ListSubjects")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, description, created_at FROM subjects ORDER BY name`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subjects")
	}
	defer func() { _ = rows.Close() }()

	var subjects []models.Subject
	for rows.Next() {
		var subject models.Subject
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.Slug, &subject.Description, &subject.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan subject")
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// GetSubject returns one subject by id
func (s *SubjectService) GetSubject(ctx context.Context, subjectID int) (result0 *models.Subject, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetSubject",
		observability.AttributeSubjectID(subjectID),
	)
	defer observability.FinishSpan(span, &err)

	var subject models.Subject
	err = s.db.QueryRowContext(ctx,
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

// GetLevels returns a subject's levels from easiest to hardest
func (s *SubjectService) GetLevels(ctx context.Context, subjectID int) (result0 []models.Level, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetLevels",
		observability.AttributeSubjectID(subjectID),
	)
	defer observability.FinishSpan(span, &err)

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

// GetSubtopics returns a level's subtopics in order
func (s *SubjectService) GetSubtopics(ctx context.Context, levelID int) (result0 []models.Subtopic, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetSubtopics",
		observability.AttributeLevelID(levelID),
	)
	defer observability.FinishSpan(span, &err)

	return s.querySubtopics(ctx,
		`SELECT id, level_id, name, description, order_index, prompt_hint
		 FROM subtopics WHERE level_id = $1 ORDER BY order_index ASC`,
		levelID,
	)
}

// AllSubtopics returns every subtopic across all subjects, used by the
// lesson seeder
func (s *SubjectService) AllSubtopics(ctx context.Context) (result0 []models.Subtopic, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "AllSubtopics")
	defer observability.FinishSpan(span, &err)

	return s.querySubtopics(ctx,
		`SELECT id, level_id, name, description, order_index, prompt_hint
		 FROM subtopics ORDER BY level_id, order_index`)
}

// GetUserLevel returns the user's placement within a subject
func (s *SubjectService) GetUserLevel(ctx context.Context, userID, subjectID int) (result0 *models.UserSubjectLevel, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "GetUserLevel",
		observability.AttributeUserID(userID),
		observability.AttributeSubjectID(subjectID),
	)
	defer observability.FinishSpan(span, &err)

	var usl models.UserSubjectLevel
	err = s.db.QueryRowContext(ctx,
		`SELECT user_id, subject_id, level_id, updated_at
		 FROM user_subject_levels WHERE user_id = $1 AND subject_id = $2`,
		userID, subjectID,
	).Scan(&usl.UserID, &usl.SubjectID, &usl.LevelID, &usl.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "no placement for subject")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query user level")
	}
	return &usl, nil
}

func (s *SubjectService) querySubtopics(ctx context.Context, query string, args ...interface{}) ([]models.Subtopic, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subtopics")
	}
	defer func() { _ = rows.Close() }()

	var subtopics []models.Subtopic
	for rows.Next() {
		var subtopic models.Subtopic
		var promptHint sql.NullString
		if err := rows.Scan(&subtopic.ID, &subtopic.LevelID, &subtopic.Name, &subtopic.Description, &subtopic.OrderIndex, &promptHint); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan subtopic")
		}
		subtopic.PromptHint = promptHint.String
		subtopics = append(subtopics, subtopic)
	}
	return subtopics, rows.Err()
}
