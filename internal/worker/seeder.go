// Package worker contains the batch lesson seeder. The seeder walks every
// subtopic in the catalog and pre-generates its lesson sequence so that
// first-time visitors never wait on content generation. It runs a few
// subtopics at a time, pauses between batches to stay inside provider rate
// limits, and checkpoints progress to disk so an interrupted run resumes
// where it left off.
package worker

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"studypath/internal/config"
	"studypath/internal/models"
	"studypath/internal/observability"
	"studypath/internal/services"
	contextutils "studypath/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Checkpoint records which subtopics a seeding run has already handled
type Checkpoint struct {
	CompletedSubtopics []int     `json:"completed_subtopics"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (c *Checkpoint) completedSet() map[int]bool {
	set := make(map[int]bool, len(c.CompletedSubtopics))
	for _, id := range c.CompletedSubtopics {
		set[id] = true
	}
	return set
}

// Result summarizes one seeding run
type Result struct {
	Seeded  int `json:"seeded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Seeder pre-generates lessons for all subtopics
type Seeder struct {
	subjects *services.SubjectService
	lessons  *services.LessonService
	cfg      *config.Config
	logger   *observability.Logger

	// overridable in tests to avoid real pauses
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSeeder creates a new lesson seeder
func NewSeeder(subjects *services.SubjectService, lessons *services.LessonService, cfg *config.Config, logger *observability.Logger) *Seeder {
	return &Seeder{
		subjects: subjects,
		lessons:  lessons,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepWithContext,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run seeds lessons for every subtopic that does not have them yet. Failures
// on individual subtopics are logged and counted but do not stop the run.
func (s *Seeder) Run(ctx context.Context) (result0 *Result, err error) {
	ctx, span := observability.TraceSeederFunction(ctx, "Run")
	defer observability.FinishSpan(span, &err)

	checkpoint, err := s.loadCheckpoint()
	if err != nil {
		return nil, err
	}
	completed := checkpoint.completedSet()

	subtopics, err := s.subjects.AllSubtopics(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]models.Subtopic, 0, len(subtopics))
	result := &Result{}
	for _, subtopic := range subtopics {
		if completed[subtopic.ID] {
			result.Skipped++
			continue
		}
		pending = append(pending, subtopic)
	}

	s.logger.Info(ctx, "Lesson seeding starting", map[string]interface{}{
		"total":       len(subtopics),
		"pending":     len(pending),
		"checkpoint":  len(checkpoint.CompletedSubtopics),
		"concurrency": s.cfg.SeederConcurrency(),
	})

	concurrency := s.cfg.SeederConcurrency()
	for start := 0; start < len(pending); start += concurrency {
		if ctx.Err() != nil {
			return result, contextutils.WrapError(ctx.Err(), "seeding canceled")
		}

		end := start + concurrency
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		done := s.runBatch(ctx, batch, result)
		checkpoint.CompletedSubtopics = append(checkpoint.CompletedSubtopics, done...)
		checkpoint.UpdatedAt = time.Now().UTC()
		if err := s.saveCheckpoint(checkpoint); err != nil {
			return result, err
		}

		if end < len(pending) {
			if err := s.sleep(ctx, s.cfg.SeederDelay()); err != nil {
				return result, contextutils.WrapError(err, "seeding canceled during pause")
			}
		}
	}

	span.SetAttributes(
		attribute.Int("seeder.seeded", result.Seeded),
		attribute.Int("seeder.skipped", result.Skipped),
		attribute.Int("seeder.failed", result.Failed),
	)
	s.logger.Info(ctx, "Lesson seeding finished", map[string]interface{}{
		"seeded":  result.Seeded,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	})
	return result, nil
}

// runBatch seeds one batch of subtopics concurrently and returns the ids
// that no longer need seeding
func (s *Seeder) runBatch(ctx context.Context, batch []models.Subtopic, result *Result) []int {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done []int
	)

	for _, subtopic := range batch {
		wg.Add(1)
		go func(subtopic models.Subtopic) {
			defer wg.Done()

			outcome, err := s.seedSubtopic(ctx, subtopic)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				s.logger.Error(ctx, "Failed to seed subtopic", err, map[string]interface{}{
					"subtopic_id": subtopic.ID,
					"subtopic":    subtopic.Name,
				})
			case outcome == seededOutcome:
				result.Seeded++
				done = append(done, subtopic.ID)
			default:
				result.Skipped++
				done = append(done, subtopic.ID)
			}
		}(subtopic)
	}

	wg.Wait()
	return done
}

type seedOutcome int

const (
	seededOutcome seedOutcome = iota
	skippedOutcome
)

func (s *Seeder) seedSubtopic(ctx context.Context, subtopic models.Subtopic) (result0 seedOutcome, err error) {
	ctx, span := observability.TraceSeederFunction(ctx, "seedSubtopic",
		observability.AttributeSubtopicID(subtopic.ID),
	)
	defer observability.FinishSpan(span, &err)

	has, err := s.lessons.HasLessons(ctx, subtopic.ID)
	if err != nil {
		return skippedOutcome, err
	}
	if has {
		span.SetAttributes(attribute.Bool("seeder.already_present", true))
		return skippedOutcome, nil
	}

	if _, err := s.lessons.GenerateLessonsForSubtopic(ctx, subtopic.ID); err != nil {
		return skippedOutcome, err
	}
	return seededOutcome, nil
}

func (s *Seeder) checkpointPath() string {
	if path := s.cfg.Seeder.CheckpointFile; path != "" {
		return path
	}
	return config.DefaultCheckpointFile
}

func (s *Seeder) loadCheckpoint() (*Checkpoint, error) {
	checkpoint := &Checkpoint{}
	data, err := os.ReadFile(s.checkpointPath())
	if os.IsNotExist(err) {
		return checkpoint, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read seeder checkpoint")
	}
	if err := json.Unmarshal(data, checkpoint); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode seeder checkpoint")
	}
	return checkpoint, nil
}

func (s *Seeder) saveCheckpoint(checkpoint *Checkpoint) error {
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return contextutils.WrapError(err, "failed to encode seeder checkpoint")
	}
	if err := os.WriteFile(s.checkpointPath(), data, 0o644); err != nil {
		return contextutils.WrapError(err, "failed to write seeder checkpoint")
	}
	return nil
}
