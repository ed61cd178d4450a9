// Package main provides the batch lesson seeding utility. It walks every
// subtopic in the catalog and pre-generates lessons so first-time visitors
// never wait on content generation. Progress is checkpointed to disk and an
// interrupted run resumes where it stopped.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studypath/internal/config"
	"studypath/internal/di"
	"studypath/internal/observability"
	"studypath/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		cancel()
	}()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "studypath-seeder")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownable, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			_ = shutdownable.Shutdown(shutdownCtx)
		}
		if mp != nil {
			_ = mp.Shutdown(shutdownCtx)
		}
	}()

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
		defer shutdownCancel()
		_ = container.Shutdown(shutdownCtx)
	}()

	subjectService, err := container.GetSubjectService()
	if err != nil {
		logger.Error(ctx, "Failed to get subject service", err, nil)
		os.Exit(1)
	}
	lessonService, err := container.GetLessonService()
	if err != nil {
		logger.Error(ctx, "Failed to get lesson service", err, nil)
		os.Exit(1)
	}

	seeder := worker.NewSeeder(subjectService, lessonService, cfg, logger)
	result, err := seeder.Run(ctx)
	if err != nil {
		logger.Error(ctx, "Lesson seeding failed", err, nil)
		os.Exit(1)
	}

	fmt.Printf("Seeding complete: %d seeded, %d skipped, %d failed\n", result.Seeded, result.Skipped, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}
