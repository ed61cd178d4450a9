// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"studypath/internal/config"
	"studypath/internal/database"
	"studypath/internal/observability"
	"studypath/internal/services"
	contextutils "studypath/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (*services.UserService, error)
	GetSubjectService() (*services.SubjectService, error)
	GetAIService() (services.AIServiceInterface, error)
	GetAssessmentService() (*services.AssessmentService, error)
	GetProgressService() (*services.ProgressService, error)
	GetQuizService() (*services.QuizService, error)
	GetLessonService() (*services.LessonService, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	EnsureAdminUser(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up the database and all services
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices(ctx)
	return nil
}

// GetService retrieves a service by name
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (*services.UserService, error) {
	return GetServiceAs[*services.UserService](sc, "user")
}

// GetSubjectService returns the subject catalog service
func (sc *ServiceContainer) GetSubjectService() (*services.SubjectService, error) {
	return GetServiceAs[*services.SubjectService](sc, "subject")
}

// GetAIService returns the AI service
func (sc *ServiceContainer) GetAIService() (services.AIServiceInterface, error) {
	return GetServiceAs[services.AIServiceInterface](sc, "ai")
}

// GetAssessmentService returns the assessment service
func (sc *ServiceContainer) GetAssessmentService() (*services.AssessmentService, error) {
	return GetServiceAs[*services.AssessmentService](sc, "assessment")
}

// GetProgressService returns the progress service
func (sc *ServiceContainer) GetProgressService() (*services.ProgressService, error) {
	return GetServiceAs[*services.ProgressService](sc, "progress")
}

// GetQuizService returns the quiz service
func (sc *ServiceContainer) GetQuizService() (*services.QuizService, error) {
	return GetServiceAs[*services.QuizService](sc, "quiz")
}

// GetLessonService returns the lesson service
func (sc *ServiceContainer) GetLessonService() (*services.LessonService, error) {
	return GetServiceAs[*services.LessonService](sc, "lesson")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var errs []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	userService := services.NewUserServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["user"] = userService

	subjectService := services.NewSubjectServiceWithLogger(sc.db, sc.logger)
	sc.services["subject"] = subjectService

	aiService := services.NewAIService(sc.cfg, sc.logger)
	sc.services["ai"] = aiService

	assessmentService := services.NewAssessmentServiceWithLogger(sc.db, aiService, sc.cfg, sc.logger)
	sc.services["assessment"] = assessmentService

	progressService := services.NewProgressServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["progress"] = progressService

	// Quiz service feeds graded answers into progress tracking and streaks
	quizService := services.NewQuizServiceWithLogger(sc.db, aiService, progressService, userService, sc.cfg, sc.logger)
	sc.services["quiz"] = quizService

	lessonService := services.NewLessonServiceWithLogger(sc.db, aiService, sc.cfg, sc.logger)
	sc.services["lesson"] = lessonService
}

// EnsureAdminUser creates the admin user if it doesn't exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}
	return userService.EnsureAdminUser(ctx)
}
