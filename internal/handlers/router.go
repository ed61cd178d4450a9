package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"studypath/internal/config"
	"studypath/internal/middleware"
	"studypath/internal/observability"
	"studypath/internal/services"
)

// NewRouter creates the API router with all middleware and routes wired up
func NewRouter(
	cfg *config.Config,
	userService *services.UserService,
	subjectService *services.SubjectService,
	assessmentService *services.AssessmentService,
	progressService *services.ProgressService,
	quizService *services.QuizService,
	lessonService *services.LessonService,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogging(logger))

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "backend"})
	})

	router.Use(observability.GinMiddlewareWithErrorHandling("studypath-backend"))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	authHandler := NewAuthHandler(userService, cfg, logger)
	subjectHandler := NewSubjectHandler(subjectService, logger)
	assessmentHandler := NewAssessmentHandler(assessmentService, logger)
	progressHandler := NewProgressHandler(progressService, logger)
	quizHandler := NewQuizHandler(quizService, logger)
	lessonHandler := NewLessonHandler(lessonService, logger)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.Me)
		}

		v1.GET("/subjects", subjectHandler.ListSubjects)
		v1.GET("/subjects/:id", subjectHandler.GetSubject)
		v1.GET("/levels/:id/subtopics", subjectHandler.GetSubtopics)

		authed := v1.Group("")
		authed.Use(middleware.RequireAuth())
		{
			authed.POST("/subjects/:id/assessments", assessmentHandler.Start)
			authed.GET("/assessments/:id", assessmentHandler.Get)
			authed.POST("/assessments/:id/answers", assessmentHandler.SubmitAnswer)
			authed.POST("/assessments/:id/finalize", assessmentHandler.Finalize)

			authed.GET("/levels/:id/progress", progressHandler.GetLevelProgress)
			authed.GET("/subtopics/:id/test-eligibility", progressHandler.GetTestEligibility)
			authed.GET("/subtopics/:id/question-stats", progressHandler.GetQuestionStats)
			authed.GET("/subtopics/:id/lessons", lessonHandler.GetLessons)

			authed.POST("/quizzes", quizHandler.Create)
			authed.GET("/quizzes/:id", quizHandler.Get)
			authed.POST("/quizzes/:id/attempts", quizHandler.SubmitAttempt)

			authed.POST("/lessons/:id/complete", lessonHandler.Complete)
			authed.POST("/lessons/:id/go-deeper", lessonHandler.GoDeeper)
		}
	}

	return router
}

// requestLogging logs every request through the observability logger
func requestLogging(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
