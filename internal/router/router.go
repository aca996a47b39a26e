package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/handler"
	"github.com/sentra-edu/proctor-backend/internal/middleware"
	"github.com/sentra-edu/proctor-backend/internal/response"
	"github.com/sentra-edu/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Exam       *handler.ExamHandler
	Student    *handler.StudentHandler
	Submission *handler.SubmissionHandler
	Violation  *handler.ViolationHandler
	Monitor    *handler.MonitorHandler
	Relay      *handler.RelayHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// Evidence frames are immutable once written; cache hard.
	evidenceGroup := router.Group("/evidence")
	evidenceGroup.Use(
		middleware.RequireAdminJWT(authService),
		middleware.CacheControl(31536000),
	)
	{
		evidenceGroup.Static("/", cfg.EvidenceDir)
	}

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.StudentProfile)
	}

	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.POST("/exams/:exam_id/join", handlers.Student.Join)
		studentAPI.PUT("/exams/:exam_id/answers", handlers.Student.SaveAnswers)
		studentAPI.POST("/exams/:exam_id/submit", handlers.Submission.Submit)
		studentAPI.GET("/exams/:exam_id/submission", handlers.Submission.MySubmission)
		// HTTP fallback for violation reports while the socket is down
		studentAPI.POST("/exams/:exam_id/violations", handlers.Violation.Report)
	}

	ws := router.Group("/ws/v1")
	{
		ws.GET("/student", middleware.RequireWSAuth(authService, service.TokenTypeStudent), handlers.Relay.StudentStream)
		ws.GET("/monitor", middleware.RequireWSAuth(authService, service.TokenTypeAdmin), handlers.Relay.MonitorStream)
	}

	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/exams", handlers.Exam.Create)
		adminAPI.GET("/exams", handlers.Exam.List)
		adminAPI.GET("/exams/:exam_id", handlers.Exam.Get)
		adminAPI.PATCH("/exams/:exam_id/status", handlers.Exam.SetStatus)
		adminAPI.PUT("/exams/:exam_id/questions", handlers.Exam.ReplaceQuestions)

		adminAPI.GET("/exams/:exam_id/submissions", handlers.Submission.ListByExam)
		adminAPI.GET("/submissions/:submission_id", handlers.Submission.Get)
		adminAPI.PATCH("/submissions/:submission_id", handlers.Submission.Review)

		adminAPI.GET("/exams/:exam_id/students/:student_id/violations", handlers.Violation.ListByStudent)

		adminAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.Snapshot)
		adminAPI.GET("/exams/:exam_id/monitor/stream", handlers.Monitor.Stream)
		adminAPI.POST("/exams/:exam_id/monitor/command", handlers.Monitor.Command)

		adminAPI.POST("/students/:student_id/reset-session", handlers.Auth.ResetStudentSession)
	}

	return router
}
