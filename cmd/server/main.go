package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/database"
	"github.com/sentra-edu/proctor-backend/internal/handler"
	"github.com/sentra-edu/proctor-backend/internal/logger"
	"github.com/sentra-edu/proctor-backend/internal/relay"
	"github.com/sentra-edu/proctor-backend/internal/repository"
	"github.com/sentra-edu/proctor-backend/internal/router"
	"github.com/sentra-edu/proctor-backend/internal/sandbox"
	"github.com/sentra-edu/proctor-backend/internal/service"
	"github.com/sentra-edu/proctor-backend/internal/validator"
	"github.com/sentra-edu/proctor-backend/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting proctor backend")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Repositories
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)

	// Relay hub shared by the WS handlers and the monitor roster
	hub := relay.NewHub(log)

	// Services
	authService := service.NewAuthService(cfg, rdb, studentRepo, adminRepo)
	evidenceService := service.NewEvidenceService(cfg)
	examService := service.NewExamService(cfg, rdb, examRepo, questionRepo, sessionRepo)
	violationService := service.NewViolationService(rdb, evidenceService, violationRepo)
	sandboxClient := sandbox.NewClient(cfg.SandboxURL, cfg.SandboxTimeout)
	submissionService := service.NewSubmissionService(cfg, rdb, submissionRepo, sessionRepo, examService, violationService, sandboxClient)
	monitorService := service.NewMonitorService(cfg, rdb, hub, sessionRepo, studentRepo, violationService)

	// Handlers
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, studentRepo, adminRepo),
		Exam:       handler.NewExamHandler(examService),
		Student:    handler.NewStudentHandler(examService),
		Submission: handler.NewSubmissionHandler(submissionService),
		Violation:  handler.NewViolationHandler(violationService),
		Monitor:    handler.NewMonitorHandler(monitorService, submissionService, hub, cfg.TerminateGrace, log),
		Relay:      handler.NewRelayHandler(hub, examService, violationService, monitorService, submissionService, cfg.TerminateGrace, log, cfg.AllowedOrigins),
	}

	// Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())

	violationWorker := worker.NewViolationWorker(violationRepo, rdb, log)
	rescoreWorker := worker.NewRescoreWorker(submissionService, rdb, log)

	go violationWorker.Start(workerCtx)
	go rescoreWorker.Start(workerCtx)

	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
