package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/config"
	"github.com/stemsi/labquiz/internal/database"
	"github.com/stemsi/labquiz/internal/handler"
	"github.com/stemsi/labquiz/internal/logger"
	"github.com/stemsi/labquiz/internal/repository"
	"github.com/stemsi/labquiz/internal/router"
	"github.com/stemsi/labquiz/internal/service"
	"github.com/stemsi/labquiz/internal/validator"
	"github.com/stemsi/labquiz/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting LabQuiz server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Question Bank, Roster and Workstation Map ───────────────
	bank, err := repository.LoadQuestionBank(cfg.QuestionsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.QuestionsFile).Msg("Failed to load question bank")
	}

	roster, err := repository.LoadRoster(cfg.StudentsFile)
	if err != nil {
		if cfg.EnablePasswordAuth {
			log.Fatal().Err(err).Str("file", cfg.StudentsFile).Msg("Failed to load student roster")
		}
		log.Warn().Err(err).Msg("No student roster; any roll number may log in")
		roster = nil
	}

	stations := service.DefaultWorkstationMap()
	if cfg.WorkstationMapFile != "" {
		if stations, err = service.LoadWorkstationMap(cfg.WorkstationMapFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.WorkstationMapFile).Msg("Failed to load workstation map")
		}
	}

	// ─── Initialize Stores ─────────────────────────────────────────────
	responseStore, closeResponses := openResponseStore(ctx, cfg, log)
	defer closeResponses()
	tokenStore, closeTokens := openTokenStore(ctx, cfg, log)
	defer closeTokens()

	dataDir := filepath.Dir(cfg.ResponsesFile)
	backups := repository.NewBackupWriter(dataDir)
	marksheets := repository.NewMarksheetWriter(dataDir)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	registry := service.NewSessionRegistry()
	ledger := service.NewLedgerService(responseStore, backups, stations, nil, log)
	tokens := service.NewRetakeTokenService(tokenStore, log)
	sessionService := service.NewExamSessionService(
		cfg, service.NewCredentialService(roster), bank, ledger, tokens, registry, authService, log,
	)
	adminService := service.NewAdminService(ledger, tokens, registry, bank, roster, log)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	marksheetWorker := worker.NewMarksheetWorker(ledger, marksheets, log)
	ledger.SetNotifier(marksheetWorker)
	marksheetWorker.Regenerate(ctx)

	expiryWorker := worker.NewExpiryWorker(sessionService, worker.ExpirySweepInterval, log)

	workers.Add(2)
	go func() { defer workers.Done(); marksheetWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); expiryWorker.Start(workerCtx) }()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, sessionService),
		StudentPortal: handler.NewStudentPortalHandler(sessionService),
		Admin:         handler.NewAdminHandler(adminService, sessionService, log),
		Media:         handler.NewMediaHandler(cfg.ImagesDir),
		WS:            handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Monitor:       handler.NewMonitorHandler(adminService, sessionService, log),
		System:        handler.NewSystemHandler(sessionService, bank.Len()),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r, err := router.SetupRouter(ctx, authService, registry, handlers, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up router")
	}

	logBanner(log, cfg, bank.Len(), roster, stations.Len())

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
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

	// 2. Stop background workers; the marksheet worker flushes a pending pass.
	workerCancel()
	workers.Wait()

	if n := len(sessionService.ActiveSessions()); n > 0 {
		log.Warn().Int("sessions", n).Msg("Active sessions dropped at shutdown")
	}
	log.Info().Msg("Shutdown complete")
}

// openResponseStore selects the persisted response store by driver name.
func openResponseStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.ResponseStore, func()) {
	switch cfg.ResponseStore {
	case config.ResponseStorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		return repository.NewPostgresResponseStore(pool), pool.Close
	case config.ResponseStoreCSV:
		return repository.NewCSVResponseStore(cfg.ResponsesFile), func() {}
	default:
		log.Fatal().Str("driver", cfg.ResponseStore).Msg("Unknown RESPONSE_STORE")
		return nil, nil
	}
}

// openTokenStore selects the retake token store by driver name.
func openTokenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.TokenStore, func()) {
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		return repository.NewRedisTokenStore(rdb), func() { rdb.Close() }
	case config.TokenStoreJSON:
		return repository.NewJSONTokenStore(cfg.RetakeTokensFile), func() {}
	default:
		log.Fatal().Str("driver", cfg.TokenStore).Msg("Unknown TOKEN_STORE")
		return nil, nil
	}
}

func logBanner(log zerolog.Logger, cfg *config.Config, questions int, roster *repository.Roster, stations int) {
	students := 0
	if roster != nil {
		students = roster.Len()
	}
	event := log.Info()
	if questions < cfg.NumQuestions {
		event = log.Warn()
	}
	event.
		Int("questions", questions).
		Int("quiz_size", cfg.NumQuestions).
		Int("students", students).
		Int("workstations", stations).
		Dur("duration", cfg.QuizDuration).
		Bool("password_auth", cfg.EnablePasswordAuth).
		Bool("enforce_time_limit", cfg.EnforceTimeLimit).
		Str("response_store", cfg.ResponseStore).
		Str("token_store", cfg.TokenStore).
		Msg("Quiz ready")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
