package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/developer-meett/Know-map/internal/api"
	"github.com/developer-meett/Know-map/internal/platform/cache"
	"github.com/developer-meett/Know-map/internal/platform/config"
	"github.com/developer-meett/Know-map/internal/platform/database"
	"github.com/developer-meett/Know-map/internal/progress"
	"github.com/developer-meett/Know-map/internal/quiz"
	"github.com/developer-meett/Know-map/internal/report"
	"github.com/developer-meett/Know-map/internal/submission"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.close()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      app.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", srv.Addr, "storage", app.storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app is the wired service.
type app struct {
	handler http.Handler
	storage string
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires stores, the grading engine and the HTTP handler. Without a
// database URL everything is kept in memory.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{storage: "memory"}
	checks := map[string]api.HealthChecker{}

	var (
		quizzes quiz.Store     = quiz.NewMemoryStore()
		stats   progress.Store = progress.NewMemoryStore()
		reports report.Store   = report.NewMemoryStore()
	)

	if cfg.HasDatabase() {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.close()
				return nil, err
			}
		}

		if quizzes, err = quiz.NewPostgresStore(db.Pool); err != nil {
			a.close()
			return nil, err
		}
		if stats, err = progress.NewPostgresStore(db.Pool); err != nil {
			a.close()
			return nil, err
		}
		if reports, err = report.NewPostgresStore(db.Pool, logger); err != nil {
			a.close()
			return nil, err
		}
		a.storage = "postgres"
	}

	if cfg.HasCache() {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		checks["cache"] = c
		quizzes = quiz.NewCachedStore(quizzes, c.Client, cfg.Cache.QuestionTTL, logger)
	}

	if err := seedQuizzes(ctx, cfg.QuizPath, quizzes, logger); err != nil {
		a.close()
		return nil, err
	}

	validator, err := quiz.NewValidator()
	if err != nil {
		a.close()
		return nil, err
	}

	hub := api.NewHub(logger)
	engine := submission.NewEngine(submission.EngineConfig{
		Questions:         quizzes,
		Stats:             stats,
		Reports:           reports,
		Notifier:          hub,
		Logger:            logger,
		MaxUpdateAttempts: cfg.Grading.MaxUpdateAttempts,
	})

	h, err := api.NewHandler(api.Config{
		Grader:        engine,
		Quizzes:       quizzes,
		Reports:       reports,
		Validator:     validator,
		Auth:          api.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.AdminClaim),
		Hub:           hub,
		Checks:        checks,
		RecentReports: cfg.Grading.RecentReports,
		Logger:        logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.handler = h.Routes()
	return a, nil
}

// seedQuizzes saves every quiz file under dir into the store. A missing
// directory is not an error.
func seedQuizzes(ctx context.Context, dir string, store quiz.Store, logger *slog.Logger) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		logger.Info("no quiz directory, skipping seed", "dir", dir)
		return nil
	}

	loader, err := quiz.NewLoader(dir, logger)
	if err != nil {
		return err
	}
	for _, q := range loader.All() {
		if err := store.SaveQuiz(ctx, q); err != nil {
			return fmt.Errorf("seeding quiz %s: %w", q.ID, err)
		}
	}
	return nil
}
