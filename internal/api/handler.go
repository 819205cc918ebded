// Package api exposes quiz grading over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/developer-meett/Know-map/internal/grading"
	"github.com/developer-meett/Know-map/internal/progress"
	"github.com/developer-meett/Know-map/internal/quiz"
	"github.com/developer-meett/Know-map/internal/report"
	"github.com/developer-meett/Know-map/internal/submission"
)

// maxBodyBytes caps request bodies; quiz imports are the largest.
const maxBodyBytes = 2 << 20

// Grader is the part of the submission engine the handlers use.
type Grader interface {
	GradeSubmission(ctx context.Context, s submission.Submission) (submission.Outcome, error)
	Stats(ctx context.Context, userID string) (progress.Stats, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds the handler's dependencies.
type Config struct {
	Grader        Grader
	Quizzes       quiz.Store
	Reports       report.Reader
	Validator     *quiz.Validator
	Auth          *Verifier
	Hub           *Hub
	Checks        map[string]HealthChecker
	RecentReports int
	Logger        *slog.Logger
}

// Handler holds all dependencies needed by HTTP handlers.
type Handler struct {
	grader        Grader
	quizzes       quiz.Store
	reports       report.Reader
	validator     *quiz.Validator
	auth          *Verifier
	hub           *Hub
	checks        map[string]HealthChecker
	recentReports int
	logger        *slog.Logger
}

// NewHandler creates a Handler. Grader, Quizzes, Reports, Validator and Auth
// are required.
func NewHandler(cfg Config) (*Handler, error) {
	switch {
	case cfg.Grader == nil:
		return nil, errors.New("grader is required")
	case cfg.Quizzes == nil:
		return nil, errors.New("quiz store is required")
	case cfg.Reports == nil:
		return nil, errors.New("report reader is required")
	case cfg.Validator == nil:
		return nil, errors.New("quiz validator is required")
	case cfg.Auth == nil:
		return nil, errors.New("token verifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	recent := cfg.RecentReports
	if recent <= 0 {
		recent = report.DefaultListLimit
	}
	return &Handler{
		grader:        cfg.Grader,
		quizzes:       cfg.Quizzes,
		reports:       cfg.Reports,
		validator:     cfg.Validator,
		auth:          cfg.Auth,
		hub:           hub,
		checks:        cfg.Checks,
		recentReports: recent,
		logger:        logger,
	}, nil
}

// Routes returns the HTTP router.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /health", h.handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)

	mux.HandleFunc("POST /submitQuiz", h.handleSubmitQuiz)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("GET /reports", h.handleListReports)
	mux.HandleFunc("GET /reports/{reportID}", h.handleGetReport)
	mux.HandleFunc("GET /reports/{reportID}/export", h.handleExportReport)
	mux.HandleFunc("POST /quizzes", h.handleImportQuiz)
	mux.HandleFunc("GET /ws/progress", h.handleProgressStream)
	return mux
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Know-Map API is running",
		"version": report.Version,
		"endpoints": []string{
			"/submitQuiz", "/stats", "/reports", "/reports/{id}/export", "/quizzes", "/ws/progress", "/health",
		},
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	respondJSON(w, status, body)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// handleError maps domain errors to HTTP responses. Anything unrecognised
// is logged and reported as an opaque internal error.
func (h *Handler) handleError(w http.ResponseWriter, err error, attrs ...any) {
	var invalid *quiz.ValidationError
	switch {
	case errors.Is(err, submission.ErrInvalidSubmission):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalid):
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid quiz", "problems": invalid.Problems})
	case errors.Is(err, quiz.ErrInvalidQuiz):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, quiz.ErrQuizNotFound):
		respondError(w, http.StatusNotFound, "Quiz not found")
	case errors.Is(err, quiz.ErrEmptyQuestionSet), errors.Is(err, grading.ErrNoQuestions):
		respondError(w, http.StatusBadRequest, "No questions found in quiz")
	case errors.Is(err, report.ErrNotFound):
		respondError(w, http.StatusNotFound, "Report not found")
	case errors.Is(err, progress.ErrConflict):
		respondError(w, http.StatusConflict, "Too many concurrent submissions, please retry")
	default:
		h.logger.Error("request failed", append(attrs, "error", err)...)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
