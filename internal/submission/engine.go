// Package submission grades quiz submissions and records their effect on
// learner progression.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/developer-meett/Know-map/internal/grading"
	"github.com/developer-meett/Know-map/internal/progress"
	"github.com/developer-meett/Know-map/internal/quiz"
	"github.com/developer-meett/Know-map/internal/report"
)

// ErrInvalidSubmission is returned for submissions missing a quiz or user.
var ErrInvalidSubmission = errors.New("invalid submission")

const untitledQuiz = "Unknown Quiz"

// Metadata is client-reported context for an attempt.
type Metadata struct {
	TimeSpentSeconds float64
	DeviceType       string
	RetryAttempt     int
}

// Submission is one learner's answers to one quiz.
type Submission struct {
	QuizID   string
	UserID   string
	Answers  grading.AnswerSet
	Metadata Metadata
}

// Outcome is everything a graded submission produced.
type Outcome struct {
	ReportID     string                `json:"reportId,omitempty"`
	QuizID       string                `json:"quizId"`
	QuizTitle    string                `json:"quizTitle,omitempty"`
	Analysis     grading.Analysis      `json:"analysis"`
	Contribution progress.Contribution `json:"contribution"`
	Stats        progress.Stats        `json:"stats"`
	// BadgesUnlocked is always empty; badges are not awarded.
	BadgesUnlocked []string `json:"badgesUnlocked"`
}

// Notifier is told about each learner's new stats.
type Notifier interface {
	Notify(userID string, o Outcome)
}

// EngineConfig holds dependencies for the submission engine.
type EngineConfig struct {
	Questions         quiz.Source
	Stats             progress.Store
	Reports           report.Sink
	Notifier          Notifier
	Logger            *slog.Logger
	Clock             func() time.Time
	MaxUpdateAttempts int // compare-and-swap retries for stats (default 5)
}

// Engine grades submissions.
type Engine struct {
	questions   quiz.Source
	stats       progress.Store
	reports     report.Sink
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
	maxAttempts int
}

// NewEngine creates a new submission engine. Missing stores default to
// in-memory ones.
func NewEngine(cfg EngineConfig) *Engine {
	questions := cfg.Questions
	if questions == nil {
		questions = quiz.NewMemoryStore()
	}
	stats := cfg.Stats
	if stats == nil {
		stats = progress.NewMemoryStore()
	}
	reports := cfg.Reports
	if reports == nil {
		reports = report.NewMemoryStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	maxAttempts := cfg.MaxUpdateAttempts
	if maxAttempts == 0 {
		maxAttempts = progress.DefaultMaxAttempts
	}
	return &Engine{
		questions:   questions,
		stats:       stats,
		reports:     reports,
		notifier:    cfg.Notifier,
		logger:      logger,
		now:         now,
		maxAttempts: maxAttempts,
	}
}

// Evaluate grades answers and folds the attempt into prior, which may be nil.
// It touches no store; completedAt is the only input that is not derived from
// the others.
func Evaluate(questions []quiz.Record, answers grading.AnswerSet, prior *progress.Stats, meta Metadata, completedAt time.Time) (Outcome, error) {
	a, err := grading.Analyze(answers, questions)
	if err != nil {
		return Outcome{}, err
	}
	c := progress.NewContribution(a, meta.TimeSpentSeconds, completedAt)
	return Outcome{
		Analysis:       a,
		Contribution:   c,
		Stats:          progress.Apply(prior, c),
		BadgesUnlocked: []string{},
	}, nil
}

// GradeSubmission grades s, updates the learner's stats and stores a report.
//
// The stats update is retried when another submission from the same learner
// lands in between; it fails with progress.ErrConflict once retries run out.
// A report that cannot be stored is logged and leaves Outcome.ReportID empty,
// since the stats have already moved by then.
func (e *Engine) GradeSubmission(ctx context.Context, s Submission) (Outcome, error) {
	if s.QuizID == "" {
		return Outcome{}, fmt.Errorf("quiz id is required: %w", ErrInvalidSubmission)
	}
	if s.UserID == "" {
		return Outcome{}, fmt.Errorf("user id is required: %w", ErrInvalidSubmission)
	}

	logger := e.logger.With("user_id", s.UserID, "quiz_id", s.QuizID)
	logger.Info("grading submission", "answers", len(s.Answers))

	set, err := e.questions.Questions(ctx, s.QuizID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load questions: %w", err)
	}

	completedAt := e.now()
	// Grading is pure, so it runs once; only the stats fold is retried.
	graded, err := Evaluate(set.Questions, s.Answers, nil, s.Metadata, completedAt)
	if err != nil {
		return Outcome{}, err
	}
	for _, d := range graded.Analysis.Diagnostics {
		logger.Debug("question diagnostic", "question", d.Question, "question_id", d.QuestionID, "issue", d.Issue)
	}

	attempts := 0
	stats, _, err := progress.Update(ctx, e.stats, s.UserID, e.maxAttempts, func(prior *progress.Stats) progress.Stats {
		attempts++
		if attempts > 1 {
			logger.Warn("stats changed during submission, retrying", "attempt", attempts)
		}
		return progress.Apply(prior, graded.Contribution)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("update stats: %w", err)
	}

	title := set.Title
	if title == "" {
		title = untitledQuiz
	}
	out := graded
	out.Stats = stats
	out.QuizID = s.QuizID
	out.QuizTitle = title

	reportID, err := e.reports.Save(ctx, report.Report{
		UserID:       s.UserID,
		QuizID:       s.QuizID,
		QuizTitle:    title,
		SubmittedAt:  completedAt,
		Answers:      s.Answers,
		Analysis:     out.Analysis,
		Contribution: out.Contribution,
		Metadata: report.Metadata{
			DeviceType:   s.Metadata.DeviceType,
			RetryAttempt: s.Metadata.RetryAttempt,
		},
	})
	if err != nil {
		logger.Error("failed to save report", "error", err)
	} else {
		out.ReportID = reportID
	}

	if e.notifier != nil {
		e.notifier.Notify(s.UserID, out)
	}

	logger.Info("submission graded",
		"report_id", out.ReportID,
		"score", out.Analysis.TotalScore,
		"total", out.Analysis.TotalQuestions,
		"xp_earned", out.Contribution.XPEarned,
		"level", out.Stats.Level,
	)
	return out, nil
}

// Stats returns a learner's current stats, or fresh stats for a learner who
// has not submitted anything yet.
func (e *Engine) Stats(ctx context.Context, userID string) (progress.Stats, error) {
	rec, err := e.stats.Get(ctx, userID)
	if errors.Is(err, progress.ErrNotFound) {
		return progress.NewStats(), nil
	}
	if err != nil {
		return progress.Stats{}, fmt.Errorf("get stats: %w", err)
	}
	return rec.Stats, nil
}
