// Package report persists graded attempts for review and export.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/developer-meett/Know-map/internal/grading"
	"github.com/developer-meett/Know-map/internal/progress"
)

// Version is stamped on every report so readers can tell the layout apart
// from reports written before question breakdowns existed.
const Version = "2.0"

// ErrNotFound is returned when no report exists for an ID.
var ErrNotFound = errors.New("report not found")

// Metadata is what the client told us about the attempt.
type Metadata struct {
	DeviceType   string `json:"deviceType,omitempty"`
	RetryAttempt int    `json:"retryAttempt,omitempty"`
}

// Report is the stored record of one graded attempt.
type Report struct {
	ID             string                `json:"id"`
	UserID         string                `json:"userId"`
	QuizID         string                `json:"quizId"`
	QuizTitle      string                `json:"quizTitle"`
	SubmittedAt    time.Time             `json:"submittedAt"`
	Answers        map[string]any        `json:"answers"`
	Analysis       grading.Analysis      `json:"analysis"`
	Contribution   progress.Contribution `json:"contribution"`
	Metadata       Metadata              `json:"metadata"`
	BadgesUnlocked []string              `json:"badgesUnlocked"`
	ReportVersion  string                `json:"reportVersion"`
}

// Sink accepts reports.
type Sink interface {
	Save(ctx context.Context, r Report) (string, error)
}

// Reader reads reports back.
type Reader interface {
	Get(ctx context.Context, id string) (Report, error)
	// ListByUser returns a learner's most recent reports, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Report, error)
}

// Store is a Sink that can also be read.
type Store interface {
	Sink
	Reader
}

// DefaultListLimit is how many recent reports ListByUser returns when the
// caller passes no limit.
const DefaultListLimit = 5

// prepare fills the fields every stored report must carry.
func prepare(r Report, now func() time.Time) (Report, error) {
	if r.UserID == "" {
		return Report{}, fmt.Errorf("user_id is required")
	}
	if r.QuizID == "" {
		return Report{}, fmt.Errorf("quiz_id is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = now()
	}
	if r.BadgesUnlocked == nil {
		r.BadgesUnlocked = []string{}
	}
	if r.Answers == nil {
		r.Answers = map[string]any{}
	}
	r.ReportVersion = Version
	return r, nil
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]Report
}

// NewMemoryStore creates a new in-memory report store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]Report)}
}

func (s *MemoryStore) Save(_ context.Context, r Report) (string, error) {
	r, err := prepare(r, time.Now)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
	return r.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	out := []Report{}
	for _, r := range s.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
