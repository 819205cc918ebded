package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/developer-meett/Know-map/internal/progress"
	"github.com/developer-meett/Know-map/internal/submission"
)

const (
	subscriberBuffer = 8
	writeTimeout     = 5 * time.Second
)

// ProgressEvent is pushed to a learner's open progress streams.
type ProgressEvent struct {
	Type         string                 `json:"type"` // "snapshot" or "attempt"
	Stats        progress.Stats         `json:"stats"`
	QuizID       string                 `json:"quizId,omitempty"`
	ReportID     string                 `json:"reportId,omitempty"`
	Contribution *progress.Contribution `json:"contribution,omitempty"`
}

// Hub fans graded submissions out to the learner's websocket subscribers.
// It implements submission.Notifier.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan ProgressEvent]struct{}
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[string]map[chan ProgressEvent]struct{}), logger: logger}
}

// Subscribe registers a listener for userID. The returned func removes it.
func (h *Hub) Subscribe(userID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
		})
	}
}

// Notify implements submission.Notifier. Slow subscribers miss events
// rather than holding up grading.
func (h *Hub) Notify(userID string, o submission.Outcome) {
	c := o.Contribution
	ev := ProgressEvent{
		Type:         "attempt",
		Stats:        o.Stats,
		QuizID:       o.QuizID,
		ReportID:     o.ReportID,
		Contribution: &c,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping progress event for slow subscriber", "user_id", userID)
		}
	}
}

// Subscribers returns how many streams userID has open.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// handleProgressStream streams the caller's stats: a snapshot on connect,
// then one event per graded submission.
func (h *Handler) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	r, ok := h.authenticate(w, r, true)
	if !ok {
		return
	}
	caller := identityFrom(r.Context())

	// Subscribe before reading the snapshot so no attempt falls in between.
	events, unsubscribe := h.hub.Subscribe(caller.UserID)
	defer unsubscribe()

	stats, err := h.grader.Stats(r.Context(), caller.UserID)
	if err != nil {
		h.handleError(w, err, "user_id", caller.UserID)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", "user_id", caller.UserID, "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles their close frames.
	ctx := conn.CloseRead(r.Context())
	logger := h.logger.With("user_id", caller.UserID)
	logger.Debug("progress stream opened")

	if err := writeEvent(ctx, conn, ProgressEvent{Type: "snapshot", Stats: stats}); err != nil {
		logger.Debug("progress stream write failed", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("progress stream closed")
			return
		case ev := <-events:
			if err := writeEvent(ctx, conn, ev); err != nil {
				logger.Debug("progress stream write failed", "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev ProgressEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
