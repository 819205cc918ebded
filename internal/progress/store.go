package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned when a learner has no stats record yet.
	ErrNotFound = errors.New("stats not found")
	// ErrConflict is returned when a conditional write loses to a concurrent
	// writer. Callers retry from a fresh read.
	ErrConflict = errors.New("stats changed concurrently")
)

// DefaultMaxAttempts bounds the read-modify-write retries of Update.
const DefaultMaxAttempts = 5

// Versioned is a stats record with the version it was read at. Version 0
// means no record exists.
type Versioned struct {
	Stats   Stats
	Version int64
}

// Store persists per-learner stats with compare-and-swap writes.
type Store interface {
	// Get returns the learner's record or ErrNotFound.
	Get(ctx context.Context, userID string) (Versioned, error)
	// CompareAndSwap writes next only if the stored version still equals
	// expected (0 to create) and returns the new version, or ErrConflict.
	CompareAndSwap(ctx context.Context, userID string, expected int64, next Stats) (int64, error)
}

// Update applies fn to the learner's current stats and writes the result
// conditionally, retrying up to maxAttempts times when another writer gets
// there first. fn receives nil for a learner with no record and may run
// more than once.
func Update(ctx context.Context, store Store, userID string, maxAttempts int, fn func(prior *Stats) Stats) (Stats, int64, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; ; attempt++ {
		cur, err := store.Get(ctx, userID)
		var prior *Stats
		switch {
		case err == nil:
			prior = &cur.Stats
		case errors.Is(err, ErrNotFound):
			cur = Versioned{}
		default:
			return Stats{}, 0, fmt.Errorf("read stats: %w", err)
		}

		next := fn(prior)
		version, err := store.CompareAndSwap(ctx, userID, cur.Version, next)
		if err == nil {
			return next, version, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Stats{}, 0, fmt.Errorf("write stats: %w", err)
		}
		if attempt >= maxAttempts {
			return Stats{}, 0, fmt.Errorf("update stats after %d attempts: %w", attempt, err)
		}
		if err := ctx.Err(); err != nil {
			return Stats{}, 0, err
		}
	}
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records map[string]Versioned
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory stats store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Versioned)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Versioned, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return Versioned{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, userID string, expected int64, next Stats) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("user_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[userID].Version != expected {
		return 0, ErrConflict
	}
	version := expected + 1
	s.records[userID] = Versioned{Stats: next, Version: version}
	return version, nil
}
