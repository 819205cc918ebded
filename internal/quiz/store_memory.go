package quiz

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	quizzes map[string]Quiz
	mu      sync.RWMutex
}

// NewMemoryStore creates a store preloaded with the given quizzes.
func NewMemoryStore(quizzes ...Quiz) *MemoryStore {
	s := &MemoryStore{quizzes: make(map[string]Quiz, len(quizzes))}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q
	}
	return s
}

func (s *MemoryStore) GetQuiz(_ context.Context, id string) (*Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("quiz %s: %w", id, ErrQuizNotFound)
	}
	return &q, nil
}

func (s *MemoryStore) SaveQuiz(_ context.Context, q Quiz) error {
	if q.ID == "" {
		return fmt.Errorf("quiz id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[q.ID] = q
	return nil
}

func (s *MemoryStore) Questions(ctx context.Context, quizID string) (Set, error) {
	q, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return Set{}, err
	}
	return resolveSet(q, func() ([]Record, error) {
		return q.Legacy, nil
	})
}
