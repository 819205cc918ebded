package progress_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/developer-meett/Know-map/internal/platform/database/databasetest"
	"github.com/developer-meett/Know-map/internal/progress"
)

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := progress.NewPostgresStore(nil); err == nil {
		t.Error("NewPostgresStore(nil) should fail")
	}
}

func TestPostgresStore_CompareAndSwap(t *testing.T) {
	store, err := progress.NewPostgresStore(databasetest.NewPool(t))
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := t.Context()

	if _, err := store.Get(ctx, "learner-1"); !errors.Is(err, progress.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	first := progress.Stats{TotalQuizzesTaken: 1, TotalXP: 20, Level: 1, AverageScore: 50, TotalTimeSpentMinutes: 1.5}
	second := progress.Apply(&first, progress.Contribution{XPEarned: 70, Percentage: 100, IsPerfectScore: true})

	steps := []struct {
		name     string
		expected int64
		next     progress.Stats
		wantVer  int64
		wantErr  error
	}{
		{"create", 0, first, 1, nil},
		{"create over an existing row", 0, first, 0, progress.ErrConflict},
		{"update", 1, second, 2, nil},
		{"stale version", 1, second, 0, progress.ErrConflict},
	}
	for _, st := range steps {
		v, err := store.CompareAndSwap(ctx, "learner-1", st.expected, st.next)
		if !errors.Is(err, st.wantErr) || (st.wantErr == nil && err != nil) {
			t.Fatalf("%s: CompareAndSwap() error = %v, want %v", st.name, err, st.wantErr)
		}
		if v != st.wantVer {
			t.Errorf("%s: version = %d, want %d", st.name, v, st.wantVer)
		}
	}

	got, err := store.Get(ctx, "learner-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Stats != second || got.Version != 2 {
		t.Errorf("Get() = %+v, want %+v at version 2", got, second)
	}
}

func TestPostgresStore_ConcurrentUpdates(t *testing.T) {
	store, err := progress.NewPostgresStore(databasetest.NewPool(t))
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	const writers = 8

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := progress.Update(t.Context(), store, "learner-2", 50, func(prior *progress.Stats) progress.Stats {
				return progress.Apply(prior, progress.Contribution{XPEarned: 25, Percentage: 80})
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Update() error = %v", err)
		}
	}

	got, err := store.Get(t.Context(), "learner-2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Stats.TotalQuizzesTaken != writers || got.Stats.TotalXP != writers*25 || got.Stats.Level != 2 {
		t.Errorf("Get() = %+v, want %d quizzes, %d XP, level 2", got.Stats, writers, writers*25)
	}
}
