package quiz_test

import (
	"errors"
	"testing"

	"github.com/developer-meett/Know-map/internal/platform/database/databasetest"
	"github.com/developer-meett/Know-map/internal/quiz"
)

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := quiz.NewPostgresStore(nil); err == nil {
		t.Error("NewPostgresStore(nil) should fail")
	}
}

func TestPostgresStore_LegacyRows(t *testing.T) {
	store, err := quiz.NewPostgresStore(databasetest.NewPool(t))
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := t.Context()

	q := quiz.Quiz{
		ID:    "mixed",
		Title: "Mixed ids",
		Legacy: []quiz.Record{
			{"id": "q2", "question": "first", "correctAnswer": 1},
			{"question": "second", "correctAnswer": 1},
			{"id": "q2", "question": "third", "correctAnswer": 0},
		},
	}
	if err := store.SaveQuiz(ctx, q); err != nil {
		t.Fatalf("SaveQuiz() error = %v", err)
	}

	set, err := store.Questions(ctx, "mixed")
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if !set.FromLegacy || len(set.Questions) != 3 {
		t.Fatalf("set = %+v, want 3 legacy rows", set)
	}
	wantIDs := []string{"q2", "", "q2"}
	for i, want := range wantIDs {
		if got := set.Questions[i].ID(); got != want {
			t.Errorf("row %d id = %q, want %q", i, got, want)
		}
	}
	if _, ok := set.Questions[1]["id"]; ok {
		t.Errorf("row without id gained one: %v", set.Questions[1])
	}

	// Saving again replaces the rows instead of colliding with them.
	q.Legacy = q.Legacy[:1]
	if err := store.SaveQuiz(ctx, q); err != nil {
		t.Fatalf("second SaveQuiz() error = %v", err)
	}
	set, err = store.Questions(ctx, "mixed")
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if len(set.Questions) != 1 {
		t.Errorf("len(Questions) = %d after resave, want 1", len(set.Questions))
	}
}

func TestPostgresStore_NotFound(t *testing.T) {
	store, err := quiz.NewPostgresStore(databasetest.NewPool(t))
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}

	if _, err := store.Questions(t.Context(), "missing"); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Errorf("Questions() error = %v, want ErrQuizNotFound", err)
	}
}
