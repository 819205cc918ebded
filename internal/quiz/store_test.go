package quiz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/developer-meett/Know-map/internal/grading"
	"github.com/developer-meett/Know-map/internal/quiz"
)

func TestMemoryStore_Questions_InlineWins(t *testing.T) {
	store := quiz.NewMemoryStore(quiz.Quiz{
		ID:        "web",
		Title:     "Web",
		Questions: []quiz.Record{{"id": "inline-1"}},
		Legacy:    []quiz.Record{{"id": "legacy-1"}, {"id": "legacy-2"}},
	})

	set, err := store.Questions(context.Background(), "web")
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if set.FromLegacy {
		t.Error("FromLegacy = true, want inline list")
	}
	if len(set.Questions) != 1 || set.Questions[0].ID() != "inline-1" {
		t.Errorf("Questions = %v, want the inline question", set.Questions)
	}
	if set.Title != "Web" {
		t.Errorf("Title = %q, want Web", set.Title)
	}
}

func TestMemoryStore_Questions_EmptyInlineFallsBack(t *testing.T) {
	store := quiz.NewMemoryStore(quiz.Quiz{
		ID:        "web",
		Questions: []quiz.Record{},
		Legacy:    []quiz.Record{{"question": "first"}, {"id": "named", "question": "second"}},
	})

	set, err := store.Questions(context.Background(), "web")
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if !set.FromLegacy {
		t.Error("FromLegacy = false, want legacy rows")
	}
	if len(set.Questions) != 2 {
		t.Fatalf("len(Questions) = %d, want 2", len(set.Questions))
	}
	if _, ok := set.Questions[0]["id"]; ok {
		t.Errorf("first legacy row gained an id: %v", set.Questions[0])
	}
	if got := set.Questions[1].ID(); got != "named" {
		t.Errorf("second legacy id = %q, want named", got)
	}
}

// Rows without an id must only be reachable by position, even when another
// row's id looks like a positional name.
func TestMemoryStore_Questions_LegacyRowsWithoutIDs(t *testing.T) {
	store := quiz.NewMemoryStore(quiz.Quiz{
		ID: "mixed",
		Legacy: []quiz.Record{
			{"id": "q2", "question": "first", "correctAnswer": 1},
			{"question": "second", "correctAnswer": 1},
		},
	})

	set, err := store.Questions(context.Background(), "mixed")
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}

	a, err := grading.Analyze(grading.AnswerSet{"q2": 1}, set.Questions)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.TotalScore != 1 {
		t.Errorf("TotalScore = %d, want 1 for a single answer", a.TotalScore)
	}
	if got := a.QuestionBreakdown[1].QuestionID; got != "1" {
		t.Errorf("second questionId = %q, want its position", got)
	}
	if got := a.Count(grading.ErrNoAnswerProvided); got != 1 {
		t.Errorf("unanswered = %d, want 1", got)
	}
}

func TestMemoryStore_Questions_Empty(t *testing.T) {
	store := quiz.NewMemoryStore(quiz.Quiz{ID: "hollow"})

	_, err := store.Questions(context.Background(), "hollow")
	if !errors.Is(err, quiz.ErrEmptyQuestionSet) {
		t.Errorf("Questions() error = %v, want ErrEmptyQuestionSet", err)
	}
}

func TestMemoryStore_Questions_NotFound(t *testing.T) {
	store := quiz.NewMemoryStore()

	_, err := store.Questions(context.Background(), "missing")
	if !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Errorf("Questions() error = %v, want ErrQuizNotFound", err)
	}
}

func TestMemoryStore_SaveQuiz(t *testing.T) {
	store := quiz.NewMemoryStore()
	ctx := context.Background()

	if err := store.SaveQuiz(ctx, quiz.Quiz{}); err == nil {
		t.Error("SaveQuiz() should reject a quiz without id")
	}

	if err := store.SaveQuiz(ctx, quiz.Quiz{ID: "a", Title: "A"}); err != nil {
		t.Fatalf("SaveQuiz() error = %v", err)
	}
	got, err := store.GetQuiz(ctx, "a")
	if err != nil {
		t.Fatalf("GetQuiz() error = %v", err)
	}
	if got.Title != "A" {
		t.Errorf("Title = %q, want A", got.Title)
	}
}

func TestRecord_ID(t *testing.T) {
	tests := []struct {
		name string
		rec  quiz.Record
		want string
	}{
		{"string", quiz.Record{"id": "q1"}, "q1"},
		{"int", quiz.Record{"id": 7}, "7"},
		{"float", quiz.Record{"id": float64(3)}, "3"},
		{"missing", quiz.Record{}, ""},
		{"unsupported", quiz.Record{"id": []any{"x"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}
