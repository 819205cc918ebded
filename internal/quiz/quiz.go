// Package quiz holds quiz catalogues and resolves the question set a
// submission is graded against.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrQuizNotFound is returned when no quiz exists for an ID.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuestionSet is returned when a quiz exists but neither its
	// inline list nor its legacy rows yield any question.
	ErrEmptyQuestionSet = errors.New("no questions found in quiz")
)

// Record is a raw question as stored. Question sets come from two historical
// formats that disagree on field names, so records are kept untyped and
// interpreted by the grading package.
type Record map[string]any

// ID returns the record's "id" field in text form, or "" when absent.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Quiz is a quiz document.
type Quiz struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Questions   []Record `json:"questions" yaml:"questions"`
	// Legacy holds questions stored one per row, the format used before
	// questions were embedded in the quiz document.
	Legacy []Record `json:"legacyQuestions,omitempty" yaml:"legacy_questions"`
}

// Set is the ordered question set a submission is graded against.
type Set struct {
	QuizID     string   `json:"quizId"`
	Title      string   `json:"title"`
	Questions  []Record `json:"questions"`
	FromLegacy bool     `json:"fromLegacy,omitempty"`
}

// Source looks up question sets by quiz ID.
type Source interface {
	Questions(ctx context.Context, quizID string) (Set, error)
}

// Store persists quizzes and serves their question sets.
type Store interface {
	Source
	GetQuiz(ctx context.Context, id string) (*Quiz, error)
	SaveQuiz(ctx context.Context, q Quiz) error
}

// resolveSet applies the lookup order shared by every store: the inline list
// wins, an empty inline list falls back to the legacy rows, and nothing in
// either is an empty set.
func resolveSet(q *Quiz, legacy func() ([]Record, error)) (Set, error) {
	set := Set{QuizID: q.ID, Title: q.Title}
	if len(q.Questions) > 0 {
		set.Questions = q.Questions
		return set, nil
	}

	rows, err := legacy()
	if err != nil {
		return Set{}, fmt.Errorf("load legacy questions: %w", err)
	}
	if len(rows) == 0 {
		return Set{}, fmt.Errorf("quiz %s: %w", q.ID, ErrEmptyQuestionSet)
	}
	set.Questions = rows
	set.FromLegacy = true
	return set, nil
}
