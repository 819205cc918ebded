package grading

import (
	"errors"
	"fmt"
)

// ErrNoQuestions is the one fatal grading condition: a percentage over zero
// questions is undefined.
var ErrNoQuestions = errors.New("cannot analyse a quiz with no questions")

// Per-question conditions. None of them abort grading; they are reported as
// Diagnostics alongside the analysis.
var (
	ErrNoAnswerProvided     = errors.New("no answer provided")
	ErrMissingCorrectAnswer = errors.New("question has no correct answer")
	ErrMalformedTopicField  = errors.New("malformed topic field")
	ErrAmbiguousAnswerType  = errors.New("answers compared as text")
)

// Diagnostic records a tolerated problem with one question.
type Diagnostic struct {
	Question   int    `json:"question"`
	QuestionID string `json:"questionId,omitempty"`
	Issue      string `json:"issue"`

	err error
}

func newDiagnostic(pos int, questionID string, err error) Diagnostic {
	return Diagnostic{Question: pos, QuestionID: questionID, Issue: err.Error(), err: err}
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("question %d: %s", d.Question, d.Issue)
}

func (d Diagnostic) Unwrap() error {
	return d.err
}
