package grading

import (
	"errors"
	"strconv"

	"github.com/developer-meett/Know-map/internal/quiz"
)

// QuestionResult is the verdict on one question.
type QuestionResult struct {
	QuestionID    string   `json:"questionId"`
	QuestionText  string   `json:"questionText"`
	Topic         string   `json:"topic"`
	UserAnswer    any      `json:"userAnswer"`
	CorrectAnswer any      `json:"correctAnswer"`
	IsCorrect     bool     `json:"isCorrect"`
	Options       []string `json:"options"`
}

// Analysis is the graded result of one attempt.
type Analysis struct {
	TotalScore        int                            `json:"totalScore"`
	TotalQuestions    int                            `json:"totalQuestions"`
	OverallPercentage float64                        `json:"overallPercentage"`
	ClassifiedTopics  map[string]TopicClassification `json:"classifiedTopics"`
	TopicOrder        []string                       `json:"topicOrder,omitempty"`
	QuestionBreakdown []QuestionResult               `json:"questionBreakdown"`
	Diagnostics       []Diagnostic                   `json:"diagnostics,omitempty"`
}

// IsPerfectScore reports whether every question was answered correctly.
func (a Analysis) IsPerfectScore() bool {
	return a.TotalQuestions > 0 && a.TotalScore == a.TotalQuestions
}

// Analyze grades answers against questions. It has no side effects; the only
// error it returns is ErrNoQuestions. Tolerated per-question problems are
// listed in Analysis.Diagnostics.
func Analyze(answers AnswerSet, questions []quiz.Record) (Analysis, error) {
	if len(questions) == 0 {
		return Analysis{}, ErrNoQuestions
	}

	tally := NewTally()
	res := Analysis{
		TotalQuestions:    len(questions),
		QuestionBreakdown: make([]QuestionResult, 0, len(questions)),
	}

	for i, q := range questions {
		id := q.ID()
		note := func(err error) {
			res.Diagnostics = append(res.Diagnostics, newDiagnostic(i, id, err))
		}

		userAnswer, via := ResolveAnswer(answers, id, i)
		if via == "" || userAnswer == nil {
			note(ErrNoAnswerProvided)
		}
		correctAnswer, field := ResolveCorrectAnswer(q)
		if field == "" || correctAnswer == nil {
			note(ErrMissingCorrectAnswer)
		}
		topics, err := ExtractTopics(q)
		if err != nil {
			note(err)
		}

		correct, textual := compare(userAnswer, correctAnswer)
		if textual {
			note(ErrAmbiguousAnswerType)
		}
		if correct {
			res.TotalScore++
		}
		tally.Add(topics, correct)

		if id == "" {
			id = strconv.Itoa(i)
		}
		res.QuestionBreakdown = append(res.QuestionBreakdown, QuestionResult{
			QuestionID:    id,
			QuestionText:  questionText(q),
			Topic:         topics[0],
			UserAnswer:    userAnswer,
			CorrectAnswer: correctAnswer,
			IsCorrect:     correct,
			Options:       questionOptions(q),
		})
	}

	res.ClassifiedTopics = tally.Classify()
	res.TopicOrder = tally.Topics()
	res.OverallPercentage = Round1(float64(res.TotalScore) / float64(res.TotalQuestions) * 100)
	return res, nil
}

// Count returns how many diagnostics match target.
func (a Analysis) Count(target error) int {
	n := 0
	for _, d := range a.Diagnostics {
		if errors.Is(d, target) {
			n++
		}
	}
	return n
}
