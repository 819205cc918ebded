package grading

import (
	"strconv"

	"github.com/developer-meett/Know-map/internal/quiz"
)

// AnswerSet maps a question reference to the learner's answer. Keys are
// either a zero-based position ("0", "1", ...) or a question id.
type AnswerSet map[string]any

// answerLookup is one way of finding a submitted answer.
type answerLookup struct {
	name string
	find func(answers AnswerSet, questionID string, pos int) (any, bool)
}

// answerLookups are tried in order; the first hit wins. Position keys come
// from array-shaped quizzes, id keys from quizzes stored one question per row.
var answerLookups = []answerLookup{
	{
		name: "position",
		find: func(answers AnswerSet, _ string, pos int) (any, bool) {
			v, ok := answers[strconv.Itoa(pos)]
			return v, ok
		},
	},
	{
		name: "id",
		find: func(answers AnswerSet, questionID string, _ int) (any, bool) {
			if questionID == "" {
				return nil, false
			}
			v, ok := answers[questionID]
			return v, ok
		},
	},
}

// ResolveAnswer returns the learner's answer for the question at pos and the
// name of the lookup that found it. The name is empty when no key matched.
// A matched key holding null still wins and yields a nil answer.
func ResolveAnswer(answers AnswerSet, questionID string, pos int) (any, string) {
	for _, l := range answerLookups {
		if v, ok := l.find(answers, questionID, pos); ok {
			return v, l.name
		}
	}
	return nil, ""
}

// fieldChain is an ordered list of record keys; the first present key wins.
type fieldChain []string

func (c fieldChain) lookup(r quiz.Record) (string, any, bool) {
	for _, key := range c {
		if v, ok := r[key]; ok {
			return key, v, true
		}
	}
	return "", nil, false
}

var (
	correctAnswerFields = fieldChain{"correct", "correctAnswer"}
	questionTextFields  = fieldChain{"question", "text", "questionText"}
)

// ResolveCorrectAnswer returns the answer key of a question and the field it
// came from. Both are zero when the question carries no key.
func ResolveCorrectAnswer(r quiz.Record) (any, string) {
	key, v, ok := correctAnswerFields.lookup(r)
	if !ok {
		return nil, ""
	}
	return v, key
}

func questionText(r quiz.Record) string {
	_, v, ok := questionTextFields.lookup(r)
	if !ok || v == nil {
		return ""
	}
	return textOf(v)
}

func questionOptions(r quiz.Record) []string {
	switch v := r["options"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, o := range v {
			if o == nil {
				out = append(out, "")
				continue
			}
			out = append(out, textOf(o))
		}
		return out
	default:
		return []string{}
	}
}
