package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidQuiz wraps every import validation failure.
var ErrInvalidQuiz = errors.New("invalid quiz")

// importSchema accepts both historical question layouts: "correct" or
// "correctAnswer" for the key, "topic" or "topics" for tagging.
const importSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["questions"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string", "maxLength": 200},
    "description": {"type": "string", "maxLength": 1000},
    "questions": {
      "type": "array",
      "minItems": 1,
      "maxItems": 500,
      "items": {"$ref": "#/definitions/question"}
    }
  },
  "definitions": {
    "answer": {"type": ["integer", "string", "boolean"]},
    "question": {
      "type": "object",
      "required": ["options"],
      "anyOf": [
        {"required": ["question"]},
        {"required": ["text"]}
      ],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "question": {"type": "string", "minLength": 1},
        "text": {"type": "string", "minLength": 1},
        "options": {
          "type": "array",
          "minItems": 2,
          "items": {"type": "string"}
        },
        "correct": {"$ref": "#/definitions/answer"},
        "correctAnswer": {"$ref": "#/definitions/answer"},
        "topic": {"type": "string"},
        "topics": {
          "type": "array",
          "items": {"type": "string"}
        }
      }
    }
  }
}`

// ValidationError lists every problem found in an imported quiz.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidQuiz, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidQuiz
}

// Validator checks quiz import documents against the import schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the import schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(importSchema))
	if err != nil {
		return nil, fmt.Errorf("compile quiz schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Parse validates a JSON quiz document and decodes it. A document without an
// id takes fallbackID.
func (v *Validator) Parse(data []byte, fallbackID string) (Quiz, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Quiz{}, &ValidationError{Problems: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return Quiz{}, &ValidationError{Problems: problems}
	}

	var q Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return Quiz{}, &ValidationError{Problems: []string{err.Error()}}
	}
	if q.ID == "" {
		q.ID = fallbackID
	}
	if q.ID == "" {
		return Quiz{}, &ValidationError{Problems: []string{"id: quiz id is required"}}
	}
	if problems := checkAnswerRanges(q.Questions); len(problems) > 0 {
		return Quiz{}, &ValidationError{Problems: problems}
	}
	return q, nil
}

// checkAnswerRanges rejects integer answer keys that point outside the
// option list; the schema cannot express that.
func checkAnswerRanges(questions []Record) []string {
	var problems []string
	for i, q := range questions {
		options, _ := q["options"].([]any)
		for _, field := range []string{"correct", "correctAnswer"} {
			n, ok := q[field].(float64)
			if !ok {
				continue
			}
			if n < 0 || int(n) >= len(options) {
				problems = append(problems, fmt.Sprintf("questions.%d.%s: answer index %v is out of range", i, field, n))
			}
		}
	}
	return problems
}
