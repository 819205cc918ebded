package grading

import (
	"fmt"
	"strings"

	"github.com/developer-meett/Know-map/internal/quiz"
)

// DefaultTopic is used for questions carrying no usable topic.
const DefaultTopic = "General"

var topicFields = fieldChain{"topics", "topic"}

// ExtractTopics returns the non-empty, ordered topic list of a question. The
// plural "topics" field wins over the singular "topic"; a scalar is wrapped.
// Unusable tagging falls back to DefaultTopic and is reported with
// ErrMalformedTopicField, which callers should treat as a warning.
func ExtractTopics(r quiz.Record) ([]string, error) {
	key, v, ok := topicFields.lookup(r)
	if !ok {
		return []string{DefaultTopic}, nil
	}

	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{DefaultTopic}, fmt.Errorf("%s is empty: %w", key, ErrMalformedTopicField)
		}
		return []string{t}, nil
	case []string:
		return topicList(key, t)
	case []any:
		names := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				names = append(names, "")
				continue
			}
			names = append(names, textOf(item))
		}
		return topicList(key, names)
	case nil:
		return []string{DefaultTopic}, fmt.Errorf("%s is null: %w", key, ErrMalformedTopicField)
	case map[string]any:
		return []string{DefaultTopic}, fmt.Errorf("%s is an object: %w", key, ErrMalformedTopicField)
	default:
		// Numbers and booleans still name a topic once written out.
		return []string{textOf(t)}, fmt.Errorf("%s is a %T: %w", key, t, ErrMalformedTopicField)
	}
}

func topicList(key string, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	dropped := 0
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			dropped++
			continue
		}
		out = append(out, n)
	}

	switch {
	case len(out) == 0:
		return []string{DefaultTopic}, fmt.Errorf("%s has no names: %w", key, ErrMalformedTopicField)
	case dropped > 0:
		return out, fmt.Errorf("%s has %d blank names: %w", key, dropped, ErrMalformedTopicField)
	default:
		return out, nil
	}
}
