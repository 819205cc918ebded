package grading

import "strconv"

// Mastery tiers, as they appear in stored reports.
const (
	TierMastered         = "Mastered"
	TierNeedsRevision    = "Needs Revision"
	TierLearnFromScratch = "Learn from Scratch"
	TierNoQuestions      = "No Questions"
)

// Fixed classification thresholds on the correct/total ratio.
const (
	MasteredThreshold      = 0.8
	NeedsRevisionThreshold = 0.5
)

// TopicStat counts answers for one topic.
type TopicStat struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// TopicClassification is the mastery verdict for one topic.
type TopicClassification struct {
	Classification string  `json:"classification"`
	Correct        int     `json:"correct"`
	Total          int     `json:"total"`
	Percentage     float64 `json:"percentage"`
}

// ClassifyTopicPerformance maps a topic's tally to its mastery tier.
func ClassifyTopicPerformance(correct, total int) TopicClassification {
	if total <= 0 {
		return TopicClassification{Classification: TierNoQuestions, Correct: correct, Total: 0}
	}

	ratio := float64(correct) / float64(total)
	tier := TierLearnFromScratch
	switch {
	case ratio >= MasteredThreshold:
		tier = TierMastered
	case ratio >= NeedsRevisionThreshold:
		tier = TierNeedsRevision
	}

	return TopicClassification{
		Classification: tier,
		Correct:        correct,
		Total:          total,
		Percentage:     Round1(ratio * 100),
	}
}

// Tally accumulates TopicStats in first-encounter order.
type Tally struct {
	order []string
	stats map[string]*TopicStat
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{stats: make(map[string]*TopicStat)}
}

// Add records one question under each of its topics. A question tagged with
// several topics counts towards all of them.
func (t *Tally) Add(topics []string, correct bool) {
	for _, name := range topics {
		st, ok := t.stats[name]
		if !ok {
			st = &TopicStat{}
			t.stats[name] = st
			t.order = append(t.order, name)
		}
		st.Total++
		if correct {
			st.Correct++
		}
	}
}

// Topics returns topic names in the order they were first seen.
func (t *Tally) Topics() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Stat returns the tally for one topic.
func (t *Tally) Stat(name string) (TopicStat, bool) {
	st, ok := t.stats[name]
	if !ok {
		return TopicStat{}, false
	}
	return *st, true
}

// Classify classifies every topic seen so far.
func (t *Tally) Classify() map[string]TopicClassification {
	out := make(map[string]TopicClassification, len(t.stats))
	for _, name := range t.order {
		st := t.stats[name]
		out[name] = ClassifyTopicPerformance(st.Correct, st.Total)
	}
	return out
}

// Round1 rounds to one decimal place. Rounding works on the exact binary
// value, so 61.15 (stored as 61.149999...) becomes 61.1; exact halves such as
// 0.25 go to even.
func Round1(x float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 1, 64), 64)
	if err != nil {
		return x
	}
	return r
}
