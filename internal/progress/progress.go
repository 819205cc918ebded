// Package progress keeps each learner's cumulative statistics and folds
// graded attempts into them.
package progress

import (
	"math"
	"time"

	"github.com/developer-meett/Know-map/internal/grading"
)

// XP awarded per attempt.
const (
	CompletionXP     = 10
	PerCorrectXP     = 2
	PerfectScoreXP   = 50
	XPPerLevel       = 100
	secondsPerMinute = 60
)

// Stats is a learner's running progression record.
type Stats struct {
	TotalQuizzesTaken     int     `json:"totalQuizzesTaken"`
	TotalTimeSpentMinutes float64 `json:"totalTimeSpent"`
	TotalXP               int     `json:"totalXP"`
	Level                 int     `json:"level"`
	AverageScore          float64 `json:"averageScore"`
	PerfectScores         int     `json:"perfectScores"`
}

// NewStats returns the record of a learner who has taken no quiz yet.
func NewStats() Stats {
	return Stats{Level: 1}
}

// Contribution is what one attempt adds to a learner's Stats.
type Contribution struct {
	XPEarned         int       `json:"xpEarned"`
	Score            int       `json:"score"`
	TotalQuestions   int       `json:"totalQuestions"`
	Percentage       float64   `json:"percentage"`
	IsPerfectScore   bool      `json:"isPerfectScore"`
	TimeSpentSeconds float64   `json:"timeSpent"`
	CompletedAt      time.Time `json:"completedAt"`
}

// XPEarned is the experience awarded for an attempt with the given score.
func XPEarned(score int, perfect bool) int {
	xp := CompletionXP + PerCorrectXP*score
	if perfect {
		xp += PerfectScoreXP
	}
	return xp
}

// NewContribution derives an attempt's contribution from its analysis.
func NewContribution(a grading.Analysis, timeSpentSeconds float64, completedAt time.Time) Contribution {
	perfect := a.IsPerfectScore()
	if timeSpentSeconds < 0 {
		timeSpentSeconds = 0
	}
	return Contribution{
		XPEarned:         XPEarned(a.TotalScore, perfect),
		Score:            a.TotalScore,
		TotalQuestions:   a.TotalQuestions,
		Percentage:       a.OverallPercentage,
		IsPerfectScore:   perfect,
		TimeSpentSeconds: timeSpentSeconds,
		CompletedAt:      completedAt,
	}
}

// Apply returns the stats that follow prior once c is counted. A nil prior
// is a learner with no history. Apply never looks at earlier attempts and
// does not detect an attempt being applied twice.
func Apply(prior *Stats, c Contribution) Stats {
	cur := NewStats()
	if prior != nil {
		cur = *prior
	}

	taken := cur.TotalQuizzesTaken + 1
	next := Stats{
		TotalQuizzesTaken:     taken,
		TotalTimeSpentMinutes: cur.TotalTimeSpentMinutes + c.TimeSpentSeconds/secondsPerMinute,
		TotalXP:               cur.TotalXP + c.XPEarned,
		PerfectScores:         cur.PerfectScores,
		// Weighted by the count before this attempt.
		AverageScore: grading.Round1((cur.AverageScore*float64(cur.TotalQuizzesTaken) + c.Percentage) / float64(taken)),
	}
	if c.IsPerfectScore {
		next.PerfectScores++
	}
	next.Level = LevelFor(next.TotalXP)
	return next
}

// LevelFor returns the level reached with xp experience points.
func LevelFor(xp int) int {
	return max(1, int(math.Floor(float64(xp)/XPPerLevel)))
}
