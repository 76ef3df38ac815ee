// services/multipliers.go
package services

import (
	"math"

	"activity-reward-system/models"
)

// Multipliers are the independent performance factors behind one bundle.
type Multipliers struct {
	Productivity float64 `json:"productivity"`
	Session      float64 `json:"session"`
	Time         float64 `json:"time"`
	Combined     float64 `json:"combined"`
}

// ComputeMultipliers composes the productivity, session and time factors.
func ComputeMultipliers(o models.SessionOutcome) Multipliers {
	m := Multipliers{
		Productivity: math.Max(0, float64(o.ProductivityScore)/100),
		Session:      math.Min(2, math.Max(0, float64(o.CompletedSessions)/4)),
		Time:         math.Min(2, math.Max(0, float64(o.TotalFocusMinutes)/60)),
	}
	m.Combined = 1 + (m.Productivity+m.Session+m.Time)/3
	return m
}

// TierWeights scales tier i by combined^i so every step up the ladder gains
// relative to the one below it.
func TierWeights(base []float64, combined float64) []float64 {
	out := make([]float64, len(base))
	for i, w := range base {
		out[i] = w * math.Pow(combined, float64(i))
	}
	return out
}

// Assessment levels reported for focus blocks.
var assessmentScores = map[string]int{
	"none": 0,
	"some": 25,
	"most": 75,
	"all":  100,
}

// AssessmentScore converts a self-assessment label into its score.
func AssessmentScore(label string) (int, bool) {
	s, ok := assessmentScores[label]
	return s, ok
}

// ElapsedScore scores a location activity by time spent against the expected duration.
func ElapsedScore(elapsedMinutes float64, expectedMinutes int) int {
	d := float64(expectedMinutes)
	if d <= 0 {
		return 100
	}
	t := math.Max(1, math.Round(elapsedMinutes))
	switch {
	case t <= d:
		return int(math.Min(120, 100+math.Round((d-t)/d*20)))
	case t > 2*d:
		return int(math.Max(80, 100-math.Round((t-d)/d*10)))
	}
	return 100
}
