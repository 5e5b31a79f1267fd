// Package emotion holds the closed diary emotion taxonomy, the score vector
// produced for each diary, and the LLM-backed classifier that fills it.
package emotion

import (
	"fmt"
	"math"
)

// Labels is the closed set in display order. Ties in Dominant resolve to the
// earlier label.
var Labels = []string{"기쁨", "슬픔", "분노", "불안", "평온", "피로", "뿌듯", "설렘"}

var labelIndex = func() map[string]int {
	idx := make(map[string]int, len(Labels))
	for i, label := range Labels {
		idx[label] = i
	}
	return idx
}()

// IsLabel reports whether label belongs to the closed set.
func IsLabel(label string) bool {
	_, ok := labelIndex[label]
	return ok
}

// Score is one label of a Vector.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Vector is an ordered multi-label score list. Scores are not normalized.
type Vector []Score

// FromMap builds a full vector in closed-set order; labels missing from
// scores get zero. Unknown labels or negative scores are rejected.
func FromMap(scores map[string]float64) (Vector, error) {
	for label, value := range scores {
		if !IsLabel(label) {
			return nil, fmt.Errorf("unknown emotion label %q", label)
		}
		if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("invalid score %v for %s", value, label)
		}
	}
	vec := make(Vector, 0, len(Labels))
	for _, label := range Labels {
		vec = append(vec, Score{Label: label, Score: scores[label]})
	}
	return vec, nil
}

// Zero returns a vector with every label at zero.
func Zero() Vector {
	vec, _ := FromMap(nil)
	return vec
}

// Validate checks the closed-set and non-negativity invariants.
func (v Vector) Validate() error {
	seen := make(map[string]struct{}, len(v))
	for _, s := range v {
		if !IsLabel(s.Label) {
			return fmt.Errorf("unknown emotion label %q", s.Label)
		}
		if _, dup := seen[s.Label]; dup {
			return fmt.Errorf("duplicate emotion label %q", s.Label)
		}
		seen[s.Label] = struct{}{}
		if s.Score < 0 || math.IsNaN(s.Score) {
			return fmt.Errorf("invalid score %v for %s", s.Score, s.Label)
		}
	}
	return nil
}

// Map returns the vector as label -> score.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v))
	for _, s := range v {
		out[s.Label] = s.Score
	}
	return out
}

// Dominant returns the highest scoring label, or "" for an empty vector.
func (v Vector) Dominant() string {
	best := ""
	bestScore := math.Inf(-1)
	bestIdx := len(Labels)
	for _, s := range v {
		idx := labelIndex[s.Label]
		if s.Score > bestScore || (s.Score == bestScore && idx < bestIdx) {
			best, bestScore, bestIdx = s.Label, s.Score, idx
		}
	}
	return best
}

// Add accumulates other into v by label.
func (v Vector) Add(other Vector) Vector {
	sums := v.Map()
	for _, s := range other {
		sums[s.Label] += s.Score
	}
	out, err := FromMap(sums)
	if err != nil {
		return v
	}
	return out
}

// Rounded rounds every score to one decimal place.
func (v Vector) Rounded() Vector {
	out := make(Vector, len(v))
	for i, s := range v {
		out[i] = Score{Label: s.Label, Score: math.Round(s.Score*10) / 10}
	}
	return out
}
