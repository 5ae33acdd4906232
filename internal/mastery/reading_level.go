package mastery

import (
	"math"
	"slices"
)

const (
	// ceilingFactor lifts a perfect mean to 1.2 times the grade level
	ceilingFactor = 0.2
	// floorFactor drops a zero mean to 0.7 times the grade level
	floorFactor = 0.3
)

// MeanScore returns the arithmetic mean of the scores and false when there are none
func MeanScore(scores []float64) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	// summed in sorted order so the result does not depend on input order
	sorted := slices.Clone(scores)
	slices.Sort(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	return sum / float64(len(scores)), true
}

// ReadingLevel computes a reading level from every terminal score of a user.
//
// A mean equal to the threshold maps to the grade level. Means above it rise
// linearly up to 1.2×grade at a perfect score, means below it fall linearly
// down to 0.7×grade at zero. Without scores the current level is kept.
// The result depends on the multiset of scores only, so recomputing over the
// same history always yields the same value.
func ReadingLevel(gradeLevel int, current float64, scores []float64, threshold float64) float64 {
	mean, ok := MeanScore(scores)
	if !ok {
		return current
	}
	mean = math.Max(0, math.Min(1, mean))

	grade := float64(gradeLevel)
	var level float64
	if mean >= threshold {
		level = grade * (1 + ceilingFactor*(mean-threshold)/(1-threshold))
	} else {
		level = grade * (1 - floorFactor*(threshold-mean)/threshold)
	}

	return math.Round(level*100) / 100
}
