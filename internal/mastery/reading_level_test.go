package mastery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadingLevel(t *testing.T) {
	tests := []struct {
		name     string
		grade    int
		current  float64
		scores   []float64
		expected float64
	}{
		{name: "no terminal answers keeps current", grade: 5, current: 4.0, scores: nil, expected: 4.0},
		{name: "mean at threshold maps to grade", grade: 5, current: 4.0, scores: []float64{0.7}, expected: 5.0},
		{name: "mean of mixed scores at threshold", grade: 6, current: 0, scores: []float64{0.6, 0.8}, expected: 6.0},
		{name: "perfect mean", grade: 5, current: 4.0, scores: []float64{1, 1}, expected: 6.0},
		{name: "zero mean", grade: 10, current: 8.0, scores: []float64{0}, expected: 7.0},
		{name: "above threshold", grade: 5, current: 4.0, scores: []float64{0.85}, expected: 5.5},
		{name: "below threshold", grade: 4, current: 3.2, scores: []float64{0.35}, expected: 3.4},
		{name: "sufficient initial and retry on different questions", grade: 5, current: 4.0, scores: []float64{0.8, 0.9}, expected: 5.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReadingLevel(tt.grade, tt.current, tt.scores, DefaultSufficiencyThreshold)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestReadingLevel_Idempotent(t *testing.T) {
	scores := []float64{0.31, 0.72, 0.9, 0.55, 0.64}

	first := ReadingLevel(7, 5.6, scores, DefaultSufficiencyThreshold)
	second := ReadingLevel(7, first, scores, DefaultSufficiencyThreshold)
	reordered := ReadingLevel(7, first, []float64{0.9, 0.64, 0.31, 0.55, 0.72}, DefaultSufficiencyThreshold)

	assert.Equal(t, first, second)
	assert.Equal(t, first, reordered)
}

func TestReadingLevel_Monotonic(t *testing.T) {
	prev := ReadingLevel(5, 0, []float64{0}, DefaultSufficiencyThreshold)
	for score := 0.1; score <= 1.0; score += 0.1 {
		level := ReadingLevel(5, 0, []float64{score}, DefaultSufficiencyThreshold)
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestMeanScore(t *testing.T) {
	_, ok := MeanScore(nil)
	assert.False(t, ok)

	mean, ok := MeanScore([]float64{0.5, 1})
	assert.True(t, ok)
	assert.InDelta(t, 0.75, mean, 1e-9)
}
