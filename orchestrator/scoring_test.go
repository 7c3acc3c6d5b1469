package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusLabelBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		combined float64
		want     string
	}{
		{100, StatusHighlyConfident},
		{75, StatusHighlyConfident},
		{74.999, StatusConfident},
		{60, StatusConfident},
		{59.99, StatusNeutral},
		{40, StatusNeutral},
		{39.99, StatusNeedsImprovement},
		{0, StatusNeedsImprovement},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusLabel(tc.combined), "combined=%v", tc.combined)
	}
}

func TestNewAggregateBlendsBodyAndVoice(t *testing.T) {
	t.Parallel()

	agg := NewAggregate(80, 70)
	assert.InDelta(t, 74.0, agg.CombinedScore, 1e-9)
	assert.Equal(t, StatusConfident, agg.OverallStatus)
	assert.Equal(t, 80.0, agg.BodyLanguageScore)
	assert.Equal(t, 70.0, agg.VoiceToneScore)
}

func TestNewAggregateLabelsUnroundedScore(t *testing.T) {
	t.Parallel()

	// 0.4*74.9975 + 0.6*75 = 74.999, rounds to 75.00 but is below the threshold
	agg := NewAggregate(74.9975, 75)
	assert.Equal(t, 75.0, agg.CombinedScore)
	assert.Equal(t, StatusConfident, agg.OverallStatus)
}

func TestQuestionFinalScore(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 62.5, QuestionFinalScore(100, 50, 0), 1e-9)
	assert.InDelta(t, 50.0, QuestionFinalScore(50, 50, 50), 1e-9)
	// out-of-range response scores pass through
	assert.InDelta(t, 112.5, QuestionFinalScore(150, 50, 50), 1e-9)
}
