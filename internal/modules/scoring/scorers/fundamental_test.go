package scorers

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmind/marketmind/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestFundamentalScorer_StrongFundamentals(t *testing.T) {
	scorer := NewFundamentalScorer(nil, 0.3, zerolog.Nop())

	signal := scorer.Score(&domain.FundamentalSnapshot{
		PERatio:       f64(12),
		IndustryPE:    f64(20), // relative P/E 0.6: significantly undervalued
		PBRatio:       f64(0.8),
		DebtToEquity:  f64(0.2),
		RevenueGrowth: f64(25),
	})

	assert.InDelta(t, 1.0, signal.Score, 1e-9)
	assert.Equal(t, 0.9, signal.Confidence)
	assert.Equal(t, domain.DirectionPositive, signal.Direction())
}

func TestFundamentalScorer_WeakFundamentals(t *testing.T) {
	scorer := NewFundamentalScorer(nil, 0.3, zerolog.Nop())

	signal := scorer.Score(&domain.FundamentalSnapshot{
		PERatio:       f64(40),
		IndustryPE:    f64(20), // relative P/E 2.0: significantly overvalued
		PBRatio:       f64(6),
		DebtToEquity:  f64(3),
		RevenueGrowth: f64(-12),
	})

	assert.InDelta(t, -1.0, signal.Score, 1e-9)
	assert.Equal(t, domain.DirectionNegative, signal.Direction())
}

func TestFundamentalScorer_MissingMetricsDropOut(t *testing.T) {
	scorer := NewFundamentalScorer(nil, 0.3, zerolog.Nop())

	// Only P/B available: the score is exactly the P/B band value.
	signal := scorer.Score(&domain.FundamentalSnapshot{PBRatio: f64(1.5)})
	assert.InDelta(t, 0.5, signal.Score, 1e-9)
	// P/E and revenue growth missing: low-data confidence.
	assert.Equal(t, 0.5, signal.Confidence)
}

func TestFundamentalScorer_NoMetrics(t *testing.T) {
	scorer := NewFundamentalScorer(nil, 0.3, zerolog.Nop())

	signal := scorer.Score(&domain.FundamentalSnapshot{})
	assert.Zero(t, signal.Score)
	assert.Equal(t, 0.5, signal.Confidence)
	assert.Equal(t, domain.DirectionNeutral, signal.Direction())

	signal = scorer.Score(nil)
	assert.Zero(t, signal.Score)
	require.NotNil(t, signal.Fundamental)
}

func TestFundamentalScorer_NeutralDamping(t *testing.T) {
	scorer := NewFundamentalScorer(nil, 0.3, zerolog.Nop())

	// P/B 2.5 scores 0.0, growth 5% scores 0.0: a dead-neutral signal
	// whose strength is damped.
	signal := scorer.Score(&domain.FundamentalSnapshot{
		PBRatio:       f64(2.5),
		RevenueGrowth: f64(5),
	})
	assert.Zero(t, signal.Score)
	assert.Zero(t, signal.Strength)
}

func TestFundamentalBands(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float64) float64
		in   float64
		want float64
	}{
		{"pe significantly undervalued", peScore, 0.6, 1.0},
		{"pe moderately undervalued", peScore, 0.8, 0.5},
		{"pe fairly valued", peScore, 1.0, 0.0},
		{"pe moderately overvalued", peScore, 1.2, -0.5},
		{"pe significantly overvalued", peScore, 1.5, -1.0},
		{"pb below book", pbScore, 0.9, 1.0},
		{"pb very high", pbScore, 6.0, -1.0},
		{"de very low", deScore, 0.2, 1.0},
		{"de very high", deScore, 2.5, -1.0},
		{"growth strong", growthScore, 25, 1.0},
		{"growth slight decline", growthScore, -3, -0.5},
		{"growth significant decline", growthScore, -10, -1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestFundamentalConfidence_CountsCoreMetricsOnly(t *testing.T) {
	// Debt-to-equity does not participate in the confidence bands.
	m := &domain.FundamentalSnapshot{
		PERatio:       f64(15),
		PBRatio:       f64(2),
		RevenueGrowth: f64(8),
	}
	assert.Equal(t, 0.9, fundamentalConfidence(m))

	m.PERatio = nil
	assert.Equal(t, 0.7, fundamentalConfidence(m))

	m.PBRatio = nil
	assert.Equal(t, 0.5, fundamentalConfidence(m))
}
