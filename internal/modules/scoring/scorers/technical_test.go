package scorers

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmind/marketmind/internal/domain"
)

// syntheticHistory builds a daily price series following the given closes,
// with highs/lows bracketing each close and constant volume.
func syntheticHistory(symbol string, closes []float64) *domain.QuoteHistory {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		prices[i] = domain.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   c * 0.995,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return &domain.QuoteHistory{
		Symbol:       symbol,
		CurrentPrice: closes[len(closes)-1],
		Prices:       prices,
	}
}

// geometricCloses generates a compounding price path (rate per day).
func geometricCloses(n int, start, rate float64) []float64 {
	closes := make([]float64, n)
	price := start
	for i := range closes {
		closes[i] = price
		price *= 1 + rate
	}
	return closes
}

func TestTechnicalScorer_AcceleratingUptrend(t *testing.T) {
	scorer := NewTechnicalScorer(nil, 0.3, zerolog.Nop())

	// A relentless compounding rally: every bar gains, so RSI saturates
	// and the regime reads as overbought exhaustion rather than a trend.
	history := syntheticHistory("RELIANCE", geometricCloses(250, 100, 0.01))
	signal, err := scorer.Score(history)
	require.NoError(t, err)

	assert.Positive(t, signal.Score)
	assert.Equal(t, domain.RegimeOverboughtZone, signal.Technical.Regime)
	require.NotNil(t, signal.Technical.MA200)
	assert.Greater(t, *signal.Technical.MA20, *signal.Technical.MA50)
}

func TestTechnicalScorer_RelentlessDecline(t *testing.T) {
	scorer := NewTechnicalScorer(nil, 0.3, zerolog.Nop())

	// Every bar loses, so RSI pins at the floor and the regime reads as
	// oversold exhaustion. The combined score still ends up negative
	// because the MA stack and MACD are firmly bearish.
	history := syntheticHistory("RELIANCE", geometricCloses(250, 200, -0.01))
	signal, err := scorer.Score(history)
	require.NoError(t, err)

	assert.Negative(t, signal.Score)
	assert.Equal(t, domain.RegimeOversoldZone, signal.Technical.Regime)
}

func TestTechnicalScorer_InsufficientData(t *testing.T) {
	scorer := NewTechnicalScorer(nil, 0.3, zerolog.Nop())

	_, err := scorer.Score(syntheticHistory("X", geometricCloses(30, 100, 0.002)))
	require.Error(t, err)

	_, err = scorer.Score(nil)
	require.Error(t, err)
}

func TestRSIScore_Bands(t *testing.T) {
	tests := []struct {
		name string
		rsi  float64
		want float64
	}{
		{"deep oversold", 10, (30.0 - 10.0) / 30.0},
		{"oversold boundary", 30, -0.2},
		{"equilibrium", 50, 0},
		{"neutral bullish bias", 60, 0.1},
		{"overbought boundary", 70, 0.2},
		{"deep overbought", 90, -(90.0 - 70.0) / 30.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rsiScore(&tt.rsi)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMACDScore_Saturates(t *testing.T) {
	line := 5.0
	signal := 0.0
	snap := &domain.TechnicalSnapshot{MACDLine: &line, MACDSignal: &signal}

	got := macdScore(snap)
	assert.InDelta(t, math.Tanh(2.5), got, 1e-9)
	assert.Less(t, got, 1.0)
}

func TestClassifyRegime(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name  string
		price float64
		snap  *domain.TechnicalSnapshot
		want  domain.TechnicalRegime
	}{
		{
			name:  "oversold zone",
			price: 90,
			snap:  &domain.TechnicalSnapshot{RSI: f(20), MACDLine: f(-1), MA20: f(100), MA50: f(105), MA200: f(110)},
			want:  domain.RegimeOversoldZone,
		},
		{
			name:  "overbought zone",
			price: 120,
			snap:  &domain.TechnicalSnapshot{RSI: f(80), MACDLine: f(1), MA20: f(110), MA50: f(105), MA200: f(100)},
			want:  domain.RegimeOverboughtZone,
		},
		{
			name:  "bullish trend full alignment",
			price: 120,
			snap:  &domain.TechnicalSnapshot{RSI: f(60), MACDLine: f(1), MA20: f(115), MA50: f(110), MA200: f(100)},
			want:  domain.RegimeBullishTrend,
		},
		{
			name:  "bearish trend full alignment",
			price: 90,
			snap:  &domain.TechnicalSnapshot{RSI: f(40), MACDLine: f(-1), MA20: f(95), MA50: f(100), MA200: f(110)},
			want:  domain.RegimeBearishTrend,
		},
		{
			name:  "relaxed bullish bias",
			price: 105,
			snap:  &domain.TechnicalSnapshot{RSI: f(45), MACDLine: f(0.5), MA20: f(100), MA50: f(102), MA200: f(98)},
			want:  domain.RegimeBullishTrend,
		},
		{
			name:  "consolidation",
			price: 100,
			snap:  &domain.TechnicalSnapshot{RSI: f(50), MACDLine: f(0.5), MA20: f(101), MA50: f(100), MA200: f(99)},
			want:  domain.RegimeConsolidation,
		},
		{
			name:  "missing indicators default to consolidation",
			price: 100,
			snap:  &domain.TechnicalSnapshot{},
			want:  domain.RegimeConsolidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyRegime(tt.price, tt.snap))
		})
	}
}

func TestClusterLevels(t *testing.T) {
	levels := []float64{100, 100.5, 101, 150, 151, 200}
	clustered := clusterLevels(levels, 0.02)

	// Three clusters: ~100.5, ~150.5, 200.
	require.Len(t, clustered, 3)
	assert.InDelta(t, 100.5, clustered[0], 0.6)
	assert.InDelta(t, 150.5, clustered[1], 0.6)
	assert.InDelta(t, 200, clustered[2], 1e-9)
}

func TestTechnicalConfidence(t *testing.T) {
	assert.Equal(t, 0.95, technicalConfidence(0.7))
	assert.Equal(t, 0.95, technicalConfidence(-0.7))
	assert.Equal(t, 0.5, technicalConfidence(0.1))
	assert.Equal(t, 0.8, technicalConfidence(0.4))
}

func TestVolumeRatio(t *testing.T) {
	volumes := make([]float64, 21)
	for i := range volumes {
		volumes[i] = 100
	}
	volumes[20] = 250 // latest bar spikes

	ratio := volumeRatio(volumes)
	require.NotNil(t, ratio)
	assert.InDelta(t, 2.5, *ratio, 1e-9)

	assert.Nil(t, volumeRatio(volumes[:10]))
}
