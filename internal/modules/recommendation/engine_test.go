package recommendation

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmind/marketmind/internal/config"
	"github.com/marketmind/marketmind/internal/domain"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		StaticWeights:       domain.WeightTriple{Sentiment: 0.50, Technical: 0.30, Fundamental: 0.20},
		ActionThreshold:     0.3,
		ConflictStdDev:      0.5,
		NeutralDamping:      0.3,
		RiskPerTradePercent: 1.5,
		MaxPositionPercent:  10.0,
	}
}

func newEngine() *Engine {
	fixed := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	return New(testEngineConfig(), domain.NewDefaultPolicy(), zerolog.Nop()).
		WithClock(func() time.Time { return fixed }).
		WithIDSource(func() string { return "rec-test" })
}

func signal(kind domain.SignalKind, score, confidence float64) *domain.AnalyzerSignal {
	return &domain.AnalyzerSignal{Kind: kind, Score: score, Strength: 0.5, Confidence: confidence}
}

func completeFundamentals() *domain.FundamentalSnapshot {
	return &domain.FundamentalSnapshot{
		PERatio:       f64(18),
		PBRatio:       f64(2.1),
		DebtToEquity:  f64(0.6),
		RevenueGrowth: f64(12),
	}
}

func bullishInputs() Inputs {
	sent := signal(domain.SignalSentiment, 0.45, 0.80)
	sent.SourceCount = 5
	tech := signal(domain.SignalTechnical, 0.38, 0.78)
	fund := signal(domain.SignalFundamental, 0.52, 0.90)
	fund.Fundamental = completeFundamentals()

	return Inputs{
		Symbol:       "RELIANCE",
		CurrentPrice: 2950,
		Sentiment:    sent,
		Technical:    tech,
		Fundamental:  fund,
		Context: &domain.MarketContext{
			State:        domain.MarketStateBullish,
			VIX:          13,
			VIXLevel:     domain.VIXLevelLow,
			Favorability: 0.85,
		},
		NoTrade: domain.NoTradeSignal{Active: false},
	}
}

func TestGenerate_AlignedBullishBuy(t *testing.T) {
	rec := newEngine().Generate(bullishInputs())

	assert.Equal(t, domain.ActionBuy, rec.Action)
	assert.Equal(t, domain.WeightSourceDynamicBullish, rec.WeightSource)
	assert.InDelta(t, 0.30, rec.Weights.Sentiment, 1e-9)
	assert.InDelta(t, 0.40, rec.Weights.Technical, 1e-9)

	// Bullish calm market with full data: no penalties at all.
	assert.InDelta(t, 0, rec.TotalPenalty, 1e-9)
	assert.InDelta(t, rec.RawScore, rec.AdjustedScore, 1e-9)
	assert.InDelta(t, 0.443, rec.RawScore, 1e-3)

	assert.Greater(t, rec.Confidence, 0.75)
	require.NotNil(t, rec.EntryRange)
	require.NotNil(t, rec.TradeLevels)
	assert.Nil(t, rec.ExitRange)
}

func TestGenerate_BearishNoTradeDowngrade(t *testing.T) {
	in := bullishInputs()
	in.Context = &domain.MarketContext{
		State:        domain.MarketStateBearish,
		VIX:          22,
		VIXLevel:     domain.VIXLevelHigh,
		Favorability: 0.40,
	}
	in.NoTrade = domain.NoTradeSignal{
		Active:   true,
		Severity: domain.SeverityMedium,
		Reasons:  []string{"Both tracked indices are bearish with elevated volatility"},
	}

	rec := newEngine().Generate(in)

	assert.Equal(t, domain.WeightSourceDynamicBearish, rec.WeightSource)
	assert.InDelta(t, 0.50, rec.Weights.Fundamental, 1e-9)

	byName := map[string]float64{}
	for _, p := range rec.Penalties {
		byName[p.Name] = p.Amount
	}
	assert.InDelta(t, -0.30, byName[penaltyMarket], 1e-9)
	assert.InDelta(t, -0.20, byName[penaltyNoTrade], 1e-9)
	assert.InDelta(t, -0.15, byName[penaltyVolatility], 1e-9)

	assert.Equal(t, domain.ActionHold, rec.Action)
	lower := strings.ToLower(rec.Reasoning)
	assert.Contains(t, lower, "no-trade")
	assert.Contains(t, lower, "bearish")
}

func TestGenerate_NoTradeBlocksStrongBuy(t *testing.T) {
	in := bullishInputs()
	in.Sentiment.Score = 0.9
	in.Technical.Score = 0.8
	in.Fundamental.Score = 0.85
	in.NoTrade = domain.NoTradeSignal{
		Active:          true,
		Severity:        domain.SeverityMedium,
		Reasons:         []string{"Primary index is 4.5% below its 50-day moving average"},
		SuggestedAction: "Exercise extreme caution.",
	}

	rec := newEngine().Generate(in)

	// The adjusted score alone clears the BUY threshold; blocking wins.
	assert.Greater(t, rec.AdjustedScore, 0.3)
	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.Nil(t, rec.EntryRange)
	assert.Contains(t, rec.Reasoning, "Trading suppressed by no-trade signal")
	assert.Contains(t, rec.Reasoning, "50-day moving average")
}

func TestGenerate_SellNeverBlocked(t *testing.T) {
	in := bullishInputs()
	in.Sentiment.Score = -0.8
	in.Technical.Score = -0.6
	in.Fundamental.Score = -0.7
	in.NoTrade = domain.NoTradeSignal{Active: true, Severity: domain.SeverityHigh}

	rec := newEngine().Generate(in)

	assert.Equal(t, domain.ActionSell, rec.Action)
	require.NotNil(t, rec.ExitRange)
}

func TestGenerate_ConflictForcesHold(t *testing.T) {
	in := bullishInputs()
	in.Sentiment.Score = 0.8
	in.Technical.Score = -0.7
	in.Fundamental.Score = 0.1

	rec := newEngine().Generate(in)

	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.Contains(t, rec.Reasoning, "Conflicting signals")
}

func TestGenerate_PenaltyMonotonicity(t *testing.T) {
	adjusted := func(severity domain.Severity, active bool) float64 {
		in := bullishInputs()
		in.NoTrade = domain.NoTradeSignal{Active: active, Severity: severity}
		return newEngine().Generate(in).AdjustedScore
	}

	none := adjusted(domain.SeverityNone, false)
	low := adjusted(domain.SeverityLow, true)
	medium := adjusted(domain.SeverityMedium, true)
	high := adjusted(domain.SeverityHigh, true)

	assert.Greater(t, none, low)
	assert.Greater(t, low, medium)
	assert.Greater(t, medium, high)
}

func TestGenerate_MissingInputsStillProduce(t *testing.T) {
	rec := newEngine().Generate(Inputs{Symbol: "TCS", CurrentPrice: 3800})

	require.NotNil(t, rec)
	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.Equal(t, domain.WeightSourceStatic, rec.WeightSource)
	assert.InDelta(t, 0, rec.RawScore, 1e-9)
	assert.NotEmpty(t, rec.DataFlags)

	// Full degradation: missing context, no sentiment sources, zero score
	// with zero sources, missing fundamentals. Capped at 0.30.
	assert.InDelta(t, 0.30, rec.Breakdown.DataQualityPenalty, 1e-9)
	assert.GreaterOrEqual(t, rec.Confidence, 0.0)
	assert.LessOrEqual(t, rec.Confidence, 1.0)
}

func TestGenerate_ConfidenceBounds(t *testing.T) {
	states := []domain.MarketState{
		domain.MarketStateBullish, domain.MarketStateNeutral,
		domain.MarketStateBearish, domain.MarketStateVolatile,
	}
	levels := []domain.VIXLevel{
		domain.VIXLevelLow, domain.VIXLevelModerate,
		domain.VIXLevelHigh, domain.VIXLevelVeryHigh,
	}

	rng := rand.New(rand.NewSource(7))
	e := newEngine()

	for i := 0; i < 300; i++ {
		score := func() float64 { return rng.Float64()*2 - 1 }
		sent := signal(domain.SignalSentiment, score(), rng.Float64())
		sent.SourceCount = rng.Intn(8)

		in := Inputs{
			Symbol:       "X",
			CurrentPrice: 100,
			Sentiment:    sent,
			Technical:    signal(domain.SignalTechnical, score(), rng.Float64()),
			Fundamental:  signal(domain.SignalFundamental, score(), rng.Float64()),
			Context: &domain.MarketContext{
				State:        states[rng.Intn(len(states))],
				VIX:          10 + rng.Float64()*30,
				VIXLevel:     levels[rng.Intn(len(levels))],
				Favorability: rng.Float64(),
			},
		}

		rec := e.Generate(in)
		assert.GreaterOrEqual(t, rec.Confidence, 0.0)
		assert.LessOrEqual(t, rec.Confidence, 1.0)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	e := newEngine()

	first := e.Generate(bullishInputs())
	second := e.Generate(bullishInputs())

	assert.Equal(t, first, second)
}
