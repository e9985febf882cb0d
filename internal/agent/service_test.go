package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmind/marketmind/internal/config"
	"github.com/marketmind/marketmind/internal/domain"
	"github.com/marketmind/marketmind/internal/modules/no_trade"
	"github.com/marketmind/marketmind/internal/modules/recommendation"
	"github.com/marketmind/marketmind/internal/modules/reversal"
)

func f64(v float64) *float64 { return &v }

type stubSource struct {
	kind   domain.SignalKind
	signal *domain.AnalyzerSignal
	err    error
}

func (s stubSource) Kind() domain.SignalKind { return s.kind }

func (s stubSource) Analyze(ctx context.Context, symbol string) (*domain.AnalyzerSignal, error) {
	return s.signal, s.err
}

type stubContexts struct {
	ctx *domain.MarketContext
}

func (s stubContexts) GetMarketContext(ctx context.Context) *domain.MarketContext {
	return s.ctx
}

func newService(sources []domain.SignalSource, ctx *domain.MarketContext) *Service {
	policy := domain.NewDefaultPolicy()
	cfg := config.EngineConfig{
		StaticWeights:       domain.WeightTriple{Sentiment: 0.50, Technical: 0.30, Fundamental: 0.20},
		ActionThreshold:     0.3,
		ConflictStdDev:      0.5,
		RiskPerTradePercent: 1.5,
		MaxPositionPercent:  10.0,
	}
	fixed := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	engine := recommendation.New(cfg, policy, zerolog.Nop()).
		WithClock(func() time.Time { return fixed }).
		WithIDSource(func() string { return "rec-agent-test" })

	return New(
		nil, // no raw data fetches in these tests
		sources,
		stubContexts{ctx: ctx},
		no_trade.New(25.0, 0.03, true, policy, zerolog.Nop()),
		reversal.New(zerolog.Nop()),
		engine,
		policy,
		zerolog.Nop(),
	)
}

func bullishContext() *domain.MarketContext {
	return &domain.MarketContext{
		State:        domain.MarketStateBullish,
		VIX:          13,
		VIXLevel:     domain.VIXLevelLow,
		Favorability: 0.85,
	}
}

func fullSources() []domain.SignalSource {
	sent := &domain.AnalyzerSignal{Kind: domain.SignalSentiment, Score: 0.5, Confidence: 0.8, SourceCount: 5}
	tech := &domain.AnalyzerSignal{
		Kind: domain.SignalTechnical, Score: 0.4, Confidence: 0.8,
		Technical: &domain.TechnicalSnapshot{
			Price:  2950,
			Regime: domain.RegimeBullishTrend,
		},
	}
	fund := &domain.AnalyzerSignal{
		Kind: domain.SignalFundamental, Score: 0.5, Confidence: 0.9,
		Fundamental: &domain.FundamentalSnapshot{
			PERatio: f64(18), PBRatio: f64(2), DebtToEquity: f64(0.5), RevenueGrowth: f64(10),
		},
	}
	return []domain.SignalSource{
		stubSource{kind: domain.SignalSentiment, signal: sent},
		stubSource{kind: domain.SignalTechnical, signal: tech},
		stubSource{kind: domain.SignalFundamental, signal: fund},
	}
}

func TestAnalyze_FullPipeline(t *testing.T) {
	svc := newService(fullSources(), bullishContext())

	rec := svc.Analyze(context.Background(), "RELIANCE")

	require.NotNil(t, rec)
	assert.Equal(t, "RELIANCE", rec.Symbol)
	assert.Equal(t, domain.ActionBuy, rec.Action)
	assert.Equal(t, domain.MarketStateBullish, rec.MarketState)
	require.NotNil(t, rec.EntryRange)
	assert.Nil(t, rec.Reversal, "bullish trend regime must not produce a reversal watch")
}

func TestAnalyze_FailedAnalyzersDegrade(t *testing.T) {
	sources := []domain.SignalSource{
		stubSource{kind: domain.SignalSentiment, err: errors.New("feed down")},
		stubSource{kind: domain.SignalTechnical, err: errors.New("feed down")},
		stubSource{kind: domain.SignalFundamental, err: errors.New("feed down")},
	}
	svc := newService(sources, bullishContext())

	rec := svc.Analyze(context.Background(), "TCS")

	require.NotNil(t, rec)
	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.NotEmpty(t, rec.DataFlags)
	assert.Nil(t, rec.Reversal)
}

func TestAnalyze_ReversalWatchAttached(t *testing.T) {
	sources := fullSources()
	tech := sources[1].(stubSource)
	tech.signal.Score = -0.3
	tech.signal.Technical.Regime = domain.RegimeOversoldZone
	tech.signal.Technical.RSI = f64(34)
	tech.signal.Technical.MACDHistogram = f64(0.5)
	tech.signal.Technical.VolumeRatio = f64(1.8)

	svc := newService(sources, bullishContext())
	rec := svc.Analyze(context.Background(), "ITC")

	require.NotNil(t, rec.Reversal)
	assert.Equal(t, domain.ReversalTriggered, rec.Reversal.Status)
}

func TestAnalyze_NoTradeGateApplied(t *testing.T) {
	ctx := &domain.MarketContext{
		State:        domain.MarketStateBearish,
		VIX:          28,
		VIXLevel:     domain.VIXLevelVeryHigh,
		Favorability: 0.2,
	}
	svc := newService(fullSources(), ctx)

	rec := svc.Analyze(context.Background(), "SBIN")

	assert.True(t, rec.NoTrade.Active)
	assert.Equal(t, domain.SeverityHigh, rec.NoTrade.Severity)
	assert.NotEqual(t, domain.ActionBuy, rec.Action)
}
