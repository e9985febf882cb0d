// Package market_context reduces raw index and volatility data into the
// compact MarketContext summary the risk logic runs on. The summary is
// global (not per-symbol) and cached behind a TTL to avoid redundant
// external fetches.
package market_context

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
)

// VIX level thresholds.
const (
	vixLow      = 15.0
	vixModerate = 20.0
	vixHigh     = 25.0
	vixPanic    = 35.0
)

// volumeFactor is a placeholder confirmation score until per-index volume
// history is plumbed through the provider.
const volumeFactor = 0.7

// Analyzer computes and caches the market context summary.
// Concurrent callers inside the TTL window receive the same cached value.
type Analyzer struct {
	provider domain.MarketDataProvider
	store    *SnapshotStore // optional persisted cache, may be nil
	policy   domain.DefaultPolicy
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.RWMutex
	cached   *domain.MarketContext
	cachedAt time.Time
}

// New creates a market context analyzer. store may be nil when snapshot
// persistence is not wanted (tests, ephemeral deployments).
func New(provider domain.MarketDataProvider, store *SnapshotStore, policy domain.DefaultPolicy, ttl time.Duration, log zerolog.Logger) *Analyzer {
	a := &Analyzer{
		provider: provider,
		store:    store,
		policy:   policy,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With().Str("component", "market_context").Logger(),
	}

	// A snapshot persisted inside the TTL window survives restarts.
	if store != nil {
		if ctx, err := store.Load(); err == nil && ctx != nil && a.fresh(ctx.AsOf) {
			a.cached = ctx
			a.cachedAt = ctx.AsOf
			a.log.Info().Time("as_of", ctx.AsOf).Msg("Restored market context snapshot")
		}
	}

	return a
}

// WithClock overrides the analyzer clock. Test hook.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// GetMarketContext returns the current market context, cached up to the TTL.
// It never fails: when fresh data cannot be fetched it falls back to the
// last cached value (even stale), then to the neutral default policy context.
func (a *Analyzer) GetMarketContext(ctx context.Context) *domain.MarketContext {
	a.mu.RLock()
	if a.cached != nil && a.fresh(a.cachedAt) {
		cached := a.cached
		a.mu.RUnlock()
		return cached
	}
	a.mu.RUnlock()

	fresh, err := a.Refresh(ctx)
	if err == nil {
		return fresh
	}

	a.mu.RLock()
	stale := a.cached
	a.mu.RUnlock()

	if stale != nil {
		a.log.Warn().Err(err).Time("as_of", stale.AsOf).Msg("Market context refresh failed, serving stale snapshot")
		return stale
	}

	a.log.Warn().Err(err).Msg("Market context unavailable, substituting neutral defaults")
	return a.policy.NeutralContext(a.now())
}

// Refresh recomputes the context from fresh data, updating cache and the
// persisted snapshot. Unlike GetMarketContext it surfaces fetch errors so
// scheduled refreshes can log them.
func (a *Analyzer) Refresh(ctx context.Context) (*domain.MarketContext, error) {
	snapshot, err := a.provider.GetMarketSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	computed := Compute(snapshot, a.now())

	a.mu.Lock()
	a.cached = computed
	a.cachedAt = computed.AsOf
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Save(computed); err != nil {
			a.log.Error().Err(err).Msg("Failed to persist market context snapshot")
		}
	}

	a.log.Info().
		Str("state", string(computed.State)).
		Str("vix_level", string(computed.VIXLevel)).
		Float64("favorability", computed.Favorability).
		Msg("Market context refreshed")

	return computed, nil
}

func (a *Analyzer) fresh(at time.Time) bool {
	return !at.IsZero() && a.now().Sub(at) < a.ttl
}

// Compute derives a MarketContext from one snapshot. Pure function; asOf
// stamps the result so cache staleness is checked against computation time.
func Compute(snapshot *domain.MarketSnapshot, asOf time.Time) *domain.MarketContext {
	primaryTrend := determineTrend(snapshot.Primary)
	secondaryTrend := determineTrend(snapshot.Secondary)

	vixLevel := determineVIXLevel(snapshot.VIX)
	state, inPanic := determineState(primaryTrend, secondaryTrend, snapshot.VIX)

	ctx := &domain.MarketContext{
		State:             state,
		Panic:             inPanic,
		VIX:               snapshot.VIX,
		VIXLevel:          vixLevel,
		PrimaryTrend:      primaryTrend,
		SecondaryTrend:    secondaryTrend,
		PrimaryBelow50DMA: below50DMA(snapshot.Primary),
		SignalQuality:     signalQuality(snapshot.Primary, snapshot.Secondary, primaryTrend, secondaryTrend),
		Favorability:      favorability(state, vixLevel, primaryTrend, secondaryTrend),
		AsOf:              asOf,
	}

	return ctx
}

// determineTrend classifies one index against its moving averages: above
// both is bullish, below both bearish, in between neutral.
func determineTrend(idx domain.IndexSnapshot) domain.Trend {
	if idx.MA20 <= 0 || idx.MA50 <= 0 {
		return domain.TrendNeutral
	}

	switch {
	case idx.CurrentPrice > idx.MA20 && idx.CurrentPrice > idx.MA50:
		return domain.TrendBullish
	case idx.CurrentPrice < idx.MA20 && idx.CurrentPrice < idx.MA50:
		return domain.TrendBearish
	default:
		return domain.TrendNeutral
	}
}

// determineVIXLevel buckets the raw VIX reading.
func determineVIXLevel(vix float64) domain.VIXLevel {
	switch {
	case vix < vixLow:
		return domain.VIXLevelLow
	case vix < vixModerate:
		return domain.VIXLevelModerate
	case vix < vixHigh:
		return domain.VIXLevelHigh
	default:
		return domain.VIXLevelVeryHigh
	}
}

// determineState resolves the overall market state, first match wins:
// panic-level VIX, then volatile (elevated VIX with disagreeing indices),
// then agreement between the indices.
func determineState(primary, secondary domain.Trend, vix float64) (domain.MarketState, bool) {
	if vix >= vixPanic {
		return domain.MarketStateVolatile, true
	}
	if vix >= vixHigh && primary != secondary {
		return domain.MarketStateVolatile, false
	}

	switch {
	case primary == domain.TrendBullish && secondary == domain.TrendBullish:
		return domain.MarketStateBullish, false
	case primary == domain.TrendBearish && secondary == domain.TrendBearish:
		return domain.MarketStateBearish, false
	default:
		return domain.MarketStateNeutral, false
	}
}

// below50DMA returns how far the index sits below its 50-day moving average
// as a positive fraction, zero when at or above it.
func below50DMA(idx domain.IndexSnapshot) float64 {
	if idx.MA50 <= 0 || idx.CurrentPrice >= idx.MA50 {
		return 0
	}
	return (idx.MA50 - idx.CurrentPrice) / idx.MA50
}

// signalQuality measures how clear the market read is: distance from the
// moving averages (choppy tape scores low), volume confirmation, and
// agreement between the two indices.
func signalQuality(primary, secondary domain.IndexSnapshot, primaryTrend, secondaryTrend domain.Trend) float64 {
	quality := 0.0

	// Distance from MAs (40%), averaged across both indices; 5% away from
	// the averages counts as a fully clear trend.
	distScore := (maDistanceScore(primary) + maDistanceScore(secondary)) / 2
	quality += distScore * 0.4

	// Volume confirmation (20%).
	quality += volumeFactor * 0.2

	// Trend consistency (40%).
	consistency := 0.3
	if primaryTrend == secondaryTrend {
		consistency = 0.6
		if primaryTrend != domain.TrendNeutral {
			consistency = 1.0
		}
	}
	quality += consistency * 0.4

	return clamp01(quality)
}

func maDistanceScore(idx domain.IndexSnapshot) float64 {
	if idx.MA20 <= 0 || idx.MA50 <= 0 {
		return 0.5
	}

	dist20 := math.Abs(idx.CurrentPrice-idx.MA20) / idx.MA20
	dist50 := math.Abs(idx.CurrentPrice-idx.MA50) / idx.MA50
	return math.Min(1.0, (dist20+dist50)/2/0.05)
}

// favorability estimates how much current conditions reward long positions.
// Hard invariants are enforced after the weighted sum: bearish caps at 0.40,
// panic-level VIX at 0.25, bullish floors at 0.70.
func favorability(state domain.MarketState, vixLevel domain.VIXLevel, primaryTrend, secondaryTrend domain.Trend) float64 {
	var stateScore float64
	switch state {
	case domain.MarketStateBullish:
		stateScore = 1.0
	case domain.MarketStateNeutral:
		stateScore = 0.5
	case domain.MarketStateBearish:
		stateScore = 0.0
	case domain.MarketStateVolatile:
		stateScore = 0.1
	}

	var vixScore float64
	switch vixLevel {
	case domain.VIXLevelLow:
		vixScore = 1.0
	case domain.VIXLevelModerate:
		vixScore = 0.7
	case domain.VIXLevelHigh:
		vixScore = 0.4
	case domain.VIXLevelVeryHigh:
		vixScore = 0.1
	}

	bullishCount := 0
	if primaryTrend == domain.TrendBullish {
		bullishCount++
	}
	if secondaryTrend == domain.TrendBullish {
		bullishCount++
	}
	breadth := float64(bullishCount) * 0.5

	score := stateScore*0.6 + vixScore*0.25 + breadth*0.15

	if state == domain.MarketStateBearish {
		score = math.Min(score, 0.40)
	}
	if vixLevel == domain.VIXLevelVeryHigh {
		score = math.Min(score, 0.25)
	}
	if state == domain.MarketStateBullish {
		score = math.Max(score, 0.70)
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
