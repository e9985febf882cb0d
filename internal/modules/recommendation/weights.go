package recommendation

import (
	"math"

	"github.com/marketmind/marketmind/internal/domain"
)

// Override weights from the performance tracker are accepted only inside
// these bounds, so a skewed outcome history cannot silence an analyzer.
const (
	overrideMin          = 0.15
	overrideMax          = 0.50
	overrideSumTolerance = 0.01
)

// weightsFor maps a market state to its dynamic weight triple. The switch is
// exhaustive over the closed state set; an unrecognized state reports ok=false
// so the caller can fall back to static weights.
func weightsFor(state domain.MarketState) (domain.WeightTriple, domain.WeightSource, bool) {
	switch state {
	case domain.MarketStateBullish:
		// Momentum leads in an uptrend.
		return domain.WeightTriple{Sentiment: 0.30, Technical: 0.40, Fundamental: 0.30}, domain.WeightSourceDynamicBullish, true
	case domain.MarketStateNeutral:
		// Without a trend, value matters more.
		return domain.WeightTriple{Sentiment: 0.25, Technical: 0.35, Fundamental: 0.40}, domain.WeightSourceDynamicNeutral, true
	case domain.MarketStateBearish:
		// Trust fundamentals, discount sentiment driven by fear.
		return domain.WeightTriple{Sentiment: 0.15, Technical: 0.35, Fundamental: 0.50}, domain.WeightSourceDynamicBearish, true
	case domain.MarketStateVolatile:
		// Anchor to intrinsic value, same as bearish.
		return domain.WeightTriple{Sentiment: 0.15, Technical: 0.35, Fundamental: 0.50}, domain.WeightSourceDynamicVolatile, true
	}
	return domain.WeightTriple{}, domain.WeightSourceStaticFallback, false
}

// selectWeights resolves the runtime weights for one recommendation:
// a valid performance-tracker override wins, then the dynamic table keyed by
// market state, then the static configuration fallback.
func selectWeights(ctx *domain.MarketContext, static domain.WeightTriple, override domain.WeightOverrideProvider) (domain.WeightTriple, domain.WeightSource) {
	if override != nil {
		if w, ok := override.RuntimeWeights(); ok && overrideValid(w) {
			return w.Normalized(), domain.WeightSourceTracker
		}
	}

	if ctx == nil || ctx.Degraded {
		return static.Normalized(), domain.WeightSourceStatic
	}

	w, source, ok := weightsFor(ctx.State)
	if !ok {
		return static.Normalized(), domain.WeightSourceStaticFallback
	}
	return w, source
}

// overrideValid enforces the tracker's own contract: each weight within
// bounds and the triple summing to 1.0.
func overrideValid(w domain.WeightTriple) bool {
	for _, v := range []float64{w.Sentiment, w.Technical, w.Fundamental} {
		if v < overrideMin || v > overrideMax {
			return false
		}
	}
	return math.Abs(w.Sum()-1.0) <= overrideSumTolerance
}
