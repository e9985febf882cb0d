// Package no_trade gates new BUY recommendations during dangerous market
// regimes. SELL and HOLD are never suppressed and detection failures always
// fail open, because missing data already costs confidence elsewhere.
package no_trade

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
)

const (
	actionHigh   = "Stay in cash. Avoid all new positions. Consider reducing existing positions if possible."
	actionMedium = "Exercise extreme caution. Only consider high-conviction trades with tight stop losses. Prefer cash."
	actionClear  = "Market conditions allow trading, but remain vigilant"
)

// Detector evaluates market context against hard danger conditions.
type Detector struct {
	vixSpikeThreshold  float64
	indexDropThreshold float64
	enabled            bool
	policy             domain.DefaultPolicy
	log                zerolog.Logger
}

func New(vixSpikeThreshold, indexDropThreshold float64, enabled bool, policy domain.DefaultPolicy, log zerolog.Logger) *Detector {
	return &Detector{
		vixSpikeThreshold:  vixSpikeThreshold,
		indexDropThreshold: indexDropThreshold,
		enabled:            enabled,
		policy:             policy,
		log:                log.With().Str("component", "no_trade").Logger(),
	}
}

// Detect checks all danger conditions and collects every matched reason, not
// just the first. Severity is the maximum across matched rules.
func (d *Detector) Detect(ctx *domain.MarketContext) domain.NoTradeSignal {
	if !d.enabled {
		return d.policy.InactiveNoTrade()
	}
	if ctx == nil || ctx.Degraded {
		return d.policy.InactiveNoTrade()
	}

	var reasons []string
	severity := domain.SeverityNone

	raise := func(to domain.Severity) {
		if to.Rank() > severity.Rank() {
			severity = to
		}
	}

	if ctx.State == domain.MarketStateBearish &&
		(ctx.VIXLevel == domain.VIXLevelHigh || ctx.VIXLevel == domain.VIXLevelVeryHigh) {
		reasons = append(reasons, fmt.Sprintf(
			"Market is bearish with %s volatility (VIX: %.1f)", ctx.VIXLevel.Label(), ctx.VIX))
		raise(domain.SeverityHigh)
	}

	if ctx.VIX > d.vixSpikeThreshold {
		reasons = append(reasons, fmt.Sprintf(
			"VIX spike detected: %.1f (threshold: %.1f), extreme market fear", ctx.VIX, d.vixSpikeThreshold))
		raise(domain.SeverityHigh)
	}

	if ctx.PrimaryBelow50DMA > d.indexDropThreshold {
		reasons = append(reasons, fmt.Sprintf(
			"Primary index is %.1f%% below its 50-day moving average", ctx.PrimaryBelow50DMA*100))
		raise(domain.SeverityMedium)
	}

	if ctx.PrimaryTrend == domain.TrendBearish && ctx.SecondaryTrend == domain.TrendBearish &&
		ctx.VIXLevel != domain.VIXLevelLow {
		reasons = append(reasons, "Both tracked indices are bearish with elevated volatility")
		raise(domain.SeverityMedium)
	}

	if ctx.State == domain.MarketStateVolatile && ctx.VIX > 20 {
		reasons = append(reasons, fmt.Sprintf("Market is highly volatile (VIX: %.1f)", ctx.VIX))
		raise(domain.SeverityMedium)
	}

	active := len(reasons) > 0 && severity.Rank() >= domain.SeverityMedium.Rank()

	signal := domain.NoTradeSignal{
		Active:          active,
		Severity:        severity,
		Reasons:         reasons,
		SuggestedAction: actionClear,
	}
	switch {
	case active && severity == domain.SeverityHigh:
		signal.SuggestedAction = actionHigh
	case active:
		signal.SuggestedAction = actionMedium
	}

	if active {
		d.log.Warn().
			Str("severity", string(severity)).
			Int("reasons", len(reasons)).
			Msg("No-trade signal triggered")
	}

	return signal
}

// SafetyScore condenses the same conditions into a 0 (dangerous) to 1 (safe)
// scalar for display surfaces.
func (d *Detector) SafetyScore(ctx *domain.MarketContext) float64 {
	if ctx == nil || ctx.Degraded {
		return 0.5
	}

	score := 1.0

	switch ctx.State {
	case domain.MarketStateBearish:
		score -= 0.3
	case domain.MarketStateVolatile:
		score -= 0.4
	}

	switch ctx.VIXLevel {
	case domain.VIXLevelVeryHigh:
		score -= 0.4
	case domain.VIXLevelHigh:
		score -= 0.3
	case domain.VIXLevelModerate:
		score -= 0.1
	}

	switch {
	case ctx.PrimaryBelow50DMA > 0.05:
		score -= 0.3
	case ctx.PrimaryBelow50DMA > 0.03:
		score -= 0.2
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
