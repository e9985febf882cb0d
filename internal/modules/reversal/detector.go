// Package reversal flags candidate bottoming setups: a technically oversold
// stock with at least fair fundamentals while the broad market is calm. The
// watch is informational and independent of the main recommendation.
package reversal

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
)

const (
	rsiRecoveryThreshold = 30.0
	volumeSpikeThreshold = 1.5
	panicVIXThreshold    = 30.0

	confidenceTriggered = 0.85
	confidenceWatching  = 0.65
	confidenceEarly     = 0.45
)

// Detector evaluates reversal-watch preconditions and recovery triggers.
type Detector struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Detector {
	return &Detector{log: log.With().Str("component", "reversal").Logger()}
}

// Detect returns a watch only when every precondition holds: oversold
// technical regime, fundamentals passing the quality gate, and no market
// panic. Any single failed precondition yields nil.
func (d *Detector) Detect(
	technical *domain.TechnicalSnapshot,
	fundamentalScore float64,
	fundamentals *domain.FundamentalSnapshot,
	ctx *domain.MarketContext,
) *domain.ReversalWatch {
	if technical == nil || technical.Regime != domain.RegimeOversoldZone {
		return nil
	}
	if ok, reason := fundamentalsFair(fundamentalScore, fundamentals); !ok {
		d.log.Debug().Str("reason", reason).Msg("Reversal watch skipped, fundamentals below gate")
		return nil
	}
	if inPanic, reason := marketPanic(ctx); inPanic {
		d.log.Debug().Str("reason", reason).Msg("Reversal watch skipped, market in panic")
		return nil
	}

	triggers := recoveryTriggers(technical)

	watch := &domain.ReversalWatch{Triggers: triggers}
	met := watch.TriggeredCount()

	switch {
	case met == len(triggers):
		watch.Status = domain.ReversalTriggered
		watch.Confidence = confidenceTriggered
		watch.Note = fmt.Sprintf("All %d reversal triggers met", len(triggers))
	case met >= 2:
		watch.Status = domain.ReversalWatchOnly
		watch.Confidence = confidenceWatching
		watch.Note = fmt.Sprintf("%d/%d reversal triggers met, watch closely", met, len(triggers))
	default:
		watch.Status = domain.ReversalWatchOnly
		watch.Confidence = confidenceEarly
		watch.Note = fmt.Sprintf("%d/%d reversal triggers met, early stage", met, len(triggers))
	}

	d.log.Info().
		Str("status", string(watch.Status)).
		Int("triggers_met", met).
		Float64("confidence", watch.Confidence).
		Msg("Reversal setup detected")

	return watch
}

// fundamentalsFair is the quality gate: a non-negative fundamental score and
// no metric in outright distress territory. Missing metrics pass; they are
// already penalized in the confidence breakdown.
func fundamentalsFair(score float64, f *domain.FundamentalSnapshot) (bool, string) {
	if score < 0 {
		return false, "fundamental score is negative"
	}
	if f == nil {
		return true, ""
	}
	if f.PERatio != nil && *f.PERatio > 30 {
		return false, fmt.Sprintf("P/E ratio too high (%.1f > 30)", *f.PERatio)
	}
	if f.PBRatio != nil && *f.PBRatio > 5 {
		return false, fmt.Sprintf("P/B ratio too high (%.1f > 5)", *f.PBRatio)
	}
	if f.DebtToEquity != nil && *f.DebtToEquity > 2.0 {
		return false, fmt.Sprintf("debt-to-equity too high (%.1f > 2.0)", *f.DebtToEquity)
	}
	if f.RevenueGrowth != nil && *f.RevenueGrowth < -10 {
		return false, fmt.Sprintf("revenue declining rapidly (%.1f%% < -10%%)", *f.RevenueGrowth)
	}
	return true, ""
}

// marketPanic reports whether conditions are too fearful for bottom-fishing.
// A missing context counts as not-panic; the watch is informational only.
func marketPanic(ctx *domain.MarketContext) (bool, string) {
	if ctx == nil {
		return false, ""
	}
	if ctx.VIX > panicVIXThreshold {
		return true, fmt.Sprintf("VIX extremely high (%.1f > %.0f)", ctx.VIX, panicVIXThreshold)
	}
	if ctx.State == domain.MarketStateVolatile && ctx.VIX > 25 {
		return true, fmt.Sprintf("volatile market with high VIX (%.1f)", ctx.VIX)
	}
	return false, ""
}

// recoveryTriggers evaluates the three recovery checks. Missing indicators
// count as not met rather than failing the watch.
func recoveryTriggers(t *domain.TechnicalSnapshot) []domain.ReversalTrigger {
	rsi := domain.ReversalTrigger{Name: "RSI Recovery", Threshold: rsiRecoveryThreshold}
	if t.RSI != nil {
		rsi.Value = *t.RSI
		rsi.Met = *t.RSI > rsiRecoveryThreshold
	}

	macd := domain.ReversalTrigger{Name: "MACD Momentum", Threshold: 0}
	if t.MACDHistogram != nil {
		macd.Value = *t.MACDHistogram
		macd.Met = *t.MACDHistogram > 0
	}

	volume := domain.ReversalTrigger{Name: "Volume Spike", Threshold: volumeSpikeThreshold}
	if t.VolumeRatio != nil {
		volume.Value = *t.VolumeRatio
		volume.Met = *t.VolumeRatio > volumeSpikeThreshold
	}

	return []domain.ReversalTrigger{rsi, macd, volume}
}
