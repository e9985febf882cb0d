package recommendation

import "github.com/marketmind/marketmind/internal/domain"

// Penalty names, stable for display and storage.
const (
	penaltyMarket     = "market"
	penaltyNoTrade    = "no_trade"
	penaltyVolatility = "volatility"
	penaltyData       = "data"
)

// penaltyCascade computes the four risk adjustments independently and returns
// them as an ordered, itemized list plus their sum. Every amount is <= 0.
func penaltyCascade(ctx *domain.MarketContext, noTrade domain.NoTradeSignal, dataQualityPenalty float64) ([]domain.PenaltyContribution, float64) {
	penalties := []domain.PenaltyContribution{
		{Name: penaltyMarket, Amount: marketPenalty(ctx)},
		{Name: penaltyNoTrade, Amount: noTradePenalty(noTrade)},
		{Name: penaltyVolatility, Amount: volatilityPenalty(ctx)},
		{Name: penaltyData, Amount: -dataQualityPenalty},
	}

	total := 0.0
	for _, p := range penalties {
		total += p.Amount
	}
	return penalties, total
}

// marketPenalty scales with how unfavorable the regime is. Bullish markets
// carry no penalty; bearish ones are penalized hardest. A substituted
// (degraded) context carries no penalty either: missing data is charged once,
// through the data penalty, not invented as market risk.
func marketPenalty(ctx *domain.MarketContext) float64 {
	if ctx == nil || ctx.Degraded {
		return 0
	}

	var k float64
	switch ctx.State {
	case domain.MarketStateBullish:
		return 0
	case domain.MarketStateBearish:
		k = 0.5
	case domain.MarketStateVolatile:
		k = 0.3
	default:
		k = 0.2
	}
	return -(1.0 - ctx.Favorability) * k
}

func noTradePenalty(signal domain.NoTradeSignal) float64 {
	if !signal.Active {
		return 0
	}
	switch signal.Severity {
	case domain.SeverityHigh:
		return -0.30
	case domain.SeverityMedium:
		return -0.20
	default:
		return -0.10
	}
}

func volatilityPenalty(ctx *domain.MarketContext) float64 {
	if ctx == nil || ctx.Degraded {
		return 0
	}
	switch ctx.VIXLevel {
	case domain.VIXLevelModerate:
		return -0.05
	case domain.VIXLevelHigh:
		return -0.15
	case domain.VIXLevelVeryHigh:
		return -0.25
	default:
		return 0
	}
}
