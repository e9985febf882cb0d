package recommendation

import (
	"math"

	"github.com/marketmind/marketmind/internal/domain"
)

// suggestRange proposes an entry (BUY) or exit (SELL) band around the current
// price, snapped to the nearest technical level when one exists. Without
// levels the band defaults to +-2%.
func suggestRange(action domain.Action, price float64, technical *domain.TechnicalSnapshot) *domain.PriceRange {
	if price <= 0 {
		return nil
	}

	low := price * 0.98
	high := price * 1.02

	switch action {
	case domain.ActionBuy:
		if technical != nil {
			if support, ok := nearestBelow(technical.SupportLevels, price); ok {
				low = support
			}
		}
	case domain.ActionSell:
		if technical != nil {
			if resistance, ok := nearestAbove(technical.ResistanceLevels, price); ok {
				high = resistance
			}
		}
	default:
		return nil
	}

	return &domain.PriceRange{Low: round2(low), High: round2(high)}
}

// tradeLevels turns a BUY into concrete execution levels: entry near support,
// an ATR-based stop no wider than 8%, a target of at least twice the risk,
// and a position size that caps the account risk per trade.
func tradeLevels(price float64, technical *domain.TechnicalSnapshot, riskPerTradePercent, maxPositionPercent float64) *domain.TradeLevels {
	if price <= 0 {
		return nil
	}

	entry := price * 0.98
	if technical != nil {
		if support, ok := nearestBelow(technical.SupportLevels, price); ok {
			// Enter slightly above support rather than at it.
			entry = support * 1.005
		}
	}
	entry = math.Min(entry, price*0.99)

	stop := entry * 0.95
	if technical != nil && technical.ATR != nil && *technical.ATR > 0 {
		stop = entry - *technical.ATR*1.5
	}
	if technical != nil {
		if support, ok := nearestBelow(technical.SupportLevels, entry); ok {
			// The tighter of the ATR stop and just-below-support.
			stop = math.Max(stop, support*0.995)
		}
	}
	stop = math.Max(stop, entry*0.92)

	risk := entry - stop

	target := entry + risk*2.0
	if technical != nil {
		if resistance, ok := nearestAbove(technical.ResistanceLevels, entry); ok {
			if resistance > target {
				target = resistance * 0.995
			} else {
				target = math.Max(target, resistance*1.02)
			}
		}
	}

	ratio := 2.0
	if risk > 0 {
		ratio = (target - entry) / risk
	}
	if ratio < 2.0 {
		target = entry + risk*2.0
		ratio = 2.0
	}

	position := maxPositionPercent
	if risk > 0 {
		position = math.Min(riskPerTradePercent/(risk/entry*100), maxPositionPercent)
	}

	return &domain.TradeLevels{
		IdealEntry:          round2(entry),
		StopLoss:            round2(stop),
		Target:              round2(target),
		RiskRewardRatio:     round2(ratio),
		RiskPerTradePercent: riskPerTradePercent,
		PositionSizePercent: round2(position),
	}
}

// nearestBelow returns the highest level strictly below the reference price.
func nearestBelow(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l < price && (!found || l > best) {
			best, found = l, true
		}
	}
	return best, found
}

// nearestAbove returns the lowest level strictly above the reference price.
func nearestAbove(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l > price && (!found || l < best) {
			best, found = l, true
		}
	}
	return best, found
}
