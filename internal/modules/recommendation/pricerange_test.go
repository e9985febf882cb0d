package recommendation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmind/marketmind/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestSuggestRange_Buy(t *testing.T) {
	t.Run("support below becomes the floor", func(t *testing.T) {
		tech := &domain.TechnicalSnapshot{SupportLevels: []float64{88, 95}}
		r := suggestRange(domain.ActionBuy, 100, tech)
		require.NotNil(t, r)
		assert.InDelta(t, 95, r.Low, 1e-9)
		assert.InDelta(t, 102, r.High, 1e-9)
	})

	t.Run("defaults to minus two percent without levels", func(t *testing.T) {
		r := suggestRange(domain.ActionBuy, 100, nil)
		require.NotNil(t, r)
		assert.InDelta(t, 98, r.Low, 1e-9)
		assert.InDelta(t, 102, r.High, 1e-9)
	})
}

func TestSuggestRange_Sell(t *testing.T) {
	tech := &domain.TechnicalSnapshot{ResistanceLevels: []float64{104, 110}}
	r := suggestRange(domain.ActionSell, 100, tech)
	require.NotNil(t, r)
	assert.InDelta(t, 98, r.Low, 1e-9)
	assert.InDelta(t, 104, r.High, 1e-9)
}

func TestSuggestRange_HoldAndBadPrice(t *testing.T) {
	assert.Nil(t, suggestRange(domain.ActionHold, 100, nil))
	assert.Nil(t, suggestRange(domain.ActionBuy, 0, nil))
}

func TestTradeLevels_SupportAndATR(t *testing.T) {
	tech := &domain.TechnicalSnapshot{
		ATR:           f64(2.0),
		SupportLevels: []float64{95},
	}

	levels := tradeLevels(100, tech, 1.5, 10.0)
	require.NotNil(t, levels)

	// Entry just above support, stop just below it (tighter than the ATR
	// stop), target at twice the risk.
	assert.InDelta(t, 95.48, levels.IdealEntry, 0.01)
	assert.InDelta(t, 94.53, levels.StopLoss, 0.01)
	assert.InDelta(t, 97.38, levels.Target, 0.01)
	assert.InDelta(t, 2.0, levels.RiskRewardRatio, 1e-9)
	assert.InDelta(t, 1.5, levels.RiskPerTradePercent, 1e-9)
	assert.InDelta(t, 1.51, levels.PositionSizePercent, 0.01)
}

func TestTradeLevels_NoTechnicals(t *testing.T) {
	levels := tradeLevels(100, nil, 1.5, 10.0)
	require.NotNil(t, levels)

	// Entry at a 2% discount, 5% fallback stop.
	assert.InDelta(t, 98.0, levels.IdealEntry, 1e-9)
	assert.InDelta(t, 93.1, levels.StopLoss, 1e-9)
	assert.GreaterOrEqual(t, levels.RiskRewardRatio, 2.0)
	assert.LessOrEqual(t, levels.PositionSizePercent, 10.0)
}

func TestTradeLevels_StopNeverBelowEightPercent(t *testing.T) {
	tech := &domain.TechnicalSnapshot{ATR: f64(15.0)} // absurdly wide ATR

	levels := tradeLevels(100, tech, 1.5, 10.0)
	require.NotNil(t, levels)
	assert.InDelta(t, levels.IdealEntry*0.92, levels.StopLoss, 0.01)
}

func TestTradeLevels_TargetExtendsBeyondNearResistance(t *testing.T) {
	tech := &domain.TechnicalSnapshot{
		ATR:              f64(2.0),
		ResistanceLevels: []float64{99}, // inside the minimum 1:2 target
	}

	levels := tradeLevels(100, tech, 1.5, 10.0)
	require.NotNil(t, levels)
	assert.GreaterOrEqual(t, levels.RiskRewardRatio, 2.0)
	assert.Greater(t, levels.Target, 99.0)
}
