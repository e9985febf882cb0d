package reversal

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmind/marketmind/internal/domain"
)

func f64(v float64) *float64 { return &v }

func oversoldSnapshot(rsi, macdHist, volumeRatio float64) *domain.TechnicalSnapshot {
	return &domain.TechnicalSnapshot{
		Price:         420,
		RSI:           f64(rsi),
		MACDHistogram: f64(macdHist),
		VolumeRatio:   f64(volumeRatio),
		Regime:        domain.RegimeOversoldZone,
	}
}

func fairFundamentals() *domain.FundamentalSnapshot {
	return &domain.FundamentalSnapshot{
		PERatio:       f64(20.8),
		PBRatio:       f64(2.5),
		DebtToEquity:  f64(1.2),
		RevenueGrowth: f64(0.3),
	}
}

func calmMarket(vix float64) *domain.MarketContext {
	return &domain.MarketContext{
		State:    domain.MarketStateNeutral,
		VIX:      vix,
		VIXLevel: domain.VIXLevelLow,
	}
}

func TestDetect_AllTriggersMet(t *testing.T) {
	d := New(zerolog.Nop())

	watch := d.Detect(oversoldSnapshot(34, 0.8, 1.7), 0.2, fairFundamentals(), calmMarket(14))

	require.NotNil(t, watch)
	assert.Equal(t, domain.ReversalTriggered, watch.Status)
	assert.InDelta(t, 0.85, watch.Confidence, 1e-9)
	assert.Equal(t, 3, watch.TriggeredCount())
}

func TestDetect_DeeplyOversoldNoRecovery(t *testing.T) {
	// Oversold with no recovery signs yet: RSI still buried, momentum
	// negative, volume unremarkable. Setup is valid but early stage.
	d := New(zerolog.Nop())

	watch := d.Detect(oversoldSnapshot(11.7, -0.4, 1.1), 0.1, fairFundamentals(), calmMarket(14.2))

	require.NotNil(t, watch)
	assert.Equal(t, domain.ReversalWatchOnly, watch.Status)
	assert.InDelta(t, 0.45, watch.Confidence, 1e-9)
	assert.Equal(t, 0, watch.TriggeredCount())
	require.Len(t, watch.Triggers, 3)
	assert.Equal(t, "RSI Recovery", watch.Triggers[0].Name)
	assert.InDelta(t, 11.7, watch.Triggers[0].Value, 1e-9)
}

func TestDetect_TwoTriggersWatchOnly(t *testing.T) {
	d := New(zerolog.Nop())

	watch := d.Detect(oversoldSnapshot(36, 0.2, 1.2), 0.2, fairFundamentals(), calmMarket(14))

	require.NotNil(t, watch)
	assert.Equal(t, domain.ReversalWatchOnly, watch.Status)
	assert.InDelta(t, 0.65, watch.Confidence, 1e-9)
	assert.Equal(t, 2, watch.TriggeredCount())
}

func TestDetect_Preconditions(t *testing.T) {
	d := New(zerolog.Nop())

	t.Run("not oversold", func(t *testing.T) {
		snap := oversoldSnapshot(34, 0.8, 1.7)
		snap.Regime = domain.RegimeConsolidation
		assert.Nil(t, d.Detect(snap, 0.2, fairFundamentals(), calmMarket(14)))
	})

	t.Run("negative fundamental score", func(t *testing.T) {
		assert.Nil(t, d.Detect(oversoldSnapshot(34, 0.8, 1.7), -0.1, fairFundamentals(), calmMarket(14)))
	})

	t.Run("overvalued", func(t *testing.T) {
		f := fairFundamentals()
		f.PERatio = f64(42)
		assert.Nil(t, d.Detect(oversoldSnapshot(34, 0.8, 1.7), 0.2, f, calmMarket(14)))
	})

	t.Run("overleveraged", func(t *testing.T) {
		f := fairFundamentals()
		f.DebtToEquity = f64(2.4)
		assert.Nil(t, d.Detect(oversoldSnapshot(34, 0.8, 1.7), 0.2, f, calmMarket(14)))
	})

	t.Run("collapsing revenue", func(t *testing.T) {
		f := fairFundamentals()
		f.RevenueGrowth = f64(-15)
		assert.Nil(t, d.Detect(oversoldSnapshot(34, 0.8, 1.7), 0.2, f, calmMarket(14)))
	})

	t.Run("vix panic", func(t *testing.T) {
		assert.Nil(t, d.Detect(oversoldSnapshot(34, 0.8, 1.7), 0.2, fairFundamentals(), calmMarket(32)))
	})

	t.Run("volatile with elevated vix", func(t *testing.T) {
		ctx := calmMarket(26)
		ctx.State = domain.MarketStateVolatile
		assert.Nil(t, d.Detect(oversoldSnapshot(34, 0.8, 1.7), 0.2, fairFundamentals(), ctx))
	})
}

func TestDetect_MissingDataTolerated(t *testing.T) {
	d := New(zerolog.Nop())

	t.Run("missing fundamentals pass the gate", func(t *testing.T) {
		watch := d.Detect(oversoldSnapshot(34, 0.8, 1.7), 0.0, nil, calmMarket(14))
		require.NotNil(t, watch)
		assert.Equal(t, domain.ReversalTriggered, watch.Status)
	})

	t.Run("missing market context is not panic", func(t *testing.T) {
		watch := d.Detect(oversoldSnapshot(34, 0.8, 1.7), 0.2, fairFundamentals(), nil)
		require.NotNil(t, watch)
	})

	t.Run("missing indicators count as unmet triggers", func(t *testing.T) {
		snap := &domain.TechnicalSnapshot{Price: 420, Regime: domain.RegimeOversoldZone}
		watch := d.Detect(snap, 0.2, fairFundamentals(), calmMarket(14))
		require.NotNil(t, watch)
		assert.Equal(t, 0, watch.TriggeredCount())
		assert.InDelta(t, 0.45, watch.Confidence, 1e-9)
	})
}
