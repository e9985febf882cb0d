package recommendation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmind/marketmind/internal/domain"
)

func TestWeightsFor_Table(t *testing.T) {
	tests := []struct {
		state  domain.MarketState
		want   domain.WeightTriple
		source domain.WeightSource
	}{
		{domain.MarketStateBullish, domain.WeightTriple{Sentiment: 0.30, Technical: 0.40, Fundamental: 0.30}, domain.WeightSourceDynamicBullish},
		{domain.MarketStateNeutral, domain.WeightTriple{Sentiment: 0.25, Technical: 0.35, Fundamental: 0.40}, domain.WeightSourceDynamicNeutral},
		{domain.MarketStateBearish, domain.WeightTriple{Sentiment: 0.15, Technical: 0.35, Fundamental: 0.50}, domain.WeightSourceDynamicBearish},
		{domain.MarketStateVolatile, domain.WeightTriple{Sentiment: 0.15, Technical: 0.35, Fundamental: 0.50}, domain.WeightSourceDynamicVolatile},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got, source, ok := weightsFor(tt.state)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.source, source)
			assert.InDelta(t, 1.0, got.Sum(), 1e-9)
		})
	}
}

func TestWeightsFor_UnknownState(t *testing.T) {
	_, source, ok := weightsFor(domain.MarketState("sideways"))
	assert.False(t, ok)
	assert.Equal(t, domain.WeightSourceStaticFallback, source)
}

type fakeOverride struct {
	weights domain.WeightTriple
	ok      bool
}

func (f fakeOverride) RuntimeWeights() (domain.WeightTriple, bool) {
	return f.weights, f.ok
}

func TestSelectWeights(t *testing.T) {
	static := domain.WeightTriple{Sentiment: 0.50, Technical: 0.30, Fundamental: 0.20}
	bullish := &domain.MarketContext{State: domain.MarketStateBullish}

	t.Run("dynamic table wins without override", func(t *testing.T) {
		w, source := selectWeights(bullish, static, nil)
		assert.Equal(t, domain.WeightSourceDynamicBullish, source)
		assert.InDelta(t, 0.40, w.Technical, 1e-9)
	})

	t.Run("valid tracker override replaces the table", func(t *testing.T) {
		override := fakeOverride{weights: domain.WeightTriple{Sentiment: 0.20, Technical: 0.45, Fundamental: 0.35}, ok: true}
		w, source := selectWeights(bullish, static, override)
		assert.Equal(t, domain.WeightSourceTracker, source)
		assert.InDelta(t, 0.45, w.Technical, 1e-9)
	})

	t.Run("out of bounds override ignored", func(t *testing.T) {
		override := fakeOverride{weights: domain.WeightTriple{Sentiment: 0.10, Technical: 0.55, Fundamental: 0.35}, ok: true}
		_, source := selectWeights(bullish, static, override)
		assert.Equal(t, domain.WeightSourceDynamicBullish, source)
	})

	t.Run("override not summing to one ignored", func(t *testing.T) {
		override := fakeOverride{weights: domain.WeightTriple{Sentiment: 0.30, Technical: 0.30, Fundamental: 0.30}, ok: true}
		_, source := selectWeights(bullish, static, override)
		assert.Equal(t, domain.WeightSourceDynamicBullish, source)
	})

	t.Run("missing context uses static", func(t *testing.T) {
		w, source := selectWeights(nil, static, nil)
		assert.Equal(t, domain.WeightSourceStatic, source)
		assert.InDelta(t, 0.50, w.Sentiment, 1e-9)
	})

	t.Run("degraded context uses static", func(t *testing.T) {
		degraded := &domain.MarketContext{State: domain.MarketStateNeutral, Degraded: true}
		_, source := selectWeights(degraded, static, nil)
		assert.Equal(t, domain.WeightSourceStatic, source)
	})

	t.Run("unknown state falls back tagged", func(t *testing.T) {
		odd := &domain.MarketContext{State: domain.MarketState("sideways")}
		_, source := selectWeights(odd, static, nil)
		assert.Equal(t, domain.WeightSourceStaticFallback, source)
	})
}
