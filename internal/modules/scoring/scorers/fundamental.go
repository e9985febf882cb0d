package scorers

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
)

// Metric weights for the combined fundamental score.
const (
	peWeight     = 0.35
	pbWeight     = 0.25
	deWeight     = 0.20
	growthWeight = 0.20
)

// FundamentalScorer derives a valuation signal from financial metrics.
// Missing metrics drop out of the weighted average rather than defaulting;
// confidence reflects how much data was available.
type FundamentalScorer struct {
	provider domain.MarketDataProvider
	damping  float64
	log      zerolog.Logger
}

// NewFundamentalScorer creates a new fundamental scorer.
func NewFundamentalScorer(provider domain.MarketDataProvider, neutralDamping float64, log zerolog.Logger) *FundamentalScorer {
	return &FundamentalScorer{
		provider: provider,
		damping:  neutralDamping,
		log:      log.With().Str("component", "fundamental_scorer").Logger(),
	}
}

// Kind identifies this analyzer.
func (s *FundamentalScorer) Kind() domain.SignalKind {
	return domain.SignalFundamental
}

// Analyze fetches fundamentals for the symbol and scores them.
func (s *FundamentalScorer) Analyze(ctx context.Context, symbol string) (*domain.AnalyzerSignal, error) {
	metrics, err := s.provider.GetFundamentals(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fundamental analysis for %s: %w", symbol, err)
	}
	return s.Score(metrics), nil
}

// Score computes the fundamental signal from valuation metrics.
func (s *FundamentalScorer) Score(metrics *domain.FundamentalSnapshot) *domain.AnalyzerSignal {
	if metrics == nil {
		metrics = &domain.FundamentalSnapshot{}
	}

	score := fundamentalScore(metrics)

	strength := math.Abs(score)
	if score >= -0.2 && score <= 0.2 {
		strength = math.Abs(score) * s.damping
	}

	signal := &domain.AnalyzerSignal{
		Kind:        domain.SignalFundamental,
		Score:       round3(score),
		Strength:    round3(strength),
		Confidence:  fundamentalConfidence(metrics),
		Fundamental: metrics,
	}

	s.log.Debug().
		Float64("score", signal.Score).
		Int("missing_metrics", metrics.MissingCount()).
		Msg("Fundamental signal computed")

	return signal
}

// fundamentalScore is the weighted average of the available metric bands.
// Returns 0 (neutral) when nothing is available.
func fundamentalScore(m *domain.FundamentalSnapshot) float64 {
	var weightedSum, totalWeight float64

	if m.PERatio != nil && m.IndustryPE != nil && *m.IndustryPE != 0 {
		weightedSum += peScore(*m.PERatio / *m.IndustryPE) * peWeight
		totalWeight += peWeight
	}
	if m.PBRatio != nil {
		weightedSum += pbScore(*m.PBRatio) * pbWeight
		totalWeight += pbWeight
	}
	if m.DebtToEquity != nil {
		weightedSum += deScore(*m.DebtToEquity) * deWeight
		totalWeight += deWeight
	}
	if m.RevenueGrowth != nil {
		weightedSum += growthScore(*m.RevenueGrowth) * growthWeight
		totalWeight += growthWeight
	}

	if totalWeight == 0 {
		return 0
	}

	return clamp(weightedSum/totalWeight, -1, 1)
}

// peScore bands the P/E relative to the industry average; below 1.0 is
// undervalued.
func peScore(relativePE float64) float64 {
	switch {
	case relativePE < 0.7:
		return 1.0
	case relativePE < 0.9:
		return 0.5
	case relativePE < 1.1:
		return 0.0
	case relativePE < 1.3:
		return -0.5
	default:
		return -1.0
	}
}

// pbScore bands the price-to-book ratio; below book value is undervalued.
func pbScore(pb float64) float64 {
	switch {
	case pb < 1.0:
		return 1.0
	case pb < 2.0:
		return 0.5
	case pb < 3.0:
		return 0.0
	case pb < 5.0:
		return -0.5
	default:
		return -1.0
	}
}

// deScore bands debt-to-equity; lower leverage scores higher.
func deScore(de float64) float64 {
	switch {
	case de < 0.3:
		return 1.0
	case de < 0.5:
		return 0.5
	case de < 1.0:
		return 0.0
	case de < 2.0:
		return -0.5
	default:
		return -1.0
	}
}

// growthScore bands revenue growth expressed as a percentage.
func growthScore(growthPct float64) float64 {
	switch {
	case growthPct > 20.0:
		return 1.0
	case growthPct > 10.0:
		return 0.5
	case growthPct > 0.0:
		return 0.0
	case growthPct > -5.0:
		return -0.5
	default:
		return -1.0
	}
}

// fundamentalConfidence reflects data availability: 0.9 with a full set of
// P/E, P/B and revenue growth, 0.5 when two or more are missing.
func fundamentalConfidence(m *domain.FundamentalSnapshot) float64 {
	missing := 0
	if m.PERatio == nil {
		missing++
	}
	if m.PBRatio == nil {
		missing++
	}
	if m.RevenueGrowth == nil {
		missing++
	}

	switch {
	case missing == 0:
		return 0.9
	case missing >= 2:
		return 0.5
	default:
		return 0.7
	}
}
