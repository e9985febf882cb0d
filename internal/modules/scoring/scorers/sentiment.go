package scorers

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
)

// SentimentScorer aggregates pre-scored sentiment sources into one signal.
// The scoring model itself is external; items arrive already scored in [-1, 1]
// and this scorer only weights and combines them.
type SentimentScorer struct {
	provider domain.MarketDataProvider
	damping  float64
	now      func() time.Time // injectable clock for deterministic recency weighting
	log      zerolog.Logger
}

// NewSentimentScorer creates a new sentiment scorer.
func NewSentimentScorer(provider domain.MarketDataProvider, neutralDamping float64, log zerolog.Logger) *SentimentScorer {
	return &SentimentScorer{
		provider: provider,
		damping:  neutralDamping,
		now:      time.Now,
		log:      log.With().Str("component", "sentiment_scorer").Logger(),
	}
}

// WithClock overrides the reference time used for recency weighting.
func (s *SentimentScorer) WithClock(now func() time.Time) *SentimentScorer {
	s.now = now
	return s
}

// Kind identifies this analyzer.
func (s *SentimentScorer) Kind() domain.SignalKind {
	return domain.SignalSentiment
}

// Analyze fetches sentiment items for the symbol and aggregates them.
func (s *SentimentScorer) Analyze(ctx context.Context, symbol string) (*domain.AnalyzerSignal, error) {
	items, err := s.provider.GetSentimentItems(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("sentiment analysis for %s: %w", symbol, err)
	}
	return s.Aggregate(items, s.now()), nil
}

// Aggregate combines sources into one score using recency and source-type
// weighting. asOf anchors the recency decay so results are reproducible.
func (s *SentimentScorer) Aggregate(items []domain.SentimentItem, asOf time.Time) *domain.AnalyzerSignal {
	if len(items) == 0 {
		return &domain.AnalyzerSignal{
			Kind:        domain.SignalSentiment,
			Score:       0,
			Confidence:  0,
			SourceCount: 0,
			Summary:     "no sentiment sources available",
		}
	}

	// Few sources halve the aggregate confidence.
	confidencePenalty := 0.5
	if len(items) >= 5 {
		confidencePenalty = 1.0
	}

	var weightedScore, weightedConfidence, totalWeight float64
	counted := 0

	for _, item := range items {
		temporal := temporalWeight(asOf.Sub(item.ObservedAt))
		if temporal == 0 {
			continue
		}

		weight := temporal * sourceWeight(item.Source)
		totalWeight += weight
		weightedScore += item.Score * weight
		weightedConfidence += item.Confidence * weight
		counted++
	}

	score := 0.0
	confidence := 0.0
	if totalWeight > 0 {
		score = clamp(weightedScore/totalWeight, -1, 1)
		confidence = clamp(weightedConfidence/totalWeight*confidencePenalty, 0, 1)
	}

	strength := math.Abs(score)
	if score >= -0.2 && score <= 0.2 {
		strength = math.Abs(score) * s.damping
	}

	signal := &domain.AnalyzerSignal{
		Kind:        domain.SignalSentiment,
		Score:       round3(score),
		Strength:    round3(strength),
		Confidence:  round3(confidence),
		SourceCount: counted,
	}

	s.log.Debug().
		Float64("score", signal.Score).
		Int("sources", counted).
		Msg("Sentiment aggregated")

	return signal
}

// temporalWeight decays with age: full weight under 24h, exponential decay
// after that, zero beyond a week.
func temporalWeight(age time.Duration) float64 {
	hours := age.Hours()
	switch {
	case hours > 168:
		return 0
	case hours < 24:
		return 1.0
	default:
		return math.Exp(-hours / 48)
	}
}

// sourceWeight ranks source reliability: professional journalism over
// social posts; unknown types get the social weight.
func sourceWeight(source string) float64 {
	switch strings.ToLower(source) {
	case "news":
		return 1.0
	case "social":
		return 0.5
	default:
		return 0.5
	}
}
