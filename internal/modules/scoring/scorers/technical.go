// Package scorers provides the analyzer implementations that turn raw market
// data into normalized signals.
package scorers

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
	"github.com/marketmind/marketmind/pkg/formulas"
)

// Indicator weights for the combined technical score.
const (
	maWeight   = 0.30
	rsiWeight  = 0.30
	macdWeight = 0.40
)

// TechnicalScorer derives a technical signal from price history: moving
// averages, RSI, MACD, ATR, volume and support/resistance levels.
type TechnicalScorer struct {
	provider domain.MarketDataProvider
	damping  float64 // strength multiplier for neutral-direction scores
	log      zerolog.Logger
}

// NewTechnicalScorer creates a new technical scorer.
func NewTechnicalScorer(provider domain.MarketDataProvider, neutralDamping float64, log zerolog.Logger) *TechnicalScorer {
	return &TechnicalScorer{
		provider: provider,
		damping:  neutralDamping,
		log:      log.With().Str("component", "technical_scorer").Logger(),
	}
}

// Kind identifies this analyzer.
func (s *TechnicalScorer) Kind() domain.SignalKind {
	return domain.SignalTechnical
}

// Analyze fetches price history for the symbol and scores it.
func (s *TechnicalScorer) Analyze(ctx context.Context, symbol string) (*domain.AnalyzerSignal, error) {
	history, err := s.provider.GetQuoteHistory(ctx, symbol, 250)
	if err != nil {
		return nil, fmt.Errorf("technical analysis for %s: %w", symbol, err)
	}
	return s.Score(history)
}

// Score computes the technical signal from normalized price history.
// At least 50 bars are required; MA200 and other long-window indicators stay
// nil when the history is shorter than their window.
func (s *TechnicalScorer) Score(history *domain.QuoteHistory) (*domain.AnalyzerSignal, error) {
	if history == nil || len(history.Prices) < 50 {
		return nil, fmt.Errorf("need at least 50 price points, got %d", historyLen(history))
	}

	closes := history.Closes()
	price := history.CurrentPrice
	if price == 0 {
		price = closes[len(closes)-1]
	}

	snap := &domain.TechnicalSnapshot{
		Price: price,
		MA20:  formulas.CalculateSMA(closes, 20),
		MA50:  formulas.CalculateSMA(closes, 50),
		MA200: formulas.CalculateSMA(closes, 200),
		RSI:   formulas.CalculateRSI(closes, 14),
		ATR:   formulas.CalculateATR(history.Highs(), history.Lows(), closes, 14),
	}

	if macd := formulas.CalculateMACD(closes); macd != nil {
		snap.MACDLine = &macd.Line
		snap.MACDSignal = &macd.Signal
		snap.MACDHistogram = &macd.Histogram
	}

	snap.VolumeRatio = volumeRatio(history.Volumes())
	snap.SupportLevels, snap.ResistanceLevels = findSupportResistance(history)
	snap.Regime = classifyRegime(price, snap)

	score := s.technicalScore(snap)
	direction, strength := regimeDirection(snap.Regime, score, s.damping)

	signal := &domain.AnalyzerSignal{
		Kind:       domain.SignalTechnical,
		Score:      score,
		Strength:   strength,
		Confidence: technicalConfidence(score),
		Technical:  snap,
		Summary:    fmt.Sprintf("regime %s, direction %s", snap.Regime, direction),
	}

	s.log.Debug().
		Str("symbol", history.Symbol).
		Float64("score", score).
		Str("regime", string(snap.Regime)).
		Msg("Technical signal computed")

	return signal, nil
}

// technicalScore combines MA, RSI and MACD into [-1, 1].
func (s *TechnicalScorer) technicalScore(snap *domain.TechnicalSnapshot) float64 {
	score := maScore(snap)*maWeight + rsiScore(snap.RSI)*rsiWeight + macdScore(snap)*macdWeight
	return clamp(score, -1, 1)
}

// maScore scores moving average alignment: golden/death crosses plus full
// stack alignment.
func maScore(snap *domain.TechnicalSnapshot) float64 {
	if snap.MA20 == nil || snap.MA50 == nil {
		return 0
	}

	score := 0.0
	if *snap.MA20 > *snap.MA50 {
		score += 0.33
	} else {
		score -= 0.33
	}

	if snap.MA200 == nil {
		return score
	}

	if *snap.MA50 > *snap.MA200 {
		score += 0.33
	} else {
		score -= 0.33
	}

	if *snap.MA20 > *snap.MA50 && *snap.MA50 > *snap.MA200 {
		score += 0.34
	} else if *snap.MA20 < *snap.MA50 && *snap.MA50 < *snap.MA200 {
		score -= 0.34
	}

	return score
}

// rsiScore maps RSI into [-1, 1]: oversold is bullish, overbought bearish,
// the 30-70 band a small bias toward equilibrium.
func rsiScore(rsi *float64) float64 {
	if rsi == nil {
		return 0
	}

	switch {
	case *rsi > 70:
		return -(*rsi - 70) / 30
	case *rsi < 30:
		return (30 - *rsi) / 30
	default:
		return (*rsi - 50) / 100
	}
}

// macdScore maps the MACD/signal spread through tanh so large divergences
// saturate at +-1.
func macdScore(snap *domain.TechnicalSnapshot) float64 {
	if snap.MACDLine == nil || snap.MACDSignal == nil {
		return 0
	}
	return math.Tanh((*snap.MACDLine - *snap.MACDSignal) / 2.0)
}

// classifyRegime buckets the chart into one of the closed technical regimes.
// Exhaustion zones take priority over trends since they flag potential
// reversals.
func classifyRegime(price float64, snap *domain.TechnicalSnapshot) domain.TechnicalRegime {
	if snap.RSI == nil || snap.MACDLine == nil || snap.MA20 == nil {
		return domain.RegimeConsolidation
	}

	rsi := *snap.RSI
	macd := *snap.MACDLine
	ma20 := *snap.MA20

	if rsi < 25 && macd < 0 && price < ma20 {
		return domain.RegimeOversoldZone
	}
	if rsi > 75 && macd > 0 && price > ma20 {
		return domain.RegimeOverboughtZone
	}

	if snap.MA50 != nil && snap.MA200 != nil {
		bullishAlignment := price > ma20 && ma20 > *snap.MA50 && *snap.MA50 > *snap.MA200
		if bullishAlignment && macd > 0 && rsi >= 50 && rsi <= 70 {
			return domain.RegimeBullishTrend
		}

		bearishAlignment := price < ma20 && ma20 < *snap.MA50 && *snap.MA50 < *snap.MA200
		if bearishAlignment && macd < 0 && rsi >= 30 && rsi <= 50 {
			return domain.RegimeBearishTrend
		}
	}

	// Relaxed criteria: directional bias without full stack alignment.
	if price > ma20 && macd > 0 {
		return domain.RegimeBullishTrend
	}
	if price < ma20 && macd < 0 {
		return domain.RegimeBearishTrend
	}

	return domain.RegimeConsolidation
}

// regimeDirection maps a regime to a direction label and strength. Neutral
// regimes are damped so weak consolidation scores don't drive decisions.
func regimeDirection(regime domain.TechnicalRegime, score, damping float64) (string, float64) {
	switch regime {
	case domain.RegimeBullishTrend:
		return "bullish", math.Abs(score)
	case domain.RegimeBearishTrend:
		return "bearish", math.Abs(score)
	case domain.RegimeOversoldZone:
		return "bearish-exhaustion", math.Abs(score) * 0.8
	case domain.RegimeOverboughtZone:
		return "bullish-exhaustion", math.Abs(score) * 0.8
	default:
		return "neutral", math.Abs(score) * damping
	}
}

// technicalConfidence reflects how decisive the combined score is.
func technicalConfidence(score float64) float64 {
	switch {
	case math.Abs(score) > 0.6:
		return 0.95
	case math.Abs(score) < 0.2:
		return 0.5
	default:
		return 0.8
	}
}

// volumeRatio returns latest volume over the trailing 20-day average.
func volumeRatio(volumes []float64) *float64 {
	if len(volumes) < 21 {
		return nil
	}

	window := volumes[len(volumes)-21 : len(volumes)-1]
	avg := formulas.Mean(window)
	if avg == 0 {
		return nil
	}

	ratio := volumes[len(volumes)-1] / avg
	return &ratio
}

// findSupportResistance identifies support and resistance levels from local
// extrema of the low/high series, clusters nearby levels to reduce noise and
// keeps the five most significant of each.
func findSupportResistance(history *domain.QuoteHistory) (supports, resistances []float64) {
	prices := history.Prices
	if len(prices) < 20 {
		return nil, nil
	}

	// Adaptive window: wider histories compare more neighbors.
	order := len(prices) / 20
	if order < 5 {
		order = 5
	}

	var rawSupports, rawResistances []float64
	for i := range prices {
		if isLocalExtremum(prices, i, order, false) {
			rawSupports = append(rawSupports, prices[i].Low)
		}
		if isLocalExtremum(prices, i, order, true) {
			rawResistances = append(rawResistances, prices[i].High)
		}
	}

	supports = clusterLevels(rawSupports, 0.02)
	resistances = clusterLevels(rawResistances, 0.02)

	if len(supports) > 5 {
		supports = supports[len(supports)-5:]
	}
	if len(resistances) > 5 {
		resistances = resistances[len(resistances)-5:]
	}
	return supports, resistances
}

// isLocalExtremum reports whether bar i is a local max (or min) of its
// high (or low) series within order bars on each side.
func isLocalExtremum(prices []domain.PricePoint, i, order int, max bool) bool {
	lo := i - order
	if lo < 0 {
		lo = 0
	}
	hi := i + order
	if hi > len(prices)-1 {
		hi = len(prices) - 1
	}

	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		if max && prices[j].High > prices[i].High {
			return false
		}
		if !max && prices[j].Low < prices[i].Low {
			return false
		}
	}
	return true
}

// clusterLevels groups levels within thresholdPct of the running cluster
// average and replaces each cluster with its mean.
func clusterLevels(levels []float64, thresholdPct float64) []float64 {
	if len(levels) == 0 {
		return nil
	}

	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)

	var clustered []float64
	cluster := []float64{sorted[0]}

	for _, level := range sorted[1:] {
		avg := formulas.Mean(cluster)
		if avg != 0 && math.Abs(level-avg)/avg <= thresholdPct {
			cluster = append(cluster, level)
		} else {
			clustered = append(clustered, formulas.Mean(cluster))
			cluster = []float64{level}
		}
	}
	clustered = append(clustered, formulas.Mean(cluster))

	return clustered
}

func historyLen(history *domain.QuoteHistory) int {
	if history == nil {
		return 0
	}
	return len(history.Prices)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
