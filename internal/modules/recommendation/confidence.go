package recommendation

import (
	"math"

	"github.com/marketmind/marketmind/internal/domain"
)

// Confidence blends agreement across signal sources with each analyzer's own
// confidence. Agreement dominates: four aligned mediocre signals beat one
// strong signal fighting the other three.
const (
	confWeightAgreement    = 0.60
	confWeightSentiment    = 0.15
	confWeightTechnical    = 0.10
	confWeightFundamental  = 0.10
	confWeightFavorability = 0.05

	maxDataQualityPenalty = 0.30
)

// calculateConfidence produces the final confidence in [0, 1] and its full
// breakdown. ctxAvailable is false when the market context was substituted by
// fail-safe defaults, which drops agreement counting to three components.
func calculateConfidence(
	sentiment, technical, fundamental *domain.AnalyzerSignal,
	rawScore, actionThreshold float64,
	ctx *domain.MarketContext,
	ctxAvailable bool,
) (float64, domain.ConfidenceBreakdown) {
	direction := signalDirection(rawScore, actionThreshold)

	agreement := agreementScore(sentiment, technical, fundamental, ctx, ctxAvailable, direction)
	sentimentConf := sentimentConfidence(sentiment)
	technicalConf := technicalConfidence(technical)
	fundamentalConf := fundamentalConfidence(fundamental)
	dataPenalty := dataQualityPenalty(sentiment, fundamental, ctxAvailable)

	var quality, favorability float64
	if ctxAvailable {
		quality = ctx.SignalQuality
		favorability = ctx.Favorability
	}

	confidence := agreement*confWeightAgreement +
		sentimentConf*confWeightSentiment +
		technicalConf*confWeightTechnical +
		fundamentalConf*confWeightFundamental +
		favorability*confWeightFavorability

	confidence *= 1.0 - dataPenalty
	confidence = math.Max(0, math.Min(1, confidence))

	breakdown := domain.ConfidenceBreakdown{
		AgreementScore:        round2(agreement),
		SentimentConfidence:   round2(sentimentConf),
		TechnicalConfidence:   round2(technicalConf),
		FundamentalConfidence: round2(fundamentalConf),
		MarketSignalQuality:   round2(quality),
		MarketFavorability:    round2(favorability),
		DataQualityPenalty:    round2(dataPenalty),
	}

	return confidence, breakdown
}

// signalDirection buckets the combined raw score by the action threshold.
func signalDirection(rawScore, threshold float64) domain.Direction {
	switch {
	case rawScore > threshold:
		return domain.DirectionPositive
	case rawScore < -threshold:
		return domain.DirectionNegative
	default:
		return domain.DirectionNeutral
	}
}

// agrees checks whether one analyzer score points the same way as the overall
// signal, using the +-0.2 bucketing rule.
func agrees(score float64, direction domain.Direction) bool {
	switch direction {
	case domain.DirectionPositive:
		return score > 0.2
	case domain.DirectionNegative:
		return score < -0.2
	default:
		return score >= -0.2 && score <= 0.2
	}
}

// marketAgrees treats the broad market as a fourth, coarser signal source.
// A neutral market does not contradict a directional signal.
func marketAgrees(state domain.MarketState, direction domain.Direction) bool {
	switch direction {
	case domain.DirectionPositive:
		return state == domain.MarketStateBullish || state == domain.MarketStateNeutral
	case domain.DirectionNegative:
		return state == domain.MarketStateBearish || state == domain.MarketStateNeutral
	default:
		return state == domain.MarketStateNeutral
	}
}

// agreementScore counts aligned sources and maps the count to a bucketed
// base confidence.
func agreementScore(
	sentiment, technical, fundamental *domain.AnalyzerSignal,
	ctx *domain.MarketContext,
	ctxAvailable bool,
	direction domain.Direction,
) float64 {
	agreements := 0
	if agrees(sentiment.Score, direction) {
		agreements++
	}
	if agrees(technical.Score, direction) {
		agreements++
	}
	if agrees(fundamental.Score, direction) {
		agreements++
	}

	if ctxAvailable {
		if marketAgrees(ctx.State, direction) {
			agreements++
		}
		switch agreements {
		case 4:
			return 0.85
		case 3:
			return 0.75
		case 2:
			return 0.65
		default:
			return 0.45
		}
	}

	switch agreements {
	case 3:
		return 0.80
	case 2:
		return 0.70
	default:
		return 0.50
	}
}

// sentimentConfidence adjusts the analyzer's self-assessment for sample size:
// penalized below two sources, boosted at five or more.
func sentimentConfidence(s *domain.AnalyzerSignal) float64 {
	conf := s.Confidence
	if conf <= 0 {
		conf = 0.5
	}
	if s.SourceCount < 2 {
		return conf * 0.7
	}
	if s.SourceCount >= 5 {
		return math.Min(1.0, conf*1.1)
	}
	return conf
}

// technicalConfidence keys off signal strength: clear trends read reliably,
// scores near zero mean the indicators are mixed.
func technicalConfidence(t *domain.AnalyzerSignal) float64 {
	abs := math.Abs(t.Score)
	switch {
	case abs < 0.2:
		return 0.5
	case abs > 0.6:
		return 0.95
	default:
		return 0.8
	}
}

// fundamentalConfidence is driven purely by data availability of the three
// core valuation metrics; debt-to-equity is advisory.
func fundamentalConfidence(f *domain.AnalyzerSignal) float64 {
	switch coreMetricsMissing(f.Fundamental) {
	case 0:
		return 0.9
	case 1:
		return 0.7
	default:
		return 0.5
	}
}

func coreMetricsMissing(f *domain.FundamentalSnapshot) int {
	if f == nil {
		return 3
	}
	missing := 0
	if f.PERatio == nil {
		missing++
	}
	if f.PBRatio == nil {
		missing++
	}
	if f.RevenueGrowth == nil {
		missing++
	}
	return missing
}

// dataQualityPenalty accumulates flags for thin or absent data into one
// penalty, clamped once at the end so individual terms stay auditable.
func dataQualityPenalty(sentiment, fundamental *domain.AnalyzerSignal, ctxAvailable bool) float64 {
	penalty := 0.0

	if !ctxAvailable {
		penalty += 0.05
	}

	if sentiment.SourceCount < 2 {
		penalty += 0.10
	} else if sentiment.SourceCount < 3 {
		penalty += 0.05
	}

	switch missing := coreMetricsMissing(fundamental.Fundamental); {
	case missing >= 2:
		penalty += 0.10
	case missing == 1:
		penalty += 0.05
	}

	// Zero score with zero sources signals a total upstream failure,
	// distinct from a genuinely neutral reading.
	if sentiment.Score == 0 && sentiment.SourceCount == 0 {
		penalty += 0.15
	}

	return math.Min(maxDataQualityPenalty, penalty)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
