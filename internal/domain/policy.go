package domain

import "time"

// DefaultPolicy centralizes every fail-safe substitution the pipeline makes
// when data is missing. Detectors and the engine take the policy explicitly
// instead of scattering ad hoc nil checks, so tests can assert on it directly.
type DefaultPolicy struct {
	// NeutralQuality and NeutralFavorability are used for a substituted
	// market context when the real one cannot be computed.
	NeutralQuality      float64
	NeutralFavorability float64

	// DegradedConfidence is the confidence assigned to a substituted
	// analyzer signal (the score is always zero).
	DegradedConfidence float64
}

// NewDefaultPolicy returns the standard fail-safe policy.
func NewDefaultPolicy() DefaultPolicy {
	return DefaultPolicy{
		NeutralQuality:      0.5,
		NeutralFavorability: 0.5,
		DegradedConfidence:  0.0,
	}
}

// NeutralContext builds the substitute market context used when the real one
// is unavailable. It is marked degraded so downstream penalty accounting can
// see the substitution.
func (p DefaultPolicy) NeutralContext(asOf time.Time) *MarketContext {
	return &MarketContext{
		State:          MarketStateNeutral,
		VIXLevel:       VIXLevelModerate,
		PrimaryTrend:   TrendNeutral,
		SecondaryTrend: TrendNeutral,
		SignalQuality:  p.NeutralQuality,
		Favorability:   p.NeutralFavorability,
		Degraded:       true,
		AsOf:           asOf,
	}
}

// InactiveNoTrade is the fail-open no-trade signal: detection problems must
// never block a recommendation on their own.
func (p DefaultPolicy) InactiveNoTrade() NoTradeSignal {
	return NoTradeSignal{Active: false, Severity: SeverityNone}
}

// DegradedSignal substitutes for an analyzer whose output was absent or
// unparseable: zero score, policy confidence, flagged as degraded.
func (p DefaultPolicy) DegradedSignal(kind SignalKind) *AnalyzerSignal {
	return &AnalyzerSignal{
		Kind:       kind,
		Score:      0,
		Strength:   0,
		Confidence: p.DegradedConfidence,
		Degraded:   true,
		Summary:    "analyzer output unavailable, neutral substitute applied",
	}
}
