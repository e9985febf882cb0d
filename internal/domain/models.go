// Package domain provides core domain models and types.
// The domain layer is pure: no infrastructure dependencies, no I/O.
package domain

import (
	"strings"
	"time"
)

// MarketState represents the classified broad-market regime.
// The set is closed: weight selection and penalty logic switch exhaustively
// over these values, so adding a regime forces updating those tables.
type MarketState string

const (
	MarketStateBullish  MarketState = "bullish"
	MarketStateNeutral  MarketState = "neutral"
	MarketStateBearish  MarketState = "bearish"
	MarketStateVolatile MarketState = "volatile"
)

// Valid reports whether s is one of the closed set of market states.
func (s MarketState) Valid() bool {
	switch s {
	case MarketStateBullish, MarketStateNeutral, MarketStateBearish, MarketStateVolatile:
		return true
	}
	return false
}

// VIXLevel buckets the volatility index reading.
type VIXLevel string

const (
	VIXLevelLow      VIXLevel = "low"       // VIX < 15
	VIXLevelModerate VIXLevel = "moderate"  // 15 <= VIX < 20
	VIXLevelHigh     VIXLevel = "high"      // 20 <= VIX < 25
	VIXLevelVeryHigh VIXLevel = "very_high" // VIX >= 25
)

// Label renders the level for human-readable text ("very_high" -> "very high").
func (v VIXLevel) Label() string {
	return strings.ReplaceAll(string(v), "_", " ")
}

// Trend is the direction of a single index relative to its moving averages.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendNeutral Trend = "neutral"
	TrendBearish Trend = "bearish"
)

// Action is the recommended trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// SignalKind identifies which analyzer produced a signal.
type SignalKind string

const (
	SignalSentiment   SignalKind = "sentiment"
	SignalTechnical   SignalKind = "technical"
	SignalFundamental SignalKind = "fundamental"
)

// Direction buckets a signal score for agreement counting.
// Scores above +0.2 are positive, below -0.2 negative, otherwise neutral.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNeutral  Direction = "neutral"
	DirectionNegative Direction = "negative"
)

// TechnicalRegime classifies the chart pattern of a single security.
type TechnicalRegime string

const (
	RegimeBullishTrend   TechnicalRegime = "bullish-trend"
	RegimeBearishTrend   TechnicalRegime = "bearish-trend"
	RegimeOversoldZone   TechnicalRegime = "oversold-zone"
	RegimeOverboughtZone TechnicalRegime = "overbought-zone"
	RegimeConsolidation  TechnicalRegime = "consolidation"
)

// Severity grades a no-trade condition.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for max-selection (none < low < medium < high).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// PricePoint is a single OHLCV bar.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// QuoteHistory holds normalized price history for one symbol, oldest first.
type QuoteHistory struct {
	Symbol       string       `json:"symbol"`
	CurrentPrice float64      `json:"current_price"`
	Prices       []PricePoint `json:"prices"`
}

// Closes returns the close series, oldest first.
func (q *QuoteHistory) Closes() []float64 {
	out := make([]float64, len(q.Prices))
	for i, p := range q.Prices {
		out[i] = p.Close
	}
	return out
}

// Highs returns the high series, oldest first.
func (q *QuoteHistory) Highs() []float64 {
	out := make([]float64, len(q.Prices))
	for i, p := range q.Prices {
		out[i] = p.High
	}
	return out
}

// Lows returns the low series, oldest first.
func (q *QuoteHistory) Lows() []float64 {
	out := make([]float64, len(q.Prices))
	for i, p := range q.Prices {
		out[i] = p.Low
	}
	return out
}

// Volumes returns the volume series as float64, oldest first.
func (q *QuoteHistory) Volumes() []float64 {
	out := make([]float64, len(q.Prices))
	for i, p := range q.Prices {
		out[i] = float64(p.Volume)
	}
	return out
}

// IndexSnapshot is the per-index view the market context analyzer works from.
type IndexSnapshot struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"current_price"`
	MA20         float64 `json:"ma_20"`
	MA50         float64 `json:"ma_50"`
}

// MarketSnapshot bundles the raw inputs for one market context evaluation.
type MarketSnapshot struct {
	Primary   IndexSnapshot `json:"primary"`
	Secondary IndexSnapshot `json:"secondary"`
	VIX       float64       `json:"vix"`
}

// MarketContext is the cached summary of broad-market conditions.
type MarketContext struct {
	State          MarketState `json:"market_state"`
	VIX            float64     `json:"vix"`
	VIXLevel       VIXLevel    `json:"vix_level"`
	PrimaryTrend   Trend       `json:"primary_trend"`
	SecondaryTrend Trend       `json:"secondary_trend"`
	// Panic is set when the volatility index breaches the panic threshold.
	// The state is volatile in that case; the flag preserves the distinction
	// without widening the closed state set the weight table switches over.
	Panic bool `json:"panic"`
	// PrimaryBelow50DMA is the fraction the primary index sits below its
	// 50-day moving average; zero when at or above it.
	PrimaryBelow50DMA float64   `json:"primary_below_50dma"`
	SignalQuality     float64   `json:"signal_quality"` // 0-1, clarity of the read
	Favorability      float64   `json:"favorability"`   // 0-1, odds conditions reward longs
	Degraded          bool      `json:"degraded"`       // true when substituted by fail-safe defaults
	AsOf              time.Time `json:"as_of"`
}

// TechnicalSnapshot carries the indicator detail behind a technical signal.
// Pointer fields are nil when there was not enough history to compute them.
type TechnicalSnapshot struct {
	Price            float64         `json:"price"`
	MA20             *float64        `json:"ma_20,omitempty"`
	MA50             *float64        `json:"ma_50,omitempty"`
	MA200            *float64        `json:"ma_200,omitempty"`
	RSI              *float64        `json:"rsi,omitempty"`
	MACDLine         *float64        `json:"macd_line,omitempty"`
	MACDSignal       *float64        `json:"macd_signal,omitempty"`
	MACDHistogram    *float64        `json:"macd_histogram,omitempty"`
	ATR              *float64        `json:"atr,omitempty"`
	VolumeRatio      *float64        `json:"volume_ratio,omitempty"` // latest volume / 20-day average
	SupportLevels    []float64       `json:"support_levels,omitempty"`
	ResistanceLevels []float64       `json:"resistance_levels,omitempty"`
	Regime           TechnicalRegime `json:"regime"`
}

// FundamentalSnapshot carries the valuation metrics behind a fundamental
// signal. Nil fields were unavailable from the data source.
type FundamentalSnapshot struct {
	PERatio       *float64 `json:"pe_ratio,omitempty"`
	PBRatio       *float64 `json:"pb_ratio,omitempty"`
	DebtToEquity  *float64 `json:"debt_to_equity,omitempty"`
	RevenueGrowth *float64 `json:"revenue_growth,omitempty"`
	IndustryPE    *float64 `json:"industry_avg_pe,omitempty"`
}

// MissingCount returns how many of the core metrics are unavailable.
// IndustryPE is advisory and not counted.
func (f *FundamentalSnapshot) MissingCount() int {
	n := 0
	if f.PERatio == nil {
		n++
	}
	if f.PBRatio == nil {
		n++
	}
	if f.DebtToEquity == nil {
		n++
	}
	if f.RevenueGrowth == nil {
		n++
	}
	return n
}

// SentimentItem is one pre-scored sentiment source (the scoring model itself
// lives outside this system; items arrive already scored in [-1, 1]).
type SentimentItem struct {
	Source     string    `json:"source"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"observed_at"`
}

// AnalyzerSignal is the normalized output of one analyzer.
type AnalyzerSignal struct {
	Kind       SignalKind `json:"kind"`
	Score      float64    `json:"score"`      // [-1, 1]
	Strength   float64    `json:"strength"`   // [0, 1]
	Confidence float64    `json:"confidence"` // [0, 1], analyzer's self-assessment
	Degraded   bool       `json:"degraded"`   // true when substituted by fail-safe defaults
	Summary    string     `json:"summary,omitempty"`

	// SourceCount applies to sentiment signals only.
	SourceCount int `json:"source_count,omitempty"`
	// Technical detail, populated for technical signals only.
	Technical *TechnicalSnapshot `json:"technical,omitempty"`
	// Fundamental detail, populated for fundamental signals only.
	Fundamental *FundamentalSnapshot `json:"fundamental,omitempty"`
}

// Direction buckets the signal score using the +-0.2 threshold.
func (s *AnalyzerSignal) Direction() Direction {
	switch {
	case s.Score > 0.2:
		return DirectionPositive
	case s.Score < -0.2:
		return DirectionNegative
	default:
		return DirectionNeutral
	}
}

// NoTradeSignal is the output of the no-trade zone detector.
type NoTradeSignal struct {
	Active          bool     `json:"is_no_trade"`
	Severity        Severity `json:"severity"`
	Reasons         []string `json:"reasons,omitempty"`
	SuggestedAction string   `json:"suggested_action,omitempty"`
}

// ShouldBlock reports whether this signal suppresses the given action.
// Only new BUY entries are ever blocked; SELL and HOLD always pass.
func (n NoTradeSignal) ShouldBlock(action Action) bool {
	return n.Active && action == ActionBuy
}

// ReversalTrigger records one recovery check inside a reversal watch.
type ReversalTrigger struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Met       bool    `json:"met"`
}

// ReversalStatus is the state of a reversal watch.
type ReversalStatus string

const (
	ReversalWatchOnly ReversalStatus = "watch-only"
	ReversalTriggered ReversalStatus = "triggered"
)

// ReversalWatch flags a candidate bottoming setup: oversold technicals on a
// fundamentally sound company in a calm market.
type ReversalWatch struct {
	Status     ReversalStatus    `json:"status"`
	Confidence float64           `json:"confidence"`
	Triggers   []ReversalTrigger `json:"triggers"`
	Note       string            `json:"note,omitempty"`
}

// TriggeredCount returns how many recovery triggers have fired.
func (r *ReversalWatch) TriggeredCount() int {
	n := 0
	for _, t := range r.Triggers {
		if t.Met {
			n++
		}
	}
	return n
}

// WeightTriple is one per-analyzer weighting.
type WeightTriple struct {
	Sentiment   float64 `json:"sentiment"`
	Technical   float64 `json:"technical"`
	Fundamental float64 `json:"fundamental"`
}

// Sum returns the total of the three weights.
func (w WeightTriple) Sum() float64 {
	return w.Sentiment + w.Technical + w.Fundamental
}

// Normalized returns the triple scaled so the weights sum to 1.0.
// A zero triple is returned unchanged.
func (w WeightTriple) Normalized() WeightTriple {
	sum := w.Sum()
	if sum == 0 {
		return w
	}
	return WeightTriple{
		Sentiment:   w.Sentiment / sum,
		Technical:   w.Technical / sum,
		Fundamental: w.Fundamental / sum,
	}
}

// WeightSource tags where the runtime weights came from.
type WeightSource string

const (
	WeightSourceDynamicBullish  WeightSource = "dynamic-bullish"
	WeightSourceDynamicNeutral  WeightSource = "dynamic-neutral"
	WeightSourceDynamicBearish  WeightSource = "dynamic-bearish"
	WeightSourceDynamicVolatile WeightSource = "dynamic-volatile"
	WeightSourceStatic          WeightSource = "static"
	WeightSourceStaticFallback  WeightSource = "static-fallback"
	WeightSourceTracker         WeightSource = "performance-tracker"
)

// PenaltyContribution is one named, non-positive adjustment applied to the
// raw score. Keeping the list ordered and itemized makes the cascade auditable.
type PenaltyContribution struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"` // always <= 0
}

// ConfidenceBreakdown itemizes the confidence calculation.
type ConfidenceBreakdown struct {
	AgreementScore        float64 `json:"agreement_score"`
	SentimentConfidence   float64 `json:"sentiment_confidence"`
	TechnicalConfidence   float64 `json:"technical_confidence"`
	FundamentalConfidence float64 `json:"fundamental_confidence"`
	MarketSignalQuality   float64 `json:"market_signal_quality"`
	MarketFavorability    float64 `json:"market_favorability"`
	DataQualityPenalty    float64 `json:"data_quality_penalty"`
}

// PriceRange is an inclusive price band.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// TradeLevels translates a BUY into concrete execution levels.
type TradeLevels struct {
	IdealEntry          float64 `json:"ideal_entry"`
	StopLoss            float64 `json:"stop_loss"`
	Target              float64 `json:"target"`
	RiskRewardRatio     float64 `json:"risk_reward_ratio"`
	RiskPerTradePercent float64 `json:"risk_per_trade_percent"`
	PositionSizePercent float64 `json:"position_size_percent"`
}

/// Recommendation is the engine's output: always producible, even as a
// low-confidence HOLD with an explanatory reasoning string.
type Recommendation struct {
	ID            string               `json:"id"`
	Symbol        string               `json:"symbol"`
	Action        Action               `json:"action"`
	RawScore      float64              `json:"raw_score"`
	TotalPenalty  float64              `json:"total_penalty"`
	AdjustedScore float64              `json:"adjusted_score"`
	Confidence    float64              `json:"confidence"`
	Reasoning     string               `json:"reasoning"`
	Weights       WeightTriple         `json:"runtime_weights"`
	// Contributions is each analyzer's score*weight term of the raw score.
	Contributions WeightTriple         `json:"contributions"`
	WeightSource  WeightSource         `json:"weight_source"`
	Penalties     []PenaltyContribution `json:"penalties"`
	Breakdown     ConfidenceBreakdown  `json:"confidence_breakdown"`
	MarketState   MarketState          `json:"market_state"`
	NoTrade       NoTradeSignal        `json:"no_trade"`
	EntryRange    *PriceRange          `json:"entry_range,omitempty"`
	ExitRange     *PriceRange          `json:"exit_range,omitempty"`
	TradeLevels   *TradeLevels         `json:"trade_levels,omitempty"`
	Reversal      *ReversalWatch       `json:"reversal_watch,omitempty"`
	DataFlags     []string             `json:"data_flags,omitempty"`
	GeneratedAt   time.Time            `json:"generated_at"`
}
