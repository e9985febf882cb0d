package domain

import "context"

// MarketDataProvider supplies normalized market data. Implementations live
// outside the core; the engine only ever sees these shapes. Any timeout or
// retry policy belongs to the implementation, signalled via ctx.
type MarketDataProvider interface {
	// GetQuoteHistory returns up to days of daily bars for a symbol,
	// oldest first, plus the current price.
	GetQuoteHistory(ctx context.Context, symbol string, days int) (*QuoteHistory, error)

	// GetFundamentals returns valuation metrics for a symbol. Individual
	// fields may be nil when the source does not report them.
	GetFundamentals(ctx context.Context, symbol string) (*FundamentalSnapshot, error)

	// GetSentimentItems returns pre-scored sentiment sources for a symbol.
	GetSentimentItems(ctx context.Context, symbol string) ([]SentimentItem, error)

	// GetMarketSnapshot returns the broad-market inputs (two index
	// snapshots and the volatility index reading).
	GetMarketSnapshot(ctx context.Context) (*MarketSnapshot, error)
}

// SignalSource is one analyzer: it turns raw data for a symbol into a
// normalized AnalyzerSignal. An error result is treated as a missing signal
// and degraded downstream, never surfaced to the caller.
type SignalSource interface {
	Kind() SignalKind
	Analyze(ctx context.Context, symbol string) (*AnalyzerSignal, error)
}

// ContextProvider serves the (possibly cached) market context summary.
type ContextProvider interface {
	// GetMarketContext returns the current context, which may be cached
	// and up to the configured TTL stale. Implementations fail safe: on
	// error they return a degraded neutral context, not nil.
	GetMarketContext(ctx context.Context) *MarketContext
}

// WeightOverrideProvider optionally supplies runtime weights learned from
// realized outcomes. ok is false when no override is available, in which
// case the dynamic weight table applies.
type WeightOverrideProvider interface {
	RuntimeWeights() (weights WeightTriple, ok bool)
}
