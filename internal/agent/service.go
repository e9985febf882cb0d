// Package agent orchestrates one full analysis run: analyzer fan-out, market
// context, no-trade gate, recommendation, reversal watch.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
	"github.com/marketmind/marketmind/internal/modules/no_trade"
	"github.com/marketmind/marketmind/internal/modules/recommendation"
	"github.com/marketmind/marketmind/internal/modules/reversal"
)

// analyzeTimeout bounds one full pipeline run, including data fetches.
const analyzeTimeout = 45 * time.Second

// Service wires the detectors and the engine behind one entry point.
type Service struct {
	provider domain.MarketDataProvider
	sources  []domain.SignalSource
	contexts domain.ContextProvider
	noTrade  *no_trade.Detector
	reversal *reversal.Detector
	engine   *recommendation.Engine
	policy   domain.DefaultPolicy
	log      zerolog.Logger
}

func New(
	provider domain.MarketDataProvider,
	sources []domain.SignalSource,
	contexts domain.ContextProvider,
	noTradeDetector *no_trade.Detector,
	reversalDetector *reversal.Detector,
	engine *recommendation.Engine,
	policy domain.DefaultPolicy,
	log zerolog.Logger,
) *Service {
	return &Service{
		provider: provider,
		sources:  sources,
		contexts: contexts,
		noTrade:  noTradeDetector,
		reversal: reversalDetector,
		engine:   engine,
		policy:   policy,
		log:      log.With().Str("component", "agent").Logger(),
	}
}

// Analyze runs the full pipeline for one symbol. It never returns an error
// for missing data; every gap degrades into the recommendation instead.
func (s *Service) Analyze(ctx context.Context, symbol string) *domain.Recommendation {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	signals := s.collectSignals(ctx, symbol)
	marketCtx := s.contexts.GetMarketContext(ctx)
	noTradeSignal := s.noTrade.Detect(marketCtx)

	technical := signals[domain.SignalTechnical]
	fundamental := signals[domain.SignalFundamental]

	var currentPrice float64
	if technical != nil && technical.Technical != nil {
		currentPrice = technical.Technical.Price
	}

	rec := s.engine.Generate(recommendation.Inputs{
		Symbol:       symbol,
		CurrentPrice: currentPrice,
		Sentiment:    signals[domain.SignalSentiment],
		Technical:    technical,
		Fundamental:  fundamental,
		Context:      marketCtx,
		NoTrade:      noTradeSignal,
	})

	// The reversal watch rides along independently of the action.
	if technical != nil && fundamental != nil {
		rec.Reversal = s.reversal.Detect(
			technical.Technical, fundamental.Score, fundamental.Fundamental, marketCtx)
	}

	return rec
}

// collectSignals fans the analyzers out concurrently. A failed analyzer
// yields a nil slot; the engine substitutes its degraded default.
func (s *Service) collectSignals(ctx context.Context, symbol string) map[domain.SignalKind]*domain.AnalyzerSignal {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		signals = make(map[domain.SignalKind]*domain.AnalyzerSignal, len(s.sources))
	)

	for _, source := range s.sources {
		wg.Add(1)
		go func(source domain.SignalSource) {
			defer wg.Done()

			signal, err := source.Analyze(ctx, symbol)
			if err != nil {
				s.log.Warn().
					Err(err).
					Str("symbol", symbol).
					Str("analyzer", string(source.Kind())).
					Msg("Analyzer failed, degrading signal")
				return
			}

			mu.Lock()
			signals[source.Kind()] = signal
			mu.Unlock()
		}(source)
	}
	wg.Wait()

	return signals
}
