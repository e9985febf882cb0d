// Package performance tracks trade outcomes, scores each analyzer's
// historical accuracy, and derives runtime weight overrides for the
// recommendation engine.
package performance

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
	"github.com/marketmind/marketmind/pkg/formulas"
)

// Derived weights are clamped so no analyzer is silenced or dominant.
const (
	minWeight = 0.15
	maxWeight = 0.50

	// strongSignalThreshold attributes a trade to an analyzer when its
	// score at entry exceeded this magnitude.
	strongSignalThreshold = 0.3
)

// ModuleStats summarizes one analyzer's attributable trade history.
type ModuleStats struct {
	Module        domain.SignalKind `json:"module"`
	TotalTrades   int               `json:"total_trades"`
	WinningTrades int               `json:"winning_trades"`
	LosingTrades  int               `json:"losing_trades"`
	WinRate       float64           `json:"win_rate"`
	AvgProfitPct  float64           `json:"avg_profit_pct"`
	AccuracyScore float64           `json:"accuracy_score"`
}

// Report is the aggregate performance view served over the API.
type Report struct {
	TotalTrades  int                 `json:"total_trades"`
	OpenTrades   int                 `json:"open_trades"`
	ClosedTrades int                 `json:"closed_trades"`
	WinRate      float64             `json:"win_rate"`
	TotalPnLPct  float64             `json:"total_pnl_pct"`
	AvgPnLPct    float64             `json:"avg_pnl_pct"`
	SharpeRatio  *float64            `json:"sharpe_ratio,omitempty"`
	MaxDrawdown  *float64            `json:"max_drawdown,omitempty"`
	Modules      []ModuleStats       `json:"modules"`
	Weights      domain.WeightTriple `json:"recommended_weights"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// Tracker records trades and recomputes analyzer weights from outcomes.
// It implements domain.WeightOverrideProvider for the engine.
type Tracker struct {
	store *Store
	now   func() time.Time
	log   zerolog.Logger

	mu      sync.RWMutex
	weights domain.WeightTriple
	ready   bool
}

func NewTracker(store *Store, log zerolog.Logger) (*Tracker, error) {
	t := &Tracker{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "performance").Logger(),
	}

	// Restore the last computed weights so overrides survive restarts.
	w, ok, err := store.LatestWeights(context.Background())
	if err != nil {
		return nil, err
	}
	if ok {
		t.weights = w
		t.ready = true
	}
	return t, nil
}

// WithClock replaces the wall clock, for deterministic tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// RuntimeWeights returns the latest outcome-derived weights. ok is false
// until at least one recompute has produced a valid triple.
func (t *Tracker) RuntimeWeights() (domain.WeightTriple, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.weights, t.ready
}

// RecordEntry opens a trade record for a recommendation that was acted on.
func (t *Tracker) RecordEntry(ctx context.Context, rec *domain.Recommendation, entryPrice float64, quantity int) (*TradeRecord, error) {
	if rec.Action == domain.ActionHold {
		return nil, fmt.Errorf("cannot record a trade for a HOLD recommendation")
	}

	weights := rec.Weights
	trade := &TradeRecord{
		ID:               uuid.NewString(),
		Symbol:           rec.Symbol,
		Action:           rec.Action,
		EntryPrice:       entryPrice,
		EntryDate:        t.now(),
		Quantity:         quantity,
		SentimentScore:   scoreFromContribution(rec.Contributions.Sentiment, weights.Sentiment),
		TechnicalScore:   scoreFromContribution(rec.Contributions.Technical, weights.Technical),
		FundamentalScore: scoreFromContribution(rec.Contributions.Fundamental, weights.Fundamental),
		Confidence:       rec.Confidence,
		MarketState:      rec.MarketState,
	}

	if err := t.store.InsertTrade(ctx, trade); err != nil {
		return nil, err
	}

	t.log.Info().
		Str("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Str("action", string(trade.Action)).
		Float64("entry_price", entryPrice).
		Msg("Trade entry recorded")

	return trade, nil
}

// RecordExit closes a trade and computes its outcome. SELL entries profit
// when the price falls.
func (t *Tracker) RecordExit(ctx context.Context, tradeID string, exitPrice float64) (*TradeRecord, error) {
	trade, err := t.store.TradeByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %s not found", tradeID)
	}
	if trade.Closed() {
		return nil, fmt.Errorf("trade %s is already closed", tradeID)
	}

	var pnl, pnlPct float64
	if trade.Action == domain.ActionBuy {
		pnl = (exitPrice - trade.EntryPrice) * float64(trade.Quantity)
		pnlPct = (exitPrice - trade.EntryPrice) / trade.EntryPrice * 100
	} else {
		pnl = (trade.EntryPrice - exitPrice) * float64(trade.Quantity)
		pnlPct = (trade.EntryPrice - exitPrice) / trade.EntryPrice * 100
	}

	exitDate := t.now()
	holdingDays := int(exitDate.Sub(trade.EntryDate).Hours() / 24)

	trade.ExitPrice = &exitPrice
	trade.ExitDate = &exitDate
	trade.ProfitLoss = &pnl
	trade.ProfitLossPct = &pnlPct
	trade.HoldingDays = &holdingDays

	if err := t.store.CloseTrade(ctx, trade); err != nil {
		return nil, err
	}

	t.log.Info().
		Str("trade_id", trade.ID).
		Float64("pnl_pct", pnlPct).
		Int("holding_days", holdingDays).
		Msg("Trade exit recorded")

	return trade, nil
}

// Recompute rebuilds the recommended weights from all closed trades and
// persists the result. Called by the scheduler and after exits.
func (t *Tracker) Recompute(ctx context.Context) (domain.WeightTriple, error) {
	closed, err := t.store.ClosedTrades(ctx, time.Time{}, time.Time{})
	if err != nil {
		return domain.WeightTriple{}, err
	}

	stats := []ModuleStats{
		analyzeModule(domain.SignalSentiment, closed),
		analyzeModule(domain.SignalTechnical, closed),
		analyzeModule(domain.SignalFundamental, closed),
	}
	weights := recommendedWeights(stats)

	if err := t.store.SaveWeights(ctx, weights, t.now()); err != nil {
		return domain.WeightTriple{}, err
	}

	t.mu.Lock()
	t.weights = weights
	t.ready = true
	t.mu.Unlock()

	t.log.Info().
		Float64("sentiment", weights.Sentiment).
		Float64("technical", weights.Technical).
		Float64("fundamental", weights.Fundamental).
		Int("closed_trades", len(closed)).
		Msg("Runtime weights recomputed")

	return weights, nil
}

// GenerateReport aggregates all outcomes into one API-facing report.
func (t *Tracker) GenerateReport(ctx context.Context) (*Report, error) {
	closed, err := t.store.ClosedTrades(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	open, err := t.store.OpenTrades(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		TotalTrades:  len(closed) + len(open),
		OpenTrades:   len(open),
		ClosedTrades: len(closed),
		GeneratedAt:  t.now(),
	}

	var pnls []float64
	wins := 0
	for _, trade := range closed {
		pnls = append(pnls, *trade.ProfitLossPct)
		if *trade.ProfitLossPct > 0 {
			wins++
		}
	}

	if len(closed) > 0 {
		report.WinRate = float64(wins) / float64(len(closed)) * 100
		for _, p := range pnls {
			report.TotalPnLPct += p
		}
		report.AvgPnLPct = formulas.Mean(pnls)

		returns := make([]float64, len(pnls))
		equity := make([]float64, len(pnls)+1)
		equity[0] = 1.0
		for i, p := range pnls {
			returns[i] = p / 100
			equity[i+1] = equity[i] * (1 + returns[i])
		}
		report.SharpeRatio = formulas.CalculateSharpeRatio(returns, 0, 252)
		report.MaxDrawdown = formulas.CalculateMaxDrawdown(equity)
	}

	report.Modules = []ModuleStats{
		analyzeModule(domain.SignalSentiment, closed),
		analyzeModule(domain.SignalTechnical, closed),
		analyzeModule(domain.SignalFundamental, closed),
	}
	report.Weights = recommendedWeights(report.Modules)

	return report, nil
}

// analyzeModule scores one analyzer on the trades it can claim credit for:
// win rate 40%, average profit 40%, consistency 20%.
func analyzeModule(module domain.SignalKind, closed []*TradeRecord) ModuleStats {
	stats := ModuleStats{Module: module}

	var pnls []float64
	for _, trade := range closed {
		var score float64
		switch module {
		case domain.SignalSentiment:
			score = trade.SentimentScore
		case domain.SignalTechnical:
			score = trade.TechnicalScore
		case domain.SignalFundamental:
			score = trade.FundamentalScore
		}
		if math.Abs(score) <= strongSignalThreshold {
			continue
		}

		stats.TotalTrades++
		pnls = append(pnls, *trade.ProfitLossPct)
		if *trade.ProfitLossPct > 0 {
			stats.WinningTrades++
		} else {
			stats.LosingTrades++
		}
	}

	if stats.TotalTrades == 0 {
		return stats
	}

	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	stats.AvgProfitPct = formulas.Mean(pnls)

	winRateScore := stats.WinRate / 100
	// Average P/L normalized over an assumed -20% to +20% band.
	plScore := math.Max(0, math.Min(1, (stats.AvgProfitPct+20)/40))

	consistencyScore := 0.5
	if len(pnls) > 1 {
		consistencyScore = math.Max(0, 1.0-formulas.StdDev(pnls)/50)
	}

	stats.AccuracyScore = winRateScore*0.4 + plScore*0.4 + consistencyScore*0.2
	return stats
}

// recommendedWeights converts accuracy scores into a bounded, normalized
// weight triple. With no history it falls back to equal thirds.
func recommendedWeights(stats []ModuleStats) domain.WeightTriple {
	scores := map[domain.SignalKind]float64{}
	total := 0.0
	for _, s := range stats {
		scores[s.Module] = s.AccuracyScore
		total += s.AccuracyScore
	}

	if total == 0 {
		third := 1.0 / 3.0
		return domain.WeightTriple{Sentiment: third, Technical: third, Fundamental: third}
	}

	clampShare := func(kind domain.SignalKind) float64 {
		return math.Max(minWeight, math.Min(maxWeight, scores[kind]/total))
	}

	w := domain.WeightTriple{
		Sentiment:   clampShare(domain.SignalSentiment),
		Technical:   clampShare(domain.SignalTechnical),
		Fundamental: clampShare(domain.SignalFundamental),
	}
	return w.Normalized()
}

// scoreFromContribution recovers an analyzer's raw score from its weighted
// contribution term.
func scoreFromContribution(contribution, weight float64) float64 {
	if weight == 0 {
		return 0
	}
	return contribution / weight
}
