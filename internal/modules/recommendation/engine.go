// Package recommendation is the core engine: it turns three analyzer signals
// plus market context and the no-trade gate into one final, explainable
// recommendation. The engine always produces a result; missing inputs degrade
// confidence instead of failing the run.
package recommendation

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/config"
	"github.com/marketmind/marketmind/internal/domain"
	"github.com/marketmind/marketmind/pkg/formulas"
)

// Inputs is everything one recommendation is computed from. Nil signals and
// context are tolerated; the engine substitutes fail-safe defaults.
type Inputs struct {
	Symbol       string
	CurrentPrice float64
	Sentiment    *domain.AnalyzerSignal
	Technical    *domain.AnalyzerSignal
	Fundamental  *domain.AnalyzerSignal
	Context      *domain.MarketContext
	NoTrade      domain.NoTradeSignal
}

// Engine generates recommendations. It is stateless between calls; the clock
// and ID source are injectable so outputs are reproducible in tests.
type Engine struct {
	cfg      config.EngineConfig
	policy   domain.DefaultPolicy
	override domain.WeightOverrideProvider
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

func New(cfg config.EngineConfig, policy domain.DefaultPolicy, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		policy: policy,
		now:    time.Now,
		newID:  uuid.NewString,
		log:    log.With().Str("component", "recommendation").Logger(),
	}
}

// WithOverrideProvider wires in the performance tracker as a weight source.
func (e *Engine) WithOverrideProvider(p domain.WeightOverrideProvider) *Engine {
	e.override = p
	return e
}

// WithClock replaces the wall clock, for deterministic tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithIDSource replaces the recommendation ID generator.
func (e *Engine) WithIDSource(newID func() string) *Engine {
	e.newID = newID
	return e
}

// Generate runs the full pipeline: weight selection, raw score, penalty
// cascade, action decision, confidence, price ranges, reasoning.
func (e *Engine) Generate(in Inputs) *domain.Recommendation {
	var dataFlags []string

	sentiment := in.Sentiment
	if sentiment == nil {
		sentiment = e.policy.DegradedSignal(domain.SignalSentiment)
		dataFlags = append(dataFlags, "sentiment signal unavailable")
	}
	technical := in.Technical
	if technical == nil {
		technical = e.policy.DegradedSignal(domain.SignalTechnical)
		dataFlags = append(dataFlags, "technical signal unavailable")
	}
	fundamental := in.Fundamental
	if fundamental == nil {
		fundamental = e.policy.DegradedSignal(domain.SignalFundamental)
		dataFlags = append(dataFlags, "fundamental signal unavailable")
	}

	ctx := in.Context
	if ctx == nil {
		ctx = e.policy.NeutralContext(e.now())
	}
	ctxAvailable := !ctx.Degraded
	if !ctxAvailable {
		dataFlags = append(dataFlags, "market context unavailable, neutral substitute applied")
	}

	weights, weightSource := selectWeights(ctx, e.cfg.StaticWeights, e.override)

	contributions := domain.WeightTriple{
		Sentiment:   sentiment.Score * weights.Sentiment,
		Technical:   technical.Score * weights.Technical,
		Fundamental: fundamental.Score * weights.Fundamental,
	}
	rawScore := contributions.Sum()

	confidence, breakdown := calculateConfidence(
		sentiment, technical, fundamental, rawScore, e.cfg.ActionThreshold, ctx, ctxAvailable)

	penalties, totalPenalty := penaltyCascade(ctx, in.NoTrade, breakdown.DataQualityPenalty)
	adjustedScore := rawScore + totalPenalty

	scores := []float64{sentiment.Score, technical.Score, fundamental.Score}
	conflict := formulas.PopStdDev(scores) > e.cfg.ConflictStdDev

	action := domain.ActionHold
	switch {
	case conflict:
		// High disagreement forces HOLD regardless of the adjusted score.
	case adjustedScore > e.cfg.ActionThreshold:
		action = domain.ActionBuy
	case adjustedScore < -e.cfg.ActionThreshold:
		action = domain.ActionSell
	}

	blocked := in.NoTrade.ShouldBlock(action)
	if blocked {
		action = domain.ActionHold
	}

	rec := &domain.Recommendation{
		ID:            e.newID(),
		Symbol:        in.Symbol,
		Action:        action,
		RawScore:      rawScore,
		TotalPenalty:  totalPenalty,
		AdjustedScore: adjustedScore,
		Confidence:    confidence,
		Weights:       weights,
		WeightSource:  weightSource,
		Contributions: contributions,
		Penalties:     penalties,
		Breakdown:     breakdown,
		MarketState:   ctx.State,
		NoTrade:       in.NoTrade,
		DataFlags:     dataFlags,
		GeneratedAt:   e.now(),
	}

	switch action {
	case domain.ActionBuy:
		rec.EntryRange = suggestRange(action, in.CurrentPrice, technical.Technical)
		rec.TradeLevels = tradeLevels(in.CurrentPrice, technical.Technical,
			e.cfg.RiskPerTradePercent, e.cfg.MaxPositionPercent)
	case domain.ActionSell:
		rec.ExitRange = suggestRange(action, in.CurrentPrice, technical.Technical)
	}

	rec.Reasoning = composeReasoning(reasoningInput{
		action:        action,
		confidence:    confidence,
		rawScore:      rawScore,
		adjustedScore: adjustedScore,
		sentiment:     sentiment,
		technical:     technical,
		fundamental:   fundamental,
		ctx:           ctx,
		ctxAvailable:  ctxAvailable,
		noTrade:       in.NoTrade,
		blocked:       blocked,
		conflict:      conflict,
		marketPenalty: penalties[0].Amount,
	})

	e.log.Info().
		Str("symbol", in.Symbol).
		Str("action", string(action)).
		Float64("raw_score", rawScore).
		Float64("adjusted_score", adjustedScore).
		Float64("confidence", confidence).
		Str("weight_source", string(weightSource)).
		Bool("blocked", blocked).
		Msg("Recommendation generated")

	return rec
}
