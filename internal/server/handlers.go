package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/agent"
	"github.com/marketmind/marketmind/internal/domain"
	"github.com/marketmind/marketmind/internal/modules/no_trade"
	"github.com/marketmind/marketmind/internal/modules/performance"
)

// Handlers serves the analysis and performance API.
type Handlers struct {
	agent    *agent.Service
	contexts domain.ContextProvider
	noTrade  *no_trade.Detector
	tracker  *performance.Tracker
	log      zerolog.Logger
}

func NewHandlers(
	agentService *agent.Service,
	contexts domain.ContextProvider,
	noTradeDetector *no_trade.Detector,
	tracker *performance.Tracker,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		agent:    agentService,
		contexts: contexts,
		noTrade:  noTradeDetector,
		tracker:  tracker,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes mounts the API routes on the given router.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/recommendations/{symbol}", h.HandleRecommendation)
	r.Get("/market/context", h.HandleMarketContext)
	r.Get("/no-trade", h.HandleNoTrade)

	r.Route("/performance", func(r chi.Router) {
		r.Get("/weights", h.HandleWeights)
		r.Get("/report", h.HandleReport)
		r.Post("/trades", h.HandleRecordTrade)
		r.Post("/trades/{id}/close", h.HandleCloseTrade)
		r.Post("/recompute", h.HandleRecompute)
	})
}

// HandleRecommendation runs the full analysis pipeline for one symbol.
// GET /api/recommendations/{symbol}
func (h *Handlers) HandleRecommendation(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		writeError(h.log, w, http.StatusBadRequest, "symbol is required")
		return
	}

	rec := h.agent.Analyze(r.Context(), symbol)
	writeJSON(h.log, w, http.StatusOK, rec)
}

// HandleMarketContext returns the current (possibly cached) market context.
// GET /api/market/context
func (h *Handlers) HandleMarketContext(w http.ResponseWriter, r *http.Request) {
	ctx := h.contexts.GetMarketContext(r.Context())
	writeJSON(h.log, w, http.StatusOK, ctx)
}

// HandleNoTrade evaluates the no-trade rules against the current context.
// GET /api/no-trade
func (h *Handlers) HandleNoTrade(w http.ResponseWriter, r *http.Request) {
	ctx := h.contexts.GetMarketContext(r.Context())
	signal := h.noTrade.Detect(ctx)

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"signal":       signal,
		"safety_score": h.noTrade.SafetyScore(ctx),
	})
}

// HandleWeights returns the tracker's recommended analyzer weights.
// GET /api/performance/weights
func (h *Handlers) HandleWeights(w http.ResponseWriter, r *http.Request) {
	weights, ok := h.tracker.RuntimeWeights()

	resp := map[string]interface{}{"available": ok}
	if ok {
		resp["weights"] = weights
	}
	writeJSON(h.log, w, http.StatusOK, resp)
}

// HandleReport returns the aggregate performance report.
// GET /api/performance/report
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.tracker.GenerateReport(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate performance report")
		writeError(h.log, w, http.StatusInternalServerError, "failed to generate report")
		return
	}
	writeJSON(h.log, w, http.StatusOK, report)
}

type recordTradeRequest struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
	Quantity   int     `json:"quantity"`
}

// HandleRecordTrade books a trade taken on the current recommendation so its
// outcome can feed the weight tracker.
// POST /api/performance/trades
func (h *Handlers) HandleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var req recordTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" || req.EntryPrice <= 0 || req.Quantity <= 0 {
		writeError(h.log, w, http.StatusBadRequest, "symbol, entry_price and quantity are required")
		return
	}

	rec := h.agent.Analyze(r.Context(), req.Symbol)
	trade, err := h.tracker.RecordEntry(r.Context(), rec, req.EntryPrice, req.Quantity)
	if err != nil {
		writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusCreated, trade)
}

type closeTradeRequest struct {
	ExitPrice float64 `json:"exit_price"`
}

// HandleCloseTrade records the exit of a previously booked trade.
// POST /api/performance/trades/{id}/close
func (h *Handlers) HandleCloseTrade(w http.ResponseWriter, r *http.Request) {
	tradeID := chi.URLParam(r, "id")

	var req closeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExitPrice <= 0 {
		writeError(h.log, w, http.StatusBadRequest, "exit_price must be positive")
		return
	}

	trade, err := h.tracker.RecordExit(r.Context(), tradeID, req.ExitPrice)
	if err != nil {
		writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, trade)
}

// HandleRecompute recalculates analyzer weights from closed trades.
// POST /api/performance/recompute
func (h *Handlers) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	weights, err := h.tracker.Recompute(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Weight recompute failed")
		writeError(h.log, w, http.StatusInternalServerError, "recompute failed")
		return
	}
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{"weights": weights})
}
