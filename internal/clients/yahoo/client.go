// Package yahoo implements the market data provider on the Yahoo Finance
// public API: the v8 chart endpoint for price history and the v7 quote
// endpoint for valuation metrics.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/domain"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"

	primaryIndexSymbol   = "^NSEI"
	secondaryIndexSymbol = "^BSESN"
	vixSymbol            = "^INDIAVIX"
)

// Client fetches quotes, history and fundamentals from Yahoo Finance.
// It implements domain.MarketDataProvider.
type Client struct {
	client  *http.Client
	baseURL string
	suffix  string // exchange suffix appended to plain equity symbols
	log     zerolog.Logger
}

// NewClient builds a client for NSE-listed symbols. Plain symbols get the
// ".NS" suffix; symbols already carrying a dot or an index caret pass
// through unchanged.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		suffix:  ".NS",
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// WithBaseURL points the client at a different host, for tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// yahooSymbol maps an internal symbol to its Yahoo ticker.
func (c *Client) yahooSymbol(symbol string) string {
	for _, r := range symbol {
		if r == '^' || r == '.' {
			return symbol
		}
	}
	return symbol + c.suffix
}

// GetQuoteHistory returns up to days of daily bars, oldest first.
func (c *Client) GetQuoteHistory(ctx context.Context, symbol string, days int) (*domain.QuoteHistory, error) {
	bars, currentPrice, err := c.fetchChart(ctx, c.yahooSymbol(symbol), days)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	return &domain.QuoteHistory{
		Symbol:       symbol,
		CurrentPrice: currentPrice,
		Prices:       bars,
	}, nil
}

// GetFundamentals returns valuation metrics; fields Yahoo does not report
// come back nil.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*domain.FundamentalSnapshot, error) {
	info, err := c.getQuote(ctx, c.yahooSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fundamentals for %s: %w", symbol, err)
	}

	snap := &domain.FundamentalSnapshot{
		PERatio:      getFloat64(info, "trailingPE"),
		PBRatio:      getFloat64(info, "priceToBook"),
		DebtToEquity: getFloat64(info, "debtToEquity"),
	}
	// Yahoo reports revenue growth as a fraction, the snapshot carries percent.
	if growth := getFloat64(info, "revenueGrowth"); growth != nil {
		pct := *growth * 100
		snap.RevenueGrowth = &pct
	}
	if de := snap.DebtToEquity; de != nil && *de > 10 {
		// Yahoo reports D/E for some listings as percent.
		ratio := *de / 100
		snap.DebtToEquity = &ratio
	}

	return snap, nil
}

// GetSentimentItems returns no items: Yahoo carries no scored sentiment
// feed. The sentiment analyzer degrades and the data penalty accounts
// for it until a real feed is configured.
func (c *Client) GetSentimentItems(ctx context.Context, symbol string) ([]domain.SentimentItem, error) {
	return nil, nil
}

// GetMarketSnapshot fetches the two index reads and the volatility index.
func (c *Client) GetMarketSnapshot(ctx context.Context) (*domain.MarketSnapshot, error) {
	primary, err := c.fetchIndex(ctx, primaryIndexSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch primary index: %w", err)
	}
	secondary, err := c.fetchIndex(ctx, secondaryIndexSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch secondary index: %w", err)
	}

	_, vix, err := c.fetchChart(ctx, vixSymbol, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch volatility index: %w", err)
	}

	return &domain.MarketSnapshot{
		Primary:   *primary,
		Secondary: *secondary,
		VIX:       vix,
	}, nil
}

// fetchIndex loads enough history to compute the 20 and 50 day averages.
func (c *Client) fetchIndex(ctx context.Context, symbol string) (*domain.IndexSnapshot, error) {
	bars, currentPrice, err := c.fetchChart(ctx, symbol, 80)
	if err != nil {
		return nil, err
	}
	if len(bars) < 50 {
		return nil, fmt.Errorf("insufficient history for %s: %d bars", symbol, len(bars))
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	return &domain.IndexSnapshot{
		Symbol:       symbol,
		CurrentPrice: currentPrice,
		MA20:         mean(closes[len(closes)-20:]),
		MA50:         mean(closes[len(closes)-50:]),
	}, nil
}

// chartResponse is the v8 chart API envelope.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetchChart(ctx context.Context, yfSymbol string, days int) ([]domain.PricePoint, float64, error) {
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		c.baseURL, url.PathEscape(yfSymbol), rangeFor(days))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, 0, err
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, 0, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, 0, fmt.Errorf("chart api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, 0, fmt.Errorf("no chart data for %s", yfSymbol)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, 0, fmt.Errorf("no quote series for %s", yfSymbol)
	}
	quote := result.Indicators.Quote[0]

	bars := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Yahoo pads holidays with null entries; skip incomplete bars.
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := domain.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}

	currentPrice := result.Meta.RegularMarketPrice
	if currentPrice == 0 && len(bars) > 0 {
		currentPrice = bars[len(bars)-1].Close
	}

	return bars, currentPrice, nil
}

// quoteResponse is the v7 quote API envelope.
type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

func (c *Client) getQuote(ctx context.Context, yfSymbol string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Add("symbols", yfSymbol)
	params.Add("fields", "symbol,regularMarketPrice,trailingPE,priceToBook,debtToEquity,revenueGrowth")

	body, err := c.get(ctx, c.baseURL+"/v7/finance/quote?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote api error: %v", result.QuoteResponse.Error)
	}
	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %s", yfSymbol)
	}

	return result.QuoteResponse.Result[0], nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// rangeFor maps a day count onto the chart API's coarse range buckets.
func rangeFor(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	default:
		return "1y"
	}
}

func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		if f, ok := val.(float64); ok {
			return &f
		}
	}
	return nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
