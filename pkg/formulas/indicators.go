package formulas

import (
	"github.com/markcheno/go-talib"
)

// MACDResult holds the three MACD series evaluated at the latest bar.
type MACDResult struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// CalculateRSI calculates the Relative Strength Index over the given period.
//
// Returns the current RSI value (0-100) or nil if there is not enough data.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// CalculateSMA calculates the simple moving average over the given period.
// Returns nil if there is not enough data.
func CalculateSMA(closes []float64, length int) *float64 {
	if len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// CalculateEMA calculates the exponential moving average over the given period.
// Returns nil if there is not enough data.
func CalculateEMA(closes []float64, length int) *float64 {
	if len(closes) < length {
		return nil
	}

	ema := talib.Ema(closes, length)
	if len(ema) > 0 && !isNaN(ema[len(ema)-1]) {
		result := ema[len(ema)-1]
		return &result
	}

	return nil
}

// CalculateMACD calculates MACD with the standard 12/26/9 configuration and
// returns the latest line, signal and histogram values. Returns nil if there
// is not enough data for the slow period plus the signal period.
func CalculateMACD(closes []float64) *MACDResult {
	const (
		fastPeriod   = 12
		slowPeriod   = 26
		signalPeriod = 9
	)

	if len(closes) < slowPeriod+signalPeriod {
		return nil
	}

	line, signal, hist := talib.Macd(closes, fastPeriod, slowPeriod, signalPeriod)
	last := len(line) - 1
	if last < 0 || isNaN(line[last]) || isNaN(signal[last]) || isNaN(hist[last]) {
		return nil
	}

	return &MACDResult{
		Line:      line[last],
		Signal:    signal[last],
		Histogram: hist[last],
	}
}

// CalculateATR calculates the Average True Range over the given period.
// Returns nil if there is not enough data.
func CalculateATR(highs, lows, closes []float64, length int) *float64 {
	if len(closes) < length+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}

	atr := talib.Atr(highs, lows, closes, length)
	if len(atr) > 0 && !isNaN(atr[len(atr)-1]) {
		result := atr[len(atr)-1]
		return &result
	}

	return nil
}

func isNaN(f float64) bool {
	return f != f
}
