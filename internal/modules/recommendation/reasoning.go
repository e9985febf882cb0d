package recommendation

import (
	"fmt"
	"strings"

	"github.com/marketmind/marketmind/internal/domain"
)

// reasoningInput carries everything the reasoning composer needs, so the text
// is a pure function of the decision already made.
type reasoningInput struct {
	action        domain.Action
	confidence    float64
	rawScore      float64
	adjustedScore float64
	sentiment     *domain.AnalyzerSignal
	technical     *domain.AnalyzerSignal
	fundamental   *domain.AnalyzerSignal
	ctx           *domain.MarketContext
	ctxAvailable  bool
	noTrade       domain.NoTradeSignal
	blocked       bool
	conflict      bool
	marketPenalty float64
}

// composeReasoning builds the human-readable explanation deterministically.
// Sections are joined by blank lines; a no-trade block leads when it fired.
func composeReasoning(in reasoningInput) string {
	var parts []string

	if in.blocked {
		var b strings.Builder
		b.WriteString("Trading suppressed by no-trade signal (")
		b.WriteString(string(in.noTrade.Severity))
		b.WriteString(" severity):")
		for _, reason := range in.noTrade.Reasons {
			b.WriteString("\n  - ")
			b.WriteString(reason)
		}
		if in.noTrade.SuggestedAction != "" {
			b.WriteString("\n")
			b.WriteString(in.noTrade.SuggestedAction)
		}
		parts = append(parts, b.String())
	}

	parts = append(parts, fmt.Sprintf(
		"Recommendation: %s with %.0f%% confidence (adjusted score: %+.2f, raw: %+.2f)",
		in.action, in.confidence*100, in.adjustedScore, in.rawScore))

	parts = append(parts, fmt.Sprintf(
		"Sentiment: %s (score: %+.2f, sources: %d)",
		describeScore(in.sentiment.Score), in.sentiment.Score, in.sentiment.SourceCount))

	parts = append(parts, describeTechnical(in.technical))

	parts = append(parts, describeFundamental(in.fundamental))

	if in.conflict {
		parts = append(parts,
			"Conflicting signals detected between analyzers; holding until the picture clears.")
	}

	if in.ctxAvailable && in.marketPenalty != 0 {
		parts = append(parts, fmt.Sprintf(
			"Market is %s with %s volatility (VIX: %.1f), reducing the score by %.2f.",
			in.ctx.State, in.ctx.VIXLevel.Label(), in.ctx.VIX, -in.marketPenalty))
	}

	if in.noTrade.Active && !in.blocked {
		parts = append(parts, fmt.Sprintf(
			"No-trade conditions are active (%s severity); new entries are discouraged.",
			in.noTrade.Severity))
	}

	parts = append(parts, summaryLine(in))

	return strings.Join(parts, "\n\n")
}

func describeTechnical(t *domain.AnalyzerSignal) string {
	desc := fmt.Sprintf("Technical: %s (score: %+.2f", describeScore(t.Score), t.Score)
	if snap := t.Technical; snap != nil {
		if snap.RSI != nil {
			desc += fmt.Sprintf(", RSI: %.1f", *snap.RSI)
		}
		if snap.MACDLine != nil {
			desc += fmt.Sprintf(", MACD: %+.2f", *snap.MACDLine)
		}
	}
	return desc + ")"
}

func describeFundamental(f *domain.AnalyzerSignal) string {
	pe := "P/E: N/A"
	if snap := f.Fundamental; snap != nil && snap.PERatio != nil {
		pe = fmt.Sprintf("P/E: %.1f", *snap.PERatio)
	}
	return fmt.Sprintf("Fundamentals: %s (score: %+.2f, %s)", describeScore(f.Score), f.Score, pe)
}

// summaryLine is the one-sentence plain-English takeaway.
func summaryLine(in reasoningInput) string {
	switch {
	case in.blocked:
		return "Summary: the signals favored buying, but dangerous market conditions put this on hold."
	case in.conflict:
		return "Summary: the analyzers disagree too strongly to act on."
	case in.action == domain.ActionBuy:
		return fmt.Sprintf("Summary: %s signals support a buy here.", strings.ToLower(dominantAnalyzer(in)))
	case in.action == domain.ActionSell:
		return fmt.Sprintf("Summary: %s signals argue for exiting.", strings.ToLower(dominantAnalyzer(in)))
	default:
		return "Summary: no edge either way; staying put."
	}
}

// dominantAnalyzer names the largest absolute score among the three inputs.
func dominantAnalyzer(in reasoningInput) string {
	name, best := "Sentiment", abs(in.sentiment.Score)
	if v := abs(in.technical.Score); v > best {
		name, best = "Technical", v
	}
	if v := abs(in.fundamental.Score); v > best {
		name = "Fundamental"
	}
	return name
}

func describeScore(score float64) string {
	switch {
	case score > 0.5:
		return "Very bullish"
	case score > 0.2:
		return "Bullish"
	case score > -0.2:
		return "Neutral"
	case score > -0.5:
		return "Bearish"
	default:
		return "Very bearish"
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
