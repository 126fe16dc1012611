package service

import (
	"fmt"
	"strings"
	"time"

	"divscan-go/internal/model"
)

var kindLabels = map[model.Kind]string{
	model.KindRegularBearish: "Regular Bearish",
	model.KindRegularBullish: "Regular Bullish",
	model.KindHiddenBullish:  "Hidden Bullish",
	model.KindHiddenBearish:  "Hidden Bearish",
}

func kindEmoji(k model.Kind) string {
	if k.IsBullish() {
		return "🟢"
	}
	return "🔴"
}

// formatAnnotationMessage renders a divergence alert for Telegram
func formatAnnotationMessage(a model.Annotation) string {
	return fmt.Sprintf(`%s <b>%s Divergence</b>
📈 <b>%s</b> | %s

💲 <b>Price:</b> <code>%s</code> → <code>%s</code> (%+.2f%%)
📊 <b>Oscillator:</b> <code>%.4f</code> → <code>%.4f</code>

🕰 <b>Previous peak:</b> %s
⏰ <b>Recent peak:</b> %s
🏷 <code>%s</code>
`,
		kindEmoji(a.Kind),
		kindLabels[a.Kind],
		escapeHTML(a.Symbol),
		escapeHTML(a.Interval),
		FormatPrice(a.Price.StartValue),
		FormatPrice(a.Price.EndValue),
		calculatePercentChange(a.Price.StartValue, a.Price.EndValue),
		a.Oscillator.StartValue,
		a.Oscillator.EndValue,
		formatBarTime(a.Price.StartTime),
		formatBarTime(a.Price.EndTime),
		escapeHTML(a.Tag),
	)
}

// formatRecent renders a compact list of stored annotations
func formatRecent(annotations []model.Annotation) string {
	if len(annotations) == 0 {
		return "📭 No divergences recorded yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>Recent Divergences (%d)</b>\n\n", len(annotations))
	for idx, a := range annotations {
		fmt.Fprintf(&b, "%d. %s %s <b>%s</b> %s\n", idx+1, kindEmoji(a.Kind), kindLabels[a.Kind], escapeHTML(a.Symbol), escapeHTML(a.Interval))
		fmt.Fprintf(&b, "   %s → %s at %s\n", FormatPrice(a.Price.StartValue), FormatPrice(a.Price.EndValue), formatBarTime(a.Price.EndTime))
	}
	return b.String()
}

func formatStatus(interval string, symbols int, last24h int64) string {
	return fmt.Sprintf(`✅ <b>Scanner Status</b>

🟢 <b>Status:</b> Online
⏱ <b>Interval:</b> %s
👀 <b>Symbols:</b> %d
📐 <b>Divergences (24h):</b> %d`, escapeHTML(interval), symbols, last24h)
}

func formatWatchlist(symbols []string) string {
	if len(symbols) == 0 {
		return "👀 Watchlist is empty. Use /watch SYMBOL to add one."
	}
	return fmt.Sprintf("👀 <b>Watchlist (%d)</b>\n\n%s", len(symbols), escapeHTML(strings.Join(symbols, "\n")))
}

func calculatePercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func formatBarTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("15:04, 02 Jan")
}

// escapeHTML escapes HTML special characters for Telegram
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// CalculateDynamicDecimals picks a precision that keeps small prices readable
func CalculateDynamicDecimals(price float64) int {
	switch {
	case price < 0.00001:
		return 8
	case price < 0.0001:
		return 7
	case price < 0.001:
		return 6
	case price < 0.01:
		return 5
	case price < 0.1:
		return 4
	case price < 1:
		return 3
	}
	return 2
}

func FormatPrice(price float64) string {
	return fmt.Sprintf("%.*f", CalculateDynamicDecimals(price), price)
}
