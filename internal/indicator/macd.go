package indicator

import "math"

// CalculateMACD calculates the Moving Average Convergence Divergence.
// The MACD line is aligned with closes and is NaN until both averages are warm.
func CalculateMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int, kind MAType) (macd, signal, histogram []float64) {
	fastMA := MovingAverage(closes, fastPeriod, kind)
	slowMA := MovingAverage(closes, slowPeriod, kind)
	if len(fastMA) == 0 || len(slowMA) == 0 {
		return []float64{}, []float64{}, []float64{}
	}

	start := max(kind.warmup(fastPeriod), kind.warmup(slowPeriod)) - 1

	macdLine := make([]float64, len(closes))
	for i := range macdLine {
		if i < start {
			macdLine[i] = math.NaN()
			continue
		}
		macdLine[i] = fastMA[i] - slowMA[i]
	}

	// Signal line is always an EMA of the warm part of the MACD line
	signalLine := CalculateEMA(macdLine[start:], signalPeriod)

	histogramLine := make([]float64, len(signalLine))
	for i := range signalLine {
		histogramLine[i] = macdLine[start+i] - signalLine[i]
	}

	return macdLine, signalLine, histogramLine
}

// GetLastMACD returns the most recent MACD, signal, and histogram values
func GetLastMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int, kind MAType) (macd, signal, histogram float64) {
	macdLine, signalLine, histogramLine := CalculateMACD(closes, fastPeriod, slowPeriod, signalPeriod, kind)

	if len(macdLine) == 0 || len(signalLine) == 0 || len(histogramLine) == 0 {
		return 0, 0, 0
	}

	return macdLine[len(macdLine)-1], signalLine[len(signalLine)-1], histogramLine[len(histogramLine)-1]
}
