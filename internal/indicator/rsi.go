package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index with Wilder smoothing.
// The result is aligned with closes and NaN before the first full period.
// Periods below 2 are not defined.
func CalculateRSI(closes []float64, period int) []float64 {
	if period < 2 || len(closes) < period+1 {
		return []float64{}
	}

	rsi := talib.Rsi(closes, period)
	for i := 0; i < period; i++ {
		rsi[i] = math.NaN()
	}
	return rsi
}
