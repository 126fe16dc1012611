package indicator

import (
	"fmt"
	"strings"

	talib "github.com/markcheno/go-talib"
)

// MAType selects the moving average used by MovingAverage
type MAType string

const (
	MATypeEMA  MAType = "ema"
	MATypeSMA  MAType = "sma"
	MATypeWMA  MAType = "wma"
	MATypeDEMA MAType = "dema"
	MATypeTEMA MAType = "tema"
)

// ParseMAType converts a config value into an MAType
func ParseMAType(s string) (MAType, error) {
	switch t := MAType(strings.ToLower(strings.TrimSpace(s))); t {
	case MATypeEMA, MATypeSMA, MATypeWMA, MATypeDEMA, MATypeTEMA:
		return t, nil
	case "":
		return MATypeEMA, nil
	default:
		return "", fmt.Errorf("unknown moving average type %q", s)
	}
}

// warmup is the number of input values a kind needs before its first output
func (t MAType) warmup(period int) int {
	switch t {
	case MATypeDEMA:
		return 2*period - 1
	case MATypeTEMA:
		return 3*period - 2
	default:
		return period
	}
}

// MovingAverage returns MA(values, period, kind) aligned with values.
// Positions before the first full window are left at zero.
func MovingAverage(values []float64, period int, kind MAType) []float64 {
	if period < 1 || len(values) < kind.warmup(period) {
		return []float64{}
	}

	switch kind {
	case MATypeSMA:
		return CalculateSMA(values, period)
	case MATypeWMA:
		return talib.Ma(values, period, talib.WMA)
	case MATypeDEMA:
		return talib.Ma(values, period, talib.DEMA)
	case MATypeTEMA:
		return talib.Ma(values, period, talib.TEMA)
	default:
		return CalculateEMA(values, period)
	}
}

// CalculateEMA calculates the Exponential Moving Average, seeded with the SMA
// of the first period values
func CalculateEMA(closes []float64, period int) []float64 {
	if period < 1 || len(closes) < period {
		return []float64{}
	}
	return talib.Ma(closes, period, talib.EMA)
}

// CalculateSMA calculates the Simple Moving Average
func CalculateSMA(closes []float64, period int) []float64 {
	if period < 1 || len(closes) < period {
		return []float64{}
	}
	return talib.Ma(closes, period, talib.SMA)
}
