package indicator

import (
	"fmt"
	"strings"

	"divscan-go/internal/series"
)

// OscillatorKind selects the series compared against price
type OscillatorKind string

const (
	OscillatorMACD OscillatorKind = "macd"
	OscillatorRSI  OscillatorKind = "rsi"
)

// ParseOscillatorKind converts a config value into an OscillatorKind
func ParseOscillatorKind(s string) (OscillatorKind, error) {
	switch k := OscillatorKind(strings.ToLower(strings.TrimSpace(s))); k {
	case OscillatorMACD, OscillatorRSI:
		return k, nil
	case "":
		return OscillatorMACD, nil
	default:
		return "", fmt.Errorf("unknown oscillator %q", s)
	}
}

// OscillatorConfig describes how the oscillator feed is derived from closes
type OscillatorConfig struct {
	Kind            OscillatorKind
	MAType          MAType
	FastPeriod      int
	SlowPeriod      int
	SmoothingPeriod int
	RSIPeriod       int
}

// Warmup is the number of closes needed before the first defined oscillator value
func (c OscillatorConfig) Warmup() int {
	if c.Kind == OscillatorRSI {
		return c.RSIPeriod + 1
	}
	return max(c.MAType.warmup(c.FastPeriod), c.MAType.warmup(c.SlowPeriod))
}

// Oscillator computes the oscillator series aligned 1:1 with closes.
// An empty series is returned when there is not enough data.
func Oscillator(closes []float64, cfg OscillatorConfig) series.Slice {
	switch cfg.Kind {
	case OscillatorRSI:
		return series.Slice(CalculateRSI(closes, cfg.RSIPeriod))
	default:
		macd, _, _ := CalculateMACD(closes, cfg.FastPeriod, cfg.SlowPeriod, cfg.SmoothingPeriod, cfg.MAType)
		return series.Slice(macd)
	}
}
