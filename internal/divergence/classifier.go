package divergence

import (
	"math"

	"divscan-go/internal/model"
)

// Gate holds the correspondence tolerance and the significance thresholds
type Gate struct {
	Tolerance     int     // max bar distance between a price peak and its oscillator peak
	PriceMinDelta float64 // |Δprice| must exceed this
	OscMinDelta   float64 // |Δoscillator| must exceed this
}

type direction func(recent, prev float64) bool

func higher(recent, prev float64) bool { return recent > prev }
func lower(recent, prev float64) bool  { return recent < prev }

type rule struct {
	highs bool
	price direction
	osc   direction
}

var rules = map[model.Kind]rule{
	model.KindRegularBearish: {highs: true, price: higher, osc: lower},
	model.KindRegularBullish: {highs: false, price: lower, osc: higher},
	model.KindHiddenBullish:  {highs: true, price: lower, osc: higher},
	model.KindHiddenBearish:  {highs: false, price: higher, osc: lower},
}

// UsesHighs reports whether kind is evaluated on the highs peak lists
func UsesHighs(kind model.Kind) bool {
	return rules[kind].highs
}

// CheckDivergence compares the two most recent price peaks with their
// corresponding oscillator peaks and reports a finding of the given kind.
func CheckDivergence(price, osc model.PeakList, kind model.Kind, g Gate) (model.Finding, bool) {
	r, ok := rules[kind]
	if !ok || len(price) < 2 || len(osc) < 2 {
		return model.Finding{}, false
	}

	recentPrice, prevPrice := price[0], price[1]

	recentOsc, ok := FindClosestPeak(recentPrice.Offset, osc, g.Tolerance)
	if !ok {
		return model.Finding{}, false
	}
	prevOsc, ok := FindClosestPeak(prevPrice.Offset, osc, g.Tolerance)
	if !ok {
		return model.Finding{}, false
	}

	if !r.price(recentPrice.Value, prevPrice.Value) || !r.osc(recentOsc.Value, prevOsc.Value) {
		return model.Finding{}, false
	}
	if math.Abs(recentPrice.Value-prevPrice.Value) <= g.PriceMinDelta ||
		math.Abs(recentOsc.Value-prevOsc.Value) <= g.OscMinDelta {
		return model.Finding{}, false
	}

	return model.Finding{
		Kind:              kind,
		RecentPriceOffset: recentPrice.Offset,
		PrevPriceOffset:   prevPrice.Offset,
		RecentOscOffset:   recentOsc.Offset,
		PrevOscOffset:     prevOsc.Offset,
		RecentPrice:       recentPrice.Value,
		PrevPrice:         prevPrice.Value,
		RecentOsc:         recentOsc.Value,
		PrevOsc:           prevOsc.Value,
	}, true
}
