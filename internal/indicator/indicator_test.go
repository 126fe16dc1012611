package indicator

import (
	"math"
	"testing"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestMovingAverage_ConstantInput(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100
	}

	for _, kind := range []MAType{MATypeEMA, MATypeSMA, MATypeWMA, MATypeDEMA, MATypeTEMA} {
		ma := MovingAverage(values, 10, kind)
		if len(ma) != len(values) {
			t.Fatalf("%s: expected %d values, got %d", kind, len(values), len(ma))
		}
		if math.Abs(ma[len(ma)-1]-100) > 1e-9 {
			t.Errorf("%s: expected 100, got %.6f", kind, ma[len(ma)-1])
		}
	}
}

func TestMovingAverage_InsufficientData(t *testing.T) {
	if got := MovingAverage(ramp(5, 1, 1), 10, MATypeEMA); len(got) != 0 {
		t.Errorf("expected empty result, got %d values", len(got))
	}
	if got := MovingAverage(ramp(15, 1, 1), 10, MATypeTEMA); len(got) != 0 {
		t.Errorf("TEMA needs 28 values, got %d outputs", len(got))
	}
}

func TestCalculateSMA(t *testing.T) {
	sma := CalculateSMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{0, 0, 2, 3, 4}
	for i := range want {
		if math.Abs(sma[i]-want[i]) > 1e-9 {
			t.Errorf("sma[%d]: expected %.2f, got %.2f", i, want[i], sma[i])
		}
	}
}

func TestParseMAType(t *testing.T) {
	cases := map[string]MAType{"": MATypeEMA, "EMA": MATypeEMA, " sma ": MATypeSMA, "tema": MATypeTEMA}
	for in, want := range cases {
		got, err := ParseMAType(in)
		if err != nil || got != want {
			t.Errorf("ParseMAType(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMAType("hull"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestCalculateMACD_WarmupIsNaN(t *testing.T) {
	closes := ramp(60, 100, 0.5)
	macd, signal, hist := CalculateMACD(closes, 12, 26, 9, MATypeEMA)
	if len(macd) != len(closes) {
		t.Fatalf("expected aligned MACD line, got %d values", len(macd))
	}
	for i := 0; i < 25; i++ {
		if !math.IsNaN(macd[i]) {
			t.Fatalf("macd[%d] should be NaN during warm-up, got %v", i, macd[i])
		}
	}
	// Rising prices keep the fast average above the slow one
	if macd[len(macd)-1] <= 0 {
		t.Errorf("expected positive MACD on a rising series, got %.4f", macd[len(macd)-1])
	}
	if len(signal) != len(hist) || len(signal) != len(closes)-25 {
		t.Errorf("unexpected signal/histogram lengths: %d/%d", len(signal), len(hist))
	}
}

func TestGetLastMACD_Insufficient(t *testing.T) {
	m, s, h := GetLastMACD(ramp(10, 1, 1), 12, 26, 9, MATypeEMA)
	if m != 0 || s != 0 || h != 0 {
		t.Errorf("expected zeros, got %v %v %v", m, s, h)
	}
}

func TestCalculateRSI_Bounds(t *testing.T) {
	up := CalculateRSI(ramp(30, 1, 1), 14)
	if up[len(up)-1] != 100 {
		t.Errorf("expected RSI 100 on a strictly rising series, got %.2f", up[len(up)-1])
	}
	if !math.IsNaN(up[0]) || !math.IsNaN(up[13]) {
		t.Error("expected NaN before the first full period")
	}
	down := CalculateRSI(ramp(30, 100, -1), 14)
	if down[len(down)-1] != 0 {
		t.Errorf("expected RSI 0 on a strictly falling series, got %.2f", down[len(down)-1])
	}
}

func TestOscillator_Dispatch(t *testing.T) {
	closes := ramp(80, 50, 0.25)
	macd := Oscillator(closes, OscillatorConfig{Kind: OscillatorMACD, MAType: MATypeEMA, FastPeriod: 12, SlowPeriod: 26, SmoothingPeriod: 9})
	if macd.Len() != len(closes) {
		t.Fatalf("expected MACD series aligned with closes, got %d", macd.Len())
	}
	rsi := Oscillator(closes, OscillatorConfig{Kind: OscillatorRSI, RSIPeriod: 14})
	if rsi.At(0) != 100 {
		t.Errorf("expected RSI 100 at offset 0, got %.2f", rsi.At(0))
	}
	if _, err := ParseOscillatorKind("stoch"); err == nil {
		t.Error("expected error for unknown oscillator")
	}
}

func TestCalculateEMA_SeededWithSMA(t *testing.T) {
	ema := CalculateEMA([]float64{2, 4, 6, 8}, 3)
	// seed = (2+4+6)/3 = 4, then 4 + (8-4)*0.5 = 6
	if math.Abs(ema[2]-4) > 1e-9 || math.Abs(ema[3]-6) > 1e-9 {
		t.Errorf("unexpected EMA: %v", ema)
	}
	if got := CalculateEMA([]float64{1, 2}, 3); len(got) != 0 {
		t.Errorf("expected empty EMA, got %v", got)
	}
}

func TestCalculateRSI_Wilder(t *testing.T) {
	closes := []float64{10, 11, 10, 12, 12}
	rsi := CalculateRSI(closes, 2)
	if !math.IsNaN(rsi[0]) || !math.IsNaN(rsi[1]) {
		t.Fatalf("expected NaN warm-up, got %v", rsi)
	}
	// first averages: gain 0.5, loss 0.5 -> 50
	// then gain (0.5+2)/2 = 1.25, loss 0.25 -> 83.33
	// then gain 0.625, loss 0.125 -> 83.33
	want := []float64{50, 100.0 * 1.25 / 1.5, 100.0 * 0.625 / 0.75}
	for i, w := range want {
		if math.Abs(rsi[i+2]-w) > 1e-9 {
			t.Errorf("rsi[%d] = %.6f, want %.6f", i+2, rsi[i+2], w)
		}
	}
	if got := CalculateRSI(closes, 1); len(got) != 0 {
		t.Errorf("period 1 should be rejected, got %v", got)
	}
}

func TestOscillatorConfig_Warmup(t *testing.T) {
	cases := []struct {
		cfg  OscillatorConfig
		want int
	}{
		{OscillatorConfig{Kind: OscillatorMACD, MAType: MATypeEMA, FastPeriod: 12, SlowPeriod: 26}, 26},
		{OscillatorConfig{Kind: OscillatorMACD, MAType: MATypeTEMA, FastPeriod: 12, SlowPeriod: 26}, 76},
		{OscillatorConfig{Kind: OscillatorRSI, RSIPeriod: 14}, 15},
	}
	for _, c := range cases {
		if got := c.cfg.Warmup(); got != c.want {
			t.Errorf("%+v: warmup = %d, want %d", c.cfg, got, c.want)
		}
	}
}
