package monitor

import (
	"testing"
	"time"

	"divscan-go/internal/config"
	"divscan-go/internal/divergence"
	"divscan-go/internal/indicator"
	"divscan-go/internal/metrics"
	"divscan-go/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const barMs = 60_000

// With an SMA MACD of periods 1 and 2 the oscillator is half the close-to-close
// change, which makes peak placement predictable.
func testOptions(sink divergence.Sink, m *metrics.Metrics) Options {
	engine := divergence.DefaultConfig()
	engine.FastPeriod, engine.SlowPeriod, engine.SmoothingPeriod = 1, 2, 1
	return Options{
		Interval:    "1m",
		HistoryBars: 100,
		Engine:      engine,
		Oscillator: indicator.OscillatorConfig{
			Kind: indicator.OscillatorMACD, MAType: indicator.MATypeSMA,
			FastPeriod: 1, SlowPeriod: 2, SmoothingPeriod: 1,
		},
		Sink:    sink,
		Metrics: m,
	}
}

// divergentKlines returns 30 closed bars whose final scan sees price highs at
// offsets 5 (108) and 15 (106) against oscillator highs at 6 (2.0) and 15 (2.5).
func divergentKlines() []model.Kline {
	const n = 30
	closes := map[int]float64{15: 105, 6: 104, 5: 107}
	klines := make([]model.Kline, n)
	for i := range klines {
		c := 100.0
		if v, ok := closes[n-1-i]; ok {
			c = v
		}
		open := int64(i) * barMs
		klines[i] = model.Kline{OpenTime: open, CloseTime: open + barMs - 1, Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return klines
}

type captureSink struct {
	annotations []model.Annotation
}

func (s *captureSink) Draw(a model.Annotation) error {
	s.annotations = append(s.annotations, a)
	return nil
}

func TestInstrumentMonitor_BackfillIsHistorical(t *testing.T) {
	sink := &captureSink{}
	m := NewInstrumentMonitor("BTCUSDT", testOptions(sink, nil))

	klines := divergentKlines()
	forming := model.Kline{OpenTime: 30 * barMs, CloseTime: 31*barMs - 1, High: 500, Low: 1, Close: 250}
	now := time.UnixMilli(30*barMs + 10)

	committed, findings, err := m.Ingest(append(klines, forming), now)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if committed != 30 {
		t.Fatalf("expected 30 committed bars (forming bar skipped), got %d", committed)
	}
	if len(findings) != 1 || findings[0].Kind != model.KindRegularBearish {
		t.Fatalf("expected one regular bearish finding, got %+v", findings)
	}
	f := findings[0]
	if f.RecentPriceOffset != 5 || f.PrevPriceOffset != 15 || f.RecentOscOffset != 6 || f.PrevOscOffset != 15 {
		t.Errorf("unexpected anchors: %+v", f)
	}

	if len(sink.annotations) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(sink.annotations))
	}
	a := sink.annotations[0]
	if !a.Historical || a.Tag != "BearDiv_29_5" || a.Interval != "1m" {
		t.Errorf("unexpected annotation: %+v", a)
	}
	if a.Price.EndTime != 24*barMs {
		t.Errorf("expected price segment to end at bar 24, got %d", a.Price.EndTime)
	}
}

func TestInstrumentMonitor_LiveBars(t *testing.T) {
	sink := &captureSink{}
	m := NewInstrumentMonitor("ETHUSDT", testOptions(sink, nil))
	klines := divergentKlines()
	now := time.UnixMilli(31 * barMs)

	if _, findings, err := m.Ingest(klines[:27], now); err != nil || len(findings) != 0 {
		t.Fatalf("backfill: findings=%+v err=%v", findings, err)
	}

	committed, findings, err := m.Ingest(klines, now)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if committed != 3 {
		t.Errorf("expected only the 3 new bars committed, got %d", committed)
	}
	if len(findings) != 1 || len(sink.annotations) != 1 || sink.annotations[0].Historical {
		t.Fatalf("expected one live annotation, got findings=%+v annotations=%+v", findings, sink.annotations)
	}

	committed, _, _ = m.Ingest(klines, now)
	if committed != 0 {
		t.Errorf("re-ingesting known bars should commit nothing, got %d", committed)
	}
}

func TestInstrumentMonitor_Metrics(t *testing.T) {
	mt := metrics.NewMetrics(prometheus.NewRegistry())
	failing := divergence.SinkFunc(func(model.Annotation) error { return errTest })
	m := NewInstrumentMonitor("SOLUSDT", testOptions(failing, mt))

	if _, _, err := m.Ingest(divergentKlines(), time.UnixMilli(31*barMs)); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(mt.BarsTotal.WithLabelValues("SOLUSDT")); got != 30 {
		t.Errorf("expected 30 bars, got %v", got)
	}
	// Bars 9..30 in steps of 3
	if got := testutil.ToFloat64(mt.ScansTotal.WithLabelValues("SOLUSDT")); got != 8 {
		t.Errorf("expected 8 scans, got %v", got)
	}
	if got := testutil.ToFloat64(mt.FindingsTotal.WithLabelValues("SOLUSDT", string(model.KindRegularBearish))); got != 1 {
		t.Errorf("expected 1 finding, got %v", got)
	}
	if got := testutil.ToFloat64(mt.RenderFailures.WithLabelValues("SOLUSDT")); got != 1 {
		t.Errorf("expected 1 render failure, got %v", got)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("sink offline")

func TestRegistry(t *testing.T) {
	r := NewRegistry(testOptions(nil, nil))
	a := r.Monitor("BTCUSDT")
	if r.Monitor("BTCUSDT") != a {
		t.Error("expected the same monitor for the same symbol")
	}
	r.Monitor("ETHUSDT")
	r.Retain([]string{"ETHUSDT"})
	if got := r.Symbols(); len(got) != 1 || got[0] != "ETHUSDT" {
		t.Errorf("unexpected symbols after retain: %v", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		KlineInterval: "4h",
		HistoryBars:   200,
		Divergence: config.Divergence{
			Oscillator: "rsi", MAType: "wma", FastPeriod: 12, SlowPeriod: 26, SmoothingPeriod: 9, RSIPeriod: 14,
			ConfirmWidth: 4, MinDivergenceStrength: 6, MaxBarsBack: 50, PriceMinDelta: 0.5, OscMinDelta: 0.01,
			ScanInterval: 3, DetectRegular: true,
		},
	}
	opts, err := OptionsFromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if opts.Engine.Tolerance != 6 || opts.Engine.DetectHidden || opts.Oscillator.Kind != indicator.OscillatorRSI || opts.Oscillator.MAType != indicator.MATypeWMA {
		t.Errorf("unexpected options: %+v", opts)
	}

	cfg.Divergence.MAType = "hull"
	if _, err := OptionsFromConfig(cfg, nil, nil); err == nil {
		t.Error("expected error for unknown MA type")
	}
}
