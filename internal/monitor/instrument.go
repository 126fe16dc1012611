package monitor

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"divscan-go/internal/config"
	"divscan-go/internal/divergence"
	"divscan-go/internal/indicator"
	"divscan-go/internal/metrics"
	"divscan-go/internal/model"
	"divscan-go/internal/series"
)

// Options configures every instrument monitor created by a Registry
type Options struct {
	Interval    string
	HistoryBars int
	Engine      divergence.Config
	Oscillator  indicator.OscillatorConfig
	Sink        divergence.Sink
	Metrics     *metrics.Metrics // optional
}

// OptionsFromConfig builds monitor options from the loaded configuration
func OptionsFromConfig(cfg *config.Config, sink divergence.Sink, m *metrics.Metrics) (Options, error) {
	d := cfg.Divergence

	maType, err := indicator.ParseMAType(d.MAType)
	if err != nil {
		return Options{}, err
	}
	oscKind, err := indicator.ParseOscillatorKind(d.Oscillator)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Interval:    cfg.KlineInterval,
		HistoryBars: cfg.HistoryBars,
		Engine: divergence.Config{
			ConfirmWidth:    d.ConfirmWidth,
			Tolerance:       d.MinDivergenceStrength,
			MaxBarsBack:     d.MaxBarsBack,
			PriceMinDelta:   d.PriceMinDelta,
			OscMinDelta:     d.OscMinDelta,
			DetectRegular:   d.DetectRegular,
			DetectHidden:    d.DetectHidden,
			FastPeriod:      d.FastPeriod,
			SlowPeriod:      d.SlowPeriod,
			SmoothingPeriod: d.SmoothingPeriod,
			ScanInterval:    d.ScanInterval,
		},
		Oscillator: indicator.OscillatorConfig{
			Kind:            oscKind,
			MAType:          maType,
			FastPeriod:      d.FastPeriod,
			SlowPeriod:      d.SlowPeriod,
			SmoothingPeriod: d.SmoothingPeriod,
			RSIPeriod:       d.RSIPeriod,
		},
		Sink:    sink,
		Metrics: m,
	}, nil
}

// InstrumentMonitor owns the bar history and engine of one symbol. Ingest calls
// are serialized so scans for the same instrument never overlap.
type InstrumentMonitor struct {
	symbol  string
	opts    Options
	history *series.History
	engine  *divergence.Engine

	mu   sync.Mutex
	live bool
}

// NewInstrumentMonitor creates a monitor with an empty history
func NewInstrumentMonitor(symbol string, opts Options) *InstrumentMonitor {
	var emitterOpts []divergence.EmitterOption
	if opts.Metrics != nil {
		failures := opts.Metrics.RenderFailures.WithLabelValues(symbol)
		emitterOpts = append(emitterOpts, divergence.WithErrorHook(func(string, error) { failures.Inc() }))
	}

	var emitter *divergence.Emitter
	if opts.Sink != nil {
		emitter = divergence.NewEmitter(opts.Sink, symbol, opts.Interval, emitterOpts...)
	}

	return &InstrumentMonitor{
		symbol:  symbol,
		opts:    opts,
		history: series.NewHistory(opts.HistoryBars),
		engine:  divergence.NewEngine(opts.Engine, emitter),
	}
}

// Symbol returns the instrument this monitor watches
func (m *InstrumentMonitor) Symbol() string { return m.symbol }

// Ingest commits every kline that closed before now and is newer than the last
// committed bar, running the engine once per committed bar. The first batch is
// treated as historical backfill.
func (m *InstrumentMonitor) Ingest(klines []model.Kline, now time.Time) (int, []model.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	historical := !m.live
	nowMs := now.UnixMilli()

	committed := 0
	var findings []model.Finding
	for _, k := range klines {
		if k.CloseTime >= nowMs {
			continue // still forming
		}
		if m.history.Len() > 0 && k.OpenTime <= m.history.LastOpenTime() {
			continue
		}
		if err := m.history.Append(k); err != nil {
			return committed, findings, fmt.Errorf("commit %s bar: %w", m.symbol, err)
		}
		committed++
		findings = append(findings, m.onBarClose(historical)...)
	}

	if committed > 0 {
		if m.opts.Metrics != nil {
			m.opts.Metrics.BarsTotal.WithLabelValues(m.symbol).Add(float64(committed))
		}
		m.live = true
	}
	return committed, findings, nil
}

func (m *InstrumentMonitor) onBarClose(historical bool) []model.Finding {
	if !m.engine.Scheduler().Ready(m.history.Count()) {
		return nil
	}

	start := time.Now()
	osc := indicator.Oscillator(m.history.Closes(), m.opts.Oscillator)
	findings := m.engine.OnBarClose(m.history, osc, historical)

	if mt := m.opts.Metrics; mt != nil {
		mt.ScanDuration.Observe(time.Since(start).Seconds())
		mt.ScansTotal.WithLabelValues(m.symbol).Inc()
		for _, f := range findings {
			mt.FindingsTotal.WithLabelValues(m.symbol, string(f.Kind)).Inc()
		}
	}

	for _, f := range findings {
		log.Printf("🔎 [Monitor] %s - %s divergence (price %.4f -> %.4f, osc %.5f -> %.5f)",
			m.symbol, f.Kind, f.PrevPrice, f.RecentPrice, f.PrevOsc, f.RecentOsc)
	}
	return findings
}

// Registry holds one monitor per symbol
type Registry struct {
	opts Options

	mu       sync.Mutex
	monitors map[string]*InstrumentMonitor
}

// NewRegistry creates an empty registry
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		monitors: make(map[string]*InstrumentMonitor),
	}
}

// Monitor returns the monitor for symbol, creating it on first use
func (r *Registry) Monitor(symbol string) *InstrumentMonitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[symbol]
	if !ok {
		m = NewInstrumentMonitor(symbol, r.opts)
		r.monitors[symbol] = m
		log.Printf("📌 [Monitor] Tracking %s (%s)", symbol, r.opts.Interval)
	}
	return m
}

// Retain drops monitors for symbols no longer watched
func (r *Registry) Retain(symbols []string) {
	keep := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		keep[s] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.monitors {
		if !keep[s] {
			delete(r.monitors, s)
			log.Printf("🗑️ [Monitor] Stopped tracking %s", s)
		}
	}
}

// Symbols lists tracked symbols in sorted order
func (r *Registry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.monitors))
	for s := range r.monitors {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
