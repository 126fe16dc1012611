package divergence

import (
	"sync"

	"divscan-go/internal/model"
	"divscan-go/internal/series"
)

// Config holds the engine parameters
type Config struct {
	ConfirmWidth  int
	Tolerance     int // MinDivergenceStrength, in bars
	MaxBarsBack   int
	PriceMinDelta float64
	OscMinDelta   float64
	DetectRegular bool
	DetectHidden  bool

	FastPeriod      int
	SlowPeriod      int
	SmoothingPeriod int
	ScanInterval    int
}

// DefaultConfig mirrors the stock MACD divergence indicator settings
func DefaultConfig() Config {
	return Config{
		ConfirmWidth:    3,
		Tolerance:       8,
		MaxBarsBack:     50,
		PriceMinDelta:   1.0,
		OscMinDelta:     0.001,
		DetectRegular:   true,
		DetectHidden:    true,
		FastPeriod:      12,
		SlowPeriod:      26,
		SmoothingPeriod: 9,
		ScanInterval:    3,
	}
}

// EffectiveWidth is the confirmation width after the floor is applied
func (c Config) EffectiveWidth() int {
	return max(c.ConfirmWidth, MinConfirmWidth)
}

func (c Config) gate() Gate {
	return Gate{Tolerance: c.Tolerance, PriceMinDelta: c.PriceMinDelta, OscMinDelta: c.OscMinDelta}
}

// Engine runs scans for a single instrument. Scans never overlap.
type Engine struct {
	cfg       Config
	scheduler Scheduler
	emitter   *Emitter

	mu sync.Mutex
}

// NewEngine creates an engine; emitter may be nil when findings are only collected
func NewEngine(cfg Config, emitter *Emitter) *Engine {
	return &Engine{
		cfg:       cfg,
		scheduler: NewScheduler(cfg),
		emitter:   emitter,
	}
}

// Scheduler exposes the gating rule in use
func (e *Engine) Scheduler() Scheduler { return e.scheduler }

// OnBarClose is called once per committed bar. When the scheduler is ready it
// runs one full rescan and emits every finding.
func (e *Engine) OnBarClose(bars series.Bars, osc series.Series, historical bool) []model.Finding {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.scheduler.Ready(bars.Count()) {
		return nil
	}

	findings := e.scan(bars, osc)
	if e.emitter != nil {
		for _, f := range findings {
			e.emitter.Emit(f, bars, osc, historical)
		}
	}
	return findings
}

// Scan runs one full rescan without scheduling or emission
func (e *Engine) Scan(bars series.Bars, osc series.Series) []model.Finding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scan(bars, osc)
}

func (e *Engine) scan(bars series.Bars, osc series.Series) []model.Finding {
	horizon := min(e.cfg.MaxBarsBack, bars.Count())
	w := e.cfg.ConfirmWidth

	priceHighs := FindPeaks(series.HighSeries(bars), model.SourcePrice, model.PeakHigh, w, horizon)
	priceLows := FindPeaks(series.LowSeries(bars), model.SourcePrice, model.PeakLow, w, horizon)
	oscHighs := FindPeaks(osc, model.SourceOscillator, model.PeakHigh, w, horizon)
	oscLows := FindPeaks(osc, model.SourceOscillator, model.PeakLow, w, horizon)

	var findings []model.Finding
	for _, kind := range model.Kinds {
		if kind.IsHidden() && !e.cfg.DetectHidden || !kind.IsHidden() && !e.cfg.DetectRegular {
			continue
		}

		price, oscPeaks := priceLows, oscLows
		if UsesHighs(kind) {
			price, oscPeaks = priceHighs, oscHighs
		}

		if f, ok := CheckDivergence(price, oscPeaks, kind, e.cfg.gate()); ok {
			findings = append(findings, f)
		}
	}
	return findings
}
