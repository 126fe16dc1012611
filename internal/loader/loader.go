package loader

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"divscan-go/internal/metrics"
	"divscan-go/internal/model"
	"divscan-go/internal/monitor"
	"divscan-go/internal/service"
	"divscan-go/internal/worker"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// KlineSource fetches recent bars, oldest first
type KlineSource interface {
	GetKlines(symbol, interval string, limit int) ([]model.Kline, error)
}

// SymbolSource returns the symbols to scan
type SymbolSource interface {
	GetWatchlist() ([]string, error)
}

type Options struct {
	Interval    string
	HistoryBars int
	Schedule    string
	Workers     int
}

// Summary describes one polling cycle
type Summary struct {
	RunID    string
	Symbols  int
	Bars     int
	Findings int
	Errors   int
}

type Loader struct {
	klines    KlineSource
	symbols   SymbolSource
	registry  *monitor.Registry
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
	cron      *cron.Cron
	isPolling atomic.Bool
}

type ingestResult struct {
	bars     int
	findings []model.Finding
}

// NewLoader creates a new loader instance
func NewLoader(klines KlineSource, symbols SymbolSource, registry *monitor.Registry, m *metrics.Metrics, opts Options) *Loader {
	return &Loader{
		klines:   klines,
		symbols:  symbols,
		registry: registry,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
}

// Start runs a first poll immediately and then polls on the configured schedule
func (l *Loader) Start() error {
	log.Println("🚀 Starting Divergence Loader...")

	c := cron.New()
	if _, err := c.AddFunc(l.opts.Schedule, l.tick); err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", l.opts.Schedule, err)
	}
	l.cron = c

	service.SafeGo("initial poll", l.tick)
	c.Start()

	log.Printf("⏰ Scheduler started - polling %s", l.opts.Schedule)
	return nil
}

// Stop halts the scheduler and waits for a running poll to finish
func (l *Loader) Stop() {
	if l.cron == nil {
		return
	}
	<-l.cron.Stop().Done()
	log.Println("⏹️  Scheduler stopped")
}

func (l *Loader) tick() {
	defer service.RecoverAndLog("poll")

	if !l.isPolling.CompareAndSwap(false, true) {
		log.Println("⏭️  Skipping cycle - previous poll still running")
		return
	}
	defer l.isPolling.Store(false)

	l.Poll()
}

// Poll executes one complete polling cycle over the watchlist
func (l *Loader) Poll() Summary {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}

	log.Println("===========================================")
	log.Printf("🔄 Polling %s started at %s", summary.RunID, start.Format("15:04:05"))
	log.Println("===========================================")

	symbols, err := l.symbols.GetWatchlist()
	if err != nil {
		log.Printf("❌ Failed to load watchlist: %v", err)
		l.pollError("watchlist")
		return summary
	}
	summary.Symbols = len(symbols)
	l.registry.Retain(symbols)
	if l.metrics != nil {
		l.metrics.WatchedSymbols.Set(float64(len(symbols)))
	}

	log.Printf("⏳ [Loader] Distributing %d symbols to %d workers...", len(symbols), l.opts.Workers)
	now := l.now()
	pool := worker.NewPool(l.opts.Workers, func(symbol string) (ingestResult, error) {
		return l.ingest(symbol, now)
	})

	for _, r := range pool.Run(symbols) {
		if r.Err != nil {
			summary.Errors++
			continue
		}
		summary.Bars += r.Value.bars
		summary.Findings += len(r.Value.findings)
	}

	if l.metrics != nil {
		l.metrics.PollDuration.Observe(time.Since(start).Seconds())
	}

	log.Println("===========================================")
	log.Printf("✨ Polling complete - %d bars, %d divergences, %d errors (%s)",
		summary.Bars, summary.Findings, summary.Errors, time.Since(start).Round(time.Millisecond))
	log.Println("===========================================")
	return summary
}

func (l *Loader) ingest(symbol string, now time.Time) (ingestResult, error) {
	// one extra bar for the candle still forming
	klines, err := l.klines.GetKlines(symbol, l.opts.Interval, l.opts.HistoryBars+1)
	if err != nil {
		l.pollError("klines")
		return ingestResult{}, err
	}

	bars, findings, err := l.registry.Monitor(symbol).Ingest(klines, now)
	if err != nil {
		l.pollError("bars")
		return ingestResult{bars: bars, findings: findings}, err
	}
	return ingestResult{bars: bars, findings: findings}, nil
}

func (l *Loader) pollError(stage string) {
	if l.metrics != nil {
		l.metrics.PollErrorsTotal.WithLabelValues(stage).Inc()
	}
}
