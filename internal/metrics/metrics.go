// Package metrics exposes Prometheus instrumentation for the divergence scanner.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	BarsTotal       *prometheus.CounterVec // labels: symbol
	ScansTotal      *prometheus.CounterVec // labels: symbol
	FindingsTotal   *prometheus.CounterVec // labels: symbol, kind
	RenderFailures  *prometheus.CounterVec // labels: symbol
	ScanDuration    prometheus.Histogram
	PollDuration    prometheus.Histogram
	PollErrorsTotal *prometheus.CounterVec // labels: stage
	WatchedSymbols  prometheus.Gauge
}

// NewMetrics registers all metrics with reg and returns them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "divscan_bars_total",
			Help: "Closed bars committed per symbol",
		}, []string{"symbol"}),
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "divscan_scans_total",
			Help: "Full rescans run per symbol",
		}, []string{"symbol"}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "divscan_findings_total",
			Help: "Divergence findings by kind",
		}, []string{"symbol", "kind"}),
		RenderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "divscan_render_failures_total",
			Help: "Annotations dropped because a sink failed",
		}, []string{"symbol"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "divscan_scan_duration_seconds",
			Help:    "Latency of one full rescan",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "divscan_poll_duration_seconds",
			Help:    "Latency of one polling cycle over the watchlist",
			Buckets: prometheus.DefBuckets,
		}),
		PollErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "divscan_poll_errors_total",
			Help: "Polling errors by stage (watchlist, klines, bars)",
		}, []string{"stage"}),
		WatchedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "divscan_watched_symbols",
			Help: "Symbols in the current watchlist",
		}),
	}

	reg.MustRegister(
		m.BarsTotal,
		m.ScansTotal,
		m.FindingsTotal,
		m.RenderFailures,
		m.ScanDuration,
		m.PollDuration,
		m.PollErrorsTotal,
		m.WatchedSymbols,
	)

	return m
}

// Server exposes /metrics and /healthz.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server backed by gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		log.Printf("📈 [Metrics] Listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ [Metrics] Server error: %v", err)
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
