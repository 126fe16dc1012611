package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"divscan-go/internal/config"
	"divscan-go/internal/indicator"
	"divscan-go/internal/model"
	"divscan-go/internal/monitor"
	"divscan-go/internal/service"
)

// replay fetches recent bars for one symbol and runs them through a fresh
// monitor, printing every divergence the live scanner would have found.
func main() {
	symbol := flag.String("symbol", "ETHUSDT", "symbol to replay")
	bars := flag.Int("bars", 0, "bars to fetch (defaults to HISTORY_BARS)")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	cfg := config.AppConfig

	limit := cfg.HistoryBars
	if *bars > 0 {
		limit = *bars
		cfg.HistoryBars = *bars
	}

	sym, err := service.NormalizeSymbol(*symbol)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	log.Println("🧪 Starting Divergence Replay...")

	binanceService := service.NewBinanceService(cfg.BinanceBaseURL)
	klines, err := binanceService.GetKlines(sym, cfg.KlineInterval, limit)
	if err != nil {
		log.Fatalf("❌ Error fetching klines: %v", err)
	}

	c := &collector{}
	sink := service.MultiSink{service.LogSink{}, c}

	opts, err := monitor.OptionsFromConfig(cfg, sink, nil)
	if err != nil {
		log.Fatalf("❌ Invalid divergence settings: %v", err)
	}

	committed, findings, err := monitor.NewInstrumentMonitor(sym, opts).Ingest(klines, time.Now())
	if err != nil {
		log.Fatalf("❌ Replay failed: %v", err)
	}
	log.Printf("🔍 Replayed %d closed %s bars of %s", committed, cfg.KlineInterval, sym)

	annotations := c.annotations
	jsonData, _ := json.MarshalIndent(annotations, "", "  ")
	fmt.Println(string(jsonData))

	fmt.Printf("\n✅ %d findings, %d distinct annotations\n", len(findings), len(annotations))
	for _, k := range model.Kinds {
		fmt.Printf("%-16s %d\n", k, countKind(annotations, k))
	}

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	d := cfg.Divergence
	maType, _ := indicator.ParseMAType(d.MAType)
	macd, sig, hist := indicator.GetLastMACD(closes, d.FastPeriod, d.SlowPeriod, d.SmoothingPeriod, maType)
	if len(closes) > max(d.FastPeriod, d.SlowPeriod)+d.SmoothingPeriod {
		fmt.Printf("\nMACD(%d,%d,%d %s): %.6f signal %.6f hist %.6f\n",
			d.FastPeriod, d.SlowPeriod, d.SmoothingPeriod, strings.ToUpper(string(maType)), macd, sig, hist)
	}
}

type collector struct {
	annotations []model.Annotation
}

func (c *collector) Draw(a model.Annotation) error {
	c.annotations = append(c.annotations, a)
	return nil
}

func countKind(annotations []model.Annotation, kind model.Kind) int {
	n := 0
	for _, a := range annotations {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
