package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"divscan-go/internal/config"
	"divscan-go/internal/loader"
	"divscan-go/internal/metrics"
	"divscan-go/internal/monitor"
	"divscan-go/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Global panic recovery
	defer service.RecoverAndLog("main")

	if err := config.Load(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	cfg := config.AppConfig

	log.Println("🔧 Initializing services...")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	metricsServer := metrics.NewServer(":"+cfg.Port, reg)
	metricsServer.Start()

	binanceService := service.NewBinanceService(cfg.BinanceBaseURL)

	databaseService, err := service.NewDatabaseService(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Database service: %v", err)
	}

	symbolManager := service.NewSymbolManager(databaseService.GetDB(), cfg.Symbols)

	sinks := service.MultiSink{service.LogSink{}, databaseService}
	if cfg.TelegramBotToken != "" {
		telegramService, err := service.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.KlineInterval, databaseService, symbolManager)
		if err != nil {
			log.Fatalf("❌ Failed to initialize Telegram service: %v", err)
		}
		sinks = append(sinks, telegramService)
	} else {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set - notifications disabled")
	}

	opts, err := monitor.OptionsFromConfig(cfg, sinks, m)
	if err != nil {
		log.Fatalf("❌ Invalid divergence settings: %v", err)
	}
	registry := monitor.NewRegistry(opts)

	log.Println("✅ All services initialized successfully")

	loaderService := loader.NewLoader(binanceService, symbolManager, registry, m, loader.Options{
		Interval:    cfg.KlineInterval,
		HistoryBars: cfg.HistoryBars,
		Schedule:    cfg.PollSchedule,
		Workers:     cfg.Workers,
	})
	if err := loaderService.Start(); err != nil {
		log.Fatalf("❌ Failed to start loader: %v", err)
	}

	log.Println("🚀 Scanner is now running...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Received shutdown signal...")

	// Graceful shutdown with timeout
	shutdownTimer := time.AfterFunc(30*time.Second, func() {
		log.Println("⚠️  Shutdown timeout - forcing exit")
		os.Exit(1)
	})

	loaderService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Metrics server shutdown: %v", err)
	}
	if err := databaseService.Close(); err != nil {
		log.Printf("⚠️  %v", err)
	}

	shutdownTimer.Stop()
	log.Println("👋 Bye")
}
