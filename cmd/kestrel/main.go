// Kestrel - Access fraud detection for physical entry systems.
// Copyright (c) 2026 opensource.access
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-access/kestrel/internal/alert"
	"github.com/opensource-access/kestrel/internal/api"
	"github.com/opensource-access/kestrel/internal/bus"
	"github.com/opensource-access/kestrel/internal/cache"
	"github.com/opensource-access/kestrel/internal/config"
	"github.com/opensource-access/kestrel/internal/domain"
	"github.com/opensource-access/kestrel/internal/monitor"
	"github.com/opensource-access/kestrel/internal/pipeline"
	"github.com/opensource-access/kestrel/internal/repository"
	"github.com/opensource-access/kestrel/internal/rules"
	"github.com/opensource-access/kestrel/internal/source"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration. Invalid configuration is fatal here, before any
	// component starts.
	cfg, err := config.Load(os.Getenv("KESTREL_CONFIG"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"historical_driver", cfg.Source.HistoricalDriver,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Event Source: live HTTP feed plus the bulk history origin.
	liveSource, err := source.NewHTTPSource(cfg.Source)
	if err != nil {
		slog.Error("failed to initialize live source", "error", err)
		os.Exit(1)
	}

	var historical domain.HistoricalSource
	switch cfg.Source.HistoricalDriver {
	case "file":
		historical = source.NewFileSource(cfg.Source.SnapshotPath)
	default:
		historical = source.NewRepositorySource(repo)
	}
	eventSource := source.NewAdapter(historical, liveSource)
	slog.Info("event source initialized",
		"live_url", cfg.Source.LiveURL,
		"historical_driver", cfg.Source.HistoricalDriver,
	)

	// Initialize Rule Engine
	engine, err := rules.NewEngine(cfg.Scoring)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load custom rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized",
		"fraud_threshold", cfg.Scoring.FraudThreshold,
		"suspicious_threshold", cfg.Scoring.SuspiciousThreshold,
		"custom_rules", engine.Custom().Count(),
	)

	// Initialize the batch pipeline
	pipe := pipeline.New(eventSource, engine, repo, busImpl)

	// Initialize alert delivery: monitor publishes to the bus, the
	// dispatcher fans out to the terminal sinks.
	var sinks []domain.AlertSink
	if cfg.Alert.TelegramToken != "" {
		telegram, err := alert.NewTelegramSink(cfg.Alert.TelegramToken, cfg.Alert.TelegramChatID, "")
		if err != nil {
			slog.Error("failed to initialize telegram sink", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, telegram)
		slog.Info("telegram sink initialized")
	} else {
		slog.Info("telegram sink disabled, alerts go to the bus only")
	}

	dispatcher := alert.NewDispatcher(busImpl, sinks...)
	if err := dispatcher.Start(); err != nil {
		slog.Error("failed to start alert dispatcher", "error", err)
		os.Exit(1)
	}

	// Start the live monitor loop
	mon := monitor.New(liveSource, alert.NewBusSink(busImpl), cfg.Monitor)
	go mon.Run(ctx)

	// Initialize Server
	srv := api.NewServer(*cfg, repo, cacheImpl, busImpl, engine, pipe, eventSource, liveSource, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop alert delivery first so no alert is half-dispatched
	if err := dispatcher.Stop(); err != nil {
		slog.Error("failed to stop alert dispatcher", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadRulesFromDatabase loads custom rules from the database into the engine.
// All custom rules are configured via POST /rules - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading custom rules from database", "count", len(dbRules))
		return engine.Custom().LoadRules(dbRules)
	}

	slog.Info("no custom rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                  KESTREL")
	fmt.Println("       Access Fraud Detection Engine")
	fmt.Println("        Eyes on every entry and exit.")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analyze       - Run a batch fraud analysis")
	fmt.Println("    GET  /reports/{id}  - Get report by ID")
	fmt.Println("    GET  /status        - Current occupancy status")
	fmt.Println("    GET  /forecast      - Next-day demand forecast")
	fmt.Println("    GET  /rules         - List custom rules")
	fmt.Println("    POST /rules         - Create a custom rule")
	fmt.Println("    POST /rules/reload  - Hot-reload rules from database")
	fmt.Println("    GET  /health        - Health check")
	fmt.Println()
}
