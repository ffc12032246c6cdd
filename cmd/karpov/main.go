package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ply-labs/karpov/internal/api"
	"github.com/ply-labs/karpov/internal/bus"
	"github.com/ply-labs/karpov/internal/cod"
	"github.com/ply-labs/karpov/internal/config"
	"github.com/ply-labs/karpov/internal/report"
	"github.com/ply-labs/karpov/internal/sequence"
	"github.com/ply-labs/karpov/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("karpov starting", "port", cfg.Port, "variant", cfg.EngineVariant)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (optional — without it classifications are tagged but not persisted)
	var db *store.Store
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set — running without persistence")
	} else {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database connected")
	}

	// Engine
	thresholds, err := cod.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		slog.Error("failed to load thresholds", "error", err, "path", cfg.ThresholdsPath)
		os.Exit(1)
	}
	variant, err := cod.ParseVariant(cfg.EngineVariant)
	if err != nil {
		slog.Error("invalid engine variant", "error", err)
		os.Exit(1)
	}
	engine, err := cod.New(variant, thresholds)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	slog.Info("engine ready", "variant", variant)

	// NATS
	busClient, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Pipeline — the main classification loop
	var seqStore sequence.ClassificationStore
	if db != nil {
		seqStore = db
	}
	proc := sequence.New(engine, seqStore, busClient, report.NewPublisher(busClient), slog.Default())

	// Subscribe to move metrics events
	if err := busClient.Subscribe(bus.SubjectMoveMetrics, proc.HandleMoveMetrics); err != nil {
		slog.Error("failed to subscribe to move metrics", "error", err)
		os.Exit(1)
	}

	// Subscribe to game completion for report generation
	if err := busClient.Subscribe(bus.SubjectGameCompleted, proc.HandleGameCompleted); err != nil {
		slog.Error("failed to subscribe to game completion", "error", err)
		os.Exit(1)
	}

	// HTTP API
	if cfg.APIToken == "" {
		slog.Warn("KARPOV_API_TOKEN not set — classify endpoint will reject all requests")
	}
	var reader api.ClassificationReader
	if db != nil {
		reader = db
	}
	srv := api.NewServer(cfg.Port, cfg.APIToken, engine, reader, proc)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := busClient.PublishRegistration(cfg.Port, string(variant)); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("karpov ready", "port", cfg.Port, "variant", variant)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("karpov stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
