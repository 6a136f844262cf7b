package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anderson-ufrj/meeting-intelligence/internal/alert"
	"github.com/anderson-ufrj/meeting-intelligence/internal/api"
	"github.com/anderson-ufrj/meeting-intelligence/internal/config"
	"github.com/anderson-ufrj/meeting-intelligence/internal/dedup"
	"github.com/anderson-ufrj/meeting-intelligence/internal/embedding"
	"github.com/anderson-ufrj/meeting-intelligence/internal/extract"
	"github.com/anderson-ufrj/meeting-intelligence/internal/ingester"
	"github.com/anderson-ufrj/meeting-intelligence/internal/pipeline"
	"github.com/anderson-ufrj/meeting-intelligence/internal/redact"
	"github.com/anderson-ufrj/meeting-intelligence/internal/search"
	"github.com/anderson-ufrj/meeting-intelligence/internal/sentiment"
	"github.com/anderson-ufrj/meeting-intelligence/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	slog.Info("meetingd starting",
		"port", cfg.Port,
		"nats_url", cfg.NatsURL,
		"embedding_model", cfg.EmbeddingModel,
		"embedding_dim", cfg.EmbeddingDim,
		"extract_model", cfg.ExtractModel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Record store. Postgres when configured, in-memory otherwise
	// (useful for local runs without infrastructure).
	var recordStore store.RecordStore
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		recordStore = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		recordStore = store.NewMemory(cfg.EmbeddingDim)
	}
	defer recordStore.Close()

	// Step 2: Pipeline collaborators.
	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:   cfg.EmbeddingBaseURL,
		APIKey:    cfg.EmbeddingAPIKey,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDim,
	})
	if err != nil {
		slog.Error("failed to build embedding client", "error", err)
		os.Exit(1)
	}

	extractor, err := extract.NewClient(extract.Config{
		APIURL:     cfg.ExtractAPIURL,
		APIKey:     cfg.ExtractAPIKey,
		Model:      cfg.ExtractModel,
		MaxRetries: cfg.ExtractMaxRetries,
	})
	if err != nil {
		slog.Error("failed to build extraction client", "error", err)
		os.Exit(1)
	}

	pipe := pipeline.New(redact.NewRegex(), extractor, sentiment.NewLexicon(), embedder, recordStore)
	engine := search.NewEngine(recordStore, embedder)
	sweeper := dedup.NewSweeper(recordStore)

	// Step 3: Optional NATS ingestion.
	var ing *ingester.Ingester
	if cfg.NatsURL != "" {
		ing, err = ingester.New(cfg.NatsURL, pipe)
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer ing.Close()

		// Conditionally wire the Slack alerter into pipeline failures.
		if cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "" {
			alerter := alert.NewAlerter(cfg.SlackBotToken, cfg.SlackAlertChannel)
			ing.SetFailureHandler(func(ctx context.Context, meetingID, tier, reason string) {
				if err := alerter.PostPipelineAlert(ctx, meetingID, tier, reason); err != nil {
					slog.Warn("failed to post pipeline alert to Slack", "error", err)
				}
			})
			slog.Info("Slack failure alerter enabled", "channel", cfg.SlackAlertChannel)
		}

		if err := ing.Start(); err != nil {
			slog.Error("failed to start ingester", "error", err)
			os.Exit(1)
		}
		slog.Info("NATS ingester started")

		announcement, _ := json.Marshal(map[string]any{
			"event_type": "service.registered",
			"source":     "meetingd",
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"metadata":   map[string]any{"port": cfg.Port},
		})
		if err := ing.Publish("meetings.service.registered", announcement); err != nil {
			slog.Warn("failed to publish registration event", "error", err)
		}
	}

	// Step 4: HTTP API.
	srv := api.NewServer(recordStore, pipe, engine, sweeper, cfg.Port)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("meetingd ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutting down", "signal", sig)
	cancel()
	slog.Info("meetingd stopped")
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
