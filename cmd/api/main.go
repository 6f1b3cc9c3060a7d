package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/illegalcall/palmistry/internal/api"
	"github.com/illegalcall/palmistry/internal/cache"
	"github.com/illegalcall/palmistry/internal/config"
	"github.com/illegalcall/palmistry/internal/events"
	"github.com/illegalcall/palmistry/internal/llm"
	"github.com/illegalcall/palmistry/internal/metrics"
	"github.com/illegalcall/palmistry/internal/payments"
	"github.com/illegalcall/palmistry/internal/pkg/supabase"
	"github.com/illegalcall/palmistry/internal/storage"
	"github.com/illegalcall/palmistry/internal/store"
	"github.com/illegalcall/palmistry/pkg/database"
	"github.com/illegalcall/palmistry/pkg/kafka"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewClients(ctx, cfg.Database, cfg.Redis)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("✅ Connected to databases")

	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("Failed to prepare schema", "error", err)
		os.Exit(1)
	}

	var auth supabase.TokenVerifier
	if cfg.Auth.JWTSecret == "" {
		auth, err = supabase.NewVerifier(cfg.Auth)
		if err != nil {
			slog.Error("Failed to initialize auth", "error", err)
			os.Exit(1)
		}
	}

	objects, err := storage.New(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	deps := api.Deps{
		Store:    store.New(db.DB),
		Cache:    cache.New(db.Redis, cfg.Redis.VerdictTTL, cfg.Redis.EventTTL),
		Vision:   llm.NewHTTPClient(cfg.AI),
		Auth:     auth,
		Storage:  objects,
		Webhooks: payments.NewWebhookVerifier(cfg.Stripe.WebhookSecret),
		Events:   events.NopPublisher{},
		Metrics:  metrics.New(),
	}

	checkout, err := payments.NewStripeCheckout(cfg.Stripe)
	switch {
	case errors.Is(err, payments.ErrNotConfigured):
		slog.Warn("Stripe is not configured, checkout is disabled")
	case err != nil:
		slog.Error("Failed to initialize Stripe", "error", err)
		os.Exit(1)
	default:
		deps.Checkout = checkout
	}

	if cfg.Kafka.Broker != "" {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		publisher := events.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		defer publisher.Close()
		deps.Events = publisher
		slog.Info("✅ Connected to Kafka")
	}

	server, err := api.NewServer(cfg, deps)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}
}

func setupLogger(cfg *config.Config) {
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}
