package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/illegalcall/palmistry/internal/config"
	"github.com/illegalcall/palmistry/internal/handlers"
	"github.com/illegalcall/palmistry/internal/worker"
	"github.com/illegalcall/palmistry/pkg/kafka"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	if cfg.Kafka.Broker == "" {
		slog.Error("KAFKA_BROKER is required for the worker")
		os.Exit(1)
	}

	mailer, err := handlers.NewEmailSender(cfg.Email)
	if err != nil {
		slog.Error("Failed to configure email", "error", err)
		os.Exit(1)
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.NewWorker(cfg, consumer, mailer).Start(ctx); err != nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
}
