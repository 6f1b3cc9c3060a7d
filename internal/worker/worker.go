package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/illegalcall/palmistry/internal/config"
	"github.com/illegalcall/palmistry/internal/events"
	"github.com/illegalcall/palmistry/internal/handlers"
	"github.com/illegalcall/palmistry/internal/models"
)

// Worker turns palmistry events into user notifications.
type Worker struct {
	cfg       *config.Config
	consumer  sarama.ConsumerGroup
	mailer    handlers.Mailer
	ready     chan struct{}
	readyOnce sync.Once
}

func NewWorker(cfg *config.Config, consumer sarama.ConsumerGroup, mailer handlers.Mailer) *Worker {
	slog.Info("Initializing new Worker")
	return &Worker{
		cfg:      cfg,
		consumer: consumer,
		mailer:   mailer,
		ready:    make(chan struct{}),
	}
}

// Start consumes the events topic until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting worker", "topics", topics, "group", w.cfg.Kafka.Group)

	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				slog.Info("Context cancelled, exiting consumer loop")
				return
			}
		}
	}()

	select {
	case <-w.ready:
		slog.Info("Worker setup complete; consumer ready")
	case <-ctx.Done():
		return nil
	}

	<-ctx.Done()
	slog.Info("Worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	w.readyOnce.Do(func() { close(w.ready) })
	return nil
}

func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	slog.Info("Consumer group session cleanup complete")
	return nil
}

// ConsumeClaim handles every message once. Failed notifications are logged
// and the offset still advances.
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.process(session.Context(), message.Value); err != nil {
			slog.Error("Failed to process event", "error", err, "offset", message.Offset, "partition", message.Partition)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) process(ctx context.Context, value []byte) error {
	event, err := events.Decode(value)
	if err != nil {
		return err
	}
	if event.Email == "" {
		slog.Debug("Event has no recipient, skipping", "type", event.Type, "id", event.ID)
		return nil
	}

	payload, ok, err := w.notification(event)
	if err != nil || !ok {
		return err
	}

	for attempt := 1; attempt <= w.attempts(); attempt++ {
		if err = w.mailer.Send(ctx, payload); err == nil {
			slog.Info("Notification sent", "type", event.Type, "id", event.ID, "attempt", attempt)
			return nil
		}
		slog.Warn("Notification failed", "type", event.Type, "id", event.ID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.Kafka.RetryBackoff):
		}
	}
	return fmt.Errorf("failed to notify %s for %s: %w", event.Type, event.ID, err)
}

func (w *Worker) attempts() int {
	if w.cfg.Kafka.RetryMax < 1 {
		return 1
	}
	return w.cfg.Kafka.RetryMax
}

// notification maps an event to the email it triggers. ok is false for event
// types that do not notify anyone.
func (w *Worker) notification(event events.Event) (models.SendEmailPayload, bool, error) {
	appURL := w.cfg.Email.AppURL
	switch event.Type {
	case events.TypePaymentCompleted:
		var data events.PaymentCompleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return models.SendEmailPayload{}, false, fmt.Errorf("failed to decode %s payload: %w", event.Type, err)
		}
		return models.SendEmailPayload{
			Recipient:    event.Email,
			Subject:      "Your palm reading credits",
			TemplateName: models.TemplateReceipt,
			Data: map[string]string{
				"credits": strconv.Itoa(data.Credits),
				"balance": strconv.Itoa(data.Balance),
				"app_url": appURL,
			},
		}, true, nil

	case events.TypeAnalysisCompleted:
		var data events.AnalysisCompleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return models.SendEmailPayload{}, false, fmt.Errorf("failed to decode %s payload: %w", event.Type, err)
		}
		return models.SendEmailPayload{
			Recipient:    event.Email,
			Subject:      "Your palm reading is ready",
			TemplateName: models.TemplateReadingReady,
			Data: map[string]string{
				"analysis_id":       data.AnalysisID,
				"remaining_credits": strconv.Itoa(data.RemainingCredits),
				"app_url":           appURL,
			},
		}, true, nil
	}

	slog.Debug("Ignoring event type", "type", event.Type)
	return models.SendEmailPayload{}, false, nil
}
