package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

const (
	TypeAnalysisCompleted = "analysis.completed"
	TypePaymentCompleted  = "payment.completed"
)

// Event is the envelope written to the events topic.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	UserID     string          `json:"userId"`
	Email      string          `json:"email,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type AnalysisCompleted struct {
	AnalysisID       string `json:"analysisId"`
	Language         string `json:"language"`
	RemainingCredits int    `json:"remainingCredits"`
}

type PaymentCompleted struct {
	SessionID   string `json:"sessionId"`
	Credits     int    `json:"credits"`
	Balance     int    `json:"balance"`
	AmountCents int64  `json:"amountCents,omitempty"`
}

// New builds an event with a fresh id.
func New(eventType, userID, email string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// KafkaPublisher writes events keyed by user id so one user's events stay ordered.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(_ context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.UserID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(e.Type)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	slog.Debug("Event published", "type", e.Type, "id", e.ID, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops events. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Decode reads an event written by KafkaPublisher.
func Decode(value []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event %q has no type", e.ID)
	}
	return e, nil
}
