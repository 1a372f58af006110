package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/webcalendar/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// Event types double as Kafka topic names.
const (
	AppointmentCreated = "calendar.appointment.created.v1"
	AppointmentDeleted = "calendar.appointment.deleted.v1"
)

// Envelope is the JSON value of every message this service publishes.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type AppointmentCreatedData struct {
	AppointmentID string    `json:"appointment_id"`
	OwnerEmail    string    `json:"owner_email"`
	Subject       string    `json:"subject"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Attendees     []string  `json:"attendees,omitempty"`
}

type AppointmentDeletedData struct {
	AppointmentID string `json:"appointment_id"`
	OwnerEmail    string `json:"owner_email"`
}

type Publisher interface {
	// Publish sends one event keyed by key. data is encoded as JSON.
	Publish(ctx context.Context, eventType, key string, data any) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, logger *slog.Logger) *KafkaPublisher {
	return newKafkaPublisher(kafkax.NewWriter(brokers), logger)
}

func newKafkaPublisher(w messageWriter, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger, now: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: p.now().UTC(),
		Data:       raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	meta := kafkax.EventMeta{EventID: env.EventID, EventType: eventType}
	msg := kafka.Message{
		Topic:   eventType,
		Key:     []byte(key),
		Value:   value,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.logger.Debug("event published", "event_type", eventType, "event_id", env.EventID, "key", key)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Discard is used when no brokers are configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, string, any) error { return nil }
func (Discard) Close() error                                       { return nil }
