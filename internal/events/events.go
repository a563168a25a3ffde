// Package events publishes payment dialog state transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/segmentio/kafka-go"

	"github.com/cvforge/payinit/internal/domain"
)

const (
	EventTypeTransition = "payment.dialog.transition"
	EventVersion        = "1"
)

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = Nop{}
)

// Publisher publishes dialog transitions.
type Publisher interface {
	PublishTransition(ctx context.Context, dialogID string, snap domain.Snapshot) error
	Close() error
}

// Envelope is the event schema published for every transition.
type Envelope struct {
	EventType    string    `json:"eventType"`
	EventVersion string    `json:"eventVersion"`
	OccurredAt   time.Time `json:"occurredAt"`
	AggregateID  string    `json:"aggregateId"`
	Data         any       `json:"data"`
}

// Transition is the payload of a transition event.
type Transition struct {
	State    domain.State  `json:"state"`
	Reason   domain.Reason `json:"reason,omitempty"`
	Message  string        `json:"message,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Attempts int           `json:"attempts"`
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes transitions to a single topic, keyed by dialog id so a dialog's events keep their order.
type KafkaPublisher struct {
	logger hclog.Logger
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher writing asynchronously to topic.
// Delivery failures are logged, they never block or fail a dialog.
func NewKafkaPublisher(logger hclog.Logger, brokers []string, topic string) (*KafkaPublisher, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}

	logger = logger.Named("events")

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Failed to deliver transition events", "count", len(messages), "error", err)
			}
		},
	}

	return newKafkaPublisher(logger, w, topic), nil
}

func newKafkaPublisher(logger hclog.Logger, w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		logger: logger,
		writer: w,
		topic:  topic,
	}
}

// PublishTransition enqueues snap as a transition event of dialogID.
func (p *KafkaPublisher) PublishTransition(ctx context.Context, dialogID string, snap domain.Snapshot) error {
	msg, err := NewMessage(dialogID, snap)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing transition to '%s': %w", p.topic, err)
	}

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewMessage encodes snap as a Kafka message keyed by dialogID.
func NewMessage(dialogID string, snap domain.Snapshot) (kafka.Message, error) {
	occurred := snap.UpdatedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	evt := Envelope{
		EventType:    EventTypeTransition,
		EventVersion: EventVersion,
		OccurredAt:   occurred.UTC(),
		AggregateID:  dialogID,
		Data: Transition{
			State:    snap.State,
			Reason:   snap.Reason,
			Message:  snap.Message,
			Detail:   snap.Detail,
			Attempts: snap.Attempts,
		},
	}

	val, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding transition event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(dialogID),
		Value: val,
		Time:  evt.OccurredAt,
	}, nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishTransition(context.Context, string, domain.Snapshot) error { return nil }

func (Nop) Close() error { return nil }
