package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"smart-helmet-backend/internal/ingestion"
)

// Publisher writes trip events to a Kafka topic, keyed by device so a
// device's events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns nil when brokers or topic are missing. Call Close when shutting down.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	// The persistence worker publishes inline, so every event is its own
	// batch and goes out as soon as it is written.
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}}
}

const writeTimeout = 5 * time.Second

func (p *Publisher) Publish(ctx context.Context, event ingestion.TripEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	msg, err := toMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func toMessage(event ingestion.TripEvent) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.DeviceID),
		Value: payload,
		Time:  event.OccurredAt,
	}, nil
}

// Close flushes pending messages. Safe on a nil publisher.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
