// Package kafka carries the incident change stream over a Kafka topic.
// Events are keyed by incident id, so the per-id ordering the feed relies
// on (insert before delete) is preserved across partitions.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/resqrelief/incident-feed/internal/config"
	"github.com/resqrelief/incident-feed/internal/feed"
)

// Publisher produces change stream events to the events topic.
// It implements postgres.EventPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured events topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes and writes one event.
func (p *Publisher) Publish(ctx context.Context, event feed.Event) error {
	msg, err := serializeEvent(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeEvent marshals a feed event into a Kafka message keyed by
// incident id, with the kind mirrored into a header for topic tooling.
func serializeEvent(event feed.Event) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize change event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}, nil
}
