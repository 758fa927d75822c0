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

// Source consumes change stream events from the events topic.
// It implements feed.EventSource.
type Source struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewSource creates a Kafka consumer for the configured events topic.
func NewSource(cfg *config.Config, logger *slog.Logger) *Source {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaEventsTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Source{reader: r, logger: logger}
}

// Next blocks for the next change stream event. Offsets are committed on
// read: the synchronizer deduplicates, so redelivery after a crash is safe
// and cheaper than coordinating commits with reconciliation.
func (s *Source) Next(ctx context.Context) (feed.Event, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return feed.Event{}, fmt.Errorf("read change event: %w", err)
	}
	return deserializeEvent(msg)
}

func (s *Source) Close() error {
	return s.reader.Close()
}

// deserializeEvent unmarshals a Kafka message into a feed event, filling
// the id from the message key when the payload omits it.
func deserializeEvent(msg kafkago.Message) (feed.Event, error) {
	var event feed.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return feed.Event{}, fmt.Errorf("deserialize change event at offset %d: %w", msg.Offset, err)
	}
	if event.ID == "" {
		event.ID = string(msg.Key)
	}
	if event.Kind == feed.EventInsert && event.Incident.ID == "" {
		event.Incident.ID = event.ID
	}
	return event, nil
}
