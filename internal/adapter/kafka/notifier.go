// Package kafka announces published datasets on a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// Notifier produces dataset events to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the dataset topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify publishes one dataset event keyed by run ID.
func (n *Notifier) Notify(ctx context.Context, event domain.DatasetEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write dataset event: %w", err)
	}
	n.logger.Info("dataset event published", "topic", n.writer.Topic, "run_id", event.RunID)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a DatasetEvent into a Kafka message.
func serializeToMessage(event domain.DatasetEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize dataset event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "generated_at", Value: []byte(event.Manifest.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
