package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/segmentio/kafka-go"
)

// Consumer reads the events topic and writes an audit trail to the log.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
	}
}

// Consume blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}
		if err := HandleMessage(msg.Value); err != nil {
			slog.Error("failed to handle event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// HandleMessage decodes one event and records it.
func HandleMessage(value []byte) error {
	var evt Event
	if err := json.Unmarshal(value, &evt); err != nil {
		observability.EventsConsumed.WithLabelValues("invalid").Inc()
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if evt.Type == "" {
		observability.EventsConsumed.WithLabelValues("invalid").Inc()
		return fmt.Errorf("event %s has no type", evt.ID)
	}

	observability.EventsConsumed.WithLabelValues(string(evt.Type)).Inc()
	slog.Info("audit event", "event_id", evt.ID, "type", evt.Type, "key", evt.Key, "occurred_at", evt.OccurredAt, "data", evt.Data)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
