package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventUserRegistered      EventType = "user.registered"
	EventEscrowCreated       EventType = "escrow.created"
	EventEscrowCompleted     EventType = "escrow.completed"
	EventEscrowDisputed      EventType = "escrow.disputed"
	EventEscrowCancelled     EventType = "escrow.cancelled"
	EventEscrowRiderAssigned EventType = "escrow.rider_assigned"
	EventWalletFunded        EventType = "wallet.funded"
	EventWalletWithdrawn     EventType = "wallet.withdrawn"
	EventWalletTransfer      EventType = "wallet.transfer"
)

// Event is the envelope written to the events topic. Key groups events of
// one aggregate (deal or wallet owner) on the same partition.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data"`
}

func NewEvent(t EventType, key string, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher sends domain events after their database transaction has
// committed. Failures are logged and never reach the caller.
type Publisher struct {
	producer KafkaProducer
	topic    string
}

// NewPublisher returns a publisher. A nil producer disables publishing.
func NewPublisher(producer KafkaProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if p == nil || p.producer == nil {
		return
	}
	value, err := json.Marshal(evt)
	if err != nil {
		slog.Error("failed to marshal event", "type", evt.Type, "error", err)
		return
	}
	if err := p.producer.Send(ctx, p.topic, evt.Key, value); err != nil {
		slog.Error("failed to publish event", "type", evt.Type, "key", evt.Key, "error", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
