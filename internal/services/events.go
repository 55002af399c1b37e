package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/honeynil/UPIPaymentService/internal/infrastructure/kafka"
	"github.com/honeynil/UPIPaymentService/internal/models"
)

// EventPublisher sends committed transaction rows to Kafka. Publishing is
// best-effort: a failure is logged and never undoes the commit.
type EventPublisher struct {
	producer kafka.KafkaProducer
	topic    string
}

func NewEventPublisher(producer kafka.KafkaProducer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

func (p *EventPublisher) Publish(ctx context.Context, tx *models.Transaction) {
	if p == nil || p.producer == nil {
		return
	}
	event := models.NewTransactionEvent(tx)
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal Kafka event", "transaction_id", tx.ID, "error", err)
		return
	}
	if err := p.producer.Send(context.WithoutCancel(ctx), p.topic, tx.ID.String(), eventBytes); err != nil {
		slog.Error("failed to publish transaction event",
			"transaction_id", tx.ID,
			"event_type", event.EventType,
			"error", err)
		return
	}
	slog.Debug("transaction event published", "transaction_id", tx.ID, "event_type", event.EventType)
}
