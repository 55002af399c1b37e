package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventSettled   EventType = "transaction.settled"
	EventRequested EventType = "transaction.requested"
	EventRejected  EventType = "transaction.rejected"
	EventFailed    EventType = "transaction.failed"
)

// TransactionEvent is published after a transaction row is committed.
type TransactionEvent struct {
	EventType            EventType       `json:"event_type"`
	TransactionID        uuid.UUID       `json:"transaction_id"`
	SourceAccountID      uuid.UUID       `json:"source_account_id"`
	DestinationAccountID uuid.UUID       `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Status               StatusType      `json:"status"`
	Kind                 KindType        `json:"kind"`
	OccurredAt           time.Time       `json:"occurred_at"`
}

// NewTransactionEvent derives the event type from the row's status.
func NewTransactionEvent(tx *Transaction) TransactionEvent {
	eventType := EventRequested
	switch tx.Status {
	case StatusSuccess:
		eventType = EventSettled
	case StatusRejected:
		eventType = EventRejected
	case StatusFailed:
		eventType = EventFailed
	}
	occurredAt := tx.UpdatedAt
	if occurredAt.IsZero() {
		occurredAt = tx.CreatedAt
	}
	return TransactionEvent{
		EventType:            eventType,
		TransactionID:        tx.ID,
		SourceAccountID:      tx.SourceAccountID,
		DestinationAccountID: tx.DestinationAccountID,
		Amount:               tx.Amount,
		Status:               tx.Status,
		Kind:                 tx.Kind,
		OccurredAt:           occurredAt.UTC(),
	}
}
