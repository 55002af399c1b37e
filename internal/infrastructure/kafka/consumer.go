package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/repository"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer projects transaction events into the status cache. Terminal
// events warm the cache from the store; anything else evicts the entry.
type Consumer struct {
	reader          MessageReader
	transactionRepo repository.TransactionRepository
	statusCache     *redis.ViewCache[models.TransactionDetail]

	retryAttempts uint
	retryBackoff  time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, transactionRepo repository.TransactionRepository, statusCache *redis.ViewCache[models.TransactionDetail]) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return NewConsumerWithReader(reader, transactionRepo, statusCache)
}

func NewConsumerWithReader(reader MessageReader, transactionRepo repository.TransactionRepository, statusCache *redis.ViewCache[models.TransactionDetail]) *Consumer {
	return &Consumer{
		reader:          reader,
		transactionRepo: transactionRepo,
		statusCache:     statusCache,
		retryAttempts:   5,
		retryBackoff:    200 * time.Millisecond,
	}
}

// WithRetry sets how many times a failing event is handled before it is
// dropped, and the first pause between attempts.
func (c *Consumer) WithRetry(attempts uint, initial time.Duration) *Consumer {
	c.retryAttempts = attempts
	c.retryBackoff = initial
	return c
}

// Consume blocks until ctx is cancelled or the reader fails permanently.
func (c *Consumer) Consume(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			slog.Error("failed to read Kafka message", "error", err)
			return fmt.Errorf("failed to read Kafka message: %w", err)
		}

		if err := c.handleWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Кэш статусов только витрина: пропущенное событие читается из базы при промахе
			slog.Error("dropping transaction event after retries", "key", string(msg.Key), "offset", msg.Offset, "attempts", c.retryAttempts, "error", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("failed to commit Kafka offset", "offset", msg.Offset, "error", err)
		}
	}
}

// handleWithRetry runs Handle on msg until it succeeds, the attempts run out
// or ctx is done. The next message is not fetched in between.
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBackoff
	policy.MaxInterval = 20 * c.retryBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.Handle(ctx, msg)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.retryAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("retrying transaction event", "key", string(msg.Key), "offset", msg.Offset, "in", next, "error", err)
		}),
	)
	return err
}

// Handle applies one event. Malformed events are dropped, store failures are
// returned so the caller can retry.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	var event models.TransactionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		slog.Error("failed to unmarshal transaction event", "key", string(msg.Key), "error", err)
		return nil
	}
	if event.TransactionID == uuid.Nil || !event.Status.Valid() {
		slog.Error("invalid transaction event", "key", string(msg.Key), "status", event.Status)
		return nil
	}

	id := event.TransactionID.String()
	if !event.Status.Terminal() {
		c.statusCache.Delete(ctx, id)
		return nil
	}

	detail, err := c.transactionRepo.GetDetail(ctx, event.TransactionID)
	if errors.Is(err, pkgerrors.ErrTransactionNotFound) {
		slog.Warn("event for unknown transaction", "transaction_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if !detail.Status.Terminal() {
		return nil
	}
	c.statusCache.Set(ctx, id, detail)
	slog.Debug("status cache updated", "transaction_id", id, "status", detail.Status)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
