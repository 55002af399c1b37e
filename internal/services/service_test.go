package service_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/shopspring/decimal"
)

type sentMessage struct {
	topic string
	key   string
	event models.TransactionEvent
}

// recordingProducer captures published events.
type recordingProducer struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (p *recordingProducer) Send(_ context.Context, topic string, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	var event models.TransactionEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: key, event: event})
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) events() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.sent...)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
