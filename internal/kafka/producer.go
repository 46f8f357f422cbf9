// Package kafka publishes and consumes order lifecycle events. Events are
// informational fan-out for downstream consumers (notifications, analytics);
// the booking flow itself never depends on a publish succeeding.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"railticket/internal/domain"
)

const (
	EventOrderCreated = "order_created"
	EventOrderPaid    = "order_paid"
	EventOrderClosed  = "order_closed"
)

// OrderEvent is the wire shape of every order lifecycle message. Key is
// the order serial, so one order's events land on one partition in order.
type OrderEvent struct {
	// EventID deduplicates redeliveries on the consumer side.
	EventID     string                  `json:"event_id"`
	Type        string                  `json:"type"`
	OrderSerial string                  `json:"order_serial"`
	UserID      string                  `json:"user_id"`
	TrainID     string                  `json:"train_id"`
	Departure   string                  `json:"departure"`
	Arrival     string                  `json:"arrival"`
	Status      string                  `json:"status"`
	Assignments []domain.SeatAssignment `json:"assignments,omitempty"`
	OccurredAt  time.Time               `json:"occurred_at"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
