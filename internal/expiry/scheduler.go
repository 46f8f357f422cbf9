package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Scheduler enqueues the delayed expiry task for a fresh order.
type Scheduler struct {
	client *asynq.Client
	ttl    time.Duration
}

// NewScheduler wraps an asynq client. ttl is how long an unpaid order
// holds its seats before the worker closes it.
func NewScheduler(client *asynq.Client, ttl time.Duration) *Scheduler {
	return &Scheduler{client: client, ttl: ttl}
}

// Schedule arms the payment deadline for an order. The task fires once,
// ttl after the reservation was committed.
func (s *Scheduler) Schedule(ctx context.Context, payload OrderExpiryPayload) error {
	task, err := NewOrderExpiryTask(payload)
	if err != nil {
		return fmt.Errorf("build expiry task for order %s: %w", payload.OrderSerial, err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.ProcessIn(s.ttl), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue expiry for order %s: %w", payload.OrderSerial, err)
	}
	return nil
}
