// Package expiry schedules the payment deadline of a pending order as a
// delayed task. The worker picks the task up when the deadline passes and
// runs the close-and-reclaim flow.
package expiry

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"railticket/internal/domain"
)

const TypeOrderExpiry = "order:expiry"

// OrderExpiryPayload carries everything the worker needs to release the
// reservation without re-reading the allocation: the purchased leg and the
// exact seats taken.
type OrderExpiryPayload struct {
	OrderSerial string                  `json:"order_serial"`
	UserID      string                  `json:"user_id"`
	Segment     domain.Segment          `json:"segment"`
	Assignments []domain.SeatAssignment `json:"assignments"`
}

func NewOrderExpiryTask(payload OrderExpiryPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOrderExpiry, b), nil
}
