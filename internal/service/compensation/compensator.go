// Package compensation closes unpaid orders whose payment deadline has
// passed and returns their seats to the pool. It runs in the worker,
// driven by delayed expiry tasks, and is safe under redelivery.
package compensation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"railticket/internal/domain"
	"railticket/internal/expiry"
)

// OrderStatusPort reads and transitions order state in storage.
type OrderStatusPort interface {
	// IsUnpaidAndCancellable reports whether the order is still pending
	// payment. Paid, closed and cancelled orders are not.
	IsUnpaidAndCancellable(ctx context.Context, userID, serial string) (bool, error)
	// MarkClosed moves a pending order to closed. A no-op when the order
	// already left the pending state.
	MarkClosed(ctx context.Context, userID, serial string) error
}

// Reclaimer releases a reservation on the ledger exactly once.
type Reclaimer interface {
	Reclaim(ctx context.Context, orderSerial string, segments []domain.Segment, assignments []domain.SeatAssignment) error
}

type RoutePort interface {
	ListTakeoutSegments(ctx context.Context, seg domain.Segment) ([]domain.Segment, error)
}

type Compensator struct {
	orders OrderStatusPort
	routes RoutePort
	ledger Reclaimer
	log    *slog.Logger
}

func NewCompensator(orders OrderStatusPort, routes RoutePort, ledger Reclaimer, log *slog.Logger) *Compensator {
	return &Compensator{orders: orders, routes: routes, ledger: ledger, log: log}
}

// HandleExpiry runs the close-and-reclaim flow for one expired order.
// Inventory is released before the order row transitions, so a crash in
// between leaves a pending order whose redelivered task finds the reclaim
// marker set and only finishes the status change. Any returned error makes
// the task retry.
func (c *Compensator) HandleExpiry(ctx context.Context, p expiry.OrderExpiryPayload) error {
	unpaid, err := c.orders.IsUnpaidAndCancellable(ctx, p.UserID, p.OrderSerial)
	if err != nil {
		return fmt.Errorf("order %s: check status: %w", p.OrderSerial, err)
	}
	if !unpaid {
		c.log.Info("expiry skipped, order no longer pending", "order", p.OrderSerial)
		return nil
	}

	segments, err := c.routes.ListTakeoutSegments(ctx, p.Segment)
	if err != nil {
		return fmt.Errorf("order %s: expand route: %w", p.OrderSerial, err)
	}
	if err := c.ledger.Reclaim(ctx, p.OrderSerial, segments, p.Assignments); err != nil {
		if !errors.Is(err, domain.ErrAlreadyReclaimed) {
			return fmt.Errorf("order %s: reclaim seats: %w", p.OrderSerial, err)
		}
		c.log.Info("seats already reclaimed, finishing close", "order", p.OrderSerial)
	}

	if err := c.orders.MarkClosed(ctx, p.UserID, p.OrderSerial); err != nil {
		return fmt.Errorf("order %s: close: %w", p.OrderSerial, err)
	}
	c.log.Info("expired order closed", "order", p.OrderSerial, "seats", len(p.Assignments))
	return nil
}

// ProcessTask adapts HandleExpiry to the task mux.
func (c *Compensator) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p expiry.OrderExpiryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode expiry payload: %w", err)
	}
	return c.HandleExpiry(ctx, p)
}
