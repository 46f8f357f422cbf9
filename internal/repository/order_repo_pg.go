// Package repository persists orders and tickets in postgres. Tables are
// partitioned by customer: the shard router maps a user id to a partition
// suffix and every query addresses the partition's tables directly.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"railticket/internal/domain"
	"railticket/internal/sharding"
)

var ErrOrderNotPending = errors.New("order is not pending")

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order, tickets []domain.Ticket) error
	GetBySerial(ctx context.Context, userID, serial string) (*domain.Order, []domain.Ticket, error)
	IsUnpaidAndCancellable(ctx context.Context, userID, serial string) (bool, error)
	MarkPaid(ctx context.Context, userID, serial string) error
	MarkClosed(ctx context.Context, userID, serial string) error
}

type PGOrderRepository struct {
	db     *pgxpool.Pool
	router *sharding.Router
}

func NewOrderRepository(db *pgxpool.Pool, router *sharding.Router) OrderRepository {
	return &PGOrderRepository{db: db, router: router}
}

// partitionFor re-derives the partition from the routing keys. The order
// row stores it too, but reads must locate the row before they can see it.
func (r *PGOrderRepository) partitionFor(userID, serial string) (string, error) {
	return r.router.Route(userID, serial)
}

func orderTable(partition string) string {
	return fmt.Sprintf("t_order_%s", partition)
}

func ticketTable(partition string) string {
	return fmt.Sprintf("t_ticket_%s", partition)
}

// CreateOrder writes the order row and its tickets in one transaction, so
// a half-created order never becomes visible.
func (r *PGOrderRepository) CreateOrder(ctx context.Context, order *domain.Order, tickets []domain.Ticket) error {
	partition, err := r.partitionFor(order.UserID, order.Serial)
	if err != nil {
		return err
	}
	order.Partition = partition

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	order.Status = domain.OrderStatusPending
	q := fmt.Sprintf(`INSERT INTO %s (serial, user_id, train_id, departure, arrival, seat_class, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`, orderTable(partition))
	if err := tx.QueryRow(ctx, q,
		order.Serial, order.UserID, order.TrainID, order.Departure, order.Arrival, order.SeatClass, order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}

	tq := fmt.Sprintf(`INSERT INTO %s (id, order_serial, passenger_id, seat_class, carriage, seat_number)
		VALUES ($1, $2, $3, $4, $5, $6)`, ticketTable(partition))
	for _, t := range tickets {
		if _, err := tx.Exec(ctx, tq,
			t.TicketID, order.Serial, t.PassengerID, t.SeatClass, t.Carriage, t.SeatNumber,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PGOrderRepository) GetBySerial(ctx context.Context, userID, serial string) (*domain.Order, []domain.Ticket, error) {
	partition, err := r.partitionFor(userID, serial)
	if err != nil {
		return nil, nil, err
	}

	q := fmt.Sprintf(`SELECT serial, user_id, train_id, departure, arrival, seat_class, status, created_at, updated_at
		FROM %s WHERE serial=$1`, orderTable(partition))
	var o domain.Order
	if err := r.db.QueryRow(ctx, q, serial).Scan(
		&o.Serial, &o.UserID, &o.TrainID, &o.Departure, &o.Arrival, &o.SeatClass, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrOrderNotFound
		}
		return nil, nil, err
	}
	o.Partition = partition

	tq := fmt.Sprintf(`SELECT id, order_serial, passenger_id, seat_class, carriage, seat_number
		FROM %s WHERE order_serial=$1 ORDER BY id`, ticketTable(partition))
	rows, err := r.db.Query(ctx, tq, serial)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.TicketID, &t.OrderSerial, &t.PassengerID, &t.SeatClass, &t.Carriage, &t.SeatNumber); err != nil {
			return nil, nil, err
		}
		tickets = append(tickets, t)
	}
	return &o, tickets, rows.Err()
}

func (r *PGOrderRepository) IsUnpaidAndCancellable(ctx context.Context, userID, serial string) (bool, error) {
	partition, err := r.partitionFor(userID, serial)
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf(`SELECT status FROM %s WHERE serial=$1`, orderTable(partition))
	var status domain.OrderStatus
	if err := r.db.QueryRow(ctx, q, serial).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrOrderNotFound
		}
		return false, err
	}
	return status == domain.OrderStatusPending, nil
}

// MarkPaid transitions a pending order to paid. The status guard in the
// WHERE clause loses the race against a concurrent close cleanly.
func (r *PGOrderRepository) MarkPaid(ctx context.Context, userID, serial string) error {
	return r.transition(ctx, userID, serial, domain.OrderStatusPaid)
}

func (r *PGOrderRepository) MarkClosed(ctx context.Context, userID, serial string) error {
	return r.transition(ctx, userID, serial, domain.OrderStatusClosed)
}

func (r *PGOrderRepository) transition(ctx context.Context, userID, serial string, to domain.OrderStatus) error {
	partition, err := r.partitionFor(userID, serial)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE %s SET status=$1, updated_at=now() WHERE serial=$2 AND status=$3`, orderTable(partition))
	cmd, err := r.db.Exec(ctx, q, to, serial, domain.OrderStatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOrderNotPending
	}
	return nil
}

var _ OrderRepository = (*PGOrderRepository)(nil)
