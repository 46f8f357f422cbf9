// Package booking orchestrates a ticket purchase: mint the order serial,
// allocate and reserve seats, persist the order, then arm the payment
// deadline. Inventory commits before the order row exists, so every
// failure path after allocation must give the seats back.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"railticket/internal/domain"
	"railticket/internal/expiry"
	"railticket/internal/idgen"
	"railticket/internal/kafka"
	"railticket/internal/repository"
	"railticket/internal/service/allocation"
)

type TicketUseCase interface {
	Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error)
	Pay(ctx context.Context, userID, serial string) error
	GetOrder(ctx context.Context, userID, serial string) (*domain.Order, []domain.Ticket, error)
}

// AllocatorPort dispatches to the seat allocation strategy and commits the
// reservation on success.
type AllocatorPort interface {
	Allocate(ctx context.Context, req allocation.AllocationRequest) (*allocation.AllocationResult, error)
}

type Reclaimer interface {
	Reclaim(ctx context.Context, orderSerial string, segments []domain.Segment, assignments []domain.SeatAssignment) error
}

type RoutePort interface {
	ListTakeoutSegments(ctx context.Context, seg domain.Segment) ([]domain.Segment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type ExpiryScheduler interface {
	Schedule(ctx context.Context, payload expiry.OrderExpiryPayload) error
}

type TicketService struct {
	ids       *idgen.Generator
	allocator AllocatorPort
	orders    repository.OrderRepository
	routes    RoutePort
	ledger    Reclaimer
	producer  Producer
	scheduler ExpiryScheduler
	topic     string
	log       *slog.Logger
}

type PurchaseInput struct {
	UserID      string                       `json:"user_id"`
	TrainID     string                       `json:"train_id"`
	Departure   string                       `json:"departure"`
	Arrival     string                       `json:"arrival"`
	VehicleType domain.VehicleType           `json:"vehicle_type"`
	SeatClass   domain.SeatClass             `json:"seat_class"`
	Passengers  []domain.PassengerSeatRequest `json:"passengers"`
	ChosenSeats []string                     `json:"chosen_seats,omitempty"`
}

type PurchaseResult struct {
	OrderSerial string                  `json:"order_serial"`
	Assignments []domain.SeatAssignment `json:"assignments"`
	Downgraded  bool                    `json:"downgraded"`
}

type TicketServiceOption func(*TicketService)

func WithLogger(log *slog.Logger) TicketServiceOption {
	return func(s *TicketService) { s.log = log }
}

func NewTicketService(
	ids *idgen.Generator,
	allocator AllocatorPort,
	orders repository.OrderRepository,
	routes RoutePort,
	ledger Reclaimer,
	producer Producer,
	scheduler ExpiryScheduler,
	topic string,
	opts ...TicketServiceOption,
) *TicketService {
	s := &TicketService{
		ids:       ids,
		allocator: allocator,
		orders:    orders,
		routes:    routes,
		ledger:    ledger,
		producer:  producer,
		scheduler: scheduler,
		topic:     topic,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TicketService) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if input.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if len(input.Passengers) == 0 {
		return nil, errors.New("at least one passenger is required")
	}
	if len(input.ChosenSeats) > len(input.Passengers) {
		return nil, errors.New("more chosen seats than passengers")
	}

	id, err := s.ids.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("mint order serial: %w", err)
	}
	serial := strconv.FormatInt(id, 10)
	seg := domain.Segment{TrainID: input.TrainID, Departure: input.Departure, Arrival: input.Arrival}

	res, err := s.allocator.Allocate(ctx, allocation.AllocationRequest{
		OrderSerial: serial,
		Segment:     seg,
		VehicleType: input.VehicleType,
		SeatClass:   input.SeatClass,
		Passengers:  input.Passengers,
		ChosenSeats: input.ChosenSeats,
	})
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		Serial:    serial,
		UserID:    input.UserID,
		TrainID:   input.TrainID,
		Departure: input.Departure,
		Arrival:   input.Arrival,
		SeatClass: input.SeatClass,
	}
	tickets := make([]domain.Ticket, len(res.Assignments))
	for i, a := range res.Assignments {
		tid, err := s.ids.Generate(ctx)
		if err != nil {
			s.rollbackReservation(ctx, serial, seg, res.Assignments)
			return nil, fmt.Errorf("mint ticket id: %w", err)
		}
		tickets[i] = domain.Ticket{
			TicketID:    tid,
			OrderSerial: serial,
			PassengerID: a.PassengerID,
			SeatClass:   a.SeatClass,
			Carriage:    a.Carriage,
			SeatNumber:  a.SeatNumber,
		}
	}
	if err := s.orders.CreateOrder(ctx, order, tickets); err != nil {
		s.rollbackReservation(ctx, serial, seg, res.Assignments)
		return nil, fmt.Errorf("persist order %s: %w", serial, err)
	}

	s.publishEvent(ctx, kafka.EventOrderCreated, order, res.Assignments)

	if err := s.scheduler.Schedule(ctx, expiry.OrderExpiryPayload{
		OrderSerial: serial,
		UserID:      input.UserID,
		Segment:     seg,
		Assignments: res.Assignments,
	}); err != nil {
		// Without a deadline the seats would be held forever; undo the
		// whole purchase instead.
		s.rollbackReservation(ctx, serial, seg, res.Assignments)
		if cerr := s.orders.MarkClosed(ctx, input.UserID, serial); cerr != nil {
			s.log.Error("close order after scheduling failure", "order", serial, "error", cerr)
		}
		return nil, fmt.Errorf("schedule expiry for order %s: %w", serial, err)
	}

	return &PurchaseResult{OrderSerial: serial, Assignments: res.Assignments, Downgraded: res.Downgraded}, nil
}

// Pay settles a pending order. The seats stay reserved; the expiry task
// fired later finds the order paid and leaves everything alone.
func (s *TicketService) Pay(ctx context.Context, userID, serial string) error {
	if err := s.orders.MarkPaid(ctx, userID, serial); err != nil {
		return err
	}
	order := &domain.Order{Serial: serial, UserID: userID, Status: domain.OrderStatusPaid}
	s.publishEvent(ctx, kafka.EventOrderPaid, order, nil)
	return nil
}

func (s *TicketService) GetOrder(ctx context.Context, userID, serial string) (*domain.Order, []domain.Ticket, error) {
	return s.orders.GetBySerial(ctx, userID, serial)
}

func (s *TicketService) rollbackReservation(ctx context.Context, serial string, seg domain.Segment, assignments []domain.SeatAssignment) {
	segments, err := s.routes.ListTakeoutSegments(ctx, seg)
	if err != nil {
		s.log.Error("expand route for rollback", "order", serial, "error", err)
		return
	}
	if err := s.ledger.Reclaim(ctx, serial, segments, assignments); err != nil && !errors.Is(err, domain.ErrAlreadyReclaimed) {
		s.log.Error("rollback reservation", "order", serial, "error", err)
	}
}

func (s *TicketService) publishEvent(ctx context.Context, eventType string, order *domain.Order, assignments []domain.SeatAssignment) {
	if s.producer == nil {
		return
	}
	event := kafka.OrderEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		OrderSerial: order.Serial,
		UserID:      order.UserID,
		TrainID:     order.TrainID,
		Departure:   order.Departure,
		Arrival:     order.Arrival,
		Status:      string(order.Status),
		Assignments: assignments,
		OccurredAt:  time.Now(),
	}
	if err := s.producer.Publish(ctx, s.topic, order.Serial, event); err != nil {
		s.log.Warn("publish order event", "type", eventType, "order", order.Serial, "error", err)
	}
}

var _ TicketUseCase = (*TicketService)(nil)
