package domain

import "time"

// Segment is a sellable train leg. Availability is tracked per segment and
// seat class, never per whole route.
type Segment struct {
	TrainID   string `json:"train_id"`
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
}

// Key is the stable suffix used by ledger keys for this leg.
func (s Segment) Key() string {
	return s.TrainID + "_" + s.Departure + "_" + s.Arrival
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusClosed    OrderStatus = "CLOSED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	Serial    string
	UserID    string
	TrainID   string
	Departure string
	Arrival   string
	SeatClass SeatClass
	Status    OrderStatus
	Partition string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Ticket struct {
	TicketID    int64
	OrderSerial string
	PassengerID string
	SeatClass   SeatClass
	Carriage    string
	SeatNumber  string
}
