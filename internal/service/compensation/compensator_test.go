package compensation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"railticket/internal/domain"
	"railticket/internal/expiry"
	"railticket/internal/ledger"
)

type MockOrderStatus struct {
	mock.Mock
}

func (m *MockOrderStatus) IsUnpaidAndCancellable(ctx context.Context, userID, serial string) (bool, error) {
	args := m.Called(ctx, userID, serial)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderStatus) MarkClosed(ctx context.Context, userID, serial string) error {
	args := m.Called(ctx, userID, serial)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPayload() expiry.OrderExpiryPayload {
	return expiry.OrderExpiryPayload{
		OrderSerial: "order-1",
		UserID:      "u1",
		Segment:     domain.Segment{TrainID: "G35", Departure: "beijing", Arrival: "jinan"},
		Assignments: []domain.SeatAssignment{
			{PassengerID: "p1", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01A"},
			{PassengerID: "p2", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01B"},
		},
	}
}

func testRoutes() *ledger.StaticRouteTable {
	return ledger.NewStaticRouteTable(map[string][]string{
		"G35": {"beijing", "jinan"},
	})
}

func TestHandleExpiryPaidOrderUntouched(t *testing.T) {
	orders := new(MockOrderStatus)
	orders.On("IsUnpaidAndCancellable", mock.Anything, "u1", "order-1").Return(false, nil)

	l := ledger.NewMemoryLedger()
	seg := testPayload().Segment
	l.Provision(seg, domain.SeatClassSecond, []string{"1"}, 3)
	l.MarkOccupied(seg, "1", "01A", "01B")

	c := NewCompensator(orders, testRoutes(), l, testLogger())
	require.NoError(t, c.HandleExpiry(context.Background(), testPayload()))

	// A paid order keeps its seats and counters.
	assert.True(t, l.IsOccupied(seg, "1", "01A"))
	assert.True(t, l.IsOccupied(seg, "1", "01B"))
	assert.Equal(t, 3, l.RemainingCount(seg, domain.SeatClassSecond))
	orders.AssertNotCalled(t, "MarkClosed", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleExpiryUnpaidOrderReclaimed(t *testing.T) {
	orders := new(MockOrderStatus)
	orders.On("IsUnpaidAndCancellable", mock.Anything, "u1", "order-1").Return(true, nil)
	orders.On("MarkClosed", mock.Anything, "u1", "order-1").Return(nil)

	l := ledger.NewMemoryLedger()
	seg := testPayload().Segment
	l.Provision(seg, domain.SeatClassSecond, []string{"1"}, 3)
	l.MarkOccupied(seg, "1", "01A", "01B")

	c := NewCompensator(orders, testRoutes(), l, testLogger())
	require.NoError(t, c.HandleExpiry(context.Background(), testPayload()))

	assert.False(t, l.IsOccupied(seg, "1", "01A"))
	assert.False(t, l.IsOccupied(seg, "1", "01B"))
	assert.Equal(t, 5, l.RemainingCount(seg, domain.SeatClassSecond))
	orders.AssertExpectations(t)
}

func TestHandleExpiryRedeliveryCreditsOnce(t *testing.T) {
	orders := new(MockOrderStatus)
	orders.On("IsUnpaidAndCancellable", mock.Anything, "u1", "order-1").Return(true, nil)
	orders.On("MarkClosed", mock.Anything, "u1", "order-1").Return(nil)

	l := ledger.NewMemoryLedger()
	seg := testPayload().Segment
	l.Provision(seg, domain.SeatClassSecond, []string{"1"}, 3)
	l.MarkOccupied(seg, "1", "01A", "01B")

	c := NewCompensator(orders, testRoutes(), l, testLogger())
	require.NoError(t, c.HandleExpiry(context.Background(), testPayload()))
	require.NoError(t, c.HandleExpiry(context.Background(), testPayload()))

	assert.Equal(t, 5, l.RemainingCount(seg, domain.SeatClassSecond))
	orders.AssertNumberOfCalls(t, "MarkClosed", 2)
}

func TestHandleExpiryStatusCheckFailureRetries(t *testing.T) {
	orders := new(MockOrderStatus)
	orders.On("IsUnpaidAndCancellable", mock.Anything, "u1", "order-1").Return(false, errors.New("db down"))

	c := NewCompensator(orders, testRoutes(), ledger.NewMemoryLedger(), testLogger())
	err := c.HandleExpiry(context.Background(), testPayload())
	assert.Error(t, err)
}

func TestHandleExpiryCloseFailureRetries(t *testing.T) {
	orders := new(MockOrderStatus)
	orders.On("IsUnpaidAndCancellable", mock.Anything, "u1", "order-1").Return(true, nil)
	orders.On("MarkClosed", mock.Anything, "u1", "order-1").Return(errors.New("db down"))

	l := ledger.NewMemoryLedger()
	seg := testPayload().Segment
	l.Provision(seg, domain.SeatClassSecond, []string{"1"}, 3)
	l.MarkOccupied(seg, "1", "01A", "01B")

	c := NewCompensator(orders, testRoutes(), l, testLogger())
	err := c.HandleExpiry(context.Background(), testPayload())
	assert.Error(t, err)
	// Seats are already back; the retried task must survive that.
	assert.Equal(t, 5, l.RemainingCount(seg, domain.SeatClassSecond))
}

func TestProcessTaskBadPayload(t *testing.T) {
	c := NewCompensator(new(MockOrderStatus), testRoutes(), ledger.NewMemoryLedger(), testLogger())
	err := c.ProcessTask(context.Background(), asynq.NewTask(expiry.TypeOrderExpiry, []byte("{not json")))
	assert.Error(t, err)
}
