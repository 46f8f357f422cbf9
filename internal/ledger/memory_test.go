package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railticket/internal/domain"
)

func testSegments() []domain.Segment {
	return []domain.Segment{
		{TrainID: "G35", Departure: "beijing", Arrival: "jinan"},
		{TrainID: "G35", Departure: "beijing", Arrival: "nanjing"},
	}
}

func provisionBoth(l *MemoryLedger, counter int) {
	for _, seg := range testSegments() {
		l.Provision(seg, domain.SeatClassSecond, []string{"1", "2"}, counter)
	}
}

func TestMemoryLedgerReserve(t *testing.T) {
	l := NewMemoryLedger()
	provisionBoth(l, 180)
	segments := testSegments()
	assignments := []domain.SeatAssignment{
		{PassengerID: "p1", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01A"},
		{PassengerID: "p2", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01C"},
	}

	err := l.Reserve(context.Background(), "order-1", segments, assignments)
	require.NoError(t, err)

	for _, seg := range segments {
		assert.True(t, l.IsOccupied(seg, "1", "01A"))
		assert.True(t, l.IsOccupied(seg, "1", "01C"))
		assert.Equal(t, 178, l.RemainingCount(seg, domain.SeatClassSecond))
	}
}

func TestMemoryLedgerReserveConflictChangesNothing(t *testing.T) {
	l := NewMemoryLedger()
	provisionBoth(l, 180)
	segments := testSegments()
	// The seat is free on the first segment but taken on the second, so
	// the reservation must fail without touching the first segment.
	l.MarkOccupied(segments[1], "1", "01A")

	err := l.Reserve(context.Background(), "order-1", segments, []domain.SeatAssignment{
		{PassengerID: "p1", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01A"},
	})
	require.ErrorIs(t, err, domain.ErrSeatsUnavailable)

	assert.False(t, l.IsOccupied(segments[0], "1", "01A"))
	assert.Equal(t, 180, l.RemainingCount(segments[0], domain.SeatClassSecond))
	assert.Equal(t, 180, l.RemainingCount(segments[1], domain.SeatClassSecond))
}

func TestMemoryLedgerReserveExhaustedCounter(t *testing.T) {
	l := NewMemoryLedger()
	seg := testSegments()[0]
	l.Provision(seg, domain.SeatClassSecond, []string{"1"}, 1)

	err := l.Reserve(context.Background(), "order-1", []domain.Segment{seg}, []domain.SeatAssignment{
		{PassengerID: "p1", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01A"},
		{PassengerID: "p2", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "01C"},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.False(t, l.IsOccupied(seg, "1", "01A"))
	assert.Equal(t, 1, l.RemainingCount(seg, domain.SeatClassSecond))
}

func TestMemoryLedgerConcurrentReserveSingleWinner(t *testing.T) {
	l := NewMemoryLedger()
	seg := testSegments()[0]
	l.Provision(seg, domain.SeatClassSecond, []string{"1"}, 90)
	assignments := []domain.SeatAssignment{
		{PassengerID: "p1", SeatClass: domain.SeatClassSecond, Carriage: "1", SeatNumber: "05D"},
	}

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.Reserve(context.Background(), fmt.Sprintf("order-%d", i), []domain.Segment{seg}, assignments)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, domain.ErrSeatsUnavailable)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 89, l.RemainingCount(seg, domain.SeatClassSecond))
}

func TestMemoryLedgerReclaimIdempotent(t *testing.T) {
	l := NewMemoryLedger()
	provisionBoth(l, 180)
	segments := testSegments()
	assignments := []domain.SeatAssignment{
		{PassengerID: "p1", SeatClass: domain.SeatClassSecond, Carriage: "2", SeatNumber: "10F"},
	}
	require.NoError(t, l.Reserve(context.Background(), "order-1", segments, assignments))

	require.NoError(t, l.Reclaim(context.Background(), "order-1", segments, assignments))
	for _, seg := range segments {
		assert.False(t, l.IsOccupied(seg, "2", "10F"))
		assert.Equal(t, 180, l.RemainingCount(seg, domain.SeatClassSecond))
	}

	err := l.Reclaim(context.Background(), "order-1", segments, assignments)
	require.True(t, errors.Is(err, domain.ErrAlreadyReclaimed))
	// A redelivered reclaim must not credit the counters a second time.
	for _, seg := range segments {
		assert.Equal(t, 180, l.RemainingCount(seg, domain.SeatClassSecond))
	}
}

func TestMemoryLedgerListCarriagesWithStock(t *testing.T) {
	l := NewMemoryLedger()
	seg := testSegments()[0]
	l.Provision(seg, domain.SeatClassSecond, []string{"1", "2", "3"}, 270)
	// Fill carriage 2 completely.
	for i := 0; i < carriageCapacity; i++ {
		l.MarkOccupied(seg, "2", fmt.Sprintf("x%d", i))
	}

	carriages, err := l.ListCarriagesWithStock(context.Background(), seg, domain.SeatClassSecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, carriages)

	counts, err := l.ListRemainingBySegment(context.Background(), seg, carriages)
	require.NoError(t, err)
	assert.Equal(t, []int{90, 90}, counts)
}
