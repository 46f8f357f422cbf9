// Package allocation turns a purchase request into concrete seat
// assignments. Placement prefers keeping a party adjacent inside one
// carriage and degrades step by step: same carriage non-adjacent, then
// split across carriages, before giving up.
package allocation

import (
	"context"
	"fmt"

	"railticket/internal/domain"
)

// largePartyThreshold splits big parties into adjacency sub-groups.
const (
	largePartyThreshold = 6
	subGroupSize        = 3
)

// SeatAvailabilityPort supplies per-carriage occupancy snapshots for a
// segment. Implemented by the ledger.
type SeatAvailabilityPort interface {
	ListCarriagesWithStock(ctx context.Context, seg domain.Segment, class domain.SeatClass) ([]string, error)
	ListRemainingBySegment(ctx context.Context, seg domain.Segment, carriages []string) ([]int, error)
	ListOccupiedSeatLabels(ctx context.Context, seg domain.Segment, carriage string, class domain.SeatClass) ([]string, error)
}

// Reserver commits a selection: mark every chosen seat occupied and
// decrement the remaining counter on every affected segment, atomically.
type Reserver interface {
	Reserve(ctx context.Context, orderSerial string, segments []domain.Segment, assignments []domain.SeatAssignment) error
}

// RoutePort expands a purchased leg into the intermediate segments it
// consumes inventory on.
type RoutePort interface {
	ListTakeoutSegments(ctx context.Context, seg domain.Segment) ([]domain.Segment, error)
}

type AllocationRequest struct {
	OrderSerial string
	Segment     domain.Segment
	VehicleType domain.VehicleType
	SeatClass   domain.SeatClass
	Passengers  []domain.PassengerSeatRequest
	// ChosenSeats holds the party's preferred seats in picker notation
	// ("A0", "B0", ...). May be shorter than the passenger list or empty.
	ChosenSeats []string
}

type AllocationResult struct {
	Assignments []domain.SeatAssignment
	// Downgraded reports that at least one passenger did not get a seat
	// matching the requested placement (substitution or fallback tier).
	Downgraded bool
}

// Allocator is the default matrix-based strategy for 18x5 carriages.
type Allocator struct {
	availability SeatAvailabilityPort
	reserver     Reserver
	routes       RoutePort
}

func NewAllocator(availability SeatAvailabilityPort, reserver Reserver, routes RoutePort) *Allocator {
	return &Allocator{availability: availability, reserver: reserver, routes: routes}
}

// carriagePlacement keeps the carriage visit order deterministic; the
// availability port reports carriages ordered by remaining stock and the
// assignment must respect that order.
type carriagePlacement struct {
	carriage string
	seats    []domain.SeatCoordinate
}

// SelectSeats picks seats and commits the reservation.
func (a *Allocator) SelectSeats(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	if len(req.Passengers) == 0 {
		return &AllocationResult{}, nil
	}
	if len(req.ChosenSeats) > len(req.Passengers) {
		return nil, fmt.Errorf("more chosen seats than passengers: %d > %d", len(req.ChosenSeats), len(req.Passengers))
	}
	carriages, err := a.availability.ListCarriagesWithStock(ctx, req.Segment, req.SeatClass)
	if err != nil {
		return nil, fmt.Errorf("list carriages: %w", err)
	}
	remaining, err := a.availability.ListRemainingBySegment(ctx, req.Segment, carriages)
	if err != nil {
		return nil, fmt.Errorf("list remaining: %w", err)
	}
	total := 0
	for _, n := range remaining {
		total += n
	}
	if total < len(req.Passengers) {
		return nil, domain.ErrInsufficientInventory
	}

	matrices, err := a.loadMatrices(ctx, req, carriages)
	if err != nil {
		return nil, err
	}

	var placements []carriagePlacement
	downgraded := false
	switch {
	case len(req.ChosenSeats) > 0:
		placements, downgraded, err = a.matchChosen(req, carriages, matrices)
	case len(req.Passengers) < largePartyThreshold:
		placements, downgraded = a.placeParty(len(req.Passengers), carriages, matrices, a.adjacentWhole)
	default:
		placements, downgraded = a.placeParty(len(req.Passengers), carriages, matrices, a.adjacentSplit)
	}
	if err != nil {
		return nil, err
	}
	assignments := buildAssignments(req, placements)
	if len(assignments) != len(req.Passengers) {
		return nil, domain.ErrSeatsUnavailable
	}

	segments, err := a.routes.ListTakeoutSegments(ctx, req.Segment)
	if err != nil {
		return nil, fmt.Errorf("expand route: %w", err)
	}
	if err := a.reserver.Reserve(ctx, req.OrderSerial, segments, assignments); err != nil {
		return nil, fmt.Errorf("reserve seats: %w", err)
	}
	return &AllocationResult{Assignments: assignments, Downgraded: downgraded}, nil
}

func (a *Allocator) loadMatrices(ctx context.Context, req AllocationRequest, carriages []string) ([]seatMatrix, error) {
	matrices := make([]seatMatrix, len(carriages))
	for i, carriage := range carriages {
		occupied, err := a.availability.ListOccupiedSeatLabels(ctx, req.Segment, carriage, req.SeatClass)
		if err != nil {
			return nil, fmt.Errorf("occupancy of carriage %s: %w", carriage, err)
		}
		m, err := buildMatrix(occupied)
		if err != nil {
			return nil, fmt.Errorf("occupancy of carriage %s: %w", carriage, err)
		}
		matrices[i] = m
	}
	return matrices, nil
}

// adjacentWhole tries to seat the whole party in one adjacent block.
func (a *Allocator) adjacentWhole(n int, m *seatMatrix) []domain.SeatCoordinate {
	return adjacent(n, m)
}

// adjacentSplit seats a large party as sub-groups of at most three, each
// adjacent, all inside the same carriage. Earlier sub-groups claim their
// seats before the next one is placed.
func (a *Allocator) adjacentSplit(n int, m *seatMatrix) []domain.SeatCoordinate {
	scratch := *m
	var placed []domain.SeatCoordinate
	for need := n; need > 0; {
		size := subGroupSize
		if need < size {
			size = need
		}
		block := adjacent(size, &scratch)
		if block == nil {
			return nil
		}
		scratch.occupy(block)
		placed = append(placed, block...)
		need -= size
	}
	return placed
}

// placeParty runs the tier-B/C degradation ladder: preferred placement per
// carriage, then same-carriage non-adjacent, then cross-carriage.
func (a *Allocator) placeParty(n int, carriages []string, matrices []seatMatrix, preferred func(int, *seatMatrix) []domain.SeatCoordinate) ([]carriagePlacement, bool) {
	for i := range carriages {
		if seats := preferred(n, &matrices[i]); seats != nil {
			return []carriagePlacement{{carriage: carriages[i], seats: seats}}, false
		}
	}
	// Same carriage, not adjacent: any carriage whose free count exceeds
	// the party size.
	for i := range carriages {
		if matrices[i].freeCount() > n {
			seats := nonAdjacent(n, &matrices[i])
			if len(seats) == n {
				return []carriagePlacement{{carriage: carriages[i], seats: seats}}, true
			}
		}
	}
	// Last resort: split the party across carriages' free pools in order.
	var placements []carriagePlacement
	need := n
	for i := range carriages {
		if need == 0 {
			break
		}
		seats := nonAdjacent(need, &matrices[i])
		if len(seats) == 0 {
			continue
		}
		placements = append(placements, carriagePlacement{carriage: carriages[i], seats: seats})
		need -= len(seats)
	}
	if need > 0 {
		return nil, true
	}
	return placements, true
}

func buildAssignments(req AllocationRequest, placements []carriagePlacement) []domain.SeatAssignment {
	assignments := make([]domain.SeatAssignment, 0, len(req.Passengers))
	idx := 0
	for _, p := range placements {
		for _, seat := range p.seats {
			if idx >= len(req.Passengers) {
				break
			}
			passenger := req.Passengers[idx]
			assignments = append(assignments, domain.SeatAssignment{
				PassengerID: passenger.PassengerID,
				SeatClass:   passenger.SeatClass,
				Carriage:    p.carriage,
				SeatNumber:  seat.Label(),
			})
			idx++
		}
	}
	return assignments
}
