package allocation

import (
	"fmt"

	"railticket/internal/domain"
)

// matchChosen is the explicit-seat tier. Each carriage is probed for a
// placement preserving the chosen seats' relative offsets; a carriage that
// can hold the party but not the exact shape fills the difference with any
// free seats. When no single carriage works, the accumulated free pools are
// walked in carriage order, splitting the party as a last resort.
func (a *Allocator) matchChosen(req AllocationRequest, carriages []string, matrices []seatMatrix) ([]carriagePlacement, bool, error) {
	chosen := make([]domain.SeatCoordinate, 0, len(req.ChosenSeats))
	for _, token := range req.ChosenSeats {
		coord, err := parseChosenSeat(token)
		if err != nil {
			return nil, false, fmt.Errorf("chosen seats: %w", err)
		}
		chosen = append(chosen, coord)
	}
	n := len(req.Passengers)

	type freePool struct {
		carriage string
		seats    []domain.SeatCoordinate
	}
	var pools []freePool

	for i := range carriages {
		m := &matrices[i]
		free := m.freeSeats()
		sure := matchChosenOffsets(m, chosen)
		if len(sure) == len(chosen) && len(free) >= n {
			downgraded := false
			if len(sure) < n {
				// The party is larger than its chosen seats; the rest take
				// whatever is still vacant in this carriage.
				scratch := *m
				scratch.occupy(sure)
				sure = append(sure, nonAdjacent(n-len(sure), &scratch)...)
				downgraded = true
			}
			return []carriagePlacement{{carriage: carriages[i], seats: sure}}, downgraded, nil
		}
		if len(free) > 0 {
			pools = append(pools, freePool{carriage: carriages[i], seats: free})
		}
	}

	// No carriage honors the requested shape. First preference: keep the
	// party together in any carriage that can hold it.
	for _, pool := range pools {
		if len(pool.seats) >= n {
			return []carriagePlacement{{carriage: pool.carriage, seats: pool.seats[:n]}}, true, nil
		}
	}

	// Split across carriages in order until the party is seated.
	var placements []carriagePlacement
	need := n
	for _, pool := range pools {
		if need == 0 {
			break
		}
		take := len(pool.seats)
		if take > need {
			take = need
		}
		placements = append(placements, carriagePlacement{carriage: pool.carriage, seats: pool.seats[:take]})
		need -= take
	}
	if need > 0 {
		return nil, true, nil
	}
	return placements, true, nil
}
