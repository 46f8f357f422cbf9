package ledger

import (
	"context"
	"fmt"

	"railticket/internal/domain"
)

// StaticRouteTable resolves a train's ordered station list from an
// in-process map. Covers deployments where the timetable is loaded once
// at startup.
type StaticRouteTable struct {
	stations map[string][]string
}

func NewStaticRouteTable(stations map[string][]string) *StaticRouteTable {
	return &StaticRouteTable{stations: stations}
}

// ListTakeoutSegments returns every sellable segment of the train that
// overlaps the purchased leg, the leg itself included. A seat sold from
// B to C is gone for anyone travelling A to D, so all of those intervals
// take the deduction together.
func (t *StaticRouteTable) ListTakeoutSegments(_ context.Context, seg domain.Segment) ([]domain.Segment, error) {
	route, ok := t.stations[seg.TrainID]
	if !ok {
		return nil, fmt.Errorf("unknown train %s", seg.TrainID)
	}
	dep, arr := -1, -1
	for i, s := range route {
		if s == seg.Departure {
			dep = i
		}
		if s == seg.Arrival {
			arr = i
		}
	}
	if dep < 0 || arr < 0 {
		return nil, fmt.Errorf("train %s does not serve %s-%s", seg.TrainID, seg.Departure, seg.Arrival)
	}
	if dep >= arr {
		return nil, fmt.Errorf("train %s visits %s before %s", seg.TrainID, seg.Arrival, seg.Departure)
	}
	var out []domain.Segment
	for i := 0; i < len(route)-1; i++ {
		for j := i + 1; j < len(route); j++ {
			if i < arr && j > dep {
				out = append(out, domain.Segment{TrainID: seg.TrainID, Departure: route[i], Arrival: route[j]})
			}
		}
	}
	return out, nil
}
