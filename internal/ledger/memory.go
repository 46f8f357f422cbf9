package ledger

import (
	"context"
	"fmt"
	"sync"

	"railticket/internal/domain"
)

// MemoryLedger is the in-process ledger used by tests and local runs. One
// mutex covers occupancy, counters and reclaim markers so a reservation or
// a reclaim is observed all-or-nothing, matching the redis scripts.
type MemoryLedger struct {
	mu sync.Mutex
	// carriage ids per (segment-key, class), in selling-priority order
	carriages map[string][]string
	// occupied seat labels per (segment-key, carriage)
	occupied map[string]map[string]struct{}
	// remaining count per segment-key and class
	remaining map[string]map[domain.SeatClass]int
	reclaimed map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		carriages: make(map[string][]string),
		occupied:  make(map[string]map[string]struct{}),
		remaining: make(map[string]map[domain.SeatClass]int),
		reclaimed: make(map[string]struct{}),
	}
}

func classKey(seg domain.Segment, class domain.SeatClass) string {
	return seg.Key() + ":" + string(class)
}

func carriageKey(seg domain.Segment, carriage string) string {
	return seg.Key() + ":" + carriage
}

// Provision seeds a segment: carriages all-free in the given priority
// order, counter set for the class. Called once when a leg goes on sale.
func (l *MemoryLedger) Provision(seg domain.Segment, class domain.SeatClass, carriages []string, counter int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.carriages[classKey(seg, class)] = append([]string(nil), carriages...)
	for _, c := range carriages {
		if l.occupied[carriageKey(seg, c)] == nil {
			l.occupied[carriageKey(seg, c)] = make(map[string]struct{})
		}
	}
	if l.remaining[seg.Key()] == nil {
		l.remaining[seg.Key()] = make(map[domain.SeatClass]int)
	}
	l.remaining[seg.Key()][class] = counter
}

// MarkOccupied seeds already-sold seats, for tests and fixtures.
func (l *MemoryLedger) MarkOccupied(seg domain.Segment, carriage string, labels ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := l.occupied[carriageKey(seg, carriage)]
	if set == nil {
		set = make(map[string]struct{})
		l.occupied[carriageKey(seg, carriage)] = set
	}
	for _, label := range labels {
		set[label] = struct{}{}
	}
}

func (l *MemoryLedger) RemainingCount(seg domain.Segment, class domain.SeatClass) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining[seg.Key()][class]
}

func (l *MemoryLedger) IsOccupied(seg domain.Segment, carriage, label string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.occupied[carriageKey(seg, carriage)][label]
	return ok
}

// ListCarriagesWithStock returns, in provisioning order, the carriages that
// still have at least one free seat on this segment.
func (l *MemoryLedger) ListCarriagesWithStock(_ context.Context, seg domain.Segment, class domain.SeatClass) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []string
	for _, c := range l.carriages[classKey(seg, class)] {
		if carriageCapacity-len(l.occupied[carriageKey(seg, c)]) > 0 {
			result = append(result, c)
		}
	}
	return result, nil
}

func (l *MemoryLedger) ListRemainingBySegment(_ context.Context, seg domain.Segment, carriages []string) ([]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make([]int, len(carriages))
	for i, c := range carriages {
		counts[i] = carriageCapacity - len(l.occupied[carriageKey(seg, c)])
	}
	return counts, nil
}

func (l *MemoryLedger) ListOccupiedSeatLabels(_ context.Context, seg domain.Segment, carriage string, _ domain.SeatClass) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := l.occupied[carriageKey(seg, carriage)]
	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	return labels, nil
}

// Reserve marks every assigned seat occupied on every affected segment and
// decrements the per-class counters, as one unit. Any already-taken seat or
// exhausted counter aborts the whole reservation.
func (l *MemoryLedger) Reserve(_ context.Context, orderSerial string, segments []domain.Segment, assignments []domain.SeatAssignment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	perClass := countByClass(assignments)
	for _, seg := range segments {
		for _, a := range assignments {
			if _, taken := l.occupied[carriageKey(seg, a.Carriage)][a.SeatNumber]; taken {
				return fmt.Errorf("seat %s/%s on %s: %w", a.Carriage, a.SeatNumber, seg.Key(), domain.ErrSeatsUnavailable)
			}
		}
		for class, n := range perClass {
			if l.remaining[seg.Key()][class] < n {
				return fmt.Errorf("counter for %s/%s: %w", seg.Key(), class, domain.ErrInsufficientInventory)
			}
		}
	}
	for _, seg := range segments {
		for _, a := range assignments {
			set := l.occupied[carriageKey(seg, a.Carriage)]
			if set == nil {
				set = make(map[string]struct{})
				l.occupied[carriageKey(seg, a.Carriage)] = set
			}
			set[a.SeatNumber] = struct{}{}
		}
		for class, n := range perClass {
			if l.remaining[seg.Key()] == nil {
				l.remaining[seg.Key()] = make(map[domain.SeatClass]int)
			}
			l.remaining[seg.Key()][class] -= n
		}
	}
	return nil
}

// Reclaim reverses a reservation once. The per-order marker makes a second
// delivery a detectable no-op instead of a double credit.
func (l *MemoryLedger) Reclaim(_ context.Context, orderSerial string, segments []domain.Segment, assignments []domain.SeatAssignment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, done := l.reclaimed[orderSerial]; done {
		return domain.ErrAlreadyReclaimed
	}
	perClass := countByClass(assignments)
	for _, seg := range segments {
		for _, a := range assignments {
			delete(l.occupied[carriageKey(seg, a.Carriage)], a.SeatNumber)
		}
		for class, n := range perClass {
			if l.remaining[seg.Key()] == nil {
				l.remaining[seg.Key()] = make(map[domain.SeatClass]int)
			}
			l.remaining[seg.Key()][class] += n
		}
	}
	l.reclaimed[orderSerial] = struct{}{}
	return nil
}

func countByClass(assignments []domain.SeatAssignment) map[domain.SeatClass]int {
	perClass := make(map[domain.SeatClass]int)
	for _, a := range assignments {
		perClass[a.SeatClass]++
	}
	return perClass
}
