package allocation

import (
	"context"
	"fmt"
	"sync"

	"railticket/internal/domain"
)

// Strategy is one allocation policy for a (vehicle type, seat class) pair.
type Strategy interface {
	SelectSeats(ctx context.Context, req AllocationRequest) (*AllocationResult, error)
}

// Registry dispatches purchase requests to the strategy registered for the
// vehicle/class combination. It replaces a per-class handler hierarchy:
// new classes plug in without touching the dispatch path.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func strategyKey(vehicle domain.VehicleType, class domain.SeatClass) string {
	return string(vehicle) + "/" + string(class)
}

func (r *Registry) Register(vehicle domain.VehicleType, class domain.SeatClass, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strategyKey(vehicle, class)] = s
}

func (r *Registry) Lookup(vehicle domain.VehicleType, class domain.SeatClass) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[strategyKey(vehicle, class)]
	if !ok {
		return nil, fmt.Errorf("no allocation strategy for vehicle %q class %q", vehicle, class)
	}
	return s, nil
}

// Allocate looks up the strategy for the request and runs it.
func (r *Registry) Allocate(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	s, err := r.Lookup(req.VehicleType, req.SeatClass)
	if err != nil {
		return nil, err
	}
	return s.SelectSeats(ctx, req)
}
