package domain

import "errors"

var (
	// ErrInsufficientInventory is returned when the requested passenger count
	// exceeds the remaining seats across all eligible carriages.
	ErrInsufficientInventory = errors.New("insufficient inventory for this segment/class")

	// ErrSeatsUnavailable is returned when no placement exists even after
	// cross-carriage non-adjacent fallback.
	ErrSeatsUnavailable = errors.New("no seats available after all fallbacks")

	// ErrAlreadyReclaimed reports a reclaim attempt for an order whose
	// inventory was already restored.
	ErrAlreadyReclaimed = errors.New("order inventory already reclaimed")

	// ErrClockBackwards means the identifier generator observed a timestamp
	// earlier than its last emission. Never retried silently.
	ErrClockBackwards = errors.New("clock moved backwards, refusing to generate ID")

	ErrOrderNotFound = errors.New("order not found")
)
