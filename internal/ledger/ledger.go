// Package ledger holds seat inventory: the authoritative per-seat occupancy
// state and the fast remaining-count counters used for admission checks.
// Both are mutated only through the allocator's reserve path and the
// compensator's reclaim path, and the two sides of each mutation commit as
// one unit.
package ledger

import "railticket/internal/domain"

const carriageCapacity = domain.CarriageRows * domain.CarriageColumns

const (
	occupiedKeyPrefix  = "seat:occupied:"
	remainingKeyPrefix = "ticket:remaining:"
	carriageKeyPrefix  = "seat:carriages:"
	reclaimKeyPrefix   = "order:reclaimed:"
)

func occupiedKey(seg domain.Segment, carriage string) string {
	return occupiedKeyPrefix + seg.Key() + ":" + carriage
}

func remainingKey(seg domain.Segment) string {
	return remainingKeyPrefix + seg.Key()
}

func carriageIndexKey(trainID string, class domain.SeatClass) string {
	return carriageKeyPrefix + trainID + ":" + string(class)
}

func reclaimMarkerKey(orderSerial string) string {
	return reclaimKeyPrefix + orderSerial
}
