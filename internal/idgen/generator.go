// Package idgen mints globally unique, time-ordered 63-bit identifiers for
// orders and tickets from a (timestamp, node, sequence) triple.
package idgen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"railticket/internal/domain"
)

const (
	// epoch is 2021-01-01T00:00:00Z in milliseconds.
	epoch = 1609459200000

	nodeBits     = 5
	sequenceBits = 7

	maxNodeID    = (1 << nodeBits) - 1
	sequenceMask = (1 << sequenceBits) - 1
)

// Generator is a single-node ID source. One instance is shared by all
// callers on a node; distinct nodes must use distinct node IDs for the
// emitted identifiers to be globally unique. Multiple instances may coexist
// in one process, each guarding its own state.
type Generator struct {
	mu            sync.Mutex
	nodeID        int64
	lastTimestamp int64
	sequence      int64

	now func() int64 // swappable for tests
}

func New(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, fmt.Errorf("idgen: node id %d out of range 0..%d", nodeID, maxNodeID)
	}
	return &Generator{nodeID: nodeID, lastTimestamp: -1, now: nowMillis}, nil
}

// Generate returns the next identifier. Identifiers from one instance are
// non-decreasing; at most 128 fit into a millisecond, after which Generate
// spins until the clock advances. A clock regression is fatal for the
// attempt and surfaces domain.ErrClockBackwards.
func (g *Generator) Generate(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.now()
	if timestamp < g.lastTimestamp {
		return 0, domain.ErrClockBackwards
	}
	// State is committed only once the attempt is certain to emit; a spin
	// aborted by cancellation must not advance the sequence, or a retry in
	// the same millisecond would re-issue an identifier from the burst.
	var sequence int64
	if timestamp == g.lastTimestamp {
		sequence = (g.sequence + 1) & sequenceMask
		if sequence == 0 {
			var err error
			timestamp, err = g.tilNextMillis(ctx, g.lastTimestamp)
			if err != nil {
				return 0, err
			}
		}
	}
	g.sequence = sequence
	g.lastTimestamp = timestamp
	return timestamp<<(nodeBits+sequenceBits) | g.nodeID<<sequenceBits | g.sequence, nil
}

// tilNextMillis busy-waits for the next millisecond. The wait is
// sub-millisecond in practice; the context check keeps shutdown from
// being pinned on the spin.
func (g *Generator) tilNextMillis(ctx context.Context, last int64) (int64, error) {
	timestamp := g.now()
	for timestamp <= last {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		timestamp = g.now()
	}
	return timestamp, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli() - epoch
}
