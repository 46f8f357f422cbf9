// Package sharding routes a logical order key to the physical partition its
// rows live on. Orders shard by the trailing six characters of the customer
// identifier; the order serial embeds the same suffix so both query paths
// land on the same partition.
package sharding

import (
	"errors"
	"fmt"
	"strconv"
)

const partitionPrefix = "ds_"

// Router maps a customer identifier or order serial to a partition name.
// Routing is deterministic: same key and shard count, same partition,
// regardless of process or call site.
type Router struct {
	shardCount int
}

func NewRouter(shardCount int) (*Router, error) {
	if shardCount <= 0 {
		return nil, fmt.Errorf("sharding: shard count must be positive, got %d", shardCount)
	}
	return &Router{shardCount: shardCount}, nil
}

// Route picks the partition for an order. The customer identifier wins when
// present; the order serial is the fallback. At least one must be set.
func (r *Router) Route(customerID, orderSerial string) (string, error) {
	key := customerID
	if key == "" {
		key = orderSerial
	}
	if key == "" {
		return "", errors.New("sharding: no customer id or order serial to route on")
	}
	suffix := trailingSix(key)
	index := hashShardingValue(suffix) % int64(r.shardCount)
	return partitionPrefix + strconv.FormatInt(index, 10), nil
}

// trailingSix derives the six-character routing suffix. Numeric keys reduce
// modulo 1e6 so that "1683025552364568576" and the int64 it parses to route
// identically; textual keys take their trailing six characters.
func trailingSix(key string) string {
	if n, err := strconv.ParseInt(key, 10, 64); err == nil {
		return strconv.FormatInt(n%1_000_000, 10)
	}
	if len(key) <= 6 {
		return key
	}
	return key[len(key)-6:]
}

// hashShardingValue is a stable non-negative string hash: 31-based int32
// accumulation with the absolute value taken, so the result survives
// process restarts (unlike maphash) and matches across replicas.
func hashShardingValue(s string) int64 {
	var h int32
	for i := 0; i < len(s); i++ {
		h = 31*h + int32(s[i])
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
