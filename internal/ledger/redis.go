package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"railticket/internal/domain"
)

// reserveScript checks every seat free and every counter sufficient before
// mutating anything, so concurrent allocators racing for the same block see
// exactly one winner and never a half-applied reservation.
var reserveScript = redis.NewScript(`
local o = tonumber(ARGV[1])
local c = tonumber(ARGV[2])
local p = tonumber(ARGV[3])
local idx = 4
local classes = {}
for i = 1, p do
    classes[i] = {ARGV[idx], tonumber(ARGV[idx + 1])}
    idx = idx + 2
end
local labels = {}
for i = 1, o do
    local m = tonumber(ARGV[idx])
    idx = idx + 1
    local set = {}
    for j = 1, m do
        set[j] = ARGV[idx]
        idx = idx + 1
    end
    labels[i] = set
end
for i = 1, o do
    for _, label in ipairs(labels[i]) do
        if redis.call("SISMEMBER", KEYS[i], label) == 1 then
            return 0
        end
    end
end
for i = o + 1, o + c do
    for _, pair in ipairs(classes) do
        local cur = tonumber(redis.call("HGET", KEYS[i], pair[1]) or "0")
        if cur < pair[2] then
            return 0
        end
    end
end
for i = 1, o do
    for _, label in ipairs(labels[i]) do
        redis.call("SADD", KEYS[i], label)
    end
end
for i = o + 1, o + c do
    for _, pair in ipairs(classes) do
        redis.call("HINCRBY", KEYS[i], pair[1], -pair[2])
    end
end
return 1
`)

// reclaimScript releases a reservation exactly once. The SETNX marker is
// the "already reclaimed" state a redelivered expiry signal detects, so
// at-least-once delivery never credits a counter twice.
var reclaimScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], "1") == 0 then
    return -1
end
local o = tonumber(ARGV[1])
local c = tonumber(ARGV[2])
local p = tonumber(ARGV[3])
local idx = 4
local classes = {}
for i = 1, p do
    classes[i] = {ARGV[idx], tonumber(ARGV[idx + 1])}
    idx = idx + 2
end
local labels = {}
for i = 1, o do
    local m = tonumber(ARGV[idx])
    idx = idx + 1
    local set = {}
    for j = 1, m do
        set[j] = ARGV[idx]
        idx = idx + 1
    end
    labels[i] = set
end
for i = 1, o do
    for _, label in ipairs(labels[i]) do
        redis.call("SREM", KEYS[1 + i], label)
    end
end
for i = o + 1, o + c do
    for _, pair in ipairs(classes) do
        redis.call("HINCRBY", KEYS[1 + i], pair[1], pair[2])
    end
end
return 1
`)

// RedisLedger is the production ledger: occupancy as per-carriage sets,
// remaining counts as per-segment hashes keyed by seat class.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

// Provision seeds a train's carriage order and a segment's counters.
func (l *RedisLedger) Provision(ctx context.Context, seg domain.Segment, class domain.SeatClass, carriages []string, counter int) error {
	indexKey := carriageIndexKey(seg.TrainID, class)
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, indexKey)
	for _, c := range carriages {
		pipe.RPush(ctx, indexKey, c)
	}
	pipe.HSet(ctx, remainingKey(seg), string(class), counter)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RedisLedger) ListCarriagesWithStock(ctx context.Context, seg domain.Segment, class domain.SeatClass) ([]string, error) {
	carriages, err := l.client.LRange(ctx, carriageIndexKey(seg.TrainID, class), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	pipe := l.client.Pipeline()
	cards := make([]*redis.IntCmd, len(carriages))
	for i, c := range carriages {
		cards[i] = pipe.SCard(ctx, occupiedKey(seg, c))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	var withStock []string
	for i, c := range carriages {
		if carriageCapacity-int(cards[i].Val()) > 0 {
			withStock = append(withStock, c)
		}
	}
	return withStock, nil
}

func (l *RedisLedger) ListRemainingBySegment(ctx context.Context, seg domain.Segment, carriages []string) ([]int, error) {
	pipe := l.client.Pipeline()
	cards := make([]*redis.IntCmd, len(carriages))
	for i, c := range carriages {
		cards[i] = pipe.SCard(ctx, occupiedKey(seg, c))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	counts := make([]int, len(carriages))
	for i := range carriages {
		counts[i] = carriageCapacity - int(cards[i].Val())
	}
	return counts, nil
}

func (l *RedisLedger) ListOccupiedSeatLabels(ctx context.Context, seg domain.Segment, carriage string, _ domain.SeatClass) ([]string, error) {
	return l.client.SMembers(ctx, occupiedKey(seg, carriage)).Result()
}

// RemainingCount reads the admission counter for a segment and class.
func (l *RedisLedger) RemainingCount(ctx context.Context, seg domain.Segment, class domain.SeatClass) (int, error) {
	v, err := l.client.HGet(ctx, remainingKey(seg), string(class)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (l *RedisLedger) Reserve(ctx context.Context, orderSerial string, segments []domain.Segment, assignments []domain.SeatAssignment) error {
	keys, argv := buildScriptArgs(segments, assignments)
	res, err := reserveScript.Run(ctx, l.client, keys, argv...).Int()
	if err != nil {
		return fmt.Errorf("reserve order %s: %w", orderSerial, err)
	}
	if res != 1 {
		return fmt.Errorf("reserve order %s: %w", orderSerial, domain.ErrSeatsUnavailable)
	}
	return nil
}

func (l *RedisLedger) Reclaim(ctx context.Context, orderSerial string, segments []domain.Segment, assignments []domain.SeatAssignment) error {
	keys, argv := buildScriptArgs(segments, assignments)
	keys = append([]string{reclaimMarkerKey(orderSerial)}, keys...)
	res, err := reclaimScript.Run(ctx, l.client, keys, argv...).Int()
	if err != nil {
		return fmt.Errorf("reclaim order %s: %w", orderSerial, err)
	}
	if res == -1 {
		return domain.ErrAlreadyReclaimed
	}
	return nil
}

// buildScriptArgs lays out the shared KEYS/ARGV encoding of both scripts:
// occupied-set keys first, counter keys after, then class/count pairs and
// the per-set label lists.
func buildScriptArgs(segments []domain.Segment, assignments []domain.SeatAssignment) ([]string, []interface{}) {
	// Group labels by carriage, preserving assignment order.
	var carriages []string
	labelsByCarriage := make(map[string][]string)
	for _, a := range assignments {
		if _, seen := labelsByCarriage[a.Carriage]; !seen {
			carriages = append(carriages, a.Carriage)
		}
		labelsByCarriage[a.Carriage] = append(labelsByCarriage[a.Carriage], a.SeatNumber)
	}
	perClass := countByClass(assignments)
	var classes []domain.SeatClass
	for class := range perClass {
		classes = append(classes, class)
	}

	var keys []string
	for _, seg := range segments {
		for _, c := range carriages {
			keys = append(keys, occupiedKey(seg, c))
		}
	}
	for _, seg := range segments {
		keys = append(keys, remainingKey(seg))
	}

	occupiedKeyCount := len(segments) * len(carriages)
	argv := []interface{}{occupiedKeyCount, len(segments), len(classes)}
	for _, class := range classes {
		argv = append(argv, string(class), perClass[class])
	}
	for range segments {
		for _, c := range carriages {
			labels := labelsByCarriage[c]
			argv = append(argv, len(labels))
			for _, label := range labels {
				argv = append(argv, label)
			}
		}
	}
	return keys, argv
}
