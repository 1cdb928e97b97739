package credential

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// SharedWindow is a quota window visible to every worker sharing the same
// credentials. Allow must check and record in one atomic step.
type SharedWindow interface {
	Allow(credID string, limit int, period time.Duration, now time.Time) (bool, error)
	Degraded() bool
}

// slidingWindowScript implements check-and-record over a sorted set keyed by
// credential. Prune, count, and conditional insert run as one script so two
// workers cannot both take the last slot.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now_us = tonumber(ARGV[1])
local period_us = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now_us - period_us)
local used = redis.call('ZCARD', key)
if used >= limit then
	return 0
end
redis.call('ZADD', key, now_us, member)
redis.call('PEXPIRE', key, math.ceil(period_us / 1000))
return 1
`)

// RedisWindow is a SharedWindow backed by Redis. After an error it marks
// itself degraded; the pool then accounts locally until a later call
// succeeds.
type RedisWindow struct {
	client    redis.UniversalClient
	keyPrefix string
	timeout   time.Duration
	logger    *slog.Logger

	degraded atomic.Bool
	seq      atomic.Uint64
}

// NewRedisWindow wraps client as a shared quota window. keyPrefix namespaces
// the sorted sets, so two deployments can share one Redis.
func NewRedisWindow(client redis.UniversalClient, keyPrefix string) *RedisWindow {
	if keyPrefix == "" {
		keyPrefix = "reportgen:quota"
	}
	return &RedisWindow{
		client:    client,
		keyPrefix: keyPrefix,
		timeout:   2 * time.Second,
		logger:    slog.Default().With("component", "redis_window"),
	}
}

// Allow checks and records one grant for credID.
func (w *RedisWindow) Allow(credID string, limit int, period time.Duration, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	member := fmt.Sprintf("%d-%d", now.UnixNano(), w.seq.Add(1))
	res, err := slidingWindowScript.Run(ctx, w.client,
		[]string{w.keyPrefix + ":" + credID},
		now.UnixMicro(), period.Microseconds(), limit, member,
	).Int()
	if err != nil {
		if w.degraded.CompareAndSwap(false, true) {
			w.logger.Warn("redis quota window degraded", "error", err)
		}
		return false, fmt.Errorf("shared window allow %s: %w", credID, err)
	}
	if w.degraded.CompareAndSwap(true, false) {
		w.logger.Info("redis quota window recovered")
	}
	return res == 1, nil
}

// Degraded reports whether the last Redis call failed.
func (w *RedisWindow) Degraded() bool { return w.degraded.Load() }
