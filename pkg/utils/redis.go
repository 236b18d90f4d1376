package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection knobs the portal actually tunes. Zero
// values fall back to conservative defaults.
type RedisConfig struct {
	Addr string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// OpenRedis builds a client and verifies connectivity with a bounded PING.
// The store is a hard dependency; callers treat an error here as fatal.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  durationOr(cfg.DialTimeout, 3*time.Second),
		ReadTimeout:  durationOr(cfg.ReadTimeout, 2*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 2*time.Second),
		PoolSize:     poolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, durationOr(cfg.PingTimeout, 2*time.Second))
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Line slot scripts. The counter key holds the number of active calls on a
// shared agent identity; acquire and release must be atomic because several
// portal instances may share one identity.

var lineAcquireScript = redis.NewScript(`
-- KEYS[1] = line counter key
-- ARGV[1] = limit (int)
-- ARGV[2] = ttl_ms (int)
--
-- Returns 1 if the slot was seized, 0 if the line limit is reached.
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
elseif redis.call('PTTL', KEYS[1]) < 0 then
  -- repair a counter that lost its TTL
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end

if current > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var lineReleaseScript = redis.NewScript(`
-- KEYS[1] = line counter key
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// AcquireLineSlot tries to seize a calling-line slot under key. With limit 1
// this serializes outbound calls on a shared identity across portal
// instances. The TTL frees a line held by a crashed process.
func AcquireLineSlot(ctx context.Context, rdb *redis.Client, key string, limit int, ttl time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" || limit <= 0 || ttl <= 0 {
		return false, fmt.Errorf("line slot requires key, positive limit and ttl")
	}
	res, err := lineAcquireScript.Run(ctx, rdb, []string{key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// ReleaseLineSlot releases a previously seized slot.
func ReleaseLineSlot(ctx context.Context, rdb *redis.Client, key string) error {
	if rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return lineReleaseScript.Run(ctx, rdb, []string{key}).Err()
}
