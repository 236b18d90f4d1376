package session

import (
	"context"
	"time"

	"collections-portal/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Guard extends the one-active-session invariant across processes sharing
// the calling identity: a dial must acquire the line before connecting.
type Guard interface {
	// Acquire returns false when the line is already held elsewhere.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisGuard holds the shared line slot in Redis. The TTL bounds how long a
// crashed process can keep the line seized.
type RedisGuard struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

const defaultLineTTL = 4 * time.Hour

func NewRedisGuard(rdb *redis.Client, identity string) *RedisGuard {
	return &RedisGuard{rdb: rdb, key: "line:" + identity, ttl: defaultLineTTL}
}

func (g *RedisGuard) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireLineSlot(ctx, g.rdb, g.key, 1, g.ttl)
}

func (g *RedisGuard) Release(ctx context.Context) error {
	return utils.ReleaseLineSlot(ctx, g.rdb, g.key)
}
