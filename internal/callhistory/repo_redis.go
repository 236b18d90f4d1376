package callhistory

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// historyKey is the stable key the ring lives under, matching the portal's
// persisted call-history schema.
const historyKey = "callHistory"

// RedisRepo stores the ring as a Redis list: LPUSH for head insert, LTRIM to
// enforce the cap. Each element is one JSON-encoded entry.
type RedisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

func (r *RedisRepo) Push(ctx context.Context, e Entry, max int) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, historyKey, raw)
	pipe.LTrim(ctx, historyKey, 0, int64(max-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepo) List(ctx context.Context, max int) ([]Entry, error) {
	raws, err := r.rdb.LRange(ctx, historyKey, 0, int64(max-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			// Malformed persisted state is discarded, never surfaced.
			slog.Warn("discarding malformed call history entry", "key", historyKey, "err", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisRepo) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, historyKey).Err()
}
