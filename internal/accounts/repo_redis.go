package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// storeKey is the stable key the collection lives under. It is intentionally
// the same name the portal has always used for its persisted account list.
const storeKey = "loanAccounts"

// RedisRepo stores the collection as one JSON array under storeKey.
type RedisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

func (r *RedisRepo) Load(ctx context.Context) ([]Account, error) {
	raw, err := r.rdb.Get(ctx, storeKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeAccounts(raw), nil
}

func (r *RedisRepo) Save(ctx context.Context, all []Account) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, storeKey, raw, 0).Err()
}

// decodeAccounts discards malformed persisted state instead of propagating
// it: the in-memory collection falls back to its defaults.
func decodeAccounts(raw []byte) []Account {
	var out []Account
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("discarding malformed account store", "key", storeKey, "err", err)
		return nil
	}
	return out
}
