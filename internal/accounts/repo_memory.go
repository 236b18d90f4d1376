package accounts

import (
	"context"
	"sync"
)

// Repository persists the whole collection at once: one serialized array
// under a stable key, written synchronously on every mutation.
type Repository interface {
	Load(ctx context.Context) ([]Account, error)
	Save(ctx context.Context, all []Account) error
}

// MemoryRepo is an in-memory repository useful for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	accounts []Account
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Load(ctx context.Context) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Account, len(r.accounts))
	copy(out, r.accounts)
	return out, nil
}

func (r *MemoryRepo) Save(ctx context.Context, all []Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = make([]Account, len(all))
	copy(r.accounts, all)
	return nil
}
