package callhistory

import (
	"context"
	"sync"
)

// MemoryRepo keeps the ring in process memory. Useful for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Push(ctx context.Context, e Entry, max int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]Entry{e}, r.entries...)
	if len(r.entries) > max {
		r.entries = r.entries[:max]
	}
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, max int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	if n > max {
		n = max
	}
	out := make([]Entry, n)
	copy(out, r.entries[:n])
	return out, nil
}

func (r *MemoryRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	return nil
}
