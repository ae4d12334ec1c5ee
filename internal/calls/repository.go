package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository stores registries and consolidated calls.
type Repository interface {
	// InsertRegistry appends a registry and returns it with its ID assigned.
	InsertRegistry(ctx context.Context, r Registry) (Registry, error)
	GetRegistry(ctx context.Context, id int64) (Registry, error)

	// UpsertCall merges c into the stored call with the same call_id. Non-nil
	// timestamps and non-empty numbers in c overwrite; everything else is kept.
	// The merge is atomic per call_id.
	UpsertCall(ctx context.Context, c Call) (Call, error)
	GetCall(ctx context.Context, callID int64) (Call, error)
	ListConsolidatedCalls(ctx context.Context) ([]Call, error)
}

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu sync.Mutex

	nextID     int64
	registries map[int64]Registry
	calls      map[int64]Call
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{registries: map[int64]Registry{}, calls: map[int64]Call{}}
}

func (r *MemoryRepo) InsertRegistry(ctx context.Context, reg Registry) (Registry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	reg.ID = r.nextID
	r.registries[reg.ID] = reg
	return reg, nil
}

func (r *MemoryRepo) GetRegistry(ctx context.Context, id int64) (Registry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registries[id]
	if !ok {
		return Registry{}, ErrNotFound
	}
	return reg, nil
}

func (r *MemoryRepo) UpsertCall(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.calls[c.CallID]
	cur.CallID = c.CallID
	if c.StartTimestamp != nil {
		cur.StartTimestamp = copyTime(c.StartTimestamp)
	}
	if c.StopTimestamp != nil {
		cur.StopTimestamp = copyTime(c.StopTimestamp)
	}
	if c.Source != "" {
		cur.Source = c.Source
	}
	if c.Destination != "" {
		cur.Destination = c.Destination
	}
	r.calls[c.CallID] = cur
	return cur, nil
}

func (r *MemoryRepo) GetCall(ctx context.Context, callID int64) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListConsolidatedCalls(ctx context.Context) ([]Call, error) {
	r.mu.Lock()
	out := make([]Call, 0, len(r.calls))
	for _, c := range r.calls {
		if c.Consolidated() {
			out = append(out, c)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CallID < out[j].CallID })
	return out, nil
}

func copyTime(t *time.Time) *time.Time {
	v := *t
	return &v
}
