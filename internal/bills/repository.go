package bills

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Repository interface {
	// InsertBill stores b unless a bill for the same SourceCallURL exists, in
	// which case the stored bill is returned and created is false.
	InsertBill(ctx context.Context, b Bill) (stored Bill, created bool, err error)
	// ListBySubscriber returns bills whose stop timestamp is in [from, to),
	// ordered by start timestamp.
	ListBySubscriber(ctx context.Context, subscriber string, from, to time.Time) ([]Bill, error)
}

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	bills  []Bill
	bySrc  map[string]int
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{bySrc: map[string]int{}} }

func (r *MemoryRepo) InsertBill(ctx context.Context, b Bill) (Bill, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.bySrc[b.SourceCallURL]; ok {
		return r.bills[i], false, nil
	}
	r.nextID++
	b.ID = r.nextID
	r.bySrc[b.SourceCallURL] = len(r.bills)
	r.bills = append(r.bills, b)
	return b, true, nil
}

func (r *MemoryRepo) ListBySubscriber(ctx context.Context, subscriber string, from, to time.Time) ([]Bill, error) {
	r.mu.Lock()
	out := make([]Bill, 0)
	for _, b := range r.bills {
		if b.Subscriber != subscriber {
			continue
		}
		if b.StopTimestamp.Before(from) || !b.StopTimestamp.Before(to) {
			continue
		}
		out = append(out, b)
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTimestamp.Before(out[j].StartTimestamp) })
	return out, nil
}
