package tasks

import (
	"context"
	"sort"
	"sync"
)

// Repository persists tasks keyed by job_id.
type Repository interface {
	Get(ctx context.Context, jobID string) (Task, error)
	// Save upserts by job_id.
	Save(ctx context.Context, t Task) error
	// List returns tasks newest first. An empty status matches all.
	List(ctx context.Context, status Status, limit int) ([]Task, error)
}

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	tasks map[string]Task
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{tasks: map[string]Task{}} }

func (r *MemoryRepo) Get(ctx context.Context, jobID string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[jobID]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) Save(ctx context.Context, t Task) error {
	if t.JobID == "" {
		return ErrInvalidJobID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.JobID] = t
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, status Status, limit int) ([]Task, error) {
	r.mu.Lock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].CreatedOn.After(out[j].CreatedOn)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
