package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	lockKeyPrefix  = "telephone:lock:task:"
	defaultLockTTL = 2 * time.Minute
	listLimit      = 100
)

// Tracker keeps the job bookkeeping for pipeline stages.
// It knows nothing about registries, calls or bills.
type Tracker struct {
	repo    Repository
	locker  Locker
	lockTTL time.Duration
	clock   func() time.Time
}

func NewTracker(repo Repository, locker Locker) *Tracker {
	return &Tracker{repo: repo, locker: locker, lockTTL: defaultLockTTL, clock: time.Now}
}

// Open records a QUEUED task for a job accepted at the ingestion boundary.
// Opening an existing job returns it unchanged.
func (t *Tracker) Open(ctx context.Context, jobID string, payload json.RawMessage, service string) (Task, error) {
	if jobID == "" {
		return Task{}, ErrInvalidJobID
	}
	existing, err := t.repo.Get(ctx, jobID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Task{}, err
	}

	now := t.clock().UTC()
	task := Task{
		JobID:     jobID,
		Status:    StatusQueued,
		Data:      payload,
		Service:   service,
		CreatedOn: now,
		UpdatedOn: now,
	}
	if err := t.repo.Save(ctx, task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// Start moves the job to STARTED, creating it as QUEUED first if unknown.
func (t *Tracker) Start(ctx context.Context, jobID string, payload json.RawMessage, service string) (Task, error) {
	task, err := t.Open(ctx, jobID, payload, service)
	if err != nil {
		return Task{}, err
	}
	if task.Terminal() {
		return task, ErrTaskTerminal
	}

	if len(task.Data) == 0 {
		task.Data = payload
	}
	task.Service = service
	task.Status = StatusStarted
	task.UpdatedOn = t.clock().UTC()
	if err := t.repo.Save(ctx, task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// Finish marks the job DONE, or FAILED when failed is set. An empty result
// keeps whatever was stored. Finishing a terminal task returns it untouched.
func (t *Tracker) Finish(ctx context.Context, task Task, result json.RawMessage, failed bool) (Task, error) {
	if task.JobID == "" {
		return Task{}, ErrInvalidJobID
	}
	stored, err := t.repo.Get(ctx, task.JobID)
	switch {
	case err == nil:
		if stored.Terminal() {
			return stored, nil
		}
	case errors.Is(err, ErrNotFound):
		stored = task
	default:
		return Task{}, err
	}

	if len(result) > 0 {
		stored.Result = result
	}
	stored.Status = StatusDone
	if failed {
		stored.Status = StatusFailed
	}
	stored.UpdatedOn = t.clock().UTC()
	if stored.CreatedOn.IsZero() {
		stored.CreatedOn = stored.UpdatedOn
	}
	if err := t.repo.Save(ctx, stored); err != nil {
		return Task{}, err
	}
	return stored, nil
}

func (t *Tracker) Get(ctx context.Context, jobID string) (Task, error) {
	if jobID == "" {
		return Task{}, ErrNotFound
	}
	return t.repo.Get(ctx, jobID)
}

// List returns at most 100 tasks, newest first.
func (t *Tracker) List(ctx context.Context, status Status) ([]Task, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return t.repo.List(ctx, status, listLimit)
}

// Lock takes the single-writer lock for jobID. The returned release must be
// called once the stage run is over.
func (t *Tracker) Lock(ctx context.Context, jobID string) (func(), error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}
	if t.locker == nil {
		return func() {}, nil
	}

	key := lockKeyPrefix + jobID
	token, ok, err := t.locker.Acquire(ctx, key, t.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// The job may have been cancelled; release anyway, the TTL covers failures.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = t.locker.Release(rctx, key, token)
	}, nil
}
