package calls

import (
	"context"
	"fmt"
)

// Service consolidates registries into calls and serves consolidated calls.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// Record persists a validated registry.
func (s *Service) Record(ctx context.Context, r Registry) (Registry, error) {
	if err := checkEvent(r); err != nil {
		return Registry{}, err
	}
	return s.repo.InsertRegistry(ctx, r)
}

func (s *Service) GetRegistry(ctx context.Context, id int64) (Registry, error) {
	if id <= 0 {
		return Registry{}, ErrNotFound
	}
	return s.repo.GetRegistry(ctx, id)
}

// Consolidate applies one registry to the call with the same call_id.
//
//	absent       + start -> start-only
//	absent       + stop  -> stop-only
//	start-only   + stop  -> consolidated
//	stop-only    + start -> consolidated
//	consolidated + any   -> consolidated (matching half overwritten)
//
// Arrival order does not matter and redelivery is harmless.
func (s *Service) Consolidate(ctx context.Context, r Registry) (Call, error) {
	if err := checkEvent(r); err != nil {
		return Call{}, err
	}

	patch := Call{CallID: r.CallID}
	ts := r.Timestamp
	switch r.Type {
	case EventStart:
		patch.StartTimestamp = &ts
		patch.Source = r.Source
		patch.Destination = r.Destination
	case EventStop:
		patch.StopTimestamp = &ts
	}
	return s.repo.UpsertCall(ctx, patch)
}

// GetConsolidated returns the call only once both halves arrived.
func (s *Service) GetConsolidated(ctx context.Context, callID int64) (Call, error) {
	c, err := s.repo.GetCall(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if !c.Consolidated() {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) ListConsolidated(ctx context.Context) ([]Call, error) {
	return s.repo.ListConsolidatedCalls(ctx)
}

func checkEvent(r Registry) error {
	if r.CallID <= 0 {
		return fmt.Errorf("%w: call_id required", ErrInvalidEvent)
	}
	if r.Type != EventStart && r.Type != EventStop {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, r.Type)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp required", ErrInvalidEvent)
	}
	return nil
}
