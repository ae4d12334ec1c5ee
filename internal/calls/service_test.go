package calls

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func startEvent(callID int64, at time.Time) Registry {
	return Registry{Type: EventStart, Timestamp: at, CallID: callID, Source: "99988526423", Destination: "9993468278"}
}

func stopEvent(callID int64, at time.Time) Registry {
	return Registry{Type: EventStop, Timestamp: at, CallID: callID}
}

var (
	t0 = time.Date(2017, 12, 12, 15, 7, 58, 0, time.UTC)
	t1 = time.Date(2017, 12, 12, 15, 12, 56, 0, time.UTC)
)

func TestConsolidate_Transitions(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	c, err := svc.Consolidate(ctx, startEvent(1, t0))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.State() != StateStartOnly {
		t.Fatalf("expected start-only, got %s", c.State())
	}

	c, _ = svc.Consolidate(ctx, stopEvent(1, t1))
	if c.State() != StateConsolidated {
		t.Fatalf("expected consolidated, got %s", c.State())
	}
	if c.Duration() != 4*time.Minute+58*time.Second {
		t.Fatalf("unexpected duration %s", c.Duration())
	}

	c, _ = svc.Consolidate(ctx, stopEvent(2, t1))
	if c.State() != StateStopOnly {
		t.Fatalf("expected stop-only, got %s", c.State())
	}
	if c.Source != "" {
		t.Fatalf("stop must not set numbers")
	}
}

func TestConsolidate_OrderIndependent(t *testing.T) {
	ctx := context.Background()

	a := NewService(NewMemoryRepo())
	_, _ = a.Consolidate(ctx, startEvent(7, t0))
	ab, _ := a.Consolidate(ctx, stopEvent(7, t1))

	b := NewService(NewMemoryRepo())
	_, _ = b.Consolidate(ctx, stopEvent(7, t1))
	ba, _ := b.Consolidate(ctx, startEvent(7, t0))

	if !reflect.DeepEqual(ab, ba) {
		t.Fatalf("expected equal calls, got %+v and %+v", ab, ba)
	}
}

func TestConsolidate_DuplicateStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	once, _ := svc.Consolidate(ctx, startEvent(3, t0))
	twice, _ := svc.Consolidate(ctx, startEvent(3, t0))
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected same state, got %+v and %+v", once, twice)
	}

	_, _ = svc.Consolidate(ctx, stopEvent(3, t1))
	again, _ := svc.Consolidate(ctx, startEvent(3, t0))
	if !again.Consolidated() {
		t.Fatalf("consolidated call must stay consolidated")
	}
}

func TestConsolidate_MissingCallID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if _, err := svc.Consolidate(ctx, startEvent(0, t0)); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if _, err := repo.GetCall(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no call created, got %v", err)
	}
}

func TestConsolidate_ConcurrentHalvesMerge(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(2)
		go func(id int64) { defer wg.Done(); _, _ = svc.Consolidate(ctx, startEvent(id, t0)) }(i)
		go func(id int64) { defer wg.Done(); _, _ = svc.Consolidate(ctx, stopEvent(id, t1)) }(i)
	}
	wg.Wait()

	list, _ := svc.ListConsolidated(ctx)
	if len(list) != 50 {
		t.Fatalf("expected 50 consolidated calls, got %d", len(list))
	}
}

func TestGetConsolidated_HidesPartialCalls(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	_, _ = svc.Consolidate(ctx, startEvent(1, t0))
	if _, err := svc.GetConsolidated(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for partial call, got %v", err)
	}
	list, _ := svc.ListConsolidated(ctx)
	if len(list) != 0 {
		t.Fatalf("expected no listed calls, got %d", len(list))
	}

	_, _ = svc.Consolidate(ctx, stopEvent(1, t1))
	c, err := svc.GetConsolidated(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.URL() != "/calls/1" {
		t.Fatalf("unexpected url %s", c.URL())
	}
}

func TestRecord_AssignsIDs(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	r1, _ := svc.Record(ctx, startEvent(1, t0))
	r2, _ := svc.Record(ctx, stopEvent(1, t1))
	if r1.ID != 1 || r2.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", r1.ID, r2.ID)
	}
	got, err := svc.GetRegistry(ctx, 2)
	if err != nil || got.Type != EventStop {
		t.Fatalf("unexpected registry %+v, err %v", got, err)
	}
	if got.URL() != "/registry/2" {
		t.Fatalf("unexpected url %s", got.URL())
	}
	if _, err := svc.GetRegistry(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
