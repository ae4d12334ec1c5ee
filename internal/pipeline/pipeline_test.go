package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"telephone-billing/internal/tasks"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

// echoStage forwards its payload; behavior is steered by the payload text.
type echoStage struct {
	Job
	calls []string
	body  map[string]any
}

func (s *echoStage) Start(ctx context.Context) error {
	s.calls = append(s.calls, "start")
	return s.Job.Start(ctx)
}

func (s *echoStage) Obtain(ctx context.Context) error {
	s.calls = append(s.calls, "obtain")
	return s.Decode(&s.body)
}

func (s *echoStage) Validate(ctx context.Context) error {
	s.calls = append(s.calls, "validate")
	if _, ok := s.body["bad"]; ok {
		return Reject(map[string][]string{"bad": {"This field is not allowed."}})
	}
	return nil
}

func (s *echoStage) Transform(ctx context.Context) error {
	s.calls = append(s.calls, "transform")
	if _, ok := s.body["boom"]; ok {
		return errors.New("storage offline")
	}
	return nil
}

func (s *echoStage) Persist(ctx context.Context) error {
	s.calls = append(s.calls, "persist")
	s.Result = map[string]string{"url": "/echo/1"}
	return nil
}

func (s *echoStage) Finish(ctx context.Context, cause error) error {
	s.calls = append(s.calls, "finish")
	return s.Job.Finish(ctx, cause)
}

func (s *echoStage) Propagate(ctx context.Context) error {
	s.calls = append(s.calls, "propagate")
	return s.Emit(ctx, s.body)
}

type harness struct {
	tracker *tasks.Tracker
	pub     *recordingPublisher
	last    *echoStage
}

func newHarness() *harness {
	return &harness{
		tracker: tasks.NewTracker(tasks.NewMemoryRepo(), tasks.NewMemoryLocker()),
		pub:     &recordingPublisher{},
	}
}

func (h *harness) registration(trigger, queue string) Registration {
	return Registration{
		Trigger: trigger,
		Queue:   queue,
		New: func(msg Message) Stage {
			h.last = &echoStage{Job: NewJob(h.tracker, h.pub, "EchoService", queue, msg)}
			return h.last
		},
	}
}

func TestRun_HappyPathOrderAndChaining(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	d, err := NewDispatcher(h.registration("echo", "echo-done"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if err := d.Dispatch(ctx, Message{Payload: json.RawMessage(`{"a":1}`), Trigger: "echo", JobID: "job-1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	want := "start,obtain,validate,transform,persist,propagate,finish"
	if got := strings.Join(h.last.calls, ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	task, _ := h.tracker.Get(ctx, "job-1")
	if task.Status != tasks.StatusDone {
		t.Fatalf("expected DONE, got %s", task.Status)
	}
	if string(task.Result) != `{"url":"/echo/1"}` {
		t.Fatalf("unexpected result %s", task.Result)
	}

	if len(h.pub.msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(h.pub.msgs))
	}
	next := h.pub.msgs[0]
	if next.Trigger != "echo-done" {
		t.Fatalf("expected trigger echo-done, got %q", next.Trigger)
	}
	if next.JobID == "" || next.JobID == "job-1" {
		t.Fatalf("expected a fresh job id, got %q", next.JobID)
	}
}

func TestRun_RejectionRecoveredIntoFailedTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	d, _ := NewDispatcher(h.registration("echo", "echo-done"))

	if err := d.Dispatch(ctx, Message{Payload: json.RawMessage(`{"bad":true}`), Trigger: "echo", JobID: "job-1"}); err != nil {
		t.Fatalf("expected rejection to be swallowed, got %v", err)
	}

	want := "start,obtain,validate,finish"
	if got := strings.Join(h.last.calls, ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	task, _ := h.tracker.Get(ctx, "job-1")
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected FAILED, got %s", task.Status)
	}
	if string(task.Result) != `{"bad":["This field is not allowed."]}` {
		t.Fatalf("unexpected result %s", task.Result)
	}
	if len(h.pub.msgs) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestRun_MalformedPayloadRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	d, _ := NewDispatcher(h.registration("echo", "echo-done"))

	if err := d.Dispatch(ctx, Message{Payload: json.RawMessage(`[1,2`), Trigger: "echo", JobID: "job-1"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	task, _ := h.tracker.Get(ctx, "job-1")
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected FAILED, got %s", task.Status)
	}
}

func TestRun_UnexpectedErrorFailsTaskAndEscapes(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	d, _ := NewDispatcher(h.registration("echo", "echo-done"))

	err := d.Dispatch(ctx, Message{Payload: json.RawMessage(`{"boom":true}`), Trigger: "echo", JobID: "job-1"})
	if err == nil || !strings.Contains(err.Error(), "storage offline") {
		t.Fatalf("expected storage error, got %v", err)
	}
	task, _ := h.tracker.Get(ctx, "job-1")
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected FAILED rather than stuck STARTED, got %s", task.Status)
	}
	if string(task.Result) != `{"error":"storage offline"}` {
		t.Fatalf("unexpected result %s", task.Result)
	}
}

func TestRun_PublishFailureFailsTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.pub.err = errors.New("redis: connection refused")
	d, _ := NewDispatcher(h.registration("echo", "echo-done"))

	err := d.Dispatch(ctx, Message{Payload: json.RawMessage(`{"a":1}`), Trigger: "echo", JobID: "job-1"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if got := strings.Join(h.last.calls, ","); got != "start,obtain,validate,transform,persist,propagate,finish" {
		t.Fatalf("unexpected order %s", got)
	}

	task, _ := h.tracker.Get(ctx, "job-1")
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected FAILED when the successor was not queued, got %s", task.Status)
	}
	if string(task.Result) != `{"error":"pipeline: propagate: redis: connection refused"}` {
		t.Fatalf("unexpected result %s", task.Result)
	}
}

func TestRun_TerminalJobSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	d, _ := NewDispatcher(h.registration("echo", "echo-done"))
	msg := Message{Payload: json.RawMessage(`{"a":1}`), Trigger: "echo", JobID: "job-1"}

	_ = d.Dispatch(ctx, msg)
	if err := d.Dispatch(ctx, msg); err != nil {
		t.Fatalf("expected redelivery to be skipped, got %v", err)
	}
	if got := strings.Join(h.last.calls, ","); got != "start" {
		t.Fatalf("expected only start on redelivery, got %s", got)
	}
	if len(h.pub.msgs) != 1 {
		t.Fatalf("expected a single propagation, got %d", len(h.pub.msgs))
	}
}

func TestRun_LockedJobDeferred(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	d, _ := NewDispatcher(h.registration("echo", "echo-done"))

	release, err := h.tracker.Lock(ctx, "job-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer release()

	err = d.Dispatch(ctx, Message{Payload: json.RawMessage(`{}`), Trigger: "echo", JobID: "job-1"})
	if !errors.Is(err, tasks.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if _, err := h.tracker.Get(ctx, "job-1"); !errors.Is(err, tasks.ErrNotFound) {
		t.Fatalf("expected no task written while locked, got %v", err)
	}
}

func TestDispatch_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()

	empty, err := NewDispatcher()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := empty.Dispatch(ctx, Message{Trigger: "echo"}); !errors.Is(err, ErrNoHandlerFound) {
		t.Fatalf("expected ErrNoHandlerFound, got %v", err)
	}

	h := newHarness()
	d, _ := NewDispatcher(h.registration("echo", "echo-done"))
	if err := d.Dispatch(ctx, Message{Trigger: "unknown"}); !errors.Is(err, ErrNoMatchingTrigger) {
		t.Fatalf("expected ErrNoMatchingTrigger, got %v", err)
	}
}

func TestNewDispatcher_RejectsDuplicateAndIncomplete(t *testing.T) {
	h := newHarness()
	if _, err := NewDispatcher(h.registration("echo", "a"), h.registration("echo", "b")); !errors.Is(err, ErrDuplicateTrigger) {
		t.Fatalf("expected ErrDuplicateTrigger, got %v", err)
	}
	if _, err := NewDispatcher(Registration{Trigger: "echo"}); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("expected ErrInvalidRegistration, got %v", err)
	}
}

func TestDispatcher_Triggers(t *testing.T) {
	h := newHarness()
	d, _ := NewDispatcher(h.registration("b", "b-done"), h.registration("a", "a-done"))
	got := strings.Join(d.Triggers(), ",")
	if got != "a,b" {
		t.Fatalf("expected a,b got %s", got)
	}
}
