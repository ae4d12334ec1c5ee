package bills

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"telephone-billing/internal/pipeline"
	"telephone-billing/internal/tasks"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []pipeline.Message
}

func (p *capturePublisher) Publish(ctx context.Context, msg pipeline.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func newBillDispatcher(t *testing.T) (*pipeline.Dispatcher, *tasks.Tracker, *capturePublisher, *Service) {
	t.Helper()
	svc, _ := newTestService(at(2019, 6, 1, 0, 0, 0))
	tr := tasks.NewTracker(tasks.NewMemoryRepo(), tasks.NewMemoryLocker())
	pub := &capturePublisher{}
	d, err := pipeline.NewDispatcher(Registration(svc, tr, pub))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return d, tr, pub, svc
}

func TestBillStage_BillsConsolidatedCall(t *testing.T) {
	ctx := context.Background()
	d, tr, pub, svc := newBillDispatcher(t)

	body := `{"url":"/calls/69","call_id":69,"start_timestamp":"2019-04-26T21:57:13Z","stop_timestamp":"2019-04-26T22:17:13Z","source":"99988526423","destination":"9933468278"}`
	if err := d.Dispatch(ctx, pipeline.Message{Payload: json.RawMessage(body), Trigger: pipeline.TriggerCallDone, JobID: "job-1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	task, _ := tr.Get(ctx, "job-1")
	if task.Status != tasks.StatusDone || string(task.Result) != `{"url":"/bills/99988526423"}` {
		t.Fatalf("unexpected task %+v", task)
	}

	if len(pub.msgs) != 1 || pub.msgs[0].Trigger != pipeline.TriggerBillDone {
		t.Fatalf("expected one bill-service-done message, got %+v", pub.msgs)
	}
	var out BillMessage
	if err := json.Unmarshal(pub.msgs[0].Payload, &out); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if out.CallPrice != "R$ 0,54" || out.CallDuration != "0h20m00s" || out.SourceCallURL != "/calls/69" {
		t.Fatalf("unexpected bill %+v", out)
	}

	st, err := svc.GetBill(ctx, subscriber, "Apr", "2019")
	if err != nil || len(st.Calls) != 1 {
		t.Fatalf("expected one billed call, got %+v err %v", st, err)
	}
}

func TestBillStage_RedeliveredCallBilledOnce(t *testing.T) {
	ctx := context.Background()
	d, _, _, svc := newBillDispatcher(t)

	body := `{"call_id":69,"start_timestamp":"2019-04-26T21:57:13Z","stop_timestamp":"2019-04-26T22:17:13Z","source":"99988526423","destination":"9933468278"}`
	for _, job := range []string{"job-1", "job-2"} {
		if err := d.Dispatch(ctx, pipeline.Message{Payload: json.RawMessage(body), Trigger: pipeline.TriggerCallDone, JobID: job}); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	st, _ := svc.GetBill(ctx, subscriber, "Apr", "2019")
	if len(st.Calls) != 1 {
		t.Fatalf("expected a single bill, got %d", len(st.Calls))
	}
}

func TestBillStage_RejectsPartialCall(t *testing.T) {
	ctx := context.Background()
	d, tr, pub, _ := newBillDispatcher(t)

	body := `{"call_id":69,"start_timestamp":"2019-04-26T21:57:13Z","stop_timestamp":null}`
	if err := d.Dispatch(ctx, pipeline.Message{Payload: json.RawMessage(body), Trigger: pipeline.TriggerCallDone, JobID: "job-1"}); err != nil {
		t.Fatalf("expected rejection to be swallowed, got %v", err)
	}
	task, _ := tr.Get(ctx, "job-1")
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected FAILED, got %s", task.Status)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestBillStage_ReversedIntervalEscapes(t *testing.T) {
	ctx := context.Background()
	d, tr, _, _ := newBillDispatcher(t)

	body := `{"call_id":5,"start_timestamp":"2019-04-26T22:17:13Z","stop_timestamp":"2019-04-26T21:57:13Z","source":"99988526423","destination":"9933468278"}`
	err := d.Dispatch(ctx, pipeline.Message{Payload: json.RawMessage(body), Trigger: pipeline.TriggerCallDone, JobID: "job-1"})
	if err == nil || !strings.Contains(err.Error(), "stop must be after start") {
		t.Fatalf("expected interval error, got %v", err)
	}
	task, _ := tr.Get(ctx, "job-1")
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected FAILED, got %s", task.Status)
	}
}
