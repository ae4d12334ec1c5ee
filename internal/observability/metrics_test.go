package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegister_AllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	StageRuns.WithLabelValues("registry-service", "done").Inc()
	Enqueues.WithLabelValues("registry-service", "ok").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{"billing_stage_runs_total", "billing_enqueue_total"} {
		if !seen[name] {
			t.Fatalf("expected %s to be gathered", name)
		}
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	Register(reg)
}
