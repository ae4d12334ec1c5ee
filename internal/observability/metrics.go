package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "billing_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "billing_enqueue_total", Help: "Queue publish results"},
		[]string{"trigger", "result"},
	)
	StageRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "billing_stage_runs_total", Help: "Pipeline stage outcomes"},
		[]string{"trigger", "outcome"},
	)
	StageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "billing_stage_latency_seconds", Help: "Pipeline stage latency"},
		[]string{"trigger"},
	)
	BilledMinor = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "billing_billed_amount_minor_total", Help: "Sum of billed call prices in minor units"},
	)
	QueueBacklog = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "billing_queue_backlog", Help: "Messages waiting per trigger queue"},
		[]string{"trigger"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Enqueues, StageRuns, StageLatency, BilledMinor, QueueBacklog)
}
