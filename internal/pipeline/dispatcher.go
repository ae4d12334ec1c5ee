package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"telephone-billing/internal/observability"
	"telephone-billing/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNoHandlerFound      = errors.New("pipeline: no handler registered")
	ErrNoMatchingTrigger   = errors.New("pipeline: no handler for trigger")
	ErrDuplicateTrigger    = errors.New("pipeline: duplicate trigger")
	ErrInvalidRegistration = errors.New("pipeline: invalid registration")
)

// Registration binds a trigger tag to a stage constructor.
type Registration struct {
	Trigger string
	Queue   string
	New     func(Message) Stage
}

// Dispatcher routes messages to stages by trigger tag. The table is fixed at
// construction.
type Dispatcher struct {
	handlers map[string]Registration
}

// NewDispatcher builds the trigger table. Two registrations for the same
// trigger are a configuration error.
func NewDispatcher(regs ...Registration) (*Dispatcher, error) {
	d := &Dispatcher{handlers: make(map[string]Registration, len(regs))}
	for _, r := range regs {
		if r.Trigger == "" || r.Queue == "" || r.New == nil {
			return nil, fmt.Errorf("%w: trigger=%q queue=%q", ErrInvalidRegistration, r.Trigger, r.Queue)
		}
		if _, ok := d.handlers[r.Trigger]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTrigger, r.Trigger)
		}
		d.handlers[r.Trigger] = r
	}
	return d, nil
}

// Triggers lists the registered trigger tags, sorted.
func (d *Dispatcher) Triggers() []string {
	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the stage registered for msg.Trigger. Rejected input ends in a
// FAILED task and returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	if len(d.handlers) == 0 {
		return ErrNoHandlerFound
	}
	reg, ok := d.handlers[msg.Trigger]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoMatchingTrigger, msg.Trigger)
	}
	if msg.JobID == "" {
		msg.JobID = uuid.NewString()
	}

	log := logger.From(ctx).With("trigger", msg.Trigger, "job_id", msg.JobID)
	start := time.Now()

	outcome, err := Run(logger.With(ctx, log), reg.New(msg))

	observability.StageLatency.WithLabelValues(msg.Trigger).Observe(time.Since(start).Seconds())
	observability.StageRuns.WithLabelValues(msg.Trigger, string(outcome)).Inc()

	switch {
	case outcome == OutcomeDeferred:
		log.Info("job busy, deferring")
	case err != nil:
		log.Error("stage failed", "outcome", outcome, "err", err)
	case outcome == OutcomeRejected:
		log.Info("stage rejected input", "outcome", outcome)
	default:
		log.Debug("stage finished", "outcome", outcome)
	}
	return err
}
