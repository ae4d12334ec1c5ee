package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"telephone-billing/internal/pipeline"
	"telephone-billing/internal/tasks"
	"telephone-billing/pkg/logger"

	"golang.org/x/time/rate"
)

// Source yields queued messages. ok is false when nothing was available
// within the source's own wait window.
type Source interface {
	Pop(ctx context.Context, triggers []string) (msg pipeline.Message, ok bool, err error)
}

// Worker consumes every trigger the dispatcher knows and runs the matching
// stages. Stages chain by publishing back onto the same transport.
type Worker struct {
	Source     Source
	Publisher  pipeline.Publisher
	Dispatcher *pipeline.Dispatcher

	Concurrency int
	// Limiter caps stage runs per second across the pool; nil disables.
	Limiter *rate.Limiter
	Retry   RetryConfig
	// RequeueDelay spaces out redelivery of a job another worker holds.
	// Zero means defaultRequeueDelay.
	RequeueDelay time.Duration
	Log          *slog.Logger
}

const defaultRequeueDelay = 500 * time.Millisecond

// Run blocks until ctx is cancelled. Jobs already popped run to completion.
func (w *Worker) Run(ctx context.Context) error {
	n := w.Concurrency
	if n <= 0 {
		n = 1
	}
	log := w.logger()
	triggers := w.Dispatcher.Triggers()
	log.Info("worker started", "concurrency", n, "triggers", triggers)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, triggers, log.With("worker", id))
		}(i)
	}
	wg.Wait()

	log.Info("worker stopped")
	return nil
}

func (w *Worker) loop(ctx context.Context, triggers []string, log *slog.Logger) {
	for ctx.Err() == nil {
		msg, ok, err := w.pop(ctx, triggers, log)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("queue pop failed", "err", err)
			continue
		}
		if !ok {
			continue
		}
		if w.Limiter != nil {
			if err := w.Limiter.Wait(ctx); err != nil {
				// shutting down with a popped message; put it back
				w.requeue(context.WithoutCancel(ctx), msg, log)
				return
			}
		}
		w.handle(context.WithoutCancel(ctx), msg, log)
	}
}

// Drain processes messages until the source comes back empty and returns how
// many were handled.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	log := w.logger()
	triggers := w.Dispatcher.Triggers()
	n := 0
	for {
		msg, ok, err := w.pop(ctx, triggers, log)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		w.handle(ctx, msg, log)
		n++
	}
}

func (w *Worker) pop(ctx context.Context, triggers []string, log *slog.Logger) (pipeline.Message, bool, error) {
	var (
		msg pipeline.Message
		ok  bool
	)
	err := retryWithBackoff(ctx, w.Retry, func() error {
		var err error
		msg, ok, err = w.Source.Pop(ctx, triggers)
		if errors.Is(err, ErrMalformedMessage) {
			log.Warn("dropping malformed message", "err", err)
			ok = false
			return nil
		}
		return err
	})
	return msg, ok, err
}

func (w *Worker) handle(ctx context.Context, msg pipeline.Message, log *slog.Logger) {
	err := w.Dispatcher.Dispatch(logger.With(ctx, log), msg)
	switch {
	case err == nil:
	case errors.Is(err, tasks.ErrLocked):
		w.backoffLocked(ctx)
		w.requeue(ctx, msg, log)
	default:
		// Failures are recorded on the task; redelivery would not help.
		log.Error("dispatch failed", "trigger", msg.Trigger, "job_id", msg.JobID, "err", err)
	}
}

func (w *Worker) requeue(ctx context.Context, msg pipeline.Message, log *slog.Logger) {
	if w.Publisher == nil {
		return
	}
	if err := w.Publisher.Publish(ctx, msg); err != nil {
		log.Error("requeue failed", "trigger", msg.Trigger, "job_id", msg.JobID, "err", err)
	}
}

// backoffLocked keeps a locked job from spinning between pop and requeue
// while its holder is still running.
func (w *Worker) backoffLocked(ctx context.Context) {
	d := w.RequeueDelay
	if d <= 0 {
		d = defaultRequeueDelay
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) logger() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}
