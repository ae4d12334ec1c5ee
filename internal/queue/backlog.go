package queue

import (
	"context"
	"fmt"
	"time"

	"telephone-billing/internal/observability"
	"telephone-billing/pkg/logger"
)

// BacklogSource reports how many messages wait on a trigger queue.
type BacklogSource interface {
	Len(ctx context.Context, trigger string) (int64, error)
}

// SampleBacklog sets the backlog gauge for each trigger once. Triggers that
// could not be read keep their previous value.
func SampleBacklog(ctx context.Context, src BacklogSource, triggers []string) error {
	var firstErr error
	for _, t := range triggers {
		n, err := src.Len(ctx, t)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("queue: backlog %s: %w", t, err)
			}
			continue
		}
		observability.QueueBacklog.WithLabelValues(t).Set(float64(n))
	}
	return firstErr
}

// WatchBacklog samples every interval until ctx is cancelled.
func WatchBacklog(ctx context.Context, src BacklogSource, triggers []string, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Second
	}
	log := logger.From(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := SampleBacklog(ctx, src, triggers); err != nil && ctx.Err() == nil {
			log.Warn("backlog sample failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
