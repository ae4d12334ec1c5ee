package queue

import (
	"context"

	"telephone-billing/internal/pipeline"
)

// RetryPublisher retries transient publish errors with backoff before giving
// up, so a stage only fails its task once the transport stayed down.
type RetryPublisher struct {
	Publisher pipeline.Publisher
	Retry     RetryConfig
}

func (p *RetryPublisher) Publish(ctx context.Context, msg pipeline.Message) error {
	return retryWithBackoff(ctx, p.Retry, func() error {
		return p.Publisher.Publish(ctx, msg)
	})
}
