package queue

import (
	"context"
	"sync"
	"time"

	"telephone-billing/internal/pipeline"
)

// MemoryQueue is a process-local queue with the same semantics as RedisQueue.
type MemoryQueue struct {
	mu    sync.Mutex
	lists map[string][]pipeline.Message
	wake  chan struct{}

	PopTimeout time.Duration
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		lists:      map[string][]pipeline.Message{},
		wake:       make(chan struct{}),
		PopTimeout: 50 * time.Millisecond,
	}
}

func (q *MemoryQueue) Publish(ctx context.Context, msg pipeline.Message) error {
	if msg.Trigger == "" {
		return ErrMalformedMessage
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lists[msg.Trigger] = append(q.lists[msg.Trigger], msg)
	close(q.wake)
	q.wake = make(chan struct{})
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, triggers []string) (pipeline.Message, bool, error) {
	timer := time.NewTimer(q.PopTimeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		for _, t := range triggers {
			if l := q.lists[t]; len(l) > 0 {
				msg := l[0]
				q.lists[t] = l[1:]
				q.mu.Unlock()
				return msg, true, nil
			}
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return pipeline.Message{}, false, ctx.Err()
		case <-timer.C:
			return pipeline.Message{}, false, nil
		case <-wake:
		}
	}
}

func (q *MemoryQueue) Len(trigger string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lists[trigger])
}
