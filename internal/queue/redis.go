package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"telephone-billing/internal/observability"
	"telephone-billing/internal/pipeline"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "telephone:queue:"

var ErrMalformedMessage = errors.New("queue: malformed message")

// Key is the Redis list holding messages for trigger.
func Key(trigger string) string { return keyPrefix + trigger }

// RedisQueue is a FIFO per trigger on Redis lists: RPUSH to publish, BLPOP to
// consume.
type RedisQueue struct {
	rdb *redis.Client

	// PopTimeout bounds one BLPOP so consumers can observe shutdown.
	PopTimeout time.Duration
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb, PopTimeout: 2 * time.Second}
}

func (q *RedisQueue) Publish(ctx context.Context, msg pipeline.Message) error {
	if msg.Trigger == "" {
		return fmt.Errorf("%w: trigger required", ErrMalformedMessage)
	}
	b, err := json.Marshal(msg)
	if err != nil {
		observability.Enqueues.WithLabelValues(msg.Trigger, "encode_error").Inc()
		return err
	}
	if err := q.rdb.RPush(ctx, Key(msg.Trigger), b).Err(); err != nil {
		observability.Enqueues.WithLabelValues(msg.Trigger, "error").Inc()
		return err
	}
	observability.Enqueues.WithLabelValues(msg.Trigger, "ok").Inc()
	return nil
}

// Pop waits up to PopTimeout for a message on any of triggers, checked in
// order. ok is false when nothing arrived.
func (q *RedisQueue) Pop(ctx context.Context, triggers []string) (pipeline.Message, bool, error) {
	if len(triggers) == 0 {
		return pipeline.Message{}, false, errors.New("queue: no triggers to consume")
	}
	keys := make([]string, len(triggers))
	for i, t := range triggers {
		keys[i] = Key(t)
	}

	res, err := q.rdb.BLPop(ctx, q.PopTimeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pipeline.Message{}, false, nil
		}
		return pipeline.Message{}, false, err
	}
	// res = [key, value]
	if len(res) != 2 {
		return pipeline.Message{}, false, fmt.Errorf("%w: unexpected BLPOP reply", ErrMalformedMessage)
	}
	msg, err := decode(res[1])
	if err != nil {
		return pipeline.Message{}, false, err
	}
	if msg.Trigger == "" {
		msg.Trigger = strings.TrimPrefix(res[0], keyPrefix)
	}
	return msg, true, nil
}

// Len reports the backlog for trigger.
func (q *RedisQueue) Len(ctx context.Context, trigger string) (int64, error) {
	return q.rdb.LLen(ctx, Key(trigger)).Result()
}

func decode(raw string) (pipeline.Message, error) {
	var msg pipeline.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return pipeline.Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}
