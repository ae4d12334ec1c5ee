package tasks

import (
	"context"
	"sync"
	"time"

	"telephone-billing/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants exclusive ownership of a key for a bounded time. Acquire
// returns an owner token; Release with a stale token leaves the current
// owner's lock in place.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// RedisLocker is a SET NX PX lock shared by every worker process.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker { return &RedisLocker{rdb: rdb} }

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := utils.AcquireLock(ctx, l.rdb, key, token, ttl)
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	_, err := utils.ReleaseLock(ctx, l.rdb, key, token)
	return err
}

type memLock struct {
	token   string
	expires time.Time
}

// MemoryLocker is a process-local Locker with the same expiry and ownership
// rules as RedisLocker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memLock
	now  func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]memLock{}, now: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = memLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}
