package utils

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.ReadTimeout != 5*time.Second || c.PoolSize != 20 || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestLock_ArgumentChecks(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	cases := []struct {
		name  string
		rdb   *redis.Client
		key   string
		token string
		ttl   time.Duration
	}{
		{"nil client", nil, "k", "t", time.Second},
		{"empty key", rdb, "", "t", time.Second},
		{"empty token", rdb, "k", "", time.Second},
		{"zero ttl", rdb, "k", "t", 0},
	}
	for _, tc := range cases {
		if ok, err := AcquireLock(ctx, tc.rdb, tc.key, tc.token, tc.ttl); err == nil || ok {
			t.Fatalf("%s: expected error, got ok=%v err=%v", tc.name, ok, err)
		}
	}
	if _, err := ReleaseLock(ctx, nil, "k", "t"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := ReleaseLock(ctx, rdb, "k", ""); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
