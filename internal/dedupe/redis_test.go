package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ any, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestClaim(t *testing.T) {
	rdb := &fakeRedis{keys: map[string]time.Duration{}}
	d := &RedisDeduper{Client: rdb, Prefix: "p:"}

	first, err := d.Claim(context.Background(), "vapi:call-1:tool-calls:tc-1")
	if err != nil || !first {
		t.Fatalf("expected first claim to win, got %v %v", first, err)
	}
	again, err := d.Claim(context.Background(), "vapi:call-1:tool-calls:tc-1")
	if err != nil || again {
		t.Fatalf("expected second claim to lose, got %v %v", again, err)
	}
	if ttl := rdb.keys["p:vapi:call-1:tool-calls:tc-1"]; ttl != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", ttl)
	}
}

func TestReleaseAllowsReclaim(t *testing.T) {
	rdb := &fakeRedis{keys: map[string]time.Duration{}}
	d := &RedisDeduper{Client: rdb, Prefix: "p:"}
	ctx := context.Background()

	if ok, _ := d.Claim(ctx, "k"); !ok {
		t.Fatalf("expected first claim to win")
	}
	if err := d.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := rdb.keys["p:k"]; ok {
		t.Fatalf("expected key to be deleted")
	}
	if ok, err := d.Claim(ctx, "k"); err != nil || !ok {
		t.Fatalf("expected claim after release to win, got %v %v", ok, err)
	}

	d.Client = &fakeRedis{err: errors.New("connection refused")}
	if err := d.Release(ctx, "k"); err == nil {
		t.Fatalf("expected release error")
	}
}

func TestClaimFailsOpen(t *testing.T) {
	d := &RedisDeduper{Client: &fakeRedis{err: errors.New("connection refused")}}
	ok, err := d.Claim(context.Background(), "k")
	if err == nil || !ok {
		t.Fatalf("expected fail-open claim with error, got %v %v", ok, err)
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}
