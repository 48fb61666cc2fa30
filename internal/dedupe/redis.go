// Package dedupe remembers webhook deliveries so a redelivered event is recorded once.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 24 * time.Hour
	DefaultPrefix = "callagent:delivery:"
)

// RedisConfig controls the redis client; zero values get conservative defaults.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis connects and validates the connection with PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

type keyStore interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisDeduper claims delivery keys with SET NX and a TTL.
type RedisDeduper struct {
	Client keyStore
	TTL    time.Duration
	Prefix string
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{Client: client, TTL: ttl, Prefix: DefaultPrefix}
}

// Claim reports true the first time key is seen within the TTL. On a redis error it reports
// true along with the error: a duplicate row is preferable to a lost appointment.
func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ok, err := d.Client.SetNX(ctx, d.Prefix+key, 1, ttl).Result()
	if err != nil {
		return true, fmt.Errorf("dedupe claim %q: %w", key, err)
	}
	return ok, nil
}

// Release drops a claim so a redelivery of the same event is accepted again.
func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.Client.Del(ctx, d.Prefix+key).Err(); err != nil {
		return fmt.Errorf("dedupe release %q: %w", key, err)
	}
	return nil
}
