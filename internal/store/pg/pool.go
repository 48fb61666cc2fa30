package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"callagent/internal/config"
)

// Open builds a pool from cfg and checks that the database answers before returning it.
func Open(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func poolConfig(cfg config.DBConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DB_DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}

	durations := []struct {
		env string
		raw string
		dst *time.Duration
	}{
		{"DB_POOL_MAX_CONN_LIFETIME", cfg.MaxConnLifetime, &pc.MaxConnLifetime},
		{"DB_POOL_MAX_CONN_IDLE_TIME", cfg.MaxConnIdleTime, &pc.MaxConnIdleTime},
		{"DB_POOL_HEALTH_CHECK_PERIOD", cfg.HealthCheckPeriod, &pc.HealthCheckPeriod},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = v
	}
	return pc, nil
}
