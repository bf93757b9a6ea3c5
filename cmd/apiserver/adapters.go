package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Readiness-probe adapters for the HealthHandler.

type postgresHealth struct {
	pool *pgxpool.Pool
}

func (h *postgresHealth) Name() string { return "postgres" }

func (h *postgresHealth) Check(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

type redisHealth struct {
	client *redis.Client
}

func (h *redisHealth) Name() string { return "redis" }

func (h *redisHealth) Check(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}
