package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/illegalcall/palmistry/internal/config"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(ctx context.Context, dbCfg config.DatabaseConfig, redisCfg config.RedisConfig) (*Clients, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

func (c *Clients) Close() {
	if err := c.Redis.Close(); err != nil {
		slog.Error("Failed to close Redis", "error", err)
	}
	if err := c.DB.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// Schema is applied at startup. Every statement is idempotent.
var Schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		analysis_credits INTEGER NOT NULL DEFAULT 0 CHECK (analysis_credits >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id TEXT NOT NULL,
		image_url TEXT NOT NULL,
		additional_notes TEXT NOT NULL DEFAULT '',
		analysis_result JSONB NOT NULL,
		language TEXT NOT NULL DEFAULT 'pl',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS analyses_user_created_idx ON analyses (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id TEXT NOT NULL,
		stripe_session_id TEXT NOT NULL UNIQUE,
		stripe_payment_intent_id TEXT,
		amount_cents BIGINT,
		credits_purchased INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func (c *Clients) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, c.DB)
}

func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	slog.Info("✅ Schema is ready!")
	return nil
}
