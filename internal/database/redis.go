package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/config"
)

// NewRedisClient creates and validates the client backing the Redis retake token store.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	key := config.CacheKey.RetakeTokensKey()
	kind, err := rdb.Type(ctx, key).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("inspect %s: %w", key, err)
	}
	if kind != "none" && kind != "hash" {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s holds a %s, want a hash", key, kind)
	}
	tokens, err := rdb.HLen(ctx, key).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("count retake tokens: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Int64("retake_tokens", tokens).
		Msg("Redis connected")

	return rdb, nil
}
