package database

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/config"
)

func TestNewRedisClientRejectsForeignTokenKey(t *testing.T) {
	url := os.Getenv("LABQUIZ_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LABQUIZ_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(opt)
	key := config.CacheKey.RetakeTokensKey()
	t.Cleanup(func() {
		rdb.Del(context.Background(), key)
		rdb.Close()
	})
	cfg := &config.Config{RedisURL: url}

	rdb.Del(ctx, key)
	rdb.HSet(ctx, key, "2021-EE-314", `{"token":"RT-1","created_at":"2026-01-01 09:00:00"}`)
	client, err := NewRedisClient(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("hash key rejected: %v", err)
	}
	client.Close()

	rdb.Set(ctx, key, "not-a-hash", 0)
	if _, err := NewRedisClient(ctx, cfg, zerolog.Nop()); err == nil {
		t.Fatal("string-typed token key accepted")
	}
}
