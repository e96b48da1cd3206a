package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/labquiz/internal/config"
	"github.com/stemsi/labquiz/internal/model"
)

// RedisTokenStore keeps retake tokens in a single Redis hash, field = student id.
// HDEL is atomic, so Delete reports true to exactly one caller.
type RedisTokenStore struct {
	rdb *redis.Client
	key string
}

// NewRedisTokenStore creates a new RedisTokenStore.
func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, key: config.CacheKey.RetakeTokensKey()}
}

func (s *RedisTokenStore) Put(ctx context.Context, tok model.RetakeToken) error {
	data, err := json.Marshal(toEntry(tok))
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.key, tok.StudentID, data).Err(); err != nil {
		return fmt.Errorf("store retake token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Get(ctx context.Context, studentID string) (model.RetakeToken, error) {
	raw, err := s.rdb.HGet(ctx, s.key, studentID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.RetakeToken{}, ErrTokenNotFound
		}
		return model.RetakeToken{}, fmt.Errorf("get retake token: %w", err)
	}

	var e tokenEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Token == "" {
		// A bare string value still authorizes a retake.
		e = tokenEntry{Token: raw}
	}
	return fromEntry(studentID, e), nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, studentID string) (bool, error) {
	n, err := s.rdb.HDel(ctx, s.key, studentID).Result()
	if err != nil {
		return false, fmt.Errorf("delete retake token: %w", err)
	}
	return n == 1, nil
}

// Reset is a no-op: a Redis hash has no schema to repair.
func (s *RedisTokenStore) Reset(_ context.Context) error {
	return nil
}
