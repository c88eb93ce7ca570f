package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"partsledger/backend/internal/domain"
)

type RedisBalanceCache struct {
	client *redis.Client
	prefix string
}

func NewRedisBalanceCache(addr string, password string, db int, prefix string) *RedisBalanceCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if prefix == "" {
		prefix = "partsledger"
	}

	return &RedisBalanceCache{client: client, prefix: prefix}
}

func (c *RedisBalanceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBalanceCache) Close() error {
	return c.client.Close()
}

func (c *RedisBalanceCache) Get(ctx context.Context, key string) ([]domain.PartyBalance, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var views []domain.PartyBalance
	if err := json.Unmarshal([]byte(val), &views); err != nil {
		return nil, false, err
	}
	return views, true, nil
}

func (c *RedisBalanceCache) Set(ctx context.Context, key string, value []domain.PartyBalance, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), payload, ttl).Err()
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, c.key(key))
	}
	return c.client.Del(ctx, full...).Err()
}

func (c *RedisBalanceCache) key(key string) string {
	return c.prefix + ":" + key
}
