package redisstore

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"

	"partsledger/backend/internal/store"
)

var _ store.Backend = (*Store)(nil)

type Store struct {
	client *redis.Client
	prefix string
}

func New(addr string, password string, db int, prefix string) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(client, prefix)
}

func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "partsledger"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.recordKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Store) Write(ctx context.Context, name string, payload []byte) error {
	return s.client.Set(ctx, s.recordKey(name), payload, 0).Err()
}

// WriteAll queues every SET inside MULTI/EXEC.
func (s *Store) WriteAll(ctx context.Context, payloads map[string][]byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, payload := range payloads {
			pipe.Set(ctx, s.recordKey(name), payload, 0)
		}
		return nil
	})
	return err
}

func (s *Store) Increment(ctx context.Context, name string) (int64, error) {
	return s.client.Incr(ctx, s.counterKey(name)).Result()
}

func (s *Store) recordKey(name string) string {
	return s.prefix + ":record:" + name
}

func (s *Store) counterKey(name string) string {
	return s.prefix + ":counter:" + name
}
