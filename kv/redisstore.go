package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a Redis-protocol server (Redis proper
// or DragonflyDB, which speaks the same wire protocol — see the teacher's
// db/dragonflydb.go, which this type generalizes from a pair of free
// functions into a reusable client).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials url (e.g. "redis://localhost:6379/0") and verifies the
// connection with a Ping before returning.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("kv: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kv: connect: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an already-constructed client, used by tests
// to point at a miniredis instance.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) ListAdd(ctx context.Context, key, value string) (int, error) {
	n, err := s.client.RPush(ctx, key, value).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *RedisStore) ListRange(ctx context.Context, key string) ([]string, error) {
	return s.client.LRange(ctx, key, 0, -1).Result()
}

func (s *RedisStore) ListDeleteItem(ctx context.Context, key, value string) (int, bool, error) {
	pos, err := s.client.LPos(ctx, key, value, redis.LPosArgs{}).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if err := s.client.LRem(ctx, key, 1, value).Err(); err != nil {
		return 0, false, err
	}
	return int(pos), true, nil
}

func (s *RedisStore) SetAdd(ctx context.Context, key, member string) error {
	return s.client.SAdd(ctx, key, member).Err()
}

func (s *RedisStore) SetRemove(ctx context.Context, key, member string) error {
	return s.client.SRem(ctx, key, member).Err()
}

func (s *RedisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *RedisStore) SetIntersect(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if len(keys) == 1 {
		return s.SetMembers(ctx, keys[0])
	}
	return s.client.SInter(ctx, keys...).Result()
}

func (s *RedisStore) AtomicAdd(ctx context.Context, key string, delta int64) (int64, error) {
	return s.client.IncrBy(ctx, key, delta).Result()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
