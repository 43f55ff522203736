package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent, expired or already
// consumed.
var ErrCacheMiss = errors.New("cache: key is missing")

// KVStore is the narrow key-value surface the session store needs. The
// production implementation is redis; tests substitute an in-memory fake.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Update rewrites an existing value keeping its remaining TTL. A missing
	// key is ErrCacheMiss, never a resurrection.
	Update(ctx context.Context, key string, value []byte) error
	// GetDel reads and deletes atomically.
	GetDel(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Incr increments a counter, starting its expiry window on first use.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RedisKV struct {
	client redis.UniversalClient
}

func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return b, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisKV) Update(ctx context.Context, key string, value []byte) error {
	ok, err := r.client.SetXX(ctx, key, value, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("redis setxx failed: %w", err)
	}
	if !ok {
		return ErrCacheMiss
	}
	return nil
}

func (r *RedisKV) GetDel(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel failed: %w", err)
	}
	return b, nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *RedisKV) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("redis expire failed: %w", err)
		}
	}
	return n, nil
}
