package remote

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheBackend is the minimal contract the remote build-cache needs;
// RedisCacheBackend is its production implementation and is also
// satisfied by a miniredis-backed client in tests.
type CacheBackend interface {
	SetKey(ctx context.Context, key, hash string, ttl time.Duration) error
	GetKey(ctx context.Context, key string) (string, bool, error)
	DeleteKey(ctx context.Context, key string) error
}

// RedisCacheBackend stores cache-key -> store-hash lookups in redis,
// letting multiple workspaces on the same build farm share a build
// cache without sharing a filesystem.
type RedisCacheBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisCacheBackend connects to addr (host:port); password and db
// come from the standard META_REMOTE_CACHE_* environment, not from
// this call's arguments, so no secret is ever threaded through code
// that might log it.
func NewRedisCacheBackend(addr, prefix string, opts *redis.Options) *RedisCacheBackend {
	if opts == nil {
		opts = &redis.Options{Addr: addr}
	} else {
		opts.Addr = addr
	}
	return &RedisCacheBackend{client: redis.NewClient(opts), prefix: prefix}
}

func (r *RedisCacheBackend) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisCacheBackend) SetKey(ctx context.Context, key, hash string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), hash, ttl).Err()
}

func (r *RedisCacheBackend) GetKey(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisCacheBackend) DeleteKey(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisCacheBackend) Close() error { return r.client.Close() }
