// Package cache stores fetched component binaries between runs.
//
// A [Cache] is a flat byte store keyed by strings. Four backends exist:
//
//   - [FileCache]: one file per entry under a directory (the CLI default,
//     ~/.cache/witlink/artifacts)
//   - [RedisCache]: a shared redis instance, for build farms
//   - [MongoCache]: a shared MongoDB collection with a TTL index
//   - [NullCache]: stores nothing (--no-cache)
//
// Caching is an adapter concern. The resolver never reads the cache; only
// fetch adapters do, and a cold cache changes nothing but latency.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry. A ttl of 0 means entries
// never expire. Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Prefixed wraps c so that every key is prefixed with prefix. It lets
// several tools share one redis instance.
type Prefixed struct {
	inner  Cache
	prefix string
}

// NewPrefixed wraps inner. A nil inner is a NullCache.
func NewPrefixed(inner Cache, prefix string) Cache {
	if inner == nil {
		inner = NewNullCache()
	}
	return &Prefixed{inner: inner, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validKey(key); err != nil {
		return nil, false, err
	}
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := validKey(key); err != nil {
		return err
	}
	return p.inner.Set(ctx, p.prefix+key, data, ttl)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return p.inner.Delete(ctx, p.prefix+key)
}

func (p *Prefixed) Close() error { return p.inner.Close() }

var _ Cache = (*Prefixed)(nil)
