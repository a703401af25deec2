package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores encoded documents by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryCache is an in-process Cache. Entries expire lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// RedisCache keeps parsed pages in Redis so repeated builds skip the network.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr.
func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the client.
func (r *RedisCache) Close() error { return r.client.Close() }

// CachedSource consults a cache before delegating to another source.
// Cache failures are logged and fall through to the wrapped source.
type CachedSource struct {
	next   Source
	cache  Cache
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewCachedSource wraps next with cache.
func NewCachedSource(next Source, cache Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		prefix: "degreeplan:document:",
		logger: slog.Default().With("component", "document.cache"),
	}
}

func (c *CachedSource) key(ref Ref) string { return c.prefix + ref.Key() }

func (c *CachedSource) Fetch(ctx context.Context, ref Ref) (*Document, error) {
	key := c.key(ref)
	if data, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	} else if ok {
		var doc Document
		if err := json.Unmarshal(data, &doc); err == nil {
			return &doc, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cache entry", "key", key)
	}

	doc, err := c.next.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", ref, err)
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return doc, nil
}
