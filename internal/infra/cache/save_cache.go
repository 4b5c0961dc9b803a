// Package cache provides an in-process cache for save reads.
// The cache is not the source of truth: every write goes through to the store.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MRamiBalles/ResourceRush/server/internal/infra/storage"
)

// SaveCache is a read-through, write-through LRU in front of a storage.KV.
type SaveCache struct {
	inner  storage.KV
	lru    *lru.Cache[string, []byte]
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// NewSaveCache bounds the cache to size entries.
func NewSaveCache(inner storage.KV, size int) (*SaveCache, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create save cache: %w", err)
	}
	return &SaveCache{inner: inner, lru: c}, nil
}

func (c *SaveCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return append([]byte(nil), v...), nil
	}
	c.misses.Add(1)

	v, err := c.inner.Get(ctx, key)
	if err != nil {
		// Misses, storage.ErrNotFound included, are not cached.
		return nil, err
	}
	c.lru.Add(key, append([]byte(nil), v...))
	return v, nil
}

func (c *SaveCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.inner.Set(ctx, key, value); err != nil {
		// The store may or may not hold the value now; re-read next time.
		c.lru.Remove(key)
		return err
	}
	c.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Invalidate drops a key so the next Get reads the store.
func (c *SaveCache) Invalidate(key string) {
	c.lru.Remove(key)
}

func (c *SaveCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.lru.Len(),
	}
}

var _ storage.KV = (*SaveCache)(nil)
