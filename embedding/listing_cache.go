package embedding

import (
	"context"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/metrics"
)

// ListingCache 缓存房源描述的向量，key 为房源 id，同时记录描述的哈希：
// 描述变化后哈希不匹配，视为未命中并覆盖旧向量。
// 并发的相同未命中只会触发一次向量化。
type ListingCache struct {
	embedder core.Embedder

	mu      sync.RWMutex
	entries map[string]cachedVector
	group   singleflight.Group
}

type cachedVector struct {
	hash uint64
	vec  []float32
}

// NewListingCache 创建房源向量缓存
func NewListingCache(embedder core.Embedder) *ListingCache {
	return &ListingCache{
		embedder: embedder,
		entries:  make(map[string]cachedVector),
	}
}

// Embed 返回房源描述的向量，返回值不得修改
func (c *ListingCache) Embed(ctx context.Context, l core.Listing) ([]float32, error) {
	h := xxhash.Sum64String(l.Description)

	c.mu.RLock()
	e, ok := c.entries[l.ID]
	c.mu.RUnlock()
	if ok && e.hash == h {
		metrics.EmbeddingCacheHits.Inc()
		return e.vec, nil
	}
	metrics.EmbeddingCacheMisses.Inc()

	key := l.ID + "#" + strconv.FormatUint(h, 16)
	// 共享的向量化不随首个调用方取消，调用方取消时只有自己提前返回
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		vec, err := c.embedder.Embed(shared, l.Description)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[l.ID] = cachedVector{hash: h, vec: vec}
		c.mu.Unlock()
		return vec, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate 删除某个房源的缓存向量
func (c *ListingCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len 返回缓存的向量数
func (c *ListingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
