package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hrygo/aida/ai/core/embedding"
)

// PingText is the input embedded by availability checks.
const PingText = "ping"

// CachedEmbedder memoizes single-text embeddings. Queries repeat often
// in conversation (the same question asked twice, rebuilds of context).
type CachedEmbedder struct {
	embedding.Provider
	cache *LRUCache[string, []float32]
}

var _ embedding.Provider = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps provider with an LRU of the given size and TTL.
func NewCachedEmbedder(provider embedding.Provider, capacity int, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		Provider: provider,
		cache:    NewLRUCache[string, []float32](capacity, ttl),
	}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.Provider.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:16])
}

// Embed returns the cached vector or asks the wrapped provider.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec)
	return vec, nil
}

// Ping asks the wrapped provider for a fresh embedding, bypassing the cache,
// so that it reports whether the endpoint answers right now.
func (c *CachedEmbedder) Ping(ctx context.Context) error {
	_, err := c.Provider.Embed(ctx, PingText)
	return err
}

// Stats exposes the underlying cache counters.
func (c *CachedEmbedder) Stats() (hits, misses uint64) {
	return c.cache.Stats()
}
