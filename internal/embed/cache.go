package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PersistentCache is the storage-backed half of the embedding cache: an
// in-process LRU sits in front of it so that a restart doesn't force
// re-embedding everything, but a cold key still resolves without a network
// call once it has ever been computed.
type PersistentCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key string, vector []float32) error
}

// cacheKey returns the cache digest for a (kind, text) pair: sha256 of the
// kind's fixed prefix concatenated with the text, hex-encoded. Document and
// query embeddings of identical text therefore never collide.
func cacheKey(kind Kind, text string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(kind.Prefix()))
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// CachedEmbedder wraps an Embedder with a read-through cache: an in-memory
// LRU in front of an optional persistent store. A miss on both falls through
// to the inner embedder and populates both layers.
type CachedEmbedder struct {
	inner      Embedder
	lru        *lru.Cache[string, []float32]
	persistent PersistentCache
}

// NewCachedEmbedder wraps inner with an LRU of the given size. persistent may
// be nil, in which case the cache is purely in-memory for the process
// lifetime.
func NewCachedEmbedder(inner Embedder, size int, persistent PersistentCache) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1000
	}
	l, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, lru: l, persistent: persistent}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string, kind Kind) ([]float32, error) {
	key := cacheKey(kind, text)

	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	if c.persistent != nil {
		if v, ok, err := c.persistent.Get(ctx, key); err == nil && ok {
			c.lru.Add(key, v)
			return v, nil
		}
	}

	v, err := c.inner.Embed(ctx, text, kind)
	if err != nil {
		return nil, err
	}

	c.lru.Add(key, v)
	if c.persistent != nil {
		_ = c.persistent.Put(ctx, key, v)
	}
	return v, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		key := cacheKey(kind, t)
		if v, ok := c.lru.Get(key); ok {
			out[i] = v
			continue
		}
		if c.persistent != nil {
			if v, ok, err := c.persistent.Get(ctx, key); err == nil && ok {
				c.lru.Add(key, v)
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	computed, err := c.inner.EmbedBatch(ctx, missTexts, kind)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		v := computed[j]
		out[idx] = v
		key := cacheKey(kind, missTexts[j])
		c.lru.Add(key, v)
		if c.persistent != nil {
			_ = c.persistent.Put(ctx, key, v)
		}
	}
	return out, nil
}

func (c *CachedEmbedder) Dimensions() int                      { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string                    { return c.inner.ModelName() }
func (c *CachedEmbedder) Available(ctx context.Context) bool   { return c.inner.Available(ctx) }
func (c *CachedEmbedder) Close() error                         { return c.inner.Close() }

// Inner returns the wrapped embedder, mainly for tests and diagnostics.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }
