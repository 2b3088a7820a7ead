package rag_augur

import (
	"context"
	"time"

	"legal-rag/internal/domain"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedEncoder memoises embeddings per text. Encoders are deterministic, so
// repeated queries and re-ingested chunks skip the model.
type CachedEncoder struct {
	inner domain.VectorEncoder
	cache *expirable.LRU[string, []float32]
}

// NewCachedEncoder wraps inner with an LRU of size entries expiring after ttl.
func NewCachedEncoder(inner domain.VectorEncoder, size int, ttl time.Duration) *CachedEncoder {
	return &CachedEncoder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Encode serves cached texts and sends the distinct misses to the wrapped encoder in one call.
func (c *CachedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var misses []string

	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		if _, seen := missing[text]; !seen {
			misses = append(misses, text)
		}
		missing[text] = append(missing[text], i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Encode(ctx, misses)
	if err != nil {
		return nil, err
	}
	for j, text := range misses {
		if j >= len(vecs) {
			break
		}
		c.cache.Add(text, vecs[j])
		for _, i := range missing[text] {
			out[i] = vecs[j]
		}
	}
	return out, nil
}

func (c *CachedEncoder) Version() string {
	return c.inner.Version()
}

// Len reports the number of cached embeddings.
func (c *CachedEncoder) Len() int {
	return c.cache.Len()
}

var _ domain.VectorEncoder = (*CachedEncoder)(nil)
