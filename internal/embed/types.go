// Package embed provides the embedding adapter contract used by the store
// pipeline and hybrid search: embed(text, kind) -> unit vector of length D.
package embed

import (
	"context"
	"math"
)

// Kind selects which fixed instruction prefix is concatenated before text.
// It is part of the cache key because a document and a query
// embedding of the same text are deliberately different vectors.
type Kind string

const (
	KindDocument Kind = "document"
	KindQuery    Kind = "query"
)

// Prefix returns the fixed byte string concatenated before text for this kind.
func (k Kind) Prefix() string {
	switch k {
	case KindQuery:
		return "Represent this query for retrieving relevant memories: "
	default:
		return "Represent this memory for retrieval: "
	}
}

// Embedder generates unit-length vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string, kind Kind) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, kind Kind) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector scales v to unit L2 norm. The zero vector is returned
// unchanged (it has no direction to normalize to).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
