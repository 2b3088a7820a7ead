package domain

import (
	"context"
)

// DefaultEmbeddingDimension is the embedding width of the deployed model.
const DefaultEmbeddingDimension = 384

// VectorEncoder defines the interface for generating embeddings (embed).
// Implementations must be deterministic for identical input.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
