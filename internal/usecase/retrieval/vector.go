package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"legal-rag/internal/domain"
)

// VectorSearchMode selects how nearest neighbours are computed.
type VectorSearchMode string

const (
	// VectorSearchAuto uses the native store search when the store supports it.
	VectorSearchAuto      VectorSearchMode = "auto"
	VectorSearchNative    VectorSearchMode = "native"
	VectorSearchInProcess VectorSearchMode = "inprocess"
)

// ParseVectorSearchMode validates a configured mode string.
func ParseVectorSearchMode(s string) (VectorSearchMode, error) {
	switch m := VectorSearchMode(s); m {
	case VectorSearchAuto, VectorSearchNative, VectorSearchInProcess:
		return m, nil
	case "":
		return VectorSearchAuto, nil
	default:
		return "", fmt.Errorf("unknown vector search mode %q", s)
	}
}

// CosineSearcher computes cosine similarity in process over every stored
// embedding. It is used when the store cannot rank by similarity itself.
type CosineSearcher struct {
	scanner domain.EmbeddingScanner
}

// NewCosineSearcher creates a searcher over scanner.
func NewCosineSearcher(scanner domain.EmbeddingScanner) *CosineSearcher {
	return &CosineSearcher{scanner: scanner}
}

// Search returns up to topN chunks whose similarity to query is at least floor,
// ordered by similarity then ascending chunk id.
func (s *CosineSearcher) Search(ctx context.Context, query []float32, topN int, floor float64, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	if topN <= 0 {
		return nil, nil
	}
	var out []domain.RetrievalCandidate
	err := s.scanner.ScanEmbeddings(ctx, filter, func(chunkID int64, embedding []float32) error {
		sim := CosineSimilarity(query, embedding)
		if sim >= floor {
			out = append(out, domain.RetrievalCandidate{ChunkID: chunkID, Score: sim})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", err)
	}

	sortCandidates(out)
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// FallbackSearcher prefers the store's native search and switches to the
// in-process searcher for good once the store reports
// domain.ErrNativeSearchUnavailable.
type FallbackSearcher struct {
	native   domain.VectorSearcher
	fallback domain.VectorSearcher
	disabled atomic.Bool
}

// NewFallbackSearcher creates a searcher used by the auto search mode.
func NewFallbackSearcher(native, fallback domain.VectorSearcher) *FallbackSearcher {
	return &FallbackSearcher{native: native, fallback: fallback}
}

func (s *FallbackSearcher) Search(ctx context.Context, query []float32, topN int, floor float64, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	if !s.disabled.Load() {
		res, err := s.native.Search(ctx, query, topN, floor, filter)
		if !errors.Is(err, domain.ErrNativeSearchUnavailable) {
			return res, err
		}
		s.disabled.Store(true)
	}
	return s.fallback.Search(ctx, query, topN, floor, filter)
}

// Native reports whether searches still go to the store's native search.
func (s *FallbackSearcher) Native() bool {
	return !s.disabled.Load()
}

// VectorRetriever embeds a query and asks a VectorSearcher for its neighbours.
type VectorRetriever struct {
	encoder  domain.VectorEncoder
	searcher domain.VectorSearcher
	floor    float64
}

// NewVectorRetriever creates a retriever with the given similarity floor.
func NewVectorRetriever(encoder domain.VectorEncoder, searcher domain.VectorSearcher, floor float64) *VectorRetriever {
	return &VectorRetriever{encoder: encoder, searcher: searcher, floor: floor}
}

// Retrieve returns up to topN candidates for query. Embedder and store
// failures are returned as *domain.CollaboratorError.
func (v *VectorRetriever) Retrieve(ctx context.Context, query string, topN int, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	embeddings, err := v.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, domain.NewCollaboratorError("embedder", err)
	}
	if len(embeddings) != 1 || len(embeddings[0]) == 0 {
		return nil, domain.NewCollaboratorError("embedder", errors.New("empty embedding returned"))
	}

	results, err := v.searcher.Search(ctx, embeddings[0], topN, v.floor, filter)
	if err != nil {
		return nil, domain.NewCollaboratorError("vector_store", err)
	}
	return results, nil
}
