package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase/retrieval"
)

// LexicalIndexer is the writable side of the lexical index.
type LexicalIndexer interface {
	Build(docs []domain.LexicalDocument)
	State() retrieval.IndexState
	Size() int
}

// IndexStatus reports the lexical index lifecycle.
type IndexStatus struct {
	State       string    `json:"state"`
	Documents   int       `json:"documents"`
	LastBuiltAt time.Time `json:"last_built_at"`
}

// IndexRebuildUsecase loads every stored chunk and swaps in a new lexical snapshot.
type IndexRebuildUsecase interface {
	Rebuild(ctx context.Context) (IndexStatus, error)
	Status() IndexStatus
}

type indexRebuildUsecase struct {
	chunks  domain.JudgmentChunkRepository
	index   LexicalIndexer
	logger  *slog.Logger
	rebuild sync.Mutex

	mu      sync.RWMutex
	builtAt time.Time
}

// NewIndexRebuildUsecase creates a new IndexRebuildUsecase.
func NewIndexRebuildUsecase(chunks domain.JudgmentChunkRepository, index LexicalIndexer, logger *slog.Logger) IndexRebuildUsecase {
	return &indexRebuildUsecase{chunks: chunks, index: index, logger: logger}
}

// Rebuild serializes concurrent rebuilds; readers keep using the previous snapshot meanwhile.
func (u *indexRebuildUsecase) Rebuild(ctx context.Context) (IndexStatus, error) {
	u.rebuild.Lock()
	defer u.rebuild.Unlock()

	start := time.Now()
	docs, err := u.chunks.ListLexicalDocuments(ctx)
	if err != nil {
		return u.Status(), fmt.Errorf("failed to load chunk texts: %w", err)
	}
	u.index.Build(docs)

	u.mu.Lock()
	u.builtAt = time.Now()
	u.mu.Unlock()

	u.logger.InfoContext(ctx, "lexical_index_rebuilt",
		slog.Int("documents", len(docs)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return u.Status(), nil
}

func (u *indexRebuildUsecase) Status() IndexStatus {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return IndexStatus{
		State:       u.index.State().String(),
		Documents:   u.index.Size(),
		LastBuiltAt: u.builtAt,
	}
}
