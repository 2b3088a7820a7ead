package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"legal-rag/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// Retriever sources reported in HybridResult.Degraded.
const (
	SourceLexical = "lexical"
	SourceVector  = "vector"
	// SourceLexicalNotReady replaces SourceLexical when no index snapshot has been built yet.
	SourceLexicalNotReady = "lexical_index_not_ready"
)

var tracer = otel.Tracer("legal-rag")

// LexicalRetriever ranks chunks by term statistics.
type LexicalRetriever interface {
	Retrieve(query string, topN int) ([]domain.RetrievalCandidate, error)
}

// SemanticRetriever ranks chunks by embedding similarity.
type SemanticRetriever interface {
	Retrieve(ctx context.Context, query string, topN int, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error)
}

// HybridConfig holds fusion parameters.
type HybridConfig struct {
	// RRFK is the fusion damping constant.
	RRFK float64
	// CandidateMultiplier widens each retriever's pool to topN*CandidateMultiplier.
	CandidateMultiplier int
	// Timeout bounds each retriever call. A timed out retriever contributes nothing.
	Timeout time.Duration
}

// DefaultHybridConfig returns k=60, a x5 candidate pool and a 10s timeout.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		RRFK:                DefaultRRFK,
		CandidateMultiplier: 5,
		Timeout:             10 * time.Second,
	}
}

// Validate checks the fusion parameters.
func (c HybridConfig) Validate() error {
	if c.RRFK < 0 {
		return fmt.Errorf("rrf k must be non-negative, got %f", c.RRFK)
	}
	if c.CandidateMultiplier < 1 {
		return fmt.Errorf("candidate multiplier must be at least 1, got %d", c.CandidateMultiplier)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("retriever timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// HybridResult is the fused ranking plus the per-retriever candidates.
// Degraded lists the sources that failed and contributed no candidates.
type HybridResult struct {
	Results  []domain.FusedResult
	Lexical  []domain.RetrievalCandidate
	Vector   []domain.RetrievalCandidate
	Degraded []string
}

// HybridRetriever runs lexical and vector retrieval concurrently and fuses them with RRF.
type HybridRetriever struct {
	lexical LexicalRetriever
	vector  SemanticRetriever
	cfg     HybridConfig
	logger  *slog.Logger
	metrics retrievalMetrics
}

// NewHybridRetriever creates a hybrid retriever.
func NewHybridRetriever(lexical LexicalRetriever, vector SemanticRetriever, cfg HybridConfig, logger *slog.Logger) *HybridRetriever {
	return &HybridRetriever{
		lexical: lexical,
		vector:  vector,
		cfg:     cfg,
		logger:  logger,
		metrics: newRetrievalMetrics(),
	}
}

// Retrieve returns the topN fused chunks for query. A failing retriever is
// degraded to an empty list; domain.ErrRetrievalUnavailable is returned only
// when both fail.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, topN int, filter domain.SearchFilter) (HybridResult, error) {
	if strings.TrimSpace(query) == "" {
		return HybridResult{}, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if topN <= 0 {
		return HybridResult{}, fmt.Errorf("%w: top_n must be positive, got %d", domain.ErrInvalidInput, topN)
	}

	ctx, span := tracer.Start(ctx, "hybrid_retrieve")
	defer span.End()
	start := time.Now()

	pool := topN * h.cfg.CandidateMultiplier
	span.SetAttributes(
		attribute.Int("legal.retrieval.top_n", topN),
		attribute.Int("legal.retrieval.candidate_pool", pool),
	)

	var (
		lexical, vector []domain.RetrievalCandidate
		lexErr, vecErr  error
		g               errgroup.Group
	)
	g.Go(func() error {
		lexical, lexErr = h.withTimeout(ctx, "lexical_retrieve", func(context.Context) ([]domain.RetrievalCandidate, error) {
			return h.lexical.Retrieve(query, pool)
		})
		return nil
	})
	g.Go(func() error {
		vector, vecErr = h.withTimeout(ctx, "vector_retrieve", func(cctx context.Context) ([]domain.RetrievalCandidate, error) {
			return h.vector.Retrieve(cctx, query, pool, filter)
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return HybridResult{}, err
	}

	result := HybridResult{Lexical: lexical, Vector: vector}
	if lexErr != nil {
		result.Lexical = nil
		source := SourceLexical
		if errors.Is(lexErr, domain.ErrIndexNotReady) {
			source = SourceLexicalNotReady
		}
		result.Degraded = append(result.Degraded, source)
		h.degrade(ctx, source, lexErr)
	}
	if vecErr != nil {
		result.Vector = nil
		result.Degraded = append(result.Degraded, SourceVector)
		h.degrade(ctx, SourceVector, vecErr)
	}
	if lexErr != nil && vecErr != nil {
		err := fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, errors.Join(lexErr, vecErr))
		span.RecordError(err)
		span.SetStatus(codes.Error, "all retrievers failed")
		return HybridResult{}, err
	}

	result.Results = FuseRRF(h.cfg.RRFK, topN, result.Lexical, result.Vector)

	h.metrics.retrieveSeconds.Record(ctx, time.Since(start).Seconds())
	h.logger.InfoContext(ctx, "hybrid_rrf_fusion_completed",
		slog.Int("lexical_count", len(result.Lexical)),
		slog.Int("vector_count", len(result.Vector)),
		slog.Int("fused_count", len(result.Results)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return result, nil
}

func (h *HybridRetriever) degrade(ctx context.Context, source string, err error) {
	h.metrics.degradedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	h.logger.WarnContext(ctx, "retriever_degraded",
		slog.String("source", source),
		slog.String("error", err.Error()))
}

type retrieveFunc func(ctx context.Context) ([]domain.RetrievalCandidate, error)

// withTimeout runs fn under the configured timeout inside its own span.
// fn keeps running in the background after a timeout; its result is discarded.
func (h *HybridRetriever) withTimeout(ctx context.Context, spanName string, fn retrieveFunc) ([]domain.RetrievalCandidate, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	type outcome struct {
		candidates []domain.RetrievalCandidate
		err        error
	}
	done := make(chan outcome, 1)
	go func() {
		c, err := fn(ctx)
		done <- outcome{c, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			span.RecordError(o.err)
			span.SetStatus(codes.Error, o.err.Error())
		}
		span.SetAttributes(attribute.Int("legal.retrieval.candidates", len(o.candidates)))
		return o.candidates, o.err
	case <-ctx.Done():
		err := fmt.Errorf("%s timed out: %w", spanName, ctx.Err())
		span.RecordError(err)
		span.SetStatus(codes.Error, "timeout")
		return nil, err
	}
}
