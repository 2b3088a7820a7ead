package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase/analysis"
	"legal-rag/internal/usecase/retrieval"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("legal-rag")

// Degraded sources added by the orchestrator on top of the retrievers'.
const (
	DegradedChunkStore   = "chunk_store"
	DegradedStatuteStore = "statute_store"
)

// AnalyzeInput defines the input parameters for AnalyzeUsecase.
type AnalyzeInput struct {
	Text string
	// TopK is the number of excerpts kept. Zero selects the configured default.
	TopK             int
	RetrieveStatutes bool
	// JudgmentID restricts vector retrieval to one judgment when non-zero.
	JudgmentID int64
}

// NewAnalyzeInput returns an input with statute retrieval enabled and the default top K.
func NewAnalyzeInput(text string) AnalyzeInput {
	return AnalyzeInput{Text: text, RetrieveStatutes: true}
}

// HybridSearcher retrieves fused chunk rankings.
type HybridSearcher interface {
	Retrieve(ctx context.Context, query string, topN int, filter domain.SearchFilter) (retrieval.HybridResult, error)
}

// AnalyzeUsecase runs extraction, dark-zone detection, query enhancement and
// hybrid retrieval, then assembles the annotated context.
type AnalyzeUsecase interface {
	Execute(ctx context.Context, input AnalyzeInput) (*domain.AnnotatedContext, error)
}

type analyzeUsecase struct {
	extractor *analysis.EntityExtractor
	detector  *analysis.DarkZoneDetector
	enhancer  *analysis.QueryEnhancer
	retriever HybridSearcher
	chunks    domain.ChunkReader
	statutes  domain.StatuteStore
	cfg       AnalyzeConfig
	logger    *slog.Logger
}

// NewAnalyzeUsecase creates a new AnalyzeUsecase. statutes may be nil.
func NewAnalyzeUsecase(
	extractor *analysis.EntityExtractor,
	detector *analysis.DarkZoneDetector,
	enhancer *analysis.QueryEnhancer,
	retriever HybridSearcher,
	chunks domain.ChunkReader,
	statutes domain.StatuteStore,
	cfg AnalyzeConfig,
	logger *slog.Logger,
) AnalyzeUsecase {
	return &analyzeUsecase{
		extractor: extractor,
		detector:  detector,
		enhancer:  enhancer,
		retriever: retriever,
		chunks:    chunks,
		statutes:  statutes,
		cfg:       cfg,
		logger:    logger,
	}
}

func (u *analyzeUsecase) Execute(ctx context.Context, input AnalyzeInput) (*domain.AnnotatedContext, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	}
	topK := input.TopK
	if topK == 0 {
		topK = u.cfg.DefaultTopK
	}
	if topK < 0 || topK > u.cfg.MaxTopK {
		return nil, fmt.Errorf("%w: top_k must be in [1, %d], got %d", domain.ErrInvalidInput, u.cfg.MaxTopK, topK)
	}

	requestID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "analyze", trace.WithAttributes(
		attribute.String("legal.request.id", requestID),
		attribute.Int("legal.analyze.top_k", topK),
	))
	defer span.End()

	start := time.Now()
	logger := u.logger.With(slog.String("request_id", requestID))
	logger.InfoContext(ctx, "analyze_started",
		slog.Int("text_length", len(input.Text)),
		slog.Int("top_k", topK))

	entities := u.extractor.Extract(input.Text)
	zones := u.detector.DetectEntities(input.Text, entities)
	enhanced := u.enhancer.Compose(input.Text, entities, zones)

	logger.InfoContext(ctx, "query_enhanced",
		slog.Int("entity_count", len(entities)),
		slog.Int("dark_zone_count", len(zones)),
		slog.String("enhanced_query", enhanced.Query))

	hybrid, err := u.retriever.Retrieve(ctx, enhanced.Query, topK*u.cfg.RetrievalMultiplier,
		domain.SearchFilter{JudgmentID: input.JudgmentID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, fmt.Errorf("failed to retrieve chunks: %w", err)
	}

	fused := hybrid.Results
	if len(fused) > topK {
		fused = fused[:topK]
	}

	out := &domain.AnnotatedContext{
		RequestID:     requestID,
		Entities:      entities,
		DarkZones:     zones,
		EnhancedQuery: enhanced.Query,
		Degraded:      append([]string(nil), hybrid.Degraded...),
	}

	chunks, err := u.resolveChunks(ctx, fused)
	if err != nil {
		logger.WarnContext(ctx, "chunk_lookup_failed", slog.String("error", err.Error()))
		out.Degraded = append(out.Degraded, DegradedChunkStore)
	}
	out.RetrievedChunks = chunks

	var resolutions []string
	if input.RetrieveStatutes && u.statutes != nil {
		lookup := newStatuteLookup(u.statutes, logger)
		out.Statutes = lookup.forReferences(ctx, statuteReferences(entities, zones), u.cfg.StatuteLimit)
		resolutions = u.resolveDarkZones(ctx, lookup, zones)
		if lookup.failed {
			out.Degraded = append(out.Degraded, DegradedStatuteStore)
		}
	}

	out.AssembledText = assembleContext(u.cfg, out.RetrievedChunks, out.Statutes, resolutions, input.Text)

	logger.InfoContext(ctx, "analyze_completed",
		slog.Int("chunks_retrieved", len(out.RetrievedChunks)),
		slog.Int("statutes_retrieved", len(out.Statutes)),
		slog.Any("degraded", out.Degraded),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return out, nil
}

// resolveChunks loads display payloads and keeps the fused rank order.
func (u *analyzeUsecase) resolveChunks(ctx context.Context, fused []domain.FusedResult) ([]domain.RetrievedChunk, error) {
	if len(fused) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}

	rows, err := u.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, domain.NewCollaboratorError("chunk_store", err)
	}
	byID := make(map[int64]domain.RetrievedChunk, len(rows))
	for _, r := range rows {
		byID[r.ChunkID] = r
	}

	out := make([]domain.RetrievedChunk, 0, len(fused))
	for _, f := range fused {
		c, ok := byID[f.ChunkID]
		if !ok {
			continue
		}
		c.RRFScore = f.RRFScore
		out = append(out, c)
	}
	return out, nil
}

func (u *analyzeUsecase) resolveDarkZones(ctx context.Context, lookup *statuteLookup, zones []domain.DarkZone) []string {
	if len(zones) > u.cfg.DarkZoneResolutionLimit {
		zones = zones[:u.cfg.DarkZoneResolutionLimit]
	}
	var out []string
	for _, z := range zones {
		ref, ok := referenceOf(z.SectionEntity)
		if !ok {
			continue
		}
		st := lookup.get(ctx, ref)
		if st == nil {
			continue
		}
		resolution := domain.TruncateRunes(formatStatute(*st, u.cfg.StatuteSnippet), u.cfg.ResolutionSnippet)
		out = append(out, fmt.Sprintf("Dark Zone: %s\nResolution: %s", z.SectionEntity.Text, resolution))
	}
	return out
}
