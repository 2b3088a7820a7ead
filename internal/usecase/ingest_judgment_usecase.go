package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase/analysis"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// IngestConfig bounds the work done per judgment and per batch.
type IngestConfig struct {
	// EmbedBatchSize is the number of chunk texts per embedder call.
	EmbedBatchSize int
	// EmbedConcurrency is the number of embedder calls in flight per judgment.
	EmbedConcurrency int
	// BatchConcurrency is the number of judgments ingested in parallel by IngestBatch.
	BatchConcurrency int
	// EmbedRate limits embedder calls per second across all judgments. Zero disables the limit.
	EmbedRate  float64
	EmbedBurst int
}

// DefaultIngestConfig returns the production limits.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		EmbedBatchSize:   32,
		EmbedConcurrency: 2,
		BatchConcurrency: 4,
		EmbedRate:        0,
		EmbedBurst:       1,
	}
}

// Validate checks the ingestion limits.
func (c IngestConfig) Validate() error {
	if c.EmbedBatchSize <= 0 || c.EmbedConcurrency <= 0 || c.BatchConcurrency <= 0 {
		return fmt.Errorf("ingest batch sizes and concurrency must be positive")
	}
	if c.EmbedRate < 0 {
		return fmt.Errorf("embed rate must be non-negative, got %f", c.EmbedRate)
	}
	if c.EmbedRate > 0 && c.EmbedBurst <= 0 {
		return fmt.Errorf("embed burst must be positive when a rate is set")
	}
	return nil
}

// IngestInput is one judgment text to ingest.
type IngestInput struct {
	SourceName string
	Text       string
}

// IngestResult describes what ingestion stored.
type IngestResult struct {
	SourceName  string `json:"source_name"`
	JudgmentID  int64  `json:"judgment_id"`
	CaseNumber  string `json:"case_number"`
	Skipped     bool   `json:"skipped"`
	ChunkCount  int    `json:"chunk_count"`
	EntityCount int    `json:"entity_count"`
}

// IngestOutcome is the per-input result of IngestBatch.
type IngestOutcome struct {
	Result IngestResult
	Err    error
}

// IngestJudgmentUsecase stores judgments with their chunks, embeddings and entities.
type IngestJudgmentUsecase interface {
	// Ingest is idempotent: a judgment with a known case number or content hash is skipped.
	Ingest(ctx context.Context, input IngestInput) (*IngestResult, error)
	// IngestBatch ingests inputs concurrently. Outcomes are in input order.
	IngestBatch(ctx context.Context, inputs []IngestInput) ([]IngestOutcome, error)
}

type ingestJudgmentUsecase struct {
	judgments domain.JudgmentRepository
	chunks    domain.JudgmentChunkRepository
	entities  domain.NamedEntityRepository
	txManager domain.TransactionManager
	hasher    domain.SourceHashPolicy
	patterns  *domain.PatternRegistry
	chunker   domain.Chunker
	extractor *analysis.EntityExtractor
	encoder   domain.VectorEncoder
	limiter   *rate.Limiter
	cfg       IngestConfig
	logger    *slog.Logger
}

// NewIngestJudgmentUsecase creates a new IngestJudgmentUsecase.
func NewIngestJudgmentUsecase(
	judgments domain.JudgmentRepository,
	chunks domain.JudgmentChunkRepository,
	entities domain.NamedEntityRepository,
	txManager domain.TransactionManager,
	hasher domain.SourceHashPolicy,
	patterns *domain.PatternRegistry,
	chunker domain.Chunker,
	extractor *analysis.EntityExtractor,
	encoder domain.VectorEncoder,
	cfg IngestConfig,
	logger *slog.Logger,
) IngestJudgmentUsecase {
	limit := rate.Inf
	if cfg.EmbedRate > 0 {
		limit = rate.Limit(cfg.EmbedRate)
	}
	return &ingestJudgmentUsecase{
		judgments: judgments,
		chunks:    chunks,
		entities:  entities,
		txManager: txManager,
		hasher:    hasher,
		patterns:  patterns,
		chunker:   chunker,
		extractor: extractor,
		encoder:   encoder,
		limiter:   rate.NewLimiter(limit, max(cfg.EmbedBurst, 1)),
		cfg:       cfg,
		logger:    logger,
	}
}

func (u *ingestJudgmentUsecase) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: judgment text is empty", domain.ErrInvalidInput)
	}

	start := time.Now()
	hash := u.hasher.Compute(input.Text)
	meta := domain.ExtractJudgmentMetadata(u.patterns, input.Text, input.SourceName)
	result := &IngestResult{SourceName: input.SourceName, CaseNumber: meta.CaseNumber}

	existing, err := u.judgments.FindExisting(ctx, meta.CaseNumber, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing judgment: %w", err)
	}
	if existing != 0 {
		result.JudgmentID = existing
		result.Skipped = true
		u.logger.InfoContext(ctx, "judgment_already_ingested",
			slog.String("source", input.SourceName),
			slog.Int64("judgment_id", existing))
		return result, nil
	}

	chunks, err := u.chunker.Chunk(input.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk judgment: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: judgment produced no chunks", domain.ErrInvalidInput)
	}

	embeddings, err := u.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	entities := u.extractor.Extract(input.Text)

	judgment := &domain.Judgment{
		CaseNumber:      meta.CaseNumber,
		Title:           meta.Title,
		Parties:         meta.Parties,
		JudgmentDate:    meta.JudgmentDate,
		Court:           meta.Court,
		Judges:          meta.Judges,
		Year:            meta.Year,
		SourcePath:      input.SourceName,
		FileHash:        hash,
		ChunkerVersion:  string(u.chunker.Version()),
		EmbedderVersion: u.encoder.Version(),
	}

	err = u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		if err := u.judgments.Create(ctx, judgment); err != nil {
			return fmt.Errorf("failed to create judgment: %w", err)
		}

		rows := make([]domain.JudgmentChunk, len(chunks))
		for i, c := range chunks {
			rows[i] = domain.JudgmentChunk{
				JudgmentID:  judgment.ID,
				ChunkIndex:  c.SequenceIndex,
				Content:     c.Text,
				SectionType: c.SectionType,
				TokenCount:  c.TokenCount,
				SpanStart:   c.Span.Start,
				SpanEnd:     c.Span.End,
				ContentHash: c.Hash,
				Embedding:   pgvector.NewVector(embeddings[i]),
			}
		}
		if err := u.chunks.BulkInsert(ctx, rows); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}

		if len(entities) == 0 {
			return nil
		}
		records := make([]domain.NamedEntityRecord, len(entities))
		for i, e := range entities {
			records[i] = domain.NamedEntityRecord{
				JudgmentID:     judgment.ID,
				ChunkID:        chunkContaining(rows, e.Span.Start),
				Entity:         e,
				PatternVersion: u.patterns.Version(),
			}
		}
		if err := u.entities.BulkInsert(ctx, records); err != nil {
			return fmt.Errorf("failed to insert entities: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.JudgmentID = judgment.ID
	result.ChunkCount = len(chunks)
	result.EntityCount = len(entities)

	u.logger.InfoContext(ctx, "judgment_ingested",
		slog.String("source", input.SourceName),
		slog.Int64("judgment_id", judgment.ID),
		slog.String("case_number", meta.CaseNumber),
		slog.Int("chunk_count", len(chunks)),
		slog.Int("entity_count", len(entities)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return result, nil
}

// embed encodes chunk texts in rate-limited batches, a few batches at a time.
func (u *ingestJudgmentUsecase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	out := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.EmbedConcurrency)
	for lo := 0; lo < len(chunks); lo += u.cfg.EmbedBatchSize {
		hi := min(lo+u.cfg.EmbedBatchSize, len(chunks))
		g.Go(func() error {
			if err := u.limiter.Wait(gctx); err != nil {
				return err
			}
			texts := make([]string, 0, hi-lo)
			for _, c := range chunks[lo:hi] {
				texts = append(texts, c.Text)
			}
			vecs, err := u.encoder.Encode(gctx, texts)
			if err != nil {
				return domain.NewCollaboratorError("embedder", err)
			}
			if len(vecs) != len(texts) {
				return domain.NewCollaboratorError("embedder",
					fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs)))
			}
			copy(out[lo:hi], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to encode chunks: %w", err)
	}
	return out, nil
}

// chunkContaining returns the id of the first chunk whose span contains pos.
func chunkContaining(rows []domain.JudgmentChunk, pos int) *int64 {
	for i := range rows {
		if pos >= rows[i].SpanStart && pos < rows[i].SpanEnd {
			id := rows[i].ID
			return &id
		}
	}
	return nil
}

func (u *ingestJudgmentUsecase) IngestBatch(ctx context.Context, inputs []IngestInput) ([]IngestOutcome, error) {
	outcomes := make([]IngestOutcome, len(inputs))

	var g errgroup.Group
	g.SetLimit(u.cfg.BatchConcurrency)
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = IngestOutcome{Result: IngestResult{SourceName: in.SourceName}, Err: err}
				return nil
			}
			res, err := u.Ingest(ctx, in)
			if err != nil {
				u.logger.ErrorContext(ctx, "judgment_ingest_failed",
					slog.String("source", in.SourceName),
					slog.String("error", err.Error()))
				outcomes[i] = IngestOutcome{Result: IngestResult{SourceName: in.SourceName}, Err: err}
				return nil
			}
			outcomes[i] = IngestOutcome{Result: *res}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 && failed == len(inputs) {
		return outcomes, errors.New("every judgment in the batch failed to ingest")
	}
	return outcomes, nil
}
