package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"legal-rag/internal/adapter/rag_augur"
	"legal-rag/internal/adapter/rag_http"
	"legal-rag/internal/adapter/repository"
	"legal-rag/internal/domain"
	"legal-rag/internal/infra/config"
	"legal-rag/internal/infra/httpclient"
	"legal-rag/internal/infra/logger"
	"legal-rag/internal/usecase"
	"legal-rag/internal/usecase/analysis"
	"legal-rag/internal/usecase/retrieval"
	"legal-rag/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	JudgmentRepo domain.JudgmentRepository
	ChunkRepo    *repository.JudgmentChunkRepository
	JobRepo      domain.IngestJobRepository

	// Analysis
	Patterns  *domain.PatternRegistry
	Extractor *analysis.EntityExtractor
	Detector  *analysis.DarkZoneDetector
	Enhancer  *analysis.QueryEnhancer

	// Usecases
	AnalyzeUsecase   usecase.AnalyzeUsecase
	SummarizeUsecase usecase.SummarizeUsecase
	IngestUsecase    usecase.IngestJudgmentUsecase
	IndexUsecase     usecase.IndexRebuildUsecase

	// Worker
	Worker *worker.JobWorker

	VectorSearch retrieval.VectorSearchMode
}

// HandlerDependencies returns the HTTP handler wiring for these components.
func (c *ApplicationComponents) HandlerDependencies(ready rag_http.ReadinessCheck, log *slog.Logger) rag_http.Dependencies {
	return rag_http.Dependencies{
		Analyze:   c.AnalyzeUsecase,
		Summarize: c.SummarizeUsecase,
		Ingest:    c.IngestUsecase,
		Index:     c.IndexUsecase,
		Jobs:      c.JobRepo,
		Extractor: c.Extractor,
		Detector:  c.Detector,
		Enhancer:  c.Enhancer,
		Ready:     ready,
		Logger:    log,
	}
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(ctx context.Context, cfg *config.Config, db repository.DB, log *slog.Logger) (*ApplicationComponents, error) {
	tunables, err := buildTunables(cfg)
	if err != nil {
		return nil, err
	}

	// Repositories
	judgmentRepo := repository.NewJudgmentRepository(db)
	chunkRepo := repository.NewJudgmentChunkRepository(db)
	entityRepo := repository.NewNamedEntityRepository(db)
	statuteRepo := repository.NewLegalSectionRepository(db)
	jobRepo := repository.NewIngestJobRepository(db)
	txManager := repository.NewPostgresTransactionManager(db)

	// Collaborators
	embedderHTTP := httpclient.NewPooledClient(cfg.Embedder.Timeout)
	augurHTTP := httpclient.NewPooledClient(cfg.Augur.Timeout)

	embedder := rag_augur.NewOllamaEmbedder(cfg.Embedder.URL, cfg.Embedder.Model, embedderHTTP, log)
	embedder.Dimension = cfg.Embedder.Dimension
	var encoder domain.VectorEncoder = embedder
	if cfg.Embedder.CacheSize > 0 {
		encoder = rag_augur.NewCachedEncoder(encoder, cfg.Embedder.CacheSize, cfg.Embedder.CacheTTL)
	}
	generator := rag_augur.NewOllamaGenerator(cfg.Augur.URL, cfg.Augur.Model, augurHTTP, log)

	// Analysis
	patterns := domain.NewPatternRegistry()
	extractor := analysis.NewEntityExtractor(patterns)
	detector := analysis.NewDarkZoneDetector(extractor, tunables.darkZone)
	enhancer := analysis.NewQueryEnhancer(extractor, detector, tunables.enhancer)
	chunker := domain.NewChunker(patterns, domain.WordTokenCounter{}, tunables.chunker)

	// Retrieval
	searcher, err := selectVectorSearcher(ctx, tunables.vectorMode, chunkRepo, log)
	if err != nil {
		return nil, err
	}
	lexicalIndex := retrieval.NewLexicalIndex(tunables.bm25)
	vectorRetriever := retrieval.NewVectorRetriever(encoder, searcher, cfg.RAG.SimilarityFloor)
	hybrid := retrieval.NewHybridRetriever(lexicalIndex, vectorRetriever, tunables.hybrid, log)

	// Usecases
	analyzeUsecase := usecase.NewAnalyzeUsecase(extractor, detector, enhancer, hybrid, chunkRepo, statuteRepo, tunables.analyze, log)
	summarizeUsecase := usecase.NewSummarizeUsecase(analyzeUsecase, generator, usecase.NewXMLPromptBuilder(), cfg.Augur.MaxTokens, log)
	ingestUsecase := usecase.NewIngestJudgmentUsecase(
		judgmentRepo, chunkRepo, entityRepo, txManager,
		domain.NewSourceHashPolicy(), patterns, chunker, extractor, encoder,
		tunables.ingest, log,
	)
	indexUsecase := usecase.NewIndexRebuildUsecase(chunkRepo, lexicalIndex, log)

	// Worker
	jobWorker := worker.NewJobWorker(jobRepo, ingestUsecase, indexUsecase, logger.NewContextLogger(log, cfg.OTel.ServiceName))

	return &ApplicationComponents{
		JudgmentRepo:     judgmentRepo,
		ChunkRepo:        chunkRepo,
		JobRepo:          jobRepo,
		Patterns:         patterns,
		Extractor:        extractor,
		Detector:         detector,
		Enhancer:         enhancer,
		AnalyzeUsecase:   analyzeUsecase,
		SummarizeUsecase: summarizeUsecase,
		IngestUsecase:    ingestUsecase,
		IndexUsecase:     indexUsecase,
		Worker:           jobWorker,
		VectorSearch:     tunables.vectorMode,
	}, nil
}

type tunables struct {
	chunker    domain.ChunkerConfig
	darkZone   analysis.DarkZoneConfig
	enhancer   analysis.EnhancerConfig
	bm25       retrieval.BM25Params
	hybrid     retrieval.HybridConfig
	vectorMode retrieval.VectorSearchMode
	analyze    usecase.AnalyzeConfig
	ingest     usecase.IngestConfig
}

// buildTunables maps configuration onto component configs and validates each.
func buildTunables(cfg *config.Config) (tunables, error) {
	t := tunables{
		chunker: domain.ChunkerConfig{
			ChunkSize:      cfg.Chunker.ChunkSize,
			Overlap:        cfg.Chunker.Overlap,
			MinChunkSize:   cfg.Chunker.MinChunkSize,
			HeadingSpacing: cfg.Chunker.HeadingSpacing,
			TailPolicy:     domain.TailPolicy(cfg.Chunker.TailPolicy),
		},
		darkZone: analysis.DarkZoneConfig{
			ContextRadius:        cfg.DarkZone.ContextRadius,
			ExplanationProximity: cfg.DarkZone.ExplanationProximity,
			TrailingContentMin:   cfg.DarkZone.TrailingContentMin,
			DefinitionLookahead:  cfg.DarkZone.DefinitionLookahead,
		},
		enhancer: analysis.EnhancerConfig{
			LongTextThreshold: cfg.Enhancer.LongTextThreshold,
			KeySentences:      cfg.Enhancer.KeySentences,
			EntityConfidence:  cfg.Enhancer.EntityConfidence,
			ContextSnippet:    cfg.Enhancer.ContextSnippet,
			MaxLegalTerms:     cfg.Enhancer.MaxLegalTerms,
		},
		bm25: retrieval.BM25Params{
			K1:      cfg.RAG.BM25K1,
			B:       cfg.RAG.BM25B,
			Epsilon: cfg.RAG.BM25Epsilon,
		},
		hybrid: retrieval.HybridConfig{
			RRFK:                cfg.RAG.RRFK,
			CandidateMultiplier: cfg.RAG.CandidateMultiplier,
			Timeout:             cfg.RAG.RetrieverTimeout,
		},
		analyze: usecase.AnalyzeConfig{
			DefaultTopK:             cfg.RAG.DefaultTopK,
			MaxTopK:                 cfg.RAG.MaxTopK,
			RetrievalMultiplier:     cfg.RAG.RetrievalMultiplier,
			StatuteLimit:            cfg.RAG.StatuteLimit,
			DarkZoneResolutionLimit: cfg.RAG.DarkZoneLimit,
			StatuteSnippet:          cfg.RAG.StatuteSnippet,
			ResolutionSnippet:       cfg.RAG.ResolutionSnippet,
			OriginalSnippet:         cfg.RAG.OriginalSnippet,
		},
		ingest: usecase.IngestConfig{
			EmbedBatchSize:   cfg.Ingest.EmbedBatchSize,
			EmbedConcurrency: cfg.Ingest.EmbedConcurrency,
			BatchConcurrency: cfg.Ingest.BatchConcurrency,
			EmbedRate:        cfg.Ingest.EmbedRate,
			EmbedBurst:       cfg.Ingest.EmbedBurst,
		},
	}

	mode, modeErr := retrieval.ParseVectorSearchMode(cfg.RAG.VectorSearchMode)
	t.vectorMode = mode

	err := errors.Join(
		cfg.Validate(),
		wrap("chunker", t.chunker.Validate()),
		wrap("dark zone", t.darkZone.Validate()),
		wrap("enhancer", t.enhancer.Validate()),
		wrap("bm25", t.bm25.Validate()),
		wrap("hybrid", t.hybrid.Validate()),
		wrap("analyze", t.analyze.Validate()),
		wrap("ingest", t.ingest.Validate()),
		modeErr,
	)
	if err != nil {
		return tunables{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return t, nil
}

func wrap(component string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", component, err)
}

// nativeSearchStore is a chunk store that may rank by similarity itself.
type nativeSearchStore interface {
	domain.VectorSearcher
	domain.EmbeddingScanner
	SupportsNativeSearch(ctx context.Context) (bool, error)
}

// selectVectorSearcher picks native or in-process similarity search.
// In auto mode a failed probe keeps the native path behind a fallback,
// so an extension installed later is still used.
func selectVectorSearcher(ctx context.Context, mode retrieval.VectorSearchMode, store nativeSearchStore, log *slog.Logger) (domain.VectorSearcher, error) {
	inProcess := retrieval.NewCosineSearcher(store)

	switch mode {
	case retrieval.VectorSearchInProcess:
		log.Info("vector_search_selected", slog.String("mode", string(mode)))
		return inProcess, nil
	case retrieval.VectorSearchNative:
		ok, err := store.SupportsNativeSearch(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("vector search mode native: %w", domain.ErrNativeSearchUnavailable)
		}
		log.Info("vector_search_selected", slog.String("mode", string(mode)))
		return store, nil
	default:
		ok, err := store.SupportsNativeSearch(ctx)
		if err != nil {
			log.Warn("vector_extension_probe_failed", slog.String("error", err.Error()))
		}
		if err == nil && !ok {
			log.Info("vector_search_selected", slog.String("mode", string(retrieval.VectorSearchInProcess)))
			return inProcess, nil
		}
		log.Info("vector_search_selected", slog.String("mode", string(retrieval.VectorSearchAuto)))
		return retrieval.NewFallbackSearcher(store, inProcess), nil
	}
}
