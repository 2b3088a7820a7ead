package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	LogLevel string
	Server   ServerConfig
	DB       DBConfig
	Embedder EmbedderConfig
	Augur    AugurConfig
	RAG      RAGConfig
	Chunker  ChunkerConfig
	DarkZone DarkZoneConfig
	Enhancer EnhancerConfig
	Ingest   IngestConfig
	Worker   WorkerConfig
	OTel     OTelConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN renders the pgx connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type EmbedderConfig struct {
	URL       string
	Model     string
	Dimension int
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

type AugurConfig struct {
	URL       string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// RAGConfig holds the retrieval and context assembly tunables.
type RAGConfig struct {
	BM25K1              float64
	BM25B               float64
	BM25Epsilon         float64
	RRFK                float64
	CandidateMultiplier int
	SimilarityFloor     float64
	RetrieverTimeout    time.Duration
	VectorSearchMode    string

	DefaultTopK         int
	MaxTopK             int
	RetrievalMultiplier int
	StatuteLimit        int
	DarkZoneLimit       int
	StatuteSnippet      int
	ResolutionSnippet   int
	OriginalSnippet     int
}

type ChunkerConfig struct {
	ChunkSize      int
	Overlap        int
	MinChunkSize   int
	HeadingSpacing int
	TailPolicy     string
}

type DarkZoneConfig struct {
	ContextRadius        int
	ExplanationProximity int
	TrailingContentMin   int
	DefinitionLookahead  int
}

type EnhancerConfig struct {
	LongTextThreshold int
	KeySentences      int
	EntityConfidence  float64
	ContextSnippet    int
	MaxLegalTerms     int
}

type IngestConfig struct {
	EmbedBatchSize   int
	EmbedConcurrency int
	BatchConcurrency int
	EmbedRate        float64
	EmbedBurst       int
}

type WorkerConfig struct {
	Enabled bool
}

type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	SampleRatio    float64
}

func Load() *Config {
	env := getEnv("ENV", "development")
	return &Config{
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnv("PORT", "9010"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "legal-rag-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "legal_rag"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "legal_rag"),
			Name:     getEnv("DB_NAME", "legal_rag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		Embedder: EmbedderConfig{
			URL:       getEnvWithAlt("EMBEDDER_URL", "OLLAMA_URL", "http://ollama:11434"),
			Model:     getEnv("EMBEDDING_MODEL", "all-minilm"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 384),
			Timeout:   getEnvDuration("EMBEDDER_TIMEOUT", 30*time.Second),
			CacheSize: getEnvInt("EMBEDDING_CACHE_SIZE", 1024),
			CacheTTL:  getEnvDuration("EMBEDDING_CACHE_TTL", time.Hour),
		},
		Augur: AugurConfig{
			URL:       getEnvWithAlt("AUGUR_URL", "OLLAMA_URL", "http://ollama:11434"),
			Model:     getEnv("AUGUR_MODEL", "llama3.1:8b"),
			Timeout:   getEnvDuration("AUGUR_TIMEOUT", 120*time.Second),
			MaxTokens: getEnvInt("SUMMARY_MAX_TOKENS", 768),
		},
		RAG: RAGConfig{
			BM25K1:              getEnvFloat64("RAG_BM25_K1", 1.5),
			BM25B:               getEnvFloat64("RAG_BM25_B", 0.75),
			BM25Epsilon:         getEnvFloat64("RAG_BM25_EPSILON", 0.25),
			RRFK:                getEnvFloat64("RAG_RRF_K", 60.0),
			CandidateMultiplier: getEnvInt("RAG_CANDIDATE_MULTIPLIER", 5),
			SimilarityFloor:     getEnvFloat64("RAG_SIMILARITY_FLOOR", 0.5),
			RetrieverTimeout:    getEnvDuration("RAG_RETRIEVER_TIMEOUT", 10*time.Second),
			VectorSearchMode:    getEnv("RAG_VECTOR_SEARCH_MODE", "auto"),
			DefaultTopK:         getEnvInt("RAG_DEFAULT_TOP_K", 3),
			MaxTopK:             getEnvInt("RAG_MAX_TOP_K", 50),
			RetrievalMultiplier: getEnvInt("RAG_RETRIEVAL_MULTIPLIER", 2),
			StatuteLimit:        getEnvInt("RAG_STATUTE_LIMIT", 5),
			DarkZoneLimit:       getEnvInt("RAG_DARK_ZONE_LIMIT", 3),
			StatuteSnippet:      getEnvInt("RAG_STATUTE_SNIPPET", 500),
			ResolutionSnippet:   getEnvInt("RAG_RESOLUTION_SNIPPET", 300),
			OriginalSnippet:     getEnvInt("RAG_ORIGINAL_SNIPPET", 1000),
		},
		Chunker: ChunkerConfig{
			ChunkSize:      getEnvInt("CHUNK_SIZE", 512),
			Overlap:        getEnvInt("CHUNK_OVERLAP", 50),
			MinChunkSize:   getEnvInt("CHUNK_MIN_SIZE", 100),
			HeadingSpacing: getEnvInt("CHUNK_HEADING_SPACING", 500),
			TailPolicy:     getEnv("CHUNK_TAIL_POLICY", "merge"),
		},
		DarkZone: DarkZoneConfig{
			ContextRadius:        getEnvInt("DARK_ZONE_CONTEXT_RADIUS", 500),
			ExplanationProximity: getEnvInt("DARK_ZONE_EXPLANATION_PROXIMITY", 200),
			TrailingContentMin:   getEnvInt("DARK_ZONE_TRAILING_MIN", 100),
			DefinitionLookahead:  getEnvInt("DARK_ZONE_DEFINITION_LOOKAHEAD", 200),
		},
		Enhancer: EnhancerConfig{
			LongTextThreshold: getEnvInt("ENHANCER_LONG_TEXT_THRESHOLD", 500),
			KeySentences:      getEnvInt("ENHANCER_KEY_SENTENCES", 5),
			EntityConfidence:  getEnvFloat64("ENHANCER_ENTITY_CONFIDENCE", 0.8),
			ContextSnippet:    getEnvInt("ENHANCER_CONTEXT_SNIPPET", 150),
			MaxLegalTerms:     getEnvInt("ENHANCER_MAX_LEGAL_TERMS", 10),
		},
		Ingest: IngestConfig{
			EmbedBatchSize:   getEnvInt("INGEST_EMBED_BATCH_SIZE", 32),
			EmbedConcurrency: getEnvInt("INGEST_EMBED_CONCURRENCY", 2),
			BatchConcurrency: getEnvInt("INGEST_BATCH_CONCURRENCY", 4),
			EmbedRate:        getEnvFloat64("INGEST_EMBED_RATE", 0),
			EmbedBurst:       getEnvInt("INGEST_EMBED_BURST", 1),
		},
		Worker: WorkerConfig{
			Enabled: getEnvBool("WORKER_ENABLED", true),
		},
		OTel: OTelConfig{
			Enabled:        getEnvBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "legal-rag"),
			ServiceVersion: getEnv("SERVICE_VERSION", "0.0.0"),
			Environment:    getEnv("DEPLOYMENT_ENV", env),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			SampleRatio:    getEnvFloat64("OTEL_TRACE_SAMPLE_RATIO", 0.1),
		},
	}
}

// Validate rejects values no component can run with. Component-level
// limits are checked again by the constructors that own them.
func (c *Config) Validate() error {
	var errs []error
	if c.Embedder.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimension must be positive, got %d", c.Embedder.Dimension))
	}
	if c.Embedder.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("embedding cache size must be non-negative, got %d", c.Embedder.CacheSize))
	}
	if c.RAG.SimilarityFloor < -1 || c.RAG.SimilarityFloor > 1 {
		errs = append(errs, fmt.Errorf("similarity floor must be in [-1, 1], got %f", c.RAG.SimilarityFloor))
	}
	if c.RAG.RRFK <= 0 {
		errs = append(errs, fmt.Errorf("rrf k must be positive, got %f", c.RAG.RRFK))
	}
	if c.RAG.CandidateMultiplier < 1 {
		errs = append(errs, fmt.Errorf("candidate multiplier must be at least 1, got %d", c.RAG.CandidateMultiplier))
	}
	if c.RAG.RetrieverTimeout <= 0 {
		errs = append(errs, errors.New("retriever timeout must be positive"))
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("trace sample ratio must be in [0, 1], got %f", c.OTel.SampleRatio))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getSecret prefers the variable itself, then a mounted secret file.
func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
