package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Judgment is an ingested court judgment.
type Judgment struct {
	ID              int64
	CaseNumber      string
	Title           string
	Parties         string
	JudgmentDate    *time.Time
	Court           string
	Judges          []string
	Year            *int
	SourcePath      string
	FileHash        string
	ChunkerVersion  string
	EmbedderVersion string
	CreatedAt       time.Time
}

// JudgmentChunk is a persistable chunk of a judgment.
type JudgmentChunk struct {
	ID          int64
	JudgmentID  int64
	ChunkIndex  int
	Content     string
	SectionType SectionType
	PageNumber  *int
	TokenCount  int
	SpanStart   int
	SpanEnd     int
	ContentHash string
	Embedding   pgvector.Vector
	CreatedAt   time.Time
}

// NamedEntityRecord is an entity persisted with the judgment it was found in.
type NamedEntityRecord struct {
	JudgmentID     int64
	ChunkID        *int64
	Entity         Entity
	PatternVersion string
}

// LexicalDocument is a chunk text fed into the lexical index.
type LexicalDocument struct {
	ChunkID int64
	Text    string
}

// SearchFilter narrows retrieval to a single judgment when JudgmentID is non-zero.
type SearchFilter struct {
	JudgmentID int64
}

// JudgmentRepository manages judgment rows.
type JudgmentRepository interface {
	// FindExisting returns the id of a judgment with the same case number or
	// file hash. Returns 0 when none exists.
	FindExisting(ctx context.Context, caseNumber, fileHash string) (int64, error)
	Create(ctx context.Context, j *Judgment) error
	Count(ctx context.Context) (int64, error)
}

// JudgmentChunkRepository manages stored chunks.
type JudgmentChunkRepository interface {
	ChunkReader
	// BulkInsert stores chunks and assigns their ids in input order.
	BulkInsert(ctx context.Context, chunks []JudgmentChunk) error
	// ListLexicalDocuments streams every stored chunk text in id order.
	ListLexicalDocuments(ctx context.Context) ([]LexicalDocument, error)
	Count(ctx context.Context) (int64, error)
}

// ChunkReader resolves chunk ids to display payloads (get_chunk).
type ChunkReader interface {
	// GetChunks returns the chunks for ids. Missing ids are skipped; order is unspecified.
	GetChunks(ctx context.Context, ids []int64) ([]RetrievedChunk, error)
}

// VectorSearcher finds the nearest stored chunks to a query vector,
// sorted by similarity descending and filtered by the similarity floor.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, topN int, floor float64, filter SearchFilter) ([]RetrievalCandidate, error)
}

// EmbeddingScanner streams stored chunk embeddings for in-process similarity search.
type EmbeddingScanner interface {
	ScanEmbeddings(ctx context.Context, filter SearchFilter, fn func(chunkID int64, embedding []float32) error) error
}

// StatuteStore serves canonical provision text (get_statute_text).
type StatuteStore interface {
	// GetStatuteText returns nil, nil when the provision is unknown.
	GetStatuteText(ctx context.Context, act, sectionNumber string) (*StatuteText, error)
	UpsertStatute(ctx context.Context, s StatuteText) error
}

// NamedEntityRepository persists entities found during ingestion.
type NamedEntityRepository interface {
	BulkInsert(ctx context.Context, records []NamedEntityRecord) error
}

// IngestJob is a queued ingestion request.
type IngestJob struct {
	ID           uuid.UUID
	JobType      string
	Payload      IngestPayload
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IngestPayload carries the judgment to ingest.
type IngestPayload struct {
	SourceName string `json:"source_name"`
	Text       string `json:"text"`
}

const (
	JobTypeIngestJudgment = "ingest_judgment"

	JobStatusNew        = "new"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IngestJobRepository is the ingestion job queue.
type IngestJobRepository interface {
	Enqueue(ctx context.Context, job *IngestJob) error
	// AcquireNextJob claims the oldest new job. Returns nil, nil when the queue is empty.
	AcquireNextJob(ctx context.Context) (*IngestJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
