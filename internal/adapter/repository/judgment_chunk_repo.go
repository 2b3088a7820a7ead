package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legal-rag/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

const getChunksQuery = `
		SELECT c.id, c.judgment_id, c.content, c.section_type, c.page_number,
			j.case_number, j.title, j.judgment_date, j.court
		FROM judgment_chunks c
		JOIN judgments j ON j.id = c.judgment_id
		WHERE c.id = ANY($1)
	`

const nextChunkIDsQuery = `SELECT nextval('judgment_chunks_id_seq') FROM generate_series(1, $1)`

const listLexicalDocumentsQuery = `
		SELECT id, content
		FROM judgment_chunks
		ORDER BY id ASC
	`

const countChunksQuery = `SELECT count(*) FROM judgment_chunks`

// searchChunksQuery ranks by cosine distance; <=> is pgvector's cosine distance operator.
const searchChunksQuery = `
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM judgment_chunks
		WHERE ($3::bigint = 0 OR judgment_id = $3)
			AND 1 - (embedding <=> $1) >= $4
		ORDER BY embedding <=> $1, id ASC
		LIMIT $2
	`

const scanEmbeddingsQuery = `
		SELECT id, embedding
		FROM judgment_chunks
		WHERE ($1::bigint = 0 OR judgment_id = $1)
		ORDER BY id ASC
	`

const vectorExtensionQuery = `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`

var judgmentChunkColumns = []string{
	"id", "judgment_id", "chunk_index", "content", "section_type", "page_number",
	"token_count", "span_start", "span_end", "content_hash", "embedding",
}

// Postgres error codes raised when the vector type or operator is missing.
const (
	pgUndefinedFunction = "42883"
	pgUndefinedObject   = "42704"
)

// JudgmentChunkRepository stores chunks and serves both retrieval paths:
// native pgvector similarity search and a full embedding scan.
type JudgmentChunkRepository struct {
	db DB
}

var (
	_ domain.JudgmentChunkRepository = (*JudgmentChunkRepository)(nil)
	_ domain.VectorSearcher          = (*JudgmentChunkRepository)(nil)
	_ domain.EmbeddingScanner        = (*JudgmentChunkRepository)(nil)
)

// NewJudgmentChunkRepository creates a new JudgmentChunkRepository.
func NewJudgmentChunkRepository(db DB) *JudgmentChunkRepository {
	return &JudgmentChunkRepository{db: db}
}

func (r *JudgmentChunkRepository) GetChunks(ctx context.Context, ids []int64) ([]domain.RetrievedChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := getExecutor(ctx, r.db).Query(ctx, getChunksQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievedChunk
	for rows.Next() {
		var (
			c            domain.RetrievedChunk
			sectionType  string
			judgmentDate *time.Time
		)
		if err := rows.Scan(&c.ChunkID, &c.JudgmentID, &c.Text, &sectionType, &c.PageNumber,
			&c.CaseNumber, &c.Title, &judgmentDate, &c.Court); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.SectionType = domain.SectionType(sectionType)
		if judgmentDate != nil {
			c.JudgmentDate = judgmentDate.Format(time.DateOnly)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// BulkInsert reserves ids from the sequence, assigns them to chunks in input
// order, then copies the rows in.
func (r *JudgmentChunkRepository) BulkInsert(ctx context.Context, chunks []domain.JudgmentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	exec := getExecutor(ctx, r.db)

	idRows, err := exec.Query(ctx, nextChunkIDsQuery, len(chunks))
	if err != nil {
		return fmt.Errorf("failed to reserve chunk ids: %w", err)
	}
	ids, err := pgx.CollectRows(idRows, pgx.RowTo[int64])
	if err != nil {
		return fmt.Errorf("failed to reserve chunk ids: %w", err)
	}
	if len(ids) != len(chunks) {
		return fmt.Errorf("reserved %d chunk ids for %d chunks", len(ids), len(chunks))
	}

	rows := make([][]any, len(chunks))
	for i := range chunks {
		chunks[i].ID = ids[i]
		c := chunks[i]
		rows[i] = []any{
			c.ID,
			c.JudgmentID,
			c.ChunkIndex,
			c.Content,
			string(c.SectionType),
			c.PageNumber,
			c.TokenCount,
			c.SpanStart,
			c.SpanEnd,
			c.ContentHash,
			c.Embedding,
		}
	}

	_, err = exec.CopyFrom(ctx, pgx.Identifier{"judgment_chunks"}, judgmentChunkColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}
	return nil
}

func (r *JudgmentChunkRepository) ListLexicalDocuments(ctx context.Context) ([]domain.LexicalDocument, error) {
	rows, err := getExecutor(ctx, r.db).Query(ctx, listLexicalDocumentsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk texts: %w", err)
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LexicalDocument, error) {
		var d domain.LexicalDocument
		err := row.Scan(&d.ChunkID, &d.Text)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk texts: %w", err)
	}
	return docs, nil
}

func (r *JudgmentChunkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := getExecutor(ctx, r.db).QueryRow(ctx, countChunksQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Search runs the similarity search inside Postgres. It returns
// domain.ErrNativeSearchUnavailable when the vector operator is missing.
func (r *JudgmentChunkRepository) Search(ctx context.Context, query []float32, topN int, floor float64, filter domain.SearchFilter) ([]domain.RetrievalCandidate, error) {
	if topN <= 0 {
		return nil, nil
	}
	rows, err := getExecutor(ctx, r.db).Query(ctx, searchChunksQuery,
		pgvector.NewVector(query), topN, filter.JudgmentID, floor)
	if err != nil {
		return nil, searchError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RetrievalCandidate, error) {
		var c domain.RetrievalCandidate
		err := row.Scan(&c.ChunkID, &c.Score)
		return c, err
	})
	if err != nil {
		return nil, searchError(err)
	}
	return out, nil
}

func searchError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgUndefinedFunction || pgErr.Code == pgUndefinedObject) {
		return fmt.Errorf("%w: %s", domain.ErrNativeSearchUnavailable, pgErr.Message)
	}
	return fmt.Errorf("failed to search chunks: %w", err)
}

// ScanEmbeddings streams stored embeddings in id order.
func (r *JudgmentChunkRepository) ScanEmbeddings(ctx context.Context, filter domain.SearchFilter, fn func(chunkID int64, embedding []float32) error) error {
	rows, err := getExecutor(ctx, r.db).Query(ctx, scanEmbeddingsQuery, filter.JudgmentID)
	if err != nil {
		return fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			vec pgvector.Vector
		)
		if err := rows.Scan(&id, &vec); err != nil {
			return fmt.Errorf("failed to scan embedding: %w", err)
		}
		if err := fn(id, vec.Slice()); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

// SupportsNativeSearch reports whether the pgvector extension is installed.
func (r *JudgmentChunkRepository) SupportsNativeSearch(ctx context.Context) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, vectorExtensionQuery).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to probe vector extension: %w", err)
	}
	return ok, nil
}
