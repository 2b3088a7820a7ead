package repository

import (
	"context"
	"fmt"

	"legal-rag/internal/domain"

	"github.com/jackc/pgx/v5"
)

var namedEntityColumns = []string{
	"judgment_id", "chunk_id", "entity_type", "entity_text", "span_start", "span_end",
	"confidence", "act", "section_number", "pattern_version",
}

type namedEntityRepository struct {
	db DB
}

// NewNamedEntityRepository creates a new NamedEntityRepository.
func NewNamedEntityRepository(db DB) domain.NamedEntityRepository {
	return &namedEntityRepository{db: db}
}

func (r *namedEntityRepository) BulkInsert(ctx context.Context, records []domain.NamedEntityRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		e := rec.Entity
		rows[i] = []any{
			rec.JudgmentID,
			rec.ChunkID,
			string(e.Type),
			e.Text,
			e.Span.Start,
			e.Span.End,
			e.Confidence,
			nullable(e.Act()),
			nullable(e.SectionNumber()),
			rec.PatternVersion,
		}
	}

	_, err := getExecutor(ctx, r.db).CopyFrom(ctx, pgx.Identifier{"named_entities"}, namedEntityColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to insert named entities: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
