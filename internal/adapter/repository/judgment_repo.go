package repository

import (
	"context"
	"errors"
	"fmt"

	"legal-rag/internal/domain"

	"github.com/jackc/pgx/v5"
)

const findExistingJudgmentQuery = `
		SELECT id
		FROM judgments
		WHERE ($1 <> '' AND case_number = $1) OR file_hash = $2
		ORDER BY (case_number = $1) DESC, id ASC
		LIMIT 1
	`

const insertJudgmentQuery = `
		INSERT INTO judgments (case_number, title, parties, judgment_date, court, judges, year,
			source_path, file_hash, chunker_version, embedder_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

const countJudgmentsQuery = `SELECT count(*) FROM judgments`

type judgmentRepository struct {
	db DB
}

// NewJudgmentRepository creates a new JudgmentRepository.
func NewJudgmentRepository(db DB) domain.JudgmentRepository {
	return &judgmentRepository{db: db}
}

func (r *judgmentRepository) FindExisting(ctx context.Context, caseNumber, fileHash string) (int64, error) {
	var id int64
	err := getExecutor(ctx, r.db).QueryRow(ctx, findExistingJudgmentQuery, caseNumber, fileHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find judgment: %w", err)
	}
	return id, nil
}

func (r *judgmentRepository) Create(ctx context.Context, j *domain.Judgment) error {
	judges := j.Judges
	if judges == nil {
		judges = []string{}
	}
	err := getExecutor(ctx, r.db).QueryRow(ctx, insertJudgmentQuery,
		j.CaseNumber,
		j.Title,
		j.Parties,
		j.JudgmentDate,
		j.Court,
		judges,
		j.Year,
		j.SourcePath,
		j.FileHash,
		j.ChunkerVersion,
		j.EmbedderVersion,
	).Scan(&j.ID, &j.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert judgment: %w", err)
	}
	return nil
}

func (r *judgmentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := getExecutor(ctx, r.db).QueryRow(ctx, countJudgmentsQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count judgments: %w", err)
	}
	return n, nil
}
