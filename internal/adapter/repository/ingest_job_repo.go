package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"legal-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const enqueueJobQuery = `
		INSERT INTO ingest_jobs (id, job_type, payload, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

// acquireJobQuery claims the oldest new job; SKIP LOCKED lets several workers poll at once.
const acquireJobQuery = `
		WITH next_job AS (
			SELECT id
			FROM ingest_jobs
			WHERE status = 'new'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE ingest_jobs
		SET status = 'processing', updated_at = $1
		FROM next_job
		WHERE ingest_jobs.id = next_job.id
		RETURNING ingest_jobs.id, ingest_jobs.job_type, ingest_jobs.payload, ingest_jobs.status,
			ingest_jobs.error_message, ingest_jobs.created_at, ingest_jobs.updated_at
	`

const updateJobStatusQuery = `
		UPDATE ingest_jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

type ingestJobRepository struct {
	db  DB
	now func() time.Time
}

// NewIngestJobRepository creates the Postgres-backed ingestion queue.
func NewIngestJobRepository(db DB) domain.IngestJobRepository {
	return &ingestJobRepository{db: db, now: time.Now}
}

func (r *ingestJobRepository) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusNew
	}
	now := r.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = getExecutor(ctx, r.db).Exec(ctx, enqueueJobQuery,
		job.ID,
		job.JobType,
		payload,
		job.Status,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (r *ingestJobRepository) AcquireNextJob(ctx context.Context) (*domain.IngestJob, error) {
	var (
		job     domain.IngestJob
		payload []byte
	)
	err := getExecutor(ctx, r.db).QueryRow(ctx, acquireJobQuery, r.now()).Scan(
		&job.ID,
		&job.JobType,
		&payload,
		&job.Status,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire next job: %w", err)
	}

	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &job, nil
}

func (r *ingestJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	tag, err := getExecutor(ctx, r.db).Exec(ctx, updateJobStatusQuery, status, errorMessage, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}
