package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"legal-rag/internal/domain"
	"legal-rag/internal/infra/logger"
	"legal-rag/internal/usecase"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	jobTimeout          = 5 * time.Minute
	rebuildTimeout      = 10 * time.Minute
	initialBackoff      = 1 * time.Second
	maxBackoff          = 5 * time.Minute
)

// JobWorker drains the ingest job queue. After a run of successful jobs it
// rebuilds the lexical index once the queue is empty.
type JobWorker struct {
	jobRepo       domain.IngestJobRepository
	ingestUsecase usecase.IngestJudgmentUsecase
	indexUsecase  usecase.IndexRebuildUsecase
	logger        *logger.ContextLogger
	stopChan      chan struct{}
	doneChan      chan struct{}
	backoff       time.Duration
	dirty         bool
}

func NewJobWorker(
	jobRepo domain.IngestJobRepository,
	ingestUsecase usecase.IngestJudgmentUsecase,
	indexUsecase usecase.IndexRebuildUsecase,
	log *logger.ContextLogger,
) *JobWorker {
	return &JobWorker{
		jobRepo:       jobRepo,
		ingestUsecase: ingestUsecase,
		indexUsecase:  indexUsecase,
		logger:        log,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

func (w *JobWorker) Start() {
	w.logger.WithContext(context.Background()).Info("job_worker_starting")
	go w.run()
}

// Stop signals the worker and waits for the job in progress to finish.
func (w *JobWorker) Stop() {
	w.logger.WithContext(context.Background()).Info("job_worker_stopping")
	close(w.stopChan)
	<-w.doneChan
}

func (w *JobWorker) run() {
	defer close(w.doneChan)
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNextJob()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(defaultPollInterval)
			}
		}
	}
}

func (w *JobWorker) processNextJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	log := w.logger.WithContext(ctx)

	job, err := w.jobRepo.AcquireNextJob(ctx)
	if err != nil {
		log.Error("acquire_next_job_failed", "error", err)
		return
	}
	if job == nil {
		w.rebuildIfDirty()
		return
	}

	ctx = logger.WithJobID(ctx, job.ID.String())
	ctx = logger.WithPipelineStage(ctx, "ingest")
	log = w.logger.WithContext(ctx)
	log.Info("job_processing", "type", job.JobType)

	var processErr error
	switch job.JobType {
	case domain.JobTypeIngestJudgment:
		processErr = w.processIngestJudgment(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.JobType)
	}

	status := domain.JobStatusCompleted
	var errMsg *string
	if processErr != nil {
		status = domain.JobStatusFailed
		msg := processErr.Error()
		errMsg = &msg
		w.backoff = w.nextBackoff(w.backoff)
		log.Warn("job_worker_backing_off", "backoff", w.backoff, "error", processErr)
	} else {
		w.backoff = 0
		w.dirty = true
		log.Info("job_completed")
	}

	if err := w.jobRepo.UpdateStatus(ctx, job.ID, status, errMsg); err != nil {
		log.Error("job_status_update_failed", "error", err)
	}
}

func (w *JobWorker) rebuildIfDirty() {
	if !w.dirty || w.indexUsecase == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
	defer cancel()
	ctx = logger.WithPipelineStage(ctx, "index_rebuild")

	status, err := w.indexUsecase.Rebuild(ctx)
	if err != nil {
		w.logger.WithContext(ctx).Error("lexical_index_rebuild_failed", "error", err)
		return
	}
	w.dirty = false
	w.logger.WithContext(ctx).Info("lexical_index_rebuilt_after_jobs", "documents", status.Documents)
}

func (w *JobWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (w *JobWorker) processIngestJudgment(ctx context.Context, job *domain.IngestJob) error {
	payload := job.Payload
	if strings.TrimSpace(payload.Text) == "" {
		return fmt.Errorf("missing or empty judgment text")
	}
	if payload.SourceName == "" {
		return fmt.Errorf("missing source name")
	}

	res, err := w.ingestUsecase.Ingest(ctx, usecase.IngestInput{
		SourceName: payload.SourceName,
		Text:       payload.Text,
	})
	if err != nil {
		return err
	}
	w.logger.WithContext(logger.WithJudgmentID(ctx, res.JudgmentID)).Info("judgment_job_result",
		"skipped", res.Skipped,
		"chunk_count", res.ChunkCount)
	return nil
}
