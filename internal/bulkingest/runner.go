package bulkingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"legal-rag/internal/usecase"
)

// BatchIngester ingests judgments concurrently, reporting per-input outcomes.
type BatchIngester interface {
	IngestBatch(ctx context.Context, inputs []usecase.IngestInput) ([]usecase.IngestOutcome, error)
}

type Config struct {
	Dir         string
	CursorFile  string
	BatchSize   int
	RetryFailed bool
	DryRun      bool
}

func DefaultConfig() Config {
	return Config{
		CursorFile: "ingest-cursor.json",
		BatchSize:  16,
	}
}

// Summary counts what one run did.
type Summary struct {
	Files     int
	Ingested  int
	Skipped   int
	Failed    int
	Remaining int
}

// Runner walks a directory of judgment text files and ingests those after the cursor.
type Runner struct {
	cfg      Config
	cursors  *CursorManager
	ingester BatchIngester
	logger   *slog.Logger
}

func NewRunner(cfg Config, ingester BatchIngester, logger *slog.Logger) (*Runner, error) {
	if cfg.Dir == "" {
		return nil, errors.New("directory is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	return &Runner{
		cfg:      cfg,
		cursors:  NewCursorManager(cfg.CursorFile),
		ingester: ingester,
		logger:   logger,
	}, nil
}

// Pending lists the *.txt files still to be ingested, in processing order.
// Previously failed files come first when RetryFailed is set.
func (r *Runner) Pending(cursor Cursor) ([]string, error) {
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read judgment directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	var pending []string
	if r.cfg.RetryFailed {
		for _, f := range cursor.Failed {
			if slices.Contains(names, f) {
				pending = append(pending, f)
			}
		}
	}
	for _, name := range names {
		if name > cursor.LastFile {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

// Run ingests pending files batch by batch, saving the cursor after each batch.
// A cancelled context stops between batches with the cursor saved.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if err := r.cursors.Lock(); err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := r.cursors.Unlock(); err != nil {
			r.logger.Warn("cursor_unlock_failed", slog.String("error", err.Error()))
		}
	}()

	cursor, err := r.cursors.Load()
	if err != nil {
		return Summary{}, err
	}
	if cursor.Dir != "" && cursor.Dir != r.cfg.Dir {
		return Summary{}, fmt.Errorf("cursor belongs to %s, not %s; reset it first", cursor.Dir, r.cfg.Dir)
	}
	cursor.Dir = r.cfg.Dir

	pending, err := r.Pending(cursor)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Files: len(pending), Remaining: len(pending)}
	r.logger.Info("bulk_ingest_starting",
		slog.String("dir", r.cfg.Dir),
		slog.Int("pending", len(pending)),
		slog.String("after", cursor.LastFile),
		slog.Bool("dry_run", r.cfg.DryRun))

	if r.cfg.DryRun {
		for _, name := range pending {
			r.logger.Info("would_ingest", slog.String("file", name))
		}
		return summary, nil
	}

	for lo := 0; lo < len(pending); lo += r.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch := pending[lo:min(lo+r.cfg.BatchSize, len(pending))]

		inputs := make([]usecase.IngestInput, 0, len(batch))
		var unreadable []string
		for _, name := range batch {
			data, err := os.ReadFile(filepath.Join(r.cfg.Dir, name))
			if err != nil {
				r.logger.Error("judgment_read_failed", slog.String("file", name), slog.String("error", err.Error()))
				unreadable = append(unreadable, name)
				continue
			}
			inputs = append(inputs, usecase.IngestInput{SourceName: name, Text: string(data)})
		}

		outcomes, batchErr := r.ingester.IngestBatch(ctx, inputs)
		if errors.Is(batchErr, context.Canceled) || errors.Is(batchErr, context.DeadlineExceeded) {
			return summary, batchErr
		}

		for _, name := range unreadable {
			cursor.MarkFailed(name)
			summary.Failed++
		}
		for _, o := range outcomes {
			switch {
			case o.Err != nil:
				cursor.MarkFailed(o.Result.SourceName)
				summary.Failed++
			case o.Result.Skipped:
				cursor.ClearFailed(o.Result.SourceName)
				cursor.SkippedCount++
				summary.Skipped++
			default:
				cursor.ClearFailed(o.Result.SourceName)
				cursor.ProcessedCount++
				summary.Ingested++
			}
		}
		if last := batch[len(batch)-1]; last > cursor.LastFile {
			cursor.LastFile = last
		}
		summary.Remaining -= len(batch)

		if err := r.cursors.Save(cursor); err != nil {
			return summary, err
		}
		r.logger.Info("bulk_ingest_batch_done",
			slog.String("last_file", cursor.LastFile),
			slog.Int("ingested", summary.Ingested),
			slog.Int("skipped", summary.Skipped),
			slog.Int("failed", summary.Failed),
			slog.Int("remaining", summary.Remaining))
	}
	return summary, nil
}

// Cursor returns the saved cursor without locking it.
func (r *Runner) Cursor() (Cursor, error) {
	return r.cursors.Load()
}

func (r *Runner) ResetCursor() error {
	return r.cursors.Reset()
}
