package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"legal-rag/internal/bulkingest"
	"legal-rag/internal/di"
	"legal-rag/internal/infra"
	"legal-rag/internal/infra/config"
	"legal-rag/internal/infra/logger"
	"legal-rag/internal/usecase"
)

var (
	version = "dev"

	// Global flags
	verbose    bool
	cursorFile string

	// Run command flags
	dir         string
	concurrency int
	rate        float64
	batchSize   int
	retryFailed bool
	dryRun      bool

	// Analyze command flags
	text             string
	file             string
	topK             int
	judgmentID       int64
	retrieveStatutes bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "legal-rag",
	Short:   "Ingest and analyze legal judgments",
	Version: version,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Bulk ingestion of judgment text files",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest every *.txt judgment in a directory",
	Long: `Ingest every *.txt judgment in a directory into the judgment store.

Files are processed in name order and the position is kept in a cursor
file, so an interrupted run resumes where it stopped. Judgments already
stored (same case number or same content) are skipped.

Examples:
  legal-rag ingest run --dir ./judgments
  legal-rag ingest run --dir ./judgments --concurrency 8 --rate 4
  legal-rag ingest run --dir ./judgments --retry-failed`,
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the ingest cursor",
	RunE:  showStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset-cursor",
	Short: "Forget the ingest cursor and start from the first file",
	RunE:  resetCursor,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a passage and print the annotated context as JSON",
	RunE:  runAnalyze,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	ingestCmd.PersistentFlags().StringVar(&cursorFile, "cursor-file", "ingest-cursor.json", "cursor file path")
	runCmd.Flags().StringVar(&dir, "dir", "", "directory of judgment text files")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 4, "judgments ingested in parallel")
	runCmd.Flags().Float64Var(&rate, "rate", 0, "embedder calls per second, 0 for unlimited")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 16, "files per cursor checkpoint")
	runCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "retry files that failed in earlier runs")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the files that would be ingested")
	_ = runCmd.MarkFlagRequired("dir")

	analyzeCmd.Flags().StringVar(&text, "text", "", "passage to analyze")
	analyzeCmd.Flags().StringVar(&file, "file", "", "file containing the passage to analyze")
	analyzeCmd.Flags().IntVar(&topK, "top-k", 0, "excerpts to keep, 0 for the configured default")
	analyzeCmd.Flags().Int64Var(&judgmentID, "judgment-id", 0, "restrict vector retrieval to one judgment")
	analyzeCmd.Flags().BoolVar(&retrieveStatutes, "statutes", true, "look up referenced statutes")
	analyzeCmd.MarkFlagsMutuallyExclusive("text", "file")
	analyzeCmd.MarkFlagsOneRequired("text", "file")

	ingestCmd.AddCommand(runCmd, statusCmd, resetCmd)
	rootCmd.AddCommand(ingestCmd, analyzeCmd)
}

func newLogger() *slog.Logger {
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.New(level)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received_signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// openApp connects to the database and wires the application.
func openApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*di.ApplicationComponents, func(), error) {
	pool, err := infra.NewPostgresDB(ctx, cfg.DB.DSN(), infra.PoolConfig{MaxConns: cfg.DB.MaxConns, MinConns: cfg.DB.MinConns})
	if err != nil {
		return nil, nil, err
	}
	app, err := di.NewApplicationComponents(ctx, cfg, pool, log)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return app, pool.Close, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx, cancel := signalContext(log)
	defer cancel()

	cfg := config.Load()
	cfg.Ingest.BatchConcurrency = concurrency
	cfg.Ingest.EmbedRate = rate

	rcfg := bulkingest.DefaultConfig()
	rcfg.Dir = dir
	rcfg.CursorFile = cursorFile
	rcfg.BatchSize = batchSize
	rcfg.RetryFailed = retryFailed
	rcfg.DryRun = dryRun

	var ingester bulkingest.BatchIngester
	if !dryRun {
		app, closeDB, err := openApp(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		defer closeDB()
		ingester = app.IngestUsecase
	}

	runner, err := bulkingest.NewRunner(rcfg, ingester, log)
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	start := time.Now()
	summary, err := runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("ingest_interrupted", slog.Int("remaining", summary.Remaining))
		return nil
	}
	if err != nil {
		return fmt.Errorf("run ingest: %w", err)
	}

	log.Info("ingest_finished",
		slog.Int("files", summary.Files),
		slog.Int("ingested", summary.Ingested),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	cursor, err := bulkingest.NewCursorManager(cursorFile).Load()
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}

	out := cmd.OutOrStdout()
	if cursor.IsEmpty() {
		fmt.Fprintln(out, "No cursor found. Ingestion will start from the first file.")
		return nil
	}

	fmt.Fprintf(out, "Cursor Status:\n")
	fmt.Fprintf(out, "  Version:         %d\n", cursor.Version)
	fmt.Fprintf(out, "  Directory:       %s\n", cursor.Dir)
	fmt.Fprintf(out, "  Last File:       %s\n", cursor.LastFile)
	fmt.Fprintf(out, "  Processed Count: %d\n", cursor.ProcessedCount)
	fmt.Fprintf(out, "  Skipped Count:   %d\n", cursor.SkippedCount)
	fmt.Fprintf(out, "  Failed Files:    %d\n", len(cursor.Failed))
	fmt.Fprintf(out, "  Updated At:      %s\n", cursor.UpdatedAt.Format(time.RFC3339))
	return nil
}

func resetCursor(cmd *cobra.Command, args []string) error {
	if err := bulkingest.NewCursorManager(cursorFile).Reset(); err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}
	newLogger().Info("cursor_reset", slog.String("cursor_file", cursorFile))
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx, cancel := signalContext(log)
	defer cancel()

	input := text
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read passage: %w", err)
		}
		input = string(data)
	}

	cfg := config.Load()
	app, closeDB, err := openApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer closeDB()

	if _, err := app.IndexUsecase.Rebuild(ctx); err != nil {
		return fmt.Errorf("build lexical index: %w", err)
	}

	in := usecase.NewAnalyzeInput(input)
	in.TopK = topK
	in.JudgmentID = judgmentID
	in.RetrieveStatutes = retrieveStatutes

	out, err := app.AnalyzeUsecase.Execute(ctx, in)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
