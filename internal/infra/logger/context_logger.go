package logger

import (
	"context"
	"log/slog"
	"strings"
)

type ContextKey string

// Business context keys, following OpenTelemetry attribute naming with a 'legal.' prefix.
const (
	RequestIDKey     ContextKey = "legal.request.id"
	JudgmentIDKey    ContextKey = "legal.judgment.id"
	PipelineStageKey ContextKey = "legal.pipeline.stage"
	JobIDKey         ContextKey = "legal.job.id"
)

var contextKeys = []ContextKey{RequestIDKey, JudgmentIDKey, PipelineStageKey, JobIDKey}

// ContextLogger adds the business context carried by a context.Context to log records.
type ContextLogger struct {
	logger      *slog.Logger
	serviceName string
}

// NewContextLogger wraps base.
func NewContextLogger(base *slog.Logger, serviceName string) *ContextLogger {
	return &ContextLogger{logger: base, serviceName: serviceName}
}

// WithContext returns a logger with context values extracted and added as fields
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger.With("service", cl.serviceName)

	var fields []any
	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			fields = append(fields, string(key), v)
		}
	}
	if len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return logger
}

// WithRequestID adds the analysis request id to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithJudgmentID adds the judgment id to ctx.
func WithJudgmentID(ctx context.Context, judgmentID int64) context.Context {
	return context.WithValue(ctx, JudgmentIDKey, judgmentID)
}

// WithPipelineStage adds the pipeline stage (extract, detect, enhance, retrieve, ingest) to ctx.
func WithPipelineStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, PipelineStageKey, stage)
}

// WithJobID adds the ingest job id to ctx.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
