package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
)

// ServiceName is the instrumentation scope used for exported logs.
const ServiceName = "legal-rag"

// New creates a basic JSON logger (stdout only)
func New(level string) *slog.Logger {
	return NewWithOTel(false, level)
}

// NewWithOTel creates a logger with optional OTel support
func NewWithOTel(enableOTel bool, level string) *slog.Logger {
	return newLogger(os.Stdout, enableOTel, parseLevel(level))
}

func newLogger(w io.Writer, enableOTel bool, level slog.Level) *slog.Logger {
	var handler slog.Handler
	if enableOTel {
		handler = NewMultiHandler(w, level)
	} else {
		jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
		handler = NewTraceContextHandler(jsonHandler)
	}

	l := slog.New(handler)
	l.Info("logger_initialized", "otel_enabled", enableOTel)
	return l
}

// MultiHandler sends logs to multiple handlers
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler that writes JSON to w and exports to OTel
// through the otelslog bridge.
func NewMultiHandler(w io.Writer, level slog.Level) *MultiHandler {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	stdoutHandler := NewTraceContextHandler(jsonHandler)

	otelHandler := otelslog.NewHandler(
		ServiceName,
		otelslog.WithLoggerProvider(global.GetLoggerProvider()),
	)

	return &MultiHandler{
		handlers: []slog.Handler{
			stdoutHandler,
			otelHandler,
		},
	}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			_ = handler.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}
