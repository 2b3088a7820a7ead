package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/net/http2"

	"legal-rag/internal/adapter/rag_http"
	"legal-rag/internal/di"
	"legal-rag/internal/infra"
	"legal-rag/internal/infra/config"
	"legal-rag/internal/infra/logger"
	"legal-rag/internal/infra/otel"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server_exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Telemetry and Logger
	shutdownOTel, err := otel.InitProvider(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("telemetry_shutdown_failed", "error", err)
		}
	}()

	log := logger.NewWithOTel(cfg.OTel.Enabled, cfg.LogLevel)
	slog.SetDefault(log)

	// 3. Initialize DB
	dbPool, err := infra.NewPostgresDB(ctx, cfg.DB.DSN(), infra.PoolConfig{MaxConns: cfg.DB.MaxConns, MinConns: cfg.DB.MinConns})
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer dbPool.Close()

	// 4. Wire Components
	app, err := di.NewApplicationComponents(ctx, cfg, dbPool, log)
	if err != nil {
		return err
	}

	// 5. Build the lexical index before taking traffic. /readyz stays
	// unavailable until a build succeeds, either here or on a later rebuild.
	if _, err := app.IndexUsecase.Rebuild(ctx); err != nil {
		log.Error("initial_index_build_failed", "error", err)
	}

	// 6. Start Worker
	if cfg.Worker.Enabled {
		app.Worker.Start()
		defer app.Worker.Stop()
	}

	// 7. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(cfg.OTel.ServiceName))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latency_ms", v.Latency.Milliseconds()),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "http_request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// 8. Register Routes
	ready := func(ctx context.Context) error { return dbPool.Ping(ctx) }
	rag_http.NewHandler(app.HandlerDependencies(ready, log)).Register(e)

	// 9. Start Server (HTTP/1.1 and h2c)
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server_starting", "addr", addr, "vector_search", string(app.VectorSearch))
		if err := e.StartH2CServer(addr, &http2.Server{}); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("server_stopping", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
