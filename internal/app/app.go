package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fundrank/internal/config"
	"fundrank/internal/infrastructure"
	"fundrank/internal/middleware"
	"fundrank/internal/operations"
	handlers "fundrank/internal/transport/http"
)

// Application is the results server: the configured pipeline plus the
// HTTP surface over its runs.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	Runs      *RunManager
	Server    *http.Server
}

// New builds a fully wired application from configuration.
func New(cfg *config.Config) (*Application, error) {
	logger := infrastructure.NewLogger(cfg.Logging)

	telemetry, err := infrastructure.NewTelemetry(Version)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	metrics, err := operations.NewMetrics(telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("initialize http metrics: %w", err)
	}

	pipeline, err := BuildPipeline(cfg, logger, metrics, PipelineOptions{WithExport: true})
	if err != nil {
		return nil, err
	}
	runs := NewRunManager(pipeline, cfg.Run.AsOfDate, logger)

	router := handlers.NewRouter(handlers.RouterDeps{
		Results:        handlers.NewResultsHandler(runs, logger),
		Runs:           handlers.NewRunsHandler(runs, logger),
		Health:         handlers.NewHealthHandler(Version),
		Metrics:        httpMetrics,
		MetricsHandler: telemetry.PrometheusHTTP,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		Config:    cfg,
		Logger:    logger,
		Telemetry: telemetry,
		Runs:      runs,
		Server:    server,
	}, nil
}

// Run serves the API until the context is cancelled or a termination
// signal arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("results server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("results server: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown results server: %w", err)
	}
	if err := a.Telemetry.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("telemetry shutdown", "error", err)
	}
	return nil
}
