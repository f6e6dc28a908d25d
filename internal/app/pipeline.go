// Package app assembles the configured pipeline and, for the results
// server, the HTTP surface over the latest run.
package app

import (
	"fmt"
	"log/slog"

	"fundrank/internal/config"
	"fundrank/internal/exporter"
	"fundrank/internal/fetch"
	"fundrank/internal/ingest"
	"fundrank/internal/operations"
	"fundrank/internal/ranking"
	"fundrank/internal/returns"
	"fundrank/internal/scoring"
)

// Version is the service version reported by the API and telemetry.
const Version = "1.0.0"

// PipelineOptions selects optional stages.
type PipelineOptions struct {
	// WithFetch prepends the CVM dataset download stage.
	WithFetch bool
	// WithExport appends the CSV and workbook export stage.
	WithExport bool
}

// BuildPipeline wires the configured stages into an executable
// pipeline manager. metrics may be nil.
func BuildPipeline(cfg *config.Config, logger *slog.Logger, metrics *operations.Metrics, opts PipelineOptions) (*operations.Manager, error) {
	registry := operations.NewRegistry()

	if opts.WithFetch {
		fetcher := fetch.NewFetcher(
			cfg.Fetch.BaseURL,
			cfg.Fetch.RequestsPerSec,
			cfg.Fetch.Burst,
			cfg.Fetch.Timeout,
			logger,
		)
		if err := registry.Register(operations.NewFetchStage(fetcher, cfg.Fetch.Months, cfg.Paths.DataDir)); err != nil {
			return nil, err
		}
	}

	featuresStage, err := operations.NewFeaturesStage(cfg.Run, logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	normalizer, err := scoring.NewNormalizer(cfg.Run.NormalizeParams(), logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	guardrailStage, err := operations.NewGuardrailStage(cfg.Guardrails, logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	ranker, err := ranking.NewRanker(cfg.Run.TopN, logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	stages := []operations.Stage{
		operations.NewLoadStage(ingest.NewLoader(cfg.Paths.DataDir, logger)),
		operations.NewReturnsStage(returns.NewEngine(cfg.Run.NumPeriodMonths, logger)),
		featuresStage,
		operations.NewNormalizeStage(normalizer),
		operations.NewScoreStage(scoring.NewScorer(logger), cfg.Profiles),
		guardrailStage,
		operations.NewRankStage(ranker, metrics),
	}
	if opts.WithExport {
		stages = append(stages, operations.NewExportStage(
			exporter.NewCSVWriter(cfg.Paths.OutputDir, logger),
			exporter.NewReportWriter(cfg.Paths.OutputDir, logger),
		))
	}

	for _, stage := range stages {
		if err := registry.Register(stage); err != nil {
			return nil, err
		}
	}

	return operations.NewManager(registry, logger, metrics)
}
