package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records pipeline telemetry. A nil *Metrics is a valid no-op
// recorder, so callers never have to branch on whether telemetry is
// wired.
type Metrics struct {
	runsTotal     metric.Int64Counter
	runDuration   metric.Float64Histogram
	stageDuration metric.Float64Histogram
	fundsRanked   metric.Int64Counter
}

// NewMetrics registers the pipeline instruments on the meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runsTotal, err := meter.Int64Counter(
		"fundrank_runs_total",
		metric.WithDescription("Total number of pipeline runs by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create runs counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		"fundrank_run_duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}

	stageDuration, err := meter.Float64Histogram(
		"fundrank_stage_duration_seconds",
		metric.WithDescription("Stage execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage duration histogram: %w", err)
	}

	fundsRanked, err := meter.Int64Counter(
		"fundrank_funds_ranked_total",
		metric.WithDescription("Funds that entered a profile ranking"),
	)
	if err != nil {
		return nil, fmt.Errorf("create funds ranked counter: %w", err)
	}

	return &Metrics{
		runsTotal:     runsTotal,
		runDuration:   runDuration,
		stageDuration: stageDuration,
		fundsRanked:   fundsRanked,
	}, nil
}

// RecordRun records one finished pipeline run.
func (m *Metrics) RecordRun(ctx context.Context, d time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordStage records one finished stage execution.
func (m *Metrics) RecordStage(ctx context.Context, stageID string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stageID),
		attribute.Bool("success", success),
	))
}

// RecordRanked records how many funds a profile ranking produced.
func (m *Metrics) RecordRanked(ctx context.Context, profile string, n int) {
	if m == nil {
		return
	}
	m.fundsRanked.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("profile", profile),
	))
}
