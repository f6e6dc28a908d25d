package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Manager executes the registered stages in order against a fresh run
// state, recording lifecycle and telemetry for each.
type Manager struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *Metrics
}

// NewManager creates a pipeline manager. metrics may be nil when
// telemetry is not wired.
func NewManager(registry *Registry, logger *slog.Logger, metrics *Metrics) (*Manager, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("pipeline manager: no stages registered")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{registry: registry, logger: logger, metrics: metrics}, nil
}

// NewRun creates a fresh run state with a unique id. Splitting state
// creation from execution lets callers observe stage progress while
// the run executes.
func (m *Manager) NewRun(asOf time.Time) *State {
	return NewState(uuid.NewString(), asOf)
}

// Run executes the pipeline for the given reference date. The returned
// state carries every stage's artifacts and lifecycle; on failure the
// partially populated state is returned alongside the error so callers
// can inspect how far the run got.
func (m *Manager) Run(ctx context.Context, asOf time.Time) (*State, error) {
	state := m.NewRun(asOf)
	return state, m.Execute(ctx, state)
}

// Execute runs every registered stage against the given state,
// stopping at the first failure.
func (m *Manager) Execute(ctx context.Context, state *State) error {
	logger := m.logger.With("run_id", state.RunID)

	logger.Info("pipeline run started",
		"as_of", state.AsOf.Format("2006-01-02"),
		"stages", m.registry.Len(),
	)

	runStart := time.Now()
	for _, stage := range m.registry.Stages() {
		stageState := state.TrackStage(stage.ID(), stage.Name())

		if err := ctx.Err(); err != nil {
			stageState.Skip()
			m.metrics.RecordRun(ctx, time.Since(runStart), false)
			return fmt.Errorf("pipeline run %s: %w", state.RunID, err)
		}

		stageState.Start()
		logger.Info("stage started", "stage", stage.ID())

		err := stage.Run(ctx, state)
		duration := stageState.Duration()
		m.metrics.RecordStage(ctx, stage.ID(), duration, err == nil)

		if err != nil {
			stageState.Fail(err)
			logger.Error("stage failed",
				"stage", stage.ID(),
				"duration", duration.String(),
				"error", err,
			)
			m.metrics.RecordRun(ctx, time.Since(runStart), false)
			return fmt.Errorf("stage %s: %w", stage.ID(), err)
		}

		stageState.Complete()
		logger.Info("stage completed",
			"stage", stage.ID(),
			"duration", duration.String(),
		)
	}

	m.metrics.RecordRun(ctx, time.Since(runStart), true)
	logger.Info("pipeline run completed",
		"duration", time.Since(runStart).String(),
		"shortlisted", len(state.Shortlist),
	)
	return nil
}
