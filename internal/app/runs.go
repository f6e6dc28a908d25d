package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fundrank/internal/operations"
	handlers "fundrank/internal/transport/http"
)

// RunManager owns pipeline execution for the results server: one run
// at a time, in the background, with the last successful run kept for
// the read endpoints.
type RunManager struct {
	pipeline *operations.Manager
	asOf     func() (time.Time, error)
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	current *operations.State
	lastErr error
	latest  *operations.State
}

// NewRunManager creates a run manager. asOf resolves the reference
// date at run start so long-lived servers pick up date changes.
func NewRunManager(pipeline *operations.Manager, asOf func() (time.Time, error), logger *slog.Logger) *RunManager {
	return &RunManager{pipeline: pipeline, asOf: asOf, logger: logger}
}

// Start launches a pipeline run in the background. Only one run may be
// active at a time.
func (m *RunManager) Start(ctx context.Context) (string, error) {
	asOf, err := m.asOf()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return "", handlers.ErrRunInProgress
	}
	state := m.pipeline.NewRun(asOf)
	m.running = true
	m.current = state
	m.lastErr = nil
	m.mu.Unlock()

	// The run outlives the triggering request.
	go m.execute(context.WithoutCancel(ctx), state)

	return state.RunID, nil
}

// RunOnce executes a run synchronously, for batch mode.
func (m *RunManager) RunOnce(ctx context.Context) (*operations.State, error) {
	asOf, err := m.asOf()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, handlers.ErrRunInProgress
	}
	state := m.pipeline.NewRun(asOf)
	m.running = true
	m.current = state
	m.lastErr = nil
	m.mu.Unlock()

	err = m.finish(state, m.pipeline.Execute(ctx, state))
	return state, err
}

func (m *RunManager) execute(ctx context.Context, state *operations.State) {
	if err := m.finish(state, m.pipeline.Execute(ctx, state)); err != nil {
		m.logger.Error("background run failed", "run_id", state.RunID, "error", err)
	}
}

func (m *RunManager) finish(state *operations.State, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.lastErr = err
	if err == nil {
		m.latest = state
	}
	return err
}

// Latest returns the most recent successfully completed run.
func (m *RunManager) Latest() (*operations.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.latest != nil
}

// Status reports the most recent run's progress, completed or not.
func (m *RunManager) Status() (handlers.RunStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return handlers.RunStatus{}, false
	}

	status := handlers.RunStatus{
		RunID:     m.current.RunID,
		AsOf:      m.current.AsOf.Format("2006-01-02"),
		Running:   m.running,
		Succeeded: !m.running && m.lastErr == nil,
	}
	if m.lastErr != nil {
		status.Error = m.lastErr.Error()
	}
	for _, st := range m.current.StageStates() {
		status.Stages = append(status.Stages, handlers.StageStatus{
			ID:       st.ID(),
			Name:     st.Name(),
			Status:   st.Status(),
			Duration: st.Duration().Round(time.Millisecond).String(),
		})
	}
	return status, true
}
