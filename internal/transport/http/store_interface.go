package http

import (
	"context"

	"fundrank/internal/operations"
)

// ResultsStore provides the latest completed run to the read-only
// results endpoints.
type ResultsStore interface {
	// Latest returns the most recent completed run state.
	Latest() (*operations.State, bool)
}

// RunService triggers pipeline runs and reports their progress.
type RunService interface {
	// Start launches a run in the background and returns its id.
	// ErrRunInProgress is returned while a run is active.
	Start(ctx context.Context) (string, error)
	// Status returns the most recent run's progress, false when no
	// run has been started.
	Status() (RunStatus, bool)
}

// RunStatus is the wire shape of a run's progress.
type RunStatus struct {
	RunID     string        `json:"run_id"`
	AsOf      string        `json:"as_of"`
	Running   bool          `json:"running"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
	Stages    []StageStatus `json:"stages"`
}

// StageStatus is one stage's progress within a run.
type StageStatus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
}
