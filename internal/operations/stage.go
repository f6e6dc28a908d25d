// Package operations orchestrates the ranking pipeline as an ordered
// sequence of stages. Each stage reads and writes the shared run
// state; the manager executes them in registration order, records
// timings, and stops at the first failure.
package operations

import (
	"context"
	"sync"
	"time"
)

// Stage statuses.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Stage is one unit of pipeline work.
type Stage interface {
	// ID is the stable machine identifier, unique within a registry.
	ID() string
	// Name is the human-readable label used in logs and reports.
	Name() string
	// Run executes the stage against the shared state.
	Run(ctx context.Context, state *State) error
}

// StageState tracks one stage's execution lifecycle.
type StageState struct {
	mu        sync.Mutex
	id        string
	name      string
	status    string
	err       error
	startedAt time.Time
	endedAt   time.Time
}

// NewStageState creates a pending state for a stage.
func NewStageState(id, name string) *StageState {
	return &StageState{id: id, name: name, status: StatusPending}
}

// ID returns the stage identifier.
func (s *StageState) ID() string { return s.id }

// Name returns the stage label.
func (s *StageState) Name() string { return s.name }

// Status returns the current lifecycle status.
func (s *StageState) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the failure cause, nil unless the stage failed.
func (s *StageState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start marks the stage active.
func (s *StageState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusActive
	s.startedAt = time.Now()
}

// Complete marks the stage finished successfully.
func (s *StageState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusCompleted
	s.endedAt = time.Now()
}

// Fail marks the stage failed with its cause.
func (s *StageState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err
	s.endedAt = time.Now()
}

// Skip marks the stage as intentionally not run.
func (s *StageState) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusSkipped
	s.endedAt = time.Now()
}

// Duration returns the elapsed execution time. For an active stage it
// is the time since start; for a pending one it is zero.
func (s *StageState) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	if s.endedAt.IsZero() {
		return time.Since(s.startedAt)
	}
	return s.endedAt.Sub(s.startedAt)
}
