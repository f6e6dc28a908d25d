package operations

import (
	"sync"
	"time"

	"fundrank/internal/features"
	"fundrank/internal/fund"
	"fundrank/internal/guardrails"
	"fundrank/internal/ingest"
	"fundrank/internal/ranking"
	"fundrank/internal/returns"
	"fundrank/internal/scoring"
)

// State is the shared run context handed to every stage. Stages run
// sequentially, so the artifact fields need no locking; only the
// per-stage lifecycle map is accessed concurrently (progress readers
// vs the running pipeline).
type State struct {
	RunID string
	AsOf  time.Time

	// Artifacts, populated stage by stage.
	Dataset    *ingest.Dataset
	Daily      []returns.DailyReturn
	Monthly    []returns.MonthlyReturn
	Features   []features.Row
	Normalized []scoring.NormalizedRow
	Scores     []scoring.ScoreRow
	Failures   map[fund.CNPJ][]string
	Audit      []guardrails.Result
	Ranked     []ranking.ShortlistEntry
	Shortlist  []ranking.ShortlistEntry

	mu     sync.RWMutex
	stages map[string]*StageState
	order  []string
}

// NewState creates a run state for the given run id and reference
// date.
func NewState(runID string, asOf time.Time) *State {
	return &State{
		RunID:  runID,
		AsOf:   asOf,
		stages: make(map[string]*StageState),
	}
}

// TrackStage registers lifecycle tracking for a stage and returns its
// state. Calling it twice for the same id returns the existing state.
func (s *State) TrackStage(id, name string) *StageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stages[id]; ok {
		return st
	}
	st := NewStageState(id, name)
	s.stages[id] = st
	s.order = append(s.order, id)
	return st
}

// StageStates returns the tracked stage states in execution order.
func (s *State) StageStates() []*StageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*StageState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.stages[id])
	}
	return out
}

// FeatureRowIndex returns the feature rows keyed by fund id, the shape
// the guardrail evaluator consumes.
func (s *State) FeatureRowIndex() map[fund.CNPJ]features.Row {
	out := make(map[fund.CNPJ]features.Row, len(s.Features))
	for _, row := range s.Features {
		out[row.FundID] = row
	}
	return out
}
