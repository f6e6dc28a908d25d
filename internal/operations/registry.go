package operations

import (
	"fmt"
	"sync"
)

// Registry holds stages in registration order.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Duplicate ids are configuration mistakes and
// rejected.
func (r *Registry) Register(stage Stage) error {
	if stage == nil {
		return fmt.Errorf("register stage: nil stage")
	}
	if stage.ID() == "" {
		return fmt.Errorf("register stage: empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stages[stage.ID()]; exists {
		return fmt.Errorf("register stage: duplicate id %q", stage.ID())
	}
	r.stages[stage.ID()] = stage
	r.order = append(r.order, stage.ID())
	return nil
}

// Get returns the stage with the given id.
func (r *Registry) Get(id string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stage, ok := r.stages[id]
	return stage, ok
}

// Stages returns all stages in registration order.
func (r *Registry) Stages() []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Stage, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.stages[id])
	}
	return out
}

// Len returns the number of registered stages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
