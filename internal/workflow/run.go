package workflow

import (
	"context"
	"sync"
	"time"

	"oatty/internal/api"
)

// Run is the mutable runtime state of one execution of a WorkflowDocument:
// its resolved inputs, per-step results, overall state, and the channel
// subscribers observe lifecycle events on.
type Run struct {
	ID     string
	Doc    *api.WorkflowDocument
	Graph  *Graph
	Inputs map[string]interface{}

	mu      sync.RWMutex
	results map[string]*api.StepResult
	state   api.RunState

	events chan api.RunEvent
	cancel context.CancelFunc

	StartedAt time.Time
	EndedAt   time.Time
}

func newRun(id string, doc *api.WorkflowDocument, graph *Graph, inputs map[string]interface{}, cancel context.CancelFunc) *Run {
	results := make(map[string]*api.StepResult, len(doc.Steps))
	for _, s := range doc.Steps {
		results[s.ID] = &api.StepResult{StepID: s.ID, State: api.StepPending}
	}
	return &Run{
		ID:      id,
		Doc:     doc,
		Graph:   graph,
		Inputs:  inputs,
		results: results,
		state:   api.RunPending,
		events:  make(chan api.RunEvent, 64),
		cancel:  cancel,
	}
}

// State returns the run's current terminal/non-terminal status.
func (r *Run) State() api.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Run) setState(s api.RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// StepResult returns a copy of one step's recorded result.
func (r *Run) StepResult(stepID string) (api.StepResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[stepID]
	if !ok {
		return api.StepResult{}, false
	}
	return *res, true
}

// Results returns a snapshot of every step's result.
func (r *Run) Results() map[string]api.StepResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]api.StepResult, len(r.results))
	for k, v := range r.results {
		out[k] = *v
	}
	return out
}

func (r *Run) setResult(stepID string, res api.StepResult) {
	r.mu.Lock()
	r.results[stepID] = &res
	r.mu.Unlock()
}

// Events returns the channel of lifecycle events for this run. It is
// closed once the run reaches a terminal state. The channel buffers 64
// events; an event emitted while the buffer is full is dropped.
func (r *Run) Events() <-chan api.RunEvent {
	return r.events
}

// Cancel requests cancellation of the run's remaining steps; steps already
// running are allowed to finish, their unstarted descendants transition to
// Cancelled.
func (r *Run) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Run) emit(ev api.RunEvent) {
	ev.RunID = r.ID
	ev.Timestamp = time.Now()
	select {
	case r.events <- ev:
	default:
		// A full buffer means no one is listening closely; drop rather
		// than block step execution on a slow/absent subscriber.
	}
}

// contextView builds the map the template engine resolves "${{ }}"
// expressions against: {"inputs": ..., "steps": {id: {"output": ...}}}.
func (r *Run) contextView() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make(map[string]interface{}, len(r.results))
	for id, res := range r.results {
		steps[id] = map[string]interface{}{
			"output": res.Output,
			"state":  string(res.State),
			"error":  res.Error,
		}
	}
	return map[string]interface{}{
		"inputs": r.Inputs,
		"steps":  steps,
	}
}
