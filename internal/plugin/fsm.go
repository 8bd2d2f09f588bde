package plugin

import (
	"fmt"
	"sync"

	"oatty/internal/api"
)

// fsm is the explicit plugin lifecycle state machine: Disabled -> Stopped
// -> Starting -> Running/Unhealthy/Failed, with restarts routed back
// through Starting. Transitions are validated so a caller cannot, for
// instance, move straight from Disabled to Running.
type fsm struct {
	mu    sync.Mutex
	state api.PluginState
}

func newFSM(initial api.PluginState) *fsm {
	return &fsm{state: initial}
}

func (f *fsm) Current() api.PluginState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

var validTransitions = map[api.PluginState]map[api.PluginState]bool{
	api.PluginDisabled:  {api.PluginStopped: true},
	api.PluginStopped:   {api.PluginStarting: true, api.PluginDisabled: true},
	api.PluginStarting:  {api.PluginRunning: true, api.PluginFailed: true, api.PluginStopped: true},
	api.PluginRunning:   {api.PluginUnhealthy: true, api.PluginStopped: true, api.PluginFailed: true},
	api.PluginUnhealthy: {api.PluginRunning: true, api.PluginStarting: true, api.PluginStopped: true, api.PluginFailed: true},
	api.PluginFailed:    {api.PluginStarting: true, api.PluginStopped: true, api.PluginDisabled: true},
}

// Transition moves the FSM to next, rejecting transitions not present in
// validTransitions.
func (f *fsm) Transition(next api.PluginState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == next {
		return nil
	}
	allowed, ok := validTransitions[f.state]
	if !ok || !allowed[next] {
		return fmt.Errorf("invalid plugin state transition %s -> %s", f.state, next)
	}
	f.state = next
	return nil
}
