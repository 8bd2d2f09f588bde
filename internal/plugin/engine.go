package plugin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"oatty/internal/api"
	"oatty/pkg/logging"

	"github.com/cenkalti/backoff/v5"
	"github.com/mark3labs/mcp-go/mcp"
)

// RestartGracePeriod is the pause between stop and start during a restart,
// giving a stdio subprocess time to release its file descriptors and an
// HTTP transport time to drain in-flight requests.
const RestartGracePeriod = 200 * time.Millisecond

// newMCPClient is a seam over NewMCPClientFromTransport so tests can swap in
// a fake MCPClient without spawning a real subprocess or HTTP dial.
var newMCPClient = NewMCPClientFromTransport

// instance is one running (or stopped) plugin: its static descriptor, its
// FSM, the live client connection when Running, and the diagnostic state
// consumed by the catalog's synthetic-command bookkeeping.
type instance struct {
	descriptor api.PluginDescriptor
	secrets    api.SecretStore

	fsm  *fsm
	logs *ringBuffer

	mu      sync.Mutex
	client  MCPClient
	tools   []api.ToolDescriptor
	lastErr error
	cancel  context.CancelFunc
}

// Engine supervises the lifecycle of every configured plugin: starting
// connections, restarting on failure with exponential backoff, recording
// every transition as an api.AuditRecord, and bridging tool discovery into
// the command registry's synthetic commands (spec section 4.4).
type Engine struct {
	mu        sync.RWMutex
	instances map[string]*instance
	audit     []api.AuditRecord
	catalog   api.SyntheticCatalog
	notify    api.ToolUpdateSubscriber
	redact    func(string) string
}

// NewEngine creates an empty plugin engine. catalog receives the synthetic
// CommandSpecs a plugin's discovered tools become on reaching Running, and
// has them withdrawn by plugin id when the plugin stops; it may be nil in
// tests that only exercise lifecycle/invocation and never touch a registry.
// subscriber is an additional, optional observer of the same tool-list
// changes (e.g. for cache invalidation) and may also be nil.
func NewEngine(catalog api.SyntheticCatalog, subscriber api.ToolUpdateSubscriber) *Engine {
	return &Engine{
		instances: make(map[string]*instance),
		catalog:   catalog,
		notify:    subscriber,
		redact:    func(s string) string { return s },
	}
}

// SetRedactor installs the function every audit/log string passes through
// before being recorded. A nil redactor restores the identity function.
func (e *Engine) SetRedactor(r func(string) string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r == nil {
		r = func(s string) string { return s }
	}
	e.redact = r
}

// Register adds or replaces a plugin descriptor, starting it as Disabled
// if it arrives disabled or Stopped otherwise. A running instance with the
// same ID is stopped first so descriptor changes take effect cleanly.
func (e *Engine) Register(def api.PluginDescriptor, secrets api.SecretStore) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.instances[def.ID]; ok {
		e.stopLocked(existing)
	}

	initial := api.PluginStopped
	if !def.Enabled {
		initial = api.PluginDisabled
	}
	inst := &instance{
		descriptor: def,
		secrets:    secrets,
		fsm:        newFSM(initial),
		logs:       newRingBuffer(1000),
	}
	e.instances[def.ID] = inst
	e.recordLocked(api.AuditRecord{Time: time.Now(), PluginID: def.ID, Action: "transition", Detail: string(initial)})
}

// State returns the current lifecycle state of a plugin.
func (e *Engine) State(id string) (api.PluginState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.instances[id]
	if !ok {
		return "", false
	}
	return inst.fsm.Current(), true
}

// Logs returns the buffered diagnostic output of a plugin.
func (e *Engine) Logs(id string) ([]api.LogLine, bool) {
	e.mu.RLock()
	inst, ok := e.instances[id]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return inst.logs.Lines(), true
}

// Audit returns every recorded lifecycle/invocation record, oldest first.
func (e *Engine) Audit() []api.AuditRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]api.AuditRecord, len(e.audit))
	copy(out, e.audit)
	return out
}

func (e *Engine) recordLocked(rec api.AuditRecord) {
	rec.Detail = e.redact(rec.Detail)
	rec.Err = e.redact(rec.Err)
	e.audit = append(e.audit, rec)
}

// Start transitions a plugin from Stopped to Running, dialing its transport
// and discovering its tools. Restart-on-failure is handled by StartWithRestarts;
// Start performs a single attempt.
func (e *Engine) Start(ctx context.Context, id string) error {
	e.mu.Lock()
	inst, ok := e.instances[id]
	e.mu.Unlock()
	if !ok {
		return api.NewPluginNotFoundError(id)
	}
	return e.startInstance(ctx, inst)
}

func (e *Engine) startInstance(ctx context.Context, inst *instance) error {
	if err := inst.fsm.Transition(api.PluginStarting); err != nil {
		return err
	}
	e.mu.Lock()
	e.recordLocked(api.AuditRecord{Time: time.Now(), PluginID: inst.descriptor.ID, Action: "transition", Detail: string(api.PluginStarting)})
	e.mu.Unlock()

	client, err := newMCPClient(inst.descriptor.Transport, inst.secrets)
	if err != nil {
		return e.fail(inst, err)
	}
	if err := client.Initialize(ctx); err != nil {
		return e.fail(inst, err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Close()
		return e.fail(inst, err)
	}

	inst.mu.Lock()
	inst.client = client
	inst.tools = toolDescriptors(tools)
	inst.lastErr = nil
	inst.mu.Unlock()

	if err := inst.fsm.Transition(api.PluginRunning); err != nil {
		return err
	}

	e.mu.Lock()
	e.recordLocked(api.AuditRecord{Time: time.Now(), PluginID: inst.descriptor.ID, Action: "transition", Detail: string(api.PluginRunning)})
	e.mu.Unlock()

	e.captureStderr(inst, client)

	specs := synthesizeCommands(inst.descriptor.ID, inst.tools)
	if e.catalog != nil {
		e.catalog.InsertSynthetic(inst.descriptor.ID, specs)
	}
	if e.notify != nil {
		e.notify.OnToolsUpdated(api.ToolUpdateEvent{Source: inst.descriptor.ID, Commands: specs, Timestamp: time.Now()})
	}
	return nil
}

// captureStderr pipes a stdio plugin's stderr into its ring buffer
// (spec section 4.4: "stderr is captured into the plugin's ring buffer").
// Transports without a stderr stream (HTTP/SSE) are a no-op.
func (e *Engine) captureStderr(inst *instance, client MCPClient) {
	stderrer, ok := client.(interface{ GetStderr() (io.Reader, bool) })
	if !ok {
		return
	}
	r, ok := stderrer.GetStderr()
	if !ok || r == nil {
		return
	}
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			inst.logs.Append(scanner.Text())
		}
	}()
}

func (e *Engine) fail(inst *instance, cause error) error {
	inst.mu.Lock()
	inst.lastErr = cause
	inst.mu.Unlock()

	_ = inst.fsm.Transition(api.PluginFailed)
	e.mu.Lock()
	e.recordLocked(api.AuditRecord{Time: time.Now(), PluginID: inst.descriptor.ID, Action: "transition", Detail: string(api.PluginFailed), Err: cause.Error()})
	e.mu.Unlock()
	inst.logs.Append(fmt.Sprintf("start failed: %v", cause))
	return cause
}

// StartWithRestarts starts a plugin and keeps it alive, restarting with
// exponential backoff whenever the connection is lost, until ctx is
// cancelled or Stop is called.
func (e *Engine) StartWithRestarts(ctx context.Context, id string) error {
	e.mu.Lock()
	inst, ok := e.instances[id]
	e.mu.Unlock()
	if !ok {
		return api.NewPluginNotFoundError(id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	inst.mu.Lock()
	inst.cancel = cancel
	inst.mu.Unlock()

	go func() {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxInterval = 60 * time.Second

		for {
			if err := e.startInstance(runCtx, inst); err != nil {
				delay := b.NextBackOff()
				select {
				case <-runCtx.Done():
					return
				case <-time.After(delay):
				}
				continue
			}
			b.Reset()

			<-e.waitForDisconnect(runCtx, inst)
			if runCtx.Err() != nil {
				return
			}
			time.Sleep(RestartGracePeriod)
		}
	}()
	return nil
}

// waitForDisconnect pings the plugin's client on an interval and returns a
// channel closed when the ping fails or the context is cancelled.
func (e *Engine) waitForDisconnect(ctx context.Context, inst *instance) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				inst.mu.Lock()
				client := inst.client
				inst.mu.Unlock()
				if client == nil {
					return
				}
				if err := client.Ping(ctx); err != nil {
					_ = inst.fsm.Transition(api.PluginUnhealthy)
					e.mu.Lock()
					e.recordLocked(api.AuditRecord{Time: time.Now(), PluginID: inst.descriptor.ID, Action: "transition", Detail: string(api.PluginUnhealthy), Err: err.Error()})
					e.mu.Unlock()
					return
				}
			}
		}
	}()
	return done
}

// Stop cleanly shuts down a plugin's transport and transitions it to
// Stopped, cancelling any restart loop started via StartWithRestarts.
func (e *Engine) Stop(id string) error {
	e.mu.Lock()
	inst, ok := e.instances[id]
	e.mu.Unlock()
	if !ok {
		return api.NewPluginNotFoundError(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked(inst)
}

func (e *Engine) stopLocked(inst *instance) error {
	inst.mu.Lock()
	if inst.cancel != nil {
		inst.cancel()
		inst.cancel = nil
	}
	client := inst.client
	inst.client = nil
	inst.mu.Unlock()

	if client != nil {
		if err := client.Close(); err != nil {
			logging.Debug("PluginEngine", "error closing plugin %s: %v", inst.descriptor.ID, err)
		}
	}
	_ = inst.fsm.Transition(api.PluginStopped)
	e.recordLocked(api.AuditRecord{Time: time.Now(), PluginID: inst.descriptor.ID, Action: "transition", Detail: string(api.PluginStopped)})

	if e.catalog != nil {
		e.catalog.RemoveSynthetic(inst.descriptor.ID)
	}
	if e.notify != nil {
		e.notify.OnToolsUpdated(api.ToolUpdateEvent{Source: inst.descriptor.ID, Timestamp: time.Now()})
	}
	return nil
}

// Invoke calls a tool on a running plugin, recording the tool name and any
// error in the audit log; the call arguments are not recorded.
func (e *Engine) Invoke(ctx context.Context, id, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	e.mu.Lock()
	inst, ok := e.instances[id]
	e.mu.Unlock()
	if !ok {
		return nil, api.NewPluginNotFoundError(id)
	}

	inst.mu.Lock()
	client := inst.client
	inst.mu.Unlock()
	if client == nil || inst.fsm.Current() != api.PluginRunning {
		return nil, &api.ToolError{PluginID: id, ToolID: tool, Detail: "plugin is not running"}
	}

	result, err := client.CallTool(ctx, tool, args)

	e.mu.Lock()
	rec := api.AuditRecord{Time: time.Now(), PluginID: id, Action: "invoke", Detail: tool}
	if err != nil {
		rec.Err = err.Error()
	}
	e.recordLocked(rec)
	e.mu.Unlock()

	if err != nil {
		return nil, &api.ToolError{PluginID: id, ToolID: tool, Detail: err.Error()}
	}
	return result, nil
}

// Tools returns the tools discovered from a running plugin.
func (e *Engine) Tools(id string) ([]api.ToolDescriptor, bool) {
	e.mu.RLock()
	inst, ok := e.instances[id]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	out := make([]api.ToolDescriptor, len(inst.tools))
	copy(out, inst.tools)
	return out, true
}

// UpdateConfig applies a new set of plugin descriptors without restarting
// the process (spec section 4.4's hot-reload). It diffs against the
// currently registered descriptors by id: plugins absent from defs are
// stopped and forgotten; new enabled plugins are registered and started;
// plugins whose transport-affecting fields changed are restarted; plugins
// whose descriptor is unchanged are left running untouched; plugins that
// become disabled are stopped. update_config(same_config) is therefore a
// no-op, matching the round-trip property in spec section 8.
func (e *Engine) UpdateConfig(ctx context.Context, defs []api.PluginDescriptor, secrets api.SecretStore) {
	wanted := make(map[string]api.PluginDescriptor, len(defs))
	for _, d := range defs {
		wanted[d.ID] = d
	}

	e.mu.Lock()
	existingIDs := make([]string, 0, len(e.instances))
	for id := range e.instances {
		existingIDs = append(existingIDs, id)
	}
	e.mu.Unlock()

	for _, id := range existingIDs {
		if _, ok := wanted[id]; ok {
			continue
		}
		_ = e.Stop(id)
		e.mu.Lock()
		delete(e.instances, id)
		e.mu.Unlock()
	}

	for _, def := range defs {
		e.mu.Lock()
		existing, ok := e.instances[def.ID]
		e.mu.Unlock()

		switch {
		case !ok:
			e.Register(def, secrets)
			if def.Enabled {
				_ = e.StartWithRestarts(ctx, def.ID)
			}
		case !def.Enabled:
			_ = e.Stop(def.ID)
			_ = existing.fsm.Transition(api.PluginDisabled)
			existing.mu.Lock()
			existing.descriptor = def
			existing.mu.Unlock()
		case transportChanged(existing.descriptor, def):
			wasRunning := existing.fsm.Current() == api.PluginRunning || existing.fsm.Current() == api.PluginUnhealthy
			_ = e.Stop(def.ID)
			existing.mu.Lock()
			existing.descriptor = def
			existing.mu.Unlock()
			if wasRunning {
				time.Sleep(RestartGracePeriod)
				_ = e.StartWithRestarts(ctx, def.ID)
			}
		default:
			existing.mu.Lock()
			existing.descriptor = def
			existing.mu.Unlock()
		}
	}
}

// transportChanged reports whether two descriptors differ in a field that
// requires tearing down and re-establishing the transport connection.
func transportChanged(a, b api.PluginDescriptor) bool {
	return !reflect.DeepEqual(a.Transport, b.Transport)
}

func toolDescriptors(tools []mcp.Tool) []api.ToolDescriptor {
	out := make([]api.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		desc := api.ToolDescriptor{ID: t.Name, Description: t.Description}
		if t.InputSchema.Properties != nil {
			required := make(map[string]bool, len(t.InputSchema.Required))
			for _, r := range t.InputSchema.Required {
				required[r] = true
			}
			for name := range t.InputSchema.Properties {
				desc.Inputs = append(desc.Inputs, api.ToolInputField{
					Name:     name,
					Type:     api.ArgString,
					Required: required[name],
				})
			}
		}
		out = append(out, desc)
	}
	return out
}
