// Package workflow implements the Workflow Engine (C5): it loads and
// validates WorkflowDocuments, builds their dependency graph, collects
// inputs, and runs them to completion through a bounded-concurrency,
// template-driven step scheduler, emitting lifecycle events throughout.
//
// Documents are persisted through the same config.Storage idiom used for
// catalogs and plugin descriptors; step execution replaces a flat
// sequential run with a dependency-graph scheduler and a "${{ }}"
// expression language (internal/workflow/template).
package workflow

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"oatty/internal/api"
	"oatty/internal/config"
	"oatty/internal/workflow/template"
	"oatty/pkg/logging"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	entityWorkflows = "workflows"
	entityRuns      = "workflow_runs"
)

// Manager owns the set of loaded WorkflowDocuments and the runs executing
// or having executed against them. One Manager typically backs one oatty
// process.
type Manager struct {
	registry CommandLookup
	http     api.HTTPExecutor
	plugins  PluginInvoker
	storage  *config.Storage

	tmpl *template.Engine

	mu    sync.RWMutex
	docs  map[string]*api.WorkflowDocument
	graph map[string]*Graph
	runs  map[string]*Run
}

// NewManager constructs a workflow Manager. storage may be nil, in which
// case documents and run history are kept in memory only.
func NewManager(registry CommandLookup, httpExec api.HTTPExecutor, plugins PluginInvoker, storage *config.Storage) *Manager {
	return &Manager{
		registry: registry,
		http:     httpExec,
		plugins:  plugins,
		storage:  storage,
		tmpl:     template.New(),
		docs:     make(map[string]*api.WorkflowDocument),
		graph:    make(map[string]*Graph),
		runs:     make(map[string]*Run),
	}
}

// Load parses and validates a workflow document (YAML or JSON; both decode
// through yaml.v3) and registers it for StartRun, persisting it via the
// injected Storage if any. A loaded document is immutable: re-running it
// always starts from the same graph and step definitions.
func (m *Manager) Load(raw []byte) (*api.WorkflowDocument, error) {
	var wire struct {
		ID          string                     `yaml:"id"`
		Title       string                     `yaml:"title"`
		Description string                     `yaml:"description"`
		Inputs      yaml.Node                  `yaml:"inputs"`
		Steps       []api.StepDef              `yaml:"steps"`
	}
	if err := yaml.Unmarshal(raw, &wire); err != nil {
		return nil, &api.ValidationError{Subject: "workflow document", Reason: err.Error()}
	}
	if wire.ID == "" {
		return nil, &api.ValidationError{Subject: "workflow", Reason: "missing required field \"id\""}
	}
	if len(wire.Steps) == 0 {
		return nil, &api.ValidationError{Subject: "workflow", Reason: "missing required field \"steps\""}
	}

	inputs, order, err := decodeOrderedInputs(&wire.Inputs)
	if err != nil {
		return nil, err
	}

	doc := &api.WorkflowDocument{
		ID:          wire.ID,
		Title:       wire.Title,
		Description: wire.Description,
		InputOrder:  order,
		Inputs:      inputs,
		Steps:       wire.Steps,
	}

	graph, err := BuildGraph(doc)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.docs[doc.ID] = doc
	m.graph[doc.ID] = graph
	m.mu.Unlock()

	if m.storage != nil {
		if err := m.storage.Save(entityWorkflows, doc.ID, raw); err != nil {
			logging.Warn("WorkflowManager", "failed to persist workflow %s: %v", doc.ID, err)
		}
	}
	return doc, nil
}

// decodeOrderedInputs preserves the YAML mapping's declaration order — Go's
// map iteration does not — since a document's inputs are an ordered map
// keyed by input name.
func decodeOrderedInputs(node *yaml.Node) (map[string]api.InputDef, []string, error) {
	inputs := make(map[string]api.InputDef)
	var order []string
	if node.Kind == 0 {
		return inputs, order, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, &api.ValidationError{Subject: "workflow.inputs", Reason: "must be a mapping"}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var def api.InputDef
		if err := node.Content[i+1].Decode(&def); err != nil {
			return nil, nil, &api.ValidationError{Subject: "workflow.inputs", Reason: err.Error(), Path: name}
		}
		def.Name = name
		inputs[name] = def
		order = append(order, name)
	}
	return inputs, order, nil
}

// Validate re-runs load-time validation against an already-loaded document,
// useful for a "lint" CLI command without starting a run.
func (m *Manager) Validate(id string) error {
	m.mu.RLock()
	doc, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return api.NewWorkflowNotFoundError(id)
	}
	_, err := BuildGraph(doc)
	return err
}

// Document returns a previously loaded document by id.
func (m *Manager) Document(id string) (*api.WorkflowDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// Documents lists every currently loaded document id.
func (m *Manager) Documents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartRun resolves rawInputs against the document's declared inputs,
// creates a Run, and starts its scheduler on a background goroutine,
// returning immediately with the Run so the caller can subscribe to
// Events(). The run's lifecycle is persisted incrementally as it proceeds.
func (m *Manager) StartRun(ctx context.Context, workflowID string, rawInputs map[string]interface{}) (*Run, error) {
	m.mu.RLock()
	doc, ok := m.docs[workflowID]
	graph := m.graph[workflowID]
	m.mu.RUnlock()
	if !ok {
		return nil, api.NewWorkflowNotFoundError(workflowID)
	}

	resolved, err := resolveInputs(doc, rawInputs)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := newRun(uuid.NewString(), doc, graph, resolved, cancel)

	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	sched := newScheduler(run, m.tmpl, &invoker{registry: m.registry, http: m.http, plugins: m.plugins}, DefaultConcurrency)

	go func() {
		m.persistRunEvents(run)
		sched.execute(runCtx)
	}()

	return run, nil
}

// persistRunEvents drains run's event channel on a separate goroutine,
// appending one JSON record per lifecycle transition to its on-disk
// history; it exits once the channel closes at run completion.
func (m *Manager) persistRunEvents(run *Run) {
	if m.storage == nil {
		return
	}
	go func() {
		var history []api.RunEvent
		for ev := range run.Events() {
			history = append(history, ev)
			data, err := json.MarshalIndent(history, "", "  ")
			if err != nil {
				continue
			}
			if err := m.storage.Save(entityRuns, run.ID, data); err != nil {
				logging.Warn("WorkflowManager", "failed to persist run %s history: %v", run.ID, err)
			}
		}
	}()
}

// Run returns a previously started run by id.
func (m *Manager) Run(runID string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[runID]
	return r, ok
}

// Cancel requests cancellation of a running run.
func (m *Manager) Cancel(runID string) error {
	r, ok := m.Run(runID)
	if !ok {
		return api.NewWorkflowNotFoundError(runID)
	}
	r.Cancel()
	return nil
}

// SuggestInput offers provider-backed suggestions for one input of a loaded
// document, given the caller's already-resolved inputs so far.
func (m *Manager) SuggestInput(ctx context.Context, workflowID, inputName, partial string, resolvedSoFar map[string]interface{}, resolver ProviderResolver) ([]api.SuggestionItem, bool) {
	doc, ok := m.Document(workflowID)
	if !ok {
		return nil, false
	}
	def, ok := doc.Inputs[inputName]
	if !ok {
		return nil, false
	}
	return SuggestInput(ctx, m.tmpl, resolver, def, partial, resolvedSoFar)
}
