package api

import "time"

// InputMode selects whether a workflow input accepts one value or several.
type InputMode string

const (
	InputSingle   InputMode = "single"
	InputMultiple InputMode = "multiple"
)

// InputValidation holds the constraints checked against a resolved input
// value before it is accepted.
type InputValidation struct {
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Enum     []string `yaml:"enum,omitempty" json:"enum,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	MinLen   int      `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLen   int      `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
}

// InputJoin describes how a multi-valued input is collapsed to a single
// template value before step use.
type InputJoin struct {
	Separator string `yaml:"separator" json:"separator"`
	Wrap      string `yaml:"wrap,omitempty" json:"wrap,omitempty"`
}

// InputDef is one entry of a WorkflowDocument's ordered inputs map.
type InputDef struct {
	Name string `yaml:"-" json:"name"`

	Type        string           `yaml:"type" json:"type"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Provider    *ValueProvider   `yaml:"provider,omitempty" json:"provider,omitempty"`
	// ProviderArgs maps a provider bind key to a template expression,
	// typically "${{ inputs.x }}" or "${{ steps.y.output... }}".
	ProviderArgs map[string]string `yaml:"providerArgs,omitempty" json:"providerArgs,omitempty"`
	// DependsOn lists, per provider-arg key, the upstream input/step
	// token it references. Required by the provider-dependency rule
	// whenever ProviderArgs references an upstream value.
	DependsOn map[string]string `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	Default   interface{}       `yaml:"default,omitempty" json:"default,omitempty"`
	Validate  *InputValidation  `yaml:"validate,omitempty" json:"validate,omitempty"`
	Mode      InputMode         `yaml:"mode,omitempty" json:"mode,omitempty"`
	CacheTTL  time.Duration     `yaml:"cacheTtl,omitempty" json:"cacheTtl,omitempty"`
	Join      *InputJoin        `yaml:"join,omitempty" json:"join,omitempty"`
}

// RepeatSpec configures the retry/poll loop around a step's execution.
type RepeatSpec struct {
	Until       string        `yaml:"until,omitempty" json:"until,omitempty"` // template boolean expr
	Every       time.Duration `yaml:"every,omitempty" json:"every,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxAttempts int           `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
}

// StepDef is one node of a workflow's step graph.
type StepDef struct {
	ID          string                 `yaml:"id" json:"id"`
	Run         string                 `yaml:"run" json:"run"` // command identifier "<group> <name>"
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	DependsOn   []string               `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	If          string                 `yaml:"if,omitempty" json:"if,omitempty"`
	With        map[string]interface{} `yaml:"with,omitempty" json:"with,omitempty"`
	Body        interface{}            `yaml:"body,omitempty" json:"body,omitempty"`
	Repeat      *RepeatSpec            `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	OutputContract *OutputContract     `yaml:"outputContract,omitempty" json:"outputContract,omitempty"`
}

// WorkflowDocument is an immutable, loaded workflow definition.
type WorkflowDocument struct {
	ID          string              `yaml:"id" json:"id"`
	Title       string              `yaml:"title,omitempty" json:"title,omitempty"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	// InputOrder preserves declaration order of Inputs (an ordered map).
	InputOrder []string            `yaml:"-" json:"inputOrder"`
	Inputs     map[string]InputDef `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Steps      []StepDef           `yaml:"steps" json:"steps"`
}

// StepState is the lifecycle state of one step within a run.
type StepState string

const (
	StepPending   StepState = "Pending"
	StepReady     StepState = "Ready"
	StepRunning   StepState = "Running"
	StepSucceeded StepState = "Succeeded"
	StepFailed    StepState = "Failed"
	StepSkipped   StepState = "Skipped"
	StepCancelled StepState = "Cancelled"
)

// StepResult is the recorded outcome of one executed step.
type StepResult struct {
	StepID   string      `json:"stepId"`
	State    StepState   `json:"state"`
	Output   interface{} `json:"output,omitempty"`
	Error    string      `json:"error,omitempty"`
	Attempts int         `json:"attempts"`
	StartedAt time.Time  `json:"startedAt,omitempty"`
	EndedAt   time.Time  `json:"endedAt,omitempty"`
}

// RunEventKind enumerates the workflow lifecycle events spec section 4.5
// requires the engine to emit.
type RunEventKind string

const (
	EventRunStarted     RunEventKind = "RunStarted"
	EventStepReady      RunEventKind = "StepReady"
	EventStepStarted    RunEventKind = "StepStarted"
	EventStepProgress   RunEventKind = "StepProgress"
	EventStepSucceeded  RunEventKind = "StepSucceeded"
	EventStepFailed     RunEventKind = "StepFailed"
	EventStepSkipped    RunEventKind = "StepSkipped"
	EventRunCancelled   RunEventKind = "RunCancelled"
	EventRunCompleted   RunEventKind = "RunCompleted"
)

// RunEvent is one emitted lifecycle event for a workflow run.
type RunEvent struct {
	Kind      RunEventKind `json:"kind"`
	RunID     string       `json:"runId"`
	StepID    string       `json:"stepId,omitempty"`
	Attempt   int          `json:"attempt,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// RunState is the terminal/non-terminal status of a workflow run.
type RunState string

const (
	RunPending   RunState = "Pending"
	RunRunning   RunState = "Running"
	RunSucceeded RunState = "Succeeded"
	RunFailed    RunState = "Failed"
	RunCancelled RunState = "Cancelled"
)

// ToolUpdateEvent signals that a plugin's tool list changed. The plugin
// engine sends it to its optional ToolUpdateSubscriber; the provider engine
// does not subscribe, so cached suggestions are not invalidated by it.
// Commands carries the full synthesized CommandSpecs (not just tool ids)
// so a subscriber that isn't the registry itself can still observe the
// input schema a provider-backed bind would need.
type ToolUpdateEvent struct {
	Source    string // plugin id
	Commands  []CommandSpec
	Timestamp time.Time
}

// ToolUpdateSubscriber receives ToolUpdateEvent notifications.
type ToolUpdateSubscriber interface {
	OnToolsUpdated(event ToolUpdateEvent)
}
