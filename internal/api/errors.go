package api

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-checkable category of a core error, per
// the taxonomy every engine reports against. User-visible surfaces key off
// Kind rather than Go type so that CLI/UI collaborators can render a
// consistent message regardless of which engine raised the error.
type ErrorKind string

const (
	KindConfig     ErrorKind = "ConfigError"
	KindValidation ErrorKind = "ValidationError"
	KindNotFound   ErrorKind = "NotFound"
	KindTransport  ErrorKind = "TransportError"
	KindTimeout    ErrorKind = "TimeoutError"
	KindProtocol   ErrorKind = "ProtocolError"
	KindTool       ErrorKind = "ToolError"
	KindPermission ErrorKind = "PermissionError"
	KindCancelled  ErrorKind = "Cancelled"
)

// CoreError is the common error shape surfaced to collaborators: a stable
// kind, an actionable short message, and optional context fields such as
// the command id or file path involved. No stack traces ever reach this
// struct — engines attach only the fields a user-facing surface can render.
type CoreError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Wrapped error
}

func (e *CoreError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, formatFields(e.Fields))
}

func (e *CoreError) Unwrap() error { return e.Wrapped }

func formatFields(fields map[string]string) string {
	s := ""
	first := true
	for _, k := range []string{"command", "file", "line", "field", "plugin", "workflow", "step"} {
		v, ok := fields[k]
		if !ok {
			continue
		}
		if !first {
			s += ", "
		}
		s += k + "=" + v
		first = false
	}
	return s
}

// NewError builds a CoreError of the given kind with context fields.
func NewError(kind ErrorKind, message string, fields map[string]string, wrapped error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Fields: fields, Wrapped: wrapped}
}

// IsKind reports whether err (or any error it wraps) is a CoreError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == k
	}
	return false
}

// NotFoundError identifies a missing catalog command, plugin, or workflow.
type NotFoundError struct {
	ResourceType string // "command", "plugin", "workflow", "provider"
	ResourceName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.ResourceType, e.ResourceName)
}

func (e *NotFoundError) Kind() ErrorKind { return KindNotFound }

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// NewCommandNotFoundError reports a lookup miss for (group, name).
func NewCommandNotFoundError(group, name string) *NotFoundError {
	return &NotFoundError{ResourceType: "command", ResourceName: group + " " + name}
}

// NewPluginNotFoundError reports a lookup miss for a plugin id.
func NewPluginNotFoundError(pluginID string) *NotFoundError {
	return &NotFoundError{ResourceType: "plugin", ResourceName: pluginID}
}

// NewWorkflowNotFoundError reports a lookup miss for a workflow id.
func NewWorkflowNotFoundError(workflowID string) *NotFoundError {
	return &NotFoundError{ResourceType: "workflow", ResourceName: workflowID}
}

// ValidationError reports a violated catalog or workflow invariant, e.g. a
// cyclic step dependency or a missing provider-dependency mapping.
type ValidationError struct {
	Subject string // e.g. "workflow document", "provider binding"
	Reason  string
	Path    string // dotted path to the offending field, when known
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s invalid: %s", e.Subject, e.Reason)
	}
	return fmt.Sprintf("%s invalid at %s: %s", e.Subject, e.Path, e.Reason)
}

func (e *ValidationError) Kind() ErrorKind { return KindValidation }

// TransportError wraps a failure from the HTTP or plugin transport boundary.
type TransportError struct {
	Target string // base URL or plugin id
	Reason string
	Cause  error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport error talking to %s: %s: %v", e.Target, e.Reason, e.Cause)
	}
	return fmt.Sprintf("transport error talking to %s: %s", e.Target, e.Reason)
}

func (e *TransportError) Unwrap() error  { return e.Cause }
func (e *TransportError) Kind() ErrorKind { return KindTransport }

// TimeoutError reports an operation that exceeded its deadline.
type TimeoutError struct {
	Operation string
	Budget    string // human-readable budget, e.g. "30s"
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Budget)
}

func (e *TimeoutError) Kind() ErrorKind { return KindTimeout }

// ToolError reports a structured error returned by a plugin tool call itself
// (as opposed to a transport failure reaching the tool).
type ToolError struct {
	PluginID string
	ToolID   string
	Detail   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s/%s returned an error: %s", e.PluginID, e.ToolID, e.Detail)
}

func (e *ToolError) Kind() ErrorKind { return KindTool }

// CancelledError reports a caller-initiated cancellation, distinguished from
// a failure so callers can skip retry/backoff handling.
type CancelledError struct {
	Operation string
}

func (e *CancelledError) Error() string { return fmt.Sprintf("%s was cancelled", e.Operation) }
func (e *CancelledError) Kind() ErrorKind { return KindCancelled }
