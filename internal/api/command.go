package api

// ArgType enumerates the value shapes a positional argument or flag may
// carry, lifted directly from the source OpenAPI schema by the manifest
// deriver.
type ArgType string

const (
	ArgString      ArgType = "string"
	ArgInteger     ArgType = "integer"
	ArgNumber      ArgType = "number"
	ArgBoolean     ArgType = "boolean"
	ArgEnum        ArgType = "enum"
	ArgArrayString ArgType = "array<string>"
	ArgObject      ArgType = "object"
)

// HTTPMethod enumerates the methods a derived command may execute.
type HTTPMethod string

const (
	MethodGET    HTTPMethod = "GET"
	MethodPOST   HTTPMethod = "POST"
	MethodPUT    HTTPMethod = "PUT"
	MethodPATCH  HTTPMethod = "PATCH"
	MethodDELETE HTTPMethod = "DELETE"
)

// Bind maps one required input of a provider command to an input available
// at the consumer command's call site.
type Bind struct {
	ProviderKey string `json:"providerKey" yaml:"providerKey"`
	From        string `json:"from" yaml:"from"`
}

// ValueProvider is the descriptor attached to a PositionalArgument or
// CommandFlag telling the provider engine how to fetch dynamic suggestions.
// A ValueProvider is only ever attached when every required Bind is
// satisfiable — see catalog.inferProviders.
type ValueProvider struct {
	// ProviderRef identifies the catalog command (typically list-shaped)
	// backing this provider, as "<group> <name>".
	ProviderRef string `json:"providerRef" yaml:"providerRef"`
	Binds       []Bind `json:"binds" yaml:"binds"`
}

// PositionalArgument is one ordered path-derived argument of a command.
type PositionalArgument struct {
	Name     string         `json:"name" yaml:"name"`
	Help     string         `json:"help,omitempty" yaml:"help,omitempty"`
	Provider *ValueProvider `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// CommandFlag is a query/header/body-derived flag of a command.
type CommandFlag struct {
	LongName    string         `json:"longName" yaml:"longName"`
	ShortName   string         `json:"shortName,omitempty" yaml:"shortName,omitempty"`
	Required    bool           `json:"required" yaml:"required"`
	Type        ArgType        `json:"type" yaml:"type"`
	EnumValues  []string       `json:"enumValues,omitempty" yaml:"enumValues,omitempty"`
	Default     interface{}    `json:"default,omitempty" yaml:"default,omitempty"`
	Help        string         `json:"help,omitempty" yaml:"help,omitempty"`
	Provider    *ValueProvider `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// PaginationHints describes how a command's HTTP execution participates in
// range-based pagination.
type PaginationHints struct {
	Supported  bool   `json:"supported" yaml:"supported"`
	Unit       string `json:"unit,omitempty" yaml:"unit,omitempty"` // e.g. "items"
	DefaultMax int    `json:"defaultMax,omitempty" yaml:"defaultMax,omitempty"`
}

// OutputField describes one field of a command's response shape.
type OutputField struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
	Tag      string `json:"tag,omitempty" yaml:"tag,omitempty"` // e.g. "app_id"
}

// OutputContract summarizes a command's response shape, used by the
// provider engine to extract suggestion values without a wire-shape
// contract being mandated by the core.
type OutputContract struct {
	Fields []OutputField `json:"fields" yaml:"fields"`
	// ListPath is the dotted path to the array of items in the response,
	// when the response wraps its items (e.g. "items"). Empty means the
	// response body itself is the array.
	ListPath string `json:"listPath,omitempty" yaml:"listPath,omitempty"`
}

// ExecutionKind tags the Execution variant of a CommandSpec.
type ExecutionKind string

const (
	ExecutionHTTP ExecutionKind = "http"
	ExecutionMCP  ExecutionKind = "mcp"
)

// Execution is the tagged variant describing how a command actually runs.
// Exactly one of HTTP or MCP is populated, selected by Kind.
type Execution struct {
	Kind ExecutionKind `json:"kind" yaml:"kind"`
	HTTP *HTTPExecution `json:"http,omitempty" yaml:"http,omitempty"`
	MCP  *MCPExecution  `json:"mcp,omitempty" yaml:"mcp,omitempty"`
}

// HTTPExecution describes an HTTP-backed command.
type HTTPExecution struct {
	Method          HTTPMethod       `json:"method" yaml:"method"`
	PathTemplate    string           `json:"pathTemplate" yaml:"pathTemplate"`
	BaseURL         string           `json:"baseURL" yaml:"baseURL"`
	PaginationHints *PaginationHints `json:"paginationHints,omitempty" yaml:"paginationHints,omitempty"`
	OutputSchema    *OutputContract  `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"`
}

// MCPExecution describes a plugin-tool-backed command.
type MCPExecution struct {
	PluginID     string          `json:"pluginId" yaml:"pluginId"`
	ToolID       string          `json:"toolId" yaml:"toolId"`
	OutputSchema *OutputContract `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"`
}

// CommandSpec is the canonical unit of the catalog.
type CommandSpec struct {
	Group string `json:"group" yaml:"group"`
	// Name may contain ':' to denote nested actions, e.g. "addons:list".
	Name string `json:"name" yaml:"name"`

	Summary     string `json:"summary" yaml:"summary"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Positionals []PositionalArgument `json:"positionals,omitempty" yaml:"positionals,omitempty"`
	Flags       []CommandFlag        `json:"flags,omitempty" yaml:"flags,omitempty"`

	Execution Execution `json:"execution" yaml:"execution"`

	OutputContract *OutputContract `json:"outputContract,omitempty" yaml:"outputContract,omitempty"`

	// Deprecated marks operations tagged deprecated in the source document
	// (section 6 supplement); the spec's skip-on-parse-failure rule does
	// not apply to deprecated operations, only to unparseable ones.
	Deprecated bool `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`

	// CatalogID identifies which loaded catalog produced this entry, or
	// the empty string for a synthetic plugin command (see PluginID).
	CatalogID string `json:"catalogId,omitempty" yaml:"-"`
	// PluginID is set for synthetic commands injected by the plugin
	// engine; a command is synthetic iff PluginID != "".
	PluginID string `json:"pluginId,omitempty" yaml:"-"`
}

// ID returns the two-token canonical identifier "<group> <name>".
func (c *CommandSpec) ID() string {
	return c.Group + " " + c.Name
}

// Key is the catalog-internal lookup key (group, name).
type Key struct {
	Group string
	Name  string
}

func (c *CommandSpec) Key() Key { return Key{Group: c.Group, Name: c.Name} }

// IsSynthetic reports whether this command was injected by a plugin rather
// than derived from a loaded OpenAPI catalog.
func (c *CommandSpec) IsSynthetic() bool { return c.PluginID != "" }
