package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"oatty/internal/api"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
)

// PluginInvoker is the subset of the plugin engine's invocation surface a
// workflow step dispatches to when its backing command executes via MCP.
type PluginInvoker interface {
	Invoke(ctx context.Context, pluginID, toolID string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// CommandLookup resolves a step's "run" field, "<group> <name>", to its
// CommandSpec.
type CommandLookup interface {
	Lookup(group, name string) (api.CommandSpec, bool)
}

func splitRun(run string) (group, name string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(run), " ", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// invoker dispatches a resolved set of step arguments to the command's
// declared execution transport, returning the decoded JSON body (or raw
// string, if the body is not JSON) as the step's output.
type invoker struct {
	registry CommandLookup
	http     api.HTTPExecutor
	plugins  PluginInvoker
}

func (iv *invoker) invoke(ctx context.Context, run string, args map[string]interface{}) (interface{}, error) {
	group, name, ok := splitRun(run)
	if !ok {
		return nil, &api.ValidationError{Subject: "step.run", Reason: "not a canonical \"<group> <name>\" command id", Path: run}
	}
	spec, ok := iv.registry.Lookup(group, name)
	if !ok {
		return nil, api.NewCommandNotFoundError(group, name)
	}

	switch spec.Execution.Kind {
	case api.ExecutionMCP:
		return iv.invokeMCP(ctx, spec, args)
	case api.ExecutionHTTP:
		return iv.invokeHTTP(ctx, spec, args)
	default:
		return nil, fmt.Errorf("command %s has no execution", spec.ID())
	}
}

func (iv *invoker) invokeMCP(ctx context.Context, spec api.CommandSpec, args map[string]interface{}) (interface{}, error) {
	if iv.plugins == nil {
		return nil, &api.TransportError{Target: spec.Execution.MCP.PluginID, Reason: "no plugin invoker configured"}
	}
	result, err := iv.plugins.Invoke(ctx, spec.Execution.MCP.PluginID, spec.Execution.MCP.ToolID, args)
	if err != nil {
		return nil, err
	}
	if result != nil && result.IsError {
		return nil, &api.ToolError{PluginID: spec.Execution.MCP.PluginID, ToolID: spec.Execution.MCP.ToolID, Detail: firstText(result)}
	}
	return decodeBody([]byte(firstText(result))), nil
}

func firstText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func (iv *invoker) invokeHTTP(ctx context.Context, spec api.CommandSpec, args map[string]interface{}) (interface{}, error) {
	if iv.http == nil {
		return nil, &api.TransportError{Target: spec.ID(), Reason: "no HTTP executor configured"}
	}
	http := spec.Execution.HTTP
	if http == nil {
		return nil, fmt.Errorf("command %s declares HTTP execution with no HTTPExecution", spec.ID())
	}

	path := http.PathTemplate
	positionalNames := make(map[string]bool, len(spec.Positionals))
	for _, p := range spec.Positionals {
		positionalNames[p.Name] = true
	}

	remaining := make(map[string]interface{}, len(args))
	for k, v := range args {
		if positionalNames[k] {
			path = strings.ReplaceAll(path, "{"+k+"}", stringify(v))
			continue
		}
		remaining[k] = v
	}

	url := strings.TrimRight(http.BaseURL, "/") + path
	isWrite := http.Method == api.MethodPOST || http.Method == api.MethodPUT || http.Method == api.MethodPATCH

	var body []byte
	headers := map[string]string{}
	if isWrite {
		if len(remaining) > 0 {
			var err error
			body, err = json.Marshal(remaining)
			if err != nil {
				return nil, err
			}
		}
		headers["Content-Type"] = "application/json"
	} else if len(remaining) > 0 {
		url += "?" + encodeQuery(remaining)
	}

	resp, err := iv.http.Execute(ctx, string(http.Method), url, headers, body)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, &api.TransportError{Target: url, Reason: fmt.Sprintf("status %d", resp.Status)}
	}
	return decodeBody(resp.Body), nil
}

func encodeQuery(values map[string]interface{}) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(stringify(values[k]))
	}
	return b.String()
}

// decodeBody parses a JSON response body into native Go values (so step
// output fields like "steps.x.output.id" resolve through the template
// engine's map lookup); a non-JSON body is kept as a trimmed string.
func decodeBody(body []byte) interface{} {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return trimmed
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return trimmed
	}
	return normalizeJSON(v)
}

// normalizeJSON converts encoding/json's map[string]interface{} tree
// (already the case) into the same shape, but ensures nested generic
// values are usable by the template engine's lookupPath, which only
// descends through map[string]interface{}.
func normalizeJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeJSON(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeJSON(val)
		}
		return out
	default:
		return t
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
