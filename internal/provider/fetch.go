package provider

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

// defaultPaginationCap bounds how many accumulated pages a Range-paginated
// fetch walks before caching, per spec section 9's third open question: the
// wire shape is read from output_contract/pagination_hints rather than a
// single mandated items/next_cursor envelope.
const defaultPaginationCap = 500

// PluginInvoker is the subset of the plugin engine's invocation surface the
// provider engine dispatches to when a provider's backing command executes
// via MCP rather than HTTP.
type PluginInvoker interface {
	Invoke(ctx context.Context, pluginID, toolID string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// CommandLookup is the subset of the registry's read surface the provider
// engine needs to resolve a provider_ref to its backing CommandSpec.
type CommandLookup interface {
	Lookup(group, name string) (api.CommandSpec, bool)
}

func splitRef(ref string) (group, name string, ok bool) {
	parts := strings.SplitN(ref, " ", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// fetch executes a provider's backing command and returns the suggestion
// items extracted per its output contract, unranked (rank() runs later). bound maps each
// Bind's provider_key to its resolved value, already stringified.
func (e *Engine) fetch(ctx context.Context, spec api.CommandSpec, bound map[string]string) ([]api.SuggestionItem, error) {
	switch spec.Execution.Kind {
	case api.ExecutionMCP:
		return e.fetchMCP(ctx, spec, bound)
	case api.ExecutionHTTP:
		return e.fetchHTTP(ctx, spec, bound)
	default:
		return nil, fmt.Errorf("provider command %s has no execution", spec.ID())
	}
}

func (e *Engine) fetchMCP(ctx context.Context, spec api.CommandSpec, bound map[string]string) ([]api.SuggestionItem, error) {
	if e.plugins == nil {
		return nil, &api.TransportError{Target: spec.Execution.MCP.PluginID, Reason: "no plugin invoker configured"}
	}
	args := make(map[string]interface{}, len(bound))
	for k, v := range bound {
		args[k] = v
	}
	result, err := e.plugins.Invoke(ctx, spec.Execution.MCP.PluginID, spec.Execution.MCP.ToolID, args)
	if err != nil {
		return nil, err
	}
	body := firstTextContent(result)
	return extractItems([]byte(body), spec.OutputContract)
}

func firstTextContent(result *mcp.CallToolResult) string {
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

func (e *Engine) fetchHTTP(ctx context.Context, spec api.CommandSpec, bound map[string]string) ([]api.SuggestionItem, error) {
	if e.http == nil {
		return nil, &api.TransportError{Target: spec.ID(), Reason: "no HTTP executor configured"}
	}
	http := spec.Execution.HTTP
	if http == nil {
		return nil, fmt.Errorf("provider command %s declares HTTP execution with no HTTPExecution", spec.ID())
	}

	path := http.PathTemplate
	remaining := make(map[string]string, len(bound))
	positionalNames := make(map[string]bool, len(spec.Positionals))
	for _, p := range spec.Positionals {
		positionalNames[p.Name] = true
	}
	for k, v := range bound {
		if positionalNames[k] {
			path = strings.ReplaceAll(path, "{"+k+"}", v)
			continue
		}
		remaining[k] = v
	}

	url := strings.TrimRight(http.BaseURL, "/") + path
	isWrite := http.Method == api.MethodPOST || http.Method == api.MethodPUT || http.Method == api.MethodPATCH

	var body []byte
	if isWrite && len(remaining) > 0 {
		asIface := make(map[string]interface{}, len(remaining))
		for k, v := range remaining {
			asIface[k] = v
		}
		var err error
		body, err = json.Marshal(asIface)
		if err != nil {
			return nil, err
		}
	} else if len(remaining) > 0 {
		url += "?" + encodeQuery(remaining)
	}

	headers := map[string]string{}
	if isWrite {
		headers["Content-Type"] = "application/json"
	}

	if http.PaginationHints != nil && http.PaginationHints.Supported {
		return e.fetchPaginated(ctx, http.Method, url, headers, body, spec.OutputContract)
	}

	resp, err := e.http.Execute(ctx, string(http.Method), url, headers, body)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, &api.TransportError{Target: url, Reason: fmt.Sprintf("status %d", resp.Status)}
	}
	return extractItems(resp.Body, spec.OutputContract)
}

// fetchPaginated walks Content-Range responses (spec section 6.3) in
// Range-unit pages, accumulating items up to defaultPaginationCap before
// caching — automation and the UI both see the same capped result set.
func (e *Engine) fetchPaginated(ctx context.Context, method api.HTTPMethod, url string, headers map[string]string, body []byte, contract *api.OutputContract) ([]api.SuggestionItem, error) {
	var all []api.SuggestionItem
	start := 0
	const pageSize = 100
	for len(all) < defaultPaginationCap {
		pageHeaders := make(map[string]string, len(headers)+1)
		for k, v := range headers {
			pageHeaders[k] = v
		}
		pageHeaders["Range"] = fmt.Sprintf("items=%d-%d", start, start+pageSize-1)

		resp, err := e.http.Execute(ctx, string(method), url, pageHeaders, body)
		if err != nil {
			return nil, err
		}
		if resp.Status >= 400 {
			return nil, &api.TransportError{Target: url, Reason: fmt.Sprintf("status %d", resp.Status)}
		}
		items, err := extractItems(resp.Body, contract)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < pageSize {
			break
		}
		start += pageSize
	}
	if len(all) > defaultPaginationCap {
		all = all[:defaultPaginationCap]
	}
	return all, nil
}

func encodeQuery(values map[string]string) string {
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
		b.WriteString(values[k])
	}
	return b.String()
}

// defaultExtractKeys is the "name/id/display" fallback the spec names when
// a provider declares no output_contract (section 4.3 step 5).
var defaultExtractKeys = []string{"name", "id", "display", "title", "slug"}

// extractItems locates the array of suggestion candidates in a JSON
// response body and converts each to a SuggestionItem. When contract names
// a ListPath, that dotted path locates the array; otherwise the body
// itself is tried as an array, then as an object wrapping a conventional
// "items"/"data"/"results" key.
func extractItems(body []byte, contract *api.OutputContract) ([]api.SuggestionItem, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("provider response is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	var arr gjson.Result
	switch {
	case contract != nil && contract.ListPath != "":
		arr = root.Get(contract.ListPath)
	case root.IsArray():
		arr = root
	default:
		arr = gjson.Result{}
		for _, key := range []string{"items", "data", "results"} {
			if v := root.Get(key); v.IsArray() {
				arr = v
				break
			}
		}
		if !arr.Exists() {
			arr = root
		}
	}

	var out []api.SuggestionItem
	if arr.IsArray() {
		arr.ForEach(func(_, value gjson.Result) bool {
			out = append(out, itemFrom(value, contract))
			return true
		})
	} else {
		out = append(out, itemFrom(arr, contract))
	}
	return out, nil
}

func itemFrom(value gjson.Result, contract *api.OutputContract) api.SuggestionItem {
	display, insert := "", ""
	meta := map[string]interface{}{}

	keys := defaultExtractKeys
	if contract != nil && len(contract.Fields) > 0 {
		keys = nil
		for _, f := range contract.Fields {
			keys = append(keys, f.Name)
		}
		keys = append(keys, defaultExtractKeys...)
	}

	for _, k := range keys {
		if v := value.Get(k); v.Exists() {
			meta[k] = v.Value()
			if insert == "" {
				insert = v.String()
			}
			if display == "" && (k == "name" || k == "display" || k == "title") {
				display = v.String()
			}
		}
	}
	if display == "" {
		display = insert
	}
	if insert == "" {
		insert = value.String()
		display = insert
	}

	return api.SuggestionItem{
		Display:    display,
		InsertText: insert,
		Kind:       api.SuggestValue,
		Meta:       meta,
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
	default:
		return fmt.Sprintf("%v", t)
	}
}
