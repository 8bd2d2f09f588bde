package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"oatty/internal/api"

	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

// Deriver turns a parsed OpenAPI document into the CommandSpecs and inferred
// providers described by the manifest-deriver contract. Its tag dictionary
// and synonym table are copied from the package defaults at construction and
// may be widened by a caller targeting a different API surface.
type Deriver struct {
	tags     map[string]string
	synonyms map[string]string
}

// DeriverOption configures a Deriver at construction time.
type DeriverOption func(*Deriver)

// WithTagDictionary replaces the output_contract tag dictionary.
func WithTagDictionary(tags map[string]string) DeriverOption {
	return func(d *Deriver) { d.tags = tags }
}

// WithSynonyms replaces the flag/positional-to-group synonym table used by
// provider inference.
func WithSynonyms(synonyms map[string]string) DeriverOption {
	return func(d *Deriver) { d.synonyms = synonyms }
}

// NewDeriver constructs a Deriver with the package defaults, applying opts.
func NewDeriver(opts ...DeriverOption) *Deriver {
	d := &Deriver{tags: cloneMap(DefaultTagDictionary), synonyms: cloneMap(DefaultSynonyms)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Warning is a non-fatal derivation note: an operation that could not be
// expressed as a command. Parser errors on malformed documents are returned
// as an error instead; Warning never aborts derivation of the rest of the
// document.
type Warning struct {
	Path   string
	Method string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Method, w.Path, w.Reason)
}

// Derive parses raw (JSON or YAML) into a canonical document and derives a
// CommandSpec per operation, attaching inferred providers in a second pass.
// Parser errors return err; per-operation semantic problems (such as an
// unparseable path) are collected as warnings and skip only the offending
// operation. A path item with no recognised method yields no command and
// no warning.
func (d *Deriver) Derive(catalogID string, raw []byte) ([]api.CommandSpec, []Warning, error) {
	doc, err := canonicalizeDocument(raw)
	if err != nil {
		return nil, nil, err
	}

	paths, _ := doc["paths"].(map[string]interface{})
	baseURL := firstServerURL(doc)

	var specs []api.CommandSpec
	var warnings []Warning

	// Sorting path keys keeps derivation order deterministic, which in turn
	// keeps search/ID collision diagnostics reproducible across runs.
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		item, _ := paths[path].(map[string]interface{})
		segments, placeholders := splitPath(path)
		group := firstConcrete(segments)
		if group == "" {
			warnings = append(warnings, Warning{Path: path, Reason: "no concrete path segment to derive a group from"})
			continue
		}

		for _, method := range []string{"get", "post", "put", "patch", "delete"} {
			op, ok := item[method].(map[string]interface{})
			if !ok {
				continue
			}
			spec, warn := d.deriveOperation(catalogID, path, method, segments, placeholders, group, op, baseURL)
			if warn != "" {
				warnings = append(warnings, Warning{Path: path, Method: strings.ToUpper(method), Reason: warn})
				continue
			}
			specs = append(specs, spec)
		}
	}

	d.inferProviders(specs)
	return specs, warnings, nil
}

// canonicalizeDocument accepts either JSON or YAML top-level input: it
// parses with yaml.v3 (a superset of JSON), round-trips through yaml.v3 to
// normalize map key types, and converts the result to canonical JSON via
// sigs.k8s.io/yaml so every later schema walk deals with a plain
// map[string]interface{} regardless of the source encoding.
func canonicalizeDocument(raw []byte) (map[string]interface{}, error) {
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	normalized, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("normalizing document: %w", err)
	}
	jsonBytes, err := sigsyaml.YAMLToJSON(normalized)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing document: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("decoding canonical document: %w", err)
	}
	return doc, nil
}

func firstServerURL(doc map[string]interface{}) string {
	servers, _ := doc["servers"].([]interface{})
	if len(servers) == 0 {
		return ""
	}
	first, _ := servers[0].(map[string]interface{})
	url, _ := first["url"].(string)
	return url
}

// pathSegment is one token of a split URL path template.
type pathSegment struct {
	name        string
	placeholder bool
}

func splitPath(path string) ([]pathSegment, []string) {
	var segs []pathSegment
	var placeholders []string
	for _, tok := range strings.Split(path, "/") {
		if tok == "" {
			continue
		}
		if strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}") {
			name := strings.TrimSuffix(strings.TrimPrefix(tok, "{"), "}")
			segs = append(segs, pathSegment{name: name, placeholder: true})
			placeholders = append(placeholders, name)
			continue
		}
		segs = append(segs, pathSegment{name: tok})
	}
	return segs, placeholders
}

func firstConcrete(segments []pathSegment) string {
	for _, s := range segments {
		if !s.placeholder {
			return s.name
		}
	}
	return ""
}

func actionToken(method string, lastIsPlaceholder bool) string {
	switch method {
	case "get":
		if lastIsPlaceholder {
			return "info"
		}
		return "list"
	case "post":
		return "create"
	case "put", "patch":
		return "update"
	case "delete":
		return "delete"
	default:
		return method
	}
}

func (d *Deriver) deriveOperation(catalogID, path, method string, segments []pathSegment, placeholders []string, group string, op map[string]interface{}, baseURL string) (api.CommandSpec, string) {
	if len(segments) == 0 {
		return api.CommandSpec{}, "empty path"
	}

	// Remaining concrete segments after the group, in path order.
	skippedGroup := false
	var remaining []string
	for _, s := range segments {
		if s.placeholder {
			continue
		}
		if !skippedGroup {
			skippedGroup = true
			continue
		}
		remaining = append(remaining, s.name)
	}

	action := actionToken(method, segments[len(segments)-1].placeholder)
	name := action
	if len(remaining) > 0 {
		name = strings.Join(remaining, ":") + ":" + action
	}

	spec := api.CommandSpec{
		CatalogID: catalogID,
		Group:     group,
		Name:      name,
		Execution: api.Execution{
			Kind: api.ExecutionHTTP,
			HTTP: &api.HTTPExecution{
				Method:       api.HTTPMethod(strings.ToUpper(method)),
				PathTemplate: path,
				BaseURL:      baseURL,
			},
		},
	}

	if summary, ok := op["summary"].(string); ok {
		spec.Summary = summary
	}
	if desc, ok := op["description"].(string); ok {
		spec.Description = desc
	}
	if dep, ok := op["deprecated"].(bool); ok {
		spec.Deprecated = dep
	}
	if spec.Summary == "" {
		spec.Summary = fmt.Sprintf("%s %s", strings.ToUpper(method), path)
	}

	for _, name := range placeholders {
		spec.Positionals = append(spec.Positionals, api.PositionalArgument{Name: name})
	}

	flags, err := d.deriveFlags(op)
	if err != nil {
		return api.CommandSpec{}, err.Error()
	}
	spec.Flags = flags

	if hints := paginationHints(op); hints != nil {
		spec.Execution.HTTP.PaginationHints = hints
	}

	if contract := d.outputContract(op); contract != nil {
		spec.OutputContract = contract
		spec.Execution.HTTP.OutputSchema = contract
	}

	return spec, ""
}

func (d *Deriver) deriveFlags(op map[string]interface{}) ([]api.CommandFlag, error) {
	var flags []api.CommandFlag

	params, _ := op["parameters"].([]interface{})
	for _, raw := range params {
		param, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		in, _ := param["in"].(string)
		if in != "query" && in != "header" {
			continue
		}
		name, _ := param["name"].(string)
		if name == "" {
			continue
		}
		schema, _ := param["schema"].(map[string]interface{})
		required, _ := param["required"].(bool)
		desc, _ := param["description"].(string)

		argType, enumValues, def := walkSchemaType(schema)
		flags = append(flags, api.CommandFlag{
			LongName:   name,
			Required:   required,
			Type:       argType,
			EnumValues: enumValues,
			Default:    def,
			Help:       desc,
		})
	}

	bodySchema := requestBodySchema(op)
	if bodySchema == nil {
		return flags, nil
	}
	bodyType, _, _ := walkSchemaType(bodySchema)
	if bodyType == api.ArgObject {
		props, _ := bodySchema["properties"].(map[string]interface{})
		required := requiredSet(bodySchema)
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			propSchema, _ := props[name].(map[string]interface{})
			argType, enumValues, def := walkSchemaType(propSchema)
			desc, _ := propSchema["description"].(string)
			flags = append(flags, api.CommandFlag{
				LongName:   name,
				Required:   required[name],
				Type:       argType,
				EnumValues: enumValues,
				Default:    def,
				Help:       desc,
			})
		}
		return flags, nil
	}

	flags = append(flags, api.CommandFlag{LongName: "body", Required: true, Type: api.ArgObject})
	return flags, nil
}

func requestBodySchema(op map[string]interface{}) map[string]interface{} {
	body, _ := op["requestBody"].(map[string]interface{})
	if body == nil {
		return nil
	}
	content, _ := body["content"].(map[string]interface{})
	json, _ := content["application/json"].(map[string]interface{})
	if json == nil {
		return nil
	}
	schema, _ := json["schema"].(map[string]interface{})
	return schema
}

func requiredSet(schema map[string]interface{}) map[string]bool {
	required, _ := schema["required"].([]interface{})
	out := make(map[string]bool, len(required))
	for _, r := range required {
		if name, ok := r.(string); ok {
			out[name] = true
		}
	}
	return out
}

// walkSchemaType extracts the ArgType, enum values, and default of a
// JSON-Schema-shaped fragment. It walks the decoded map directly rather than
// compiling the fragment through a JSON-Schema validator: OpenAPI parameter
// and property schemas routinely use vendor extensions and OpenAPI-specific
// keywords (nullable, discriminator) that aren't valid standalone JSON
// Schema documents, and the deriver's failure mode for an unrecognized
// extension is to ignore it, not to fail compilation.
func walkSchemaType(schema map[string]interface{}) (api.ArgType, []string, interface{}) {
	if schema == nil {
		return api.ArgString, nil, nil
	}

	var enumValues []string
	if enum, ok := schema["enum"].([]interface{}); ok && len(enum) > 0 {
		for _, v := range enum {
			enumValues = append(enumValues, fmt.Sprintf("%v", v))
		}
		return api.ArgEnum, enumValues, schema["default"]
	}

	typ, _ := schema["type"].(string)
	switch typ {
	case "integer":
		return api.ArgInteger, nil, schema["default"]
	case "number":
		return api.ArgNumber, nil, schema["default"]
	case "boolean":
		return api.ArgBoolean, nil, schema["default"]
	case "array":
		items, _ := schema["items"].(map[string]interface{})
		if itemType, _ := items["type"].(string); itemType == "string" || itemType == "" {
			return api.ArgArrayString, nil, schema["default"]
		}
		return api.ArgArrayString, nil, schema["default"]
	case "object":
		return api.ArgObject, nil, schema["default"]
	default:
		return api.ArgString, nil, schema["default"]
	}
}

func paginationHints(op map[string]interface{}) *api.PaginationHints {
	params, _ := op["parameters"].([]interface{})
	for _, raw := range params {
		param, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := param["name"].(string)
		if strings.EqualFold(name, "Range") || strings.EqualFold(name, "Content-Range") {
			return &api.PaginationHints{Supported: true, Unit: "items", DefaultMax: 500}
		}
	}
	return nil
}

// outputContract walks a success response's schema to a shallow depth,
// collecting top-level field names, types, nullability, and tags.
func (d *Deriver) outputContract(op map[string]interface{}) *api.OutputContract {
	responses, _ := op["responses"].(map[string]interface{})
	var body map[string]interface{}
	for _, code := range []string{"200", "201"} {
		resp, ok := responses[code].(map[string]interface{})
		if !ok {
			continue
		}
		content, _ := resp["content"].(map[string]interface{})
		json, _ := content["application/json"].(map[string]interface{})
		if schema, ok := json["schema"].(map[string]interface{}); ok {
			body = schema
			break
		}
	}
	if body == nil {
		return nil
	}

	contract := &api.OutputContract{}
	schema := body
	if typ, _ := body["type"].(string); typ == "array" {
		contract.ListPath = ""
		schema, _ = body["items"].(map[string]interface{})
	} else if props, ok := body["properties"].(map[string]interface{}); ok {
		if itemsField, ok := findArrayProperty(props); ok {
			contract.ListPath = itemsField
			if inner, ok := props[itemsField].(map[string]interface{}); ok {
				if items, ok := inner["items"].(map[string]interface{}); ok {
					schema = items
				}
			}
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	required := requiredSet(schema)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		propSchema, _ := props[name].(map[string]interface{})
		typ, _ := propSchema["type"].(string)
		if typ == "" {
			typ = "string"
		}
		field := api.OutputField{
			Name:     name,
			Type:     typ,
			Nullable: !required[name],
		}
		if tag, ok := d.tags[name]; ok {
			field.Tag = tag
		}
		contract.Fields = append(contract.Fields, field)
	}
	if len(contract.Fields) == 0 && contract.ListPath == "" {
		return nil
	}
	return contract
}

// findArrayProperty reports the first top-level property whose schema is an
// array, used to locate the list-wrapping field (e.g. "items") of an
// envelope response.
func findArrayProperty(props map[string]interface{}) (string, bool) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		schema, _ := props[name].(map[string]interface{})
		if typ, _ := schema["type"].(string); typ == "array" {
			return name, true
		}
	}
	return "", false
}
