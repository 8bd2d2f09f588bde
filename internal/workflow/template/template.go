// Package template implements the workflow step interpolation language:
// "${{ <path> }}" where <path> is a dotted expression resolved against a
// run's inputs and prior step results, plus a small set of built-in
// helpers (identity/join and string helpers).
//
// Evaluation is a small hand-rolled interpreter, not a general template
// engine: a dotted path, a quoted/numeric/boolean literal, an "=="/"!="
// comparison between two such operands, or a call to one of a fixed
// function table (identity, join, and a handful of sprig string helpers
// reused by reflection). There is no eval, no exec, no range/loop/template
// action, and no filesystem access reachable from a workflow document.
package template

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/sprig/v3"
)

// exprPattern matches "${{ <expr> }}" with optional interior whitespace.
var exprPattern = regexp.MustCompile(`\$\{\{\s*(.*?)\s*\}\}`)

// MissingReferenceError reports a dotted path that did not resolve against
// the context, carrying the exact reference so callers can surface a
// structured error naming the failed reference.
type MissingReferenceError struct {
	Reference string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("unresolved template reference %q", e.Reference)
}

// Engine evaluates "${{ }}" expressions against a context map. It holds no
// mutable state; every call is a pure function of (expression, context).
type Engine struct {
	funcs map[string]reflect.Value
}

// New returns an Engine with the identity/join built-ins plus a small,
// explicitly-chosen set of sprig string helpers (upper, lower, trim,
// trunc, default) available to call expressions.
func New() *Engine {
	sf := sprig.TxtFuncMap()
	funcs := map[string]reflect.Value{
		"identity": reflect.ValueOf(func(v interface{}) interface{} { return v }),
		"join":     reflect.ValueOf(joinHelper),
	}
	for _, name := range []string{"upper", "lower", "trim", "trunc", "default"} {
		if fn, ok := sf[name]; ok {
			funcs[name] = reflect.ValueOf(fn)
		}
	}
	return &Engine{funcs: funcs}
}

func joinHelper(sep string, v interface{}) string {
	switch t := v.(type) {
	case []interface{}:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, sep)
	case []string:
		return strings.Join(t, sep)
	default:
		return stringify(v)
	}
}

// IsTemplate reports whether s contains at least one "${{ }}" expression.
func IsTemplate(s string) bool {
	return exprPattern.MatchString(s)
}

// References extracts every dotted-path expression referenced inside v,
// recursing into maps and slices. Used by the dependency graph builder to
// discover implicit "${{ steps.X.* }}" / "${{ inputs.X }}" references.
func References(v interface{}) []string {
	seen := map[string]bool{}
	var out []string
	collectReferences(v, seen, &out)
	return out
}

func collectReferences(v interface{}, seen map[string]bool, out *[]string) {
	switch t := v.(type) {
	case string:
		for _, m := range exprPattern.FindAllStringSubmatch(t, -1) {
			for _, root := range rootPaths(m[1]) {
				if !seen[root] {
					seen[root] = true
					*out = append(*out, root)
				}
			}
		}
	case map[string]interface{}:
		for _, val := range t {
			collectReferences(val, seen, out)
		}
	case []interface{}:
		for _, val := range t {
			collectReferences(val, seen, out)
		}
	}
}

var pathToken = regexp.MustCompile(`(?:inputs|steps)\.[a-zA-Z_][a-zA-Z0-9_.-]*`)

// rootPaths returns every "inputs.*"/"steps.*" token appearing anywhere in
// expr, including inside function-call arguments.
func rootPaths(expr string) []string {
	return pathToken.FindAllString(expr, -1)
}

// Render substitutes every "${{ }}" expression in v against ctx, recursing
// into maps/slices. A string that is *entirely* one expression (after
// trimming) returns the resolved value's native type (so a step's "with"
// can pass a number or object through, not just strings); a string with
// embedded expressions returns a rendered string.
func (e *Engine) Render(v interface{}, ctx map[string]interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return e.renderString(t, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			rendered, err := e.Render(val, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			rendered, err := e.Render(val, ctx)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

// Bool renders s and coerces it to a boolean, used for "if" and
// "repeat.until" expressions. An empty string is treated as true (no
// condition gates the step).
func (e *Engine) Bool(s string, ctx map[string]interface{}) (bool, error) {
	if strings.TrimSpace(s) == "" {
		return true, nil
	}
	v, err := e.renderString(s, ctx)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("expression %q did not evaluate to a boolean: %q", s, t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expression %q did not evaluate to a boolean", s)
	}
}

func (e *Engine) renderString(s string, ctx map[string]interface{}) (interface{}, error) {
	matches := exprPattern.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		expr := s[matches[0][2]:matches[0][3]]
		return e.eval(expr, ctx)
	}

	var out strings.Builder
	last := 0
	for _, m := range matches {
		out.WriteString(s[last:m[0]])
		expr := s[m[2]:m[3]]
		val, err := e.eval(expr, ctx)
		if err != nil {
			return nil, err
		}
		out.WriteString(stringify(val))
		last = m[1]
	}
	out.WriteString(s[last:])
	return out.String(), nil
}

// eval parses and evaluates one expression body (without the "${{ }}"
// delimiters): an equality comparison, a function call, or a bare operand
// (dotted path or literal).
func (e *Engine) eval(expr string, ctx map[string]interface{}) (interface{}, error) {
	expr = strings.TrimSpace(expr)

	for _, op := range []string{"==", "!="} {
		if idx := splitOnOperator(expr, op); idx >= 0 {
			lhs, err := e.evalOperand(strings.TrimSpace(expr[:idx]), ctx)
			if err != nil {
				return nil, err
			}
			rhs, err := e.evalOperand(strings.TrimSpace(expr[idx+len(op):]), ctx)
			if err != nil {
				return nil, err
			}
			eq := stringify(lhs) == stringify(rhs)
			if op == "==" {
				return eq, nil
			}
			return !eq, nil
		}
	}

	return e.evalOperand(expr, ctx)
}

// splitOnOperator finds op outside of any quoted string, returning its
// index or -1.
func splitOnOperator(expr, op string) int {
	inQuote := false
	for i := 0; i+len(op) <= len(expr); i++ {
		if expr[i] == '"' {
			inQuote = !inQuote
			continue
		}
		if !inQuote && expr[i:i+len(op)] == op {
			return i
		}
	}
	return -1
}

// evalOperand evaluates a single operand: a quoted string literal, a
// numeric/boolean literal, a function call "name(arg, arg, ...)", or a
// dotted path.
func (e *Engine) evalOperand(expr string, ctx map[string]interface{}) (interface{}, error) {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, `"`) && strings.HasSuffix(expr, `"`) && len(expr) >= 2 {
		return expr[1 : len(expr)-1], nil
	}
	if b, err := strconv.ParseBool(expr); err == nil {
		return b, nil
	}
	if n, err := strconv.ParseFloat(expr, 64); err == nil {
		return n, nil
	}

	if open := strings.Index(expr, "("); open > 0 && strings.HasSuffix(expr, ")") {
		name := expr[:open]
		fn, ok := e.funcs[name]
		if !ok {
			return nil, fmt.Errorf("unknown function %q in expression", name)
		}
		argExprs := splitArgs(expr[open+1 : len(expr)-1])
		args := make([]reflect.Value, len(argExprs))
		for i, a := range argExprs {
			v, err := e.evalOperand(a, ctx)
			if err != nil {
				return nil, err
			}
			args[i] = reflect.ValueOf(v)
		}
		return callFunc(fn, args)
	}

	if isPlainPath(expr) {
		val, ok := lookupPath(expr, ctx)
		if !ok {
			return nil, &MissingReferenceError{Reference: expr}
		}
		return val, nil
	}

	return nil, fmt.Errorf("invalid expression operand %q", expr)
}

func callFunc(fn reflect.Value, args []reflect.Value) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("function call failed: %v", r)
		}
	}()
	out := fn.Call(args)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func splitArgs(s string) []string {
	var out []string
	depth := 0
	inQuote := false
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		out = append(out, strings.TrimSpace(s[start:]))
	}
	return out
}

var pathPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_-]*)*$`)

func isPlainPath(expr string) bool {
	return pathPattern.MatchString(expr)
}

// lookupPath resolves a dotted path against ctx, returning ok=false for any
// missing intermediate key.
func lookupPath(path string, ctx map[string]interface{}) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = ctx
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
