package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"oatty/internal/api"
	"oatty/internal/workflow/template"
)

// ProviderResolver is the subset of the provider engine a workflow uses to
// resolve an input's provider-backed suggestions, calling suggest/resolve
// using whichever inputs have already been resolved.
type ProviderResolver interface {
	ResolveRef(ctx context.Context, providerRef string, bound map[string]string, partial string) ([]api.SuggestionItem, error)
	SuggestRef(ctx context.Context, providerRef string, bound map[string]string, partial string) ([]api.SuggestionItem, bool)
}

// resolveInputs walks doc.InputOrder, accepting each caller-supplied raw
// value or its default, validating it, and collapsing multi-valued inputs
// with Join. Provider
// suggestions are offered separately via SuggestInput — a
// StartRun caller is expected to have already picked concrete values,
// exactly as a CLI positional argument's provider only assists entry and
// never substitutes for one.
func resolveInputs(doc *api.WorkflowDocument, raw map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(doc.InputOrder))
	for _, name := range doc.InputOrder {
		def := doc.Inputs[name]
		value, present := raw[name]
		if !present || value == nil {
			if def.Default != nil {
				value = def.Default
				present = true
			}
		}

		if def.Validate != nil && def.Validate.Required && !present {
			return nil, &api.ValidationError{Subject: "input", Reason: "required input missing", Path: name}
		}
		if !present {
			resolved[name] = nil
			continue
		}

		if def.Mode == api.InputMultiple {
			values, ok := value.([]interface{})
			if !ok {
				values = []interface{}{value}
			}
			for _, v := range values {
				if err := validateValue(name, def.Validate, v); err != nil {
					return nil, err
				}
			}
			if def.Join != nil {
				resolved[name] = joinValues(values, *def.Join)
			} else {
				resolved[name] = values
			}
			continue
		}

		if err := validateValue(name, def.Validate, value); err != nil {
			return nil, err
		}
		resolved[name] = value
	}
	return resolved, nil
}

func joinValues(values []interface{}, j api.InputJoin) string {
	parts := make([]string, len(values))
	for i, v := range values {
		s := stringify(v)
		if j.Wrap != "" {
			s = j.Wrap + s + j.Wrap
		}
		parts[i] = s
	}
	return strings.Join(parts, j.Separator)
}

func validateValue(name string, v *api.InputValidation, value interface{}) error {
	if v == nil {
		return nil
	}
	s := stringify(value)

	if len(v.Enum) > 0 {
		ok := false
		for _, e := range v.Enum {
			if e == s {
				ok = true
				break
			}
		}
		if !ok {
			return &api.ValidationError{Subject: "input", Reason: fmt.Sprintf("value %q not in enum %v", s, v.Enum), Path: name}
		}
	}
	if v.Pattern != "" {
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return &api.ValidationError{Subject: "input", Reason: fmt.Sprintf("invalid pattern %q: %v", v.Pattern, err), Path: name}
		}
		if !re.MatchString(s) {
			return &api.ValidationError{Subject: "input", Reason: fmt.Sprintf("value %q does not match pattern %q", s, v.Pattern), Path: name}
		}
	}
	if v.MinLen > 0 && len(s) < v.MinLen {
		return &api.ValidationError{Subject: "input", Reason: fmt.Sprintf("value shorter than minLength %d", v.MinLen), Path: name}
	}
	if v.MaxLen > 0 && len(s) > v.MaxLen {
		return &api.ValidationError{Subject: "input", Reason: fmt.Sprintf("value longer than maxLength %d", v.MaxLen), Path: name}
	}
	return nil
}

// bindProviderArgs template-renders an InputDef's ProviderArgs against a
// context of already-resolved inputs (and, during interactive collection,
// any steps executed so far), producing the bound map ResolveRef/SuggestRef
// expect.
func bindProviderArgs(tmpl *template.Engine, providerArgs map[string]string, ctx map[string]interface{}) (map[string]string, error) {
	bound := make(map[string]string, len(providerArgs))
	for key, expr := range providerArgs {
		v, err := tmpl.Render(expr, ctx)
		if err != nil {
			return nil, err
		}
		bound[key] = stringify(v)
	}
	return bound, nil
}

// SuggestInput offers provider-backed suggestions for one not-yet-resolved
// input, given the caller's already-resolved inputs. It never blocks: a
// cold cache returns (nil, true) exactly like the provider engine's
// command-argument Suggest.
func SuggestInput(ctx context.Context, tmpl *template.Engine, resolver ProviderResolver, def api.InputDef, partial string, resolvedSoFar map[string]interface{}) ([]api.SuggestionItem, bool) {
	if def.Provider == nil {
		return nil, false
	}
	bound, err := bindProviderArgs(tmpl, def.ProviderArgs, map[string]interface{}{"inputs": resolvedSoFar})
	if err != nil {
		return nil, false
	}
	return resolver.SuggestRef(ctx, def.Provider.ProviderRef, bound, partial)
}
