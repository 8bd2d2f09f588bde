package workflow

import (
	"fmt"
	"sort"
	"strings"

	"oatty/internal/api"
	"oatty/internal/workflow/template"
)

// Graph is the resolved dependency graph of a WorkflowDocument's steps:
// every step's explicit dependsOn plus every implicit "${{ steps.X }}"
// reference discovered in its templated fields. "${{ inputs.X }}"
// references add no edges. It is
// built once at load time and reused for every run of the document.
type Graph struct {
	doc *api.WorkflowDocument

	// edges maps a step id to the set of step ids it depends on.
	edges map[string]map[string]bool
	// order is a deterministic topological ordering (step id, ties broken
	// lexicographically) used as the scheduler's readiness tiebreak.
	order []string
}

// BuildGraph validates doc and constructs its dependency graph: it checks
// that step ids are non-empty and distinct, that dependsOn entries
// name real steps, that the graph is acyclic, and enforces the
// provider-dependency rule: any input's providerArgs entry that references
// "${{ inputs.* }}" or "${{ steps.* }}" must have a matching dependsOn
// entry naming the same root.
func BuildGraph(doc *api.WorkflowDocument) (*Graph, error) {
	if len(doc.Steps) == 0 {
		return nil, &api.ValidationError{Subject: "workflow", Reason: "document has no steps", Path: doc.ID}
	}

	seen := make(map[string]bool, len(doc.Steps))
	for _, s := range doc.Steps {
		if s.ID == "" {
			return nil, &api.ValidationError{Subject: "step", Reason: "step id must not be empty", Path: doc.ID}
		}
		if seen[s.ID] {
			return nil, &api.ValidationError{Subject: "step", Reason: "duplicate step id", Path: s.ID}
		}
		seen[s.ID] = true
	}

	edges := make(map[string]map[string]bool, len(doc.Steps))
	for _, s := range doc.Steps {
		deps := map[string]bool{}
		for _, d := range s.DependsOn {
			if !seen[d] {
				return nil, &api.ValidationError{Subject: "step.dependsOn", Reason: fmt.Sprintf("unknown step %q", d), Path: s.ID}
			}
			deps[d] = true
		}
		for _, ref := range template.References(s.With) {
			if id, ok := stepRoot(ref); ok {
				if !seen[id] {
					return nil, &api.ValidationError{Subject: "step.with", Reason: fmt.Sprintf("references unknown step %q", id), Path: s.ID}
				}
				deps[id] = true
			}
		}
		for _, ref := range template.References(s.Body) {
			if id, ok := stepRoot(ref); ok {
				if !seen[id] {
					return nil, &api.ValidationError{Subject: "step.body", Reason: fmt.Sprintf("references unknown step %q", id), Path: s.ID}
				}
				deps[id] = true
			}
		}
		for _, ref := range template.References(s.If) {
			if id, ok := stepRoot(ref); ok && seen[id] {
				deps[id] = true
			}
		}
		if s.Repeat != nil {
			for _, ref := range template.References(s.Repeat.Until) {
				// Until may read the step's own output; that is not a dependency.
				if id, ok := stepRoot(ref); ok && seen[id] && id != s.ID {
					deps[id] = true
				}
			}
		}
		edges[s.ID] = deps
	}

	if err := checkProviderDependencyRule(doc); err != nil {
		return nil, err
	}

	order, err := topoSort(edges)
	if err != nil {
		return nil, err
	}

	return &Graph{doc: doc, edges: edges, order: order}, nil
}

// stepRoot reports whether ref (e.g. "steps.fetch.output.id") names a step
// output, returning the step id.
func stepRoot(ref string) (string, bool) {
	const prefix = "steps."
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	rest := ref[len(prefix):]
	if dot := strings.Index(rest, "."); dot >= 0 {
		return rest[:dot], true
	}
	return rest, true
}

// inputRoot reports whether ref names an input, returning the input name.
func inputRoot(ref string) (string, bool) {
	const prefix = "inputs."
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	rest := ref[len(prefix):]
	if dot := strings.Index(rest, "."); dot >= 0 {
		return rest[:dot], true
	}
	return rest, true
}

// checkProviderDependencyRule enforces that an input whose providerArgs
// references another input or an upstream step's output must declare a
// matching dependsOn entry under the same key, so the scheduler knows to
// resolve that upstream value first.
func checkProviderDependencyRule(doc *api.WorkflowDocument) error {
	for _, name := range doc.InputOrder {
		in, ok := doc.Inputs[name]
		if !ok || len(in.ProviderArgs) == 0 {
			continue
		}
		for argKey, expr := range in.ProviderArgs {
			refs := template.References(expr)
			if len(refs) == 0 {
				continue
			}
			dep, hasDep := in.DependsOn[argKey]
			if !hasDep || dep == "" {
				return &api.ValidationError{
					Subject: "input.providerArgs",
					Reason:  fmt.Sprintf("providerArgs[%q] references %v but has no matching dependsOn entry", argKey, refs),
					Path:    name,
				}
			}
			if !referenceSatisfiedBy(refs, dep) {
				return &api.ValidationError{
					Subject: "input.dependsOn",
					Reason:  fmt.Sprintf("dependsOn[%q] = %q does not match providerArgs[%q] reference %v", argKey, dep, argKey, refs),
					Path:    name,
				}
			}
		}
	}
	return nil
}

func referenceSatisfiedBy(refs []string, dep string) bool {
	for _, ref := range refs {
		if id, ok := stepRoot(ref); ok && ("steps."+id == dep || id == dep) {
			return true
		}
		if n, ok := inputRoot(ref); ok && ("inputs."+n == dep || n == dep) {
			return true
		}
	}
	return false
}

// topoSort returns a deterministic topological ordering of edges' keys,
// breaking ties lexicographically by step id so concurrent scheduling
// decisions are reproducible across runs.
func topoSort(edges map[string]map[string]bool) ([]string, error) {
	ids := make([]string, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(ids))
	var order []string
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			cycle := append(append([]string{}, path...), id)
			return &api.ValidationError{Subject: "workflow", Reason: fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")), Path: id}
		}
		color[id] = gray
		path = append(path, id)

		deps := make([]string, 0, len(edges[id]))
		for d := range edges[id] {
			deps = append(deps, d)
		}
		sort.Strings(deps)
		for _, d := range deps {
			if err := visit(d); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		order = append(order, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Ready returns the step ids from pending whose dependencies are all
// present in done, in deterministic order.
func (g *Graph) Ready(done map[string]bool, pending map[string]bool) []string {
	var ready []string
	for _, id := range g.order {
		if !pending[id] {
			continue
		}
		ok := true
		for dep := range g.edges[id] {
			if !done[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

// DependsOn returns the step ids id directly depends on.
func (g *Graph) DependsOn(id string) []string {
	deps := make([]string, 0, len(g.edges[id]))
	for d := range g.edges[id] {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// Steps returns the document's steps in declaration order.
func (g *Graph) Steps() []api.StepDef {
	return g.doc.Steps
}

// Order returns the deterministic topological ordering used for
// scheduling tiebreaks.
func (g *Graph) Order() []string {
	return g.order
}
