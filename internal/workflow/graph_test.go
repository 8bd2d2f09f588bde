package workflow

import (
	"testing"

	"oatty/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleDoc(steps ...api.StepDef) *api.WorkflowDocument {
	return &api.WorkflowDocument{ID: "wf", Steps: steps}
}

func TestBuildGraph_ExplicitDependsOn(t *testing.T) {
	doc := simpleDoc(
		api.StepDef{ID: "a", Run: "apps create"},
		api.StepDef{ID: "b", Run: "apps update", DependsOn: []string{"a"}},
	)
	g, err := BuildGraph(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.DependsOn("b"))
	assert.Empty(t, g.DependsOn("a"))
}

func TestBuildGraph_ImplicitReferenceFromWith(t *testing.T) {
	doc := simpleDoc(
		api.StepDef{ID: "fetch", Run: "apps list"},
		api.StepDef{ID: "use", Run: "apps info", With: map[string]interface{}{
			"app": "${{ steps.fetch.output.id }}",
		}},
	)
	g, err := BuildGraph(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch"}, g.DependsOn("use"))
}

func TestBuildGraph_UnknownDependsOnRejected(t *testing.T) {
	doc := simpleDoc(
		api.StepDef{ID: "a", Run: "apps create", DependsOn: []string{"ghost"}},
	)
	_, err := BuildGraph(doc)
	require.Error(t, err)
}

func TestBuildGraph_CycleRejected(t *testing.T) {
	doc := simpleDoc(
		api.StepDef{ID: "a", Run: "apps create", DependsOn: []string{"b"}},
		api.StepDef{ID: "b", Run: "apps update", DependsOn: []string{"a"}},
	)
	_, err := BuildGraph(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildGraph_DuplicateStepIDRejected(t *testing.T) {
	doc := simpleDoc(
		api.StepDef{ID: "a", Run: "apps create"},
		api.StepDef{ID: "a", Run: "apps update"},
	)
	_, err := BuildGraph(doc)
	require.Error(t, err)
}

func TestBuildGraph_ProviderDependencyRuleEnforced(t *testing.T) {
	doc := simpleDoc(api.StepDef{ID: "a", Run: "apps create"})
	doc.InputOrder = []string{"addon"}
	doc.Inputs = map[string]api.InputDef{
		"addon": {
			Type:     "string",
			Provider: &api.ValueProvider{ProviderRef: "apps addons:list"},
			ProviderArgs: map[string]string{
				"app": "${{ inputs.app }}",
			},
			// dependsOn intentionally omitted
		},
	}
	_, err := BuildGraph(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependsOn")
}

func TestBuildGraph_ProviderDependencyRuleSatisfied(t *testing.T) {
	doc := simpleDoc(api.StepDef{ID: "a", Run: "apps create"})
	doc.InputOrder = []string{"addon"}
	doc.Inputs = map[string]api.InputDef{
		"addon": {
			Type:     "string",
			Provider: &api.ValueProvider{ProviderRef: "apps addons:list"},
			ProviderArgs: map[string]string{
				"app": "${{ inputs.app }}",
			},
			DependsOn: map[string]string{"app": "inputs.app"},
		},
	}
	_, err := BuildGraph(doc)
	require.NoError(t, err)
}

func TestBuildGraph_NoStepsRejected(t *testing.T) {
	doc := simpleDoc()
	_, err := BuildGraph(doc)
	require.Error(t, err)
}

func TestGraph_ReadySetRespectsDependencies(t *testing.T) {
	doc := simpleDoc(
		api.StepDef{ID: "a", Run: "apps create"},
		api.StepDef{ID: "b", Run: "apps update", DependsOn: []string{"a"}},
		api.StepDef{ID: "c", Run: "apps delete"},
	)
	g, err := BuildGraph(doc)
	require.NoError(t, err)

	pending := map[string]bool{"a": true, "b": true, "c": true}
	done := map[string]bool{}
	ready := g.Ready(done, pending)
	assert.ElementsMatch(t, []string{"a", "c"}, ready)

	done["a"] = true
	delete(pending, "a")
	ready = g.Ready(done, pending)
	assert.ElementsMatch(t, []string{"c", "b"}, ready)
}
