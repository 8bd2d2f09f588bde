package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctx() map[string]interface{} {
	return map[string]interface{}{
		"inputs": map[string]interface{}{
			"app":   "myapp",
			"count": 3.0,
		},
		"steps": map[string]interface{}{
			"fetch": map[string]interface{}{
				"output": map[string]interface{}{
					"id":     "abc123",
					"status": "ready",
				},
			},
		},
	}
}

func TestIsTemplate(t *testing.T) {
	assert.True(t, IsTemplate("${{ inputs.app }}"))
	assert.False(t, IsTemplate("plain string"))
}

func TestRender_WholeStringPreservesNativeType(t *testing.T) {
	e := New()
	v, err := e.Render("${{ inputs.count }}", ctx())
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestRender_EmbeddedExpressionProducesString(t *testing.T) {
	e := New()
	v, err := e.Render("app=${{ inputs.app }}", ctx())
	require.NoError(t, err)
	assert.Equal(t, "app=myapp", v)
}

func TestRender_DottedPathIntoStepOutput(t *testing.T) {
	e := New()
	v, err := e.Render("${{ steps.fetch.output.id }}", ctx())
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestRender_MapRecursion(t *testing.T) {
	e := New()
	v, err := e.Render(map[string]interface{}{
		"app": "${{ inputs.app }}",
		"nested": map[string]interface{}{
			"id": "${{ steps.fetch.output.id }}",
		},
	}, ctx())
	require.NoError(t, err)
	m := v.(map[string]interface{})
	assert.Equal(t, "myapp", m["app"])
	assert.Equal(t, "abc123", m["nested"].(map[string]interface{})["id"])
}

func TestRender_MissingReferenceError(t *testing.T) {
	e := New()
	_, err := e.Render("${{ inputs.missing }}", ctx())
	require.Error(t, err)
	var mre *MissingReferenceError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, "inputs.missing", mre.Reference)
}

func TestBool_EqualityComparison(t *testing.T) {
	e := New()
	ok, err := e.Bool(`${{ steps.fetch.output.status == "ready" }}`, ctx())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Bool(`${{ steps.fetch.output.status == "pending" }}`, ctx())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBool_EmptyConditionIsTrue(t *testing.T) {
	e := New()
	ok, err := e.Bool("", ctx())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_JoinFunction(t *testing.T) {
	e := New()
	c := ctx()
	c["inputs"].(map[string]interface{})["tags"] = []interface{}{"a", "b", "c"}
	v, err := e.Render(`${{ join(", ", inputs.tags) }}`, c)
	require.NoError(t, err)
	assert.Equal(t, "a, b, c", v)
}

func TestEval_IdentityFunction(t *testing.T) {
	e := New()
	v, err := e.Render("${{ identity(inputs.app) }}", ctx())
	require.NoError(t, err)
	assert.Equal(t, "myapp", v)
}

func TestEval_UnknownFunctionErrors(t *testing.T) {
	e := New()
	_, err := e.Render("${{ nope(inputs.app) }}", ctx())
	require.Error(t, err)
}

func TestReferences_CollectsStepsAndInputsRoots(t *testing.T) {
	refs := References(map[string]interface{}{
		"app": "${{ inputs.app }}",
		"id":  "${{ steps.fetch.output.id }}",
	})
	assert.ElementsMatch(t, []string{"inputs.app", "steps.fetch.output.id"}, refs)
}

func TestReferences_NoTemplateReturnsEmpty(t *testing.T) {
	refs := References("plain string")
	assert.Empty(t, refs)
}
