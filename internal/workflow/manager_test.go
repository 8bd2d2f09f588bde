package workflow

import (
	"context"
	"testing"
	"time"

	"oatty/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleWorkflowYAML = `
id: deploy-app
title: Deploy an application
inputs:
  app:
    type: string
    validate:
      required: true
steps:
  - id: create
    run: apps create
    with:
      name: ${{ inputs.app }}
  - id: info
    run: apps info
    dependsOn: [create]
    with:
      app: ${{ steps.create.output.id }}
`

func TestManager_LoadParsesOrderedInputsAndSteps(t *testing.T) {
	m := NewManager(&fakeLookup{specs: map[api.Key]api.CommandSpec{}}, nil, nil, nil)
	doc, err := m.Load([]byte(sampleWorkflowYAML))
	require.NoError(t, err)
	assert.Equal(t, "deploy-app", doc.ID)
	assert.Equal(t, []string{"app"}, doc.InputOrder)
	require.Len(t, doc.Steps, 2)
	assert.Equal(t, "info", doc.Steps[1].ID)
}

func TestManager_LoadRejectsMissingID(t *testing.T) {
	m := NewManager(&fakeLookup{specs: map[api.Key]api.CommandSpec{}}, nil, nil, nil)
	_, err := m.Load([]byte("steps:\n  - id: a\n    run: apps create\n"))
	require.Error(t, err)
}

func TestManager_StartRunExecutesToCompletion(t *testing.T) {
	lookup := &fakeLookup{specs: map[api.Key]api.CommandSpec{
		{Group: "apps", Name: "create"}: createSpec(),
		{Group: "apps", Name: "info"}:   infoSpec(),
	}}
	http := &fakeHTTP{responses: map[string][]byte{
		"POST https://api.test/apps": []byte(`{"id":"app-1"}`),
	}}
	m := NewManager(lookup, http, nil, nil)
	_, err := m.Load([]byte(sampleWorkflowYAML))
	require.NoError(t, err)

	run, err := m.StartRun(context.Background(), "deploy-app", map[string]interface{}{"app": "myapp"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return run.State() == api.RunSucceeded || run.State() == api.RunFailed
	}, time.Second, time.Millisecond)

	assert.Equal(t, api.RunSucceeded, run.State())
	res, ok := run.StepResult("info")
	require.True(t, ok)
	assert.Equal(t, api.StepSucceeded, res.State)
}

func TestManager_StartRunUnknownWorkflowErrors(t *testing.T) {
	m := NewManager(&fakeLookup{specs: map[api.Key]api.CommandSpec{}}, nil, nil, nil)
	_, err := m.StartRun(context.Background(), "ghost", nil)
	require.Error(t, err)
}

func TestManager_CancelRequestsCancellation(t *testing.T) {
	lookup := &fakeLookup{specs: map[api.Key]api.CommandSpec{
		{Group: "apps", Name: "info"}: infoSpec(),
	}}
	slow := &blockingHTTP{release: make(chan struct{})}
	m := NewManager(lookup, slow, nil, nil)
	_, err := m.Load([]byte(`
id: poll-wf
steps:
  - id: a
    run: apps info
    with:
      app: x
`))
	require.NoError(t, err)

	run, err := m.StartRun(context.Background(), "poll-wf", nil)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(run.ID))
	close(slow.release)

	require.Eventually(t, func() bool {
		return run.State() == api.RunCancelled || run.State() == api.RunSucceeded
	}, time.Second, time.Millisecond)
}
