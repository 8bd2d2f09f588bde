package plugin

import (
	"context"
	"sync"
	"testing"
	"time"

	"oatty/internal/api"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is a minimal MCPClient double that never touches a real
// transport, letting the engine's lifecycle/hot-reload logic be exercised
// without a subprocess or network dial.
type fakeClient struct {
	tools     []mcp.Tool
	initErr   error
	closed    bool
	pingErr   error
	callCount int
}

func (f *fakeClient) Initialize(ctx context.Context) error { return f.initErr }
func (f *fakeClient) Close() error                         { f.closed = true; return nil }
func (f *fakeClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return f.tools, nil
}
func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.callCount++
	return &mcp.CallToolResult{}, nil
}
func (f *fakeClient) Ping(ctx context.Context) error { return f.pingErr }

// fakeCatalog is a minimal api.SyntheticCatalog double recording the
// InsertSynthetic/RemoveSynthetic calls the engine makes as plugins start
// and stop, without needing a real catalog.Registry.
type fakeCatalog struct {
	mu      sync.Mutex
	inserts map[string][]api.CommandSpec
	removed []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{inserts: map[string][]api.CommandSpec{}}
}

func (f *fakeCatalog) InsertSynthetic(pluginID string, specs []api.CommandSpec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts[pluginID] = specs
}

func (f *fakeCatalog) RemoveSynthetic(pluginID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inserts, pluginID)
	f.removed = append(f.removed, pluginID)
}

func (f *fakeCatalog) specsFor(pluginID string) ([]api.CommandSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	specs, ok := f.inserts[pluginID]
	return specs, ok
}

func withFakeClient(t *testing.T, c *fakeClient) {
	t.Helper()
	orig := newMCPClient
	newMCPClient = func(tr api.PluginTransport, s api.SecretStore) (MCPClient, error) {
		return c, nil
	}
	t.Cleanup(func() { newMCPClient = orig })
}

func stdioDescriptor(id string) api.PluginDescriptor {
	return api.PluginDescriptor{
		ID:      id,
		Enabled: true,
		Transport: api.PluginTransport{
			Kind:  api.TransportStdio,
			Stdio: &api.StdioTransport{Command: "fake-" + id},
		},
	}
}

func TestEngineStartTransitionsToRunningAndDiscoversTools(t *testing.T) {
	withFakeClient(t, &fakeClient{tools: []mcp.Tool{{Name: "list_repos"}}})

	e := NewEngine(nil, nil)
	def := stdioDescriptor("gh")
	e.Register(def, nil)

	require.NoError(t, e.Start(context.Background(), "gh"))

	state, ok := e.State("gh")
	require.True(t, ok)
	assert.Equal(t, api.PluginRunning, state)

	tools, ok := e.Tools("gh")
	require.True(t, ok)
	require.Len(t, tools, 1)
	assert.Equal(t, "list_repos", tools[0].ID)
}

func TestEngineStartFailureTransitionsToFailed(t *testing.T) {
	withFakeClient(t, &fakeClient{initErr: assertErr})

	e := NewEngine(nil, nil)
	e.Register(stdioDescriptor("broken"), nil)

	err := e.Start(context.Background(), "broken")
	assert.Error(t, err)

	state, ok := e.State("broken")
	require.True(t, ok)
	assert.Equal(t, api.PluginFailed, state)
}

func TestEngineStopRemovesRunningClient(t *testing.T) {
	c := &fakeClient{}
	withFakeClient(t, c)

	e := NewEngine(nil, nil)
	e.Register(stdioDescriptor("gh"), nil)
	require.NoError(t, e.Start(context.Background(), "gh"))

	require.NoError(t, e.Stop("gh"))
	state, _ := e.State("gh")
	assert.Equal(t, api.PluginStopped, state)
	assert.True(t, c.closed)
}

func TestEngineInvokeRequiresRunningPlugin(t *testing.T) {
	e := NewEngine(nil, nil)
	e.Register(stdioDescriptor("gh"), nil)

	_, err := e.Invoke(context.Background(), "gh", "list_repos", nil)
	assert.Error(t, err)
	var toolErr *api.ToolError
	assert.ErrorAs(t, err, &toolErr)
}

func TestEngineRemoveAbsentFromUpdateConfigStopsPlugin(t *testing.T) {
	c := &fakeClient{}
	withFakeClient(t, c)

	e := NewEngine(nil, nil)
	e.Register(stdioDescriptor("gh"), nil)
	require.NoError(t, e.Start(context.Background(), "gh"))

	e.UpdateConfig(context.Background(), []api.PluginDescriptor{}, nil)

	_, ok := e.State("gh")
	assert.False(t, ok)
	assert.True(t, c.closed)
}

func TestEngineUpdateConfigSameConfigLeavesStateUnchanged(t *testing.T) {
	c := &fakeClient{}
	withFakeClient(t, c)

	e := NewEngine(nil, nil)
	def := stdioDescriptor("gh")
	e.Register(def, nil)
	require.NoError(t, e.Start(context.Background(), "gh"))

	e.UpdateConfig(context.Background(), []api.PluginDescriptor{def}, nil)

	state, ok := e.State("gh")
	require.True(t, ok)
	assert.Equal(t, api.PluginRunning, state)
	assert.False(t, c.closed)
}

func TestEngineUpdateConfigTransportChangeRestarts(t *testing.T) {
	c := &fakeClient{}
	withFakeClient(t, c)

	e := NewEngine(nil, nil)
	def := stdioDescriptor("gh")
	e.Register(def, nil)
	require.NoError(t, e.Start(context.Background(), "gh"))

	changed := def
	changed.Transport.Stdio = &api.StdioTransport{Command: "fake-gh-v2"}
	e.UpdateConfig(context.Background(), []api.PluginDescriptor{changed}, nil)

	// Restart runs asynchronously via StartWithRestarts; give it a moment
	// before asserting that the old connection was closed.
	time.Sleep(50 * time.Millisecond)

	assert.True(t, c.closed)
}

func TestEngineUpdateConfigDisablingStopsWithoutRemoving(t *testing.T) {
	c := &fakeClient{}
	withFakeClient(t, c)

	e := NewEngine(nil, nil)
	def := stdioDescriptor("gh")
	e.Register(def, nil)
	require.NoError(t, e.Start(context.Background(), "gh"))

	disabled := def
	disabled.Enabled = false
	e.UpdateConfig(context.Background(), []api.PluginDescriptor{disabled}, nil)

	state, ok := e.State("gh")
	require.True(t, ok)
	assert.Equal(t, api.PluginDisabled, state)
}

// TestEngineStartInjectsSyntheticCommands is spec end-to-end scenario 4:
// starting a plugin advertising a tool with a required input injects a
// synthetic CommandSpec identity-prefixed by the plugin id, with Mcp
// execution and a required flag mirroring the tool's input schema.
func TestEngineStartInjectsSyntheticCommands(t *testing.T) {
	withFakeClient(t, &fakeClient{tools: []mcp.Tool{{
		Name:        "list_repos",
		Description: "List repositories",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"owner": map[string]interface{}{"type": "string"}},
			Required:   []string{"owner"},
		},
	}}})

	cat := newFakeCatalog()
	e := NewEngine(cat, nil)
	e.Register(stdioDescriptor("gh"), nil)
	require.NoError(t, e.Start(context.Background(), "gh"))

	specs, ok := cat.specsFor("gh")
	require.True(t, ok)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.Equal(t, "gh", spec.Group)
	assert.Equal(t, "list_repos", spec.Name)
	assert.Equal(t, "gh list_repos", spec.ID())
	require.NotNil(t, spec.Execution.MCP)
	assert.Equal(t, api.ExecutionMCP, spec.Execution.Kind)
	assert.Equal(t, "gh", spec.Execution.MCP.PluginID)
	assert.Equal(t, "list_repos", spec.Execution.MCP.ToolID)

	require.Len(t, spec.Flags, 1)
	assert.Equal(t, "owner", spec.Flags[0].LongName)
	assert.True(t, spec.Flags[0].Required)
}

// TestEngineStopRemovesSyntheticCommands is the second half of scenario 4:
// after stop, the catalog bridge withdraws every synthetic command bearing
// the plugin's id (spec section 3's removal invariant, section 8's
// property).
func TestEngineStopRemovesSyntheticCommands(t *testing.T) {
	withFakeClient(t, &fakeClient{tools: []mcp.Tool{{Name: "list_repos"}}})

	cat := newFakeCatalog()
	e := NewEngine(cat, nil)
	e.Register(stdioDescriptor("gh"), nil)
	require.NoError(t, e.Start(context.Background(), "gh"))

	_, ok := cat.specsFor("gh")
	require.True(t, ok)

	require.NoError(t, e.Stop("gh"))

	_, ok = cat.specsFor("gh")
	assert.False(t, ok)
	assert.Contains(t, cat.removed, "gh")
}

var assertErr = &api.TransportError{Target: "broken", Reason: "boom"}
