package plugin

import "oatty/internal/api"

// synthesizeCommands converts one plugin's discovered tools into the
// synthetic CommandSpecs the catalog injects via InsertSynthetic (spec
// section 4.4's "Tool discovery"). Each tool becomes exactly one command,
// identity-prefixed by pluginID per spec section 3's synthetic-command
// invariant, with Execution tagged Mcp and every declared input field
// mapped to a flag.
func synthesizeCommands(pluginID string, tools []api.ToolDescriptor) []api.CommandSpec {
	specs := make([]api.CommandSpec, 0, len(tools))
	for _, t := range tools {
		spec := api.CommandSpec{
			Group:   pluginID,
			Name:    t.ID,
			Summary: t.Description,
			Execution: api.Execution{
				Kind: api.ExecutionMCP,
				MCP:  &api.MCPExecution{PluginID: pluginID, ToolID: t.ID},
			},
		}
		for _, field := range t.Inputs {
			spec.Flags = append(spec.Flags, api.CommandFlag{
				LongName: field.Name,
				Required: field.Required,
				Type:     field.Type,
			})
		}
		specs = append(specs, spec)
	}
	return specs
}
