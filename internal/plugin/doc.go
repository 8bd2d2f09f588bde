// Package plugin implements the Plugin Engine (C4): lifecycle management
// for MCP-backed plugins (stdio, SSE, and streamable-HTTP transports),
// each wrapped in a small state machine that restarts a failed connection
// with exponential backoff (github.com/cenkalti/backoff/v5) and records
// every transition as an api.AuditRecord.
//
// A running plugin's tools are surfaced to the catalog as synthetic
// api.CommandSpec values (Execution.Kind == api.ExecutionMCP) so the rest
// of Oatty invokes them the same way it invokes an OpenAPI-derived
// command.
package plugin
