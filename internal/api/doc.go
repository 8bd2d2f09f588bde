// Package api holds the types and interfaces shared across Oatty's core
// engines: the command catalog (internal/catalog), the value provider
// engine (internal/provider), the plugin engine (internal/plugin) and the
// workflow engine (internal/workflow).
//
// Centralizing these contracts here, rather than letting each engine
// define its own view of a CommandSpec or a ValueProvider, is what lets
// the engines compose without importing each other's internals: the
// catalog produces api.CommandSpec values, the provider engine consumes
// api.ValueProvider descriptors attached to them, the plugin engine
// injects synthetic api.CommandSpec values of its own, and the workflow
// engine reads all three through this package alone.
package api
