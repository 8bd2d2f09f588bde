// Package config provides configuration management for oatty.
//
// This package implements a layered configuration system that allows users to
// customize oatty's behavior through YAML files. Configuration is loaded from
// multiple sources and merged in a specific order, with later sources overriding
// earlier ones.
//
// # Configuration Layers
//
// Configuration is loaded and merged in the following order:
//
//  1. Default Configuration (embedded in binary)
//     - Provides minimal defaults (registry settings on port 8090, no plugins)
//     - Users must configure catalogs, plugins, and workflows via YAML files
//
//  2. User Configuration (~/.config/oatty/config.yaml)
//     - User-specific settings that apply to all projects
//     - Useful for personal preferences and common overrides
//
//  3. Project Configuration (./.oatty/config.yaml)
//     - Project-specific settings in the current directory
//     - Allows teams to share configuration via version control
//     - Note: this file is typically git-ignored
//
// # Entity Storage System
//
// The Storage system provides generic YAML-based persistence for entity definitions
// including catalogs, plugins, and workflows. This unified storage system allows
// users to create, modify, and manage entities through both API operations and
// direct file manipulation.
//
// ## Storage Locations
//
// Entities are stored in YAML files in type-specific subdirectories:
//   - User directory: ~/.config/oatty/{entityType}/
//   - Project directory: .oatty/{entityType}/
//
// Where {entityType} is one of: catalogs, plugins, workflows, plugindefs
//
// ## Storage Precedence
//
// NewStorage picks a single root directory:
//  1. If .oatty/ exists, entities are read from and saved to the project directory only
//  2. Otherwise, entities are read from and saved to the user directory only
//
// Storage does not merge the two layers; layering project over user files
// is done by ConfigurationLoader (see below).
//
// ## Supported Operations
//
// The Storage interface provides CRUD operations:
//   - Save: Store entity data as YAML file
//   - Load: Retrieve entity data from file
//   - Delete: Remove entity file
//   - List: Get all available entity names
//
// ## File Format
//
// All entities are stored as YAML files with .yaml extension.
// Filenames are automatically sanitized to ensure filesystem compatibility.
//
// ## Usage Example
//
//	// Create storage instance (project-or-user resolved automatically)
//	storage := config.NewStorage()
//
//	// Save a workflow document
//	workflowYAML := []byte(`id: "my-workflow"
//	description: "Example workflow"
//	steps: []`)
//	err := storage.Save("workflows", "my-workflow", workflowYAML)
//
//	// Load the workflow
//	data, err := storage.Load("workflows", "my-workflow")
//
//	// List all workflows
//	names, err := storage.List("workflows")
//
//	// Delete the workflow
//	err = storage.Delete("workflows", "my-workflow")
//
// # Configuration Structure
//
// The top-level config.yaml currently holds registry settings (see
// RegistryConfig) that a CLI or UI collaborator may bind its own
// command-invocation surface to; the core engines do not listen on them:
//
//	registry:
//	  port: 8090
//	  host: localhost
//	  transport: streamable-http
//	  toolPrefix: x
//
// # Catalog, Plugin, and Workflow Directories
//
// Catalogs (derived from OpenAPI documents), plugin descriptors
// (internal/api.PluginDescriptor), and workflow documents
// (internal/api.WorkflowDocument) are loaded from their own subdirectories via
// LoadAndParseYAML / LoadAndParseYAMLWithConfig, layered the same way as the
// top-level config.yaml: project definitions override user definitions
// sharing a name.
package config
