// Package cmd is the CLI entrypoint for oatty: a thin cobra-based surface
// over the catalog, provider, plugin, and workflow engines. The engines
// themselves have no dependency on this package.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

var rootCmd = &cobra.Command{
	Use:   "oatty",
	Short: "A schema-driven operations surface over OpenAPI and MCP command catalogs",
	Long: `oatty derives a command catalog from OpenAPI documents and MCP tool
servers, resolves dynamic argument suggestions, and runs declarative
multi-step workflows against both.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected by main at
// build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the CLI's entry point, called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "oatty version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newWorkflowCmd())
}
