package cmd

import (
	"fmt"
	"os"

	"oatty/internal/catalog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// newCatalogCmd is a thin surface over the command registry, rendering
// fuzzy search results as a table.
func newCatalogCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the derived command catalog",
	}
	root.AddCommand(&cobra.Command{
		Use:   "search [query]",
		Short: "Fuzzy-search the command catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			reg := catalog.NewRegistry()
			results := reg.Search(query)

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{
				text.Colors{text.FgHiBlue, text.Bold}.Sprint("COMMAND"),
				text.Colors{text.FgHiBlue, text.Bold}.Sprint("SUMMARY"),
			})
			for _, r := range results {
				t.AppendRow(table.Row{r.Command.ID(), r.Command.Summary})
			}
			t.Render()
			fmt.Fprintf(c.OutOrStdout(), "\n%d commands\n", len(results))
			return nil
		},
	})
	return root
}
