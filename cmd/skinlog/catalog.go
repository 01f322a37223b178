package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raine/skinlog-bot/internal/catalog"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the product catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(path)
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), c)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "", "Product catalog YAML (default SKINLOG_CATALOG_PATH, then built-in)")
	return cmd
}

// loadCatalog falls back to SKINLOG_CATALOG_PATH when no path was given. The
// variable is read at run time so values from config.env apply.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		path = os.Getenv("SKINLOG_CATALOG_PATH")
	}
	return catalog.Load(path)
}

func printCatalog(w io.Writer, c *catalog.Catalog) {
	nameStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	for _, p := range c.All() {
		fmt.Fprintf(w, "%s  %s %s\n", dimStyle.Render(p.ID), nameStyle.Render(p.Name), dimStyle.Render("("+p.Brand+", "+p.Category+")"))
		fmt.Fprintf(w, "    %s\n", strings.Join(p.Ingredients, ", "))
	}
}
