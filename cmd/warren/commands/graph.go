package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/printer"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the configured build graph",
	Long: `Print every configured target with its labels and dependencies,
before any generation pass has spliced synthetic targets in.

Examples:
  warren graph`,
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	graph, err := cfg.BuildGraph()
	if err != nil {
		return printer.Error(
			"invalid build graph",
			fmt.Sprintf("Error: %v", err),
			[]string{"Check the targets section of warren.yml"},
		)
	}

	for _, t := range graph.Targets() {
		line := t.ID
		if labels := t.Labels(); len(labels) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(labels, ", "))
		}
		printer.Println(line)
		for _, dep := range t.Dependencies() {
			printer.Printf("  -> %s\n", dep.ID)
		}
	}
	printer.Printf("\n%d target(s)\n", graph.Len())
	return nil
}
