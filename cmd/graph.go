package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/protoplast/internal/registry"
)

var (
	graphOutput     OutputFlags
	graphDependents string
)

var graphCmd = &cobra.Command{
	Use:     "graph [template...]",
	Aliases: []string{"g"},
	Short:   "Show how templates depend on each other",
	Long: `Print the dependency edges declared by each template: the template it
references, whether the reference applies to the same object (self) or to a
new child (child), and the index of the declaring schematic.

Examples:
  protoplast graph
  protoplast graph Knight Orc
  protoplast graph --dependents Base`,
	RunE: runGraphCommand,
}

func init() {
	rootCmd.AddCommand(graphCmd)

	AddOutputFlags(graphCmd.Flags(), &graphOutput)
	graphCmd.Flags().StringVar(&graphDependents, "dependents", "", "list the templates that reference this one")
}

func runGraphCommand(cmd *cobra.Command, args []string) error {
	if err := graphOutput.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	s, err := newSession()
	if err != nil {
		return err
	}
	if _, err := s.load(ctx); err != nil {
		return err
	}
	analyzer := s.manager.Analyzer()
	out := cmd.OutOrStdout()

	if graphDependents != "" {
		dependents := analyzer.GetDependents(graphDependents)
		if graphOutput.Format == "json" {
			return json.NewEncoder(out).Encode(dependents)
		}
		for _, id := range dependents {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	ids := append([]string(nil), args...)
	if len(ids) == 0 {
		ids = s.manager.Store().IDs()
	}
	sort.Strings(ids)

	edges := make(map[string][]registry.Edge, len(ids))
	for _, id := range ids {
		template, ok := s.manager.Lookup(id)
		if !ok {
			return fmt.Errorf("unknown template: %s", id)
		}
		edges[id] = analyzer.Edges(template)
	}

	if graphOutput.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(edges)
	}

	for _, id := range ids {
		if len(edges[id]) == 0 {
			if !graphOutput.Quiet {
				fmt.Fprintln(out, id)
			}
			continue
		}
		parts := make([]string, len(edges[id]))
		for i, edge := range edges[id] {
			parts[i] = fmt.Sprintf("%s (%s #%d)", edge.To, edge.Target, edge.Index)
		}
		fmt.Fprintf(out, "%s -> %s\n", id, strings.Join(parts, ", "))
	}
	return nil
}
