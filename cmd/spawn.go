package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/protoplast/internal/types"
	"github.com/conneroisu/protoplast/internal/world"
)

var spawnOutput OutputFlags

var spawnCmd = &cobra.Command{
	Use:     "spawn <template>",
	Aliases: []string{"s"},
	Short:   "Spawn an object from a template and print it",
	Long: `Load the templates below the source paths, spawn a new object from the
named template and print the resulting object tree: the templates bound to
each object, its capabilities and its children.

Examples:
  protoplast spawn Orc
  protoplast spawn Knight --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSpawnCommand,
}

func init() {
	rootCmd.AddCommand(spawnCmd)
	AddOutputFlags(spawnCmd.Flags(), &spawnOutput)
}

// ObjectView is a printable snapshot of one object and its descendants.
type ObjectView struct {
	ID           types.ObjectID `json:"id"`
	Templates    []string       `json:"templates,omitempty"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
	Children     []*ObjectView  `json:"children,omitempty"`

	order []string
}

func viewObject(w *world.Memory, obj types.ObjectID) *ObjectView {
	view := &ObjectView{
		ID:           obj,
		Templates:    w.Templates(obj),
		Capabilities: make(map[string]any),
		order:        w.Capabilities(obj),
	}
	for _, name := range view.order {
		view.Capabilities[name], _ = w.Capability(obj, name)
	}
	for _, child := range w.Children(obj) {
		view.Children = append(view.Children, viewObject(w, child))
	}
	return view
}

func runSpawnCommand(cmd *cobra.Command, args []string) error {
	if err := spawnOutput.Validate(); err != nil {
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
	if !spawnOutput.Quiet {
		for _, se := range s.loader.Errors().GetErrors() {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", se.Error())
		}
	}

	obj, err := s.manager.Spawn(ctx, args[0])
	if err != nil {
		return err
	}

	view := viewObject(s.world, obj)
	out := cmd.OutOrStdout()
	if spawnOutput.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printObject(out, view, 0)
	return nil
}

func printObject(out io.Writer, view *ObjectView, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(out, "%sobject %d [%s]\n", indent, view.ID, strings.Join(view.Templates, ", "))
	for _, name := range view.order {
		value, err := json.Marshal(view.Capabilities[name])
		if err != nil {
			value = []byte(fmt.Sprintf("%v", view.Capabilities[name]))
		}
		fmt.Fprintf(out, "%s  %s = %s\n", indent, name, value)
	}
	for _, child := range view.Children {
		printObject(out, child, depth+1)
	}
}
