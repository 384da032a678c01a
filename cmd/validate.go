package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/protoplast/internal/loader"
)

var (
	validateOutput OutputFlags
	validateSpawn  bool
)

var validateCmd = &cobra.Command{
	Use:     "validate",
	Aliases: []string{"v"},
	Short:   "Check every template below the source paths",
	Long: `Load every template file below the configured source paths and report
files that fail to decode, templates that reference unknown templates and
dependency cycles. With --spawn each template is also applied to a fresh
object so schematic failures surface.

Examples:
  protoplast validate
  protoplast validate --paths assets/prototypes --spawn
  protoplast validate --format json`,
	RunE: runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	AddOutputFlags(validateCmd.Flags(), &validateOutput)
	validateCmd.Flags().BoolVar(&validateSpawn, "spawn", false, "apply every template to a scratch object")
}

// ValidationReport is the outcome of a validate run.
type ValidationReport struct {
	Loaded   []string            `json:"loaded"`
	Files    []string            `json:"file_errors,omitempty"`
	Missing  map[string][]string `json:"missing,omitempty"`
	Cycles   [][]string          `json:"cycles,omitempty"`
	Failures map[string]string   `json:"spawn_failures,omitempty"`
}

// Problems counts every reported issue.
func (r *ValidationReport) Problems() int {
	n := len(r.Files) + len(r.Cycles) + len(r.Failures)
	for _, ids := range r.Missing {
		n += len(ids)
	}
	return n
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	if err := validateOutput.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	s, err := newSession()
	if err != nil {
		return err
	}
	results, err := s.load(ctx)
	if err != nil {
		return err
	}

	report := &ValidationReport{
		Missing:  s.manager.Analyzer().MissingDependencies(),
		Cycles:   s.manager.Analyzer().DetectCircularDependencies(),
		Failures: make(map[string]string),
	}
	for _, result := range results {
		if result.Action == loader.ActionRegistered {
			report.Loaded = append(report.Loaded, result.Template)
		}
	}
	sort.Strings(report.Loaded)
	if collector := s.loader.Errors(); collector.HasErrors() {
		for _, file := range collector.Files() {
			for _, se := range collector.GetErrorsByFile(file) {
				report.Files = append(report.Files, se.Error())
			}
		}
	}

	if validateSpawn {
		for _, id := range report.Loaded {
			if _, err := s.manager.Spawn(ctx, id); err != nil {
				report.Failures[id] = err.Error()
			}
		}
	}

	out := cmd.OutOrStdout()
	if validateOutput.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printValidation(out, s, report, validateOutput.Quiet)
	}

	if n := report.Problems(); n > 0 {
		return fmt.Errorf("validation failed: %s", s.printer.Sprintf("%d problems", n))
	}
	return nil
}

func printValidation(out io.Writer, s *session, report *ValidationReport, quiet bool) {
	if !quiet {
		for _, id := range report.Loaded {
			fmt.Fprintf(out, "✓ %s\n", id)
		}
	}
	for _, msg := range report.Files {
		fmt.Fprintf(out, "✗ %s\n", msg)
	}

	names := make([]string, 0, len(report.Missing))
	for name := range report.Missing {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "✗ %s: missing %s\n", name, strings.Join(report.Missing[name], ", "))
	}

	for _, cycle := range report.Cycles {
		fmt.Fprintf(out, "✗ cycle: %s\n", strings.Join(cycle, " -> "))
	}

	failed := make([]string, 0, len(report.Failures))
	for id := range report.Failures {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		fmt.Fprintf(out, "✗ %s: %s\n", id, report.Failures[id])
	}

	if !quiet {
		s.printer.Fprintf(out, "%d templates loaded, %d problems\n", len(report.Loaded), report.Problems())
	}
}
