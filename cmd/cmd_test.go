package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/loader"
)

const (
	baseYAML = `
id: Base
schematics:
  - type: component
    input: {name: Health, value: 100}
`
	orcYAML = `
id: Orc
version: 1.0.0
schematics:
  - type: include
    input: {template: Base}
  - type: component
    input: {name: Name, value: orc}
  - type: child
    input: {template: Sword}
`
	swordJSONC = `{
  // the orc's weapon
  "id": "Sword",
  "schematics": [{"type": "component", "input": {"name": "Damage", "value": 7}}],
}`
)

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func sampleTemplates(t *testing.T) string {
	return writeTemplates(t, map[string]string{
		"base.prototype.yaml":   baseYAML,
		"orc.prototype.yml":     orcYAML,
		"sword.prototype.jsonc": swordJSONC,
		"notes.txt":             "not a template",
	})
}

// resetFlags restores every flag to its default so runs do not leak into
// each other through the package-level command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, stderr bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir := sampleTemplates(t)

	out, err := execute(t, "validate", "--paths", dir, "--spawn")
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ Base")
	assert.Contains(t, out, "✓ Orc")
	assert.Contains(t, out, "✓ Sword")
	assert.Contains(t, out, "3 templates loaded, 0 problems")
}

func TestValidateReportsProblems(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"loop.prototype.yaml":   "id: Loop\nschematics:\n  - type: include\n    input: {template: Loop}\n",
		"orphan.prototype.yaml": "id: Orphan\nschematics:\n  - type: child\n    input: {template: Ghost}\n",
		"broken.prototype.yaml": "id: Broken\nschematics:\n  - input: {}\n",
	})

	out, err := execute(t, "validate", "--paths", dir, "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	var report ValidationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []string{"Loop", "Orphan"}, report.Loaded)
	assert.Equal(t, map[string][]string{"Orphan": {"Ghost"}}, report.Missing)
	assert.Equal(t, [][]string{{"Loop", "Loop"}}, report.Cycles)
	require.Len(t, report.Files, 1)
	assert.Contains(t, report.Files[0], "broken.prototype.yaml")
	assert.Equal(t, 3, report.Problems())
}

func TestSpawnCommand(t *testing.T) {
	dir := sampleTemplates(t)

	out, err := execute(t, "spawn", "Orc", "--paths", dir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "[Orc, Base]")
	assert.Contains(t, out, "Health = 100")
	assert.Contains(t, out, `Name = "orc"`)
	assert.Contains(t, out, "[Sword]")
	assert.Contains(t, out, "Damage = 7")
}

func TestSpawnCommandJSON(t *testing.T) {
	dir := sampleTemplates(t)

	out, err := execute(t, "spawn", "Orc", "--paths", dir, "--format", "json")
	require.NoError(t, err, out)

	var view ObjectView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.EqualValues(t, 100, view.Capabilities["Health"])
	require.Len(t, view.Children, 1)
	assert.Equal(t, []string{"Sword"}, view.Children[0].Templates)
}

func TestSpawnUnknownTemplate(t *testing.T) {
	dir := sampleTemplates(t)

	_, err := execute(t, "spawn", "Dragon", "--paths", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dragon")
}

func TestGraphCommand(t *testing.T) {
	dir := sampleTemplates(t)

	out, err := execute(t, "graph", "--paths", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Orc -> Base (self #0), Sword (child #2)")
	assert.Contains(t, out, "Base\n")

	out, err = execute(t, "graph", "--paths", dir, "--dependents", "Sword")
	require.NoError(t, err, out)
	assert.Equal(t, "Orc\n", out)

	_, err = execute(t, "graph", "--paths", dir, "Dragon")
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	cmd := &cobra.Command{}
	out, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(stderr)

	printResult(cmd, loader.Result{Path: "orc.prototype.yaml", Template: "Orc", Action: loader.ActionRegistered}, false)
	printResult(cmd, loader.Result{Path: "same.prototype.yaml", Action: loader.ActionUnchanged}, false)
	printResult(cmd, loader.Result{
		Path:   "root.prototype.yaml",
		Action: loader.ActionFailed,
		Err:    errors.ErrMissingDependency("Leaf", "Root"),
	}, false)

	assert.Equal(t, "✓ registered Orc (orc.prototype.yaml)\n", out.String())
	assert.Contains(t, stderr.String(), "✗ root.prototype.yaml: [ERR_MISSING_DEPENDENCY]")
	assert.Contains(t, stderr.String(), "\n  dependency: Leaf\n")
}

func TestOutputFlagsValidate(t *testing.T) {
	assert.NoError(t, (&OutputFlags{Format: "json"}).Validate())
	assert.Error(t, (&OutputFlags{Format: "xml"}).Validate())
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "cycle_default")
	assert.Contains(t, info, "is_release")

	_, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}
