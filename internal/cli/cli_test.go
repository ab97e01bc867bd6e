package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and captures output.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

const dripRules = `rules: [
	{
		id:       "supply_drip"
		priority: 5
		effects: [
			{action: "adjust_variable", target: "variables.supply", value: 0.25},
		]
	},
]
`

// writeRulesDir creates a temp rule directory with one unconditional
// adjustment rule.
func writeRulesDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drip.cue"), []byte(dripRules), 0o644))
	return dir
}

// writeStateFile creates a temp state file with supply at 1.0.
func writeStateFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.yaml")
	src := "turn: 0\nvariables:\n  supply: 1.0\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}
