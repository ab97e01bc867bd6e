package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, finalSupply float64) string {
	t.Helper()
	src := `name: drip-check
description: supply accumulates
run_token: test-run-cli
initial:
  variables:
    supply: 1.0
rules:
  - id: supply_drip
    effects:
      - action: adjust_variable
        target: variables.supply
        value: 0.25
turns: 2
assertions:
  - type: final_variable
    path: supply
`
	src += fmt.Sprintf("    value: %g\n", finalSupply)
	path := filepath.Join(t.TempDir(), "drip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestTest_PassingScenario(t *testing.T) {
	path := writeScenarioFile(t, 1.5)
	out, _, err := executeCommand(t, "test", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS drip-check")
}

func TestTest_FailingScenario(t *testing.T) {
	path := writeScenarioFile(t, 99.0)
	out, _, err := executeCommand(t, "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL drip-check")
}

func TestTest_MissingScenarioFile(t *testing.T) {
	_, _, err := executeCommand(t, "test", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
