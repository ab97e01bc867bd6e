package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retrograde-sim/retrograde/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
}

// scenarioResult is one scenario's outcome in the report.
type scenarioResult struct {
	Scenario string   `json:"scenario"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long: `Run one or more scenario files through the conformance harness and
report assertion outcomes. Any failing scenario exits with code 1.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, opts, args)
		},
	}
	return cmd
}

func runTest(cmd *cobra.Command, opts *TestOptions, paths []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	results := make([]scenarioResult, 0, len(paths))
	failed := 0
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load scenario %s", path), err)
		}
		result, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s did not run", scenario.Name), err)
		}

		sr := scenarioResult{
			Scenario: scenario.Name,
			Passed:   result.Passed,
			Failures: result.Failures,
		}
		for _, w := range result.CycleWarnings {
			sr.Warnings = append(sr.Warnings, w.Message)
		}
		results = append(results, sr)
		if !result.Passed {
			failed++
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderTestResults(results))
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", failed, len(results)))
	}
	return nil
}

func renderTestResults(results []scenarioResult) string {
	var b strings.Builder
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s %s\n", status, r.Scenario)
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  %s\n", f)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  warning: %s\n", w)
		}
	}
	return b.String()
}
