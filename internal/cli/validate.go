package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retrograde-sim/retrograde/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// validateReport is the structured result of a validation pass.
type validateReport struct {
	Rules         []string                `json:"rules"`
	CycleWarnings []compiler.CycleWarning `json:"cycle_warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Compile and validate a rule directory",
		Long: `Compile every .cue rule file in a directory, validate the resulting
rule set, and report potential feedback loops between rules.

Compilation or validation failures exit with code 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, dir string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	_, rules, err := loadRegistry(dir)
	if err != nil {
		formatter.Error("VALIDATION_FAILED", err.Error(), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %v", err))
	}

	report := validateReport{
		Rules:         make([]string, 0, len(rules)),
		CycleWarnings: compiler.AnalyzeCycles(rules),
	}
	for _, r := range rules {
		report.Rules = append(report.Rules, r.ID)
	}

	if opts.Format == "json" {
		return formatter.Success(report)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d rule(s) valid: %s\n", len(report.Rules), strings.Join(report.Rules, ", "))
	for _, w := range report.CycleWarnings {
		fmt.Fprintf(&b, "warning [%s]: %s\n", w.Level, w.Message)
	}
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}
