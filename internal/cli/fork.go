package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retrograde-sim/retrograde/internal/sim"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// ForkOptions holds flags for the fork command.
type ForkOptions struct {
	*RootOptions
	StatePath string
	Turns     int
	Sets      []string
}

// forkReport is the structured result of a counterfactual run.
type forkReport struct {
	Fork     sim.Fork     `json:"fork"`
	Baseline *world.State `json:"baseline_final"`
	Forked   *world.State `json:"forked_final"`
	PerTurn  []float64    `json:"per_turn_divergence"`
	Final    float64      `json:"final_divergence"`
}

// NewForkCommand creates the fork command.
func NewForkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fork <rules-dir>",
		Short: "Run a counterfactual fork and measure divergence",
		Long: `Run the same rules over the baseline state and a forked copy with
--set overrides applied, then report how far the two worlds drift apart
per turn and at the end.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFork(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.StatePath, "state", "", "initial state YAML file (default: empty state)")
	cmd.Flags().IntVar(&opts.Turns, "turns", 1, "number of turns to simulate in both runs")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "fork override as path=value (repeatable)")

	return cmd
}

func runFork(cmd *cobra.Command, opts *ForkOptions, rulesDir string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	log := newLogger(opts.Verbose, cmd.ErrOrStderr())

	fork, err := parseFork(opts.Sets)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --set override", err)
	}

	reg, _, err := loadRegistry(rulesDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}

	initial := world.NewState()
	if opts.StatePath != "" {
		initial, err = LoadState(opts.StatePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load state", err)
		}
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	simulator := sim.New(reg, sim.WithLogger(log))
	result, err := simulator.SimulateCounterfactual(ctx, initial, fork, opts.Turns)
	if err != nil {
		return WrapExitError(ExitFailure, "counterfactual run failed", err)
	}

	report := forkReport{
		Fork:     fork,
		Baseline: result.Baseline.Final,
		Forked:   result.Forked.Final,
		PerTurn:  result.PerTurn,
		Final:    result.Final,
	}
	if opts.Format == "json" {
		return formatter.Success(report)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderForkReport(report))
	return nil
}

// parseFork converts repeated path=value flags into fork overrides.
func parseFork(sets []string) (sim.Fork, error) {
	fork := make(sim.Fork, len(sets))
	for _, s := range sets {
		path, raw, ok := strings.Cut(s, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("override %q: want path=value", s)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", s, err)
		}
		fork[path] = v
	}
	return fork, nil
}

func renderForkReport(report forkReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "counterfactual over %d turn(s), %d override(s)\n", len(report.PerTurn), len(report.Fork))
	for i, d := range report.PerTurn {
		fmt.Fprintf(&b, "  after turn %d: divergence %g\n", i+1, d)
	}
	fmt.Fprintf(&b, "final divergence: %g\n", report.Final)
	fmt.Fprintf(&b, "baseline final:\n")
	for _, line := range renderStateLines(report.Baseline) {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	fmt.Fprintf(&b, "forked final:\n")
	for _, line := range renderStateLines(report.Forked) {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	return b.String()
}
