package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retrograde-sim/retrograde/internal/retro"
	"github.com/retrograde-sim/retrograde/internal/sim"
	"github.com/retrograde-sim/retrograde/internal/store"
)

// RetroOptions holds flags for the retro command.
type RetroOptions struct {
	*RootOptions
	DBPath   string
	RunToken string
	Steps    int
	Depth    int
}

// NewRetroCommand creates the retro command.
func NewRetroCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RetroOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "retro <rules-dir>",
		Short: "Walk a persisted run backward and infer causes",
		Long: `Load a run's snapshots from the database, then walk backward from the
latest one, asking the reverse engine to explain each turn's observed
delta as a chain of rule firings. An inference gap produces a suggested
rule fingerprint instead of a chain.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetro(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database holding the run (required)")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to retrodict (required)")
	cmd.Flags().IntVar(&opts.Steps, "steps", 3, "number of turns to walk backward")
	cmd.Flags().IntVar(&opts.Depth, "depth", 4, "maximum rule chain length per step")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("run")

	return cmd
}

func runRetro(cmd *cobra.Command, opts *RetroOptions, rulesDir string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	log := newLogger(opts.Verbose, cmd.ErrOrStderr())

	reg, _, err := loadRegistry(rulesDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	turns, err := st.Turns(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	if len(turns) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no snapshots found for run %s", opts.RunToken))
	}

	final, err := st.ReadSnapshot(ctx, opts.RunToken, turns[len(turns)-1])
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read final snapshot", err)
	}
	formatter.VerboseLog("run %s: %d snapshot(s), walking back from turn %d", opts.RunToken, len(turns), final.Turn)

	simulator := sim.New(reg,
		sim.WithLogger(log),
		sim.WithRetroEngine(retro.NewEngine(reg, retro.WithLogger(log))),
		sim.WithSnapshotSource(st.Snapshots(opts.RunToken)),
	)

	trace, err := simulator.SimulateBackward(ctx, final, opts.Steps, opts.Depth)
	if err != nil {
		return WrapExitError(ExitFailure, "backward walk failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(trace)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderRetroTrace(trace))
	return nil
}

func renderRetroTrace(trace *sim.RetroTrace) string {
	var b strings.Builder
	fmt.Fprintf(&b, "backward walk from turn %d: %d step(s)\n", trace.FromTurn, len(trace.Steps))
	for _, step := range trace.Steps {
		fmt.Fprintf(&b, "  turn %d: %s\n", step.Turn, step.Status)
		if step.Status != sim.StepResolved {
			if step.Err != "" {
				fmt.Fprintf(&b, "    %s\n", step.Err)
			}
			continue
		}
		if step.Inference.Gap {
			fmt.Fprintf(&b, "    inference gap: no chain explains the delta\n")
			for path, exp := range step.Inference.Suggestions {
				fmt.Fprintf(&b, "    suggest: %s %s by %g\n", path, exp.Class, exp.Magnitude)
			}
			continue
		}
		for i, chain := range step.Inference.Chains {
			fmt.Fprintf(&b, "    chain %d (score %.2f, trust %.2f): %s\n",
				i+1, chain.Score, chain.Trust, strings.Join(chain.RuleIDs, " -> "))
			if len(chain.Tags) > 0 {
				fmt.Fprintf(&b, "      tags: %s\n", strings.Join(chain.Tags, ", "))
			}
		}
	}
	return b.String()
}
