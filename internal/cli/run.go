package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/retrograde-sim/retrograde/internal/sim"
	"github.com/retrograde-sim/retrograde/internal/store"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	StatePath string
	Turns     int
	DBPath    string
	DecayRate float64
}

// runReport is the structured result of a forward run.
type runReport struct {
	RunToken string       `json:"run_token"`
	Final    *world.State `json:"final"`
	Turns    []turnLine   `json:"turns"`
}

type turnLine struct {
	Turn      int64    `json:"turn"`
	Fired     []string `json:"fired"`
	Failed    []string `json:"failed,omitempty"`
	StateHash string   `json:"state_hash"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <rules-dir>",
		Short: "Run the simulation forward",
		Long: `Compile the rule directory, load the initial state, and execute the
requested number of turns. With --db, every post-turn snapshot and audit
record is persisted so the run can be retrodicted later.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForward(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.StatePath, "state", "", "initial state YAML file (default: empty state)")
	cmd.Flags().IntVar(&opts.Turns, "turns", 1, "number of turns to simulate")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database for snapshots and audit records")
	cmd.Flags().Float64Var(&opts.DecayRate, "decay", 0, "linear overlay decay rate per turn (0 disables)")

	return cmd
}

func runForward(cmd *cobra.Command, opts *RunOptions, rulesDir string) error {
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

	initial := world.NewState()
	if opts.StatePath != "" {
		initial, err = LoadState(opts.StatePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load state", err)
		}
	}

	simOpts := []sim.Option{sim.WithLogger(log)}
	if opts.DecayRate > 0 {
		simOpts = append(simOpts, sim.WithDecay(sim.LinearDecay{Rate: opts.DecayRate}))
	}

	var st *store.Store
	if opts.DBPath != "" {
		st, err = store.Open(opts.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	simulator := sim.New(reg, simOpts...)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	// The run token is minted inside SimulateForward, so audit records
	// cannot stream straight into the store; they are persisted from the
	// trace after the run instead.
	trace, err := simulator.SimulateForward(ctx, initial, opts.Turns)
	if err != nil {
		return WrapExitError(ExitFailure, "simulation failed", err)
	}

	if st != nil {
		if err := persistTrace(ctx, st, trace); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist run", err)
		}
		formatter.VerboseLog("persisted %d snapshot(s) for run %s", len(trace.Turns)+1, trace.RunToken)
	}

	report := buildRunReport(trace)
	if opts.Format == "json" {
		return formatter.Success(report)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderRunReport(report))
	return nil
}

// persistTrace writes the initial snapshot, every post-turn snapshot,
// and every audit record for a completed run.
func persistTrace(ctx context.Context, st *store.Store, trace *sim.Trace) error {
	if err := st.WriteSnapshot(ctx, trace.RunToken, trace.Initial); err != nil {
		return err
	}

	replay := trace.Initial.Clone()
	for _, turn := range trace.Turns {
		for path, ch := range turn.Delta {
			replay.Set(world.MustParsePath(path), ch.New, world.Bounds{Min: -1e308, Max: 1e308})
		}
		replay.Turn = turn.Turn + 1
		if err := st.WriteSnapshot(ctx, trace.RunToken, replay); err != nil {
			return err
		}
		for _, rec := range turn.Audit.Records {
			if err := st.WriteAuditRecord(ctx, trace.RunToken, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildRunReport(trace *sim.Trace) runReport {
	report := runReport{
		RunToken: trace.RunToken,
		Final:    trace.Final,
		Turns:    make([]turnLine, 0, len(trace.Turns)),
	}
	for _, turn := range trace.Turns {
		report.Turns = append(report.Turns, turnLine{
			Turn:      turn.Turn,
			Fired:     turn.Audit.Fired(),
			Failed:    turn.Audit.Failed(),
			StateHash: turn.StateHash,
		})
	}
	return report
}

func renderRunReport(report runReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d turn(s)\n", report.RunToken, len(report.Turns))
	for _, t := range report.Turns {
		fmt.Fprintf(&b, "  turn %d: fired=%d", t.Turn, len(t.Fired))
		if len(t.Fired) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(t.Fired, ", "))
		}
		if len(t.Failed) > 0 {
			fmt.Fprintf(&b, " failed=[%s]", strings.Join(t.Failed, ", "))
		}
		fmt.Fprintln(&b)
	}
	fmt.Fprintf(&b, "final state (turn %d):\n", report.Final.Turn)
	for _, line := range renderStateLines(report.Final) {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	return b.String()
}

// renderStateLines flattens a state into sorted "path = value" lines.
func renderStateLines(s *world.State) []string {
	m := s.PathMap()
	paths := make([]string, 0, len(m))
	for k := range m {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		lines = append(lines, fmt.Sprintf("%s = %g", p, m[p]))
	}
	return lines
}

// signalContext derives a context cancelled by SIGINT or SIGTERM, so a
// long run stops cleanly between turns with the partial trace intact.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
