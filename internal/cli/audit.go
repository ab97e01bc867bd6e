package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retrograde-sim/retrograde/internal/engine"
	"github.com/retrograde-sim/retrograde/internal/query"
	"github.com/retrograde-sim/retrograde/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	DBPath   string
	RunToken string
	Rule     string
	Status   string
	Errors   bool
	FromTurn int64
	ToTurn   int64
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query a run's audit trail",
		Long: `Load audit records for a persisted run, optionally filtered by rule,
status, error presence, or turn range. Records print in logical clock
order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database holding the run (required)")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to query (required)")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "only records from this rule")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only records with this status (fired|failed|inert)")
	cmd.Flags().BoolVar(&opts.Errors, "errors", false, "only records carrying an error")
	cmd.Flags().Int64Var(&opts.FromTurn, "from-turn", -1, "earliest turn, inclusive")
	cmd.Flags().Int64Var(&opts.ToTurn, "to-turn", -1, "latest turn, inclusive")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("run")

	return cmd
}

func runAudit(cmd *cobra.Command, opts *AuditOptions) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	filter, err := buildAuditFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	records, err := st.FilterAuditRecords(ctx, opts.RunToken, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query audit records", err)
	}
	formatter.VerboseLog("run %s: %d matching record(s)", opts.RunToken, len(records))

	if opts.Format == "json" {
		return formatter.Success(records)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderAuditRecords(records))
	return nil
}

// buildAuditFilter converts the flag set into a query filter. No flags
// means a nil filter, which selects the whole run.
func buildAuditFilter(opts *AuditOptions) (query.Filter, error) {
	var filters []query.Filter
	if opts.Rule != "" {
		filters = append(filters, query.RuleIs{ID: opts.Rule})
	}
	if opts.Status != "" {
		switch engine.Status(opts.Status) {
		case engine.StatusFired, engine.StatusFailed, engine.StatusInert:
		default:
			return nil, fmt.Errorf("unknown status %q", opts.Status)
		}
		filters = append(filters, query.StatusIs{Status: engine.Status(opts.Status)})
	}
	if opts.Errors {
		filters = append(filters, query.HasError{})
	}
	if opts.FromTurn >= 0 || opts.ToTurn >= 0 {
		filters = append(filters, query.TurnBetween{From: opts.FromTurn, To: opts.ToTurn})
	}

	switch len(filters) {
	case 0:
		return nil, nil
	case 1:
		return filters[0], nil
	default:
		return query.And{Filters: filters}, nil
	}
}

func renderAuditRecords(records []engine.AuditRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d record(s)\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&b, "  seq %d turn %d %s: %s\n", rec.Seq, rec.Turn, rec.RuleID, rec.Status)
		for _, eff := range rec.Effects {
			fmt.Fprintf(&b, "    %s %s: %g -> %g\n", eff.Action, eff.Path, eff.Old, eff.New)
		}
		if rec.Error != "" {
			fmt.Fprintf(&b, "    error: %s\n", rec.Error)
		}
	}
	return b.String()
}
