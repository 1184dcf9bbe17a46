package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tensorcheck/internal/check"
	"github.com/roach88/tensorcheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Program  string
	Verdict  string
	Limit    int
}

// RunHistory is one ledger run with its decisions.
type RunHistory struct {
	store.Run
	Decisions []store.Decision `json:"decisions"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analyses",
		Long: `List the analyses recorded in a ledger by "check --db", oldest first,
with the decision made for every access dimension.

Examples:
  tensorcheck history --db ledger.db
  tensorcheck history --db ledger.db --program vecadd_shift --verdict undecided`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (required)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "only runs of this program")
	cmd.Flags().StringVar(&opts.Verdict, "verdict", "", "only decisions with this verdict (safe|undecided|unsafe)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only the most recent runs")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	if opts.Verdict != "" {
		if _, err := check.ParseVerdict(opts.Verdict); err != nil {
			return commandError(formatter, ErrCodeBadFlag, err.Error())
		}
	}
	if _, err := os.Stat(opts.Database); err != nil {
		return commandError(formatter, ErrCodeLedger, fmt.Sprintf("ledger not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(formatter, ErrCodeLedger, err.Error())
	}
	defer st.Close()

	runs, err := st.ReadRuns(ctx, store.RunFilter{Program: opts.Program, Limit: opts.Limit})
	if err != nil {
		return commandError(formatter, ErrCodeLedger, err.Error())
	}

	history := make([]RunHistory, 0, len(runs))
	for _, run := range runs {
		decisions, err := st.ReadDecisions(ctx, store.DecisionFilter{RunID: run.ID, Verdict: opts.Verdict})
		if err != nil {
			return commandError(formatter, ErrCodeLedger, err.Error())
		}
		if opts.Verdict != "" && len(decisions) == 0 {
			continue
		}
		history = append(history, RunHistory{Run: run, Decisions: decisions})
	}

	if formatter.Format == "json" {
		return formatter.Success(history)
	}

	w := formatter.Writer
	if len(history) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, h := range history {
		kind := "analysed"
		if h.Instrumented {
			kind = "instrumented"
		}
		fmt.Fprintf(w, "#%d %s %s (%s): %d safe, %d undecided, %d unsafe\n",
			h.Seq, h.Program, h.ID, kind, h.Safe, h.Undecided, h.Unsafe)
		for _, d := range h.Decisions {
			fmt.Fprintf(w, "    %-9s %s %s dim %d: %s in %s, extent %s\n",
				d.Verdict, d.Access, d.Buffer, d.Dim, d.Index, d.Range, d.Extent)
		}
	}
	return nil
}
