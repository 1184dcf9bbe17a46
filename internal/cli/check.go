package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tensorcheck/internal/check"
	"github.com/roach88/tensorcheck/internal/instrument"
	"github.com/roach88/tensorcheck/internal/ir"
	"github.com/roach88/tensorcheck/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Program  string // only check this program
	Database string // ledger path; empty disables recording
}

// ProgramCheck is the analysis summary of one program.
type ProgramCheck struct {
	Program    string            `json:"program"`
	Hash       string            `json:"hash"`
	RunID      string            `json:"run_id,omitempty"`
	Safe       int               `json:"safe"`
	Undecided  int               `json:"undecided"`
	Unsafe     int               `json:"unsafe"`
	Violations []check.Violation `json:"violations,omitempty"`

	report *instrument.Report
	prog   *ir.Program
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <programs-dir>",
		Short: "Classify every buffer access",
		Long: `Classify every buffer access of every program as safe, undecided or unsafe.

Programs are analysed concurrently. With --db each analysis is recorded
in the ledger.

Exit codes:
  0 - No access is provably out of bounds
  1 - At least one access is always out of bounds
  2 - Command error

Examples:
  tensorcheck check ./programs
  tensorcheck check ./programs --program vecadd --db ledger.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "only check this program")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record analyses in this SQLite ledger")

	return cmd
}

func runCheck(opts *CheckOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadPrograms(dir, LoadModeCollectAll)
	if loadResult == nil {
		code, msg := firstLoadError(loadErrors)
		return commandError(formatter, code, msg)
	}
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "Loading programs failed", loadErrors)
	}

	programs := loadResult.Programs
	if opts.Program != "" {
		p := loadResult.Program(opts.Program)
		if p == nil {
			return commandError(formatter, ErrCodeNotFound, notFound(loadResult, opts.Program, dir))
		}
		programs = []*ir.Program{p}
	}

	results, err := analyzeAll(cmd.Context(), programs)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	if opts.Database != "" {
		if err := recordChecks(cmd.Context(), opts.Database, results); err != nil {
			return commandError(formatter, ErrCodeLedger, err.Error())
		}
		formatter.VerboseLog("Recorded %d run(s) in %s", len(results), opts.Database)
	}

	failed := 0
	for _, r := range results {
		if r.Unsafe > 0 {
			failed++
		}
	}

	if formatter.Format == "json" {
		if failed > 0 {
			return formatter.Fail(ExitFailure, check.ErrCodeViolation,
				fmt.Sprintf("%d program(s) with out-of-bounds accesses", failed), results)
		}
		return formatter.Success(results)
	}

	w := formatter.Writer
	for _, r := range results {
		mark := "✓"
		if r.Unsafe > 0 {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d safe, %d undecided, %d unsafe\n", mark, r.Program, r.Safe, r.Undecided, r.Unsafe)
		for _, v := range r.Violations {
			fmt.Fprintf(w, "    %s\n", v)
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d program(s) with out-of-bounds accesses", failed))
	}
	return nil
}

// analyzeAll analyses programs concurrently. Results keep input order.
func analyzeAll(ctx context.Context, programs []*ir.Program) ([]*ProgramCheck, error) {
	results := make([]*ProgramCheck, len(programs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, p := range programs {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := instrument.AnalyzeProgram(p)
			if err != nil {
				return fmt.Errorf("program %s: %w", p.Name, err)
			}
			hash, err := ir.ProgramHash(p)
			if err != nil {
				return fmt.Errorf("program %s: %w", p.Name, err)
			}
			results[i] = &ProgramCheck{
				Program:    p.Name,
				Hash:       hash,
				Safe:       report.Count(check.Safe),
				Undecided:  report.Count(check.Undecided),
				Unsafe:     report.Count(check.Unsafe),
				Violations: report.Violations(),
				report:     report,
				prog:       p,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// recordChecks writes one ledger run per result, in order.
func recordChecks(ctx context.Context, path string, results []*ProgramCheck) error {
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer st.Close()

	for _, r := range results {
		run, rows, err := store.NewRun(r.prog, r.report, false)
		if err != nil {
			return err
		}
		stored, err := st.WriteRun(ctx, run, rows)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.Program, err)
		}
		r.RunID = stored.ID
	}
	return nil
}
