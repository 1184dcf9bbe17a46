package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/tensorcheck/internal/check"
	"github.com/roach88/tensorcheck/internal/instrument"
	"github.com/roach88/tensorcheck/internal/ir"
)

// LowerOptions holds flags for the lower command.
type LowerOptions struct {
	*RootOptions
	Program    string
	Instrument bool   // --instrument-bound-checkers
	Output     string // output file path
}

// LowerResult is the JSON form of a lowered program.
type LowerResult struct {
	Program   string `json:"program"`
	Guards    int    `json:"guards"`
	Bindings  int    `json:"bindings"`
	Safe      int    `json:"safe"`
	Undecided int    `json:"undecided"`
	IR        string `json:"ir"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lower <programs-dir>",
		Short: "Print a program after the bounds pass",
		Long: `Run the bounds pass over one program and print the resulting IR.

The pass is disabled unless --instrument-bound-checkers is given, in which
case undecided accesses are wrapped in runtime guards and programs with an
access that is always out of bounds are rejected (exit code 1).

Examples:
  tensorcheck lower ./programs --program vecadd_shift --instrument-bound-checkers
  tensorcheck lower ./programs --program vecadd_shift --instrument-bound-checkers -o shift.ir`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "program to lower (required)")
	cmd.Flags().BoolVar(&opts.Instrument, "instrument-bound-checkers", false, "insert runtime bounds guards")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write IR to file instead of stdout")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runLower(opts *LowerOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	p, err := loadProgram(formatter, dir, opts.Program)
	if err != nil {
		return err
	}

	out, report, err := lowerProgram(opts.RootOptions, cmd, p, opts.Instrument)
	if err != nil {
		return reportLowerError(formatter, err)
	}

	text := out.String()
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(text), 0644); err != nil {
			return commandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		formatter.VerboseLog("Wrote IR to %s", opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(LowerResult{
			Program:   p.Name,
			Guards:    report.Guards,
			Bindings:  report.Bindings,
			Safe:      report.Count(check.Safe),
			Undecided: report.Count(check.Undecided),
			IR:        text,
		})
	}
	if opts.Output == "" {
		fmt.Fprint(formatter.Writer, text)
	} else {
		fmt.Fprintf(formatter.Writer, "✓ Lowered %s with %d guard(s) to %s\n", p.Name, report.Guards, opts.Output)
	}
	return nil
}

// loadProgram loads dir and returns the named program.
func loadProgram(formatter *OutputFormatter, dir, name string) (*ir.Program, error) {
	loadResult, loadErrors := LoadPrograms(dir, LoadModeCollectAll)
	if loadResult == nil {
		code, msg := firstLoadError(loadErrors)
		return nil, commandError(formatter, code, msg)
	}
	if len(loadErrors) > 0 {
		return nil, outputLoadErrors(formatter, "Loading programs failed", loadErrors)
	}
	p := loadResult.Program(name)
	if p == nil {
		return nil, commandError(formatter, ErrCodeNotFound, notFound(loadResult, name, dir))
	}
	return p, nil
}

// lowerProgram runs the pass with the command's logger.
func lowerProgram(opts *RootOptions, cmd *cobra.Command, p *ir.Program, enabled bool) (*ir.Program, *instrument.Report, error) {
	cfg := instrument.DefaultConfig()
	cfg.Enabled = enabled
	cfg.Logger = opts.Logger(cmd.ErrOrStderr())
	return instrument.InstrumentProgram(p, cfg)
}

// reportLowerError reports a rejected program with exit code 1 and any
// other failure with exit code 2.
func reportLowerError(formatter *OutputFormatter, err error) error {
	var ve *check.ViolationError
	if !errors.As(err, &ve) {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}
	if formatter.Format == "json" {
		msg, _, _ := strings.Cut(ve.Error(), "\n")
		return formatter.Fail(ExitFailure, check.ErrCodeViolation, msg, ve.Violations)
	}
	fmt.Fprintf(formatter.Writer, "✗ %s\n", err)
	return WrapExitError(ExitFailure, "bounds check failed", err)
}

// notFound describes a missing program and lists the ones available.
func notFound(r *LoadResult, name, dir string) string {
	names := lo.Map(r.Programs, func(p *ir.Program, _ int) string { return p.Name })
	return fmt.Sprintf("no program named %q in %s (have %s)", name, dir, strings.Join(names, ", "))
}
