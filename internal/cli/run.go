package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/tensorcheck/internal/exec"
	"github.com/roach88/tensorcheck/internal/trace"
)

// maxShown caps the elements printed per buffer in text output.
const maxShown = 16

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Program    string
	Params     map[string]int64
	Fills      map[string]string
	Instrument bool
	MaxSteps   int
	Show       []string // buffers to print; all when empty
}

// RunResult is the JSON form of one execution.
type RunResult struct {
	Program string               `json:"program"`
	Outcome string               `json:"outcome"`
	Steps   int                  `json:"steps"`
	Error   string               `json:"error,omitempty"`
	Buffers map[string][]float64 `json:"buffers,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <programs-dir>",
		Short: "Execute a program with the reference interpreter",
		Long: `Execute one program with concrete parameters.

Buffers are zero-filled unless --fill names a pattern for them: zeros,
ones, ramp, mod:K or const:V. With --instrument-bound-checkers the program
is run after the bounds pass, so an out-of-bounds access stops execution
with a bounds error instead of faulting or corrupting memory.

Runtime tracing is configured by the ` + trace.EnvVar + ` environment variable,
e.g. ` + trace.EnvVar + `=process_tracing=1:trace_log_file=trace.log

Exit codes:
  0 - Program ran to completion
  1 - Bounds error, memory fault or other runtime failure
  2 - Command error

Examples:
  tensorcheck run ./programs --program vecadd_shift --param n=1024 --fill A=ramp,B=ones
  tensorcheck run ./programs --program vecadd_shift --param n=1024 --instrument-bound-checkers`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "program to run (required)")
	cmd.Flags().StringToInt64Var(&opts.Params, "param", nil, "parameter values, e.g. n=1024")
	cmd.Flags().StringToStringVar(&opts.Fills, "fill", nil, "buffer fill patterns, e.g. A=ramp,B=ones")
	cmd.Flags().BoolVar(&opts.Instrument, "instrument-bound-checkers", false, "insert runtime bounds guards")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", exec.DefaultMaxSteps, "interpreter step quota")
	cmd.Flags().StringSliceVar(&opts.Show, "show", nil, "buffers to print (default all)")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runProgram(opts *RunOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	p, err := loadProgram(formatter, dir, opts.Program)
	if err != nil {
		return err
	}
	for _, name := range opts.Show {
		if p.Buffer(name) == nil {
			return commandError(formatter, ErrCodeBadFlag, fmt.Sprintf("--show: unknown buffer %s", name))
		}
	}

	out, _, err := lowerProgram(opts.RootOptions, cmd, p, opts.Instrument)
	if err != nil {
		return reportLowerError(formatter, err)
	}

	tracer, err := openTracer(cmd)
	if err != nil {
		return commandError(formatter, ErrCodeBadFlag, err.Error())
	}
	defer tracer.Close()

	res, runErr := exec.Execute(out, exec.Args{Params: opts.Params, Fills: opts.Fills},
		exec.WithMaxSteps(opts.MaxSteps),
		exec.WithTracer(tracer),
		exec.WithLogger(opts.Logger(cmd.ErrOrStderr())),
	)
	if res == nil {
		// The arguments were rejected before execution started.
		return commandError(formatter, ErrCodeBadFlag, runErr.Error())
	}

	result := RunResult{
		Program: p.Name,
		Outcome: outcome(runErr),
		Steps:   res.Steps,
		Buffers: shownBuffers(res.Buffers, opts.Show),
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	if formatter.Format == "json" {
		if runErr != nil {
			return formatter.Fail(ExitFailure, runtimeCode(runErr), runErr.Error(), result)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	if runErr != nil {
		fmt.Fprintf(w, "✗ %s: %s after %d step(s)\n", p.Name, runErr, res.Steps)
	} else {
		fmt.Fprintf(w, "✓ %s: ok in %d step(s)\n", p.Name, res.Steps)
	}
	names := lo.Keys(result.Buffers)
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, formatValues(result.Buffers[name]))
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "execution failed", runErr)
	}
	return nil
}

// openTracer reads the trace flags from the environment. Records go to
// the command's output unless a log file is named.
func openTracer(cmd *cobra.Command) (*trace.Tracer, error) {
	flags, err := trace.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", trace.EnvVar, err)
	}
	if flags.ProcessTracing && flags.LogFile == "" {
		return trace.New(cmd.OutOrStdout()), nil
	}
	return trace.Open(flags)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case exec.IsBoundsError(err):
		return "bounds_error"
	case exec.IsMemoryFault(err):
		return "memory_fault"
	default:
		return "error"
	}
}

func runtimeCode(err error) string {
	if exec.IsBoundsError(err) {
		return "BOUNDS_ERROR"
	}
	if code := exec.Code(err); code != "" {
		return string(code)
	}
	return ErrCodeRuntime
}

func shownBuffers(all map[string][]float64, show []string) map[string][]float64 {
	if len(show) == 0 {
		return all
	}
	return lo.PickByKeys(all, show)
}

func formatValues(vs []float64) string {
	parts := make([]string, 0, min(len(vs), maxShown)+1)
	for i, v := range vs {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(vs)-maxShown))
			break
		}
		parts = append(parts, fmt.Sprintf("%g", v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
