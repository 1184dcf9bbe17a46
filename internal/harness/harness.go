package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/tensorcheck/internal/check"
	"github.com/roach88/tensorcheck/internal/compiler"
	"github.com/roach88/tensorcheck/internal/exec"
	"github.com/roach88/tensorcheck/internal/instrument"
	"github.com/roach88/tensorcheck/internal/ir"
	"github.com/roach88/tensorcheck/internal/store"
	"github.com/roach88/tensorcheck/internal/testutil"
)

// Harness runs one scenario against a private ledger with a deterministic
// clock and run ids.
type Harness struct {
	store  *store.Store
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile and validate the entry program
//  2. Run the bounds pass (or, when disabled, classify only)
//  3. Record the analysis in a fresh in-memory ledger
//  4. Execute each run against the resulting program
//  5. Evaluate expectations
//
// An error is returned only when the scenario itself cannot be set up;
// unmet expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	p, err := loadProgram(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs("run")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	result := NewResult()

	built, err := h.build(ctx, scenario, p, result)
	if err != nil {
		return nil, err
	}
	if built != nil {
		result.IR = built.String()
		h.execute(scenario.Runs, built, result)
	} else if len(scenario.Runs) > 0 {
		result.AddError(fmt.Sprintf("%d run(s) skipped: build failed", len(scenario.Runs)))
	}

	for _, msg := range EvaluateAssertions(ctx, scenario, result, st) {
		result.AddError(msg)
	}
	return result, nil
}

func loadProgram(s *Scenario) (*ir.Program, error) {
	src, err := os.ReadFile(s.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	programs, err := compiler.CompileSource(s.Program, src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", s.Program, err)
	}
	for _, p := range programs {
		if p.Name != s.Entry {
			continue
		}
		if errs := compiler.Validate(p); len(errs) > 0 {
			return nil, fmt.Errorf("program %s: %w", p.Name, errs[0])
		}
		return p, nil
	}
	return nil, fmt.Errorf("%s: no program named %q", s.Program, s.Entry)
}

// build runs the bounds pass and records its decisions. It returns nil
// when the pass rejected the program.
func (h *Harness) build(ctx context.Context, s *Scenario, p *ir.Program, result *Result) (*ir.Program, error) {
	cfg := instrument.Config{Enabled: s.Instrument, Program: p.Name, Logger: h.logger}
	out, report, err := instrument.InstrumentProgram(p, cfg)

	outcome, detail := BuildOK, ""
	switch {
	case check.IsViolation(err):
		outcome, detail = BuildUnsafe, err.Error()
	case err != nil:
		return nil, err
	}

	if !s.Instrument {
		// The disabled pass does no analysis; classify anyway so
		// decisions can still be asserted.
		if report, err = instrument.AnalyzeProgram(p); err != nil {
			return nil, err
		}
	}

	for _, dec := range report.Decisions {
		for _, d := range dec.Dims {
			result.add(TraceEvent{
				Seq:     h.clock.Next(),
				Type:    EventDecision,
				Buffer:  dec.Access.Buffer.Name,
				Access:  dec.Access.Kind.String(),
				Dim:     d.Site.Dim,
				Index:   ir.ExprString(d.Site.Index),
				Verdict: d.Verdict.String(),
			})
		}
	}
	result.add(TraceEvent{
		Seq:     h.clock.Next(),
		Type:    EventBuild,
		Guards:  report.Guards,
		Outcome: outcome,
		Detail:  detail,
	})

	run, rows, err := store.NewRun(p, report, s.Instrument)
	if err != nil {
		return nil, err
	}
	if _, err := h.store.WriteRun(ctx, run, rows); err != nil {
		return nil, fmt.Errorf("record analysis: %w", err)
	}

	if outcome == BuildUnsafe {
		return nil, nil
	}
	return out, nil
}

func (h *Harness) execute(runs []RunStep, p *ir.Program, result *Result) {
	for _, r := range runs {
		opts := []exec.Option{exec.WithLogger(h.logger)}
		if r.MaxSteps > 0 {
			opts = append(opts, exec.WithMaxSteps(r.MaxSteps))
		}

		res, err := exec.Execute(p, exec.Args{Params: r.Params, Fills: r.Fill}, opts...)
		ev := TraceEvent{
			Seq:     h.clock.Next(),
			Type:    EventRun,
			Run:     r.Name,
			Outcome: Outcome(err),
		}
		if err != nil {
			ev.Detail = err.Error()
		}
		if res != nil {
			ev.Steps = res.Steps
		}
		result.add(ev)

		for _, msg := range checkRun(r, ev.Outcome, res) {
			result.AddError(msg)
		}
	}
}

// Outcome classifies an execution error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case exec.IsBoundsError(err):
		return OutcomeBoundsError
	case exec.IsMemoryFault(err):
		return OutcomeMemoryFault
	case exec.IsQuotaError(err):
		return OutcomeQuotaExceeded
	case exec.Code(err) == exec.ErrCodeAssertionFailed:
		return OutcomeAssertionFailed
	default:
		return OutcomeError
	}
}
