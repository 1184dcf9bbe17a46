package harness

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/roach88/tensorcheck/internal/exec"
	"github.com/roach88/tensorcheck/internal/store"
)

// outputTolerance bounds the absolute difference accepted between an
// expected and an actual buffer element.
const outputTolerance = 1e-6

// AssertionError is a failed expectation with enough context to debug it.
type AssertionError struct {
	Type     string // build, guards, decision or run
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks the build and decision expectations of s
// against the trace and the ledger. Run expectations are checked as each
// run finishes.
func EvaluateAssertions(ctx context.Context, s *Scenario, result *Result, st *store.Store) []string {
	var errs []string
	report := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	report(assertBuild(result.Trace, s))
	for _, d := range s.Decisions {
		report(assertDecision(ctx, st, d))
	}
	return errs
}

func assertBuild(trace []TraceEvent, s *Scenario) error {
	ev, ok := lo.Find(trace, func(e TraceEvent) bool { return e.Type == EventBuild })
	if !ok {
		return &AssertionError{Type: "build", Expected: s.Build, Actual: "no build event"}
	}
	if ev.Outcome != s.Build {
		actual := ev.Outcome
		if ev.Detail != "" {
			actual += " (" + firstLine(ev.Detail) + ")"
		}
		return &AssertionError{Type: "build", Expected: s.Build, Actual: actual}
	}
	if s.Guards != nil && ev.Guards != *s.Guards {
		return &AssertionError{
			Type:     "guards",
			Expected: fmt.Sprintf("%d guard(s)", *s.Guards),
			Actual:   fmt.Sprintf("%d", ev.Guards),
		}
	}
	return nil
}

func assertDecision(ctx context.Context, st *store.Store, want DecisionExpect) error {
	rows, err := st.ReadDecisions(ctx, store.DecisionFilter{Buffer: want.Buffer, Verdict: want.Verdict})
	if err != nil {
		return err
	}
	matches := lo.Filter(rows, func(d store.Decision, _ int) bool {
		if want.Access != "" && d.Access != want.Access {
			return false
		}
		return want.Dim == nil || d.Dim == *want.Dim
	})

	desc := describeDecision(want)
	switch {
	case want.Count != nil && len(matches) != *want.Count:
		return &AssertionError{
			Type:     "decision",
			Expected: fmt.Sprintf("%d x %s", *want.Count, desc),
			Actual:   fmt.Sprintf("%d", len(matches)),
		}
	case want.Count == nil && len(matches) == 0:
		return &AssertionError{Type: "decision", Expected: desc, Actual: "no matching access"}
	}
	return nil
}

func describeDecision(d DecisionExpect) string {
	var sb strings.Builder
	if d.Access != "" {
		sb.WriteString(d.Access + " of ")
	}
	sb.WriteString(d.Buffer)
	if d.Dim != nil {
		fmt.Fprintf(&sb, " dim %d", *d.Dim)
	}
	sb.WriteString(" " + d.Verdict)
	return sb.String()
}

// checkRun compares one execution against its step.
func checkRun(r RunStep, outcome string, res *exec.Result) []string {
	var errs []string
	if outcome != r.Expect {
		errs = append(errs, (&AssertionError{
			Type:     "run " + r.Name,
			Expected: r.Expect,
			Actual:   outcome,
		}).Error())
	}
	if res == nil {
		return errs
	}

	names := lo.Keys(r.Output)
	slices.Sort(names)
	for _, name := range names {
		want := r.Output[name]
		got, ok := res.Buffers[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("run %s: no buffer %s", r.Name, name))
			continue
		}
		if len(got) < len(want) {
			errs = append(errs, fmt.Sprintf("run %s: buffer %s has %d elements, expected at least %d",
				r.Name, name, len(got), len(want)))
			continue
		}
		for i, w := range want {
			if math.Abs(got[i]-w) > outputTolerance {
				errs = append(errs, (&AssertionError{
					Type:     fmt.Sprintf("run %s output %s[%d]", r.Name, name, i),
					Expected: fmt.Sprintf("%g", w),
					Actual:   fmt.Sprintf("%g", got[i]),
				}).Error())
				break
			}
		}
	}
	return errs
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
