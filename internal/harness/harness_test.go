package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kernels = "testdata/programs/vecadd.cue"

func intp(v int) *int { return &v }

func TestRun_CleanProgramHasNoGuards(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "clean",
		Program:    kernels,
		Entry:      "vecadd",
		Instrument: true,
		Build:      BuildOK,
		Guards:     intp(0),
		Runs: []RunStep{{
			Name:   "small",
			Params: map[string]int64{"n": 4},
			Fill:   map[string]string{"A": "ramp", "B": "ones"},
			Expect: OutcomeOK,
			Output: map[string][]float64{"C": {1, 2, 3, 4}},
		}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotContains(t, result.IR, "check_bounds")

	require.Len(t, result.Trace, 5)
	for _, ev := range result.Trace[:3] {
		assert.Equal(t, EventDecision, ev.Type)
		assert.Equal(t, "safe", ev.Verdict)
	}
	assert.Equal(t, EventBuild, result.Trace[3].Type)
	run := result.Trace[4]
	assert.Equal(t, EventRun, run.Type)
	assert.Equal(t, OutcomeOK, run.Outcome)
	assert.Equal(t, 5, run.Steps)
}

func TestRun_GuardStopsOverflow(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "guarded",
		Program:    kernels,
		Entry:      "vecadd_shift",
		Instrument: true,
		Build:      BuildOK,
		Guards:     intp(1),
		Runs: []RunStep{
			{Name: "overflow", Params: map[string]int64{"n": 4}, Expect: OutcomeBoundsError},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.IR, "check_bounds((A_idx0 < n)")

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, OutcomeBoundsError, last.Outcome)
	assert.Contains(t, last.Detail, "bounds check failed on A")
}

func TestRun_DisabledPassLeavesProgramUnchanged(t *testing.T) {
	result, err := Run(&Scenario{
		Name:    "disabled",
		Program: kernels,
		Entry:   "vecadd_shift",
		Build:   BuildOK,
		Decisions: []DecisionExpect{
			{Buffer: "A", Access: "load", Verdict: "undecided"},
		},
		Runs: []RunStep{
			{Name: "overflow", Params: map[string]int64{"n": 4}, Expect: OutcomeMemoryFault},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.IR, "C[i] = (A[(i + 1)] + B[i])")
	assert.NotContains(t, result.IR, "check_bounds")
}

func TestRun_UnsafeBuildSkipsRuns(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "unsafe",
		Program:    kernels,
		Entry:      "shift_fixed",
		Instrument: true,
		Build:      BuildOK,
		Runs: []RunStep{
			{Name: "never", Params: map[string]int64{}, Expect: OutcomeOK},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Empty(t, result.IR)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "1 run(s) skipped: build failed", result.Errors[0])
	assert.Contains(t, result.Errors[1], "build: expected ok, got unsafe")

	build := result.Trace[len(result.Trace)-1]
	assert.Equal(t, EventBuild, build.Type)
	assert.Equal(t, BuildUnsafe, build.Outcome)
	assert.NotEmpty(t, build.Detail)
}

func TestRun_ExpectationMismatchesReported(t *testing.T) {
	result, err := Run(&Scenario{
		Name:       "mismatch",
		Program:    kernels,
		Entry:      "vecadd",
		Instrument: true,
		Build:      BuildOK,
		Guards:     intp(2),
		Decisions: []DecisionExpect{
			{Buffer: "A", Verdict: "unsafe"},
		},
		Runs: []RunStep{{
			Name:   "small",
			Params: map[string]int64{"n": 2},
			Fill:   map[string]string{"A": "ones", "B": "ones"},
			Expect: OutcomeOK,
			Output: map[string][]float64{"C": {2, 3}},
		}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "output C[1]")
	assert.Contains(t, result.Errors[1], "guards: expected 2 guard(s), got 0")
	assert.Contains(t, result.Errors[2], "decision: expected A unsafe, got no matching access")
}

func TestRun_QuotaExceeded(t *testing.T) {
	result, err := Run(&Scenario{
		Name:    "quota",
		Program: kernels,
		Entry:   "vecadd",
		Build:   BuildOK,
		Runs: []RunStep{
			{Name: "long", Params: map[string]int64{"n": 100}, Expect: OutcomeQuotaExceeded, MaxSteps: 10},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 11, result.Trace[len(result.Trace)-1].Steps)
}

func TestRun_MissingParameterIsError(t *testing.T) {
	result, err := Run(&Scenario{
		Name:    "missing",
		Program: kernels,
		Entry:   "vecadd",
		Build:   BuildOK,
		Runs:    []RunStep{{Name: "bare", Expect: OutcomeError}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Trace[len(result.Trace)-1].Detail, "missing parameter n")
}

func TestRun_SetupErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.cue")
	require.NoError(t, os.WriteFile(broken, []byte("program: p: {body: [{store: \"C[i]\"}]}\n"), 0644))

	tests := []struct {
		name     string
		scenario *Scenario
		want     string
	}{
		{"missing file", &Scenario{Name: "s", Program: filepath.Join(dir, "none.cue"), Entry: "p"}, "failed to read program"},
		{"unknown entry", &Scenario{Name: "s", Program: kernels, Entry: "matmul"}, `no program named "matmul"`},
		{"compile error", &Scenario{Name: "s", Program: broken, Entry: "p"}, "failed to compile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/vecadd_shift_guarded.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeError, Outcome(os.ErrNotExist))
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
