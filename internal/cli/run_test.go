package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tensorcheck/internal/trace"
)

func TestRunCompletes(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})

	out, err := execute(t, "run", dir, "--program", "vecadd", "--param", "n=4", "--fill", "A=ramp,B=ones")
	require.NoError(t, err)
	assert.Equal(t,
		"✓ vecadd: ok in 5 step(s)\n"+
			"  A = [0 1 2 3]\n"+
			"  B = [1 1 1 1]\n"+
			"  C = [1 2 3 4]\n",
		out)
}

func TestRunGuardStopsOverflow(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})

	out, err := execute(t, "run", dir, "--program", "vecadd_shift", "--param", "n=4",
		"--fill", "A=ramp,B=ones", "--instrument-bound-checkers", "--show", "C")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t,
		"✗ vecadd_shift: bounds check failed on A: out of bounds: load A[(i + 1)] with shape [n] after 12 step(s)\n"+
			"  C = [2 3 4 0]\n",
		out)
}

func TestRunUnguardedFaults(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})

	out, err := execute(t, "--format", "json", "run", dir, "--program", "vecadd_shift", "--param", "n=4")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "MEMORY_FAULT", resp.Error.Code)
	assert.Equal(t, "memory_fault", resp.Data.Outcome)
	assert.Equal(t, 5, resp.Data.Steps)
}

func TestRunQuota(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})

	out, err := execute(t, "run", dir, "--program", "vecadd", "--param", "n=100", "--max-steps", "10", "--show", "C")
	require.Error(t, err)
	assert.Contains(t, out, "QUOTA_EXCEEDED")
	assert.Contains(t, out, "... (84 more)")
}

func TestRunArgumentErrors(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing param", []string{"--program", "vecadd"}, "missing parameter n"},
		{"bad fill", []string{"--program", "vecadd", "--param", "n=2", "--fill", "A=noise"}, `unknown fill pattern "noise"`},
		{"unknown show", []string{"--program", "vecadd", "--param", "n=2", "--show", "D"}, "unknown buffer D"},
		{"unknown program", []string{"--program", "matmul", "--param", "n=2"}, `no program named "matmul"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"run", dir}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestRunTracesToLogFile(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})
	logFile := filepath.Join(t.TempDir(), "trace.log")
	t.Setenv(trace.EnvVar, "process_tracing=1:trace_log_file="+logFile)

	_, err := execute(t, "run", dir, "--program", "traced", "--param", "n=2", "--fill", "A=ramp,B=ones")
	require.NoError(t, err)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "C[0]=1.000000\nC[1]=2.000000\n", string(data))
}

func TestRunTracesToOutput(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})
	t.Setenv(trace.EnvVar, "process_tracing=1")

	out, err := execute(t, "run", dir, "--program", "traced", "--param", "n=2", "--fill", "A=ramp,B=ones")
	require.NoError(t, err)
	assert.Contains(t, out, "C[1]=2.000000\n")
}

func TestRunMalformedTraceFlags(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})
	t.Setenv(trace.EnvVar, "process tracing")

	out, err := execute(t, "run", dir, "--program", "vecadd", "--param", "n=2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, trace.EnvVar)
}
