package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/tensorcheck/internal/store"
)

func TestCheckAllSafeOrGuardable(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})

	out, err := execute(t, "check", dir)
	require.NoError(t, err)
	assert.Equal(t,
		"✓ vecadd: 3 safe, 0 undecided, 0 unsafe\n"+
			"✓ vecadd_shift: 2 safe, 1 undecided, 0 unsafe\n"+
			"✓ traced: 3 safe, 0 undecided, 0 unsafe\n",
		out)
}

func TestCheckUnsafeExitsWithFailure(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE, "unsafe.cue": unsafeCUE})

	out, err := execute(t, "check", dir, "--program", "shift_fixed")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ shift_fixed: 1 safe, 0 undecided, 1 unsafe\n")
	assert.Contains(t, out, "load of A dim 0: index (i + 1)")
	assert.NotContains(t, out, "vecadd")
}

func TestCheckJSON(t *testing.T) {
	dir := writePrograms(t, map[string]string{"unsafe.cue": unsafeCUE})

	out, err := execute(t, "--format", "json", "check", dir)
	require.Error(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   []*ProgramCheck `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E201", resp.Error.Code)
	require.Len(t, resp.Data, 1)
	require.Len(t, resp.Data[0].Violations, 1)
	assert.Equal(t, "A", resp.Data[0].Violations[0].Buffer)
}

func TestCheckRecordsLedger(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})
	db := filepath.Join(t.TempDir(), "ledger.db")

	_, err := execute(t, "check", dir, "--db", db)
	require.NoError(t, err)
	// A second check of the same programs is recorded as new runs.
	_, err = execute(t, "check", dir, "--db", db, "--program", "vecadd_shift")
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ReadRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, []string{"vecadd", "vecadd_shift", "traced", "vecadd_shift"},
		[]string{runs[0].Program, runs[1].Program, runs[2].Program, runs[3].Program})
	assert.Equal(t, runs[1].ProgramHash, runs[3].ProgramHash)
	assert.Equal(t, 1, runs[3].Undecided)
}

func TestCheckUnknownProgram(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})

	out, err := execute(t, "check", dir, "--program", "matmul")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `no program named "matmul"`)
	assert.Contains(t, out, "have vecadd, vecadd_shift, traced")
}

func TestAnalyzeAllKeepsOrder(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})
	loaded, errs := LoadPrograms(dir, LoadModeFailFast)
	require.Empty(t, errs)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	results, err := analyzeAll(context.Background(), loaded.Programs)
	require.NoError(t, err)
	require.Len(t, results, len(loaded.Programs))
	for i, p := range loaded.Programs {
		assert.Equal(t, p.Name, results[i].Program)
	}
}
