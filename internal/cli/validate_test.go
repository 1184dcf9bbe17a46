package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidPrograms(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE})

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Equal(t, "✓ All 3 program(s) valid\n", out)
}

func TestValidateReportsEveryError(t *testing.T) {
	dir := writePrograms(t, map[string]string{"bad.cue": `package test

program: unbound: {
	buffers: A: shape: ["n"]
	body: [{loop: "i", extent: "n", body: [{store: "A[k]", value: "0"}]}]
}

program: shadowed: {
	buffers: A: shape: ["n"]
	body: [{loop: "i", extent: "n", body: [{loop: "i", extent: "n", body: [{store: "A[i]", value: "0"}]}]}]
}
`})

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed with 2 error(s)")
	assert.Contains(t, out, "E108: program.unbound/")
	assert.Contains(t, out, "unbound variable k")
	assert.Contains(t, out, "E109: program.shadowed/")
}

func TestValidateJSON(t *testing.T) {
	dir := writePrograms(t, map[string]string{"kernels.cue": kernelsCUE, "unsafe.cue": unsafeCUE})

	out, err := execute(t, "--format", "json", "validate", dir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.ElementsMatch(t, []string{"vecadd", "vecadd_shift", "traced", "shift_fixed"}, resp.Data.Programs)
}
