package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const kernelsCUE = `package test

program: vecadd: {
	buffers: {
		A: shape: ["n"]
		B: shape: ["n"]
		C: shape: ["n"]
	}
	body: [{
		loop:   "i"
		extent: "n"
		body: [{store: "C[i]", value: "A[i] + B[i]"}]
	}]
}

program: vecadd_shift: {
	buffers: {
		A: shape: ["n"]
		B: shape: ["n"]
		C: shape: ["n"]
	}
	body: [{
		loop:   "i"
		extent: "n"
		body: [{store: "C[i]", value: "A[i + 1] + B[i]"}]
	}]
}

program: traced: {
	buffers: {
		A: shape: ["n"]
		B: shape: ["n"]
		C: shape: ["n"]
	}
	body: [{
		loop:   "i"
		extent: "n"
		body: [{store: "C[i]", value: "trace(\"C\", i, A[i] + B[i])"}]
	}]
}
`

const unsafeCUE = `package test

program: shift_fixed: {
	buffers: {
		A: shape: [1024]
		C: shape: [1024]
	}
	body: [{
		loop:   "i"
		extent: 1024
		body: [{store: "C[i]", value: "A[i + 1]"}]
	}]
}
`

// writePrograms writes CUE files into a fresh directory.
func writePrograms(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

// execute runs the root command and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
