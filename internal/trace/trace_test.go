package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		in   string
		want Flags
	}{
		{"", Flags{}},
		{"process_tracing=1", Flags{ProcessTracing: true}},
		{"process_tracing=true", Flags{ProcessTracing: true}},
		{"process_tracing=0", Flags{}},
		{"process_tracing=false", Flags{}},
		{"process_tracing=yes", Flags{}},
		{"trace_log_file=/tmp/t.log", Flags{LogFile: "/tmp/t.log"}},
		{"process_tracing=1:trace_log_file=out/trace.log", Flags{ProcessTracing: true, LogFile: "out/trace.log"}},
		{"unknown_flag=7:process_tracing=1", Flags{ProcessTracing: true}},
		{"process_tracing=1:", Flags{ProcessTracing: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFlags(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlagsRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"=1",
		"process_tracing=",
		"process_tracing=1::x=2",
		"process-tracing=1",
		"trace_log_file=a b",
		"trace_log_file=" + strings.Repeat("x", maxValueLen),
		strings.Repeat("a", maxFlagsLen+1),
	} {
		_, err := ParseFlags(in)
		assert.ErrorIs(t, err, ErrMalformed, "%q", in)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvVar, "process_tracing=1")
	f, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, f.ProcessTracing)

	t.Setenv(EnvVar, "")
	f, err = FromEnv()
	require.NoError(t, err)
	assert.False(t, f.ProcessTracing)
}

func TestTracerExpr(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf)
	tr.Expr("C", []int64{3}, 1.5, false)
	tr.Expr("Idx", []int64{0, 2}, 7, true)
	require.NoError(t, tr.Flush())

	assert.Equal(t, "C[3]=1.500000\nIdx[0][2]=7\n", buf.String())
}

func TestTracerBufferOnce(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf)
	tr.Buffer("A", "A", []int64{2, 2}, []float64{1, 2, 3, 4}, true)
	tr.Buffer("A", "A again", []int64{2, 2}, []float64{1, 2, 3, 4}, true)
	require.NoError(t, tr.Close())

	assert.Equal(t, "A[2][2] 1 2 3 4\n", buf.String())
}

func TestNilTracerDiscards(t *testing.T) {
	var tr *Tracer
	tr.Expr("x", nil, 1, false)
	tr.Buffer("A", "A", nil, nil, false)
	assert.NoError(t, tr.Close())
}

func TestOpen(t *testing.T) {
	tr, err := Open(Flags{})
	require.NoError(t, err)
	assert.Nil(t, tr)

	path := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier\n"), 0o644))

	tr, err = Open(Flags{ProcessTracing: true, LogFile: path})
	require.NoError(t, err)
	tr.Expr("v", nil, 2, true)
	require.NoError(t, tr.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "earlier\nv=2\n", string(data))
}
