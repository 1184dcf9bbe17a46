package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tensorcheck/internal/ir"
	"github.com/roach88/tensorcheck/internal/walker"
)

func analyze(t *testing.T, body ir.Stmt) []Decision {
	t.Helper()
	res, err := walker.Walk(body)
	require.NoError(t, err)
	return Analyze(res)
}

// shifted builds for (i, 0, extent) { C[i] = A[i + offset] + B[i] } over
// buffers of the given extent.
func shifted(extent ir.Expr, offset int64) ir.Stmt {
	a := ir.NewBuffer("A", ir.Float32, extent)
	b := ir.NewBuffer("B", ir.Float32, extent)
	c := ir.NewBuffer("C", ir.Float32, extent)
	i := ir.V("i")
	return ir.Loop("i", extent, ir.Serial,
		c.Store(ir.Add(a.Load(ir.Add(i, ir.Int(offset))), b.Load(i)), i),
	)
}

func verdicts(decs []Decision) []Verdict {
	out := make([]Verdict, len(decs))
	for i, d := range decs {
		out[i] = d.Verdict
	}
	return out
}

func TestClassifyShiftedAccess(t *testing.T) {
	tests := []struct {
		name   string
		extent ir.Expr
		offset int64
		want   Verdict
	}{
		{"in bounds symbolic", ir.V("n"), 0, Safe},
		{"in bounds constant", ir.Int(1024), 0, Safe},
		{"plus one constant", ir.Int(1024), 1, Unsafe},
		{"minus one constant", ir.Int(1024), -1, Unsafe},
		{"plus many constant", ir.Int(1024), 10000, Unsafe},
		{"minus many constant", ir.Int(1024), -10000, Unsafe},
		{"plus one symbolic", ir.V("n"), 1, Undecided},
		{"minus one symbolic", ir.V("n"), -1, Undecided},
		{"plus many symbolic", ir.V("n"), 10000, Undecided},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decs := analyze(t, shifted(tt.extent, tt.offset))
			require.Len(t, decs, 3)
			assert.Equal(t, []Verdict{tt.want, Safe, Safe}, verdicts(decs))
		})
	}
}

func TestClassifySymbolicReason(t *testing.T) {
	decs := analyze(t, shifted(ir.V("n"), 1))
	assert.Equal(t, "[1, n] may reach outside [0, n)", decs[0].Dims[0].Reason)
	assert.True(t, decs[0].Dims[0].LowerProven)
	assert.False(t, decs[0].Dims[0].UpperProven)

	decs = analyze(t, shifted(ir.Int(1024), 1))
	assert.Equal(t, "[1, 1024] always reaches outside [0, 1024)", decs[0].Dims[0].Reason)
}

func TestClassifySplitVectorized(t *testing.T) {
	n := ir.Int(1024)
	a := ir.NewBuffer("A", ir.Float32, n)
	c := ir.NewBuffer("C", ir.Float32, n)
	io, ii, i := ir.V("io"), ir.V("ii"), ir.V("i")
	split := func(offset int64) ir.Stmt {
		return ir.Loop("io", ir.Int(128), ir.Parallel,
			ir.Loop("ii", ir.Int(8), ir.Vectorized,
				ir.Let("i", ir.Add(ir.Mul(io, ir.Int(8)), ii),
					c.Store(a.Load(ir.Add(i, ir.Int(offset))), i),
				),
			),
		)
	}

	assert.Equal(t, []Verdict{Safe, Safe}, verdicts(analyze(t, split(0))))
	assert.Equal(t, []Verdict{Unsafe, Safe}, verdicts(analyze(t, split(1000))))
	assert.Equal(t, []Verdict{Unsafe, Safe}, verdicts(analyze(t, split(-1000))))
}

func TestClassifyLaneBufferIgnoresLanes(t *testing.T) {
	for _, lanes := range []int{1, 2, 4, 8, 16} {
		a := &ir.Buffer{Name: "A", DType: ir.Float32, Lanes: lanes, Shape: []ir.Expr{ir.Int(64)}}
		i := ir.V("i")

		inBounds := analyze(t, ir.Loop("i", ir.Int(64), ir.Serial, a.Store(ir.Float(1), i)))
		assert.Equal(t, Safe, inBounds[0].Verdict, "lanes=%d", lanes)

		past := analyze(t, ir.Loop("i", ir.Int(64), ir.Serial, a.Store(ir.Float(1), ir.Add(i, ir.Int(1)))))
		assert.Equal(t, Unsafe, past[0].Verdict, "lanes=%d", lanes)
	}
}

func TestClassifyRamp(t *testing.T) {
	a := ir.NewBuffer("A", ir.Float32, ir.Int(1024))
	io := ir.V("io")
	access := func(offset int64) ir.Stmt {
		r := &ir.Ramp{Base: ir.Add(ir.Mul(io, ir.Int(8)), ir.Int(offset)), Stride: ir.Int(1), Lanes: 8}
		return ir.Loop("io", ir.Int(128), ir.Serial, a.Store(&ir.Broadcast{Value: ir.Float(0), Lanes: 8}, r))
	}

	assert.Equal(t, Safe, analyze(t, access(0))[0].Verdict)
	assert.Equal(t, Unsafe, analyze(t, access(1))[0].Verdict, "last lane of the last ramp reaches 1024")
}

func TestClassifyDataDependent(t *testing.T) {
	n := ir.V("n")
	a := ir.NewBuffer("A", ir.Float32, n)
	idx := ir.NewBuffer("Idx", ir.Int32, n)
	i := ir.V("i")

	decs := analyze(t, ir.Loop("i", n, ir.Serial, a.Store(ir.Float(0), idx.Load(i))))
	assert.Equal(t, []Verdict{Safe, Undecided}, verdicts(decs))
	assert.Equal(t, "cannot prove [-inf, +inf] within [0, n)", decs[1].Dims[0].Reason)
}

func TestClassifyConditionalAccessNotProvenUnsafe(t *testing.T) {
	c := ir.NewBuffer("C", ir.Float32, ir.Int(1024))
	i := ir.V("i")
	body := ir.Loop("i", ir.Int(1024), ir.Serial,
		&ir.IfThenElse{
			Cond: ir.LT(i, ir.Int(3)),
			Then: c.Store(ir.Float(0), ir.Int(1024)),
		},
	)

	decs := analyze(t, body)
	assert.Equal(t, Undecided, decs[0].Verdict, "the branch may never be taken")
}

func TestClassifyLooseBoundNotProvenUnsafe(t *testing.T) {
	c := ir.NewBuffer("C", ir.Float32, ir.Int(1024))
	i := ir.V("i")
	body := ir.Loop("i", ir.Int(1024), ir.Serial,
		c.Store(ir.Float(0), ir.Div(ir.Mul(i, ir.Int(3)), ir.Int(2))),
	)

	decs := analyze(t, body)
	assert.Equal(t, Undecided, decs[0].Verdict)
}

func TestClassifyMultiDimTieBreak(t *testing.T) {
	b := ir.NewBuffer("B", ir.Float32, ir.Int(16), ir.V("m"))
	i, j := ir.V("i"), ir.V("j")
	nest := func(di, dj int64) ir.Stmt {
		return ir.Loop("i", ir.Int(16), ir.Serial,
			ir.Loop("j", ir.V("m"), ir.Serial,
				b.Store(ir.Float(0), ir.Add(i, ir.Int(di)), ir.Add(j, ir.Int(dj))),
			),
		)
	}

	assert.Equal(t, Safe, analyze(t, nest(0, 0))[0].Verdict)
	assert.Equal(t, Undecided, analyze(t, nest(0, 1))[0].Verdict)

	// m may be zero, so the inner loop may not run: no proof of a fault.
	assert.Equal(t, Undecided, analyze(t, nest(1, 0))[0].Verdict)

	dec := analyze(t, nest(0, 1))[0]
	require.Len(t, dec.Dims, 2)
	assert.Equal(t, Safe, dec.Dims[0].Verdict)
	assert.Equal(t, Undecided, dec.Dims[1].Verdict)
}

func TestClassifyUnsafeWinsOverUndecided(t *testing.T) {
	b := ir.NewBuffer("B", ir.Float32, ir.Int(16), ir.V("m"))
	idx := ir.NewBuffer("Idx", ir.Int32, ir.Int(16))
	i := ir.V("i")
	body := ir.Loop("i", ir.Int(16), ir.Serial,
		b.Store(ir.Float(0), ir.Add(i, ir.Int(1)), idx.Load(i)),
	)

	decs := analyze(t, body)
	require.Len(t, decs, 2)
	assert.Equal(t, Unsafe, decs[1].Verdict)
	assert.Equal(t, Unsafe, decs[1].Dims[0].Verdict)
	assert.Equal(t, Undecided, decs[1].Dims[1].Verdict)
}

func TestViolations(t *testing.T) {
	decs := analyze(t, shifted(ir.Int(1024), 1))
	vs := Violations(decs)
	require.Len(t, vs, 1)

	assert.Equal(t, Violation{
		Buffer: "A",
		Kind:   "load",
		Dim:    0,
		Index:  "(i + 1)",
		Range:  "[1, 1024]",
		Extent: "1024",
		Path:   "for i/load A.0",
	}, vs[0])

	err := &ViolationError{Program: "vecadd", Violations: vs}
	assert.True(t, IsViolation(err))
	assert.Equal(t,
		"[E201] vecadd: 1 out-of-bounds access\n  load of A dim 0: index (i + 1) spans [1, 1024], extent 1024 (at for i/load A.0)",
		err.Error())
}

func TestParseVerdict(t *testing.T) {
	for _, v := range []Verdict{Safe, Undecided, Unsafe} {
		got, err := ParseVerdict(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	_, err := ParseVerdict("maybe")
	assert.Error(t, err)
}
