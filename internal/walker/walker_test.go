package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tensorcheck/internal/interval"
	"github.com/roach88/tensorcheck/internal/ir"
)

type vecadd struct {
	a, b, c *ir.Buffer
}

func newVecadd(extent ir.Expr) vecadd {
	return vecadd{
		a: ir.NewBuffer("A", ir.Float32, extent),
		b: ir.NewBuffer("B", ir.Float32, extent),
		c: ir.NewBuffer("C", ir.Float32, extent),
	}
}

// shifted builds for (i, 0, extent) { C[i] = A[i + offset] + B[i] }.
func (v vecadd) shifted(extent ir.Expr, offset int64) ir.Stmt {
	i := ir.V("i")
	return ir.Loop("i", extent, ir.Serial,
		v.c.Store(ir.Add(v.a.Load(ir.Add(i, ir.Int(offset))), v.b.Load(i)), i),
	)
}

func TestWalkOrderAndPaths(t *testing.T) {
	n := ir.V("n")
	v := newVecadd(n)

	res, err := Walk(v.shifted(n, 1))
	require.NoError(t, err)
	require.Len(t, res.Accesses, 3)
	require.Len(t, res.Sites, 3)

	var paths []string
	for _, a := range res.Accesses {
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{"for i/load A.0", "for i/load B.1", "for i/store C"}, paths)
	assert.Equal(t, Read, res.Accesses[0].Kind)
	assert.Equal(t, Write, res.Accesses[2].Kind)
	assert.Same(t, res.Accesses[0].Unit, res.Accesses[2].Unit, "all three accesses belong to the store")

	a := res.Sites[0]
	assert.Equal(t, "[1, n]", a.Range.String())
	assert.Equal(t, "[n, n]", a.Bound.String())
	assert.True(t, a.Tight)
	assert.False(t, a.Access.Executes, "n may be zero")
}

func TestWalkConstantExtentExecutes(t *testing.T) {
	v := newVecadd(ir.Int(1024))

	res, err := Walk(v.shifted(ir.Int(1024), 1))
	require.NoError(t, err)

	a := res.Sites[0]
	assert.Equal(t, "[1, 1024]", a.Range.String())
	assert.Equal(t, "[1024, 1024]", a.Bound.String())
	assert.True(t, a.Access.Executes)
}

func TestWalkSplitParallelVectorize(t *testing.T) {
	v := newVecadd(ir.Int(1024))
	io, ii, i := ir.V("io"), ir.V("ii"), ir.V("i")
	body := ir.Loop("io", ir.Int(128), ir.Parallel,
		ir.Loop("ii", ir.Int(8), ir.Vectorized,
			ir.Let("i", ir.Add(ir.Mul(io, ir.Int(8)), ii),
				v.c.Store(v.a.Load(i), i),
			),
		),
	)

	res, err := Walk(body)
	require.NoError(t, err)
	require.Len(t, res.Sites, 2)

	for _, s := range res.Sites {
		assert.Equal(t, "[0, 1023]", s.Range.String())
		assert.True(t, s.Tight)
		assert.True(t, s.Access.Vectorized)
		assert.True(t, s.Access.Executes)
		assert.Equal(t, 1, s.Access.Lanes)
	}
	assert.Equal(t, "for io/for ii/let i/store C", res.Accesses[1].Path)
}

func TestWalkRampIndex(t *testing.T) {
	v := newVecadd(ir.Int(1024))
	io := ir.V("io")
	ramp := &ir.Ramp{Base: ir.Mul(io, ir.Int(8)), Stride: ir.Int(1), Lanes: 8}
	body := ir.Loop("io", ir.Int(128), ir.Parallel, v.c.Store(v.a.Load(ramp), ramp))

	res, err := Walk(body)
	require.NoError(t, err)

	s := res.Sites[0]
	assert.Equal(t, "[0, 1023]", s.Range.String())
	assert.Equal(t, 8, s.Access.Lanes)
	assert.True(t, s.Access.Vectorized)
}

func TestWalkVectorLaneBuffer(t *testing.T) {
	n := ir.V("n")
	a := &ir.Buffer{Name: "A", DType: ir.Float32, Lanes: 4, Shape: []ir.Expr{n}}
	body := ir.Loop("i", n, ir.Serial, a.Store(ir.Float(0), ir.V("i")))

	res, err := Walk(body)
	require.NoError(t, err)

	s := res.Sites[0]
	assert.Equal(t, "[0, n - 1]", s.Range.String())
	assert.Equal(t, "[n, n]", s.Bound.String(), "lanes never scale the extent")
	assert.Equal(t, 1, s.Access.Lanes)
}

func TestWalkBranchRefinement(t *testing.T) {
	n := ir.V("n")
	v := newVecadd(n)
	io, ii := ir.V("io"), ir.V("ii")
	idx := ir.Add(ir.Mul(io, ir.Int(8)), ii)
	body := ir.Loop("io", ir.Div(ir.Add(n, ir.Int(7)), ir.Int(8)), ir.Serial,
		ir.Loop("ii", ir.Int(8), ir.Serial,
			&ir.IfThenElse{
				Cond: &ir.Call{Name: "likely", Args: []ir.Expr{ir.LT(idx, n)}},
				Then: v.c.Store(v.a.Load(idx), idx),
				Else: v.c.Store(ir.Float(0), ir.Int(0)),
			},
		),
	)

	res, err := Walk(body)
	require.NoError(t, err)
	require.Len(t, res.Sites, 3)

	assert.Equal(t, "[0, n - 1]", res.Sites[0].Range.String())
	assert.False(t, res.Sites[0].Tight, "narrowed by a branch")
	assert.False(t, res.Sites[0].Access.Executes)
	assert.Equal(t, "for io/for ii/then/load A.0", res.Sites[0].Access.Path)
	assert.Equal(t, "for io/for ii/else/store C", res.Sites[2].Access.Path)
}

func TestWalkComputeAtKeepsOuterScope(t *testing.T) {
	n := ir.V("n")
	a := ir.NewBuffer("A", ir.Float32, n)
	b := ir.NewBuffer("B", ir.Float32, n)
	c := ir.NewBuffer("C", ir.Float32, n)
	i := ir.V("i")
	body := ir.Loop("i", n, ir.Serial,
		&ir.ProducerConsumer{Stage: "B", Body: b.Store(a.Load(i), i)},
		c.Store(b.Load(i), i),
	)

	res, err := Walk(body)
	require.NoError(t, err)
	require.Len(t, res.Accesses, 4)

	assert.Equal(t, "B", res.Accesses[0].Stage)
	assert.Equal(t, "B", res.Accesses[1].Stage)
	assert.Equal(t, "", res.Accesses[3].Stage)
	assert.Equal(t, "for i/[0]/produce B/load A.0", res.Accesses[0].Path)
	for _, s := range res.Sites {
		assert.Equal(t, "[0, n - 1]", s.Range.String())
	}
}

func TestWalkNestedLoadsInnerFirst(t *testing.T) {
	n := ir.V("n")
	v := newVecadd(n)
	idx := ir.NewBuffer("Idx", ir.Int32, n)
	i := ir.V("i")
	body := ir.Loop("i", n, ir.Serial, v.c.Store(v.a.Load(idx.Load(i)), i))

	res, err := Walk(body)
	require.NoError(t, err)
	require.Len(t, res.Accesses, 3)

	assert.Equal(t, "Idx", res.Accesses[0].Buffer.Name)
	assert.Equal(t, "A", res.Accesses[1].Buffer.Name)
	assert.True(t, res.Sites[1].Range.IsEverything(), "data-dependent index")
}

func TestWalkScalarParams(t *testing.T) {
	n := ir.V("n")
	a := ir.NewBuffer("A", ir.Float32, n)
	p := &ir.Program{
		Name:    "offset",
		Params:  []string{"off"},
		Buffers: []*ir.Buffer{a},
		Body:    ir.Loop("i", n, ir.Serial, a.Store(ir.Float(0), ir.Add(ir.V("i"), ir.V("off")))),
	}

	res, err := WalkProgram(p)
	require.NoError(t, err)
	assert.True(t, res.Sites[0].Range.IsEverything())
	assert.Equal(t, "[n, n]", res.Sites[0].Bound.String())
}

func TestWalkLocalAllocation(t *testing.T) {
	n := ir.V("n")
	a := ir.NewBuffer("A", ir.Float32, n)
	tmp := ir.NewBuffer("T", ir.Float32, ir.Int(8))
	j := ir.V("j")
	body := ir.Loop("i", n, ir.Serial,
		&ir.Allocate{Buffer: tmp, Body: ir.Seq(
			ir.Loop("j", ir.Int(8), ir.Unrolled, tmp.Store(ir.Float(1), j)),
			a.Store(tmp.Load(ir.Int(7)), ir.V("i")),
		)},
	)

	res, err := Walk(body)
	require.NoError(t, err)
	require.Len(t, res.Sites, 3)
	assert.Equal(t, "for i/allocate T/[0]/for j/store T", res.Accesses[0].Path)
	assert.Equal(t, "[0, 7]", res.Sites[0].Range.String())
	assert.Equal(t, "[8, 8]", res.Sites[0].Bound.String())
}

func TestWalkCheckedAccess(t *testing.T) {
	n := ir.V("n")
	a := ir.NewBuffer("A", ir.Float32, n)
	st := &ir.Store{Buffer: a, Indices: []ir.Expr{ir.V("i")}, Value: ir.Float(0), Checked: true}

	res, err := Walk(ir.Loop("i", n, ir.Serial, st))
	require.NoError(t, err)
	assert.True(t, res.Accesses[0].Checked)
}

func TestWalkArityMismatch(t *testing.T) {
	a := ir.NewBuffer("A", ir.Float32, ir.V("n"), ir.V("m"))
	body := ir.Loop("i", ir.V("n"), ir.Serial, a.Store(ir.Float(0), ir.V("i")))

	_, err := Walk(body)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "buffer A has 2 dimensions, accessed with 1 indices")
}

func TestSizeParamsExcludesBoundNames(t *testing.T) {
	tmp := ir.NewBuffer("T", ir.Float32, ir.Add(ir.V("i"), ir.Int(1)))
	a := ir.NewBuffer("A", ir.Float32, ir.V("n"))
	body := ir.Loop("i", ir.V("n"), ir.Serial,
		&ir.Allocate{Buffer: tmp, Body: tmp.Store(a.Load(ir.V("i")), ir.V("i"))},
	)

	assert.Equal(t, []string{"n"}, sizeParams(body))
}

func TestEndpoints(t *testing.T) {
	s := interval.NewScope()
	base := ir.V("b")

	first, last, ok := Endpoints(&ir.Ramp{Base: base, Stride: ir.Int(2), Lanes: 4}, s)
	require.True(t, ok)
	assert.Equal(t, "b", ir.ExprString(first))
	assert.Equal(t, "(b + 6)", ir.ExprString(last))

	first, last, ok = Endpoints(&ir.Ramp{Base: base, Stride: ir.Int(-1), Lanes: 4}, s)
	require.True(t, ok)
	assert.Equal(t, "(b + -3)", ir.ExprString(first))
	assert.Equal(t, "b", ir.ExprString(last))

	_, _, ok = Endpoints(&ir.Ramp{Base: base, Stride: ir.V("s"), Lanes: 4}, s)
	assert.False(t, ok)

	first, last, ok = Endpoints(base, s)
	require.True(t, ok)
	assert.Same(t, ir.Expr(base), first)
	assert.Same(t, ir.Expr(base), last)
}
