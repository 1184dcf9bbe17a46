package interval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, p, q Poly) Poly {
	t.Helper()
	out, ok := p.Add(q)
	require.True(t, ok)
	return out
}

func TestPolyString(t *testing.T) {
	n, m := Atom("n"), Atom("m")

	assert.Equal(t, "0", Poly{}.String())
	assert.Equal(t, "-3", Const(-3).String())
	assert.Equal(t, "n - 1", mustAdd(t, n, Const(-1)).String())

	twoM, ok := m.Scale(2)
	require.True(t, ok)
	negN, ok := n.Neg()
	require.True(t, ok)
	assert.Equal(t, "2*m - n + 4", mustAdd(t, mustAdd(t, twoM, negN), Const(4)).String())

	nm, ok := n.Mul(m)
	require.True(t, ok)
	assert.Equal(t, "m*n", nm.String())
}

func TestPolyArithmeticCancels(t *testing.T) {
	n := Atom("n")
	p := mustAdd(t, n, Const(5))

	d, ok := p.Sub(n)
	require.True(t, ok)
	c, isConst := d.IsConst()
	assert.True(t, isConst)
	assert.Equal(t, int64(5), c)

	zero, ok := p.Sub(p)
	require.True(t, ok)
	assert.True(t, zero.Equal(Poly{}))
}

func TestPolySigns(t *testing.T) {
	n := Atom("n")

	assert.True(t, mustAdd(t, n, Const(3)).NonNeg())
	assert.False(t, mustAdd(t, n, Const(-1)).NonNeg())
	assert.False(t, mustAdd(t, n, Const(-1)).NonPos())

	negN, _ := n.Neg()
	assert.True(t, mustAdd(t, negN, Const(-1)).NonPos())
	assert.True(t, Poly{}.NonNeg())
	assert.True(t, Poly{}.NonPos())
}

func TestPolyOverflow(t *testing.T) {
	_, ok := Const(math.MaxInt64).Add(Const(1))
	assert.False(t, ok)

	_, ok = Const(math.MinInt64).Neg()
	assert.False(t, ok)

	_, ok = Const(math.MaxInt64 / 2).Scale(3)
	assert.False(t, ok)

	_, ok = Atom("n").Scale(math.MaxInt64)
	assert.True(t, ok)
}

func TestPolyEval(t *testing.T) {
	n, m := Atom("n"), Atom("m")
	nm, _ := n.Mul(m)
	p := mustAdd(t, nm, Const(-2))

	v, ok := p.Eval(map[string]int64{"n": 3, "m": 4})
	require.True(t, ok)
	assert.Equal(t, int64(10), v)

	_, ok = p.Eval(map[string]int64{"n": 3})
	assert.False(t, ok)
}

func TestPolySplitDivisible(t *testing.T) {
	n := Atom("n")
	eightN, _ := n.Scale(8)
	p := mustAdd(t, eightN, Const(7))

	q, r, ok := p.splitDivisible(8)
	require.True(t, ok)
	assert.Equal(t, "n", q.String())
	assert.Equal(t, int64(7), r)

	_, _, ok = mustAdd(t, n, Const(7)).splitDivisible(8)
	assert.False(t, ok)
}
