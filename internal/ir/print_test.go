package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExprString(t *testing.T) {
	n := V("n")
	a := NewBuffer("A", Float32, n, Int(4))

	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"int", Int(-3), "-3"},
		{"float whole", Float(2), "2.0"},
		{"float frac", Float(0.25), "0.25"},
		{"string", Str("c"), `"c"`},
		{"nested add", Add(Mul(V("io"), Int(8)), V("ii")), "((io * 8) + ii)"},
		{"div mod", Mod(Div(V("i"), Int(4)), Int(2)), "((i div 4) mod 2)"},
		{"min", Min(V("i"), Sub(n, Int(1))), "min(i, (n - 1))"},
		{"compare and", Conjoin(LE(Int(0), V("i")), LT(V("i"), n)), "((0 <= i) && (i < n))"},
		{"not", &Not{X: EQ(V("i"), Int(0))}, "!(i == 0)"},
		{"ramp", &Ramp{Base: V("b"), Stride: Int(1), Lanes: 8}, "ramp(b, 1, 8)"},
		{"broadcast", &Broadcast{Value: Float(1), Lanes: 4}, "broadcast(1.0, 4)"},
		{"load", a.Load(V("i"), Int(3)), "A[i][3]"},
		{"call", &Call{Name: "trace", Args: []Expr{Str("x"), V("i")}}, `trace("x", i)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExprString(tt.expr))
		})
	}
}

func TestProgramString(t *testing.T) {
	n := V("n")
	a := NewBuffer("A", Float32, n)
	b := NewBuffer("B", Float32, n)
	c := &Buffer{Name: "C", DType: Float32, Lanes: 4, Shape: []Expr{n}}
	p := &Program{
		Name:    "vecadd",
		Params:  []string{"off"},
		Buffers: []*Buffer{a, b, c},
		Body: Loop("i", n, Parallel,
			Let("j", Add(V("i"), V("off")),
				&IfThenElse{
					Cond: LT(V("j"), n),
					Then: c.Store(Add(a.Load(V("j")), b.Load(V("i"))), V("i")),
				},
			),
		),
	}

	want := `program vecadd
  param off
  buffer A: float32[n]
  buffer B: float32[n]
  buffer C: float32x4[n]
parallel for (i, 0, n) {
  let j = (i + off)
  if (j < n) {
    C[i] = (A[j] + B[i])
  }
}
`
	assert.Equal(t, want, p.String())
}

func TestStmtStringGuards(t *testing.T) {
	n := V("n")
	a := NewBuffer("A", Float32, n)
	guard := &Assert{
		Kind:    AssertBounds,
		Cond:    LT(V("i"), n),
		Message: "out of bounds",
		Buffer:  "A",
		Body:    a.Store(Float(0), V("i")),
	}
	block := Seq(
		&Assert{Cond: GT(n, Int(0)), Message: "empty"},
		&ProducerConsumer{Stage: "B", Body: guard},
		&Allocate{Buffer: NewBuffer("T", Float64, Int(3)), Body: &Evaluate{Value: &Call{Name: "noop"}}},
	)

	want := `assert((n > 0), "empty")
produce B {
  check_bounds((i < n), "out of bounds") {
    A[i] = 0.0
  }
}
allocate T: float64[3] {
  noop()
}
`
	assert.Equal(t, want, StmtString(block))
}
