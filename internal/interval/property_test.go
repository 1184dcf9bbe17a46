package interval

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/roach88/tensorcheck/internal/ir"
)

// concrete evaluates e with the IR's integer semantics. ok is false for
// division by zero and for node kinds with no integer value.
func concrete(e ir.Expr, env map[string]int64) (int64, bool) {
	switch n := e.(type) {
	case *ir.IntImm:
		return n.Value, true
	case *ir.Var:
		v, ok := env[n.Name]
		return v, ok
	case *ir.Binary:
		x, ok := concrete(n.X, env)
		if !ok {
			return 0, false
		}
		y, ok := concrete(n.Y, env)
		if !ok {
			return 0, false
		}
		switch n.Op {
		case ir.OpAdd:
			return x + y, true
		case ir.OpSub:
			return x - y, true
		case ir.OpMul:
			return x * y, true
		case ir.OpDiv:
			if y == 0 {
				return 0, false
			}
			return ir.FloorDiv(x, y), true
		case ir.OpMod:
			if y == 0 {
				return 0, false
			}
			return ir.FloorMod(x, y), true
		case ir.OpMin:
			return min(x, y), true
		case ir.OpMax:
			return max(x, y), true
		}
	}
	return 0, false
}

func genExpr(t *rapid.T, vars []string, depth int) ir.Expr {
	if depth == 0 || rapid.IntRange(0, 3).Draw(t, "leaf") == 0 {
		if rapid.Bool().Draw(t, "isVar") {
			return ir.V(rapid.SampledFrom(vars).Draw(t, "var"))
		}
		return ir.Int(rapid.Int64Range(-20, 20).Draw(t, "const"))
	}
	op := rapid.SampledFrom(ir.BinaryOps).Draw(t, "op")
	return &ir.Binary{Op: op, X: genExpr(t, vars, depth-1), Y: genExpr(t, vars, depth-1)}
}

// contains checks v against the interval after substituting atoms.
// Endpoints that mention atoms missing from atoms are skipped.
func contains(iv Interval, v int64, atoms map[string]int64) bool {
	if iv.Lo.Known() {
		if lo, ok := iv.Lo.Poly().Eval(atoms); ok && v < lo {
			return false
		}
	}
	if iv.Hi.Known() {
		if hi, ok := iv.Hi.Poly().Eval(atoms); ok && v > hi {
			return false
		}
	}
	return true
}

func TestEvalSoundOverConstantRanges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vars := []string{"x", "y", "z"}
		s := NewScope()
		env := make(map[string]int64)
		for _, name := range vars {
			lo := rapid.Int64Range(-30, 30).Draw(t, name+"_lo")
			width := rapid.Int64Range(0, 30).Draw(t, name+"_width")
			s = s.BindLoop(name, Range(lo, lo+width))
			env[name] = lo + rapid.Int64Range(0, width).Draw(t, name+"_val")
		}

		e := genExpr(t, vars, 4)
		v, ok := concrete(e, env)
		if !ok {
			return
		}
		iv := Eval(e, s)
		if !contains(iv, v, nil) {
			t.Fatalf("%s = %d under %v escapes %s", ir.ExprString(e), v, env, iv)
		}
	})
}

func TestEvalSoundOverSymbolicExtent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nv := rapid.Int64Range(1, 64).Draw(t, "n")
		nm1, _ := Atom("n").Add(Const(-1))
		s := NewScope().BindParam("n").BindLoop("i", Interval{Lo: ConstBound(0), Hi: Exact(nm1)})
		env := map[string]int64{
			"n": nv,
			"i": rapid.Int64Range(0, nv-1).Draw(t, "i"),
		}

		e := genExpr(t, []string{"i", "n"}, 3)
		v, ok := concrete(e, env)
		if !ok {
			return
		}
		iv := Eval(e, s)
		if !contains(iv, v, map[string]int64{"n": nv}) {
			t.Fatalf("%s = %d under %v escapes %s", ir.ExprString(e), v, env, iv)
		}
	})
}

func TestTightBoundsAreAttained(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		extents := map[string]int64{
			"a": rapid.Int64Range(1, 6).Draw(t, "a_extent"),
			"b": rapid.Int64Range(1, 6).Draw(t, "b_extent"),
		}
		s := NewScope().BindLoop("a", Range(0, extents["a"]-1)).BindLoop("b", Range(0, extents["b"]-1))

		e := ir.Expr(ir.Int(rapid.Int64Range(-5, 5).Draw(t, "offset")))
		for _, name := range []string{"a", "b"} {
			if rapid.Bool().Draw(t, "use_"+name) {
				coeff := rapid.Int64Range(-4, 4).Draw(t, "coeff_"+name)
				e = ir.Add(e, ir.Mul(ir.V(name), ir.Int(coeff)))
			}
		}
		if !Tight(e, s) {
			t.Fatalf("affine %s should be tight", ir.ExprString(e))
		}

		iv := Eval(e, s)
		lo, _ := iv.Lo.Const()
		hi, _ := iv.Hi.Const()
		seenLo, seenHi := false, false
		for a := int64(0); a < extents["a"]; a++ {
			for b := int64(0); b < extents["b"]; b++ {
				v, _ := concrete(e, map[string]int64{"a": a, "b": b})
				seenLo = seenLo || v == lo
				seenHi = seenHi || v == hi
			}
		}
		if !seenLo || !seenHi {
			t.Fatalf("%s: bounds %s not attained", ir.ExprString(e), iv)
		}
	})
}

func holdsConcrete(op ir.CompareOp, x, y int64) bool {
	switch op {
	case ir.CmpLT:
		return x < y
	case ir.CmpLE:
		return x <= y
	case ir.CmpGT:
		return x > y
	case ir.CmpGE:
		return x >= y
	case ir.CmpEQ:
		return x == y
	default:
		return x != y
	}
}

func TestEvalSoundUnderAssume(t *testing.T) {
	ops := []ir.CompareOp{ir.CmpLT, ir.CmpLE, ir.CmpGT, ir.CmpGE, ir.CmpEQ, ir.CmpNE}
	rapid.Check(t, func(t *rapid.T) {
		vars := []string{"x", "y", "z"}
		s := NewScope()
		env := make(map[string]int64)
		for _, name := range vars {
			lo := rapid.Int64Range(-30, 30).Draw(t, name+"_lo")
			width := rapid.Int64Range(0, 30).Draw(t, name+"_width")
			s = s.BindLoop(name, Range(lo, lo+width))
			env[name] = lo + rapid.Int64Range(0, width).Draw(t, name+"_val")
		}

		lhs, rhs := genExpr(t, vars, 2), genExpr(t, vars, 2)
		op := rapid.SampledFrom(ops).Draw(t, "cmp")
		x, okX := concrete(lhs, env)
		y, okY := concrete(rhs, env)
		if !okX || !okY {
			return
		}
		s = Assume(s, &ir.Compare{Op: op, X: lhs, Y: rhs}, holdsConcrete(op, x, y))

		// A later binding of the same name must not inherit facts about
		// the earlier one.
		if rapid.Bool().Draw(t, "rebind") {
			name := rapid.SampledFrom(vars).Draw(t, "rebound")
			lo := rapid.Int64Range(-30, 30).Draw(t, "rebound_lo")
			width := rapid.Int64Range(0, 30).Draw(t, "rebound_width")
			s = s.BindLoop(name, Range(lo, lo+width))
			env[name] = lo + rapid.Int64Range(0, width).Draw(t, "rebound_val")
		}

		for _, e := range []ir.Expr{lhs, rhs, genExpr(t, vars, 3)} {
			v, ok := concrete(e, env)
			if !ok {
				continue
			}
			if iv := Eval(e, s); !contains(iv, v, nil) {
				t.Fatalf("%s = %d under %v escapes %s", ir.ExprString(e), v, env, iv)
			}
		}
	})
}
