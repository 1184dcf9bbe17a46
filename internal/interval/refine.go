package interval

import "github.com/roach88/tensorcheck/internal/ir"

// Constrain returns the set of values x satisfying `x op y` for some y in
// rhs. ok is false when the relation says nothing useful (!=, or an
// unbounded right-hand side).
func Constrain(op ir.CompareOp, rhs Interval) (Interval, bool) {
	var out Interval
	switch op {
	case ir.CmpLT:
		out = Interval{Lo: Unknown(), Hi: subBound(rhs.Hi, ConstBound(1))}
	case ir.CmpLE:
		out = Interval{Lo: Unknown(), Hi: rhs.Hi}
	case ir.CmpGT:
		out = Interval{Lo: addBound(rhs.Lo, ConstBound(1)), Hi: Unknown()}
	case ir.CmpGE:
		out = Interval{Lo: rhs.Lo, Hi: Unknown()}
	case ir.CmpEQ:
		out = rhs
	default:
		return Everything(), false
	}
	return out, !out.IsEverything()
}

// Mirror returns the operator with its operands swapped: y op' x holds
// exactly when x op y does.
func Mirror(op ir.CompareOp) ir.CompareOp {
	switch op {
	case ir.CmpLT:
		return ir.CmpGT
	case ir.CmpLE:
		return ir.CmpGE
	case ir.CmpGT:
		return ir.CmpLT
	case ir.CmpGE:
		return ir.CmpLE
	default:
		return op
	}
}

// Assume returns s extended with what holds when cond evaluates to holds.
// Comparisons against a variable narrow that variable; comparisons of a
// compound expression are recorded as facts about that expression, unless
// it reads memory.
// Conjunctions are split when true, disjunctions when false.
func Assume(s *Scope, cond ir.Expr, holds bool) *Scope {
	switch n := cond.(type) {
	case *ir.Compare:
		op := n.Op
		if !holds {
			op = op.Negate()
		}
		s = assumeSide(s, n.X, op, n.Y)
		return assumeSide(s, n.Y, Mirror(op), n.X)
	case *ir.And:
		if holds {
			return Assume(Assume(s, n.X, true), n.Y, true)
		}
	case *ir.Or:
		if !holds {
			return Assume(Assume(s, n.X, false), n.Y, false)
		}
	case *ir.Not:
		return Assume(s, n.X, !holds)
	case *ir.Call:
		// likely(c) is a codegen hint with c's truth value.
		if n.Name == "likely" && len(n.Args) == 1 {
			return Assume(s, n.Args[0], holds)
		}
	}
	return s
}

func assumeSide(s *Scope, lhs ir.Expr, op ir.CompareOp, rhs ir.Expr) *Scope {
	r, ok := Constrain(op, Eval(rhs, s))
	if !ok {
		return s
	}
	switch l := lhs.(type) {
	case *ir.Var:
		return s.Refine(l.Name, r)
	case *ir.IntImm:
		return s
	default:
		return s.AddFact(lhs, r)
	}
}
