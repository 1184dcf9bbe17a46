package interval

import "github.com/roach88/tensorcheck/internal/ir"

// Tight reports whether both endpoints of Eval(e, s) are attained by some
// assignment of the loop variables in scope, assuming every enclosing loop
// runs at least once.
//
// This holds for affine combinations in which each underlying loop
// variable occurs at most once: each term can then reach its own extreme
// independently. Anything else (div, mod, min, max, reused variables,
// branch-narrowed ranges) is treated as possibly loose.
func Tight(e ir.Expr, s *Scope) bool {
	_, ok := tightDeps(e, s, make(map[string]bool))
	return ok
}

// tightDeps returns whether e is tight and whether it used any loop
// variable. seen accumulates the loop variables consumed so far.
func tightDeps(e ir.Expr, s *Scope, seen map[string]bool) (usesLoop bool, ok bool) {
	if s.HasFacts() {
		if _, isVar := e.(*ir.Var); !isVar {
			if _, narrowed := s.Fact(ir.ExprString(e)); narrowed {
				return false, false
			}
		}
	}
	switch n := e.(type) {
	case *ir.IntImm:
		return false, true
	case *ir.Var:
		b, found := s.Lookup(n.Name)
		if !found || !b.Tight {
			return false, false
		}
		for _, d := range b.Deps {
			if seen[d] {
				return false, false
			}
			seen[d] = true
		}
		return len(b.Deps) > 0, true
	case *ir.Binary:
		switch n.Op {
		case ir.OpAdd, ir.OpSub:
			ux, okx := tightDeps(n.X, s, seen)
			uy, oky := tightDeps(n.Y, s, seen)
			return ux || uy, okx && oky
		case ir.OpMul:
			// One factor must be loop-invariant with a single value.
			if invariantPoint(n.X, s) {
				return tightDeps(n.Y, s, seen)
			}
			if invariantPoint(n.Y, s) {
				return tightDeps(n.X, s, seen)
			}
			return false, false
		default:
			return false, false
		}
	case *ir.Ramp:
		if !invariantPoint(n.Stride, s) {
			return false, false
		}
		u, ok := tightDeps(n.Base, s, seen)
		return u || n.Lanes > 1, ok
	case *ir.Broadcast:
		return tightDeps(n.Value, s, seen)
	default:
		return false, false
	}
}

// invariantPoint reports whether e has a single symbolic value that does
// not depend on any loop variable.
func invariantPoint(e ir.Expr, s *Scope) bool {
	if _, ok := Eval(e, s).IsPoint(); !ok {
		return false
	}
	used, ok := tightDeps(e, s, make(map[string]bool))
	return ok && !used
}
