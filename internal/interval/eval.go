package interval

import (
	"fmt"

	"github.com/roach88/tensorcheck/internal/ir"
)

// Eval computes a conservative interval for e under the bindings in s.
// Vector expressions (Ramp, Broadcast) yield the hull over all lanes.
func Eval(e ir.Expr, s *Scope) Interval {
	iv := eval(e, s)
	if s.HasFacts() {
		if _, isVar := e.(*ir.Var); !isVar {
			if f, ok := s.Fact(ir.ExprString(e)); ok {
				iv = Intersect(iv, f)
			}
		}
	}
	return iv
}

func eval(e ir.Expr, s *Scope) Interval {
	switch n := e.(type) {
	case *ir.IntImm:
		return Point(Const(n.Value))
	case *ir.Var:
		if b, ok := s.Lookup(n.Name); ok {
			return b.Interval
		}
		return Everything()
	case *ir.Binary:
		return evalBinary(n.Op, Eval(n.X, s), Eval(n.Y, s))
	case *ir.Ramp:
		return evalRamp(Eval(n.Base, s), Eval(n.Stride, s), n.Lanes)
	case *ir.Broadcast:
		return Eval(n.Value, s)
	case *ir.FloatImm, *ir.StringImm, *ir.Compare, *ir.And, *ir.Or, *ir.Not, *ir.Load, *ir.Call:
		// Data-dependent or non-integer: nothing to say.
		return Everything()
	default:
		return Everything()
	}
}

func evalBinary(op ir.BinaryOp, a, b Interval) Interval {
	switch op {
	case ir.OpAdd:
		return Interval{Lo: addBound(a.Lo, b.Lo), Hi: addBound(a.Hi, b.Hi)}
	case ir.OpSub:
		return Interval{Lo: subBound(a.Lo, b.Hi), Hi: subBound(a.Hi, b.Lo)}
	case ir.OpMul:
		return mul(a, b)
	case ir.OpDiv:
		return div(a, b)
	case ir.OpMod:
		return mod(a, b)
	case ir.OpMin:
		return Interval{Lo: minBound(a.Lo, b.Lo), Hi: minOfUpper(a.Hi, b.Hi)}
	case ir.OpMax:
		return Interval{Lo: maxOfLower(a.Lo, b.Lo), Hi: maxBound(a.Hi, b.Hi)}
	default:
		return Everything()
	}
}

// minOfUpper is an upper bound of min(x, y) given upper bounds of x and y.
// Either one alone is valid, so an incomparable pair still yields a bound.
func minOfUpper(a, b Bound) Bound {
	switch {
	case !a.known:
		return b
	case !b.known:
		return a
	case ProvablyLE(b, a):
		return b
	default:
		return a
	}
}

// maxOfLower is a lower bound of max(x, y) given lower bounds of x and y.
func maxOfLower(a, b Bound) Bound {
	switch {
	case !a.known:
		return b
	case !b.known:
		return a
	case ProvablyLE(a, b):
		return b
	default:
		return a
	}
}

func constPoint(iv Interval) (int64, bool) {
	p, ok := iv.IsPoint()
	if !ok {
		return 0, false
	}
	return p.IsConst()
}

func scale(iv Interval, c int64) Interval {
	if c >= 0 {
		return Interval{Lo: scaleBound(iv.Lo, c), Hi: scaleBound(iv.Hi, c)}
	}
	return Interval{Lo: scaleBound(iv.Hi, c), Hi: scaleBound(iv.Lo, c)}
}

// scaleBySigned multiplies iv by the symbolic point p, which is monotone
// when p has a provable sign.
func scaleBySigned(iv Interval, p Poly) Interval {
	pb := Exact(p)
	switch {
	case p.NonNeg():
		return Interval{Lo: mulBound(iv.Lo, pb), Hi: mulBound(iv.Hi, pb)}
	case p.NonPos():
		return Interval{Lo: mulBound(iv.Hi, pb), Hi: mulBound(iv.Lo, pb)}
	default:
		return Everything()
	}
}

func mul(a, b Interval) Interval {
	if c, ok := constPoint(b); ok {
		return scale(a, c)
	}
	if c, ok := constPoint(a); ok {
		return scale(b, c)
	}
	pa, aPoint := a.IsPoint()
	pb, bPoint := b.IsPoint()
	switch {
	case aPoint && bPoint:
		prod, ok := pa.Mul(pb)
		if !ok {
			return Everything()
		}
		return Point(prod)
	case aPoint:
		return scaleBySigned(b, pa)
	case bPoint:
		return scaleBySigned(a, pb)
	}

	zero := ConstBound(0)
	if ProvablyLE(zero, a.Lo) && ProvablyLE(zero, b.Lo) {
		return Interval{Lo: mulBound(a.Lo, b.Lo), Hi: mulBound(a.Hi, b.Hi)}
	}

	return constCorners(a, b)
}

// constCorners handles two constant intervals of arbitrary sign.
func constCorners(a, b Interval) Interval {
	alo, ok1 := a.Lo.Const()
	ahi, ok2 := a.Hi.Const()
	blo, ok3 := b.Lo.Const()
	bhi, ok4 := b.Hi.Const()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Everything()
	}
	var lo, hi int64
	for i, pair := range [][2]int64{{alo, blo}, {alo, bhi}, {ahi, blo}, {ahi, bhi}} {
		p, ok := mulInt(pair[0], pair[1])
		if !ok {
			return Everything()
		}
		if i == 0 || p < lo {
			lo = p
		}
		if i == 0 || p > hi {
			hi = p
		}
	}
	return Range(lo, hi)
}

func div(a, b Interval) Interval {
	c, ok := constPoint(b)
	if !ok {
		// x div y with 0 <= x and y >= 1 lies in [0, x].
		zero, one := ConstBound(0), ConstBound(1)
		if ProvablyLE(zero, a.Lo) && ProvablyLE(one, b.Lo) {
			return Interval{Lo: zero, Hi: a.Hi}
		}
		return Everything()
	}
	switch {
	case c > 0:
		return Interval{Lo: floorDivBound(a.Lo, c), Hi: floorDivBound(a.Hi, c)}
	case c < 0:
		lo, ok1 := a.Lo.Const()
		hi, ok2 := a.Hi.Const()
		if !ok1 || !ok2 {
			return Everything()
		}
		return Range(ir.FloorDiv(hi, c), ir.FloorDiv(lo, c))
	default:
		return Everything()
	}
}

// floorDivBound computes floor(b / c) for c > 0. Floor division is
// monotone, so it maps lower bounds to lower bounds and upper to upper.
func floorDivBound(b Bound, c int64) Bound {
	if !b.known {
		return Unknown()
	}
	if v, ok := b.poly.IsConst(); ok {
		return ConstBound(ir.FloorDiv(v, c))
	}
	if q, r, ok := b.poly.splitDivisible(c); ok {
		return addBound(Exact(q), ConstBound(ir.FloorDiv(r, c)))
	}
	if b.poly.NonNeg() {
		return Exact(Atom(fmt.Sprintf("((%s) div %d)", b.poly, c)))
	}
	return Unknown()
}

func mod(a, b Interval) Interval {
	c, ok := constPoint(b)
	if !ok {
		one := ConstBound(1)
		if ProvablyLE(one, b.Lo) && b.Hi.known {
			return Interval{Lo: ConstBound(0), Hi: subBound(b.Hi, one)}
		}
		return Everything()
	}
	switch {
	case c > 0:
		lo, ok1 := a.Lo.Const()
		hi, ok2 := a.Hi.Const()
		if ok1 && ok2 && ir.FloorDiv(lo, c) == ir.FloorDiv(hi, c) {
			return Range(ir.FloorMod(lo, c), ir.FloorMod(hi, c))
		}
		if ProvablyLE(ConstBound(0), a.Lo) && ProvablyLE(a.Hi, ConstBound(c-1)) {
			return a
		}
		return Range(0, c-1)
	case c < 0:
		return Range(c+1, 0)
	default:
		return Everything()
	}
}

func evalRamp(base, stride Interval, lanes int) Interval {
	if lanes <= 1 {
		return base
	}
	p, ok := stride.IsPoint()
	if !ok {
		return Everything()
	}
	span, ok := p.Scale(int64(lanes - 1))
	if !ok {
		return Everything()
	}
	sb := Exact(span)
	switch {
	case span.NonNeg():
		return Interval{Lo: base.Lo, Hi: addBound(base.Hi, sb)}
	case span.NonPos():
		return Interval{Lo: addBound(base.Lo, sb), Hi: base.Hi}
	default:
		return Everything()
	}
}
