package interval

import "fmt"

// Bound is one endpoint of an interval: either unknown (infinite) or a
// polynomial.
type Bound struct {
	known bool
	poly  Poly
}

// Unknown returns an unbounded endpoint.
func Unknown() Bound { return Bound{} }

// Exact returns the endpoint p.
func Exact(p Poly) Bound { return Bound{known: true, poly: p} }

// ConstBound returns the constant endpoint c.
func ConstBound(c int64) Bound { return Exact(Const(c)) }

// Known reports whether the endpoint is finite.
func (b Bound) Known() bool { return b.known }

// Poly returns the endpoint's polynomial. It is the zero polynomial when
// the bound is unknown.
func (b Bound) Poly() Poly { return b.poly }

// Const returns the endpoint's value when it is a known constant.
func (b Bound) Const() (int64, bool) {
	if !b.known {
		return 0, false
	}
	return b.poly.IsConst()
}

// Equal reports whether two endpoints are identical.
func (b Bound) Equal(o Bound) bool {
	if b.known != o.known {
		return false
	}
	return !b.known || b.poly.Equal(o.poly)
}

func (b Bound) format(inf string) string {
	if !b.known {
		return inf
	}
	return b.poly.String()
}

// Interval is the closed range [Lo, Hi] of an integer expression.
type Interval struct {
	Lo Bound
	Hi Bound
}

// Everything returns (-inf, +inf).
func Everything() Interval { return Interval{} }

// Point returns [p, p].
func Point(p Poly) Interval { return Interval{Lo: Exact(p), Hi: Exact(p)} }

// Range returns the constant interval [lo, hi].
func Range(lo, hi int64) Interval {
	return Interval{Lo: ConstBound(lo), Hi: ConstBound(hi)}
}

// IsPoint returns the single value of an interval whose endpoints are the
// same known polynomial.
func (iv Interval) IsPoint() (Poly, bool) {
	if !iv.Lo.known || !iv.Hi.known || !iv.Lo.poly.Equal(iv.Hi.poly) {
		return Poly{}, false
	}
	return iv.Lo.poly, true
}

// IsEverything reports whether neither endpoint is known.
func (iv Interval) IsEverything() bool { return !iv.Lo.known && !iv.Hi.known }

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s]", iv.Lo.format("-inf"), iv.Hi.format("+inf"))
}

// ProvablyLE reports whether a <= b for every non-negative assignment of
// atoms. Unknown endpoints are never provably ordered.
func ProvablyLE(a, b Bound) bool {
	if !a.known || !b.known {
		return false
	}
	d, ok := b.poly.Sub(a.poly)
	return ok && d.NonNeg()
}

// ProvablyLT reports whether a < b for every non-negative assignment of
// atoms.
func ProvablyLT(a, b Bound) bool {
	return ProvablyLE(addBound(a, ConstBound(1)), b)
}

// Intersect narrows iv with a refinement r. Where the two endpoints cannot
// be ordered, the refinement wins: it is a fact established by a branch
// condition, while iv may be a loose over-approximation.
func Intersect(iv, r Interval) Interval {
	out := iv
	switch {
	case !r.Lo.known:
	case !iv.Lo.known, !ProvablyLE(r.Lo, iv.Lo):
		out.Lo = r.Lo
	}
	switch {
	case !r.Hi.known:
	case !iv.Hi.known, !ProvablyLE(iv.Hi, r.Hi):
		out.Hi = r.Hi
	}
	return out
}

// Hull returns the smallest interval covering both a and b that the engine
// can express.
func Hull(a, b Interval) Interval {
	return Interval{Lo: minBound(a.Lo, b.Lo), Hi: maxBound(a.Hi, b.Hi)}
}

func addBound(a, b Bound) Bound {
	if !a.known || !b.known {
		return Unknown()
	}
	p, ok := a.poly.Add(b.poly)
	if !ok {
		return Unknown()
	}
	return Exact(p)
}

func subBound(a, b Bound) Bound {
	if !a.known || !b.known {
		return Unknown()
	}
	p, ok := a.poly.Sub(b.poly)
	if !ok {
		return Unknown()
	}
	return Exact(p)
}

func mulBound(a, b Bound) Bound {
	if !a.known || !b.known {
		return Unknown()
	}
	p, ok := a.poly.Mul(b.poly)
	if !ok {
		return Unknown()
	}
	return Exact(p)
}

func scaleBound(a Bound, c int64) Bound {
	if c == 0 {
		return ConstBound(0)
	}
	if !a.known {
		return Unknown()
	}
	p, ok := a.poly.Scale(c)
	if !ok {
		return Unknown()
	}
	return Exact(p)
}

// minBound is a valid lower bound of both a and b, if one is expressible.
func minBound(a, b Bound) Bound {
	switch {
	case ProvablyLE(a, b):
		return a
	case ProvablyLE(b, a):
		return b
	default:
		return Unknown()
	}
}

// maxBound is a valid upper bound of both a and b, if one is expressible.
func maxBound(a, b Bound) Bound {
	switch {
	case ProvablyLE(a, b):
		return b
	case ProvablyLE(b, a):
		return a
	default:
		return Unknown()
	}
}
