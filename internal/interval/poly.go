package interval

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// atomSep joins atom names inside a monomial key. It cannot occur in an
// identifier or a printed expression.
const atomSep = "\x00"

// Poly is an immutable polynomial over non-negative atoms.
// The zero value is the constant 0.
type Poly struct {
	terms map[string]int64 // monomial key -> coefficient; "" is the constant term
}

// Const returns the constant polynomial c.
func Const(c int64) Poly {
	if c == 0 {
		return Poly{}
	}
	return Poly{terms: map[string]int64{"": c}}
}

// Atom returns the polynomial consisting of the single non-negative atom
// name.
func Atom(name string) Poly {
	return Poly{terms: map[string]int64{name: 1}}
}

// IsConst returns the constant value when p has no atoms.
func (p Poly) IsConst() (int64, bool) {
	for k := range p.terms {
		if k != "" {
			return 0, false
		}
	}
	return p.terms[""], true
}

// Equal reports whether p and q are the same polynomial.
func (p Poly) Equal(q Poly) bool {
	if len(p.terms) != len(q.terms) {
		return false
	}
	for k, c := range p.terms {
		if q.terms[k] != c {
			return false
		}
	}
	return true
}

// NonNeg reports whether p >= 0 for every non-negative assignment of its
// atoms. It is sound but incomplete: mixed-sign coefficients report false.
func (p Poly) NonNeg() bool {
	for _, c := range p.terms {
		if c < 0 {
			return false
		}
	}
	return true
}

// NonPos reports whether p <= 0 for every non-negative assignment of its
// atoms.
func (p Poly) NonPos() bool {
	for _, c := range p.terms {
		if c > 0 {
			return false
		}
	}
	return true
}

// Add returns p + q. ok is false on int64 overflow.
func (p Poly) Add(q Poly) (Poly, bool) {
	out := make(map[string]int64, len(p.terms)+len(q.terms))
	for k, c := range p.terms {
		out[k] = c
	}
	for k, c := range q.terms {
		sum, ok := addInt(out[k], c)
		if !ok {
			return Poly{}, false
		}
		out[k] = sum
	}
	return normalize(out), true
}

// Neg returns -p.
func (p Poly) Neg() (Poly, bool) {
	return p.Scale(-1)
}

// Sub returns p - q.
func (p Poly) Sub(q Poly) (Poly, bool) {
	nq, ok := q.Neg()
	if !ok {
		return Poly{}, false
	}
	return p.Add(nq)
}

// Scale returns c * p.
func (p Poly) Scale(c int64) (Poly, bool) {
	out := make(map[string]int64, len(p.terms))
	for k, v := range p.terms {
		prod, ok := mulInt(v, c)
		if !ok {
			return Poly{}, false
		}
		out[k] = prod
	}
	return normalize(out), true
}

// Mul returns p * q.
func (p Poly) Mul(q Poly) (Poly, bool) {
	out := make(map[string]int64)
	for kp, cp := range p.terms {
		for kq, cq := range q.terms {
			prod, ok := mulInt(cp, cq)
			if !ok {
				return Poly{}, false
			}
			k := mergeMonomials(kp, kq)
			sum, ok := addInt(out[k], prod)
			if !ok {
				return Poly{}, false
			}
			out[k] = sum
		}
	}
	return normalize(out), true
}

// splitDivisible returns (q, r) with p = c*q + r when every non-constant
// coefficient of p is divisible by c. Then floor(p / c) = q + floor(r / c).
func (p Poly) splitDivisible(c int64) (Poly, int64, bool) {
	out := make(map[string]int64, len(p.terms))
	for k, v := range p.terms {
		if k == "" {
			continue
		}
		if v%c != 0 {
			return Poly{}, 0, false
		}
		out[k] = v / c
	}
	return normalize(out), p.terms[""], true
}

// Eval substitutes values for atoms. ok is false if an atom is missing from
// env or the arithmetic overflows.
func (p Poly) Eval(env map[string]int64) (int64, bool) {
	var total int64
	for k, c := range p.terms {
		term := c
		if k != "" {
			for _, atom := range strings.Split(k, atomSep) {
				v, found := env[atom]
				if !found {
					return 0, false
				}
				var ok bool
				if term, ok = mulInt(term, v); !ok {
					return 0, false
				}
			}
		}
		var ok bool
		if total, ok = addInt(total, term); !ok {
			return 0, false
		}
	}
	return total, true
}

// String renders p deterministically: monomials by descending degree, then
// by name, and the constant last, e.g. "8*((n + 7) div 8) - 1".
func (p Poly) String() string {
	keys := make([]string, 0, len(p.terms))
	for k := range p.terms {
		if k != "" {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		// Higher degree first, then lexical.
		if da, db := strings.Count(a, atomSep), strings.Count(b, atomSep); da != db {
			return db - da
		}
		return strings.Compare(a, b)
	})

	var parts []string
	for _, k := range keys {
		c := p.terms[k]
		atoms := strings.ReplaceAll(k, atomSep, "*")
		switch c {
		case 1:
			parts = append(parts, atoms)
		case -1:
			parts = append(parts, "-"+atoms)
		default:
			parts = append(parts, fmt.Sprintf("%d*%s", c, atoms))
		}
	}
	if c := p.terms[""]; c != 0 || len(parts) == 0 {
		parts = append(parts, strconv.FormatInt(c, 10))
	}

	var sb strings.Builder
	for i, part := range parts {
		switch {
		case i == 0:
			sb.WriteString(part)
		case strings.HasPrefix(part, "-"):
			sb.WriteString(" - ")
			sb.WriteString(part[1:])
		default:
			sb.WriteString(" + ")
			sb.WriteString(part)
		}
	}
	return sb.String()
}

func normalize(terms map[string]int64) Poly {
	for k, c := range terms {
		if c == 0 {
			delete(terms, k)
		}
	}
	if len(terms) == 0 {
		return Poly{}
	}
	return Poly{terms: terms}
}

func mergeMonomials(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	atoms := append(strings.Split(a, atomSep), strings.Split(b, atomSep)...)
	slices.Sort(atoms)
	return strings.Join(atoms, atomSep)
}

func addInt(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}
