package interval

import (
	"slices"
	"strings"

	"github.com/roach88/tensorcheck/internal/ir"
)

// Binding is what a scope knows about one variable.
type Binding struct {
	Interval Interval

	// Tight means both endpoints are attained by some assignment of the
	// loop variables in Deps. Ranges narrowed by a branch condition are
	// not tight.
	Tight bool

	// Deps are the loop variables the value is a function of. A loop
	// variable depends on itself, a parameter on nothing.
	Deps []string
}

// Scope is a persistent, strictly nested chain of variable bindings and
// branch facts. Binding returns a new scope and leaves the receiver
// unchanged, so a scope captured for a site stays valid while the walker
// continues. The nil *Scope is the empty scope.
type Scope struct {
	parent *Scope
	name   string
	kind   entryKind
	b      Binding
	facts  int
}

type entryKind int

const (
	entryBind   entryKind = iota // new variable, shadows outer ones
	entryNarrow                  // same variable, smaller range
	entryFact                    // range of a compound expression
)

// NewScope returns the empty scope.
func NewScope() *Scope { return nil }

func (s *Scope) push(name string, kind entryKind, b Binding) *Scope {
	n := &Scope{parent: s, name: name, kind: kind, b: b, facts: s.factCount()}
	if kind == entryFact {
		n.facts++
	}
	return n
}

func (s *Scope) factCount() int {
	if s == nil {
		return 0
	}
	return s.facts
}

// Bind returns a scope in which name has binding b, shadowing any outer
// binding of the same name.
func (s *Scope) Bind(name string, b Binding) *Scope {
	return s.push(name, entryBind, b)
}

// BindParam registers a non-negative size parameter as the atom name.
func (s *Scope) BindParam(name string) *Scope {
	return s.Bind(name, Binding{Interval: Point(Atom(name)), Tight: true})
}

// BindScalar registers a scalar parameter with no known range.
func (s *Scope) BindScalar(name string) *Scope {
	return s.Bind(name, Binding{Interval: Everything()})
}

// BindLoop registers a loop variable ranging over iv.
func (s *Scope) BindLoop(name string, iv Interval) *Scope {
	return s.Bind(name, Binding{Interval: iv, Tight: true, Deps: []string{name}})
}

// Refine narrows the binding of name with r. The result is no longer
// tight. Unbound names and single-valued bindings (parameters) are left
// alone.
func (s *Scope) Refine(name string, r Interval) *Scope {
	b, ok := s.Lookup(name)
	if !ok {
		return s
	}
	if _, point := b.Interval.IsPoint(); point {
		return s
	}
	return s.push(name, entryNarrow, Binding{Interval: Intersect(b.Interval, r), Deps: b.Deps})
}

// AddFact records that e lies within r. Evaluation intersects the computed
// interval of any structurally equal expression with r, until one of e's
// variables is bound again. Expressions reading memory or calling out are
// not recorded: a store may change their value before the next use.
func (s *Scope) AddFact(e ir.Expr, r Interval) *Scope {
	if !stable(e) {
		return s
	}
	key := ir.ExprString(e)
	if prev, ok := s.Fact(key); ok {
		r = Intersect(prev, r)
	}
	return s.push(key, entryFact, Binding{Interval: r, Deps: ir.FreeVars(e)})
}

// stable reports whether e is a pure function of its variables.
func stable(e ir.Expr) bool {
	pure := true
	ir.VisitExpr(e, func(n ir.Expr) {
		switch n.(type) {
		case *ir.Load, *ir.Call:
			pure = false
		}
	})
	return pure
}

// Lookup returns the innermost binding of name.
func (s *Scope) Lookup(name string) (Binding, bool) {
	for c := s; c != nil; c = c.parent {
		if c.kind != entryFact && c.name == name {
			return c.b, true
		}
	}
	return Binding{}, false
}

// Fact returns the innermost fact recorded for key. A fact stops applying
// once a variable it mentions is bound again.
func (s *Scope) Fact(key string) (Interval, bool) {
	if s.factCount() == 0 {
		return Interval{}, false
	}
	var rebound []string
	for c := s; c != nil; c = c.parent {
		switch c.kind {
		case entryBind:
			rebound = append(rebound, c.name)
		case entryFact:
			if c.name != key {
				continue
			}
			for _, d := range c.b.Deps {
				if slices.Contains(rebound, d) {
					return Interval{}, false
				}
			}
			return c.b.Interval, true
		}
	}
	return Interval{}, false
}

// HasFacts reports whether any branch fact is in scope.
func (s *Scope) HasFacts() bool { return s.factCount() > 0 }

// Names returns the visible variable names, sorted.
func (s *Scope) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for c := s; c != nil; c = c.parent {
		if c.kind == entryFact || seen[c.name] {
			continue
		}
		seen[c.name] = true
		names = append(names, c.name)
	}
	slices.Sort(names)
	return names
}

// String renders the visible bindings, e.g. "{i: [0, n - 1], n: [n, n]}".
func (s *Scope) String() string {
	names := s.Names()
	parts := make([]string, len(names))
	for i, name := range names {
		b, _ := s.Lookup(name)
		parts[i] = name + ": " + b.Interval.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
