package ir

import (
	"slices"
)

// FreeVars returns the variable names referenced by e, sorted and
// deduplicated.
func FreeVars(e Expr) []string {
	var names []string
	VisitExpr(e, func(n Expr) {
		if v, ok := n.(*Var); ok {
			names = append(names, v.Name)
		}
	})
	slices.Sort(names)
	return slices.Compact(names)
}

// VisitExpr calls fn for e and every sub-expression, children first.
func VisitExpr(e Expr, fn func(Expr)) {
	switch n := e.(type) {
	case nil:
		return
	case *Binary:
		VisitExpr(n.X, fn)
		VisitExpr(n.Y, fn)
	case *Compare:
		VisitExpr(n.X, fn)
		VisitExpr(n.Y, fn)
	case *And:
		VisitExpr(n.X, fn)
		VisitExpr(n.Y, fn)
	case *Or:
		VisitExpr(n.X, fn)
		VisitExpr(n.Y, fn)
	case *Not:
		VisitExpr(n.X, fn)
	case *Ramp:
		VisitExpr(n.Base, fn)
		VisitExpr(n.Stride, fn)
	case *Broadcast:
		VisitExpr(n.Value, fn)
	case *Load:
		for _, idx := range n.Indices {
			VisitExpr(idx, fn)
		}
	case *Call:
		for _, a := range n.Args {
			VisitExpr(a, fn)
		}
	}
	fn(e)
}

// MapExpr rebuilds e bottom-up, replacing every node by fn(node).
// Nodes whose children and replacement are unchanged are returned as-is,
// so untouched subtrees stay shared with the input.
func MapExpr(e Expr, fn func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	return fn(rebuild(e, func(c Expr) Expr { return MapExpr(c, fn) }))
}

// Substitute rebuilds e top-down. Where fn reports a replacement, the
// replacement is used as-is and its subtree is not visited.
func Substitute(e Expr, fn func(Expr) (Expr, bool)) Expr {
	if e == nil {
		return nil
	}
	if r, ok := fn(e); ok {
		return r
	}
	return rebuild(e, func(c Expr) Expr { return Substitute(c, fn) })
}

// rebuild applies child to each direct operand of e and returns a copy of
// e only if an operand changed.
func rebuild(e Expr, child func(Expr) Expr) Expr {
	switch n := e.(type) {
	case *Binary:
		x, y := child(n.X), child(n.Y)
		if x != n.X || y != n.Y {
			return &Binary{Op: n.Op, X: x, Y: y}
		}
	case *Compare:
		x, y := child(n.X), child(n.Y)
		if x != n.X || y != n.Y {
			return &Compare{Op: n.Op, X: x, Y: y}
		}
	case *And:
		x, y := child(n.X), child(n.Y)
		if x != n.X || y != n.Y {
			return &And{X: x, Y: y}
		}
	case *Or:
		x, y := child(n.X), child(n.Y)
		if x != n.X || y != n.Y {
			return &Or{X: x, Y: y}
		}
	case *Not:
		if x := child(n.X); x != n.X {
			return &Not{X: x}
		}
	case *Ramp:
		base, stride := child(n.Base), child(n.Stride)
		if base != n.Base || stride != n.Stride {
			return &Ramp{Base: base, Stride: stride, Lanes: n.Lanes}
		}
	case *Broadcast:
		if v := child(n.Value); v != n.Value {
			return &Broadcast{Value: v, Lanes: n.Lanes}
		}
	case *Load:
		if indices, changed := mapExprs(n.Indices, child); changed {
			return &Load{Buffer: n.Buffer, Indices: indices, Checked: n.Checked}
		}
	case *Call:
		if args, changed := mapExprs(n.Args, child); changed {
			return &Call{Name: n.Name, Args: args}
		}
	}
	return e
}

func mapExprs(es []Expr, child func(Expr) Expr) ([]Expr, bool) {
	out := make([]Expr, len(es))
	changed := false
	for i, e := range es {
		out[i] = child(e)
		if out[i] != e {
			changed = true
		}
	}
	return out, changed
}

// CollectNames returns every variable name bound or referenced anywhere in
// s. Passes use it to pick fresh names.
func CollectNames(s Stmt) map[string]bool {
	names := make(map[string]bool)
	addExpr := func(e Expr) {
		for _, v := range FreeVars(e) {
			names[v] = true
		}
	}
	VisitStmt(s, func(st Stmt) {
		switch n := st.(type) {
		case *For:
			names[n.Var] = true
			addExpr(n.Min)
			addExpr(n.Extent)
		case *LetStmt:
			names[n.Var] = true
			addExpr(n.Value)
		case *IfThenElse:
			addExpr(n.Cond)
		case *Store:
			for _, idx := range n.Indices {
				addExpr(idx)
			}
			addExpr(n.Value)
		case *Evaluate:
			addExpr(n.Value)
		case *Assert:
			addExpr(n.Cond)
		case *Allocate:
			for _, d := range n.Buffer.Shape {
				addExpr(d)
			}
		}
	})
	return names
}

// VisitStmt calls fn for s and every nested statement, parents first.
func VisitStmt(s Stmt, fn func(Stmt)) {
	if s == nil {
		return
	}
	fn(s)
	switch n := s.(type) {
	case *For:
		VisitStmt(n.Body, fn)
	case *LetStmt:
		VisitStmt(n.Body, fn)
	case *IfThenElse:
		VisitStmt(n.Then, fn)
		VisitStmt(n.Else, fn)
	case *Block:
		for _, st := range n.Stmts {
			VisitStmt(st, fn)
		}
	case *Allocate:
		VisitStmt(n.Body, fn)
	case *ProducerConsumer:
		VisitStmt(n.Body, fn)
	case *Assert:
		VisitStmt(n.Body, fn)
	}
}
