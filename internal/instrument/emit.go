package instrument

import (
	"fmt"
	"strings"

	"github.com/roach88/tensorcheck/internal/check"
	"github.com/roach88/tensorcheck/internal/ir"
	"github.com/roach88/tensorcheck/internal/walker"
)

// emitter rebuilds the statement tree, wrapping every planned unit in its
// guards.
type emitter struct {
	plans map[ir.Stmt][]check.Decision
	names map[string]bool

	guards   int
	bindings int
}

func newEmitter(root ir.Stmt) *emitter {
	return &emitter{
		plans: make(map[ir.Stmt][]check.Decision),
		names: ir.CollectNames(root),
	}
}

// fresh returns a variable name not used anywhere in the tree.
func (e *emitter) fresh(base string) string {
	name := base
	for k := 1; e.names[name]; k++ {
		name = fmt.Sprintf("%s_%d", base, k)
	}
	e.names[name] = true
	return name
}

func (e *emitter) stmt(s ir.Stmt) ir.Stmt {
	out := e.children(s)
	if decs, ok := e.plans[s]; ok {
		out = e.guard(out, decs)
	}
	return out
}

// children rebuilds the nested statements of s, copying s only when one
// of them changed.
func (e *emitter) children(s ir.Stmt) ir.Stmt {
	switch n := s.(type) {
	case *ir.For:
		if body := e.stmt(n.Body); body != n.Body {
			c := *n
			c.Body = body
			return &c
		}
	case *ir.LetStmt:
		if body := e.stmt(n.Body); body != n.Body {
			c := *n
			c.Body = body
			return &c
		}
	case *ir.IfThenElse:
		then, otherwise := e.stmt(n.Then), e.stmt(n.Else)
		if then != n.Then || otherwise != n.Else {
			c := *n
			c.Then, c.Else = then, otherwise
			return &c
		}
	case *ir.Block:
		stmts := make([]ir.Stmt, len(n.Stmts))
		changed := false
		for i, st := range n.Stmts {
			stmts[i] = e.stmt(st)
			changed = changed || stmts[i] != st
		}
		if changed {
			return &ir.Block{Stmts: stmts}
		}
	case *ir.Allocate:
		if body := e.stmt(n.Body); body != n.Body {
			c := *n
			c.Body = body
			return &c
		}
	case *ir.ProducerConsumer:
		if body := e.stmt(n.Body); body != n.Body {
			c := *n
			c.Body = body
			return &c
		}
	case *ir.Assert:
		if body := e.stmt(n.Body); body != n.Body {
			c := *n
			c.Body = body
			return &c
		}
	}
	return s
}

// layer is one wrapper around a guarded unit: a let binding or an assert.
type layer func(body ir.Stmt) ir.Stmt

// guard wraps unit in the guards for decs. decs are in walk order, so an
// access nested in another's index is guarded first and its rewritten form
// is what the outer access's guard evaluates.
func (e *emitter) guard(unit ir.Stmt, decs []check.Decision) ir.Stmt {
	rewritten := make(map[*ir.Load]ir.Expr)
	sub := func(x ir.Expr) ir.Expr {
		return ir.Substitute(x, func(n ir.Expr) (ir.Expr, bool) {
			ld, ok := n.(*ir.Load)
			if !ok {
				return nil, false
			}
			r, ok := rewritten[ld]
			return r, ok
		})
	}

	var layers []layer
	var storeIndices []ir.Expr
	for _, dec := range decs {
		a := dec.Access
		indices := make([]ir.Expr, len(a.Indices))
		var conds []ir.Expr
		for d, idx := range a.Indices {
			idx = sub(idx)
			dim := dec.Dims[d]
			if dim.LowerProven && dim.UpperProven {
				indices[d] = idx
				continue
			}
			g, lets := e.bindIndex(idx, a, d)
			layers = append(layers, lets...)
			indices[d] = g.index
			if !dim.LowerProven {
				conds = append(conds, ir.LE(ir.Int(0), g.first))
			}
			if !dim.UpperProven {
				conds = append(conds, ir.LT(g.last, a.Buffer.Shape[d]))
			}
		}

		assert := &ir.Assert{
			Kind:    ir.AssertBounds,
			Cond:    ir.Conjoin(conds...),
			Message: message(a),
			Buffer:  a.Buffer.Name,
		}
		layers = append(layers, func(body ir.Stmt) ir.Stmt {
			c := *assert
			c.Body = body
			return &c
		})
		e.guards++

		switch a.Kind {
		case walker.Read:
			rewritten[a.Load] = &ir.Load{Buffer: a.Buffer, Indices: indices, Checked: true}
		case walker.Write:
			storeIndices = indices
		}
	}

	out := rewriteUnit(unit, sub, storeIndices)
	for i := len(layers) - 1; i >= 0; i-- {
		out = layers[i](out)
	}
	return out
}

type guardIndex struct {
	index       ir.Expr // replaces the original index in the access
	first, last ir.Expr // lowest and highest lane, or the index itself
}

// bindIndex binds a non-trivial index to a fresh variable so it is
// evaluated once. For a constant-stride ramp only the base is bound and the
// guard tests its extreme lanes.
func (e *emitter) bindIndex(idx ir.Expr, a *walker.Access, dim int) (guardIndex, []layer) {
	var lets []layer
	bind := func(value ir.Expr) ir.Expr {
		if ir.IsTrivial(value) {
			return value
		}
		name := e.fresh(fmt.Sprintf("%s_idx%d", a.Buffer.Name, dim))
		lets = append(lets, func(body ir.Stmt) ir.Stmt {
			return &ir.LetStmt{Var: name, Value: value, Body: body}
		})
		e.bindings++
		return ir.V(name)
	}

	if r, ok := idx.(*ir.Ramp); ok {
		if _, _, ok := walker.Endpoints(r, a.Scope); ok {
			ramp := r
			if base := bind(r.Base); base != r.Base {
				ramp = &ir.Ramp{Base: base, Stride: r.Stride, Lanes: r.Lanes}
			}
			first, last, _ := walker.Endpoints(ramp, a.Scope)
			return guardIndex{index: ramp, first: first, last: last}, lets
		}
	}

	bound := bind(idx)
	first, last, ok := walker.Endpoints(bound, a.Scope)
	if !ok {
		// Compared lane-wise; the assert holds only if every lane does.
		first, last = bound, bound
	}
	return guardIndex{index: bound, first: first, last: last}, lets
}

// rewriteUnit applies sub to the expressions the unit itself evaluates.
// storeIndices, when set, replaces the indices of a guarded store.
func rewriteUnit(unit ir.Stmt, sub func(ir.Expr) ir.Expr, storeIndices []ir.Expr) ir.Stmt {
	switch n := unit.(type) {
	case *ir.Store:
		c := *n
		if storeIndices != nil {
			c.Indices = storeIndices
			c.Checked = true
		} else {
			c.Indices = make([]ir.Expr, len(n.Indices))
			for i, idx := range n.Indices {
				c.Indices[i] = sub(idx)
			}
		}
		c.Value = sub(n.Value)
		return &c
	case *ir.Evaluate:
		return &ir.Evaluate{Value: sub(n.Value)}
	case *ir.LetStmt:
		c := *n
		c.Value = sub(n.Value)
		return &c
	case *ir.IfThenElse:
		c := *n
		c.Cond = sub(n.Cond)
		return &c
	case *ir.Assert:
		c := *n
		c.Cond = sub(n.Cond)
		return &c
	case *ir.For:
		c := *n
		c.Min = sub(n.Min)
		c.Extent = sub(n.Extent)
		return &c
	default:
		return unit
	}
}

func message(a *walker.Access) string {
	target := ir.ExprString(&ir.Load{Buffer: a.Buffer, Indices: a.Indices})
	dims := make([]string, len(a.Buffer.Shape))
	for i, d := range a.Buffer.Shape {
		dims[i] = ir.ExprString(d)
	}
	return fmt.Sprintf("out of bounds: %s %s with shape [%s]", a.Kind, target, strings.Join(dims, ", "))
}
