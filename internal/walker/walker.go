package walker

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tensorcheck/internal/interval"
	"github.com/roach88/tensorcheck/internal/ir"
)

// ErrMalformed is wrapped by every error Walk returns. The walker only
// fails on structurally invalid IR, never on analysis limits.
var ErrMalformed = errors.New("malformed IR")

// AccessKind distinguishes reads from writes.
type AccessKind int

const (
	Read AccessKind = iota
	Write
)

func (k AccessKind) String() string {
	if k == Write {
		return "store"
	}
	return "load"
}

// Access is one buffer read or write.
type Access struct {
	Kind    AccessKind
	Buffer  *ir.Buffer
	Indices []ir.Expr

	// Load is set for reads, Store for writes. They are the nodes of the
	// input tree and serve as identity for rewriting.
	Load  *ir.Load
	Store *ir.Store

	// Unit is the innermost statement whose own expressions perform the
	// access: a Store, Evaluate, LetStmt value, IfThenElse condition,
	// Assert condition or For bound. Guards wrap this statement.
	Unit ir.Stmt

	// Path locates the access in the loop nest, e.g. "for i/store C".
	Path string

	// Stage names the enclosing producer region, if any.
	Stage string

	// Checked is set when a bounds guard already protects the access.
	Checked bool

	// Executes is set when the access provably runs at least once: every
	// enclosing loop has a provably positive trip count and no branch
	// lies on the path.
	Executes bool

	// Lanes is the number of index lanes the access touches per
	// dimension (1 for scalar indices, the Ramp width for vector ones).
	Lanes int

	// Vectorized is set when an index varies with an enclosing
	// vectorized loop or is itself a vector.
	Vectorized bool

	Scope *interval.Scope
}

// Site is one dimension of one access.
type Site struct {
	Access *Access
	Dim    int
	Index  ir.Expr
	Extent ir.Expr
	Range  interval.Interval // interval of Index
	Bound  interval.Interval // interval of Extent
	Tight  bool              // Range endpoints are attained
}

// Result lists accesses and their sites in program order.
type Result struct {
	Accesses []*Access
	Sites    []Site
}

// SitesOf returns the sites of one access.
func (r *Result) SitesOf(a *Access) []Site {
	var out []Site
	for _, s := range r.Sites {
		if s.Access == a {
			out = append(out, s)
		}
	}
	return out
}

// Option configures a walk.
type Option func(*config)

type config struct {
	scalars []string
}

// WithScalars declares free variables that are runtime scalars of unknown
// sign rather than non-negative sizes.
func WithScalars(names ...string) Option {
	return func(c *config) {
		c.scalars = append(c.scalars, names...)
	}
}

// Walk visits root and returns every access in program order: within a
// statement, accesses nested in an index come before the access using
// them, operands are visited left to right, and a store's own target
// comes last.
//
// Free variables that appear in a buffer shape are size parameters
// (non-negative atoms). Other free variables are unbounded.
func Walk(root ir.Stmt, opts ...Option) (*Result, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	scope := interval.NewScope()
	for _, name := range sizeParams(root) {
		if !slices.Contains(cfg.scalars, name) {
			scope = scope.BindParam(name)
		}
	}
	for _, name := range cfg.scalars {
		scope = scope.BindScalar(name)
	}

	w := &walker{result: &Result{}}
	if err := w.stmt(root, frame{scope: scope, executes: true}); err != nil {
		return nil, err
	}
	return w.result, nil
}

// WalkProgram walks a program body with its declared parameters.
func WalkProgram(p *ir.Program) (*Result, error) {
	var scalars []string
	sizes := p.SizeParams()
	for _, name := range p.Params {
		if !slices.Contains(sizes, name) {
			scalars = append(scalars, name)
		}
	}
	return Walk(p.Body, WithScalars(scalars...))
}

// sizeParams collects the free variables of every buffer shape reachable
// from root that no loop or let in root binds.
func sizeParams(root ir.Stmt) []string {
	bound := make(map[string]bool)
	var names []string
	addShape := func(b *ir.Buffer) {
		if b == nil {
			return
		}
		for _, d := range b.Shape {
			names = append(names, ir.FreeVars(d)...)
		}
	}
	collect := func(e ir.Expr) {
		ir.VisitExpr(e, func(n ir.Expr) {
			if ld, ok := n.(*ir.Load); ok {
				addShape(ld.Buffer)
			}
		})
	}
	ir.VisitStmt(root, func(s ir.Stmt) {
		switch n := s.(type) {
		case *ir.For:
			bound[n.Var] = true
			collect(n.Min)
			collect(n.Extent)
		case *ir.LetStmt:
			bound[n.Var] = true
			collect(n.Value)
		case *ir.IfThenElse:
			collect(n.Cond)
		case *ir.Store:
			addShape(n.Buffer)
			for _, idx := range n.Indices {
				collect(idx)
			}
			collect(n.Value)
		case *ir.Evaluate:
			collect(n.Value)
		case *ir.Assert:
			collect(n.Cond)
		}
	})
	out := slices.DeleteFunc(names, func(name string) bool { return bound[name] })
	slices.Sort(out)
	return slices.Compact(out)
}

type frame struct {
	scope      *interval.Scope
	path       []string
	stage      string
	executes   bool
	vectorVars []string
}

func (f frame) child(segment string) frame {
	f.path = append(slices.Clip(f.path), segment)
	return f
}

func (f frame) pathString(leaf string) string {
	return strings.Join(append(slices.Clip(f.path), leaf), "/")
}

type walker struct {
	result *Result
}

func (w *walker) stmt(s ir.Stmt, f frame) error {
	switch n := s.(type) {
	case nil:
		return nil
	case *ir.For:
		if err := w.exprs(n, f.child("for "+n.Var), n.Min, n.Extent); err != nil {
			return err
		}
		return w.stmt(n.Body, w.enterLoop(n, f))
	case *ir.LetStmt:
		if err := w.exprs(n, f.child("let "+n.Var), n.Value); err != nil {
			return err
		}
		return w.stmt(n.Body, w.enterLet(n, f))
	case *ir.IfThenElse:
		if err := w.exprs(n, f.child("if"), n.Cond); err != nil {
			return err
		}
		then := f.child("then")
		then.scope = interval.Assume(f.scope, n.Cond, true)
		then.executes = false
		if err := w.stmt(n.Then, then); err != nil {
			return err
		}
		otherwise := f.child("else")
		otherwise.scope = interval.Assume(f.scope, n.Cond, false)
		otherwise.executes = false
		return w.stmt(n.Else, otherwise)
	case *ir.Block:
		for i, st := range n.Stmts {
			if err := w.stmt(st, f.child(fmt.Sprintf("[%d]", i))); err != nil {
				return err
			}
		}
		return nil
	case *ir.Store:
		return w.store(n, f)
	case *ir.Evaluate:
		return w.exprs(n, f, n.Value)
	case *ir.Allocate:
		if n.Buffer == nil {
			return fmt.Errorf("%w: %s: allocate without buffer", ErrMalformed, f.pathString("allocate"))
		}
		return w.stmt(n.Body, f.child("allocate "+n.Buffer.Name))
	case *ir.ProducerConsumer:
		inner := f.child("produce " + n.Stage)
		inner.stage = n.Stage
		return w.stmt(n.Body, inner)
	case *ir.Assert:
		if err := w.exprs(n, f.child("assert"), n.Cond); err != nil {
			return err
		}
		return w.stmt(n.Body, f)
	default:
		return fmt.Errorf("%w: %s: unsupported statement %T", ErrMalformed, f.pathString("?"), s)
	}
}

func (w *walker) enterLoop(n *ir.For, f frame) frame {
	minR := interval.Eval(n.Min, f.scope)
	extR := interval.Eval(n.Extent, f.scope)
	hi := interval.Eval(ir.Sub(ir.Add(n.Min, n.Extent), ir.Int(1)), f.scope).Hi
	r := interval.Interval{Lo: minR.Lo, Hi: hi}

	_, minPoint := minR.IsPoint()
	_, extPoint := extR.IsPoint()
	inner := f.child("for " + n.Var)
	if minPoint && extPoint {
		inner.scope = f.scope.BindLoop(n.Var, r)
	} else {
		inner.scope = f.scope.Bind(n.Var, interval.Binding{Interval: r, Deps: []string{n.Var}})
	}
	inner.executes = f.executes && interval.ProvablyLE(interval.ConstBound(1), extR.Lo)
	if n.Kind == ir.Vectorized {
		inner.vectorVars = append(slices.Clip(f.vectorVars), n.Var)
	}
	return inner
}

func (w *walker) enterLet(n *ir.LetStmt, f frame) frame {
	var deps []string
	for _, v := range ir.FreeVars(n.Value) {
		if b, ok := f.scope.Lookup(v); ok {
			deps = append(deps, b.Deps...)
		}
	}
	slices.Sort(deps)
	b := interval.Binding{
		Interval: interval.Eval(n.Value, f.scope),
		Tight:    interval.Tight(n.Value, f.scope),
		Deps:     slices.Compact(deps),
	}
	inner := f.child("let " + n.Var)
	inner.scope = f.scope.Bind(n.Var, b)
	if dependsOn(n.Value, f.vectorVars) {
		inner.vectorVars = append(slices.Clip(f.vectorVars), n.Var)
	}
	return inner
}

// exprs records the loads inside es, all performed by unit.
func (w *walker) exprs(unit ir.Stmt, f frame, es ...ir.Expr) error {
	ordinal := 0
	for _, e := range es {
		var err error
		ir.VisitExpr(e, func(n ir.Expr) {
			ld, ok := n.(*ir.Load)
			if !ok || err != nil {
				return
			}
			a := &Access{
				Kind:    Read,
				Buffer:  ld.Buffer,
				Indices: ld.Indices,
				Load:    ld,
				Checked: ld.Checked,
			}
			leaf := "load ?"
			if ld.Buffer != nil {
				leaf = fmt.Sprintf("load %s.%d", ld.Buffer.Name, ordinal)
			}
			ordinal++
			err = w.record(a, unit, f, leaf)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) store(n *ir.Store, f frame) error {
	if err := w.exprs(n, f, append(slices.Clip(n.Indices), n.Value)...); err != nil {
		return err
	}
	a := &Access{
		Kind:    Write,
		Buffer:  n.Buffer,
		Indices: n.Indices,
		Store:   n,
		Checked: n.Checked,
	}
	leaf := "store ?"
	if n.Buffer != nil {
		leaf = "store " + n.Buffer.Name
	}
	return w.record(a, n, f, leaf)
}

func (w *walker) record(a *Access, unit ir.Stmt, f frame, leaf string) error {
	path := f.pathString(leaf)
	if a.Buffer == nil {
		return fmt.Errorf("%w: %s: access without buffer", ErrMalformed, path)
	}
	if len(a.Indices) != len(a.Buffer.Shape) {
		return fmt.Errorf("%w: %s: buffer %s has %d dimensions, accessed with %d indices",
			ErrMalformed, path, a.Buffer.Name, len(a.Buffer.Shape), len(a.Indices))
	}

	a.Unit = unit
	a.Path = path
	a.Stage = f.stage
	a.Executes = f.executes
	a.Scope = f.scope
	a.Lanes = indexLanes(a.Indices)
	a.Vectorized = a.Lanes > 1 || slices.ContainsFunc(a.Indices, func(idx ir.Expr) bool {
		return dependsOn(idx, f.vectorVars)
	})

	w.result.Accesses = append(w.result.Accesses, a)
	for d, idx := range a.Indices {
		w.result.Sites = append(w.result.Sites, Site{
			Access: a,
			Dim:    d,
			Index:  idx,
			Extent: a.Buffer.Shape[d],
			Range:  interval.Eval(idx, f.scope),
			Bound:  interval.Eval(a.Buffer.Shape[d], f.scope),
			Tight:  interval.Tight(idx, f.scope),
		})
	}
	return nil
}
