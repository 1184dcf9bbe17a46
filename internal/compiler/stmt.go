package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tensorcheck/internal/ir"
)

// statementKeys lists the key that selects each statement form.
var statementKeys = []string{"loop", "bind", "when", "store", "eval", "allocate", "produce", "assert"}

// compileBlock compiles a list of statements. A single statement is
// returned as-is, several as a Block.
func compileBlock(v cue.Value, field string, sc *scope) (ir.Stmt, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of statements", Pos: v.Pos()}
	}
	var stmts []ir.Stmt
	for i := 0; iter.Next(); i++ {
		s, err := compileStmt(iter.Value(), fmt.Sprintf("%s[%d]", field, i), sc)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return ir.Seq(stmts...), nil
}

func compileStmt(v cue.Value, field string, sc *scope) (ir.Stmt, error) {
	var key string
	for _, k := range statementKeys {
		if v.LookupPath(cue.ParsePath(k)).Exists() {
			if key != "" {
				return nil, &CompileError{
					Field:   field,
					Message: fmt.Sprintf("statement has both %s and %s", key, k),
					Pos:     v.Pos(),
				}
			}
			key = k
		}
	}

	c := &stmtCompiler{v: v, field: field, scope: sc}
	switch key {
	case "loop":
		return c.loop()
	case "bind":
		return c.bind()
	case "when":
		return c.when()
	case "store":
		return c.store()
	case "eval":
		value, err := c.expr("eval", true)
		if err != nil {
			return nil, err
		}
		return &ir.Evaluate{Value: value}, nil
	case "allocate":
		return c.allocate()
	case "produce":
		return c.produce()
	case "assert":
		return c.assert()
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown statement, want one of %v", statementKeys),
			Pos:     v.Pos(),
		}
	}
}

type stmtCompiler struct {
	v     cue.Value
	field string
	scope *scope
}

func (c *stmtCompiler) lookup(name string) cue.Value {
	return c.v.LookupPath(cue.ParsePath(name))
}

func (c *stmtCompiler) missing(name string) error {
	return &CompileError{Field: c.field + "." + name, Message: name + " is required", Pos: c.v.Pos()}
}

func (c *stmtCompiler) str(name string, required bool) (string, error) {
	f := c.lookup(name)
	if !f.Exists() {
		if required {
			return "", c.missing(name)
		}
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func (c *stmtCompiler) ident(name string) (string, error) {
	s, err := c.str(name, true)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &CompileError{Field: c.field + "." + name, Message: "must not be empty", Pos: c.lookup(name).Pos()}
	}
	return norm.NFC.String(s), nil
}

func (c *stmtCompiler) expr(name string, required bool) (ir.Expr, error) {
	f := c.lookup(name)
	if !f.Exists() {
		if required {
			return nil, c.missing(name)
		}
		return nil, nil
	}
	return exprValue(f, c.field+"."+name, c.scope)
}

func (c *stmtCompiler) block(name string, sc *scope) (ir.Stmt, error) {
	f := c.lookup(name)
	if !f.Exists() {
		return nil, nil
	}
	return compileBlock(f, c.field+"."+name, sc)
}

func (c *stmtCompiler) loop() (ir.Stmt, error) {
	v, err := c.ident("loop")
	if err != nil {
		return nil, err
	}
	lo, err := c.expr("min", false)
	if err != nil {
		return nil, err
	}
	if lo == nil {
		lo = ir.Int(0)
	}
	extent, err := c.expr("extent", true)
	if err != nil {
		return nil, err
	}
	kindName, err := c.str("kind", false)
	if err != nil {
		return nil, err
	}
	kind, err := ir.ParseForKind(kindName)
	if err != nil {
		return nil, &CompileError{Field: c.field + ".kind", Message: err.Error(), Pos: c.lookup("kind").Pos()}
	}
	body, err := c.block("body", c.scope)
	if err != nil {
		return nil, err
	}
	return &ir.For{Var: v, Min: lo, Extent: extent, Kind: kind, Body: body}, nil
}

func (c *stmtCompiler) bind() (ir.Stmt, error) {
	v, err := c.ident("bind")
	if err != nil {
		return nil, err
	}
	value, err := c.expr("value", true)
	if err != nil {
		return nil, err
	}
	body, err := c.block("body", c.scope)
	if err != nil {
		return nil, err
	}
	return &ir.LetStmt{Var: v, Value: value, Body: body}, nil
}

func (c *stmtCompiler) when() (ir.Stmt, error) {
	cond, err := c.expr("when", true)
	if err != nil {
		return nil, err
	}
	then, err := c.block("then", c.scope)
	if err != nil {
		return nil, err
	}
	otherwise, err := c.block("otherwise", c.scope)
	if err != nil {
		return nil, err
	}
	return &ir.IfThenElse{Cond: cond, Then: then, Else: otherwise}, nil
}

func (c *stmtCompiler) store() (ir.Stmt, error) {
	target, err := c.expr("store", true)
	if err != nil {
		return nil, err
	}
	ld, ok := target.(*ir.Load)
	if !ok {
		return nil, &CompileError{
			Field:   c.field + ".store",
			Message: "store target must be an indexed buffer",
			Pos:     c.lookup("store").Pos(),
		}
	}
	value, err := c.expr("value", true)
	if err != nil {
		return nil, err
	}
	return &ir.Store{Buffer: ld.Buffer, Indices: ld.Indices, Value: value}, nil
}

func (c *stmtCompiler) allocate() (ir.Stmt, error) {
	name, err := c.ident("allocate")
	if err != nil {
		return nil, err
	}
	b, err := compileBuffer(name, c.v, c.scope)
	if err != nil {
		return nil, err
	}
	body, err := c.block("body", c.scope.with(b))
	if err != nil {
		return nil, err
	}
	return &ir.Allocate{Buffer: b, Body: body}, nil
}

func (c *stmtCompiler) produce() (ir.Stmt, error) {
	stage, err := c.ident("produce")
	if err != nil {
		return nil, err
	}
	body, err := c.block("body", c.scope)
	if err != nil {
		return nil, err
	}
	return &ir.ProducerConsumer{Stage: stage, Body: body}, nil
}

// assert compiles a general assertion, or a bounds guard when "bounds"
// names the guarded buffer.
func (c *stmtCompiler) assert() (ir.Stmt, error) {
	cond, err := c.expr("assert", true)
	if err != nil {
		return nil, err
	}
	message, err := c.str("message", false)
	if err != nil {
		return nil, err
	}
	bounds, err := c.str("bounds", false)
	if err != nil {
		return nil, err
	}
	body, err := c.block("body", c.scope)
	if err != nil {
		return nil, err
	}
	a := &ir.Assert{Cond: cond, Message: message, Body: body}
	if bounds != "" {
		a.Kind = ir.AssertBounds
		a.Buffer = norm.NFC.String(bounds)
	}
	return a, nil
}
