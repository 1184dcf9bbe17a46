package compiler

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tensorcheck/internal/ir"
)

// scope maps buffer names visible at a point of the program. Allocations
// add to a copy.
type scope struct {
	buffers map[string]*ir.Buffer
}

func newScope() *scope {
	return &scope{buffers: make(map[string]*ir.Buffer)}
}

func (s *scope) with(b *ir.Buffer) *scope {
	out := &scope{buffers: maps.Clone(s.buffers)}
	out.buffers[b.Name] = b
	return out
}

// ParseExpr parses an index or value expression written in CUE expression
// syntax against the given buffers.
func ParseExpr(src string, buffers ...*ir.Buffer) (ir.Expr, error) {
	sc := newScope()
	for _, b := range buffers {
		sc.buffers[b.Name] = b
	}
	return parseExpr(src, "expr", token.NoPos, sc)
}

func parseExpr(src, field string, pos token.Pos, sc *scope) (ir.Expr, error) {
	node, err := parser.ParseExpr(field, src)
	if err != nil {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("parse %q: %v", src, err), Pos: pos}
	}
	c := &exprConverter{field: field, pos: pos, scope: sc, src: src}
	return c.convert(node)
}

type exprConverter struct {
	field string
	pos   token.Pos
	scope *scope
	src   string
}

func (c *exprConverter) errorf(format string, args ...any) error {
	return &CompileError{
		Field:   c.field,
		Message: fmt.Sprintf("%s: %s", strconv.Quote(c.src), fmt.Sprintf(format, args...)),
		Pos:     c.pos,
	}
}

var binaryOps = map[token.Token]ir.BinaryOp{
	token.ADD:  ir.OpAdd,
	token.SUB:  ir.OpSub,
	token.MUL:  ir.OpMul,
	token.QUO:  ir.OpDiv,
	token.IDIV: ir.OpDiv,
	token.IMOD: ir.OpMod,
}

var compareOps = map[token.Token]ir.CompareOp{
	token.LSS: ir.CmpLT,
	token.LEQ: ir.CmpLE,
	token.GTR: ir.CmpGT,
	token.GEQ: ir.CmpGE,
	token.EQL: ir.CmpEQ,
	token.NEQ: ir.CmpNE,
}

func (c *exprConverter) convert(n ast.Expr) (ir.Expr, error) {
	switch n := n.(type) {
	case *ast.BasicLit:
		return c.literal(n)
	case *ast.Ident:
		return ir.V(norm.NFC.String(n.Name)), nil
	case *ast.ParenExpr:
		return c.convert(n.X)
	case *ast.UnaryExpr:
		return c.unary(n)
	case *ast.BinaryExpr:
		return c.binary(n)
	case *ast.IndexExpr:
		return c.index(n)
	case *ast.CallExpr:
		return c.call(n)
	default:
		return nil, c.errorf("unsupported expression %T", n)
	}
}

func (c *exprConverter) literal(n *ast.BasicLit) (ir.Expr, error) {
	switch n.Kind {
	case token.INT:
		v, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
		if err != nil {
			return nil, c.errorf("integer %s: %v", n.Value, err)
		}
		return ir.Int(v), nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64)
		if err != nil {
			return nil, c.errorf("float %s: %v", n.Value, err)
		}
		return ir.Float(v), nil
	case token.STRING:
		s, err := literal.Unquote(n.Value)
		if err != nil {
			return nil, c.errorf("string %s: %v", n.Value, err)
		}
		return ir.Str(s), nil
	default:
		return nil, c.errorf("unsupported literal %s", n.Value)
	}
}

func (c *exprConverter) unary(n *ast.UnaryExpr) (ir.Expr, error) {
	x, err := c.convert(n.X)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.ADD:
		return x, nil
	case token.SUB:
		switch lit := x.(type) {
		case *ir.IntImm:
			return ir.Int(-lit.Value), nil
		case *ir.FloatImm:
			return ir.Float(-lit.Value), nil
		}
		return ir.Sub(ir.Int(0), x), nil
	case token.NOT:
		return &ir.Not{X: x}, nil
	default:
		return nil, c.errorf("unsupported operator %s", n.Op)
	}
}

func (c *exprConverter) binary(n *ast.BinaryExpr) (ir.Expr, error) {
	x, err := c.convert(n.X)
	if err != nil {
		return nil, err
	}
	y, err := c.convert(n.Y)
	if err != nil {
		return nil, err
	}
	if op, ok := binaryOps[n.Op]; ok {
		return &ir.Binary{Op: op, X: x, Y: y}, nil
	}
	if op, ok := compareOps[n.Op]; ok {
		return &ir.Compare{Op: op, X: x, Y: y}, nil
	}
	switch n.Op {
	case token.LAND:
		return &ir.And{X: x, Y: y}, nil
	case token.LOR:
		return &ir.Or{X: x, Y: y}, nil
	default:
		return nil, c.errorf("unsupported operator %s", n.Op)
	}
}

// index converts A[i][j] into a load of A.
func (c *exprConverter) index(n *ast.IndexExpr) (ir.Expr, error) {
	var chain []ast.Expr
	var base ast.Expr = n
	for {
		ix, ok := base.(*ast.IndexExpr)
		if !ok {
			break
		}
		chain = append(chain, ix.Index)
		base = ix.X
	}
	id, ok := base.(*ast.Ident)
	if !ok {
		return nil, c.errorf("only buffers can be indexed")
	}
	name := norm.NFC.String(id.Name)
	b := c.scope.buffers[name]
	if b == nil {
		return nil, c.errorf("unknown buffer %s", name)
	}

	indices := make([]ir.Expr, len(chain))
	for i, idx := range chain {
		e, err := c.convert(idx)
		if err != nil {
			return nil, err
		}
		// chain was collected outermost first.
		indices[len(chain)-1-i] = e
	}
	return &ir.Load{Buffer: b, Indices: indices}, nil
}

func (c *exprConverter) call(n *ast.CallExpr) (ir.Expr, error) {
	id, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, c.errorf("call of non-identifier")
	}
	args := make([]ir.Expr, len(n.Args))
	for i, a := range n.Args {
		e, err := c.convert(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}

	want := func(k int) error {
		if len(args) != k {
			return c.errorf("%s takes %d arguments, got %d", id.Name, k, len(args))
		}
		return nil
	}
	lanes := func(e ir.Expr) (int, error) {
		lit, ok := e.(*ir.IntImm)
		if !ok || lit.Value < 1 {
			return 0, c.errorf("%s lanes must be a positive integer literal", id.Name)
		}
		return int(lit.Value), nil
	}

	switch id.Name {
	case "min", "max", "div", "mod":
		if err := want(2); err != nil {
			return nil, err
		}
		op := map[string]ir.BinaryOp{"min": ir.OpMin, "max": ir.OpMax, "div": ir.OpDiv, "mod": ir.OpMod}[id.Name]
		return &ir.Binary{Op: op, X: args[0], Y: args[1]}, nil
	case "ramp":
		if err := want(3); err != nil {
			return nil, err
		}
		l, err := lanes(args[2])
		if err != nil {
			return nil, err
		}
		return &ir.Ramp{Base: args[0], Stride: args[1], Lanes: l}, nil
	case "broadcast":
		if err := want(2); err != nil {
			return nil, err
		}
		l, err := lanes(args[1])
		if err != nil {
			return nil, err
		}
		return &ir.Broadcast{Value: args[0], Lanes: l}, nil
	case "likely", "abs", "sqrt", "exp":
		if err := want(1); err != nil {
			return nil, err
		}
		return &ir.Call{Name: id.Name, Args: args}, nil
	case "trace":
		if len(args) < 2 {
			return nil, c.errorf("trace takes a label and a value")
		}
		return &ir.Call{Name: id.Name, Args: args}, nil
	case "trace_buffer":
		if err := want(2); err != nil {
			return nil, err
		}
		if v, ok := args[1].(*ir.Var); !ok || c.scope.buffers[v.Name] == nil {
			return nil, c.errorf("trace_buffer needs a buffer name")
		}
		return &ir.Call{Name: id.Name, Args: args}, nil
	default:
		return nil, c.errorf("unknown function %s", id.Name)
	}
}
