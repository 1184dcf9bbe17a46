package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tensorcheck/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrNilProgram       = "E100" // no program to validate
	ErrEmptyBody        = "E101" // program body has no statements
	ErrBufferNoShape    = "E102" // buffer declared without a shape
	ErrBadLanes         = "E103" // element lanes must be at least 1
	ErrUnknownDType     = "E104" // dtype is not one of ir.ValidDTypes
	ErrDuplicateBuffer  = "E105" // buffer name declared twice
	ErrUnknownBuffer    = "E106" // access to a buffer not in scope
	ErrArityMismatch    = "E107" // index count differs from shape rank
	ErrUnboundVariable  = "E108" // variable neither bound nor a parameter
	ErrShadowedVariable = "E109" // loop or let rebinds a name in scope
)

// ValidationError represents a structural error in a program.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled program for structural errors.
// Returns all errors found (does not fail-fast).
func Validate(p *ir.Program) []ValidationError {
	if p == nil {
		return []ValidationError{{Field: "program", Message: "program is nil", Code: ErrNilProgram}}
	}
	v := &validator{buffers: make(map[string]*ir.Buffer)}

	if isEmpty(p.Body) {
		v.add("body", ErrEmptyBody, "body must contain at least one statement")
	}

	bound := make(map[string]bool)
	for _, name := range p.AllParams() {
		bound[name] = true
	}
	for i, b := range p.Buffers {
		field := fmt.Sprintf("buffers[%d]", i)
		v.buffer(field, b, bound)
		if v.buffers[b.Name] != nil {
			v.add(field, ErrDuplicateBuffer, fmt.Sprintf("duplicate buffer %q", b.Name))
		}
		v.buffers[b.Name] = b
	}

	v.stmt(p.Body, "body", bound)
	return v.errs
}

type validator struct {
	errs    []ValidationError
	buffers map[string]*ir.Buffer
}

func (v *validator) add(field, code, msg string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: msg, Code: code})
}

func isEmpty(s ir.Stmt) bool {
	if s == nil {
		return true
	}
	b, ok := s.(*ir.Block)
	return ok && len(b.Stmts) == 0
}

func (v *validator) buffer(field string, b *ir.Buffer, bound map[string]bool) {
	if len(b.Shape) == 0 {
		v.add(field+".shape", ErrBufferNoShape, fmt.Sprintf("buffer %q has no shape", b.Name))
	}
	if b.Lanes < 1 {
		v.add(field+".lanes", ErrBadLanes, fmt.Sprintf("buffer %q has %d lanes", b.Name, b.Lanes))
	}
	if !ir.ValidDTypes[b.DType] {
		v.add(field+".dtype", ErrUnknownDType, fmt.Sprintf("buffer %q has unknown dtype %q", b.Name, b.DType))
	}
	for i, d := range b.Shape {
		v.expr(d, fmt.Sprintf("%s.shape[%d]", field, i), bound)
	}
}

func (v *validator) stmt(s ir.Stmt, field string, bound map[string]bool) {
	switch n := s.(type) {
	case nil:
	case *ir.For:
		field += "/for " + n.Var
		v.expr(n.Min, field+".min", bound)
		v.expr(n.Extent, field+".extent", bound)
		v.stmt(n.Body, field, v.bind(n.Var, field, bound))
	case *ir.LetStmt:
		field += "/let " + n.Var
		v.expr(n.Value, field+".value", bound)
		v.stmt(n.Body, field, v.bind(n.Var, field, bound))
	case *ir.IfThenElse:
		v.expr(n.Cond, field+"/if", bound)
		v.stmt(n.Then, field+"/then", bound)
		v.stmt(n.Else, field+"/else", bound)
	case *ir.Block:
		for i, st := range n.Stmts {
			v.stmt(st, fmt.Sprintf("%s[%d]", field, i), bound)
		}
	case *ir.Store:
		target := field + "/store " + n.Buffer.Name
		v.access(n.Buffer, n.Indices, target, bound)
		v.expr(n.Value, target+".value", bound)
	case *ir.Evaluate:
		v.expr(n.Value, field+"/eval", bound)
	case *ir.Allocate:
		field += "/allocate " + n.Buffer.Name
		v.buffer(field, n.Buffer, bound)
		if v.buffers[n.Buffer.Name] != nil {
			v.add(field, ErrDuplicateBuffer, fmt.Sprintf("allocation shadows buffer %q", n.Buffer.Name))
		}
		outer := v.buffers[n.Buffer.Name]
		v.buffers[n.Buffer.Name] = n.Buffer
		v.stmt(n.Body, field, bound)
		if outer != nil {
			v.buffers[n.Buffer.Name] = outer
		} else {
			delete(v.buffers, n.Buffer.Name)
		}
	case *ir.ProducerConsumer:
		v.stmt(n.Body, field+"/produce "+n.Stage, bound)
	case *ir.Assert:
		v.expr(n.Cond, field+"/assert", bound)
		if n.Kind == ir.AssertBounds && v.buffers[n.Buffer] == nil {
			v.add(field+"/assert", ErrUnknownBuffer, fmt.Sprintf("bounds guard names unknown buffer %q", n.Buffer))
		}
		v.stmt(n.Body, field, bound)
	default:
		v.add(field, ErrNilProgram, fmt.Sprintf("unsupported statement %T", s))
	}
}

func (v *validator) bind(name, field string, bound map[string]bool) map[string]bool {
	if bound[name] {
		v.add(field, ErrShadowedVariable, fmt.Sprintf("%q is already bound", name))
	}
	inner := make(map[string]bool, len(bound)+1)
	for k := range bound {
		inner[k] = true
	}
	inner[name] = true
	return inner
}

func (v *validator) access(b *ir.Buffer, indices []ir.Expr, field string, bound map[string]bool) {
	if v.buffers[b.Name] == nil {
		v.add(field, ErrUnknownBuffer, fmt.Sprintf("buffer %q is not declared", b.Name))
	} else if len(indices) != len(b.Shape) {
		v.add(field, ErrArityMismatch,
			fmt.Sprintf("buffer %q has %d dimensions, accessed with %d indices", b.Name, len(b.Shape), len(indices)))
	}
	for i, idx := range indices {
		v.expr(idx, fmt.Sprintf("%s[%d]", field, i), bound)
	}
}

func (v *validator) expr(e ir.Expr, field string, bound map[string]bool) {
	var unbound []string
	ir.VisitExpr(e, func(n ir.Expr) {
		switch n := n.(type) {
		case *ir.Var:
			if !bound[n.Name] && v.buffers[n.Name] == nil {
				unbound = append(unbound, n.Name)
			}
		case *ir.Load:
			if v.buffers[n.Buffer.Name] == nil {
				v.add(field, ErrUnknownBuffer, fmt.Sprintf("buffer %q is not declared", n.Buffer.Name))
			} else if len(n.Indices) != len(n.Buffer.Shape) {
				v.add(field, ErrArityMismatch,
					fmt.Sprintf("buffer %q has %d dimensions, accessed with %d indices", n.Buffer.Name, len(n.Buffer.Shape), len(n.Indices)))
			}
		}
	})
	slices.Sort(unbound)
	if unbound = slices.Compact(unbound); len(unbound) > 0 {
		v.add(field, ErrUnboundVariable, "unbound variable "+strings.Join(unbound, ", "))
	}
}
