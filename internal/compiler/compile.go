package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tensorcheck/internal/ir"
)

// CompileProgram parses a CUE value into a Program.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the program struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`program: vecadd: { ... }`)
//	p, err := CompileProgram(v.LookupPath(cue.ParsePath("program.vecadd")))
func CompileProgram(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Program{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = norm.NFC.String(labels[len(labels)-1].String())
	}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		params, err := stringList(paramsVal, "params")
		if err != nil {
			return nil, err
		}
		for _, name := range params {
			p.Params = append(p.Params, norm.NFC.String(name))
		}
	}

	sc := newScope()
	buffersVal := v.LookupPath(cue.ParsePath("buffers"))
	if buffersVal.Exists() {
		iter, err := buffersVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name := norm.NFC.String(iter.Selector().Unquoted())
			b, err := compileBuffer(name, iter.Value(), sc)
			if err != nil {
				return nil, err
			}
			if sc.buffers[name] != nil {
				return nil, &CompileError{
					Field:   "buffers." + name,
					Message: "duplicate buffer",
					Pos:     iter.Value().Pos(),
				}
			}
			sc.buffers[name] = b
			p.Buffers = append(p.Buffers, b)
		}
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &CompileError{
			Field:   "body",
			Message: "body is required",
			Pos:     v.Pos(),
		}
	}
	body, err := compileBlock(bodyVal, "body", sc)
	if err != nil {
		return nil, err
	}
	p.Body = body
	return p, nil
}

// CompileAll compiles every program under the top-level "program" field,
// in declaration order. Errors do not stop the remaining programs.
func CompileAll(v cue.Value) ([]*ir.Program, []error) {
	programsVal := v.LookupPath(cue.ParsePath("program"))
	if !programsVal.Exists() {
		return nil, nil
	}
	iter, err := programsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var programs []*ir.Program
	var errs []error
	for iter.Next() {
		p, err := CompileProgram(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("program %s: %w", iter.Selector().Unquoted(), err))
			continue
		}
		programs = append(programs, p)
	}
	return programs, errs
}

// CompileSource compiles the programs in one CUE source file.
func CompileSource(filename string, src []byte) ([]*ir.Program, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	programs, errs := CompileAll(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return programs, nil
}

func compileBuffer(name string, v cue.Value, sc *scope) (*ir.Buffer, error) {
	field := "buffers." + name
	b := &ir.Buffer{Name: name, DType: ir.Float32, Lanes: 1}

	shapeVal := v.LookupPath(cue.ParsePath("shape"))
	if shapeVal.Exists() {
		shape, err := exprList(shapeVal, field+".shape", sc)
		if err != nil {
			return nil, err
		}
		b.Shape = shape
	}

	dtypeVal := v.LookupPath(cue.ParsePath("dtype"))
	if dtypeVal.Exists() {
		s, err := dtypeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		b.DType = ir.DType(s)
	}

	lanesVal := v.LookupPath(cue.ParsePath("lanes"))
	if lanesVal.Exists() {
		n, err := lanesVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		b.Lanes = int(n)
	}
	return b, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func exprList(v cue.Value, field string, sc *scope) ([]ir.Expr, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list", Pos: v.Pos()}
	}
	var out []ir.Expr
	for i := 0; iter.Next(); i++ {
		e, err := exprValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i), sc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// exprValue accepts an integer literal or an expression string.
func exprValue(v cue.Value, field string, sc *scope) (ir.Expr, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return parseExpr(s, field, v.Pos(), sc)
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("want an integer or an expression string, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
