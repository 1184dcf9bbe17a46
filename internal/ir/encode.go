package ir

import (
	"strconv"
)

// EncodeExpr converts an expression into the generic value tree accepted
// by MarshalCanonical (maps, slices, strings, int64 and bool only).
func EncodeExpr(e Expr) any {
	switch n := e.(type) {
	case *IntImm:
		return map[string]any{"kind": "int", "value": n.Value}
	case *FloatImm:
		// Floats are forbidden in canonical JSON; keep the exact text.
		return map[string]any{"kind": "float", "value": strconv.FormatFloat(n.Value, 'g', -1, 64)}
	case *StringImm:
		return map[string]any{"kind": "string", "value": n.Value}
	case *Var:
		return map[string]any{"kind": "var", "name": n.Name}
	case *Binary:
		return map[string]any{"kind": "binary", "op": n.Op.String(), "x": EncodeExpr(n.X), "y": EncodeExpr(n.Y)}
	case *Compare:
		return map[string]any{"kind": "compare", "op": n.Op.String(), "x": EncodeExpr(n.X), "y": EncodeExpr(n.Y)}
	case *And:
		return map[string]any{"kind": "and", "x": EncodeExpr(n.X), "y": EncodeExpr(n.Y)}
	case *Or:
		return map[string]any{"kind": "or", "x": EncodeExpr(n.X), "y": EncodeExpr(n.Y)}
	case *Not:
		return map[string]any{"kind": "not", "x": EncodeExpr(n.X)}
	case *Ramp:
		return map[string]any{"kind": "ramp", "base": EncodeExpr(n.Base), "stride": EncodeExpr(n.Stride), "lanes": int64(n.Lanes)}
	case *Broadcast:
		return map[string]any{"kind": "broadcast", "value": EncodeExpr(n.Value), "lanes": int64(n.Lanes)}
	case *Load:
		return map[string]any{"kind": "load", "buffer": n.Buffer.Name, "indices": encodeExprs(n.Indices), "checked": n.Checked}
	case *Call:
		return map[string]any{"kind": "call", "name": n.Name, "args": encodeExprs(n.Args)}
	default:
		return map[string]any{"kind": "unknown"}
	}
}

func encodeExprs(es []Expr) []any {
	out := make([]any, len(es))
	for i, e := range es {
		out[i] = EncodeExpr(e)
	}
	return out
}

// EncodeStmt converts a statement tree into a generic value tree.
// A nil statement encodes as an empty block.
func EncodeStmt(s Stmt) any {
	switch n := s.(type) {
	case nil:
		return map[string]any{"kind": "block", "stmts": []any{}}
	case *For:
		return map[string]any{
			"kind":   "for",
			"var":    n.Var,
			"min":    EncodeExpr(n.Min),
			"extent": EncodeExpr(n.Extent),
			"loop":   n.Kind.String(),
			"body":   EncodeStmt(n.Body),
		}
	case *LetStmt:
		return map[string]any{"kind": "let", "var": n.Var, "value": EncodeExpr(n.Value), "body": EncodeStmt(n.Body)}
	case *IfThenElse:
		out := map[string]any{"kind": "if", "cond": EncodeExpr(n.Cond), "then": EncodeStmt(n.Then)}
		if n.Else != nil {
			out["else"] = EncodeStmt(n.Else)
		}
		return out
	case *Block:
		stmts := make([]any, len(n.Stmts))
		for i, st := range n.Stmts {
			stmts[i] = EncodeStmt(st)
		}
		return map[string]any{"kind": "block", "stmts": stmts}
	case *Store:
		return map[string]any{
			"kind":    "store",
			"buffer":  n.Buffer.Name,
			"indices": encodeExprs(n.Indices),
			"value":   EncodeExpr(n.Value),
			"checked": n.Checked,
		}
	case *Evaluate:
		return map[string]any{"kind": "evaluate", "value": EncodeExpr(n.Value)}
	case *Allocate:
		return map[string]any{"kind": "allocate", "buffer": EncodeBuffer(n.Buffer), "body": EncodeStmt(n.Body)}
	case *ProducerConsumer:
		return map[string]any{"kind": "produce", "stage": n.Stage, "body": EncodeStmt(n.Body)}
	case *Assert:
		out := map[string]any{
			"kind":    "assert",
			"assert":  n.Kind.String(),
			"cond":    EncodeExpr(n.Cond),
			"message": n.Message,
		}
		if n.Buffer != "" {
			out["buffer"] = n.Buffer
		}
		if n.Body != nil {
			out["body"] = EncodeStmt(n.Body)
		}
		return out
	default:
		return map[string]any{"kind": "unknown"}
	}
}

// EncodeBuffer converts a buffer declaration into a generic value tree.
func EncodeBuffer(b *Buffer) any {
	return map[string]any{
		"name":  b.Name,
		"dtype": string(b.DType),
		"lanes": int64(b.ElemLanes()),
		"shape": encodeExprs(b.Shape),
	}
}

// EncodeProgram converts a whole program into a generic value tree.
func EncodeProgram(p *Program) any {
	params := make([]any, len(p.Params))
	for i, name := range p.Params {
		params[i] = name
	}
	buffers := make([]any, len(p.Buffers))
	for i, b := range p.Buffers {
		buffers[i] = EncodeBuffer(b)
	}
	return map[string]any{
		"name":    p.Name,
		"params":  params,
		"buffers": buffers,
		"body":    EncodeStmt(p.Body),
	}
}
