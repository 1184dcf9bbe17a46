package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ExprString renders an expression in the textual form used by diagnostics
// and guard messages. Binary and comparison nodes are fully parenthesised.
func ExprString(e Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *IntImm:
		sb.WriteString(strconv.FormatInt(n.Value, 10))
	case *FloatImm:
		sb.WriteString(formatFloat(n.Value))
	case *StringImm:
		sb.WriteString(strconv.Quote(n.Value))
	case *Var:
		sb.WriteString(n.Name)
	case *Binary:
		if n.Op == OpMin || n.Op == OpMax {
			writeCall(sb, n.Op.String(), n.X, n.Y)
			return
		}
		writeInfix(sb, n.X, n.Op.String(), n.Y)
	case *Compare:
		writeInfix(sb, n.X, n.Op.String(), n.Y)
	case *And:
		writeInfix(sb, n.X, "&&", n.Y)
	case *Or:
		writeInfix(sb, n.X, "||", n.Y)
	case *Not:
		sb.WriteString("!")
		writeExpr(sb, n.X)
	case *Ramp:
		writeCall(sb, "ramp", n.Base, n.Stride, Int(int64(n.Lanes)))
	case *Broadcast:
		writeCall(sb, "broadcast", n.Value, Int(int64(n.Lanes)))
	case *Load:
		writeAccess(sb, n.Buffer, n.Indices)
	case *Call:
		writeCall(sb, n.Name, n.Args...)
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}

func writeInfix(sb *strings.Builder, x Expr, op string, y Expr) {
	sb.WriteByte('(')
	writeExpr(sb, x)
	sb.WriteByte(' ')
	sb.WriteString(op)
	sb.WriteByte(' ')
	writeExpr(sb, y)
	sb.WriteByte(')')
}

func writeCall(sb *strings.Builder, name string, args ...Expr) {
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, a)
	}
	sb.WriteByte(')')
}

func writeAccess(sb *strings.Builder, b *Buffer, indices []Expr) {
	sb.WriteString(b.Name)
	for _, idx := range indices {
		sb.WriteByte('[')
		writeExpr(sb, idx)
		sb.WriteByte(']')
	}
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// StmtString renders a statement tree, two spaces per nesting level.
func StmtString(s Stmt) string {
	p := &printer{}
	p.stmt(s)
	return p.sb.String()
}

// String renders the program header (parameters and buffers) followed by
// its body.
func (p *Program) String() string {
	pr := &printer{}
	fmt.Fprintf(&pr.sb, "program %s\n", p.Name)
	for _, name := range p.Params {
		fmt.Fprintf(&pr.sb, "  param %s\n", name)
	}
	for _, b := range p.Buffers {
		fmt.Fprintf(&pr.sb, "  buffer %s\n", bufferDecl(b))
	}
	pr.stmt(p.Body)
	return pr.sb.String()
}

func bufferDecl(b *Buffer) string {
	dims := make([]string, len(b.Shape))
	for i, d := range b.Shape {
		dims[i] = ExprString(d)
	}
	return fmt.Sprintf("%s: %s[%s]", b.Name, b.TypeString(), strings.Join(dims, ", "))
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) line(format string, args ...any) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) nested(s Stmt) {
	p.indent++
	p.stmt(s)
	p.indent--
}

func (p *printer) stmt(s Stmt) {
	switch n := s.(type) {
	case nil:
		return
	case *For:
		prefix := ""
		if n.Kind != Serial {
			prefix = n.Kind.String() + " "
		}
		p.line("%sfor (%s, %s, %s) {", prefix, n.Var, ExprString(n.Min), ExprString(n.Extent))
		p.nested(n.Body)
		p.line("}")
	case *LetStmt:
		p.line("let %s = %s", n.Var, ExprString(n.Value))
		p.stmt(n.Body)
	case *IfThenElse:
		p.line("if %s {", ExprString(n.Cond))
		p.nested(n.Then)
		if n.Else != nil {
			p.line("} else {")
			p.nested(n.Else)
		}
		p.line("}")
	case *Block:
		for _, st := range n.Stmts {
			p.stmt(st)
		}
	case *Store:
		var sb strings.Builder
		writeAccess(&sb, n.Buffer, n.Indices)
		p.line("%s = %s", sb.String(), ExprString(n.Value))
	case *Evaluate:
		p.line("%s", ExprString(n.Value))
	case *Allocate:
		p.line("allocate %s {", bufferDecl(n.Buffer))
		p.nested(n.Body)
		p.line("}")
	case *ProducerConsumer:
		p.line("produce %s {", n.Stage)
		p.nested(n.Body)
		p.line("}")
	case *Assert:
		keyword := "assert"
		if n.Kind == AssertBounds {
			keyword = "check_bounds"
		}
		if n.Body == nil {
			p.line("%s(%s, %s)", keyword, ExprString(n.Cond), strconv.Quote(n.Message))
			return
		}
		p.line("%s(%s, %s) {", keyword, ExprString(n.Cond), strconv.Quote(n.Message))
		p.nested(n.Body)
		p.line("}")
	default:
		p.line("<%T>", s)
	}
}
