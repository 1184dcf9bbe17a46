package ir

import "fmt"

// Expr is a sealed interface for expression nodes.
// Only the types in this file implement Expr.
type Expr interface {
	exprNode() // Marker method - unexported to seal the interface
}

// IntImm is an integer constant.
type IntImm struct {
	Value int64
}

// FloatImm is a floating-point constant. It only appears in value
// expressions, never in well-formed index expressions.
type FloatImm struct {
	Value float64
}

// StringImm is a string constant (trace labels, buffer names passed to
// intrinsics).
type StringImm struct {
	Value string
}

// Var references a loop variable, a let-bound variable or a parameter.
type Var struct {
	Name string
}

// BinaryOp enumerates arithmetic operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv // floor division on integers
	OpMod // floor modulo on integers
	OpMin
	OpMax
)

// BinaryOps lists every arithmetic operator, in declaration order.
var BinaryOps = []BinaryOp{OpAdd, OpSub, OpMul, OpDiv, OpMod, OpMin, OpMax}

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "div"
	case OpMod:
		return "mod"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	default:
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
}

// Binary applies an arithmetic operator to two operands.
type Binary struct {
	Op BinaryOp
	X  Expr
	Y  Expr
}

// CompareOp enumerates comparison operators.
type CompareOp int

const (
	CmpLT CompareOp = iota
	CmpLE
	CmpGT
	CmpGE
	CmpEQ
	CmpNE
)

func (op CompareOp) String() string {
	switch op {
	case CmpLT:
		return "<"
	case CmpLE:
		return "<="
	case CmpGT:
		return ">"
	case CmpGE:
		return ">="
	case CmpEQ:
		return "=="
	case CmpNE:
		return "!="
	default:
		return fmt.Sprintf("CompareOp(%d)", int(op))
	}
}

// Negate returns the operator testing the complementary relation.
func (op CompareOp) Negate() CompareOp {
	switch op {
	case CmpLT:
		return CmpGE
	case CmpLE:
		return CmpGT
	case CmpGT:
		return CmpLE
	case CmpGE:
		return CmpLT
	case CmpEQ:
		return CmpNE
	default:
		return CmpEQ
	}
}

// Compare yields a boolean from two integer or float operands.
type Compare struct {
	Op CompareOp
	X  Expr
	Y  Expr
}

// And is logical conjunction.
type And struct {
	X Expr
	Y Expr
}

// Or is logical disjunction.
type Or struct {
	X Expr
	Y Expr
}

// Not is logical negation.
type Not struct {
	X Expr
}

// Ramp is the vector Base, Base+Stride, ..., Base+(Lanes-1)*Stride.
type Ramp struct {
	Base   Expr
	Stride Expr
	Lanes  int
}

// Broadcast replicates a scalar across Lanes lanes.
type Broadcast struct {
	Value Expr
	Lanes int
}

// Load reads one element of Buffer. Checked is set on accesses that a
// bounds guard already protects.
type Load struct {
	Buffer  *Buffer
	Indices []Expr
	Checked bool
}

// Call invokes an intrinsic. The analysis treats calls as opaque.
type Call struct {
	Name string
	Args []Expr
}

// Marker method implementations
func (*IntImm) exprNode()    {}
func (*FloatImm) exprNode()  {}
func (*StringImm) exprNode() {}
func (*Var) exprNode()       {}
func (*Binary) exprNode()    {}
func (*Compare) exprNode()   {}
func (*And) exprNode()       {}
func (*Or) exprNode()        {}
func (*Not) exprNode()       {}
func (*Ramp) exprNode()      {}
func (*Broadcast) exprNode() {}
func (*Load) exprNode()      {}
func (*Call) exprNode()      {}

// Int creates an integer constant.
func Int(v int64) *IntImm { return &IntImm{Value: v} }

// Float creates a floating-point constant.
func Float(v float64) *FloatImm { return &FloatImm{Value: v} }

// Str creates a string constant.
func Str(v string) *StringImm { return &StringImm{Value: v} }

// V creates a variable reference.
func V(name string) *Var { return &Var{Name: name} }

func Add(x, y Expr) *Binary { return &Binary{Op: OpAdd, X: x, Y: y} }
func Sub(x, y Expr) *Binary { return &Binary{Op: OpSub, X: x, Y: y} }
func Mul(x, y Expr) *Binary { return &Binary{Op: OpMul, X: x, Y: y} }
func Div(x, y Expr) *Binary { return &Binary{Op: OpDiv, X: x, Y: y} }
func Mod(x, y Expr) *Binary { return &Binary{Op: OpMod, X: x, Y: y} }
func Min(x, y Expr) *Binary { return &Binary{Op: OpMin, X: x, Y: y} }
func Max(x, y Expr) *Binary { return &Binary{Op: OpMax, X: x, Y: y} }

func LT(x, y Expr) *Compare { return &Compare{Op: CmpLT, X: x, Y: y} }
func LE(x, y Expr) *Compare { return &Compare{Op: CmpLE, X: x, Y: y} }
func GT(x, y Expr) *Compare { return &Compare{Op: CmpGT, X: x, Y: y} }
func GE(x, y Expr) *Compare { return &Compare{Op: CmpGE, X: x, Y: y} }
func EQ(x, y Expr) *Compare { return &Compare{Op: CmpEQ, X: x, Y: y} }
func NE(x, y Expr) *Compare { return &Compare{Op: CmpNE, X: x, Y: y} }

// Conjoin folds conditions into a left-nested conjunction.
// It returns nil when conds is empty.
func Conjoin(conds ...Expr) Expr {
	var out Expr
	for _, c := range conds {
		if c == nil {
			continue
		}
		if out == nil {
			out = c
			continue
		}
		out = &And{X: out, Y: c}
	}
	return out
}

// Lanes reports the vector width of an expression: Ramp and Broadcast
// widths propagate through arithmetic, everything else is scalar.
func Lanes(e Expr) int {
	switch n := e.(type) {
	case *Ramp:
		return n.Lanes
	case *Broadcast:
		return n.Lanes
	case *Binary:
		return max(Lanes(n.X), Lanes(n.Y))
	case *Compare:
		return max(Lanes(n.X), Lanes(n.Y))
	case *And:
		return max(Lanes(n.X), Lanes(n.Y))
	case *Or:
		return max(Lanes(n.X), Lanes(n.Y))
	case *Not:
		return Lanes(n.X)
	case *Load:
		l := 1
		for _, idx := range n.Indices {
			l = max(l, Lanes(idx))
		}
		return l * n.Buffer.ElemLanes()
	default:
		return 1
	}
}

// IsTrivial reports whether e is a constant or a bare variable, which can
// be evaluated repeatedly at no cost.
func IsTrivial(e Expr) bool {
	switch e.(type) {
	case *IntImm, *Var:
		return true
	default:
		return false
	}
}
