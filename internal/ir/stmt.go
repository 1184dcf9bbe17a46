package ir

import (
	"fmt"
	"strings"
)

// Stmt is a sealed interface for statement nodes.
type Stmt interface {
	stmtNode()
}

// ForKind is the schedule annotation of a loop. Every kind iterates the
// same index range; the kind only tells codegen how to execute it.
type ForKind int

const (
	Serial ForKind = iota
	Parallel
	Vectorized
	Unrolled
)

func (k ForKind) String() string {
	switch k {
	case Serial:
		return "serial"
	case Parallel:
		return "parallel"
	case Vectorized:
		return "vectorized"
	case Unrolled:
		return "unrolled"
	default:
		return fmt.Sprintf("ForKind(%d)", int(k))
	}
}

// ParseForKind parses the textual loop kind. Empty means serial.
func ParseForKind(s string) (ForKind, error) {
	switch strings.ToLower(s) {
	case "", "serial":
		return Serial, nil
	case "parallel":
		return Parallel, nil
	case "vectorized", "vectorize":
		return Vectorized, nil
	case "unrolled", "unroll":
		return Unrolled, nil
	default:
		return Serial, fmt.Errorf("unknown loop kind %q", s)
	}
}

// For iterates Var over [Min, Min+Extent).
type For struct {
	Var    string
	Min    Expr
	Extent Expr
	Kind   ForKind
	Body   Stmt
}

// LetStmt binds Var to Value for the duration of Body.
type LetStmt struct {
	Var   string
	Value Expr
	Body  Stmt
}

// IfThenElse runs Then when Cond holds, otherwise Else (which may be nil).
type IfThenElse struct {
	Cond Expr
	Then Stmt
	Else Stmt
}

// Block runs statements in order.
type Block struct {
	Stmts []Stmt
}

// Store writes Value into one element of Buffer.
type Store struct {
	Buffer  *Buffer
	Indices []Expr
	Value   Expr
	Checked bool
}

// Evaluate evaluates an expression for its side effects (trace intrinsics).
type Evaluate struct {
	Value Expr
}

// Allocate declares a local buffer visible in Body.
type Allocate struct {
	Buffer *Buffer
	Body   Stmt
}

// ProducerConsumer marks the region computing Stage. After compute_at the
// producer is fused into the consumer's loop nest and shares its scope.
type ProducerConsumer struct {
	Stage string
	Body  Stmt
}

// AssertKind distinguishes user assertions from inserted bounds guards.
type AssertKind int

const (
	AssertGeneral AssertKind = iota
	AssertBounds
)

func (k AssertKind) String() string {
	if k == AssertBounds {
		return "bounds"
	}
	return "general"
}

// Assert checks Cond and fails execution with Message when it does not
// hold; otherwise Body (which may be nil) runs. Buffer names the guarded
// buffer for AssertBounds.
type Assert struct {
	Kind    AssertKind
	Cond    Expr
	Message string
	Buffer  string
	Body    Stmt
}

func (*For) stmtNode()              {}
func (*LetStmt) stmtNode()          {}
func (*IfThenElse) stmtNode()       {}
func (*Block) stmtNode()            {}
func (*Store) stmtNode()            {}
func (*Evaluate) stmtNode()         {}
func (*Allocate) stmtNode()         {}
func (*ProducerConsumer) stmtNode() {}
func (*Assert) stmtNode()           {}

// Seq returns a single statement for stmts: the statement itself when there
// is exactly one, a Block otherwise.
func Seq(stmts ...Stmt) Stmt {
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &Block{Stmts: stmts}
}

// Loop creates a For starting at zero.
func Loop(v string, extent Expr, kind ForKind, body ...Stmt) *For {
	return &For{Var: v, Min: Int(0), Extent: extent, Kind: kind, Body: Seq(body...)}
}

// Let creates a LetStmt.
func Let(v string, value Expr, body ...Stmt) *LetStmt {
	return &LetStmt{Var: v, Value: value, Body: Seq(body...)}
}
