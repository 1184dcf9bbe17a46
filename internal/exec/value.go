package exec

import (
	"cmp"
	"math"

	"github.com/roach88/tensorcheck/internal/ir"
)

type kind int

const (
	kindInt kind = iota
	kindFloat
	kindBool
	kindString
)

// value is the result of evaluating an expression: one lane for scalars,
// several for vectors. Integers and booleans share ints.
type value struct {
	kind   kind
	ints   []int64
	floats []float64
	str    string
}

func intValue(vs ...int64) value     { return value{kind: kindInt, ints: vs} }
func floatValue(vs ...float64) value { return value{kind: kindFloat, floats: vs} }

func boolValue(bs []bool) value {
	ints := make([]int64, len(bs))
	for i, b := range bs {
		if b {
			ints[i] = 1
		}
	}
	return value{kind: kindBool, ints: ints}
}

func (v value) lanes() int {
	switch v.kind {
	case kindFloat:
		return len(v.floats)
	case kindString:
		return 1
	default:
		return len(v.ints)
	}
}

// Scalars broadcast: lane i of a one-lane value is its only lane.
func (v value) intAt(i int) int64 {
	if v.kind == kindFloat {
		return int64(v.floatAt(i))
	}
	if len(v.ints) == 1 {
		return v.ints[0]
	}
	return v.ints[i]
}

func (v value) floatAt(i int) float64 {
	if v.kind != kindFloat {
		return float64(v.intAt(i))
	}
	if len(v.floats) == 1 {
		return v.floats[0]
	}
	return v.floats[i]
}

func (v value) all() bool {
	for i, n := 0, v.lanes(); i < n; i++ {
		if v.intAt(i) == 0 {
			return false
		}
	}
	return true
}

func commonLanes(x, y value) (int, bool) {
	lx, ly := x.lanes(), y.lanes()
	switch {
	case lx == ly:
		return lx, true
	case lx == 1:
		return ly, true
	case ly == 1:
		return lx, true
	default:
		return 0, false
	}
}

func arith(op ir.BinaryOp, x, y value) (value, error) {
	if x.kind == kindString || y.kind == kindString {
		return value{}, newError(ErrCodeTypeMismatch, "arithmetic on string")
	}
	n, ok := commonLanes(x, y)
	if !ok {
		return value{}, newError(ErrCodeTypeMismatch, "%s on %d and %d lanes", op, x.lanes(), y.lanes())
	}

	if x.kind == kindFloat || y.kind == kindFloat {
		out := make([]float64, n)
		for i := range out {
			a, b := x.floatAt(i), y.floatAt(i)
			switch op {
			case ir.OpAdd:
				out[i] = a + b
			case ir.OpSub:
				out[i] = a - b
			case ir.OpMul:
				out[i] = a * b
			case ir.OpDiv:
				out[i] = a / b
			case ir.OpMod:
				out[i] = a - b*math.Floor(a/b)
			case ir.OpMin:
				out[i] = math.Min(a, b)
			case ir.OpMax:
				out[i] = math.Max(a, b)
			}
		}
		return floatValue(out...), nil
	}

	out := make([]int64, n)
	for i := range out {
		a, b := x.intAt(i), y.intAt(i)
		switch op {
		case ir.OpAdd:
			out[i] = a + b
		case ir.OpSub:
			out[i] = a - b
		case ir.OpMul:
			out[i] = a * b
		case ir.OpDiv, ir.OpMod:
			if b == 0 {
				return value{}, newError(ErrCodeDivisionByZero, "%d %s 0", a, op)
			}
			if op == ir.OpDiv {
				out[i] = ir.FloorDiv(a, b)
			} else {
				out[i] = ir.FloorMod(a, b)
			}
		case ir.OpMin:
			out[i] = min(a, b)
		case ir.OpMax:
			out[i] = max(a, b)
		}
	}
	return intValue(out...), nil
}

func compare(op ir.CompareOp, x, y value) (value, error) {
	if x.kind == kindString || y.kind == kindString {
		return value{}, newError(ErrCodeTypeMismatch, "comparison on string")
	}
	n, ok := commonLanes(x, y)
	if !ok {
		return value{}, newError(ErrCodeTypeMismatch, "%s on %d and %d lanes", op, x.lanes(), y.lanes())
	}
	isFloat := x.kind == kindFloat || y.kind == kindFloat
	out := make([]bool, n)
	for i := range out {
		var c int
		if isFloat {
			c = cmp.Compare(x.floatAt(i), y.floatAt(i))
		} else {
			c = cmp.Compare(x.intAt(i), y.intAt(i))
		}
		switch op {
		case ir.CmpLT:
			out[i] = c < 0
		case ir.CmpLE:
			out[i] = c <= 0
		case ir.CmpGT:
			out[i] = c > 0
		case ir.CmpGE:
			out[i] = c >= 0
		case ir.CmpEQ:
			out[i] = c == 0
		case ir.CmpNE:
			out[i] = c != 0
		}
	}
	return boolValue(out), nil
}

func logical(and bool, x, y value) (value, error) {
	n, ok := commonLanes(x, y)
	if !ok {
		return value{}, newError(ErrCodeTypeMismatch, "logical op on %d and %d lanes", x.lanes(), y.lanes())
	}
	out := make([]bool, n)
	for i := range out {
		a, b := x.intAt(i) != 0, y.intAt(i) != 0
		if and {
			out[i] = a && b
		} else {
			out[i] = a || b
		}
	}
	return boolValue(out), nil
}
