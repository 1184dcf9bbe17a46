package walker

import (
	"slices"

	"github.com/roach88/tensorcheck/internal/interval"
	"github.com/roach88/tensorcheck/internal/ir"
)

// Lane handling.
//
// A buffer whose element is a vector (Lanes > 1) is indexed per element:
// its extent counts vectors, so the lane count never scales the bound.
// A vector index (Ramp) touches several elements at once; its interval
// already covers every lane, and its guard only needs the extreme lanes.

func indexLanes(indices []ir.Expr) int {
	lanes := 1
	for _, idx := range indices {
		lanes = max(lanes, ir.Lanes(idx))
	}
	return lanes
}

func dependsOn(e ir.Expr, vars []string) bool {
	if len(vars) == 0 {
		return false
	}
	return slices.ContainsFunc(ir.FreeVars(e), func(v string) bool {
		return slices.Contains(vars, v)
	})
}

// Endpoints returns the lowest and highest lane of a ramp index whose
// stride is a constant, so a guard can test two scalars instead of every
// lane. Scalar indices are their own endpoints. ok is false for vector
// indices of any other form; their guard must compare lane-wise.
func Endpoints(idx ir.Expr, s *interval.Scope) (first, last ir.Expr, ok bool) {
	switch n := idx.(type) {
	case *ir.Ramp:
		if ir.Lanes(n.Base) != 1 {
			return nil, nil, false
		}
		stride, isPoint := interval.Eval(n.Stride, s).IsPoint()
		if !isPoint {
			return nil, nil, false
		}
		c, isConst := stride.IsConst()
		if !isConst {
			return nil, nil, false
		}
		end := ir.Add(n.Base, ir.Int(c*int64(n.Lanes-1)))
		if c < 0 {
			return end, n.Base, true
		}
		return n.Base, end, true
	case *ir.Broadcast:
		if ir.Lanes(n.Value) != 1 {
			return nil, nil, false
		}
		return n.Value, n.Value, true
	default:
		if ir.Lanes(idx) != 1 {
			return nil, nil, false
		}
		return idx, idx, true
	}
}
