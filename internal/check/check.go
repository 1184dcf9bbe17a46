package check

import (
	"fmt"

	"github.com/roach88/tensorcheck/internal/interval"
	"github.com/roach88/tensorcheck/internal/ir"
	"github.com/roach88/tensorcheck/internal/walker"
)

// Verdict is the classification of one access or dimension.
type Verdict int

const (
	Safe Verdict = iota
	Undecided
	Unsafe
)

func (v Verdict) String() string {
	switch v {
	case Safe:
		return "safe"
	case Undecided:
		return "undecided"
	case Unsafe:
		return "unsafe"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// ParseVerdict parses the textual form produced by String.
func ParseVerdict(s string) (Verdict, error) {
	switch s {
	case "safe":
		return Safe, nil
	case "undecided":
		return Undecided, nil
	case "unsafe":
		return Unsafe, nil
	default:
		return Safe, fmt.Errorf("unknown verdict %q", s)
	}
}

// DimDecision is the verdict for one dimension of an access.
type DimDecision struct {
	Site    walker.Site
	Verdict Verdict

	// LowerProven and UpperProven record which half of 0 <= idx < extent
	// is statically known to hold. A guard only needs the other half.
	LowerProven bool
	UpperProven bool

	Reason string
}

// Decision is the verdict for a whole access.
type Decision struct {
	Access  *walker.Access
	Dims    []DimDecision
	Verdict Verdict
}

// ClassifyDim decides one site.
func ClassifyDim(site walker.Site) DimDecision {
	r, b := site.Range, site.Bound
	zero := interval.ConstBound(0)

	d := DimDecision{Site: site}
	d.LowerProven = interval.ProvablyLE(zero, r.Lo)
	// idx <= hi < smallest extent.
	d.UpperProven = interval.ProvablyLT(r.Hi, b.Lo)

	if d.LowerProven && d.UpperProven {
		d.Verdict = Safe
		d.Reason = fmt.Sprintf("%s within [0, %s)", r, extentString(b))
		return d
	}

	lowerBad := interval.ProvablyLT(r.Lo, zero)
	upperBad := false
	if ext, ok := b.IsPoint(); ok {
		upperBad = interval.ProvablyLE(interval.Exact(ext), r.Hi)
	}

	switch {
	case (lowerBad || upperBad) && site.Tight && site.Access.Executes:
		d.Verdict = Unsafe
		d.Reason = fmt.Sprintf("%s always reaches outside [0, %s)", r, extentString(b))
	case lowerBad || upperBad:
		d.Verdict = Undecided
		d.Reason = fmt.Sprintf("%s may reach outside [0, %s)", r, extentString(b))
	default:
		d.Verdict = Undecided
		d.Reason = fmt.Sprintf("cannot prove %s within [0, %s)", r, extentString(b))
	}
	return d
}

func extentString(b interval.Interval) string {
	if p, ok := b.IsPoint(); ok {
		return p.String()
	}
	return b.String()
}

// Classify decides an access from its sites: any Unsafe dimension makes
// it Unsafe, otherwise any Undecided dimension makes it Undecided.
func Classify(a *walker.Access, sites []walker.Site) Decision {
	dec := Decision{Access: a, Verdict: Safe}
	for _, s := range sites {
		d := ClassifyDim(s)
		dec.Dims = append(dec.Dims, d)
		if d.Verdict > dec.Verdict {
			dec.Verdict = d.Verdict
		}
	}
	return dec
}

// Analyze classifies every access of a walk, in program order.
func Analyze(res *walker.Result) []Decision {
	bySite := make(map[*walker.Access][]walker.Site, len(res.Accesses))
	for _, s := range res.Sites {
		bySite[s.Access] = append(bySite[s.Access], s)
	}
	out := make([]Decision, len(res.Accesses))
	for i, a := range res.Accesses {
		out[i] = Classify(a, bySite[a])
	}
	return out
}

// Violations collects the provably out-of-bounds dimensions.
func Violations(decisions []Decision) []Violation {
	var out []Violation
	for _, dec := range decisions {
		for _, d := range dec.Dims {
			if d.Verdict != Unsafe {
				continue
			}
			out = append(out, Violation{
				Buffer: dec.Access.Buffer.Name,
				Kind:   dec.Access.Kind.String(),
				Dim:    d.Site.Dim,
				Index:  ir.ExprString(d.Site.Index),
				Range:  d.Site.Range.String(),
				Extent: extentString(d.Site.Bound),
				Path:   dec.Access.Path,
			})
		}
	}
	return out
}
