package store

import (
	"fmt"
	"strconv"

	"github.com/roach88/tensorcheck/internal/check"
	"github.com/roach88/tensorcheck/internal/instrument"
	"github.com/roach88/tensorcheck/internal/ir"
)

// Run is one analysed program.
type Run struct {
	ID           string `json:"id"`
	Seq          int64  `json:"seq"`
	Program      string `json:"program"`
	ProgramHash  string `json:"program_hash"`
	Instrumented bool   `json:"instrumented"`
	Safe         int    `json:"safe"`
	Undecided    int    `json:"undecided"`
	Unsafe       int    `json:"unsafe"`
	Guards       int    `json:"guards"`
}

// Decision is the ledger row for one access dimension.
type Decision struct {
	RunID   string `json:"run_id"`
	SiteID  string `json:"site_id"`
	Seq     int64  `json:"seq"` // position within the run, in program order
	Access  string `json:"access"`
	Buffer  string `json:"buffer"`
	Dim     int    `json:"dim"`
	Index   string `json:"index"`
	Range   string `json:"range"`
	Extent  string `json:"extent"`
	Verdict string `json:"verdict"`
	Path    string `json:"path"`
	Stage   string `json:"stage,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// NewRun builds the ledger rows for one report over p. The run id and seq
// are assigned by WriteRun.
func NewRun(p *ir.Program, report *instrument.Report, instrumented bool) (Run, []Decision, error) {
	hash, err := ir.ProgramHash(p)
	if err != nil {
		return Run{}, nil, fmt.Errorf("new run: %w", err)
	}

	run := Run{
		Program:      p.Name,
		ProgramHash:  hash,
		Instrumented: instrumented,
		Safe:         report.Count(check.Safe),
		Undecided:    report.Count(check.Undecided),
		Unsafe:       report.Count(check.Unsafe),
		Guards:       report.Guards,
	}

	var rows []Decision
	for n, dec := range report.Decisions {
		a := dec.Access
		// Paths are not unique when one statement reads a buffer twice.
		site := a.Path + "#" + strconv.Itoa(n)
		for _, d := range dec.Dims {
			id, err := ir.SiteID(hash, site, d.Site.Dim)
			if err != nil {
				return Run{}, nil, fmt.Errorf("new run: %w", err)
			}
			rows = append(rows, Decision{
				SiteID:  id,
				Seq:     int64(len(rows) + 1),
				Access:  a.Kind.String(),
				Buffer:  a.Buffer.Name,
				Dim:     d.Site.Dim,
				Index:   ir.ExprString(d.Site.Index),
				Range:   d.Site.Range.String(),
				Extent:  ir.ExprString(d.Site.Extent),
				Verdict: d.Verdict.String(),
				Path:    a.Path,
				Stage:   a.Stage,
				Reason:  d.Reason,
			})
		}
	}
	return run, rows, nil
}
