package instrument

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/roach88/tensorcheck/internal/check"
	"github.com/roach88/tensorcheck/internal/ir"
	"github.com/roach88/tensorcheck/internal/walker"
)

// Config controls the pass.
type Config struct {
	// Enabled turns instrumentation on. When false the input is returned
	// unchanged and no analysis is performed.
	Enabled bool

	// Program names the program in diagnostics.
	Program string

	// Scalars lists free variables that are runtime scalars of unknown
	// sign rather than buffer sizes.
	Scalars []string

	Logger *slog.Logger
}

// DefaultConfig returns the disabled configuration.
func DefaultConfig() Config {
	return Config{Enabled: false}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Report summarises one run of the pass.
type Report struct {
	Enabled   bool
	Decisions []check.Decision

	// Guards is the number of bounds asserts inserted.
	Guards int

	// Bindings is the number of let statements introduced for indices.
	Bindings int

	// Checked counts undecided accesses that were already guarded.
	Checked int
}

// Count returns the number of accesses with verdict v.
func (r *Report) Count(v check.Verdict) int {
	return lo.CountBy(r.Decisions, func(d check.Decision) bool { return d.Verdict == v })
}

// Violations returns the provably out-of-bounds dimensions.
func (r *Report) Violations() []check.Violation {
	return check.Violations(r.Decisions)
}

// Analyze classifies every access under root without rewriting anything.
func Analyze(root ir.Stmt, opts ...walker.Option) (*Report, error) {
	res, err := walker.Walk(root, opts...)
	if err != nil {
		return nil, err
	}
	return &Report{Enabled: true, Decisions: check.Analyze(res)}, nil
}

// Instrument runs the pass over root. The returned tree is root itself
// when nothing needed guarding.
func Instrument(root ir.Stmt, cfg Config) (ir.Stmt, *Report, error) {
	if !cfg.Enabled {
		return root, &Report{}, nil
	}
	log := cfg.logger()

	report, err := Analyze(root, walker.WithScalars(cfg.Scalars...))
	if err != nil {
		return nil, nil, fmt.Errorf("bounds analysis: %w", err)
	}

	for _, dec := range report.Decisions {
		for _, d := range dec.Dims {
			log.Debug("access classified",
				"program", cfg.Program,
				"path", dec.Access.Path,
				"buffer", dec.Access.Buffer.Name,
				"dim", d.Site.Dim,
				"range", d.Site.Range.String(),
				"verdict", d.Verdict.String(),
			)
		}
	}

	if vs := report.Violations(); len(vs) > 0 {
		log.Info("bounds check failed", "program", cfg.Program, "violations", len(vs))
		return nil, report, &check.ViolationError{Program: cfg.Program, Violations: vs}
	}

	e := newEmitter(root)
	for _, dec := range report.Decisions {
		if dec.Verdict != check.Undecided {
			continue
		}
		if dec.Access.Checked {
			report.Checked++
			continue
		}
		unit := dec.Access.Unit
		e.plans[unit] = append(e.plans[unit], dec)
	}

	out := root
	if len(e.plans) > 0 {
		out = e.stmt(root)
	}
	report.Guards = e.guards
	report.Bindings = e.bindings

	log.Info("bounds check pass",
		"program", cfg.Program,
		"accesses", len(report.Decisions),
		"safe", report.Count(check.Safe),
		"undecided", report.Count(check.Undecided),
		"guards", report.Guards,
	)
	return out, report, nil
}

// InstrumentProgram instruments a program body. Declared parameters that
// do not size any buffer are treated as scalars. The input program is not
// modified.
func InstrumentProgram(p *ir.Program, cfg Config) (*ir.Program, *Report, error) {
	cfg.Scalars = scalarsOf(p, cfg.Scalars)
	if cfg.Program == "" {
		cfg.Program = p.Name
	}

	body, report, err := Instrument(p.Body, cfg)
	if err != nil {
		return nil, report, err
	}
	if body == p.Body {
		return p, report, nil
	}
	out := *p
	out.Body = body
	return &out, report, nil
}

// AnalyzeProgram classifies every access of p without rewriting it.
func AnalyzeProgram(p *ir.Program) (*Report, error) {
	report, err := Analyze(p.Body, walker.WithScalars(scalarsOf(p, nil)...))
	if err != nil {
		return nil, fmt.Errorf("bounds analysis: %w", err)
	}
	return report, nil
}

// scalarsOf adds the declared parameters of p that size no buffer.
func scalarsOf(p *ir.Program, scalars []string) []string {
	sizes := p.SizeParams()
	for _, name := range p.Params {
		if !slices.Contains(sizes, name) && !slices.Contains(scalars, name) {
			scalars = append(slices.Clip(scalars), name)
		}
	}
	return scalars
}
