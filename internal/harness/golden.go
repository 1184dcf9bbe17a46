package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tensorcheck/internal/ir"
)

// TraceSnapshot is the golden form of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Pass         bool         `json:"pass"`
	Trace        []TraceEvent `json:"trace"`
	IR           string       `json:"ir,omitempty"`
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// handles maps, slices and primitives. Zero fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		m := map[string]any{
			"seq":  e.Seq,
			"type": e.Type,
		}
		put := func(key, v string) {
			if v != "" {
				m[key] = v
			}
		}
		put("buffer", e.Buffer)
		put("access", e.Access)
		put("index", e.Index)
		put("verdict", e.Verdict)
		put("run", e.Run)
		put("outcome", e.Outcome)
		put("detail", e.Detail)
		if e.Type == EventDecision {
			m["dim"] = e.Dim
		}
		if e.Type == EventBuild {
			m["guards"] = e.Guards
		}
		if e.Type == EventRun {
			m["steps"] = e.Steps
		}
		trace[i] = m
	}

	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"pass":          s.Pass,
		"trace":         trace,
	}
	if s.IR != "" {
		out["ir"] = s.IR
	}
	return out
}

// Snapshot renders a result as canonical JSON.
func Snapshot(name string, result *Result) ([]byte, error) {
	snap := TraceSnapshot{
		ScenarioName: name,
		Pass:         result.Pass,
		Trace:        result.Trace,
		IR:           result.IR,
	}
	return ir.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := Snapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
