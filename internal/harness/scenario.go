package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tensorcheck/internal/check"
)

// Scenario is one conformance case: a program, whether the bounds pass is
// enabled, what the analysis must conclude and how executions must end.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the CUE source holding the program. Relative paths are
	// resolved against the scenario file's directory.
	Program string `yaml:"program"`

	// Entry names the program under the top-level "program" field.
	Entry string `yaml:"entry"`

	// Instrument enables the bounds pass.
	Instrument bool `yaml:"instrument"`

	// Build is the expected outcome of the pass: "ok" (default) or "unsafe".
	Build string `yaml:"build,omitempty"`

	// Guards, when set, is the expected number of inserted guards.
	Guards *int `yaml:"guards,omitempty"`

	// Decisions are expected classifications. Each must match at least
	// one recorded dimension.
	Decisions []DecisionExpect `yaml:"decisions,omitempty"`

	// Runs execute the (possibly instrumented) program.
	Runs []RunStep `yaml:"runs,omitempty"`
}

// DecisionExpect matches ledger decisions. Empty fields match anything.
type DecisionExpect struct {
	Buffer  string `yaml:"buffer"`
	Access  string `yaml:"access,omitempty"`
	Dim     *int   `yaml:"dim,omitempty"`
	Verdict string `yaml:"verdict"`

	// Count, when set, is the exact number of matching decisions.
	Count *int `yaml:"count,omitempty"`
}

// RunStep is one execution with concrete parameters.
type RunStep struct {
	Name   string            `yaml:"name"`
	Params map[string]int64  `yaml:"params"`
	Fill   map[string]string `yaml:"fill,omitempty"`

	// Expect is the execution outcome (see Outcome constants).
	Expect string `yaml:"expect"`

	// Output lists the expected leading elements of result buffers.
	Output map[string][]float64 `yaml:"output,omitempty"`

	// MaxSteps overrides the interpreter quota.
	MaxSteps int `yaml:"max_steps,omitempty"`
}

// Build outcomes.
const (
	BuildOK     = "ok"
	BuildUnsafe = "unsafe"
)

// Execution outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeBoundsError     = "bounds_error"
	OutcomeMemoryFault     = "memory_fault"
	OutcomeAssertionFailed = "assertion_failed"
	OutcomeQuotaExceeded   = "quota_exceeded"
	OutcomeError           = "error"
)

var outcomes = []string{
	OutcomeOK, OutcomeBoundsError, OutcomeMemoryFault,
	OutcomeAssertionFailed, OutcomeQuotaExceeded, OutcomeError,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Program paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Build == "" {
		scenario.Build = BuildOK
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	slices.Sort(paths)

	var scenarios []*Scenario
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if s.Entry == "" {
		return fmt.Errorf("entry is required")
	}
	if s.Build != BuildOK && s.Build != BuildUnsafe {
		return fmt.Errorf("build must be %q or %q, got %q", BuildOK, BuildUnsafe, s.Build)
	}
	if s.Guards != nil && *s.Guards < 0 {
		return fmt.Errorf("guards must be non-negative")
	}

	for i, d := range s.Decisions {
		if d.Buffer == "" {
			return fmt.Errorf("decisions[%d]: buffer is required", i)
		}
		if _, err := check.ParseVerdict(d.Verdict); err != nil {
			return fmt.Errorf("decisions[%d]: %w", i, err)
		}
		if d.Access != "" && d.Access != "load" && d.Access != "store" {
			return fmt.Errorf("decisions[%d]: access must be load or store, got %q", i, d.Access)
		}
	}

	names := make(map[string]bool)
	for i, r := range s.Runs {
		if r.Name == "" {
			return fmt.Errorf("runs[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("runs[%d]: duplicate run name %q", i, r.Name)
		}
		names[r.Name] = true
		if !slices.Contains(outcomes, r.Expect) {
			return fmt.Errorf("runs[%d]: unknown expect %q", i, r.Expect)
		}
	}
	return nil
}
