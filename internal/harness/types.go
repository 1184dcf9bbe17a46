package harness

// Event types recorded in a scenario trace.
const (
	EventDecision = "decision"
	EventBuild    = "build"
	EventRun      = "run"
)

// TraceEvent is one step of a scenario: a classified access dimension, the
// outcome of the bounds pass, or one execution.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// Decision events.
	Buffer  string `json:"buffer,omitempty"`
	Access  string `json:"access,omitempty"`
	Dim     int    `json:"dim,omitempty"`
	Index   string `json:"index,omitempty"`
	Verdict string `json:"verdict,omitempty"`

	// Build events.
	Guards int `json:"guards,omitempty"`

	// Run events.
	Run   string `json:"run,omitempty"`
	Steps int    `json:"steps,omitempty"`

	// Outcome is the build or run outcome.
	Outcome string `json:"outcome,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation of the scenario held.
	Pass bool `json:"pass"`

	// Trace lists decisions, the build and runs in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// IR is the program after the pass, as printed IR.
	IR string `json:"ir,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
