package check

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCodeViolation is the diagnostic code of a provable out-of-bounds
// access.
const ErrCodeViolation = "E201"

// Violation describes one dimension of an access that always leaves its
// buffer.
type Violation struct {
	Buffer string `json:"buffer"`
	Kind   string `json:"kind"`
	Dim    int    `json:"dim"`
	Index  string `json:"index"`
	Range  string `json:"range"`
	Extent string `json:"extent"`
	Path   string `json:"path"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s of %s dim %d: index %s spans %s, extent %s (at %s)",
		v.Kind, v.Buffer, v.Dim, v.Index, v.Range, v.Extent, v.Path)
}

// ViolationError fails a build that contains provably out-of-bounds
// accesses.
type ViolationError struct {
	Program    string
	Violations []Violation
}

func (e *ViolationError) Error() string {
	var sb strings.Builder
	name := e.Program
	if name == "" {
		name = "program"
	}
	fmt.Fprintf(&sb, "[%s] %s: %d out-of-bounds access", ErrCodeViolation, name, len(e.Violations))
	if len(e.Violations) != 1 {
		sb.WriteString("es")
	}
	for _, v := range e.Violations {
		sb.WriteString("\n  ")
		sb.WriteString(v.String())
	}
	return sb.String()
}

// IsViolation reports whether err is (or wraps) a ViolationError.
func IsViolation(err error) bool {
	var ve *ViolationError
	return errors.As(err, &ve)
}
