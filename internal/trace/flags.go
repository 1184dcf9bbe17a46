package trace

import (
	"errors"
	"fmt"

	"github.com/xyproto/env/v2"
)

// EnvVar holds the trace flags of a process, e.g.
// "process_tracing=1:trace_log_file=/tmp/trace.log".
const EnvVar = "TENSORCHECK_TRACE"

const (
	maxFlagsLen = 5024
	maxValueLen = 512
)

// ErrMalformed is wrapped by every ParseFlags error.
var ErrMalformed = errors.New("malformed trace flags")

// Flags configures runtime tracing.
type Flags struct {
	// ProcessTracing enables trace output.
	ProcessTracing bool

	// LogFile receives the output, appended to. Empty means stdout.
	LogFile string
}

type parseState int

const (
	stateFlag parseState = iota
	stateValue
)

// ParseFlags reads name=value pairs separated by ':'. Names and values
// may only contain [0-9A-Za-z_./]. Unknown names are skipped. A boolean
// flag is true for "1" or "true".
func ParseFlags(s string) (Flags, error) {
	var f Flags
	if len(s) > maxFlagsLen {
		return f, fmt.Errorf("%w: %d bytes exceeds %d", ErrMalformed, len(s), maxFlagsLen)
	}

	state := stateFlag
	start := 0
	var name string
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch state {
		case stateFlag:
			if ch == '=' {
				tok, err := token(s, start, i)
				if err != nil {
					return f, err
				}
				name = tok
				state = stateValue
				start = i + 1
			} else if !validChar(ch) {
				return f, fmt.Errorf("%w: invalid character %q at %d", ErrMalformed, ch, i)
			}
		case stateValue:
			if ch == ':' {
				value, err := token(s, start, i)
				if err != nil {
					return f, err
				}
				f.set(name, value)
				state = stateFlag
				start = i + 1
			} else if !validChar(ch) {
				return f, fmt.Errorf("%w: invalid character %q at %d", ErrMalformed, ch, i)
			}
		}
	}
	if state == stateValue {
		value, err := token(s, start, len(s))
		if err != nil {
			return f, err
		}
		f.set(name, value)
	}
	return f, nil
}

// FromEnv parses EnvVar. An unset variable yields disabled tracing.
func FromEnv() (Flags, error) {
	return ParseFlags(env.Str(EnvVar))
}

func token(s string, start, end int) (string, error) {
	if end <= start {
		return "", fmt.Errorf("%w: empty token at %d", ErrMalformed, start)
	}
	if end-start >= maxValueLen {
		return "", fmt.Errorf("%w: token at %d longer than %d bytes", ErrMalformed, start, maxValueLen-1)
	}
	return s[start:end], nil
}

func (f *Flags) set(name, value string) {
	switch name {
	case "process_tracing":
		switch len(value) {
		case 1:
			f.ProcessTracing = value == "1"
		case 4, 5:
			f.ProcessTracing = value == "true"
		}
	case "trace_log_file":
		f.LogFile = value
	}
}

func validChar(ch byte) bool {
	return ch >= '0' && ch <= '9' ||
		ch >= 'a' && ch <= 'z' ||
		ch >= 'A' && ch <= 'Z' ||
		ch == '_' || ch == '.' || ch == '/'
}
