package exec

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMemoryFault indicates an unguarded access outside the
	// buffer's allocation.
	ErrCodeMemoryFault RuntimeErrorCode = "MEMORY_FAULT"

	// ErrCodeBadArgument indicates missing or malformed parameters or
	// buffer contents.
	ErrCodeBadArgument RuntimeErrorCode = "BAD_ARGUMENT"

	// ErrCodeUnknownCall indicates a call to an unknown intrinsic.
	ErrCodeUnknownCall RuntimeErrorCode = "UNKNOWN_CALL"

	// ErrCodeQuotaExceeded indicates the step limit was reached.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeAssertionFailed indicates a general assertion did not hold.
	ErrCodeAssertionFailed RuntimeErrorCode = "ASSERTION_FAILED"

	// ErrCodeDivisionByZero indicates integer division or modulo by zero.
	ErrCodeDivisionByZero RuntimeErrorCode = "DIVISION_BY_ZERO"

	// ErrCodeTypeMismatch indicates operands of incompatible kinds or
	// lane counts.
	ErrCodeTypeMismatch RuntimeErrorCode = "TYPE_MISMATCH"
)

// RuntimeError is a failure of the interpreted program other than a bounds
// check.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string

	// Details contains additional context.
	Details map[string]string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code RuntimeErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BoundsError is returned when an inserted bounds guard fails. The guarded
// access has not been performed.
type BoundsError struct {
	Buffer  string
	Message string
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("bounds check failed on %s: %s", e.Buffer, e.Message)
}

// IsBoundsError reports whether err is (or wraps) a BoundsError.
func IsBoundsError(err error) bool {
	var be *BoundsError
	return errors.As(err, &be)
}

// IsMemoryFault reports whether err is a memory fault.
func IsMemoryFault(err error) bool {
	return hasCode(err, ErrCodeMemoryFault)
}

// IsQuotaError reports whether err is a step quota error.
func IsQuotaError(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

// Code returns the runtime error code of err, or "" when err is not a
// RuntimeError.
func Code(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func hasCode(err error, code RuntimeErrorCode) bool {
	return Code(err) == code
}
