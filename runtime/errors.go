package runtime

import (
	"fmt"

	"github.com/npillmayer/genie"
)

// Code classifies fatal run-time errors.
type Code int

// Codes of run-time errors.
const (
	NoError Code = iota
	StackOverflow
	ScopeViolation
	DifferentBounds
	IndexOutOfBounds
	Arithmetic
	Uninitialised
	ResourceExhausted
	Deadlock
	TimeLimit
	Undefined
	InternalConsistency
)

var codeNames = [...]string{
	NoError:             "no error",
	StackOverflow:       "stack overflow",
	ScopeViolation:      "scope violation",
	DifferentBounds:     "different bounds",
	IndexOutOfBounds:    "index out of bounds",
	Arithmetic:          "arithmetic fault",
	Uninitialised:       "uninitialised value",
	ResourceExhausted:   "resources exhausted",
	Deadlock:            "deadlock",
	TimeLimit:           "time limit exceeded",
	Undefined:           "undefined",
	InternalConsistency: "internal consistency",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is a fatal run-time error. It terminates the program.
type Error struct {
	Pos     genie.Pos
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
}

// Errorf creates a run-time error.
func Errorf(pos genie.Pos, code Code, format string, args ...interface{}) *Error {
	return &Error{Pos: pos, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Fail raises a run-time error as a panic. Operations deep inside the
// stacks, which do not return errors, use it. The panic is recovered by the
// elaborator at its top level.
func Fail(pos genie.Pos, code Code, format string, args ...interface{}) {
	panic(Errorf(pos, code, format, args...))
}

// Internal reports an implementation error. It is never recovered from,
// except to raise the abend flag and report.
func Internal(format string, args ...interface{}) {
	panic(Errorf(genie.NoPos, InternalConsistency, format, args...))
}

// AsError converts a recovered panic value into an error. Values which are
// not run-time errors are re-raised.
func AsError(r interface{}) error {
	switch x := r.(type) {
	case nil:
		return nil
	case *Error:
		return x
	}
	panic(r)
}
