package genie

import "fmt"

// --- Source positions ------------------------------------------------------

// Pos is a position in the source text a syntax node has been derived from.
// The parser is responsible for providing it; genie only passes it on to
// diagnostics and runtime errors.
type Pos struct {
	Line   int
	Column int
}

// NoPos is the position of synthesized nodes.
var NoPos = Pos{}

// IsNull is a predicate: is this position unknown?
func (p Pos) IsNull() bool {
	return p == NoPos
}

// Before compares two positions, line first.
func (p Pos) Before(other Pos) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

func (p Pos) String() string {
	if p.IsNull() {
		return "<?>"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// --- Severity --------------------------------------------------------------

// Severity classifies messages produced by the binder and the runtime.
type Severity int8

// Severity levels.
const (
	Hint Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Hint:
		return "hint"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("severity(%d)", int8(s))
}
