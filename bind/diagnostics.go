package bind

import (
	"fmt"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/npillmayer/genie"
)

// Code classifies diagnostics.
type Code int16

// Diagnostic codes.
const (
	NoCode Code = iota
	Undeclared
	Duplicate
	Shadowed
	Unused
	ModeMismatch
	NoOperator
	AmbiguousOperator
	AmbiguousUnion
	DuplicateField
	CyclicMode
	Arity
	NoPriority
	NotAName
	NotAProcedure
	NotARow
	NoField
	JumpIntoParallel
)

var codeNames = map[Code]string{
	Undeclared: "undeclared", Duplicate: "duplicate", Shadowed: "shadowed",
	Unused: "unused", ModeMismatch: "mode-mismatch", NoOperator: "no-operator",
	AmbiguousOperator: "ambiguous-operator", AmbiguousUnion: "ambiguous-union",
	DuplicateField: "duplicate-field", CyclicMode: "cyclic-mode", Arity: "arity",
	NoPriority: "no-priority", NotAName: "not-a-name", NotAProcedure: "not-a-procedure",
	NotARow: "not-a-row", NoField: "no-field", JumpIntoParallel: "jump-into-parallel",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int16(c))
}

// Diagnostic is a message of the binder.
type Diagnostic struct {
	Pos      genie.Pos
	Severity genie.Severity
	Code     Code
	Message  string
	seq      int // order of reporting, breaks ties between equal positions
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// diagnostics are kept sorted by source position.
func byPosition(a, b interface{}) int {
	d1, d2 := a.(Diagnostic), b.(Diagnostic)
	switch {
	case d1.Pos.Before(d2.Pos):
		return -1
	case d2.Pos.Before(d1.Pos):
		return 1
	}
	return d1.seq - d2.seq
}

func newDiagnostics() *treeset.Set {
	return treeset.NewWith(byPosition)
}

func (b *Binder) report(pos genie.Pos, sev genie.Severity, code Code, format string, args ...interface{}) {
	b.seq++
	d := Diagnostic{
		Pos:      pos,
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		seq:      b.seq,
	}
	tracer().Debugf("%s", d)
	b.diags.Add(d)
}

func (b *Binder) errorf(pos genie.Pos, code Code, format string, args ...interface{}) {
	b.report(pos, genie.Error, code, format, args...)
}

func (b *Binder) warnf(pos genie.Pos, code Code, format string, args ...interface{}) {
	b.report(pos, genie.Warning, code, format, args...)
}
