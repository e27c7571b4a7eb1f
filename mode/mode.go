package mode

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the category of a mode.
type Kind uint8

// Kinds of modes.
const (
	Void Kind = iota
	Int
	Real
	Bool
	Char
	Sema
	Ref
	Row
	Flex
	Struct
	Union
	Proc
	Rows // any row, operand of the bounds interrogations
	Error
)

var kindNames = [...]string{
	Void:   "VOID",
	Int:    "INT",
	Real:   "REAL",
	Bool:   "BOOL",
	Char:   "CHAR",
	Sema:   "SEMA",
	Ref:    "REF",
	Row:    "ROW",
	Flex:   "FLEX",
	Struct: "STRUCT",
	Union:  "UNION",
	Proc:   "PROC",
	Rows:   "ROWS",
	Error:  "ERROR",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Cell sizes in bytes. See the package documentation for the layout.
const (
	Align     = 8
	SizeInt   = 16
	SizeReal  = 16
	SizeBool  = 8
	SizeChar  = 8
	SizeRef   = 24
	SizeProc  = 24
	SizeUnion = 8 // header; the largest member follows
)

// Field is a field of a structured mode.
type Field struct {
	Name string
	Mode *Mode
}

// Mode is a static type.
//
// Sub is the content of REF, ROW and FLEX modes and the result of PROC modes.
// A FLEX mode always has a ROW mode as its Sub.
type Mode struct {
	ID      int     // serial ID, assigned by a mode table
	Kind    Kind    // category
	Name    string  // indicant or standard name, if any
	Sub     *Mode   // REF/ROW/FLEX content, PROC result
	Dim     int     // dimension count of ROW modes
	Fields  []Field // STRUCT fields
	Members []*Mode // UNION members
	Params  []*Mode // PROC parameters

	pending   bool // an indicant whose declarer is not resolved yet
	size      int
	sized     bool
	expanding bool
}

// ErrCyclic is returned by Sizeof for modes which contain themselves.
var ErrCyclic = errors.New("mode contains itself")

// AlignUp rounds n up to the next multiple of Align.
func AlignUp(n int) int {
	return (n + Align - 1) / Align * Align
}

// Sizeof computes the cell size of a mode. It returns ErrCyclic if the mode
// has no finite size.
func Sizeof(m *Mode) (int, error) {
	if m == nil {
		return 0, nil
	}
	if m.sized {
		return m.size, nil
	}
	if m.expanding {
		return 0, fmt.Errorf("%w: %s", ErrCyclic, m)
	}
	if m.pending {
		return 0, fmt.Errorf("mode %s is not defined", m.Name)
	}
	m.expanding = true
	defer func() { m.expanding = false }()
	size := 0
	switch m.Kind {
	case Void, Error:
		size = 0
	case Int:
		size = SizeInt
	case Real:
		size = SizeReal
	case Bool:
		size = SizeBool
	case Char:
		size = SizeChar
	case Ref, Sema, Row, Flex, Rows:
		size = SizeRef
	case Proc:
		size = SizeProc
	case Struct:
		for _, f := range m.Fields {
			s, err := Sizeof(f.Mode)
			if err != nil {
				return 0, err
			}
			size += AlignUp(s)
		}
	case Union:
		max := 0
		for _, u := range m.Members {
			s, err := Sizeof(u)
			if err != nil {
				return 0, err
			}
			if s > max {
				max = s
			}
		}
		size = SizeUnion + AlignUp(max)
	default:
		return 0, fmt.Errorf("no size for mode kind %s", m.Kind)
	}
	m.size, m.sized = AlignUp(size), true
	return m.size, nil
}

// Size returns the cell size of a mode. Modes reaching this call must have
// been checked by Sizeof before; an unsized mode here is an internal error.
func (m *Mode) Size() int {
	s, err := Sizeof(m)
	if err != nil {
		panic(fmt.Sprintf("internal consistency: size of mode: %v", err))
	}
	return s
}

// FieldOffset returns the byte offset of field i of a structured mode.
func (m *Mode) FieldOffset(i int) int {
	offset := 0
	for j := 0; j < i; j++ {
		offset += AlignUp(m.Fields[j].Mode.Size())
	}
	return offset
}

// FieldIndex finds a field by name. Returns -1 if there is no such field.
func (m *Mode) FieldIndex(name string) int {
	for i, f := range m.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// IsPending is true for an indicant whose declarer has not been resolved.
func (m *Mode) IsPending() bool {
	return m != nil && m.pending
}

// Define copies the contents of def into m, which must be a pending indicant.
// The identity of m is kept, which is what makes recursive modes work.
func (m *Mode) Define(def *Mode) {
	name, id := m.Name, m.ID
	*m = *def
	m.Name, m.ID = name, id
	m.pending = false
	m.sized, m.expanding = false, false
}

// IsRow is true for ROW and FLEX modes.
func (m *Mode) IsRow() bool {
	return m != nil && (m.Kind == Row || m.Kind == Flex)
}

// IsStowed is true for modes whose values are represented with separate
// descriptors or may contain such: rows, structures and unions with
// stowed members.
func (m *Mode) IsStowed() bool {
	if m == nil {
		return false
	}
	switch m.Kind {
	case Row, Flex, Struct:
		return true
	case Union:
		return m.HasRows()
	}
	return false
}

// HasRows is true if a value of mode m contains row descriptors, i.e. if
// copying it needs more than a flat bit copy.
func (m *Mode) HasRows() bool {
	return hasRows(m, map[*Mode]bool{})
}

func hasRows(m *Mode, seen map[*Mode]bool) bool {
	if m == nil || seen[m] {
		return false
	}
	seen[m] = true
	switch m.Kind {
	case Row, Flex:
		return true
	case Struct:
		for _, f := range m.Fields {
			if hasRows(f.Mode, seen) {
				return true
			}
		}
	case Union:
		for _, u := range m.Members {
			if hasRows(u, seen) {
				return true
			}
		}
	}
	return false
}

// RowMode returns the ROW mode of a row: m itself or, for FLEX, its Sub.
// Returns nil for non-rows.
func (m *Mode) RowMode() *Mode {
	if m == nil {
		return nil
	}
	switch m.Kind {
	case Row:
		return m
	case Flex:
		return m.Sub
	}
	return nil
}

// Element returns the element mode of a row.
func (m *Mode) Element() *Mode {
	if r := m.RowMode(); r != nil {
		return r.Sub
	}
	return nil
}

// Dims returns the dimension count of a row mode.
func (m *Mode) Dims() int {
	if r := m.RowMode(); r != nil {
		return r.Dim
	}
	return 0
}

// MemberIndex returns the index of the member of a union which is equivalent
// to u, or -1.
func (m *Mode) MemberIndex(u *Mode) int {
	for i, v := range m.Members {
		if Equivalent(u, v) {
			return i
		}
	}
	return -1
}

// String produces a readable representation of the mode. Recursion is cut
// off at named modes.
func (m *Mode) String() string {
	var b strings.Builder
	m.write(&b, 0)
	return b.String()
}

func (m *Mode) write(b *strings.Builder, depth int) {
	if m == nil {
		b.WriteString("<nil>")
		return
	}
	if m.Name != "" && (depth > 0 || m.pending) {
		b.WriteString(m.Name)
		return
	}
	if depth > 8 {
		b.WriteString("...")
		return
	}
	switch m.Kind {
	case Ref:
		b.WriteString("REF ")
		m.Sub.write(b, depth+1)
	case Flex:
		b.WriteString("FLEX ")
		m.Sub.write(b, depth+1)
	case Row:
		b.WriteString("[")
		b.WriteString(strings.Repeat(",", m.Dim-1))
		b.WriteString("] ")
		m.Sub.write(b, depth+1)
	case Struct:
		b.WriteString("STRUCT (")
		for i, f := range m.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			f.Mode.write(b, depth+1)
			b.WriteString(" ")
			b.WriteString(f.Name)
		}
		b.WriteString(")")
	case Union:
		b.WriteString("UNION (")
		for i, u := range m.Members {
			if i > 0 {
				b.WriteString(", ")
			}
			u.write(b, depth+1)
		}
		b.WriteString(")")
	case Proc:
		b.WriteString("PROC ")
		if len(m.Params) > 0 {
			b.WriteString("(")
			for i, p := range m.Params {
				if i > 0 {
					b.WriteString(", ")
				}
				p.write(b, depth+1)
			}
			b.WriteString(") ")
		}
		m.Sub.write(b, depth+1)
	default:
		if m.Name != "" {
			b.WriteString(m.Name)
		} else {
			b.WriteString(m.Kind.String())
		}
	}
}
