package runtime

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
)

// Value cells are byte slices laid out as described in package mode. Every
// cell starts with a status byte.

// Status bits.
const (
	StatusInitialized byte = 1 << iota
)

var le = binary.LittleEndian

// IsInitialized tests the status byte of a cell.
func IsInitialized(cell []byte) bool {
	return len(cell) > 0 && cell[0]&StatusInitialized != 0
}

// Clear marks a cell as uninitialised and zeroes it.
func Clear(cell []byte) {
	for i := range cell {
		cell[i] = 0
	}
}

// PutInt stores an INT.
func PutInt(cell []byte, v int64) {
	cell[0] = StatusInitialized
	le.PutUint64(cell[8:], uint64(v))
}

// GetInt loads an INT.
func GetInt(cell []byte) int64 {
	return int64(le.Uint64(cell[8:]))
}

// PutReal stores a REAL.
func PutReal(cell []byte, v float64) {
	cell[0] = StatusInitialized
	le.PutUint64(cell[8:], math.Float64bits(v))
}

// GetReal loads a REAL.
func GetReal(cell []byte) float64 {
	return math.Float64frombits(le.Uint64(cell[8:]))
}

// PutBool stores a BOOL.
func PutBool(cell []byte, v bool) {
	cell[0] = StatusInitialized
	if v {
		cell[1] = 1
	} else {
		cell[1] = 0
	}
}

// GetBool loads a BOOL.
func GetBool(cell []byte) bool {
	return cell[1] != 0
}

// PutChar stores a CHAR.
func PutChar(cell []byte, r rune) {
	cell[0] = StatusInitialized
	le.PutUint32(cell[4:], uint32(r))
}

// GetChar loads a CHAR.
func GetChar(cell []byte) rune {
	return rune(le.Uint32(cell[4:]))
}

// --- References ------------------------------------------------------------

// Segment tells where a reference points to.
type Segment uint8

// Segments.
const (
	SegNil   Segment = iota // NIL
	SegFrame                // frame stack, Offset is an absolute address
	SegHeap                 // heap handle, Offset is relative to the handle's storage
)

// Ref is a name, i.e. the address of a cell. Scope is the scope marker of
// the frame owning the cell, 0 for the heap.
type Ref struct {
	Segment Segment
	Handle  uint32
	Offset  int
	Scope   int
}

// Nil is the NIL name.
var Nil = Ref{}

// IsNil is true for NIL.
func (r Ref) IsNil() bool {
	return r.Segment == SegNil
}

// Plus returns a ref pointing n bytes further into the same storage.
func (r Ref) Plus(n int) Ref {
	r.Offset += n
	return r
}

func (r Ref) String() string {
	switch r.Segment {
	case SegFrame:
		return fmt.Sprintf("frame@%d", r.Offset)
	case SegHeap:
		return fmt.Sprintf("heap#%d+%d", r.Handle, r.Offset)
	}
	return "NIL"
}

// PutRef stores a name.
func PutRef(cell []byte, r Ref) {
	cell[0] = StatusInitialized
	cell[1] = byte(r.Segment)
	cell[2], cell[3] = 0, 0
	le.PutUint32(cell[4:], r.Handle)
	le.PutUint64(cell[8:], uint64(int64(r.Offset)))
	le.PutUint64(cell[16:], uint64(int64(r.Scope)))
}

// GetRef loads a name.
func GetRef(cell []byte) Ref {
	return Ref{
		Segment: Segment(cell[1]),
		Handle:  le.Uint32(cell[4:]),
		Offset:  int(int64(le.Uint64(cell[8:]))),
		Scope:   int(int64(le.Uint64(cell[16:]))),
	}
}

// HeapRef creates a name for the start of a heap handle.
func (rt *Runtime) HeapRef(id uint32) Ref {
	r := Ref{Segment: SegHeap, Handle: id}
	if hd := rt.Heap.Handle(id); hd != nil {
		r.Scope = hd.Owner.Scope
	}
	return r
}

// FrameRef creates a name for an absolute address in the frame stack,
// belonging to the frame at fp.
func (rt *Runtime) FrameRef(addr, fp int) Ref {
	return Ref{Segment: SegFrame, Offset: addr, Scope: rt.DynamicScope(fp)}
}

// Cell returns the storage a name refers to.
func (rt *Runtime) Cell(r Ref, size int) ([]byte, error) {
	switch r.Segment {
	case SegFrame:
		if r.Offset < 0 || r.Offset+size > len(rt.Frames) {
			return nil, Errorf(genie.NoPos, Undefined, "name %s outside of the frame stack", r)
		}
		return rt.Frames[r.Offset : r.Offset+size], nil
	case SegHeap:
		hd := rt.Heap.Handle(r.Handle)
		if hd == nil {
			return nil, Errorf(genie.NoPos, Undefined, "dangling name %s", r)
		}
		if r.Offset < 0 || r.Offset+size > len(hd.Data) {
			return nil, Errorf(genie.NoPos, Undefined, "name %s outside of its storage", r)
		}
		return hd.Data[r.Offset : r.Offset+size], nil
	}
	return nil, Errorf(genie.NoPos, Undefined, "NIL name")
}

// Object returns the Go object held by the handle a name refers to.
func (rt *Runtime) Object(r Ref) (interface{}, error) {
	if r.Segment != SegHeap {
		return nil, Errorf(genie.NoPos, Undefined, "%s does not refer to an object", r)
	}
	hd := rt.Heap.Handle(r.Handle)
	if hd == nil {
		return nil, Errorf(genie.NoPos, Undefined, "dangling name %s", r)
	}
	return hd.Object, nil
}

// CheckScope fails if a name of scope src would be stored in storage of
// scope dst, i.e. if it could outlive the frame it refers to.
func CheckScope(pos genie.Pos, src, dst int) error {
	if src > dst {
		return Errorf(pos, ScopeViolation, "name of scope %d assigned to storage of scope %d", src, dst)
	}
	return nil
}

// --- Procedures ------------------------------------------------------------

// ProcKind distinguishes routine texts from standard procedures.
type ProcKind uint8

// Kinds of procedure values.
const (
	NoProc ProcKind = iota
	Routine
	Builtin
)

// Environ is the frame a routine text has been elaborated in. Calls
// of the routine use it as their static link.
type Environ struct {
	FP    int // -1 if there is none
	Frame int // frame number, to detect stale environs
}

// NoEnviron is the environ of routines without a captured frame.
var NoEnviron = Environ{FP: -1}

// Proc is a procedure value. ID is the node ID of a routine text, or the
// index of a standard procedure.
type Proc struct {
	Kind ProcKind
	ID   int
	Env  Environ
}

// PutProc stores a procedure.
func PutProc(cell []byte, p Proc) {
	cell[0] = StatusInitialized
	cell[1] = byte(p.Kind)
	le.PutUint32(cell[4:], uint32(int32(p.ID)))
	le.PutUint64(cell[8:], uint64(int64(p.Env.FP)))
	le.PutUint64(cell[16:], uint64(int64(p.Env.Frame)))
}

// GetProc loads a procedure.
func GetProc(cell []byte) Proc {
	return Proc{
		Kind: ProcKind(cell[1]),
		ID:   int(int32(le.Uint32(cell[4:]))),
		Env: Environ{
			FP:    int(int64(le.Uint64(cell[8:]))),
			Frame: int(int64(le.Uint64(cell[16:]))),
		},
	}
}

// --- Unions ----------------------------------------------------------------

// PutUnion marks a union cell as holding a value of the mode with ID id.
// The payload starts at offset mode.SizeUnion.
func PutUnion(cell []byte, id int) {
	cell[0] = StatusInitialized
	le.PutUint32(cell[4:], uint32(id))
}

// UnionMode returns the mode ID of the value held by a union cell.
func UnionMode(cell []byte) int {
	return int(le.Uint32(cell[4:]))
}

// Payload returns the value part of a union cell.
func Payload(cell []byte) []byte {
	return cell[mode.SizeUnion:]
}

// Initialized decodes whether a cell of mode m holds a value. Structures
// are initialised if all of their fields are.
func Initialized(m *mode.Mode, cell []byte) bool {
	if m == nil {
		return false
	}
	switch m.Kind {
	case mode.Void, mode.Error:
		return true
	case mode.Struct:
		for i, f := range m.Fields {
			off := m.FieldOffset(i)
			if !Initialized(f.Mode, cell[off:off+f.Mode.Size()]) {
				return false
			}
		}
		return len(m.Fields) > 0
	}
	return IsInitialized(cell)
}
