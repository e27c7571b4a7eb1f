package elab

import (
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/stowed"
	"github.com/npillmayer/genie/syntax"
)

// Coercions operate on the value on top of the expression stack. They are
// driven by two static modes: the a-posteriori mode of a unit and the mode
// its context requires. The binder has checked that the one can be coerced
// into the other.

// maxCoercions bounds chains of dereferencing and deproceduring.
const maxCoercions = 64

func size(m *mode.Mode) int {
	if m == nil {
		return 0
	}
	return m.Size()
}

// strong elaborates u and coerces its value to want.
func (x *Interpreter) strong(u *syntax.Node, want *mode.Mode) error {
	if u.Attr == syntax.Display && len(u.Children) == 0 && want != nil && want.IsRow() {
		return x.locate(u, x.emptyRow(want))
	}
	if err := x.eval(u); err != nil {
		return err
	}
	return x.locate(u, x.coerce(u.Pos, u.Mode, want))
}

// emptyRow pushes a row of mode m without elements, the value of an empty
// display.
func (x *Interpreter) emptyRow(m *mode.Mode) error {
	bounds := make([]stowed.Bound, m.Dims())
	for i := range bounds {
		bounds[i] = stowed.Bound{Lower: 1, Upper: 0}
	}
	r, _, err := stowed.NewRow(x.rt, m.Element(), bounds, x.rt.Owner())
	if err != nil {
		return err
	}
	x.rt.PushRef(r)
	return nil
}

// void elaborates u and discards its value. Names of parameterless
// procedures are called first.
func (x *Interpreter) void(u *syntax.Node) error {
	if err := x.eval(u); err != nil {
		return err
	}
	m := u.Mode
	switch u.Attr {
	case syntax.Identifier, syntax.Slice, syntax.Selection:
		if p := parameterless(m); p != nil {
			if err := x.coerce(u.Pos, m, p); err != nil {
				return x.locate(u, err)
			}
			if err := x.deproc(u.Pos, p); err != nil {
				return x.locate(u, err)
			}
			m = p.Sub
		}
	}
	x.rt.Pop(size(m))
	return nil
}

// parameterless returns the procedure mode m refers to, if it is one
// without parameters.
func parameterless(m *mode.Mode) *mode.Mode {
	for i := 0; i < maxCoercions && m != nil && m.Kind == mode.Ref; i++ {
		m = m.Sub
	}
	if m.IsParameterless() {
		return m
	}
	return nil
}

// coerce converts the value on top of the stack from mode from to mode to.
func (x *Interpreter) coerce(pos genie.Pos, from, to *mode.Mode) error {
	rt := x.rt
	for i := 0; i < maxCoercions; i++ {
		switch {
		case from == nil || to == nil:
			return nil
		case to.Kind == mode.Void || to.Kind == mode.Error:
			rt.Pop(size(from))
			return nil
		case from.Kind == mode.Error: // SKIP or jump without a mode of its own
			rt.Reserve(size(to))
			return nil
		case mode.Equivalent(from, to) || mode.SameRow(from, to):
			return nil
		case to.Kind == mode.Rows && from.IsRow():
			return nil
		case to.Kind == mode.Union && to.MemberIndex(from) >= 0:
			x.unite(from, to)
			return nil
		case to.Kind == mode.Union && from.Kind == mode.Union:
			x.reunite(from, to)
			return nil
		case from.Kind == mode.Ref:
			if err := x.deref(pos, from); err != nil {
				return err
			}
			from = from.Sub
		case from.IsParameterless():
			if err := x.deproc(pos, from); err != nil {
				return err
			}
			from = from.Sub
		case mode.Widens(from, to):
			rt.PushReal(float64(rt.PopInt()))
			return nil
		default:
			runtime.Internal("no coercion from %v to %v", from, to)
		}
	}
	runtime.Internal("coercion from %v to %v does not terminate", from, to)
	return nil
}

// deref replaces a name of mode m by the value it refers to.
func (x *Interpreter) deref(pos genie.Pos, m *mode.Mode) error {
	r := x.rt.PopRef()
	if r.IsNil() {
		return runtime.Errorf(pos, runtime.Undefined, "NIL cannot be dereferenced")
	}
	cell, err := x.rt.Cell(r, size(m.Sub))
	if err != nil {
		return err
	}
	if m.Sub.Kind != mode.Struct && !runtime.IsInitialized(cell) {
		return runtime.Errorf(pos, runtime.Uninitialised, "value of mode %v is uninitialised", m.Sub)
	}
	x.rt.PushBytes(cell)
	return nil
}

// deproc calls the parameterless procedure of mode m on top of the stack.
func (x *Interpreter) deproc(pos genie.Pos, m *mode.Mode) error {
	return x.invoke(pos, x.rt.PopProc(), m)
}

// unite wraps a value of member mode from into a cell of union mode to.
func (x *Interpreter) unite(from, to *mode.Mode) {
	v := x.rt.PopCopy(size(from))
	cell := x.rt.Reserve(size(to))
	runtime.PutUnion(cell, to.Members[to.MemberIndex(from)].ID)
	copy(runtime.Payload(cell), v)
}

// reunite moves a united value into a larger union.
func (x *Interpreter) reunite(from, to *mode.Mode) {
	v := x.rt.PopCopy(size(from))
	cell := x.rt.Reserve(size(to))
	if runtime.IsInitialized(v) {
		runtime.PutUnion(cell, runtime.UnionMode(v))
		copy(runtime.Payload(cell), runtime.Payload(v))
	}
}
