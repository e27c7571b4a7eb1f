package elab

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/bind"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/stowed"
	"github.com/npillmayer/genie/syntax"
)

// eval elaborates a unit, leaving a value of its a-posteriori mode on the
// expression stack.
func (x *Interpreter) eval(n *syntax.Node) error {
	x.last = n
	if err := x.sched.Aborted(); err != nil {
		return err
	}
	if n.HasFlag(syntax.Breakpoint) && x.rt.Monitor != nil {
		if err := x.rt.Monitor.Break(x.rt, n); err != nil {
			return err
		}
	}
	if x.trace || n.HasFlag(syntax.Trace) {
		tracer().P("thread", x.rt.Thread).Debugf("%s: %v", n, n.Mode)
	}
	if err := x.unit(n); err != nil {
		return x.locate(n, err)
	}
	return nil
}

func (x *Interpreter) unit(n *syntax.Node) error {
	rt := x.rt
	switch n.Attr {
	case syntax.IntDenot:
		rt.PushInt(n.Value.(int64))
	case syntax.RealDenot:
		rt.PushReal(n.Value.(float64))
	case syntax.BoolDenot:
		rt.PushBool(n.Value.(bool))
	case syntax.CharDenot:
		rt.PushChar(n.Value.(rune))
	case syntax.StringDenot:
		r, err := stowed.FromString(rt, n.Value.(string), rt.Owner())
		if err != nil {
			return err
		}
		rt.PushRef(r)
	case syntax.Identifier:
		return x.identifier(n)
	case syntax.Skip:
		rt.Reserve(size(n.Mode))
	case syntax.Nihil:
		if n.Mode.Kind == mode.Ref {
			rt.PushRef(runtime.Nil)
		} else {
			rt.Reserve(size(n.Mode))
		}
	case syntax.Jump:
		return x.jumpTo(n)
	case syntax.Formula, syntax.Monadic:
		return x.formula(n)
	case syntax.Assignation:
		return x.assign(n)
	case syntax.Call:
		return x.call(n)
	case syntax.Slice:
		return x.slice(n)
	case syntax.Selection:
		return x.selection(n)
	case syntax.Generator:
		return x.generator(n)
	case syntax.Display:
		return x.display(n)
	case syntax.RoutineText:
		x.routine(n)
	case syntax.Block:
		return x.block(n)
	case syntax.Conditional:
		return x.conditional(n)
	case syntax.Conformity:
		return x.conformity(n)
	case syntax.Loop:
		return x.loop(n)
	case syntax.Parallel:
		return x.parallel(n)
	case syntax.Identity:
		return x.identity(n)
	case syntax.Variable:
		return x.variable(n)
	case syntax.ProcDecl, syntax.OpDecl:
		x.routine(n.Child(0))
		copy(rt.TagCell(n.Tag), rt.Pop(mode.SizeProc))
	case syntax.PrioDecl, syntax.ModeDecl, syntax.Label:
		// nothing to do at run time
	default:
		runtime.Internal("cannot elaborate %s", n)
	}
	return nil
}

// --- Identifiers and declarations ------------------------------------------

func (x *Interpreter) identifier(n *syntax.Node) error {
	tag := n.Tag
	if key, ok := tag.UData.(bind.Builtin); ok {
		return x.standardIdentifier(n, key)
	}
	if !tag.HasOffset {
		runtime.Internal("identifier %s has no storage", tag.Name())
	}
	cell := x.rt.TagCell(tag)
	if tag.Mode.Kind != mode.Struct && !runtime.IsInitialized(cell) {
		return runtime.Errorf(n.Pos, runtime.Uninitialised, "%s is used before its declaration", tag.Name())
	}
	x.rt.PushBytes(cell)
	return nil
}

func (x *Interpreter) identity(n *syntax.Node) error {
	m := n.Tag.Mode
	if err := x.strong(n.Child(1), m); err != nil {
		return err
	}
	return x.store(m, x.rt.TagCell(n.Tag), x.rt.Owner())
}

// variable generates the storage of a variable and makes the identifier
// refer to it. A LOC variable lives in the implicit cell of its tag.
func (x *Interpreter) variable(n *syntax.Node) error {
	rt := x.rt
	decl := n.Child(0)
	m := decl.Mode
	bounds, err := x.bounds(decl)
	if err != nil {
		return err
	}
	var name runtime.Ref
	if n.Heap {
		if name, err = x.allocate(m, bounds); err != nil {
			return err
		}
	} else {
		loc := n.Tag.Loc
		cell := rt.TagCell(loc)
		runtime.Clear(cell)
		if err := stowed.Generate(rt, m, cell, bounds, rt.Owner()); err != nil {
			return err
		}
		name = rt.TagRef(loc)
	}
	runtime.PutRef(rt.TagCell(n.Tag), name)
	if src := n.Child(1); src != nil {
		if err := x.strong(src, m); err != nil {
			return err
		}
		return x.assignValue(n.Pos, m, name, rt.PopCopy(size(m)))
	}
	return nil
}

// allocate generates a value of mode m on the heap.
func (x *Interpreter) allocate(m *mode.Mode, bounds []stowed.Bound) (runtime.Ref, error) {
	rt := x.rt
	id, err := rt.Heap.Allocate(size(m), runtime.HeapOwner)
	if err != nil {
		return runtime.Nil, err
	}
	if err := stowed.Generate(rt, m, rt.Heap.Handle(id).Data, bounds, runtime.HeapOwner); err != nil {
		return runtime.Nil, err
	}
	return rt.HeapRef(id), nil
}

func (x *Interpreter) generator(n *syntax.Node) error {
	rt := x.rt
	decl := n.Child(0)
	bounds, err := x.bounds(decl)
	if err != nil {
		return err
	}
	if n.Heap {
		r, err := x.allocate(decl.Mode, bounds)
		if err != nil {
			return err
		}
		rt.PushRef(r)
		return nil
	}
	cell := rt.TagCell(n.Tag)
	runtime.Clear(cell)
	if err := stowed.Generate(rt, decl.Mode, cell, bounds, rt.Owner()); err != nil {
		return err
	}
	rt.PushRef(rt.TagRef(n.Tag))
	return nil
}

// bounds elaborates the bounds of an actual declarer, in the order
// stowed.Generate consumes them: the bounds of a row first, then those of
// its elements. Declarers of mode indicants are followed; virtual bounds and
// standard modes yield flat bounds.
func (x *Interpreter) bounds(decl *syntax.Node) ([]stowed.Bound, error) {
	var bs []stowed.Bound
	expanding := make(map[*syntax.Tag]bool)
	var walk func(d *syntax.Node) error
	walk = func(d *syntax.Node) error {
		switch d.Attr {
		case syntax.RowDecl, syntax.FlexDecl:
			for _, b := range d.Children[1:] {
				if len(b.Children) < 2 {
					bs = append(bs, stowed.Bound{Lower: 1, Upper: 0})
					continue
				}
				lo, err := x.integer(b.Child(0))
				if err != nil {
					return err
				}
				hi, err := x.integer(b.Child(1))
				if err != nil {
					return err
				}
				bs = append(bs, stowed.Bound{Lower: int(lo), Upper: int(hi)})
			}
			return walk(d.Child(0))
		case syntax.StructDecl:
			for _, f := range d.Children {
				if err := walk(f.Child(0)); err != nil {
					return err
				}
			}
		case syntax.Indicant:
			if tag := d.Tag; tag != nil && tag.Node != nil && tag.Node.Attr == syntax.ModeDecl {
				if expanding[tag] {
					return runtime.Errorf(d.Pos, runtime.ResourceExhausted,
						"mode %s generates rows without end", tag.Name())
				}
				expanding[tag] = true
				defer delete(expanding, tag)
				return walk(tag.Node.Child(0))
			}
			for i := stowed.BoundSlots(d.Mode); i > 0; i-- {
				bs = append(bs, stowed.Bound{Lower: 1, Upper: 0})
			}
		}
		return nil
	}
	err := walk(decl)
	return bs, err
}

// integer elaborates a unit of mode INT.
func (x *Interpreter) integer(u *syntax.Node) (int64, error) {
	if err := x.strong(u, x.rt.Modes.INT); err != nil {
		return 0, err
	}
	return x.rt.PopInt(), nil
}

// --- Assignation -----------------------------------------------------------

func (x *Interpreter) assign(n *syntax.Node) error {
	rt := x.rt
	m := n.Mode.Sub
	if err := x.strong(n.Child(0), n.Mode); err != nil {
		return err
	}
	if err := x.strong(n.Child(1), m); err != nil {
		return err
	}
	v := rt.PopCopy(size(m))
	name := rt.PopRef()
	if err := x.assignValue(n.Pos, m, name, v); err != nil {
		return err
	}
	rt.PushRef(name)
	return nil
}

// assignValue stores value v of mode m in the cell name refers to.
func (x *Interpreter) assignValue(pos genie.Pos, m *mode.Mode, name runtime.Ref, v []byte) error {
	if name.IsNil() {
		return runtime.Errorf(pos, runtime.Undefined, "assignation to NIL")
	}
	if m.IsStowed() {
		return x.locatePos(pos, stowed.AssignStowed(x.rt, m, name, v))
	}
	switch m.Kind {
	case mode.Ref:
		if runtime.IsInitialized(v) {
			if err := runtime.CheckScope(pos, runtime.GetRef(v).Scope, name.Scope); err != nil {
				return err
			}
		}
	case mode.Proc:
		if err := checkEnviron(pos, runtime.GetProc(v), name.Scope); err != nil {
			return err
		}
	case mode.Union:
		if err := stowed.CheckScope(x.rt, m, v, name.Scope); err != nil {
			return x.locatePos(pos, err)
		}
	}
	cell, err := x.rt.Cell(name, size(m))
	if err != nil {
		return err
	}
	copy(cell, v)
	return nil
}

// --- Slices and selections -------------------------------------------------

// primary elaborates the primary of a slice or selection and strips
// procedures and names down to a value or to a single name. It returns the
// mode of the value and whether a name of it is on the stack.
func (x *Interpreter) primary(p *syntax.Node) (*mode.Mode, bool, error) {
	if err := x.eval(p); err != nil {
		return nil, false, err
	}
	m := p.Mode
	for i := 0; i < maxCoercions; i++ {
		switch {
		case m.IsParameterless():
			if err := x.deproc(p.Pos, m); err != nil {
				return nil, false, err
			}
			m = m.Sub
		case m.Kind == mode.Ref && m.Sub != nil && (m.Sub.Kind == mode.Ref || m.Sub.IsParameterless()):
			if err := x.deref(p.Pos, m); err != nil {
				return nil, false, err
			}
			m = m.Sub
		case m.Kind == mode.Ref:
			return m.Sub, true, nil
		default:
			return m, false, nil
		}
	}
	runtime.Internal("primary of mode %v cannot be stripped", p.Mode)
	return nil, false, nil
}

// row pops a row value, or a name of a row, and returns the row and the
// owner of new descriptors derived from it.
func (x *Interpreter) row(pos genie.Pos, isName bool) (runtime.Ref, runtime.Owner, error) {
	rt := x.rt
	if !isName {
		return rt.PopRef(), rt.Owner(), nil
	}
	name := rt.PopRef()
	if name.IsNil() {
		return runtime.Nil, runtime.HeapOwner, runtime.Errorf(pos, runtime.Undefined, "NIL cannot be sliced")
	}
	cell, err := rt.Cell(name, mode.SizeRef)
	if err != nil {
		return runtime.Nil, runtime.HeapOwner, err
	}
	if !runtime.IsInitialized(cell) {
		return runtime.Nil, runtime.HeapOwner, runtime.Errorf(pos, runtime.Uninitialised, "row is uninitialised")
	}
	return runtime.GetRef(cell), rt.OwnerOf(name), nil
}

func (x *Interpreter) slice(n *syntax.Node) error {
	rt := x.rt
	_, isName, err := x.primary(n.Child(0))
	if err != nil {
		return err
	}
	row, owner, err := x.row(n.Pos, isName)
	if err != nil {
		return err
	}
	subs := make([]stowed.Subscript, 0, len(n.Children)-1)
	for _, s := range n.Children[1:] {
		if s.Attr != syntax.Trimmer {
			i, err := x.integer(s)
			if err != nil {
				return err
			}
			subs = append(subs, stowed.At(int(i)))
			continue
		}
		var b [3]*int
		for k, u := range s.Children {
			v, err := x.integer(u)
			if err != nil {
				return err
			}
			iv := int(v)
			b[k] = &iv
		}
		subs = append(subs, stowed.Trim(b[0], b[1], b[2]))
	}
	r, element, err := stowed.Slice(rt, row, subs, owner)
	if err != nil {
		return err
	}
	switch {
	case element && isName:
		rt.PushRef(r)
	case element:
		cell, err := rt.Cell(r, size(n.Mode))
		if err != nil {
			return err
		}
		rt.PushBytes(cell)
	case isName:
		nr, err := stowed.NameOf(rt, r, owner)
		if err != nil {
			return err
		}
		rt.PushRef(nr)
	default:
		rt.PushRef(r)
	}
	return nil
}

func (x *Interpreter) selection(n *syntax.Node) error {
	rt := x.rt
	m, isName, err := x.primary(n.Child(0))
	if err != nil {
		return err
	}
	if m.IsRow() {
		row, owner, err := x.row(n.Pos, isName)
		if err != nil {
			return err
		}
		r, err := stowed.SelectField(rt, row, m.Element().FieldIndex(n.Symbol), owner)
		if err != nil {
			return err
		}
		if isName {
			if r, err = stowed.NameOf(rt, r, owner); err != nil {
				return err
			}
		}
		rt.PushRef(r)
		return nil
	}
	i := m.FieldIndex(n.Symbol)
	off, fsize := m.FieldOffset(i), size(m.Fields[i].Mode)
	if isName {
		r := rt.PopRef()
		if r.IsNil() {
			return runtime.Errorf(n.Pos, runtime.Undefined, "field %s selected from NIL", n.Symbol)
		}
		rt.PushRef(r.Plus(off))
		return nil
	}
	v := rt.PopCopy(size(m))
	rt.PushBytes(v[off : off+fsize])
	return nil
}

// --- Displays --------------------------------------------------------------

// display builds a structure or a row from its elements. The cells of the
// fields of a structure, pushed one after the other, are its value.
func (x *Interpreter) display(n *syntax.Node) error {
	rt := x.rt
	m := n.Mode
	switch {
	case m.Kind == mode.Struct:
		for i, u := range n.Children {
			if err := x.strong(u, m.Fields[i].Mode); err != nil {
				return err
			}
		}
		return nil
	case m.IsRow():
		rm := m.RowMode()
		elem := rm.Sub
		if rm.Dim > 1 {
			elem = rt.Modes.RowOf(rm.Dim-1, rm.Sub)
		}
		for _, u := range n.Children {
			if err := x.strong(u, elem); err != nil {
				return err
			}
		}
		k := len(n.Children)
		from := rt.PopCopy(k * size(elem))
		var r runtime.Ref
		var err error
		if rm.Dim > 1 {
			r, err = stowed.MakeRows(rt, m, k, from, rt.Owner())
		} else {
			r, err = stowed.MakeRow(rt, elem, k, from, rt.Owner())
		}
		if err != nil {
			return err
		}
		rt.PushRef(r)
		return nil
	}
	runtime.Internal("display of mode %v", m)
	return nil
}
