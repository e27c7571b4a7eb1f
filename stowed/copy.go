package stowed

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
)

// Copying and assignment of stowed values. Both walk the statically known
// mode of a value with an explicit worklist. A row is copied element by
// element in row-major order; structures field by field; unions copy the
// payload of their current member only.
//
// Copy creates new descriptors for every row contained in the value.
// Assignment differs for rows of fixed bounds: they are overwritten in
// place and must have the bounds of the source. Flexible rows and rows inside
// a union get a new descriptor.
//
// Names and routines contained in a value must not outlive what they refer
// to: their scope is checked against the scope of the owner of the copy.

type item struct {
	m      *mode.Mode
	dst    []byte
	src    []byte
	owner  runtime.Owner
	assign bool
	exit   uint32 // descriptor handle to leave, for markers
}

type copier struct {
	rt        *runtime.Runtime
	work      *arraystack.Stack
	expanding map[uint32]bool // descriptors currently being copied
}

func newCopier(rt *runtime.Runtime) *copier {
	return &copier{
		rt:        rt,
		work:      arraystack.New(),
		expanding: make(map[uint32]bool),
	}
}

func (c *copier) push(it item) {
	c.work.Push(it)
}

func (c *copier) run() error {
	for !c.work.Empty() {
		v, _ := c.work.Pop()
		it := v.(item)
		if it.exit != 0 {
			delete(c.expanding, it.exit)
			continue
		}
		if err := c.step(it); err != nil {
			return err
		}
	}
	return nil
}

func (c *copier) step(it item) error {
	m := it.m
	switch m.Kind {
	case mode.Row, mode.Flex:
		if !runtime.IsInitialized(it.src) {
			runtime.Clear(it.dst)
			return nil
		}
		if it.assign && m.Kind == mode.Row && runtime.IsInitialized(it.dst) {
			return c.assignRow(it)
		}
		r, err := c.copyRow(runtime.GetRef(it.src), it.owner)
		if err != nil {
			return err
		}
		runtime.PutRef(it.dst, r)
	case mode.Struct:
		for i := len(m.Fields) - 1; i >= 0; i-- {
			f := m.Fields[i]
			off, size := m.FieldOffset(i), f.Mode.Size()
			c.push(item{
				m:      f.Mode,
				dst:    it.dst[off : off+size],
				src:    it.src[off : off+size],
				owner:  it.owner,
				assign: it.assign,
			})
		}
	case mode.Union:
		if !runtime.IsInitialized(it.src) {
			runtime.Clear(it.dst)
			return nil
		}
		u := c.rt.Modes.ByID(runtime.UnionMode(it.src))
		if u == nil {
			runtime.Internal("union value of unknown mode #%d", runtime.UnionMode(it.src))
		}
		copy(it.dst[:mode.SizeUnion], it.src[:mode.SizeUnion])
		size := u.Size()
		dst, src := runtime.Payload(it.dst)[:size], runtime.Payload(it.src)[:size]
		if u.IsStowed() {
			c.push(item{m: u, dst: dst, src: src, owner: it.owner})
			return nil
		}
		if err := CheckScope(c.rt, u, src, it.owner.Scope); err != nil {
			return err
		}
		copy(dst, src)
	default:
		if err := CheckScope(c.rt, m, it.src, it.owner.Scope); err != nil {
			return err
		}
		copy(it.dst, it.src)
	}
	return nil
}

// walked is true for element modes which cannot be copied bitwise.
func walked(m *mode.Mode) bool {
	if m.IsStowed() || m.Kind == mode.Ref || m.Kind == mode.Proc {
		return true
	}
	if m.Kind == mode.Union {
		for _, u := range m.Members {
			if u.Kind == mode.Ref || u.Kind == mode.Proc {
				return true
			}
		}
	}
	return false
}

// CheckScope fails if cell, holding a value of mode m which is not stowed,
// contains a name or routine which could outlive storage of scope dst.
func CheckScope(rt *runtime.Runtime, m *mode.Mode, cell []byte, dst int) error {
	switch m.Kind {
	case mode.Ref:
		if runtime.IsInitialized(cell) {
			return runtime.CheckScope(genie.NoPos, runtime.GetRef(cell).Scope, dst)
		}
	case mode.Proc:
		if p := runtime.GetProc(cell); p.Kind == runtime.Routine && p.Env.FP >= 0 {
			return runtime.CheckScope(genie.NoPos, p.Env.FP, dst)
		}
	case mode.Union:
		if !runtime.IsInitialized(cell) {
			return nil
		}
		if u := rt.Modes.ByID(runtime.UnionMode(cell)); u != nil && !u.IsStowed() && u.Kind != mode.Union {
			return CheckScope(rt, u, runtime.Payload(cell)[:u.Size()], dst)
		}
	}
	return nil
}

// copyRow creates the descriptor and storage of a copy of a row and queues
// the copying of stowed elements.
func (c *copier) copyRow(row runtime.Ref, owner runtime.Owner) (runtime.Ref, error) {
	a, err := Descriptor(c.rt, row)
	if err != nil {
		return runtime.Nil, err
	}
	if c.expanding[row.Handle] {
		return runtime.Nil, runtime.Errorf(genie.NoPos, runtime.InternalConsistency,
			"row %s contains itself", row)
	}
	r, b, err := NewRow(c.rt, a.Elem, a.Bounds(), owner)
	if err != nil || b.Storage.IsNil() {
		return r, err
	}
	c.expanding[row.Handle] = true
	c.push(item{exit: row.Handle})
	stowed := walked(a.Elem)
	size := a.Elem.Size()
	for x := NewIndex(a); !x.Done(); x.Increment() {
		src, err := c.rt.Cell(a.Storage.Plus(x.Calculate()), size)
		if err != nil {
			return runtime.Nil, err
		}
		dst, err := c.rt.Cell(b.Storage.Plus(b.Offset(x.Values())), size)
		if err != nil {
			return runtime.Nil, err
		}
		if stowed {
			c.push(item{m: a.Elem, dst: dst, src: src, owner: owner})
		} else {
			copy(dst, src)
		}
	}
	return r, nil
}

// assignRow overwrites the elements of a row of fixed bounds.
func (c *copier) assignRow(it item) error {
	from, err := DescriptorOf(c.rt, it.src)
	if err != nil {
		return err
	}
	to, err := DescriptorOf(c.rt, it.dst)
	if err != nil {
		return err
	}
	if !to.SameBounds(from) {
		return runtime.Errorf(genie.NoPos, runtime.DifferentBounds,
			"cannot assign row %v to row %v", from.Bounds(), to.Bounds())
	}
	if from.Storage.IsNil() {
		return nil
	}
	if overlaps(from, to) {
		tmp := newCopier(c.rt)
		r, err := tmp.copyRow(runtime.GetRef(it.src), c.rt.Owner())
		if err == nil {
			err = tmp.run()
		}
		if err != nil {
			return err
		}
		if from, err = Descriptor(c.rt, r); err != nil {
			return err
		}
	}
	stowed := walked(from.Elem)
	size := from.Elem.Size()
	for x := NewIndex(from); !x.Done(); x.Increment() {
		src, err := c.rt.Cell(from.Storage.Plus(x.Calculate()), size)
		if err != nil {
			return err
		}
		dst, err := c.rt.Cell(to.Storage.Plus(to.Offset(x.Values())), size)
		if err != nil {
			return err
		}
		if stowed {
			c.push(item{m: from.Elem, dst: dst, src: src, owner: it.owner, assign: true})
		} else {
			copy(dst, src)
		}
	}
	return nil
}

func overlaps(a, b *Array) bool {
	return a.Storage.Segment == runtime.SegHeap && a.Storage.Segment == b.Storage.Segment &&
		a.Storage.Handle == b.Storage.Handle
}

// CopyRow copies a row deeply. The copy belongs to owner.
func CopyRow(rt *runtime.Runtime, row runtime.Ref, owner runtime.Owner) (runtime.Ref, error) {
	c := newCopier(rt)
	r, err := c.copyRow(row, owner)
	if err != nil {
		return runtime.Nil, err
	}
	return r, c.run()
}

// CopyStowed copies a value of mode m from cell src to cell dst. Rows
// contained in the value are copied and belong to owner. Values of modes
// which are not stowed are copied bitwise.
func CopyStowed(rt *runtime.Runtime, m *mode.Mode, dst, src []byte, owner runtime.Owner) error {
	c := newCopier(rt)
	c.push(item{m: m, dst: dst, src: src, owner: owner})
	return c.run()
}

// AssignRow assigns the row value src to the cell dst of row mode m. A row
// of fixed bounds must already have the bounds of src; a flexible row
// receives a new descriptor belonging to owner.
func AssignRow(rt *runtime.Runtime, m *mode.Mode, dst []byte, src runtime.Ref, owner runtime.Owner) error {
	var cell [mode.SizeRef]byte
	runtime.PutRef(cell[:], src)
	c := newCopier(rt)
	c.push(item{m: m, dst: dst, src: cell[:], owner: owner, assign: true})
	return c.run()
}

// AssignStowed assigns the value of mode m held in src to the cell the name
// dst refers to. New descriptors belong to the owner of the cell.
func AssignStowed(rt *runtime.Runtime, m *mode.Mode, dst runtime.Ref, src []byte) error {
	cell, err := rt.Cell(dst, m.Size())
	if err != nil {
		return err
	}
	c := newCopier(rt)
	c.push(item{m: m, dst: cell, src: src, owner: rt.OwnerOf(dst), assign: true})
	return c.run()
}
