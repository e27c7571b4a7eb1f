package stowed

import (
	"strings"

	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
)

// MakeRow creates a row [1:n] of elements of mode elem from n consecutive
// cells in from, e.g. the elements of a row display on the expression
// stack. Stowed elements are copied deeply.
func MakeRow(rt *runtime.Runtime, elem *mode.Mode, n int, from []byte, owner runtime.Owner) (runtime.Ref, error) {
	r, a, err := NewRow(rt, elem, []Bound{{1, n}}, owner)
	if err != nil || n == 0 {
		return r, err
	}
	size := elem.Size()
	if len(from) < n*size {
		runtime.Internal("row display of %d elements from %d bytes", n, len(from))
	}
	c := newCopier(rt)
	for i := 0; i < n; i++ {
		dst, err := rt.Cell(a.Storage.Plus(a.Offset([]int{i + 1})), size)
		if err != nil {
			return runtime.Nil, err
		}
		src := from[i*size : (i+1)*size]
		if elem.IsStowed() {
			c.push(item{m: elem, dst: dst, src: src, owner: owner})
		} else {
			copy(dst, src)
		}
	}
	return r, c.run()
}

// MakeRows creates a row of m.Dim dimensions from n rows of m.Dim−1
// dimensions, held as consecutive row values in from. All rows must have
// identical bounds, which become the bounds of dimensions 2 … m.Dim.
func MakeRows(rt *runtime.Runtime, m *mode.Mode, n int, from []byte, owner runtime.Owner) (runtime.Ref, error) {
	rm := m.RowMode()
	if rm == nil || rm.Dim < 2 {
		runtime.Internal("cannot make rows of mode %v", m)
	}
	inner := make([]*Array, n)
	for i := range inner {
		a, err := DescriptorOf(rt, from[i*mode.SizeRef:(i+1)*mode.SizeRef])
		if err != nil {
			return runtime.Nil, err
		}
		if a.Dim != rm.Dim-1 || (i > 0 && !a.SameBounds(inner[0])) {
			return runtime.Nil, runtime.Errorf(genie.NoPos, runtime.DifferentBounds,
				"rows of a display have different bounds")
		}
		inner[i] = a
	}
	bounds := []Bound{{1, n}}
	if n > 0 {
		bounds = append(bounds, inner[0].Bounds()...)
	} else {
		for d := 1; d < rm.Dim; d++ {
			bounds = append(bounds, Bound{1, 0})
		}
	}
	r, a, err := NewRow(rt, rm.Sub, bounds, owner)
	if err != nil || a.Storage.IsNil() {
		return r, err
	}
	c := newCopier(rt)
	size := rm.Sub.Size()
	index := make([]int, rm.Dim)
	for i, b := range inner {
		index[0] = i + 1
		for x := NewIndex(b); !x.Done(); x.Increment() {
			src, err := rt.Cell(b.Storage.Plus(x.Calculate()), size)
			if err != nil {
				return runtime.Nil, err
			}
			copy(index[1:], x.Values())
			dst, err := rt.Cell(a.Storage.Plus(a.Offset(index)), size)
			if err != nil {
				return runtime.Nil, err
			}
			if rm.Sub.IsStowed() {
				c.push(item{m: rm.Sub, dst: dst, src: src, owner: owner})
			} else {
				copy(dst, src)
			}
		}
	}
	return r, c.run()
}

// BoundSlots returns the number of bounds a generator of mode m consumes:
// one per dimension of every row contained in m, in pre-order.
func BoundSlots(m *mode.Mode) int {
	switch m.Kind {
	case mode.Row:
		return m.Dim + BoundSlots(m.Sub)
	case mode.Flex:
		return BoundSlots(m.Sub)
	case mode.Struct:
		n := 0
		for _, f := range m.Fields {
			n += BoundSlots(f.Mode)
		}
		return n
	}
	return 0
}

// Generate initialises the cell of a generated value of mode m. Rows
// contained in m are created with bounds taken from bounds in pre-order,
// see BoundSlots; missing bounds make flat dimensions. Every element of a
// row of rows gets the same inner bounds. Other cells stay uninitialised.
func Generate(rt *runtime.Runtime, m *mode.Mode, cell []byte, bounds []Bound, owner runtime.Owner) error {
	_, err := generate(rt, m, cell, bounds, owner)
	return err
}

// generate recurses over the mode only; recursive modes are cut at REF.
func generate(rt *runtime.Runtime, m *mode.Mode, cell []byte, bounds []Bound, owner runtime.Owner) (int, error) {
	switch m.Kind {
	case mode.Flex:
		return generate(rt, m.Sub, cell, bounds, owner)
	case mode.Row:
		dims := make([]Bound, m.Dim)
		for d := range dims {
			dims[d] = Bound{1, 0}
			if d < len(bounds) {
				dims[d] = bounds[d]
			}
		}
		rest := bounds[min(m.Dim, len(bounds)):]
		r, a, err := NewRow(rt, m.Sub, dims, owner)
		if err != nil {
			return 0, err
		}
		runtime.PutRef(cell, r)
		used := BoundSlots(m.Sub)
		if used == 0 {
			return m.Dim + used, nil
		}
		size := m.Sub.Size()
		for x := NewIndex(a); !x.Done(); x.Increment() {
			elem, err := rt.Cell(a.Storage.Plus(x.Calculate()), size)
			if err != nil {
				return 0, err
			}
			if _, err := generate(rt, m.Sub, elem, rest, owner); err != nil {
				return 0, err
			}
		}
		return m.Dim + used, nil
	case mode.Struct:
		n := 0
		for i, f := range m.Fields {
			off := m.FieldOffset(i)
			k, err := generate(rt, f.Mode, cell[off:off+f.Mode.Size()], bounds[min(n, len(bounds)):], owner)
			if err != nil {
				return 0, err
			}
			n += k
		}
		return n, nil
	}
	return 0, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Concat concatenates two one-dimensional rows into a row [1:n+m].
func Concat(rt *runtime.Runtime, x, y runtime.Ref, owner runtime.Owner) (runtime.Ref, error) {
	a, err := Descriptor(rt, x)
	if err != nil {
		return runtime.Nil, err
	}
	b, err := Descriptor(rt, y)
	if err != nil {
		return runtime.Nil, err
	}
	if a.Dim != 1 || b.Dim != 1 {
		runtime.Internal("concatenation of rows of %d and %d dimensions", a.Dim, b.Dim)
	}
	n, m := a.Size(), b.Size()
	r, c, err := NewRow(rt, a.Elem, []Bound{{1, n + m}}, owner)
	if err != nil || n+m == 0 {
		return r, err
	}
	cp := newCopier(rt)
	size := a.Elem.Size()
	k := 1
	for _, part := range []*Array{a, b} {
		for x := NewIndex(part); !x.Done(); x.Increment() {
			src, err := rt.Cell(part.Storage.Plus(x.Calculate()), size)
			if err != nil {
				return runtime.Nil, err
			}
			dst, err := rt.Cell(c.Storage.Plus(c.Offset([]int{k})), size)
			if err != nil {
				return runtime.Nil, err
			}
			if a.Elem.IsStowed() {
				cp.push(item{m: a.Elem, dst: dst, src: src, owner: owner})
			} else {
				copy(dst, src)
			}
			k++
		}
	}
	return r, cp.run()
}

// FromString creates a row of characters [1:len(s)].
func FromString(rt *runtime.Runtime, s string, owner runtime.Owner) (runtime.Ref, error) {
	runes := []rune(s)
	r, a, err := NewRow(rt, rt.Modes.CHAR, []Bound{{1, len(runes)}}, owner)
	if err != nil {
		return runtime.Nil, err
	}
	for i, c := range runes {
		cell, err := Element(rt, a, []int{i + 1})
		if err != nil {
			return runtime.Nil, err
		}
		runtime.PutChar(cell, c)
	}
	return r, nil
}

// String returns the characters of a row of characters.
func String(rt *runtime.Runtime, row runtime.Ref) (string, error) {
	a, err := Descriptor(rt, row)
	if err != nil {
		return "", err
	}
	return rowString(rt, a)
}

func rowString(rt *runtime.Runtime, a *Array) (string, error) {
	var b strings.Builder
	for x := NewIndex(a); !x.Done(); x.Increment() {
		cell, err := rt.Cell(a.Storage.Plus(x.Calculate()), mode.SizeChar)
		if err != nil {
			return "", err
		}
		if !runtime.IsInitialized(cell) {
			return "", runtime.Errorf(genie.NoPos, runtime.Uninitialised,
				"character %v of string is uninitialised", x.Values())
		}
		b.WriteRune(runtime.GetChar(cell))
	}
	return b.String(), nil
}
