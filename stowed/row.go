package stowed

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"fmt"
	"math"
	"strings"

	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
)

// Bound is the pair of bounds of one dimension.
type Bound struct {
	Lower, Upper int
}

// Extent returns the number of indices of a dimension, 0 for flat ones.
func (b Bound) Extent() int {
	if b.Upper < b.Lower {
		return 0
	}
	return b.Upper - b.Lower + 1
}

func (b Bound) String() string {
	return fmt.Sprintf("%d:%d", b.Lower, b.Upper)
}

// Tuple describes one dimension of a row. The element with index vector i
// is found at
//
//    Σ (Span[d] · i[d] − Shift[d])
//
// elements from the slice offset of the descriptor.
type Tuple struct {
	Lower, Upper int
	Span, Shift  int
}

// Bound returns the bounds of a dimension.
func (t Tuple) Bound() Bound {
	return Bound{Lower: t.Lower, Upper: t.Upper}
}

// Array is a row descriptor.
type Array struct {
	Dim         int         // number of dimensions
	Elem        *mode.Mode  // mode of elements
	ElemSize    int         // stride of elements in storage
	SliceOffset int         // in elements
	FieldOffset int         // in bytes, for rows selected from rows of structures
	Storage     runtime.Ref // heap storage of the elements, NIL for empty rows
	Tuples      []Tuple
}

// descriptorSize is the number of heap bytes a descriptor is accounted for.
func descriptorSize(dim int) int {
	return 48 + 32*dim
}

// RowSize computes the number of elements of a row with dimensions tuples.
// Flat dimensions make the row empty.
func RowSize(tuples []Tuple) (int, error) {
	size := 1
	for _, t := range tuples {
		ext := t.Bound().Extent()
		if ext == 0 {
			return 0, nil
		}
		if size > math.MaxInt32/ext {
			return 0, runtime.Errorf(genie.NoPos, runtime.ResourceExhausted,
				"row of more than %d elements", math.MaxInt32)
		}
		size *= ext
	}
	return size, nil
}

// Bounds returns the bounds of all dimensions.
func (a *Array) Bounds() []Bound {
	bounds := make([]Bound, len(a.Tuples))
	for i, t := range a.Tuples {
		bounds[i] = t.Bound()
	}
	return bounds
}

// Size returns the number of elements.
func (a *Array) Size() int {
	n, err := RowSize(a.Tuples)
	if err != nil {
		return 0
	}
	return n
}

// Contains is true if index is a valid index vector of a.
func (a *Array) Contains(index []int) bool {
	if len(index) != len(a.Tuples) {
		return false
	}
	for d, t := range a.Tuples {
		if index[d] < t.Lower || index[d] > t.Upper {
			return false
		}
	}
	return true
}

// Offset returns the byte offset of the element with index vector index
// within the storage of a.
func (a *Array) Offset(index []int) int {
	k := a.SliceOffset
	for d, t := range a.Tuples {
		k += t.Span*index[d] - t.Shift
	}
	return k*a.ElemSize + a.FieldOffset
}

// SameBounds is true if a and b have identical bounds in all dimensions.
func (a *Array) SameBounds(b *Array) bool {
	if len(a.Tuples) != len(b.Tuples) {
		return false
	}
	for d := range a.Tuples {
		if a.Tuples[d].Bound() != b.Tuples[d].Bound() {
			return false
		}
	}
	return true
}

// Describe renders bounds and the first elements of a row.
func (a *Array) Describe(rt *runtime.Runtime) string {
	var b strings.Builder
	b.WriteString("[")
	for i, t := range a.Tuples {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Bound().String())
	}
	b.WriteString("]")
	if a.Dim == 1 && a.Elem.Kind == mode.Char {
		if s, err := rowString(rt, a); err == nil {
			fmt.Fprintf(&b, " %q", s)
		}
		return b.String()
	}
	b.WriteString(" (")
	n := 0
	for x := NewIndex(a); !x.Done(); x.Increment() {
		if n > 0 {
			b.WriteString(", ")
		}
		if n == 8 {
			b.WriteString("...")
			break
		}
		if cell, err := rt.Cell(a.Storage.Plus(x.Calculate()), a.Elem.Size()); err == nil {
			b.WriteString(rt.FormatValue(a.Elem, cell))
		}
		n++
	}
	b.WriteString(")")
	return b.String()
}

// newArray creates a descriptor of a fresh row, with elements of mode elem
// laid out in row-major order.
func newArray(elem *mode.Mode, bounds []Bound) *Array {
	a := &Array{
		Dim:      len(bounds),
		Elem:     elem,
		ElemSize: mode.AlignUp(elem.Size()),
		Tuples:   make([]Tuple, len(bounds)),
	}
	span := 1
	for d := len(bounds) - 1; d >= 0; d-- {
		t := Tuple{Lower: bounds[d].Lower, Upper: bounds[d].Upper, Span: span}
		t.Shift = t.Lower * t.Span
		a.Tuples[d] = t
		if ext := bounds[d].Extent(); ext > 0 {
			span *= ext
		}
	}
	return a
}

// NewRow generates a row with elements of mode elem. The elements are
// uninitialised. The descriptor and storage belong to owner.
func NewRow(rt *runtime.Runtime, elem *mode.Mode, bounds []Bound, owner runtime.Owner) (runtime.Ref, *Array, error) {
	a := newArray(elem, bounds)
	n, err := RowSize(a.Tuples)
	if err != nil {
		return runtime.Nil, nil, err
	}
	if n > 0 {
		id, err := rt.Heap.Allocate(n*a.ElemSize, owner)
		if err != nil {
			return runtime.Nil, nil, err
		}
		a.Storage = rt.HeapRef(id)
	}
	id, err := rt.Heap.AllocateObject(a, descriptorSize(a.Dim), owner)
	if err != nil {
		return runtime.Nil, nil, err
	}
	tracer().Debugf("new row %v of %d elements of %v", bounds, n, elem)
	return rt.HeapRef(id), a, nil
}

// register stores a descriptor in a handle of its own, sharing the storage
// of its parent.
func register(rt *runtime.Runtime, a *Array, owner runtime.Owner) (runtime.Ref, error) {
	id, err := rt.Heap.AllocateObject(a, descriptorSize(a.Dim), owner)
	if err != nil {
		return runtime.Nil, err
	}
	return rt.HeapRef(id), nil
}

// Descriptor returns the descriptor a row value refers to.
func Descriptor(rt *runtime.Runtime, row runtime.Ref) (*Array, error) {
	if row.IsNil() {
		return nil, runtime.Errorf(genie.NoPos, runtime.Uninitialised, "row has no descriptor")
	}
	obj, err := rt.Object(row)
	if err != nil {
		return nil, err
	}
	a, ok := obj.(*Array)
	if !ok {
		return nil, runtime.Errorf(genie.NoPos, runtime.InternalConsistency, "%s is not a row", row)
	}
	return a, nil
}

// DescriptorOf returns the descriptor of a row value held in cell.
func DescriptorOf(rt *runtime.Runtime, cell []byte) (*Array, error) {
	if !runtime.IsInitialized(cell) {
		return nil, runtime.Errorf(genie.NoPos, runtime.Uninitialised, "row value is uninitialised")
	}
	return Descriptor(rt, runtime.GetRef(cell))
}

// Bounds returns the bounds of a row value.
func Bounds(rt *runtime.Runtime, row runtime.Ref) ([]Bound, error) {
	a, err := Descriptor(rt, row)
	if err != nil {
		return nil, err
	}
	return a.Bounds(), nil
}

// Element returns the cell of the element with index vector index, checking
// bounds.
func Element(rt *runtime.Runtime, a *Array, index []int) ([]byte, error) {
	r, err := ElementRef(a, index)
	if err != nil {
		return nil, err
	}
	return rt.Cell(r, a.Elem.Size())
}

// ElementRef returns a name for the element with index vector index.
func ElementRef(a *Array, index []int) (runtime.Ref, error) {
	if !a.Contains(index) {
		return runtime.Nil, runtime.Errorf(genie.NoPos, runtime.IndexOutOfBounds,
			"index %v outside of bounds %v", index, a.Bounds())
	}
	return a.Storage.Plus(a.Offset(index)), nil
}
