package stowed

import (
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
)

// Subscript is one entry of a slice. An indexer selects a single index of
// its dimension, removing the dimension; a trimmer selects a sub-range and
// keeps it, optionally renumbering it from a new lower bound.
type Subscript struct {
	Trim     bool
	Index    int  // index of an indexer
	Lower    *int // trimmer bounds; nil takes the bound of the row
	Upper    *int
	NewLower *int // lower bound of the trimmed dimension, 1 if nil
}

// At creates an indexer.
func At(i int) Subscript {
	return Subscript{Index: i}
}

// Trim creates a trimmer. nil bounds default to the bounds of the row.
func Trim(lower, upper, newLower *int) Subscript {
	return Subscript{Trim: true, Lower: lower, Upper: upper, NewLower: newLower}
}

// Slice applies subscripts to a row. If every dimension is indexed, the
// result is the element's name and the second result is true. Otherwise the
// result is a new descriptor, sharing the storage of the row and belonging
// to owner. Missing trailing subscripts keep their dimensions.
func Slice(rt *runtime.Runtime, row runtime.Ref, subs []Subscript, owner runtime.Owner) (runtime.Ref, bool, error) {
	a, err := Descriptor(rt, row)
	if err != nil {
		return runtime.Nil, false, err
	}
	if len(subs) > a.Dim {
		return runtime.Nil, false, runtime.Errorf(genie.NoPos, runtime.InternalConsistency,
			"%d subscripts for a row of %d dimensions", len(subs), a.Dim)
	}
	indexed := len(subs) == a.Dim
	for _, s := range subs {
		indexed = indexed && !s.Trim
	}
	if indexed {
		index := make([]int, len(subs))
		for d, s := range subs {
			index[d] = s.Index
		}
		r, err := ElementRef(a, index)
		return r, true, err
	}
	b := &Array{
		Elem:        a.Elem,
		ElemSize:    a.ElemSize,
		SliceOffset: a.SliceOffset,
		FieldOffset: a.FieldOffset,
		Storage:     a.Storage,
	}
	for d, t := range a.Tuples {
		if d >= len(subs) {
			b.Tuples = append(b.Tuples, t)
			continue
		}
		s := subs[d]
		if !s.Trim {
			if s.Index < t.Lower || s.Index > t.Upper {
				return runtime.Nil, false, runtime.Errorf(genie.NoPos, runtime.IndexOutOfBounds,
					"index %d outside of bounds %v", s.Index, t.Bound())
			}
			b.SliceOffset += t.Span*s.Index - t.Shift
			continue
		}
		lo, hi, at := t.Lower, t.Upper, 1
		if s.Lower != nil {
			lo = *s.Lower
		}
		if s.Upper != nil {
			hi = *s.Upper
		}
		if s.NewLower != nil {
			at = *s.NewLower
		}
		if lo <= hi && (lo < t.Lower || hi > t.Upper) {
			return runtime.Nil, false, runtime.Errorf(genie.NoPos, runtime.IndexOutOfBounds,
				"trimmer %d:%d outside of bounds %v", lo, hi, t.Bound())
		}
		b.Tuples = append(b.Tuples, Tuple{
			Lower: at,
			Upper: at + hi - lo,
			Span:  t.Span,
			Shift: t.Shift - t.Span*(lo-at),
		})
	}
	b.Dim = len(b.Tuples)
	r, err := register(rt, b, owner)
	return r, false, err
}

// SelectField selects field i from every element of a row of structures.
// The result shares the storage of the row.
func SelectField(rt *runtime.Runtime, row runtime.Ref, i int, owner runtime.Owner) (runtime.Ref, error) {
	a, err := Descriptor(rt, row)
	if err != nil {
		return runtime.Nil, err
	}
	if a.Elem.Kind != mode.Struct || i < 0 || i >= len(a.Elem.Fields) {
		return runtime.Nil, runtime.Errorf(genie.NoPos, runtime.InternalConsistency,
			"no field #%d in elements of mode %v", i, a.Elem)
	}
	b := *a
	b.Tuples = append([]Tuple(nil), a.Tuples...)
	b.Elem = a.Elem.Fields[i].Mode
	b.FieldOffset += a.Elem.FieldOffset(i)
	return register(rt, &b, owner)
}

// NameOf creates a name referring to a row value, for slices and selections
// which yield names. The cell belongs to owner.
func NameOf(rt *runtime.Runtime, row runtime.Ref, owner runtime.Owner) (runtime.Ref, error) {
	id, err := rt.Heap.Allocate(mode.SizeRef, owner)
	if err != nil {
		return runtime.Nil, err
	}
	runtime.PutRef(rt.Heap.Handle(id).Data, row)
	return rt.HeapRef(id), nil
}
