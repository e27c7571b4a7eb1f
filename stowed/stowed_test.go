package stowed

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func newRuntime() *runtime.Runtime {
	return runtime.NewRuntime(nil, mode.NewTable(), runtime.Limits{})
}

func intRow(t *testing.T, rt *runtime.Runtime, bounds []Bound, value func(k []int) int64) runtime.Ref {
	t.Helper()
	r, a, err := NewRow(rt, rt.Modes.INT, bounds, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	for x := NewIndex(a); !x.Done(); x.Increment() {
		cell, err := rt.Cell(a.Storage.Plus(x.Calculate()), mode.SizeInt)
		if err != nil {
			t.Fatal(err)
		}
		runtime.PutInt(cell, value(x.Values()))
	}
	return r
}

func ints(t *testing.T, rt *runtime.Runtime, row runtime.Ref) []int64 {
	t.Helper()
	a, err := Descriptor(rt, row)
	if err != nil {
		t.Fatal(err)
	}
	var values []int64
	for x := NewIndex(a); !x.Done(); x.Increment() {
		cell, err := rt.Cell(a.Storage.Plus(x.Calculate()), mode.SizeInt)
		if err != nil {
			t.Fatal(err)
		}
		values = append(values, runtime.GetInt(cell))
	}
	return values
}

func ptr(i int) *int {
	return &i
}

func code(err error) runtime.Code {
	var e *runtime.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return runtime.NoError
}

func TestRowSize(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	if n, err := RowSize([]Tuple{{Lower: 1, Upper: 3}, {Lower: 0, Upper: 4}}); err != nil || n != 15 {
		t.Errorf("expected 15 elements, have %d", n)
	}
	if n, _ := RowSize([]Tuple{{Lower: 1, Upper: 3}, {Lower: 1, Upper: 0}}); n != 0 {
		t.Errorf("a flat dimension makes a row empty, have %d elements", n)
	}
	huge := []Tuple{{Lower: 1, Upper: math.MaxInt32}, {Lower: 1, Upper: 4}}
	if _, err := RowSize(huge); code(err) != runtime.ResourceExhausted {
		t.Errorf("expected overflow to be reported, have %v", err)
	}
}

func TestIndexOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	a := newArray(mode.NewTable().INT, []Bound{{1, 2}, {0, 1}})
	var seen [][]int
	var offsets []int
	for x := NewIndex(a); !x.Done(); x.Increment() {
		seen = append(seen, append([]int(nil), x.Values()...))
		offsets = append(offsets, x.Calculate())
	}
	want := [][]int{{1, 0}, {1, 1}, {2, 0}, {2, 1}}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("expected row-major order %v, have %v", want, seen)
	}
	if !reflect.DeepEqual(offsets, []int{0, 16, 32, 48}) {
		t.Errorf("expected dense offsets, have %v", offsets)
	}
}

func TestCopyRow(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	r := intRow(t, rt, []Bound{{1, 2}, {1, 3}}, func(k []int) int64 { return int64(10*k[0] + k[1]) })
	c, err := CopyRow(rt, r, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := Descriptor(rt, r)
	b, _ := Descriptor(rt, c)
	if !a.SameBounds(b) || a.Size() != b.Size() {
		t.Errorf("copy has bounds %v, expected %v", b.Bounds(), a.Bounds())
	}
	if !reflect.DeepEqual(ints(t, rt, r), ints(t, rt, c)) {
		t.Errorf("copy differs from original")
	}
	if a.Storage.Handle == b.Storage.Handle {
		t.Errorf("copy shares storage with the original")
	}
}

func TestCopyRowOfRows(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	inner := rt.Modes.RowOf(1, rt.Modes.INT)
	outer := rt.Modes.RowOf(1, inner)
	var cell [mode.SizeRef]byte
	if err := Generate(rt, outer, cell[:], []Bound{{1, 2}, {1, 3}}, runtime.HeapOwner); err != nil {
		t.Fatal(err)
	}
	a, _ := DescriptorOf(rt, cell[:])
	first, _ := Element(rt, a, []int{1})
	row := runtime.GetRef(first)
	if b, _ := Bounds(rt, row); !reflect.DeepEqual(b, []Bound{{1, 3}}) {
		t.Fatalf("elements should have been generated with bounds [1:3], have %v", b)
	}
	e, _ := Descriptor(rt, row)
	v, _ := Element(rt, e, []int{2})
	runtime.PutInt(v, 5)
	c, err := CopyRow(rt, runtime.GetRef(cell[:]), runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	runtime.PutInt(v, 6)
	ca, _ := Descriptor(rt, c)
	cfirst, _ := Element(rt, ca, []int{1})
	if got := ints(t, rt, runtime.GetRef(cfirst)); got[1] != 5 {
		t.Errorf("inner row of the copy should be unaffected by the original, have %v", got)
	}
}

func TestEmptyRow(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	r, a, err := NewRow(rt, rt.Modes.INT, []Bound{{1, 0}}, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	if sz, _ := RowSize(a.Tuples); sz != 0 || !a.Storage.IsNil() {
		t.Errorf("empty row should have no storage")
	}
	live := rt.Heap.Live()
	c, err := CopyRow(rt, r, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Descriptor(rt, c)
	if b.Size() != 0 || !b.Storage.IsNil() || rt.Heap.Live() != live+1 {
		t.Errorf("copy of an empty row should be a bare descriptor")
	}
}

func TestAssignFixedRow(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	m := rt.Modes.RowOf(1, rt.Modes.INT)
	var dst [mode.SizeRef]byte
	if err := Generate(rt, m, dst[:], []Bound{{1, 3}}, runtime.HeapOwner); err != nil {
		t.Fatal(err)
	}
	wrong := intRow(t, rt, []Bound{{1, 4}}, func(k []int) int64 { return 1 })
	if err := AssignRow(rt, m, dst[:], wrong, runtime.HeapOwner); code(err) != runtime.DifferentBounds {
		t.Errorf("expected different bounds, have %v", err)
	}
	shifted := intRow(t, rt, []Bound{{0, 2}}, func(k []int) int64 { return 1 })
	if err := AssignRow(rt, m, dst[:], shifted, runtime.HeapOwner); code(err) != runtime.DifferentBounds {
		t.Errorf("expected different lower bounds to be rejected, have %v", err)
	}
	before := runtime.GetRef(dst[:])
	src := intRow(t, rt, []Bound{{1, 3}}, func(k []int) int64 { return int64(k[0]) })
	if err := AssignRow(rt, m, dst[:], src, runtime.HeapOwner); err != nil {
		t.Fatal(err)
	}
	if runtime.GetRef(dst[:]) != before {
		t.Errorf("fixed row should be assigned in place")
	}
	if got := ints(t, rt, before); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Errorf("expected (1, 2, 3), have %v", got)
	}
}

func TestAssignFlexRow(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	m := rt.Modes.FlexOf(rt.Modes.RowOf(1, rt.Modes.INT))
	var dst [mode.SizeRef]byte
	if err := Generate(rt, m, dst[:], nil, runtime.HeapOwner); err != nil {
		t.Fatal(err)
	}
	if b, _ := Bounds(rt, runtime.GetRef(dst[:])); !reflect.DeepEqual(b, []Bound{{1, 0}}) {
		t.Errorf("flex row without bounds should be generated empty, is %v", b)
	}
	for _, bounds := range [][]Bound{{{1, 3}}, {{-2, 5}}, {{1, 0}}} {
		src := intRow(t, rt, bounds, func(k []int) int64 { return int64(k[0]) })
		if err := AssignRow(rt, m, dst[:], src, runtime.HeapOwner); err != nil {
			t.Fatal(err)
		}
		have, _ := Bounds(rt, runtime.GetRef(dst[:]))
		if !reflect.DeepEqual(have, bounds) {
			t.Errorf("after assignment the bounds should be %v, are %v", bounds, have)
		}
	}
}

func TestSlicing(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	r := intRow(t, rt, []Bound{{1, 5}}, func(k []int) int64 { return int64(10 * k[0]) })
	s, elem, err := Slice(rt, r, []Subscript{Trim(ptr(2), ptr(4), nil)}, runtime.HeapOwner)
	if err != nil || elem {
		t.Fatalf("trimming failed: %v", err)
	}
	if b, _ := Bounds(rt, s); !reflect.DeepEqual(b, []Bound{{1, 3}}) {
		t.Errorf("trimmed row should be renumbered from 1, is %v", b)
	}
	if got := ints(t, rt, s); !reflect.DeepEqual(got, []int64{20, 30, 40}) {
		t.Errorf("expected (20, 30, 40), have %v", got)
	}
	s0, _, _ := Slice(rt, r, []Subscript{Trim(ptr(3), nil, ptr(0))}, runtime.HeapOwner)
	name, elem, err := Slice(rt, s0, []Subscript{At(0)}, runtime.HeapOwner)
	if err != nil || !elem {
		t.Fatalf("indexing failed: %v", err)
	}
	cell, _ := rt.Cell(name, mode.SizeInt)
	if runtime.GetInt(cell) != 30 {
		t.Errorf("element 0 of a[3: @0] should be 30, is %d", runtime.GetInt(cell))
	}
	runtime.PutInt(cell, 33)
	if got := ints(t, rt, r); got[2] != 33 {
		t.Errorf("slice should alias its parent, have %v", got)
	}
	if _, _, err := Slice(rt, r, []Subscript{At(6)}, runtime.HeapOwner); code(err) != runtime.IndexOutOfBounds {
		t.Errorf("expected index out of bounds, have %v", err)
	}
	if _, _, err := Slice(rt, r, []Subscript{Trim(ptr(0), ptr(2), nil)}, runtime.HeapOwner); code(err) != runtime.IndexOutOfBounds {
		t.Errorf("expected trimmer out of bounds, have %v", err)
	}
	m := intRow(t, rt, []Bound{{1, 3}, {1, 4}}, func(k []int) int64 { return int64(10*k[0] + k[1]) })
	col, _, err := Slice(rt, m, []Subscript{Trim(nil, nil, nil), At(2)}, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	if got := ints(t, rt, col); !reflect.DeepEqual(got, []int64{12, 22, 32}) {
		t.Errorf("column 2 should be (12, 22, 32), is %v", got)
	}
}

func TestOverlappingAssignment(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	m := rt.Modes.RowOf(1, rt.Modes.INT)
	r := intRow(t, rt, []Bound{{1, 5}}, func(k []int) int64 { return int64(10 * k[0]) })
	dst, _, _ := Slice(rt, r, []Subscript{Trim(ptr(2), ptr(5), nil)}, runtime.HeapOwner)
	src, _, _ := Slice(rt, r, []Subscript{Trim(ptr(1), ptr(4), nil)}, runtime.HeapOwner)
	var cell [mode.SizeRef]byte
	runtime.PutRef(cell[:], dst)
	if err := AssignRow(rt, m, cell[:], src, runtime.HeapOwner); err != nil {
		t.Fatal(err)
	}
	if got := ints(t, rt, r); !reflect.DeepEqual(got, []int64{10, 10, 20, 30, 40}) {
		t.Errorf("overlapping assignment should behave like a copy, have %v", got)
	}
}

func TestRowsOfStructures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	modes := rt.Modes
	st := modes.StructOf([]mode.Field{
		{Name: "n", Mode: modes.INT},
		{Name: "r", Mode: modes.RowOf(1, modes.INT)},
		{Name: "x", Mode: modes.REAL},
	})
	row := modes.RowOf(1, st)
	if BoundSlots(row) != 2 {
		t.Fatalf("expected 2 bound slots, have %d", BoundSlots(row))
	}
	var cell [mode.SizeRef]byte
	if err := Generate(rt, row, cell[:], []Bound{{1, 2}, {1, 3}}, runtime.HeapOwner); err != nil {
		t.Fatal(err)
	}
	a, _ := DescriptorOf(rt, cell[:])
	for i := 1; i <= 2; i++ {
		e, _ := Element(rt, a, []int{i})
		runtime.PutInt(e, int64(i))
		if b, _ := Bounds(rt, runtime.GetRef(e[st.FieldOffset(1):])); !reflect.DeepEqual(b, []Bound{{1, 3}}) {
			t.Errorf("field r of element %d has bounds %v", i, b)
		}
	}
	ns, err := SelectField(rt, runtime.GetRef(cell[:]), 0, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	if got := ints(t, rt, ns); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Errorf("selection of field n should yield (1, 2), have %v", got)
	}
	c, err := CopyRow(rt, runtime.GetRef(cell[:]), runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	ca, _ := Descriptor(rt, c)
	e, _ := Element(rt, ca, []int{2})
	e0, _ := Element(rt, a, []int{2})
	if runtime.GetInt(e) != 2 || runtime.GetRef(e[st.FieldOffset(1):]) == runtime.GetRef(e0[st.FieldOffset(1):]) {
		t.Errorf("rows inside structures must be copied deeply")
	}
}

func TestUnionCopy(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	rowInt := rt.Modes.RowOf(1, rt.Modes.INT)
	u := rt.Modes.UnionOf([]*mode.Mode{rt.Modes.INT, rowInt})
	src := make([]byte, u.Size())
	r := intRow(t, rt, []Bound{{1, 2}}, func(k []int) int64 { return 7 })
	runtime.PutUnion(src, rowInt.ID)
	runtime.PutRef(runtime.Payload(src), r)
	dst := make([]byte, u.Size())
	if err := CopyStowed(rt, u, dst, src, runtime.HeapOwner); err != nil {
		t.Fatal(err)
	}
	if runtime.UnionMode(dst) != rowInt.ID {
		t.Fatalf("copy should hold a row")
	}
	c := runtime.GetRef(runtime.Payload(dst))
	if c == r || !reflect.DeepEqual(ints(t, rt, c), []int64{7, 7}) {
		t.Errorf("row inside a union should be copied deeply")
	}
}

func TestDisplaysAndStrings(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	from := make([]byte, 3*mode.SizeInt)
	for i := 0; i < 3; i++ {
		runtime.PutInt(from[i*mode.SizeInt:], int64(i+1))
	}
	r, err := MakeRow(rt, rt.Modes.INT, 3, from, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	if got := ints(t, rt, r); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Errorf("row display should yield (1, 2, 3), have %v", got)
	}
	rows := make([]byte, 2*mode.SizeRef)
	runtime.PutRef(rows, r)
	runtime.PutRef(rows[mode.SizeRef:], r)
	mm, err := MakeRows(rt, rt.Modes.RowOf(2, rt.Modes.INT), 2, rows, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := Bounds(rt, mm); !reflect.DeepEqual(b, []Bound{{1, 2}, {1, 3}}) {
		t.Errorf("expected [1:2, 1:3], have %v", b)
	}
	short := intRow(t, rt, []Bound{{1, 2}}, func(k []int) int64 { return 0 })
	runtime.PutRef(rows[mode.SizeRef:], short)
	if _, err := MakeRows(rt, rt.Modes.RowOf(2, rt.Modes.INT), 2, rows, runtime.HeapOwner); code(err) != runtime.DifferentBounds {
		t.Errorf("rows of different bounds must not make a matrix, have %v", err)
	}
	x, _ := FromString(rt, "ab", runtime.HeapOwner)
	y, _ := FromString(rt, "cd", runtime.HeapOwner)
	xy, err := Concat(rt, x, y, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := String(rt, xy); s != "abcd" {
		t.Errorf("expected \"abcd\", have %q", s)
	}
	a, _ := Descriptor(rt, xy)
	if d := a.Describe(rt); d != `[1:4] "abcd"` {
		t.Errorf("unexpected description %s", d)
	}
	ia, _ := Descriptor(rt, r)
	if d := ia.Describe(rt); d != "[1:3] (1, 2, 3)" {
		t.Errorf("unexpected description %s", d)
	}
}

func TestNamesKeepTheirScope(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.stowed")
	defer teardown()
	//
	rt := newRuntime()
	refInt := rt.Modes.RefTo(rt.Modes.INT)
	st := rt.Modes.StructOf([]mode.Field{{Name: "r", Mode: refInt}, {Name: "n", Mode: rt.Modes.INT}})
	inner := runtime.Ref{Segment: runtime.SegFrame, Offset: 48, Scope: 40}
	src := make([]byte, st.Size())
	runtime.PutRef(src, inner)
	runtime.PutInt(src[st.FieldOffset(1):], 3)
	dst := make([]byte, st.Size())
	older := runtime.Owner{Kind: runtime.OnStack, Frame: 1, Scope: 24}
	if err := CopyStowed(rt, st, dst, src, older); code(err) != runtime.ScopeViolation {
		t.Errorf("a field referring to a younger frame must not be copied into an older one, have %v", err)
	}
	same := runtime.Owner{Kind: runtime.OnStack, Frame: 2, Scope: 40}
	if err := CopyStowed(rt, st, dst, src, same); err != nil {
		t.Errorf("copy within the scope of the name failed: %v", err)
	}
	if runtime.GetRef(dst) != inner {
		t.Errorf("name field not copied")
	}
	r, a, err := NewRow(rt, refInt, []Bound{{1, 2}}, runtime.HeapOwner)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 2; i++ {
		e, _ := Element(rt, a, []int{i})
		runtime.PutRef(e, inner)
	}
	if _, err := CopyRow(rt, r, runtime.HeapOwner); code(err) != runtime.ScopeViolation {
		t.Errorf("a row of names into a frame must not be copied to the heap, have %v", err)
	}
	if _, err := CopyRow(rt, r, same); err != nil {
		t.Errorf("copy of a row of names within their scope failed: %v", err)
	}
}
