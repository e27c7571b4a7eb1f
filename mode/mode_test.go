package mode

import (
	"errors"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestStandardSizes(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.mode")
	defer teardown()
	//
	tab := NewTable()
	sizes := []struct {
		m    *Mode
		size int
	}{
		{tab.INT, 16}, {tab.REAL, 16}, {tab.BOOL, 8}, {tab.CHAR, 8},
		{tab.VOID, 0}, {tab.SEMA, 24}, {tab.STRING, 24}, {tab.RefTo(tab.INT), 24},
	}
	for _, s := range sizes {
		if got := s.m.Size(); got != s.size {
			t.Errorf("size of %s: expected %d, is %d", s.m, s.size, got)
		}
	}
}

func TestStructAndUnionSizes(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.mode")
	defer teardown()
	//
	tab := NewTable()
	s := tab.StructOf([]Field{{"a", tab.INT}, {"b", tab.BOOL}, {"c", tab.REAL}})
	if s.Size() != 40 {
		t.Errorf("expected struct size 40, is %d", s.Size())
	}
	if off := s.FieldOffset(2); off != 24 {
		t.Errorf("expected offset of field c to be 24, is %d", off)
	}
	u := tab.UnionOf([]*Mode{tab.INT, tab.BOOL})
	if u.Size() != 24 {
		t.Errorf("expected union size 24, is %d", u.Size())
	}
}

func TestRecursiveModeThroughRef(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.mode")
	defer teardown()
	//
	tab := NewTable()
	node := tab.Indicant("NODE")
	node.Define(tab.StructOf([]Field{{"value", tab.INT}, {"next", tab.RefTo(node)}}))
	size, err := Sizeof(node)
	if err != nil {
		t.Fatalf("recursive mode through REF should have a size: %v", err)
	}
	if size != 40 {
		t.Errorf("expected size 40, is %d", size)
	}
	if !Equivalent(node, node.Fields[1].Mode.Sub) {
		t.Errorf("NODE should be equivalent to itself through REF")
	}
}

func TestCyclicModeIsRejected(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.mode")
	defer teardown()
	//
	tab := NewTable()
	bad := tab.Indicant("BAD")
	bad.Define(tab.StructOf([]Field{{"x", tab.INT}, {"self", bad}}))
	if _, err := Sizeof(bad); !errors.Is(err, ErrCyclic) {
		t.Errorf("expected ErrCyclic, got %v", err)
	}
}

func TestInterning(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.mode")
	defer teardown()
	//
	tab := NewTable()
	r1 := tab.RowOf(2, tab.REAL)
	r2 := tab.RowOf(2, tab.REAL)
	if r1 != r2 {
		t.Errorf("expected [,]REAL to be interned")
	}
	if tab.RowOf(1, tab.REAL) == r1 {
		t.Errorf("rows of different dimensions must differ")
	}
	if tab.ByID(r1.ID) != r1 {
		t.Errorf("ByID does not find interned mode")
	}
}

func TestUnionFlattening(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.mode")
	defer teardown()
	//
	tab := NewTable()
	inner := tab.UnionOf([]*Mode{tab.REAL, tab.BOOL})
	u := tab.UnionOf([]*Mode{tab.INT, inner, tab.INT})
	if len(u.Members) != 3 {
		t.Errorf("expected flattened union with 3 members, has %d", len(u.Members))
	}
	if !Equivalent(u, tab.UnionOf([]*Mode{tab.BOOL, tab.INT, tab.REAL})) {
		t.Errorf("unions should be equivalent regardless of member order")
	}
}

func TestFirmlyRelated(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.mode")
	defer teardown()
	//
	tab := NewTable()
	refInt := tab.RefTo(tab.INT)
	if !FirmlyRelated(refInt, tab.INT) {
		t.Errorf("REF INT and INT are firmly related")
	}
	if !FirmlyRelated(tab.ProcOf(nil, tab.INT), tab.INT) {
		t.Errorf("PROC INT and INT are firmly related")
	}
	if FirmlyRelated(tab.INT, tab.REAL) {
		t.Errorf("INT and REAL are not firmly related")
	}
	if !Accepts(tab.REAL, refInt) {
		t.Errorf("REAL parameter should accept REF INT by dereferencing and widening")
	}
	if FirmMatch(tab.REAL, refInt) {
		t.Errorf("strict match must not widen")
	}
}
