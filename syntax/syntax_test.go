package syntax

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

const sample = `
; a small program
(program (block
    (variable loc INT x (int 1))
    (procedure inc (routine (params (param (ref INT) r)) VOID
        (assign (id r) (dyadic + (id r) (int 1)))))
    (call (id inc) (id x))
    (id x)))
`

func TestReadTree(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.syntax")
	defer teardown()
	//
	tree, err := ReadTree(sample)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Root.Attr != Program {
		t.Fatalf("expected program root, have %s", tree.Root.Attr)
	}
	block := tree.Root.Child(0)
	if block.Attr != Block || len(block.Children) != 4 {
		t.Fatalf("expected block with 4 units, have %s", block)
	}
	v := block.Child(0)
	if v.Attr != Variable || v.Symbol != "x" || v.Heap {
		t.Errorf("expected LOC variable x, have %s", v)
	}
	if v.Child(0).Attr != Indicant || v.Child(0).Symbol != "INT" {
		t.Errorf("expected INT declarer, have %s", v.Child(0))
	}
	if v.Pos.Line != 4 {
		t.Errorf("expected variable at line 4, is at %s", v.Pos)
	}
	routine := block.Child(1).Child(0)
	if routine.Attr != RoutineText || !routine.NewLevel {
		t.Errorf("expected routine text introducing a new level, have %s", routine)
	}
	if p := routine.Child(0).Child(0); p.Attr != Param || p.Child(0).Attr != RefDecl {
		t.Errorf("expected REF INT parameter, have %s", p)
	}
	if tree.Node(v.ID) != v || v.Parent != block {
		t.Errorf("node registry or parent links broken")
	}
}

func TestReadTreeErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.syntax")
	defer teardown()
	//
	for i, input := range []string{
		``,
		`(program (block)`,
		`(block)`,
		`(program (frobnicate))`,
		`(program (int x))`,
		`(program (loop (for i)))`,
		`(program (dyadic + (int 1)))`,
		`(program (block)) (program (block))`,
	} {
		if _, err := ReadTree(input); err == nil {
			t.Errorf("test #%d: expected error for %q", i, input)
		} else {
			t.Logf("test #%d: %v", i, err)
		}
	}
}

func TestReadDeclarers(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.syntax")
	defer teardown()
	//
	tree, err := ReadTree(`(program (block
        (mode NODE (struct (field INT value) (field (ref NODE) next)))
        (variable heap (flex CHAR (b)) s)
        (variable loc (row REAL (b (int 1) (int 3)) (b (int 1) (int 2))) m)
        (identity (proc INT INT) p (routine (params (param INT k)) INT (id k)))
        (variable loc (union INT BOOL) u)))`)
	if err != nil {
		t.Fatal(err)
	}
	block := tree.Root.Child(0)
	if d := block.Child(0).Child(0); d.Attr != StructDecl || len(d.Children) != 2 {
		t.Errorf("expected struct declarer with 2 fields, have %s", d)
	}
	if v := block.Child(1); !v.Heap || v.Child(0).Attr != FlexDecl {
		t.Errorf("expected HEAP FLEX variable, have %s", v)
	}
	if d := block.Child(2).Child(0); len(d.Children) != 3 || len(d.Child(1).Children) != 2 {
		t.Errorf("expected 2-dimensional row declarer, have %s", d)
	}
	if d := block.Child(3).Child(0); d.Attr != ProcMode || len(d.Children) != 2 {
		t.Errorf("expected procedure declarer, have %s", d)
	}
}

func TestWalkers(t *testing.T) {
	tree, err := ReadTree(sample)
	if err != nil {
		t.Fatal(err)
	}
	var pre, post int
	Traverse(tree.Root, func(*Node) bool { pre++; return true }, func(*Node) { post++ })
	if pre != tree.Size() || post != tree.Size() {
		t.Errorf("expected %d nodes visited, have %d/%d", tree.Size(), pre, post)
	}
	var inRange int
	RangeOf(tree.Root.Child(0), func(n *Node) {
		inRange++
		if n.Attr == Param {
			t.Errorf("range walker descended into routine text")
		}
	})
	if inRange == 0 {
		t.Errorf("range walker visited nothing")
	}
	n := tree.Root.Child(0)
	n.SetFlag(Breakpoint)
	if !n.HasFlag(Breakpoint) || n.HasFlag(Trace) {
		t.Errorf("flags not working")
	}
	n.ClearFlag(Breakpoint)
	if n.HasFlag(Breakpoint) {
		t.Errorf("flag not cleared")
	}
}
