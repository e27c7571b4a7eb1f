package bind

import (
	"errors"
	"strings"
	"testing"

	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func bindString(t *testing.T, src string, opts ...Option) *Result {
	t.Helper()
	tree, err := syntax.ReadTree(src)
	if err != nil {
		t.Fatalf("cannot read tree: %v", err)
	}
	r, err := Bind(tree.Root, opts...)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	for _, d := range r.Diagnostics() {
		t.Logf("%s", d)
	}
	return r
}

func countCode(r *Result, code Code) int {
	n := 0
	for _, d := range r.Diagnostics() {
		if d.Code == code {
			n++
		}
	}
	return n
}

const program1 = `
(program (block
  (variable loc INT x (int 1))
  (identity REAL r (dyadic * (id x) (real 2.5)))
  (procedure f (routine (params (param INT k)) INT
      (block (identity INT y (dyadic + (id k) (id x))) (id y))))
  (assign (id x) (call (id f) (id x)))
  (if (dyadic < (id x) (int 10))
      (call (id print) (id x))
      (call (id print) (string "big")))))
`

func TestResolveAll(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, program1)
	if r.Errors() != 0 {
		t.Fatalf("expected no errors, have %d", r.Errors())
	}
	syntax.Walk(r.Tree.Root, func(n *syntax.Node) bool {
		if n.Attr != syntax.Identifier {
			return true
		}
		if n.Tag == nil {
			t.Errorf("identifier %s unresolved", n.Symbol)
		} else if !n.Tag.Table.IsAncestorOf(n.Table) {
			t.Errorf("identifier %s resolved to a tag of a non-enclosing range", n.Symbol)
		}
		return true
	})
}

func TestTablesAndLevels(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, program1)
	if r.Standard.Level != 0 || r.Program.Level != 1 {
		t.Errorf("expected standard environment at level 0 and program at level 1")
	}
	block := r.Tree.Root.Child(0)
	if block.Table.Level != 2 || block.Table.Previous != r.Program {
		t.Errorf("expected outer block at level 2, is at %d", block.Table.Level)
	}
	routine := block.Child(2).Child(0)
	rt := routine.Table
	if !rt.IsRoutine || rt.Level != 3 || rt.ParameterLevel != 3 {
		t.Errorf("routine table: routine=%v level=%d parameter level=%d", rt.IsRoutine, rt.Level, rt.ParameterLevel)
	}
	if rt.Outer != r.Program {
		t.Errorf("expected program table as outer table of routine, have %v", rt.Outer)
	}
	body := routine.Child(2)
	if body.Table.Outer != rt {
		t.Errorf("expected routine table as outer table of its body")
	}
	for i, tab := range r.Tables[1:] {
		if tab.Nest <= r.Tables[i].Nest {
			t.Errorf("nest indices not increasing")
		}
	}
}

func TestAssignOffsets(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (variable loc INT x)
        (variable loc (row REAL (b (int 1) (int 3))) v)
        (identity BOOL f (bool false))
        (variable heap (struct (field INT a) (field CHAR c)) s)
        (identity (union INT REAL) u (int 3))
        (id x)))`)
	if r.Errors() != 0 {
		t.Fatalf("expected no errors, have %d", r.Errors())
	}
	for _, tab := range r.Tables {
		last, sum := -1, 0
		check := func(tag *syntax.Tag) {
			if !tag.HasOffset {
				return
			}
			if tag.Offset <= last {
				t.Errorf("offsets not increasing in table %d: %s at %d", tab.Nest, tag, tag.Offset)
			}
			if last >= 0 && tag.Offset < last+1 {
				t.Errorf("overlapping tags")
			}
			last = tag.Offset + tag.Size() - 1
			sum += tag.Size()
		}
		tab.Each(syntax.TagIdentifier, check)
		tab.Each(syntax.TagOperator, check)
		tab.Each(syntax.TagAnonymous, check)
		if tab.FrameIncrement < sum || tab.FrameIncrement%mode.Align != 0 {
			t.Errorf("table %d: frame increment %d, sum of sizes %d", tab.Nest, tab.FrameIncrement, sum)
		}
	}
	block := r.Tree.Root.Child(0).Table
	x := block.Lookup("x", syntax.TagIdentifier)
	if x.Offset != 0 || x.Loc == nil || x.Loc.Mode != r.Modes.INT {
		t.Errorf("expected x at offset 0 with a LOC cell of mode INT, have %v", x)
	}
	if s := block.Lookup("s", syntax.TagIdentifier); s.Loc != nil || !s.Heap {
		t.Errorf("heap variable should not have a LOC cell")
	}
}

func TestDuplicateDeclaration(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (identity INT x (int 1))
        (identity INT x (int 2))
        (id x)))`)
	if n := countCode(r, Duplicate); n != 1 {
		t.Fatalf("expected exactly one duplicate declaration, have %d", n)
	}
	second := r.Tree.Root.Child(0).Child(1)
	if second.Tag == nil || second.Tag.Mode.Kind != mode.Error {
		t.Errorf("expected second x to have mode ERROR, have %v", second.Tag)
	}
	if r.Errors() != 1 {
		t.Errorf("expected 1 error, have %d", r.Errors())
	}
}

func TestUndeclaredOnce(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (call (id print) (id y))
        (call (id print) (id y))))`)
	if n := countCode(r, Undeclared); n != 1 {
		t.Errorf("expected 1 undeclared-name diagnostic, have %d", n)
	}
	first := r.Tree.Root.Child(0).Child(0).Child(1)
	if first.Tag == nil || first.Tag.Mode.Kind != mode.Error {
		t.Errorf("expected an error-moded placeholder tag")
	}
}

func TestSizeFamily(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (identity REAL a (call (id "long long sqrt") (real 2.0)))
        (identity REAL b (id "short pi"))
        (identity REAL c (call (id "long print") (id a)))))`)
	block := r.Tree.Root.Child(0)
	sq := block.Child(0).Child(1).Child(0)
	if sq.Tag == nil || sq.Tag.UData != Builtin("sqrt") {
		t.Errorf("expected 'long long sqrt' to map to sqrt, have %v", sq.Tag)
	}
	if pi := block.Child(1).Child(1); pi.Tag.UData != Builtin("pi") {
		t.Errorf("expected 'short pi' to map to pi")
	}
	if n := countCode(r, Undeclared); n != 1 {
		t.Errorf("expected 'long print' to be undeclared, have %d diagnostics", n)
	}
}

func TestDuplicateFields(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (mode S (struct (field INT a) (field REAL a) (field INT b) (field CHAR a)
                        (field BOOL c) (field INT c)))
        (skip)))`)
	if n := countCode(r, DuplicateField); n != 2 {
		t.Errorf("expected one diagnostic per group of duplicates (2), have %d", n)
	}
}

func TestUnionChecks(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (mode U1 (union INT INT))
        (mode U2 (union INT (ref INT)))
        (mode U3 (union INT REAL BOOL))
        (skip)))`)
	if n := countCode(r, AmbiguousUnion); n != 2 {
		t.Errorf("expected 2 union diagnostics, have %d", n)
	}
}

func TestOperators(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (priority PLUS 6)
        (operator PLUS (routine (params (param INT a) (param INT b)) INT (dyadic + (id a) (id b))))
        (operator PLUS (routine (params (param (ref INT) a) (param INT b)) INT (int 0)))
        (operator + (routine (params (param BOOL a) (param BOOL b)) BOOL (id a)))
        (operator MINUS (routine (params (param INT a) (param INT b)) INT (id a)))
        (identity REAL x (dyadic + (int 1) (real 2.0)))
        (identity BOOL y (dyadic + (bool true) (bool false)))
        (identity INT z (dyadic PLUS (int 1) (int 2)))))`)
	if n := countCode(r, AmbiguousOperator); n != 1 {
		t.Errorf("expected 1 ambiguous operator, have %d", n)
	}
	if n := countCode(r, NoPriority); n != 1 {
		t.Errorf("expected MINUS without priority to be flagged, have %d", n)
	}
	block := r.Tree.Root.Child(0)
	widened := block.Child(5).Child(1)
	if widened.Tag == nil || widened.Tag.UData != Builtin("real+") {
		t.Errorf("expected INT + REAL to identify REAL + REAL, have %v", widened.Tag)
	}
	user := block.Child(6).Child(1)
	if user.Tag == nil || user.Tag.Table == r.Standard {
		t.Errorf("expected BOOL + BOOL to identify the user operator")
	}
	if user.Tag.Priority != 6 {
		t.Errorf("expected user operator + to take the standard priority 6, has %d", user.Tag.Priority)
	}
	if plus := block.Child(7).Child(1); plus.Tag == nil || plus.Tag.Priority != 6 {
		t.Errorf("expected PLUS with priority 6")
	}
}

func TestStandardEnvironmentConsistent(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	b := NewBinder()
	if err := b.checkOperators(b.std, true); err != nil {
		t.Errorf("standard environment inconsistent: %v", err)
	}
	// provoke a conflict
	b.std.Insert(syntax.NewTag("+", syntax.TagOperator).WithMode(
		b.modes.ProcOf([]*mode.Mode{b.modes.RefTo(b.modes.INT), b.modes.INT}, b.modes.INT)))
	if err := b.checkOperators(b.std, true); !errors.Is(err, ErrInternal) {
		t.Errorf("expected internal error for conflicting standard operators, have %v", err)
	}
}

func TestWhileRule(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (loop (for i) (to (int 3))
              (while (block (identity INT j (dyadic * (id i) (int 2))) (dyadic < (id j) (int 5))))
              (do (call (id print) (id i))))
        (loop (do (skip)))))`)
	if r.Errors() != 0 {
		t.Fatalf("expected no errors, have %d", r.Errors())
	}
	loop := r.Tree.Root.Child(0).Child(0)
	while, do := loop.Find(syntax.WhilePart), loop.Find(syntax.DoPart)
	if while.Table.Previous != loop.Table {
		t.Errorf("WHILE table must nest in the loop table")
	}
	if do.Table.Previous != while.Table || do.Table.Level != while.Table.Level+1 {
		t.Errorf("DO table must nest in the WHILE table")
	}
	if counter := loop.Table.Lookup("i", syntax.TagIdentifier); counter == nil || counter.Mode != r.Modes.INT {
		t.Errorf("loop counter must be an INT of the loop table")
	}
	plain := r.Tree.Root.Child(0).Child(1)
	if plain.Find(syntax.DoPart).Table.Previous != plain.Table {
		t.Errorf("DO table without WHILE must nest in the loop table")
	}
	if plain.Tag == nil || plain.Tag.Kind != syntax.TagAnonymous {
		t.Errorf("loop without FOR needs an anonymous counter")
	}
}

func TestShadowingAndUnused(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (identity INT x (int 1))
        (identity INT unused (int 2))
        (block (identity INT x (int 3)) (id x))))`, WarnUnused(true))
	if n := countCode(r, Shadowed); n != 1 {
		t.Errorf("expected 1 shadowing warning, have %d", n)
	}
	if n := countCode(r, Unused); n != 2 { // outer x and unused
		t.Errorf("expected 2 unused warnings, have %d", n)
	}
	for _, d := range r.Diagnostics() {
		if d.Severity >= genie.Error {
			t.Errorf("unexpected error %s", d)
		}
	}
}

func TestModeDeclarations(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (mode LIST (ref NODE))
        (mode NODE (struct (field INT value) (field LIST next)))
        (mode A B)
        (mode B A)
        (mode BAD (struct (field INT a) (field BAD b)))
        (mode NUMBER REAL)
        (variable heap NODE n)
        (identity NUMBER pi2 (dyadic * (int 2) (id pi)))))`)
	if n := countCode(r, CyclicMode); n != 2 {
		t.Errorf("expected 2 cyclic mode errors, have %d", n)
	}
	block := r.Tree.Root.Child(0).Table
	node := block.Lookup("NODE", syntax.TagIndicant).Mode
	if node.Kind != mode.Struct || node.Size() != 40 {
		t.Errorf("expected NODE to be a struct of size 40, is %v", node)
	}
	if num := block.Lookup("NUMBER", syntax.TagIndicant).Mode; !mode.Equivalent(num, r.Modes.REAL) {
		t.Errorf("expected NUMBER to be equivalent to REAL")
	}
}

func TestJumpIntoParallel(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (par (block (label inside) (skip))
             (block (goto inside)))
        (par (label l) (goto l))
        (label out)
        (par (block (goto out)))))`)
	if n := countCode(r, JumpIntoParallel); n != 1 {
		t.Errorf("expected 1 jump diagnostic, have %d", n)
	}
	if n := countCode(r, Undeclared); n != 1 {
		t.Errorf("label of a sibling block is not visible, expected 1 undeclared, have %d", n)
	}
}

func TestModeMismatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (identity INT i (real 1.5))
        (variable loc (row INT (b (int 1) (int 2))) v (display (int 1) (int 2)))
        (identity CHAR c (slice (id v) (int 1)))
        (assign (int 3) (int 4))
        (call (id i))))`)
	if n := countCode(r, ModeMismatch); n != 2 {
		t.Errorf("expected 2 mode mismatches, have %d", n)
	}
	if countCode(r, NotAName) != 1 || countCode(r, NotAProcedure) != 1 {
		t.Errorf("expected assignment to a value and call of an INT to be flagged")
	}
}

func TestStructureDisplays(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	r := bindString(t, `(program (block
        (mode P (struct (field BOOL b) (field INT i)))
        (mode Q (struct (field (flex INT (b)) v) (field INT n)))
        (variable loc P p (display (bool true) (int 7)))
        (variable loc Q q (display (display (int 1) (int 2)) (int 3)))))`)
	if r.Errors() != 0 {
		t.Fatalf("expected structure displays to bind, have %d errors", r.Errors())
	}
	syntax.Walk(r.Tree.Root, func(n *syntax.Node) bool {
		if n.Attr == syntax.Display && n.Mode.Kind == mode.Error {
			t.Errorf("display at %s is left without a mode", n.Pos)
		}
		return true
	})
	r = bindString(t, `(program (block
        (call (id print) (display (bool true) (int 7)))))`)
	if n := countCode(r, ModeMismatch); n != 1 {
		t.Errorf("expected 1 mismatch for a display without context, have %d", n)
	}
}

func TestSettleNestedClauses(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.bind")
	defer teardown()
	//
	const depth = 2000
	var src strings.Builder
	src.WriteString("(program (block (identity INT i ")
	for k := 0; k < depth; k++ {
		src.WriteString("(if (bool true) (block ")
	}
	src.WriteString("(skip)")
	for k := 0; k < depth; k++ {
		src.WriteString(") (int 1))")
	}
	src.WriteString(")))")
	r := bindString(t, src.String())
	if r.Errors() != 0 {
		t.Fatalf("expected nested clauses to settle, have %d errors", r.Errors())
	}
	syntax.Walk(r.Tree.Root, func(n *syntax.Node) bool {
		if n.Attr == syntax.Skip && n.Mode != r.Modes.INT {
			t.Errorf("innermost SKIP should be INT, is %v", n.Mode)
		}
		return true
	})
}
