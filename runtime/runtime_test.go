package runtime

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/npillmayer/genie/bind"
	"github.com/npillmayer/genie/syntax"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

const nested = `
(program (block
  (variable loc INT x (int 7))
  (procedure p (routine (params (param INT k)) INT
     (block (dyadic + (id x) (id k)))))
  (call (id p) (int 1))))
`

func setup(t *testing.T, src string, limits Limits) (*Runtime, *bind.Result) {
	t.Helper()
	tree, err := syntax.ReadTree(src)
	if err != nil {
		t.Fatal(err)
	}
	r, err := bind.Bind(tree.Root)
	if err != nil {
		t.Fatal(err)
	}
	if r.Errors() > 0 {
		t.Fatalf("program has %d errors", r.Errors())
	}
	return NewRuntime(r.Tree, r.Modes, limits), r
}

func mustOpen(t *testing.T, rt *Runtime, n *syntax.Node, env Environ) {
	t.Helper()
	if err := rt.OpenFrame(n, env); err != nil {
		t.Fatalf("cannot open frame for %s: %v", n, err)
	}
}

func catch(f func()) (err error) {
	defer func() {
		err = AsError(recover())
	}()
	f()
	return nil
}

func TestFrameHeader(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	rt, r := setup(t, nested, Limits{})
	prog := r.Tree.Root
	mustOpen(t, rt, prog, NoEnviron)
	if rt.FP != 0 || rt.Global != 0 || rt.DynamicLink(0) != -1 || rt.StaticLink(0) != -1 {
		t.Errorf("expected first frame at 0 without links")
	}
	outer := prog.Child(0)
	mustOpen(t, rt, outer, NoEnviron)
	fp := rt.FP
	if fp != FrameHeaderSize+prog.Table.FrameIncrement {
		t.Errorf("expected second frame on top of the first, is at %d", fp)
	}
	if rt.LexLevel(fp) != 2 || rt.StaticLink(fp) != 0 || rt.FrameNumber(fp) != 2 {
		t.Errorf("unexpected header: level %d, static link %d, number %d",
			rt.LexLevel(fp), rt.StaticLink(fp), rt.FrameNumber(fp))
	}
	if rt.FrameNode(fp) != outer || rt.FrameSize(fp) != FrameHeaderSize+outer.Table.FrameIncrement {
		t.Errorf("frame node or size not recorded")
	}
	rt.CloseFrame()
	if rt.FP != 0 {
		t.Errorf("expected close to restore the dynamic link, FP = %d", rt.FP)
	}
}

func TestTwoStaticHops(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	rt, r := setup(t, nested, Limits{})
	prog := r.Tree.Root
	outer := prog.Child(0)
	routine := outer.Child(1).Child(0)
	body := routine.Child(2)
	x := outer.Table.Lookup("x", syntax.TagIdentifier)
	mustOpen(t, rt, prog, NoEnviron)
	mustOpen(t, rt, outer, NoEnviron)
	env := Environ{FP: rt.FP, Frame: rt.FrameNumber(rt.FP)}
	want, _ := rt.Address(x)
	for depth := 1; depth <= 5; depth++ {
		base := rt.FP
		for i := 0; i < depth; i++ { // recursive calls of p
			mustOpen(t, rt, routine, env)
			mustOpen(t, rt, body, NoEnviron)
		}
		fp, hops := rt.FollowStaticLink(x.Table.Level)
		if hops != 2 || fp != env.FP {
			t.Errorf("depth %d: expected 2 hops to frame %d, have %d hops to %d", depth, env.FP, hops, fp)
		}
		if addr, _ := rt.Address(x); addr != want {
			t.Errorf("depth %d: address of x is %d, expected %d", depth, addr, want)
		}
		for _, f := range rt.CallChain() {
			if f.StaticLink < 0 {
				if f.FP != rt.Global {
					t.Errorf("only the outermost frame may lack a static link")
				}
				continue
			}
			if rt.LexLevel(f.StaticLink) != f.Level-1 {
				t.Errorf("frame %d at level %d has static link to level %d",
					f.Number, f.Level, rt.LexLevel(f.StaticLink))
			}
		}
		rt.UnwindTo(base)
		if rt.FP != base {
			t.Fatalf("unwinding failed")
		}
	}
}

func TestScopeViolations(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	rt, r := setup(t, nested, Limits{})
	prog := r.Tree.Root
	outer := prog.Child(0)
	routine := outer.Child(1).Child(0)
	body := routine.Child(2)
	mustOpen(t, rt, prog, NoEnviron)
	var se *Error
	if err := rt.OpenFrame(body, NoEnviron); !errors.As(err, &se) || se.Code != ScopeViolation {
		t.Errorf("entering level 4 from level 1 must be a scope violation, have %v", err)
	}
	mustOpen(t, rt, outer, NoEnviron)
	env := Environ{FP: rt.FP, Frame: rt.FrameNumber(rt.FP)}
	rt.CloseFrame()
	if err := rt.OpenFrame(routine, env); !errors.As(err, &se) || se.Code != ScopeViolation {
		t.Errorf("calling a routine with a closed environ must fail, have %v", err)
	}
	mustOpen(t, rt, outer, NoEnviron) // same address, new frame number
	if err := rt.OpenFrame(routine, env); !errors.As(err, &se) || se.Code != ScopeViolation {
		t.Errorf("calling a routine with a stale environ must fail, have %v", err)
	}
	if err := CheckScope(outer.Pos, rt.DynamicScope(rt.FP), rt.DynamicScope(rt.Global)); err == nil {
		t.Errorf("expected storing a name of an inner frame into an outer one to fail")
	}
}

func TestDeepRecursionWithEnviron(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	rt, r := setup(t, nested, Limits{FrameStackSize: 64 << 20})
	tracer().SetTraceLevel(tracing.LevelError)
	prog := r.Tree.Root
	outer := prog.Child(0)
	routine := outer.Child(1).Child(0)
	body := routine.Child(2)
	x := outer.Table.Lookup("x", syntax.TagIdentifier)
	mustOpen(t, rt, prog, NoEnviron)
	mustOpen(t, rt, outer, NoEnviron)
	env := Environ{FP: rt.FP, Frame: rt.FrameNumber(rt.FP)}
	name := rt.TagRef(x)
	base := rt.FP
	start := time.Now()
	const depth = 50000
	for i := 0; i < depth; i++ {
		mustOpen(t, rt, routine, env)
		mustOpen(t, rt, body, NoEnviron)
		if owner := rt.OwnerOf(name); owner.Kind != OnStack || owner.Frame != env.Frame {
			t.Fatalf("depth %d: x is owned by %v", i, owner)
		}
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("%d nested calls took %v, expected calls not to depend on call depth", depth, d)
	}
	if rt.StaticLink(rt.StaticLink(rt.FP)) != env.FP {
		t.Errorf("innermost body does not reach the environ in two hops")
	}
	rt.UnwindTo(base)
}

func TestExpressionStack(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	rt, _ := setup(t, nested, Limits{ExprStackSize: 64, StackCheckInterval: 1000})
	rt.PushInt(42)
	rt.PushReal(2.5)
	rt.PushBool(true)
	rt.PushChar('x')
	if rt.SP != 48 {
		t.Errorf("expected 48 bytes on the stack, have %d", rt.SP)
	}
	if rt.PopChar() != 'x' || !rt.PopBool() || rt.PopReal() != 2.5 || rt.PopInt() != 42 {
		t.Errorf("values not popped in reverse order")
	}
	err := catch(func() {
		for i := 0; i < 5; i++ {
			rt.PushInt(int64(i))
		}
	})
	var se *Error
	if !errors.As(err, &se) || se.Code != StackOverflow {
		t.Errorf("expected stack overflow, have %v", err)
	}
}

func TestHighWaterMark(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	rt, _ := setup(t, nested, Limits{ExprStackSize: 1024, StackCheckInterval: 4})
	err := catch(func() {
		for i := 0; i < 64; i++ {
			rt.PushInt(int64(i))
		}
	})
	var se *Error
	if !errors.As(err, &se) || se.Code != StackOverflow {
		t.Fatalf("expected stack overflow, have %v", err)
	}
	if rt.SP >= 1024 {
		t.Errorf("expected the high-water check to fire before the hard bound, SP = %d", rt.SP)
	}
}

func TestRefsAndCells(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	rt, r := setup(t, nested, Limits{})
	mustOpen(t, rt, r.Tree.Root, NoEnviron)
	mustOpen(t, rt, r.Tree.Root.Child(0), NoEnviron)
	x := r.Tree.Root.Child(0).Table.Lookup("x", syntax.TagIdentifier)
	loc := rt.TagRef(x.Loc)
	PutRef(rt.TagCell(x), loc)
	cell, err := rt.Cell(GetRef(rt.TagCell(x)), x.Loc.Size())
	if err != nil {
		t.Fatal(err)
	}
	if Initialized(r.Modes.INT, cell) {
		t.Errorf("fresh cell must not be initialised")
	}
	PutInt(cell, 7)
	if !Initialized(r.Modes.INT, cell) || GetInt(rt.TagCell(x.Loc)) != 7 {
		t.Errorf("assignment through the name did not reach the LOC cell")
	}
	if loc.Scope != rt.FP {
		t.Errorf("name of a local has scope %d, expected %d", loc.Scope, rt.FP)
	}
	if _, err := rt.Cell(Nil, 16); err == nil {
		t.Errorf("expected NIL to have no cell")
	}
	p := Proc{Kind: Routine, ID: 12, Env: Environ{FP: 64, Frame: 3}}
	var pc [24]byte
	PutProc(pc[:], p)
	if GetProc(pc[:]) != p {
		t.Errorf("procedure value not preserved")
	}
}

func TestHeap(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	h := NewHeap(Limits{HeapHandles: 4, HeapSize: 100, SweepFreeHandles: 2, SweepOccupancy: 90})
	c := h.Collector().(*CountingCollector)
	a, err := h.Allocate(40, HeapOwner)
	if err != nil || a == 0 {
		t.Fatalf("allocation failed: %v", err)
	}
	if h.Occupancy() != 40 {
		t.Errorf("expected occupancy 40%%, have %d", h.Occupancy())
	}
	owner := Owner{Kind: OnStack, Frame: 7, Scope: 64}
	b, _ := h.Allocate(8, owner)
	p, _ := h.AllocateObject("descriptor", 8, owner)
	h.Protect(p)
	if !h.PreemptiveSweep() || c.Requests != 1 {
		t.Errorf("expected a sweep request with fewer than 2 free handles")
	}
	if _, err := h.Allocate(80, HeapOwner); err == nil {
		t.Errorf("expected heap exhaustion")
	}
	if n := h.ReleaseFrame(7); n != 1 {
		t.Errorf("expected one released handle, have %d", n)
	}
	if h.Handle(b) != nil || h.Handle(p) == nil || h.Handle(p).Owner.Kind != OnHeap {
		t.Errorf("expected unprotected handle released, protected one handed over to the heap")
	}
	if h.Handle(a).Data == nil || len(h.Handle(a).Data) != 40 {
		t.Errorf("heap handle damaged")
	}
}

func TestLoadLimits(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	l, err := LoadLimits(strings.NewReader("frame-stack-size: 8192\nmax-threads: 3\ntime-limit: 2s\nwarn-unused: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if l.FrameStackSize != 8192 || l.MaxThreads != 3 || l.TimeLimit != 2*time.Second || !l.WarnUnused {
		t.Errorf("limits not read: %+v", l)
	}
	if l.ExprStackSize != DefaultLimits().ExprStackSize {
		t.Errorf("missing keys should keep their defaults")
	}
	if _, err := LoadLimits(strings.NewReader("no-such-limit: 1\n")); err == nil {
		t.Errorf("expected unknown keys to be rejected")
	}
	if l, err := LoadLimits(strings.NewReader("")); err != nil || l != DefaultLimits() {
		t.Errorf("empty document should yield the defaults")
	}
}

func TestIntrospection(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "genie.runtime")
	defer teardown()
	//
	rt, r := setup(t, nested, Limits{})
	outer := r.Tree.Root.Child(0)
	mustOpen(t, rt, r.Tree.Root, NoEnviron)
	mustOpen(t, rt, outer, NoEnviron)
	x := outer.Table.Lookup("x", syntax.TagIdentifier)
	PutRef(rt.TagCell(x), rt.TagRef(x.Loc))
	PutInt(rt.TagCell(x.Loc), 7)
	f, ok := rt.FindFrame(2)
	if !ok || f.FP != rt.FP || f.Level != 2 {
		t.Fatalf("frame 2 not found")
	}
	tags := rt.FrameTags(f)
	if len(tags) != 3 { // x, p and the LOC cell of x
		t.Fatalf("expected 3 tags, have %d", len(tags))
	}
	if tags[0].Name != "x" || tags[2].Value != "7" {
		t.Errorf("unexpected tags %+v", tags)
	}
	if tags[1].Value != "<uninitialised>" {
		t.Errorf("procedure p has not been elaborated yet, is %q", tags[1].Value)
	}
	var buf bytes.Buffer
	if err := rt.RenderFrames(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "frame 2") {
		t.Errorf("rendering lacks frame 2: %s", buf.String())
	}
}
