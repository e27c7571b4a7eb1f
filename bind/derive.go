package bind

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
)

// deriveModes computes the a-posteriori modes of all units, bottom-up, and
// identifies the operators of formulas. Units which yield no value get VOID.
// Units whose mode depends on their context (SKIP, NIL, jumps, empty displays)
// start out as ERROR and are settled by the enclosing construct.
func (b *Binder) deriveModes(root *syntax.Node) {
	syntax.PostOrder(root, func(n *syntax.Node) {
		if n.Attr.IsDeclarer() || n.Attr == syntax.RoutineText {
			b.checkRoutine(n)
			return
		}
		b.derive(n)
	})
}

func (b *Binder) checkRoutine(n *syntax.Node) {
	if n.Attr != syntax.RoutineText {
		return
	}
	result := n.Mode.Sub
	body := n.Child(2)
	b.settle(body, result)
	b.expect(body, result)
}

func (b *Binder) derive(n *syntax.Node) {
	modes := b.modes
	switch n.Attr {
	case syntax.IntDenot:
		n.Mode = modes.INT
	case syntax.RealDenot:
		n.Mode = modes.REAL
	case syntax.BoolDenot:
		n.Mode = modes.BOOL
	case syntax.CharDenot:
		n.Mode = modes.CHAR
	case syntax.StringDenot:
		n.Mode = modes.STRING
	case syntax.Identifier:
		n.Mode = n.Tag.Mode
		if n.Mode == nil {
			n.Mode = modes.ERROR
		}
	case syntax.Skip, syntax.Nihil, syntax.Jump, syntax.Trimmer:
		n.Mode = modes.ERROR
	case syntax.Formula, syntax.Monadic:
		b.identifyOperator(n)
	case syntax.Assignation:
		b.deriveAssignation(n)
	case syntax.Call:
		b.deriveCall(n)
	case syntax.Slice:
		b.deriveSlice(n)
	case syntax.Selection:
		b.deriveSelection(n)
	case syntax.Generator:
		n.Mode = modes.RefTo(n.Child(0).Mode)
	case syntax.Display:
		b.deriveDisplay(n)
	case syntax.Block:
		n.Mode = serialMode(n, modes)
	case syntax.Conditional:
		b.expect(n.Child(0), modes.BOOL)
		if len(n.Children) < 3 {
			n.Mode = modes.VOID
		} else {
			n.Mode = b.balance(n, n.Child(1), n.Child(2))
		}
	case syntax.Conformity:
		b.deriveConformity(n)
	case syntax.Specifier, syntax.OutPart, syntax.DoPart, syntax.FromPart, syntax.ByPart, syntax.ToPart:
		n.Mode = n.Children[len(n.Children)-1].Mode
	case syntax.WhilePart:
		b.expect(n.Child(0), modes.BOOL)
		n.Mode = modes.BOOL
	case syntax.Loop:
		for _, part := range n.Children {
			switch part.Attr {
			case syntax.FromPart, syntax.ByPart, syntax.ToPart:
				b.expect(part.Child(0), modes.INT)
			}
		}
		n.Mode = modes.VOID
	case syntax.Bound:
		for _, u := range n.Children {
			b.expect(u, modes.INT)
		}
	case syntax.Identity:
		want := n.Child(0).Mode
		b.settle(n.Child(1), want)
		b.expect(n.Child(1), want)
		n.Mode = modes.VOID
	case syntax.Variable:
		if src := n.Child(1); src != nil {
			want := n.Child(0).Mode
			b.settle(src, want)
			b.expect(src, want)
		}
		n.Mode = modes.VOID
	case syntax.Program, syntax.Parallel, syntax.ProcDecl, syntax.OpDecl, syntax.PrioDecl,
		syntax.ModeDecl, syntax.Label, syntax.Params, syntax.Param, syntax.ForPart, syntax.FieldDecl:
		n.Mode = modes.VOID
		if n.Attr == syntax.OpDecl {
			b.checkPriority(n)
		}
	}
}

// serialMode is the mode of the last unit of a serial clause.
func serialMode(n *syntax.Node, modes *mode.Table) *mode.Mode {
	for i := len(n.Children) - 1; i >= 0; i-- {
		u := n.Children[i]
		if u.Attr == syntax.Label {
			continue
		}
		if u.Attr.IsDeclaration() {
			return modes.VOID
		}
		return u.Mode
	}
	return modes.VOID
}

// expect reports a mode mismatch if a unit cannot be coerced to want.
func (b *Binder) expect(u *syntax.Node, want *mode.Mode) {
	if u == nil || want == nil || want.Kind == mode.Void {
		return
	}
	if !mode.Accepts(want, u.Mode) {
		b.errorf(u.Pos, ModeMismatch, "%v cannot be coerced to %v", u.Mode, want)
	}
}

// settle passes the mode required by the context down to units which cannot
// derive it by themselves. Nested clauses are settled from a worklist; a
// clause is completed after all of its alternatives are settled.
func (b *Binder) settle(n *syntax.Node, want *mode.Mode) {
	work := arraystack.New()
	work.Push(settling{n: n, want: want})
	for !work.Empty() {
		v, _ := work.Pop()
		s := v.(settling)
		if s.done {
			b.complete(s.n, s.want)
			continue
		}
		for _, next := range b.enter(s.n, s.want) {
			work.Push(next)
		}
	}
}

// settling is an entry of the settle worklist. done marks the completion of
// a clause.
type settling struct {
	n    *syntax.Node
	want *mode.Mode
	done bool
}

// enter settles what can be settled immediately and returns the completion
// of n followed by its parts to be settled before.
func (b *Binder) enter(n *syntax.Node, want *mode.Mode) []settling {
	if n == nil || want == nil || want.Kind == mode.Error {
		return nil
	}
	then := settling{n: n, want: want, done: true}
	switch n.Attr {
	case syntax.Skip:
		if want.Kind != mode.Void {
			n.Mode = want
		}
	case syntax.Nihil:
		if want.Kind == mode.Ref {
			n.Mode = want
		} else {
			b.errorf(n.Pos, ModeMismatch, "NIL where %v is required", want)
		}
	case syntax.Display:
		return b.enterDisplay(n, want)
	case syntax.Block:
		if len(n.Children) > 0 {
			last := n.Children[len(n.Children)-1]
			if !last.Attr.IsDeclaration() {
				return []settling{then, {n: last, want: want}}
			}
		}
	case syntax.Specifier, syntax.OutPart:
		return []settling{then, {n: n.Children[len(n.Children)-1], want: want}}
	case syntax.Conditional, syntax.Conformity:
		parts := []settling{then}
		for _, branch := range b.branches(n) {
			parts = append(parts, settling{n: branch, want: want})
		}
		return parts
	}
	return nil
}

// complete derives the mode of a clause from its settled parts.
func (b *Binder) complete(n *syntax.Node, want *mode.Mode) {
	switch n.Attr {
	case syntax.Display:
		for i, u := range n.Children {
			b.expect(u, b.elementOf(want, i))
		}
		n.Mode = want
	case syntax.Block:
		n.Mode = serialMode(n, b.modes)
	case syntax.Specifier, syntax.OutPart:
		n.Mode = n.Children[len(n.Children)-1].Mode
	case syntax.Conditional, syntax.Conformity:
		accepted := true
		for _, branch := range b.branches(n) {
			accepted = accepted && mode.Accepts(want, branch.Mode)
		}
		if accepted && want.Kind != mode.Void {
			n.Mode = want
		}
	}
}

func (b *Binder) enterDisplay(n *syntax.Node, want *mode.Mode) []settling {
	switch {
	case want.Kind == mode.Struct:
		if len(n.Children) != len(want.Fields) {
			b.errorf(n.Pos, ModeMismatch, "display has %d elements, %v has %d fields",
				len(n.Children), want, len(want.Fields))
			n.Mode = want
			return nil
		}
	case want.IsRow():
		if len(n.Children) == 0 {
			return nil
		}
	case want.Kind == mode.Ref || want.Kind == mode.Union:
		// handled by the coercion of a row display
		return nil
	default:
		if len(n.Children) == 0 {
			b.errorf(n.Pos, ModeMismatch, "empty display where %v is required", want)
		}
		return nil
	}
	parts := []settling{{n: n, want: want, done: true}}
	for i, u := range n.Children {
		parts = append(parts, settling{n: u, want: b.elementOf(want, i)})
	}
	return parts
}

// elementOf returns the mode required for element i of a display in a
// structured or row context.
func (b *Binder) elementOf(want *mode.Mode, i int) *mode.Mode {
	if want.Kind == mode.Struct {
		return want.Fields[i].Mode
	}
	elem := want.Element()
	if d := want.Dims(); d > 1 {
		elem = b.modes.RowOf(d-1, elem)
	}
	return elem
}

// checkDisplay reports displays which neither balance to a row nor have
// been settled by a structured or row context.
func (b *Binder) checkDisplay(n *syntax.Node) {
	if len(n.Children) == 0 || n.Mode == nil || n.Mode.Kind != mode.Error {
		return
	}
	m, candidates := b.balanced(n.Children)
	if m != nil && m.Kind == mode.Error {
		return // elements are in error already
	}
	b.errorf(n.Pos, ModeMismatch, "display of modes %v needs a structured or row context", candidates)
}

// branches returns the alternatives of a choice clause.
func (b *Binder) branches(n *syntax.Node) []*syntax.Node {
	return n.Children[1:]
}

// balance finds a mode to which all alternatives can be coerced. Alternatives
// without a mode of their own (SKIP, jumps) do not take part.
func (b *Binder) balance(at *syntax.Node, alts ...*syntax.Node) *mode.Mode {
	m, candidates := b.balanced(alts)
	if m == nil {
		b.errorf(at.Pos, ModeMismatch, "alternatives of modes %v cannot be balanced", candidates)
		return b.modes.ERROR
	}
	return m
}

// balanced returns the common mode of alternatives, ERROR if none of them
// has a mode, or nil together with the candidate modes if they cannot be
// balanced.
func (b *Binder) balanced(alts []*syntax.Node) (*mode.Mode, []*mode.Mode) {
	var candidates []*mode.Mode
	for _, a := range alts {
		if a.Mode != nil && a.Mode.Kind != mode.Error {
			candidates = append(candidates, a.Mode)
		}
	}
	if len(candidates) == 0 {
		return b.modes.ERROR, nil
	}
	all := func(m *mode.Mode, accept func(*mode.Mode, *mode.Mode) bool) bool {
		for _, c := range candidates {
			if !accept(m, c) {
				return false
			}
		}
		return true
	}
	if all(candidates[0], mode.Equivalent) {
		return candidates[0], candidates
	}
	for _, c := range candidates {
		if f := mode.Firm(c); all(f, mode.Accepts) {
			return f, candidates
		}
	}
	for _, c := range candidates {
		if c.Kind == mode.Void {
			return c, candidates
		}
	}
	return nil, candidates
}

// --- Operators -------------------------------------------------------------

// identifyOperator finds the operator of a formula by its symbol and the
// modes of its operands. The innermost declaration wins. A strict pass,
// matching operands after firm coercions, precedes a lenient one which also
// admits widening and uniting.
func (b *Binder) identifyOperator(n *syntax.Node) {
	for _, u := range n.Children {
		if u.Mode == nil || u.Mode.Kind == mode.Error {
			n.Mode = b.modes.ERROR
			return
		}
	}
	for _, match := range []func(param, arg *mode.Mode) bool{mode.FirmMatch, mode.Accepts} {
		for s := n.Table; s != nil; s = s.Previous {
			for _, tag := range s.Overloads(n.Symbol) {
				if tag.Mode == nil || tag.Mode.Kind != mode.Proc || len(tag.Mode.Params) != len(n.Children) {
					continue
				}
				ok := true
				for i, u := range n.Children {
					ok = ok && match(tag.Mode.Params[i], u.Mode)
				}
				if ok {
					tag.Used = true
					n.Tag = tag
					n.Mode = tag.Mode.Sub
					for i, u := range n.Children {
						b.settle(u, tag.Mode.Params[i])
					}
					return
				}
			}
		}
	}
	operands := make([]*mode.Mode, len(n.Children))
	for i, u := range n.Children {
		operands[i] = u.Mode
	}
	b.errorf(n.Pos, NoOperator, "operator %s is not declared for %v", n.Symbol, operands)
	n.Mode = b.modes.ERROR
}

// checkPriority requires dyadic operators to have a priority declaration.
func (b *Binder) checkPriority(n *syntax.Node) {
	tag := n.Tag
	if tag == nil || tag.Mode == nil || len(tag.Mode.Params) != 2 {
		return
	}
	prio, _ := n.Table.Resolve(n.Symbol, syntax.TagPriority)
	if prio == nil {
		b.errorf(n.Pos, NoPriority, "dyadic operator %s has no priority", n.Symbol)
		return
	}
	prio.Used = true
	tag.Priority = prio.Priority
}

// --- Names, calls, slices --------------------------------------------------

// primary strips the coercions allowed for primaries of slices and
// selections. It reports whether the result is a name (REF).
func primary(m *mode.Mode) (*mode.Mode, bool) {
	for i := 0; i < 64 && m != nil; i++ {
		switch {
		case m.IsParameterless():
			m = m.Sub
		case m.Kind == mode.Ref && m.Sub != nil && (m.Sub.Kind == mode.Ref || m.Sub.IsParameterless()):
			m = m.Sub
		case m.Kind == mode.Ref:
			return m.Sub, true
		default:
			return m, false
		}
	}
	return m, false
}

func (b *Binder) deriveAssignation(n *syntax.Node) {
	dst, src := n.Child(0), n.Child(1)
	m := dst.Mode
	for m != nil && m.IsParameterless() {
		m = m.Sub
	}
	switch {
	case m == nil || m.Kind == mode.Error:
		n.Mode = b.modes.ERROR
		return
	case m.Kind != mode.Ref:
		b.errorf(dst.Pos, NotAName, "destination of mode %v is not a name", dst.Mode)
		n.Mode = b.modes.ERROR
		return
	}
	n.Mode = m
	b.settle(src, m.Sub)
	b.expect(src, m.Sub)
}

func (b *Binder) deriveCall(n *syntax.Node) {
	p := n.Child(0).Mode
	for p != nil && p.Kind == mode.Ref {
		p = p.Sub
	}
	switch {
	case p == nil || p.Kind == mode.Error:
		n.Mode = b.modes.ERROR
		return
	case p.Kind != mode.Proc:
		b.errorf(n.Pos, NotAProcedure, "%v cannot be called", n.Child(0).Mode)
		n.Mode = b.modes.ERROR
		return
	}
	args := n.Children[1:]
	n.Mode = p.Sub
	if len(args) != len(p.Params) {
		b.errorf(n.Pos, Arity, "procedure of mode %v called with %d argument(s)", p, len(args))
		return
	}
	for i, a := range args {
		b.settle(a, p.Params[i])
		b.expect(a, p.Params[i])
	}
}

func (b *Binder) deriveSlice(n *syntax.Node) {
	r, name := primary(n.Child(0).Mode)
	switch {
	case r == nil || r.Kind == mode.Error:
		n.Mode = b.modes.ERROR
		return
	case !r.IsRow():
		b.errorf(n.Pos, NotARow, "%v cannot be sliced", n.Child(0).Mode)
		n.Mode = b.modes.ERROR
		return
	}
	indexers := n.Children[1:]
	if len(indexers) != r.Dims() {
		b.errorf(n.Pos, Arity, "%d indexer(s) for a row of %d dimension(s)", len(indexers), r.Dims())
		n.Mode = b.modes.ERROR
		return
	}
	trims := 0
	for _, x := range indexers {
		if x.Attr == syntax.Trimmer {
			trims++
			for _, u := range x.Children {
				b.expect(u, b.modes.INT)
			}
		} else {
			b.expect(x, b.modes.INT)
		}
	}
	m := r.Element()
	if trims > 0 {
		m = b.modes.RowOf(trims, m)
	}
	if name {
		m = b.modes.RefTo(m)
	}
	n.Mode = m
}

func (b *Binder) deriveSelection(n *syntax.Node) {
	s, name := primary(n.Child(0).Mode)
	if s == nil || s.Kind == mode.Error {
		n.Mode = b.modes.ERROR
		return
	}
	dims := 0
	if s.IsRow() {
		dims = s.Dims()
		s = s.Element()
	}
	if s.Kind != mode.Struct {
		b.errorf(n.Pos, NoField, "%v has no fields", n.Child(0).Mode)
		n.Mode = b.modes.ERROR
		return
	}
	i := s.FieldIndex(n.Symbol)
	if i < 0 {
		b.errorf(n.Pos, NoField, "%v has no field %s", s, n.Symbol)
		n.Mode = b.modes.ERROR
		return
	}
	m := s.Fields[i].Mode
	if dims > 0 {
		m = b.modes.RowOf(dims, m)
	}
	if name {
		m = b.modes.RefTo(m)
	}
	n.Mode = m
}

func (b *Binder) deriveDisplay(n *syntax.Node) {
	if len(n.Children) == 0 {
		n.Mode = b.modes.ERROR
		return
	}
	// Elements without a common mode may still form a structure; the
	// display is settled by its context then.
	elem, _ := b.balanced(n.Children)
	if elem == nil || elem.Kind == mode.Error {
		n.Mode = b.modes.ERROR
		return
	}
	for _, u := range n.Children {
		b.settle(u, elem)
	}
	n.Mode = b.modes.RowOf(1, elem)
}

func (b *Binder) deriveConformity(n *syntax.Node) {
	enquiry := n.Child(0)
	u := mode.Firm(enquiry.Mode)
	if u != nil && u.Kind != mode.Error && u.Kind != mode.Union {
		b.errorf(enquiry.Pos, ModeMismatch, "conformity clause needs a united value, have %v", enquiry.Mode)
	}
	hasOut := false
	for _, alt := range n.Children[1:] {
		if alt.Attr == syntax.OutPart {
			hasOut = true
			continue
		}
		spec := alt.Child(0).Mode
		if u != nil && u.Kind == mode.Union && !mode.Accepts(u, spec) {
			b.errorf(alt.Pos, ModeMismatch, "%v is not a member of %v", spec, u)
		}
	}
	if !hasOut {
		n.Mode = b.modes.VOID
		return
	}
	n.Mode = b.balance(n, n.Children[1:]...)
}
