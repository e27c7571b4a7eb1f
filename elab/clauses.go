package elab

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"errors"
	"math"

	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/stowed"
	"github.com/npillmayer/genie/syntax"
)

// block elaborates a serial clause. Jumps to labels of the clause resume
// elaboration after the label.
func (x *Interpreter) block(n *syntax.Node) error {
	rt := x.rt
	if err := rt.OpenFrame(n, runtime.NoEnviron); err != nil {
		return err
	}
	fp, sp := rt.FP, rt.SP
	last := -1
	for i := len(n.Children) - 1; i >= 0; i-- {
		if u := n.Children[i]; u.Attr != syntax.Label {
			if !u.Attr.IsDeclaration() {
				last = i
			}
			break
		}
	}
	yielded := false
	for i := 0; i < len(n.Children); i++ {
		u := n.Children[i]
		var err error
		if i == last {
			err = x.strong(u, n.Mode)
			yielded = err == nil
		} else {
			err = x.void(u)
		}
		if err == nil {
			continue
		}
		var j *jump
		if !errors.As(err, &j) || j.fp != fp || j.tag.Table != n.Table {
			return err
		}
		rt.UnwindTo(fp)
		rt.SP = sp
		rt.SetJumpStatus(fp, 0)
		yielded = false
		i = x.labelIndex(n, j.tag)
	}
	if !yielded {
		rt.Reserve(size(n.Mode))
	}
	return x.leave(n.Pos, n.Mode)
}

func (x *Interpreter) labelIndex(n *syntax.Node, label *syntax.Tag) int {
	for i, u := range n.Children {
		if u == label.Node {
			return i
		}
	}
	runtime.Internal("label %s is not part of %s", label.Name(), n)
	return -1
}

func (x *Interpreter) conditional(n *syntax.Node) error {
	rt := x.rt
	if err := rt.OpenFrame(n, runtime.NoEnviron); err != nil {
		return err
	}
	if err := x.strong(n.Child(0), rt.Modes.BOOL); err != nil {
		return err
	}
	branch := n.Child(1)
	if !rt.PopBool() {
		branch = n.Child(2)
	}
	if branch == nil {
		rt.Reserve(size(n.Mode))
	} else if err := x.strong(branch, n.Mode); err != nil {
		return err
	}
	return x.leave(n.Pos, n.Mode)
}

// conformity chooses the first specifier whose mode accepts the mode of the
// value held by the united enquiry. The identifier of the specifier is
// ascribed the value, united anew if the specifier has a union mode.
func (x *Interpreter) conformity(n *syntax.Node) error {
	rt := x.rt
	if err := rt.OpenFrame(n, runtime.NoEnviron); err != nil {
		return err
	}
	enquiry := n.Child(0)
	um := mode.Firm(enquiry.Mode)
	if err := x.strong(enquiry, um); err != nil {
		return err
	}
	v := rt.PopCopy(size(um))
	if !runtime.IsInitialized(v) {
		return runtime.Errorf(enquiry.Pos, runtime.Uninitialised, "conformity clause on an uninitialised value")
	}
	held := rt.Modes.ByID(runtime.UnionMode(v))
	var chosen *syntax.Node
	for _, alt := range n.Children[1:] {
		if alt.Attr == syntax.OutPart {
			chosen = alt
			break
		}
		if conforms(alt.Child(0).Mode, held) {
			chosen = alt
			break
		}
	}
	switch {
	case chosen == nil:
		rt.Reserve(size(n.Mode))
	case chosen.Attr == syntax.OutPart:
		if err := x.strong(chosen.Child(0), n.Mode); err != nil {
			return err
		}
	default:
		if err := x.specified(chosen, held, v, n.Mode); err != nil {
			return err
		}
	}
	return x.leave(n.Pos, n.Mode)
}

func conforms(spec, held *mode.Mode) bool {
	if held == nil {
		return false
	}
	if spec.Kind == mode.Union {
		return spec.MemberIndex(held) >= 0
	}
	return mode.Equivalent(spec, held)
}

// specified elaborates the unit of a chosen specifier, whose identifier is
// ascribed the united value v holding a value of mode held.
func (x *Interpreter) specified(alt *syntax.Node, held *mode.Mode, v []byte, m *mode.Mode) error {
	rt := x.rt
	if err := rt.OpenFrame(alt, runtime.NoEnviron); err != nil {
		return err
	}
	if tag := alt.Tag; tag != nil && alt.Symbol != "" {
		cell := rt.TagCell(tag)
		spec := tag.Mode
		switch {
		case spec.Kind == mode.Union:
			runtime.PutUnion(cell, spec.Members[spec.MemberIndex(held)].ID)
			copy(runtime.Payload(cell), runtime.Payload(v)[:size(held)])
		case spec.IsStowed():
			if err := stowed.CopyStowed(rt, spec, cell, runtime.Payload(v)[:size(spec)], rt.Owner()); err != nil {
				return err
			}
		default:
			copy(cell, runtime.Payload(v))
		}
	}
	if err := x.strong(alt.Child(1), m); err != nil {
		return err
	}
	return x.leave(alt.Pos, m)
}

// loop elaborates a loop clause. The counter lives in the frame of the
// loop; WHILE and DO parts get fresh frames every round.
func (x *Interpreter) loop(n *syntax.Node) error {
	rt := x.rt
	if err := rt.OpenFrame(n, runtime.NoEnviron); err != nil {
		return err
	}
	from, by := int64(1), int64(1)
	var to *int64
	var while, do *syntax.Node
	for _, part := range n.Children {
		var err error
		switch part.Attr {
		case syntax.FromPart:
			from, err = x.integer(part.Child(0))
		case syntax.ByPart:
			by, err = x.integer(part.Child(0))
		case syntax.ToPart:
			var t int64
			t, err = x.integer(part.Child(0))
			to = &t
		case syntax.WhilePart:
			while = part
		case syntax.DoPart:
			do = part
		}
		if err != nil {
			return err
		}
	}
	counter := rt.TagCell(n.Tag)
	for i := from; ; {
		if to != nil && (by >= 0 && i > *to || by < 0 && i < *to) {
			break
		}
		if err := x.sched.Poll(n.Pos); err != nil {
			return err
		}
		runtime.PutInt(counter, i)
		done, err := x.round(while, do)
		if err != nil {
			return err
		}
		if done {
			break
		}
		if by > 0 && i > math.MaxInt64-by || by < 0 && i < math.MinInt64-by {
			if to != nil {
				break
			}
			return runtime.Errorf(n.Pos, runtime.Arithmetic, "loop counter overflows")
		}
		i += by
	}
	rt.CloseFrame()
	return nil
}

// round elaborates the WHILE part, if any, and then the DO part. It returns
// true if the WHILE part ends the loop.
func (x *Interpreter) round(while, do *syntax.Node) (bool, error) {
	rt := x.rt
	if while != nil {
		if err := rt.OpenFrame(while, runtime.NoEnviron); err != nil {
			return false, err
		}
		if err := x.strong(while.Child(0), rt.Modes.BOOL); err != nil {
			return false, err
		}
		if !rt.PopBool() {
			rt.CloseFrame()
			return true, nil
		}
	}
	if err := rt.OpenFrame(do, runtime.NoEnviron); err != nil {
		return false, err
	}
	if err := x.void(do.Child(0)); err != nil {
		return false, err
	}
	rt.CloseFrame()
	if while != nil {
		rt.CloseFrame()
	}
	return false, nil
}

// parallel elaborates the units of a parallel clause as threads.
func (x *Interpreter) parallel(n *syntax.Node) error {
	return x.sched.Run(x.rt, n.Children, x.thread)
}

// thread runs a unit of a parallel clause. Frames left open by a failing
// unit are closed before the token is passed on.
func (x *Interpreter) thread(rt *runtime.Runtime, u *syntax.Node) (err error) {
	fp, sp := rt.FP, rt.SP
	defer func() {
		if r := recover(); r != nil {
			err = x.locate(x.last, runtime.AsError(r))
		}
		if err != nil {
			rt.UnwindTo(fp)
			rt.SP = sp
		}
	}()
	return x.void(u)
}
