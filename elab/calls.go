package elab

import (
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/bind"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/stowed"
	"github.com/npillmayer/genie/syntax"
)

// routine pushes the procedure value of a routine text. Its environ is the
// current frame, the frame of the range the routine text appears in.
func (x *Interpreter) routine(n *syntax.Node) {
	x.rt.PushProc(runtime.Proc{
		Kind: runtime.Routine,
		ID:   n.ID,
		Env:  runtime.Environ{FP: x.rt.FP, Frame: x.rt.FrameNumber(x.rt.FP)},
	})
}

// call elaborates the primary of a call, then the arguments, left to right.
func (x *Interpreter) call(n *syntax.Node) error {
	primary := n.Child(0)
	pm := primary.Mode
	for pm != nil && pm.Kind == mode.Ref {
		pm = pm.Sub
	}
	if err := x.strong(primary, pm); err != nil {
		return err
	}
	p := x.rt.PopProc()
	for i, arg := range n.Children[1:] {
		if err := x.strong(arg, pm.Params[i]); err != nil {
			return err
		}
	}
	return x.invoke(n.Pos, p, pm)
}

// formula applies a standard or a user defined operator.
func (x *Interpreter) formula(n *syntax.Node) error {
	op := n.Tag
	pm := op.Mode
	for i, u := range n.Children {
		if err := x.strong(u, pm.Params[i]); err != nil {
			return err
		}
	}
	if key, ok := op.UData.(bind.Builtin); ok {
		id, ok := standardIDs[key]
		if !ok {
			runtime.Internal("no implementation of standard operator %s (%s)", op.Name(), key)
		}
		return standard[id].op(x, n.Pos, pm)
	}
	return x.invoke(n.Pos, runtime.GetProc(x.rt.TagCell(op)), pm)
}

// invoke calls procedure p of mode pm. The arguments are on the stack; they
// are replaced by the result.
func (x *Interpreter) invoke(pos genie.Pos, p runtime.Proc, pm *mode.Mode) error {
	if err := x.sched.Poll(pos); err != nil {
		return err
	}
	switch p.Kind {
	case runtime.Builtin:
		if p.ID < 0 || p.ID >= len(standard) {
			runtime.Internal("no standard procedure #%d", p.ID)
		}
		return standard[p.ID].op(x, pos, pm)
	case runtime.Routine:
		return x.callRoutine(pos, p)
	}
	return runtime.Errorf(pos, runtime.Uninitialised, "procedure of mode %v is uninitialised", pm)
}

// callRoutine opens the frame of a routine text, moves the arguments into
// the parameter cells, last one first, and elaborates the body.
func (x *Interpreter) callRoutine(pos genie.Pos, p runtime.Proc) error {
	rt := x.rt
	r := rt.Tree.Node(p.ID)
	if r == nil || r.Attr != syntax.RoutineText {
		runtime.Internal("procedure refers to node #%d, which is not a routine text", p.ID)
	}
	if err := rt.OpenFrame(r, p.Env); err != nil {
		return x.locatePos(pos, err)
	}
	params := r.Child(0).Children
	for i := len(params) - 1; i >= 0; i-- {
		tag := params[i].Tag
		if err := x.store(tag.Mode, rt.TagCell(tag), rt.Owner()); err != nil {
			return err
		}
	}
	result := r.Mode.Sub
	if err := x.strong(r.Child(2), result); err != nil {
		return err
	}
	return x.leave(pos, result)
}

func (x *Interpreter) locatePos(pos genie.Pos, err error) error {
	if e, ok := err.(*runtime.Error); ok && e.Pos.IsNull() {
		e.Pos = pos
	}
	return err
}

// store pops a value of mode m into cell. Stowed values are copied, the
// copies belong to owner.
func (x *Interpreter) store(m *mode.Mode, cell []byte, owner runtime.Owner) error {
	v := x.rt.PopCopy(size(m))
	if m.IsStowed() {
		return stowed.CopyStowed(x.rt, m, cell, v, owner)
	}
	copy(cell, v)
	return nil
}

// leave closes the current frame, which yields a value of mode m. Names and
// procedures, also those inside structures, rows and unions, must not refer
// to the frame; stowed values are copied out of it, as rows generated in the
// frame are released with it.
func (x *Interpreter) leave(pos genie.Pos, m *mode.Mode) error {
	rt := x.rt
	if m != nil {
		outer := rt.DynamicScope(rt.DynamicLink(rt.FP))
		switch {
		case m.Kind == mode.Ref:
			if err := runtime.CheckScope(pos, runtime.GetRef(rt.Top(mode.SizeRef)).Scope, outer); err != nil {
				return err
			}
		case m.Kind == mode.Proc:
			if err := checkEnviron(pos, runtime.GetProc(rt.Top(mode.SizeProc)), outer); err != nil {
				return err
			}
		case m.Kind == mode.Union && !m.IsStowed():
			if err := stowed.CheckScope(rt, m, rt.Top(m.Size()), outer); err != nil {
				return x.locatePos(pos, err)
			}
		case m.IsStowed():
			v := rt.PopCopy(m.Size())
			if err := stowed.CopyStowed(rt, m, rt.Reserve(m.Size()), v, rt.CallerOwner()); err != nil {
				return x.locatePos(pos, err)
			}
		}
	}
	rt.CloseFrame()
	return nil
}

// checkEnviron fails if the environ of a routine does not outlive storage
// of scope dst.
func checkEnviron(pos genie.Pos, p runtime.Proc, dst int) error {
	if p.Kind != runtime.Routine || p.Env.FP < 0 {
		return nil
	}
	return runtime.CheckScope(pos, p.Env.FP, dst)
}
