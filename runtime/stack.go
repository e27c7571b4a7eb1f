package runtime

import (
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
)

// Expression stack. Pushing checks the hard bound every time and the
// high-water mark every StackCheckInterval pushes; both failures are fatal
// and raised with Fail. Popping below the bottom is an internal error.

// Reserve pushes n zero bytes and returns them.
func (rt *Runtime) Reserve(n int) []byte {
	if rt.SP+n > len(rt.Stack) {
		Fail(genie.NoPos, StackOverflow, "expression stack exhausted (%d bytes)", len(rt.Stack))
	}
	if rt.pushes++; rt.pushes >= rt.Limits.StackCheckInterval {
		rt.pushes = 0
		if rt.SP+n > rt.stackHigh {
			Fail(genie.NoPos, StackOverflow, "expression stack beyond high-water mark")
		}
	}
	cell := rt.Stack[rt.SP : rt.SP+n]
	for i := range cell {
		cell[i] = 0
	}
	rt.SP += n
	return cell
}

// PushBytes pushes a copy of a cell.
func (rt *Runtime) PushBytes(cell []byte) {
	copy(rt.Reserve(len(cell)), cell)
}

// Pop pops n bytes. The result is valid until the next push.
func (rt *Runtime) Pop(n int) []byte {
	if n > rt.SP {
		Internal("expression stack underflow: pop %d of %d bytes", n, rt.SP)
	}
	rt.SP -= n
	return rt.Stack[rt.SP : rt.SP+n]
}

// PopCopy pops n bytes into a fresh slice.
func (rt *Runtime) PopCopy(n int) []byte {
	cell := make([]byte, n)
	copy(cell, rt.Pop(n))
	return cell
}

// Top returns the n topmost bytes without popping them.
func (rt *Runtime) Top(n int) []byte {
	if n > rt.SP {
		Internal("expression stack underflow: top %d of %d bytes", n, rt.SP)
	}
	return rt.Stack[rt.SP-n : rt.SP]
}

// Typed pushes and pops.

// PushInt pushes an INT.
func (rt *Runtime) PushInt(v int64) { PutInt(rt.Reserve(mode.SizeInt), v) }

// PopInt pops an INT.
func (rt *Runtime) PopInt() int64 { return GetInt(rt.Pop(mode.SizeInt)) }

// PushReal pushes a REAL.
func (rt *Runtime) PushReal(v float64) { PutReal(rt.Reserve(mode.SizeReal), v) }

// PopReal pops a REAL.
func (rt *Runtime) PopReal() float64 { return GetReal(rt.Pop(mode.SizeReal)) }

// PushBool pushes a BOOL.
func (rt *Runtime) PushBool(v bool) { PutBool(rt.Reserve(mode.SizeBool), v) }

// PopBool pops a BOOL.
func (rt *Runtime) PopBool() bool { return GetBool(rt.Pop(mode.SizeBool)) }

// PushChar pushes a CHAR.
func (rt *Runtime) PushChar(r rune) { PutChar(rt.Reserve(mode.SizeChar), r) }

// PopChar pops a CHAR.
func (rt *Runtime) PopChar() rune { return GetChar(rt.Pop(mode.SizeChar)) }

// PushRef pushes a name.
func (rt *Runtime) PushRef(r Ref) { PutRef(rt.Reserve(mode.SizeRef), r) }

// PopRef pops a name.
func (rt *Runtime) PopRef() Ref { return GetRef(rt.Pop(mode.SizeRef)) }

// PushProc pushes a procedure.
func (rt *Runtime) PushProc(p Proc) { PutProc(rt.Reserve(mode.SizeProc), p) }

// PopProc pops a procedure.
func (rt *Runtime) PopProc() Proc { return GetProc(rt.Pop(mode.SizeProc)) }
