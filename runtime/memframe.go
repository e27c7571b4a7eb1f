package runtime

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"github.com/npillmayer/genie/syntax"
)

// This module implements the stack of memory frames. A frame is opened for
// every range entered at run time and addressed by its frame pointer, the
// offset of its header in the frame stack.

// FrameHeaderSize is the size of the fixed part of a frame.
const FrameHeaderSize = 64

// Offsets of header fields.
const (
	hdrDynamicLink = 0
	hdrStaticLink  = 8
	hdrFrameNumber = 16
	hdrLexLevel    = 24
	hdrParamLevel  = 32
	hdrDynScope    = 40
	hdrNode        = 48
	hdrJump        = 52
	hdrThread      = 56
	hdrFrameSize   = 60
)

func (rt *Runtime) word(fp, off int) int {
	return int(int64(le.Uint64(rt.Frames[fp+off:])))
}

func (rt *Runtime) setWord(fp, off, v int) {
	le.PutUint64(rt.Frames[fp+off:], uint64(int64(v)))
}

func (rt *Runtime) half(fp, off int) int {
	return int(int32(le.Uint32(rt.Frames[fp+off:])))
}

func (rt *Runtime) setHalf(fp, off, v int) {
	le.PutUint32(rt.Frames[fp+off:], uint32(int32(v)))
}

// DynamicLink returns the frame pointer of the caller, -1 for the outermost frame.
func (rt *Runtime) DynamicLink(fp int) int { return rt.word(fp, hdrDynamicLink) }

// StaticLink returns the frame pointer of the lexically enclosing frame,
// -1 for the outermost frame.
func (rt *Runtime) StaticLink(fp int) int { return rt.word(fp, hdrStaticLink) }

// FrameNumber returns the serial number of a frame.
func (rt *Runtime) FrameNumber(fp int) int { return rt.word(fp, hdrFrameNumber) }

// LexLevel returns the lexical level of the range of a frame.
func (rt *Runtime) LexLevel(fp int) int { return rt.word(fp, hdrLexLevel) }

// ParamLevel returns the parameter level of the range of a frame.
func (rt *Runtime) ParamLevel(fp int) int { return rt.word(fp, hdrParamLevel) }

// DynamicScope returns the scope marker of names referring into a frame.
func (rt *Runtime) DynamicScope(fp int) int {
	if fp < 0 {
		return 0
	}
	return rt.word(fp, hdrDynScope)
}

// FrameNode returns the syntax node the frame has been opened for.
func (rt *Runtime) FrameNode(fp int) *syntax.Node {
	return rt.Tree.Node(rt.half(fp, hdrNode))
}

// JumpStatus returns the pending jump status of a frame.
func (rt *Runtime) JumpStatus(fp int) int { return rt.half(fp, hdrJump) }

// SetJumpStatus records a pending jump in a frame.
func (rt *Runtime) SetJumpStatus(fp, status int) { rt.setHalf(fp, hdrJump, status) }

// FrameThread returns the ID of the thread which opened a frame.
func (rt *Runtime) FrameThread(fp int) int { return rt.half(fp, hdrThread) }

// FrameSize returns the size of a frame, header included.
func (rt *Runtime) FrameSize(fp int) int { return rt.half(fp, hdrFrameSize) }

// FrameTop returns the first free address of the frame stack.
func (rt *Runtime) FrameTop() int {
	if rt.FP < 0 {
		return 0
	}
	return rt.FP + rt.FrameSize(rt.FP)
}

// OpenFrame opens a frame for the range introduced by node n. env is the
// environ of a routine being called, NoEnviron otherwise.
//
// The static link of the new frame is chosen as follows: entering a range on
// the level of the current one, the current static link is kept; entering a
// range one level deeper, the current frame becomes the static link; entering
// a shallower range, static links are followed up to a frame of the enclosing
// level. A routine with an environ takes the environ as its static link,
// provided the environ is still alive. Anything else
// would be a static link backwards in call order and is a scope violation.
func (rt *Runtime) OpenFrame(n *syntax.Node, env Environ) error {
	tab := n.Table
	if tab == nil || !n.NewLevel {
		Internal("frame opened for node %s, which does not introduce a range", n)
	}
	level := tab.Level
	sl, err := rt.staticLinkFor(n, level, env)
	if err != nil {
		return err
	}
	if tab.IsRoutine {
		rt.Heap.PreemptiveSweep()
	}
	fp := rt.FrameTop()
	size := FrameHeaderSize + tab.FrameIncrement
	if fp+size > len(rt.Frames) {
		return Errorf(n.Pos, StackOverflow, "frame stack exhausted (%d bytes)", len(rt.Frames))
	}
	if rt.opens++; rt.opens >= rt.Limits.StackCheckInterval {
		rt.opens = 0
		if fp+size > rt.frameHigh {
			return Errorf(n.Pos, StackOverflow, "frame stack beyond high-water mark")
		}
	}
	frame := rt.Frames[fp : fp+size]
	for i := range frame {
		frame[i] = 0
	}
	rt.frameNo++
	rt.setWord(fp, hdrDynamicLink, rt.FP)
	rt.setWord(fp, hdrStaticLink, sl)
	rt.setWord(fp, hdrFrameNumber, rt.frameNo)
	rt.setWord(fp, hdrLexLevel, level)
	rt.setWord(fp, hdrParamLevel, tab.ParameterLevel)
	rt.setWord(fp, hdrDynScope, fp)
	rt.setHalf(fp, hdrNode, n.ID)
	rt.setHalf(fp, hdrThread, rt.Thread)
	rt.setHalf(fp, hdrFrameSize, size)
	rt.FP = fp
	if rt.Global < 0 {
		rt.Global = fp
	}
	tracer().P("frame", rt.frameNo).Debugf("open frame at %d for %s, level %d, static link %d",
		fp, n, level, sl)
	return nil
}

func (rt *Runtime) staticLinkFor(n *syntax.Node, level int, env Environ) (int, error) {
	if rt.FP < 0 {
		return -1, nil
	}
	if env.FP >= 0 {
		// Frames below the frame top are alive; frame numbers are never reused.
		if fp := env.FP; fp < rt.FrameTop() && rt.FrameNumber(fp) == env.Frame && rt.LexLevel(fp) == level-1 {
			return fp, nil
		}
		return 0, Errorf(n.Pos, ScopeViolation, "routine called outside of the lifetime of its environ")
	}
	cur := rt.LexLevel(rt.FP)
	switch {
	case level == cur:
		return rt.StaticLink(rt.FP), nil
	case level == cur+1:
		return rt.FP, nil
	case level < cur:
		sl := rt.FP
		for sl >= 0 && rt.LexLevel(sl) >= level {
			sl = rt.StaticLink(sl)
		}
		return sl, nil
	}
	return 0, Errorf(n.Pos, ScopeViolation, "range of level %d entered from level %d", level, cur)
}

// CloseFrame restores the frame pointer from the dynamic link. Handles
// owned by the frame are released.
func (rt *Runtime) CloseFrame() {
	if rt.FP < 0 {
		Internal("attempt to close a frame of an empty frame stack")
	}
	fp := rt.FP
	if n := rt.Heap.ReleaseFrame(rt.FrameNumber(fp)); n > 0 {
		tracer().Debugf("released %d handles of frame %d", n, rt.FrameNumber(fp))
	}
	rt.FP = rt.DynamicLink(fp)
}

// UnwindTo closes frames until fp is the current frame.
func (rt *Runtime) UnwindTo(fp int) {
	for rt.FP > fp {
		rt.CloseFrame()
	}
}

// FollowStaticLink walks the static chain from the current frame to the
// frame of a lexical level. It returns the frame pointer and the number of
// links followed.
func (rt *Runtime) FollowStaticLink(level int) (int, int) {
	fp, hops := rt.FP, 0
	for fp >= 0 && rt.LexLevel(fp) > level {
		fp = rt.StaticLink(fp)
		hops++
	}
	if fp < 0 || rt.LexLevel(fp) != level {
		Internal("no frame of lexical level %d on the static chain", level)
	}
	return fp, hops
}

// Address returns the absolute address of the cell of a tag, which must
// belong to a table on the static chain of the current frame.
func (rt *Runtime) Address(tag *syntax.Tag) (int, int) {
	fp, _ := rt.FollowStaticLink(tag.Table.Level)
	return fp + FrameHeaderSize + tag.Offset, fp
}

// TagCell returns the storage of a tag.
func (rt *Runtime) TagCell(tag *syntax.Tag) []byte {
	addr, _ := rt.Address(tag)
	return rt.Frames[addr : addr+tag.Size()]
}

// TagRef returns a name for the cell of a tag.
func (rt *Runtime) TagRef(tag *syntax.Tag) Ref {
	addr, fp := rt.Address(tag)
	return rt.FrameRef(addr, fp)
}
