package runtime

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/syntax"
)

// Runtime is the execution context of a program: the frame stack, the
// expression stack and the heap, plus the registers pointing into them.
// Only one thread at a time may use a Runtime; package parallel arranges
// for that.
type Runtime struct {
	Tree    *syntax.Tree // bound syntax tree
	Modes   *mode.Table  // modes of the tree
	Limits  Limits       // resource limits
	Heap    *Heap        // handle arena
	Frames  []byte       // frame stack
	Stack   []byte       // expression stack
	FP      int          // current frame, -1 if no frame is open
	SP      int          // top of the expression stack
	Global  int          // the outermost frame, -1 if not yet opened
	Thread  int          // ID of the thread holding the runtime
	Monitor Monitor      // consulted at breakpoints, may be nil
	UData   interface{}  // extension point

	frameNo   int // last frame number handed out
	pushes    int // pushes since the last high-water check
	opens     int // frames opened since the last high-water check
	frameHigh int // high-water mark of the frame stack
	stackHigh int // high-water mark of the expression stack
}

// NewRuntime creates a runtime for a bound tree, with stacks and heap sized
// according to limits.
func NewRuntime(tree *syntax.Tree, modes *mode.Table, limits Limits) *Runtime {
	limits = limits.WithDefaults()
	rt := &Runtime{
		Tree:   tree,
		Modes:  modes,
		Limits: limits,
		Heap:   NewHeap(limits),
		Frames: make([]byte, limits.FrameStackSize),
		Stack:  make([]byte, limits.ExprStackSize),
		FP:     -1,
		Global: -1,
	}
	rt.frameHigh = highWater(len(rt.Frames))
	rt.stackHigh = highWater(len(rt.Stack))
	tracer().Debugf("runtime with %d bytes of frame stack, %d bytes of expression stack",
		len(rt.Frames), len(rt.Stack))
	return rt
}

// highWater leaves a safety margin of 1/16 of a stack.
func highWater(size int) int {
	return size - size/16
}

// Owner returns the owner for values generated in the current frame.
func (rt *Runtime) Owner() Owner {
	if rt.FP < 0 {
		return HeapOwner
	}
	return Owner{Kind: OnStack, Frame: rt.FrameNumber(rt.FP), Scope: rt.DynamicScope(rt.FP)}
}

// CallerOwner returns the owner for values which survive the current
// frame, i.e. the owner of the dynamically enclosing frame.
func (rt *Runtime) CallerOwner() Owner {
	if rt.FP < 0 {
		return HeapOwner
	}
	dl := rt.DynamicLink(rt.FP)
	if dl < 0 {
		return HeapOwner
	}
	return Owner{Kind: OnStack, Frame: rt.FrameNumber(dl), Scope: rt.DynamicScope(dl)}
}

// OwnerOf returns the owner of the storage a name refers to.
func (rt *Runtime) OwnerOf(r Ref) Owner {
	switch r.Segment {
	case SegHeap:
		if hd := rt.Heap.Handle(r.Handle); hd != nil {
			return hd.Owner
		}
	case SegFrame:
		if fp := r.Scope; fp >= 0 && fp < rt.FrameTop() && r.Offset >= fp && r.Offset < fp+rt.FrameSize(fp) {
			return Owner{Kind: OnStack, Frame: rt.FrameNumber(fp), Scope: fp}
		}
		if fp := rt.frameOf(r.Offset); fp >= 0 {
			return Owner{Kind: OnStack, Frame: rt.FrameNumber(fp), Scope: rt.DynamicScope(fp)}
		}
	}
	return HeapOwner
}

// frameOf finds the frame on the dynamic chain containing an address.
func (rt *Runtime) frameOf(addr int) int {
	for fp := rt.FP; fp >= 0; fp = rt.DynamicLink(fp) {
		if addr >= fp && addr < fp+rt.FrameSize(fp) {
			return fp
		}
	}
	return -1
}
