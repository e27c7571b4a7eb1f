package parallel

import (
	"fmt"

	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/syntax"
)

// State is the state of a thread.
type State int

// States of threads.
const (
	Created State = iota
	Active
	Blocked
	Ended
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Active:
		return "active"
	case Blocked:
		return "blocked"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// group collects the threads of one parallel clause.
type group struct {
	parent  *group
	pending int   // threads not yet ended
	err     error // first error of a thread
}

func (g *group) abort(err error) {
	if g.err == nil {
		g.err = err
	}
}

// aborted returns the error of g or of an enclosing clause.
func (g *group) aborted() error {
	for ; g != nil; g = g.parent {
		if g.err != nil {
			return g.err
		}
	}
	return nil
}

// Context is a thread elaborating one unit of a parallel clause. The root
// context stands for the thread which started the program.
type Context struct {
	ID        int
	Parent    *Context
	Unit      *syntax.Node
	State     State
	FrameBase int // base of the segment of the frame stack
	StackBase int // base of the segment of the expression stack

	fp, sp int // saved registers
	frames []byte
	stack  []byte
	wake   chan struct{}
	group  *group // clause the thread belongs to
}

func newContext(id int, parent *Context, g *group, unit *syntax.Node, rt *runtime.Runtime) *Context {
	return &Context{
		ID:        id,
		Parent:    parent,
		Unit:      unit,
		FrameBase: rt.FrameTop(),
		StackBase: rt.SP,
		fp:        rt.FP,
		sp:        rt.SP,
		wake:      make(chan struct{}, 1),
		group:     g,
	}
}

func (c *Context) String() string {
	return fmt.Sprintf("<thread %d %s>", c.ID, c.State)
}

// IsRoot is true for the thread which started the program.
func (c *Context) IsRoot() bool {
	return c.Parent == nil
}

// chain lists the contexts whose segments a thread depends on, outermost
// first. The root context has no segment of its own.
func (c *Context) chain() []*Context {
	var l []*Context
	for x := c; x != nil && !x.IsRoot(); x = x.Parent {
		l = append(l, x)
	}
	for i, j := 0, len(l)-1; i < j; i, j = i+1, j-1 {
		l[i], l[j] = l[j], l[i]
	}
	return l
}

// save copies the segments of c and its ancestors out of the shared stacks.
// The segment of an ancestor ends where the segment of its descendant
// begins.
func (c *Context) save(rt *runtime.Runtime) {
	c.fp, c.sp = rt.FP, rt.SP
	chain := c.chain()
	for i, x := range chain {
		ftop, stop := rt.FrameTop(), rt.SP
		if i+1 < len(chain) {
			ftop, stop = chain[i+1].FrameBase, chain[i+1].StackBase
		}
		x.frames = append(x.frames[:0], rt.Frames[x.FrameBase:max(ftop, x.FrameBase)]...)
		x.stack = append(x.stack[:0], rt.Stack[x.StackBase:max(stop, x.StackBase)]...)
	}
}

// restore copies the segments of c and its ancestors back, outermost first,
// and loads the registers of c.
func (c *Context) restore(rt *runtime.Runtime) {
	for _, x := range c.chain() {
		copy(rt.Frames[x.FrameBase:], x.frames)
		copy(rt.Stack[x.StackBase:], x.stack)
	}
	rt.FP, rt.SP = c.fp, c.sp
	rt.Thread = c.ID
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
