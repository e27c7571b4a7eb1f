package elab

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/bind"
	"github.com/npillmayer/genie/parallel"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/syntax"
)

// Interpreter elaborates one bound program.
type Interpreter struct {
	rt    *runtime.Runtime
	sched *parallel.Scheduler
	out   io.Writer
	rand  *rand.Rand
	trace bool
	last  *syntax.Node // unit elaborated last, for positioning panics
	abend error
}

// Option configures an interpreter.
type Option func(*Interpreter)

// WithOutput directs the output of print to w. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(x *Interpreter) {
		x.out = w
	}
}

// WithMonitor installs a monitor, consulted at breakpoints.
func WithMonitor(m runtime.Monitor) Option {
	return func(x *Interpreter) {
		x.rt.Monitor = m
	}
}

// WithSeed seeds the generator behind the standard procedure random.
func WithSeed(seed int64) Option {
	return func(x *Interpreter) {
		x.rand = rand.New(rand.NewSource(seed))
	}
}

// New creates an interpreter for a bound program. Programs with binding
// errors are refused.
func New(r *bind.Result, limits runtime.Limits, opts ...Option) (*Interpreter, error) {
	if r == nil || r.Tree == nil {
		return nil, errors.New("elab: no program")
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("elab: program cannot be run: %w", err)
	}
	x := &Interpreter{
		rt:   runtime.NewRuntime(r.Tree, r.Modes, limits),
		out:  os.Stdout,
		rand: rand.New(rand.NewSource(1)),
	}
	x.sched = parallel.NewScheduler(x.rt.Limits)
	x.trace = x.rt.Limits.TraceUnits
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Run creates an interpreter for a bound program and runs it.
func Run(r *bind.Result, limits runtime.Limits, opts ...Option) error {
	x, err := New(r, limits, opts...)
	if err != nil {
		return err
	}
	return x.Run()
}

// Runtime returns the runtime of the interpreter.
func (x *Interpreter) Runtime() *runtime.Runtime {
	return x.rt
}

// Abend returns the error which terminated the program, if any.
func (x *Interpreter) Abend() error {
	return x.abend
}

// Run elaborates the program. Run-time errors terminate the program and are
// returned as *runtime.Error.
func (x *Interpreter) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = x.locate(x.last, runtime.AsError(r))
		}
		if j, ok := err.(*jump); ok {
			err = runtime.Errorf(j.from, runtime.InternalConsistency, "jump to %s left the program", j.tag.Name())
		}
		if err != nil {
			x.abend = err
			tracer().Errorf("program terminated: %v", err)
		}
	}()
	prog := x.rt.Tree.Root
	tracer().Infof("elaborating program of %d nodes", x.rt.Tree.Size())
	if err = x.rt.OpenFrame(prog, runtime.NoEnviron); err != nil {
		return x.locate(prog, err)
	}
	if err = x.void(prog.Child(0)); err != nil {
		return err
	}
	x.rt.CloseFrame()
	if x.rt.SP != 0 {
		runtime.Internal("%d bytes left on the expression stack", x.rt.SP)
	}
	tracer().Infof("program done, %d live handles", x.rt.Heap.Live())
	return nil
}

// locate adds the position of n to run-time errors which have none.
func (x *Interpreter) locate(n *syntax.Node, err error) error {
	var e *runtime.Error
	if n != nil && errors.As(err, &e) && e.Pos.IsNull() {
		e.Pos = n.Pos
	}
	return err
}

// jump is a pending jump to a label. It is passed up as an error until it
// reaches the serial clause of the label, whose frame is at fp.
type jump struct {
	tag  *syntax.Tag
	fp   int
	from genie.Pos
}

func (j *jump) Error() string {
	return fmt.Sprintf("%s: jump to %s", j.from, j.tag.Name())
}

func (x *Interpreter) jumpTo(n *syntax.Node) error {
	tag := n.Tag
	fp, _ := x.rt.FollowStaticLink(tag.Table.Level)
	x.rt.SetJumpStatus(fp, 1)
	tracer().Debugf("jump to %s in frame %d", tag.Name(), x.rt.FrameNumber(fp))
	return &jump{tag: tag, fp: fp, from: n.Pos}
}
