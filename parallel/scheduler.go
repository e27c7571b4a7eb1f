package parallel

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/runtime"
	"github.com/npillmayer/genie/syntax"
)

// Elaborate runs a unit. The result of the unit is voided.
type Elaborate func(rt *runtime.Runtime, unit *syntax.Node) error

// Scheduler passes the token between the threads of a program.
type Scheduler struct {
	mu       sync.Mutex
	ready    *linkedlistqueue.Queue // threads waiting for the token
	threads  map[int]*Context       // threads not yet ended, the root excluded
	root     *Context
	current  *Context // holder of the token
	nextID   int
	progress uint64 // counts semaphore operations and ended threads
	limits   runtime.Limits
	start    time.Time
}

// NewScheduler creates a scheduler. The calling goroutine becomes the root
// thread and holds the token.
func NewScheduler(limits runtime.Limits) *Scheduler {
	s := &Scheduler{
		ready:   linkedlistqueue.New(),
		threads: make(map[int]*Context),
		limits:  limits.WithDefaults(),
		start:   time.Now(),
	}
	s.root = &Context{State: Active, wake: make(chan struct{}, 1)}
	s.current = s.root
	return s
}

// Current returns the thread holding the token.
func (s *Scheduler) Current() *Context {
	return s.current
}

// Threads returns the number of threads not yet ended, the root excluded.
func (s *Scheduler) Threads() int {
	return len(s.threads)
}

// Aborted returns the error which abandons the clauses the current thread
// is part of, if any.
func (s *Scheduler) Aborted() error {
	return s.current.group.aborted()
}

// Run elaborates units in parallel and waits for all of them to end. It
// returns the first error of a unit. Run is called by the token holder.
func (s *Scheduler) Run(rt *runtime.Runtime, units []*syntax.Node, elaborate Elaborate) error {
	if len(units) == 0 {
		return nil
	}
	parent := s.current
	if len(s.threads)+len(units) > s.limits.MaxThreads {
		return runtime.Errorf(units[0].Pos, runtime.ResourceExhausted,
			"cannot create %d more threads, limit is %d", len(units), s.limits.MaxThreads)
	}
	g := &group{parent: parent.group, pending: len(units)}
	for _, unit := range units {
		s.nextID++
		c := newContext(s.nextID, parent, g, unit, rt)
		s.threads[c.ID] = c
		s.enqueue(c)
		go s.thread(c, rt, elaborate)
	}
	tracer().Debugf("thread %d started %d threads", parent.ID, len(units))
	state := parent.State
	for g.pending > 0 {
		p := s.progress
		parent.State = Blocked
		s.yield(rt)
		if g.pending == 0 {
			break
		}
		if err := s.checkTime(units[0].Pos); err != nil {
			g.abort(err)
		} else if s.progress == p && s.stalled(parent) {
			g.abort(runtime.Errorf(units[0].Pos, runtime.Deadlock,
				"all threads of a parallel clause are blocked"))
		}
	}
	parent.State = state
	tracer().Debugf("threads of thread %d ended", parent.ID)
	return g.err
}

// thread is the goroutine of a context. It waits for the token before
// touching the runtime.
func (s *Scheduler) thread(c *Context, rt *runtime.Runtime, elaborate Elaborate) {
	<-c.wake
	c.restore(rt)
	c.State = Active
	err := c.group.aborted()
	if err == nil {
		err = s.elaborate(c, rt, elaborate)
	}
	c.State = Ended
	delete(s.threads, c.ID)
	s.progress++
	if err != nil {
		tracer().Infof("thread %d ends with %v", c.ID, err)
		c.group.abort(err)
	}
	c.group.pending--
	s.handOver(c)
}

func (s *Scheduler) elaborate(c *Context, rt *runtime.Runtime, elaborate Elaborate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = runtime.AsError(r)
		}
	}()
	return elaborate(rt, c.Unit)
}

func (s *Scheduler) enqueue(c *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready.Enqueue(c)
}

func (s *Scheduler) dequeue() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.ready.Dequeue()
	if !ok {
		return nil
	}
	return v.(*Context)
}

// yield hands the token to the next ready thread and waits to get it back.
// It returns at once if no other thread is ready.
func (s *Scheduler) yield(rt *runtime.Runtime) {
	me := s.current
	next := s.dequeue()
	if next == nil {
		return
	}
	me.save(rt)
	s.enqueue(me)
	s.current = next
	next.wake <- struct{}{}
	<-me.wake
	me.restore(rt)
}

// handOver passes the token on for good; c has ended.
func (s *Scheduler) handOver(c *Context) {
	next := s.dequeue()
	if next == nil {
		runtime.Internal("thread %d ended with no thread left to take over", c.ID)
	}
	s.current = next
	next.wake <- struct{}{}
}

// stalled is true if every thread except me is blocked. me is blocked, too,
// which makes a round without progress a deadlock.
func (s *Scheduler) stalled(me *Context) bool {
	if s.root != me && s.root.State != Blocked {
		return false
	}
	for _, c := range s.threads {
		if c != me && c.State != Blocked {
			return false
		}
	}
	return true
}

func (s *Scheduler) checkTime(pos genie.Pos) error {
	if s.limits.TimeLimit > 0 && time.Since(s.start) > s.limits.TimeLimit {
		return runtime.Errorf(pos, runtime.TimeLimit, "time limit of %v exceeded", s.limits.TimeLimit)
	}
	return nil
}

// Poll returns the error abandoning the current thread, or a time limit
// error. The elaborator polls at calls and loop iterations.
func (s *Scheduler) Poll(pos genie.Pos) error {
	if err := s.Aborted(); err != nil {
		return err
	}
	return s.checkTime(pos)
}
