package parallel

import (
	"github.com/npillmayer/genie"
	"github.com/npillmayer/genie/mode"
	"github.com/npillmayer/genie/runtime"
)

// Semaphores. A SEMA value is a name of a heap cell holding the count. The
// cell is looked up again after every suspension, as its storage may have
// been moved in between.

// NewSema creates a semaphore with count level.
func NewSema(rt *runtime.Runtime, level int64) (runtime.Ref, error) {
	id, err := rt.Heap.Allocate(mode.SizeInt, runtime.HeapOwner)
	if err != nil {
		return runtime.Nil, err
	}
	runtime.PutInt(rt.Heap.Handle(id).Data, level)
	return rt.HeapRef(id), nil
}

func semaCell(rt *runtime.Runtime, pos genie.Pos, sema runtime.Ref) ([]byte, error) {
	if sema.IsNil() {
		return nil, runtime.Errorf(pos, runtime.Uninitialised, "semaphore has not been created")
	}
	cell, err := rt.Cell(sema, mode.SizeInt)
	if err != nil {
		return nil, err
	}
	if !runtime.IsInitialized(cell) {
		return nil, runtime.Errorf(pos, runtime.Uninitialised, "semaphore is uninitialised")
	}
	return cell, nil
}

// Level returns the count of a semaphore.
func Level(rt *runtime.Runtime, pos genie.Pos, sema runtime.Ref) (int64, error) {
	cell, err := semaCell(rt, pos, sema)
	if err != nil {
		return 0, err
	}
	return runtime.GetInt(cell), nil
}

// Up increments the count of a semaphore.
func (s *Scheduler) Up(rt *runtime.Runtime, pos genie.Pos, sema runtime.Ref) error {
	cell, err := semaCell(rt, pos, sema)
	if err != nil {
		return err
	}
	runtime.PutInt(cell, runtime.GetInt(cell)+1)
	s.progress++
	return nil
}

// Down decrements the count of a semaphore. While the count is zero, the
// thread is blocked and other threads get the token. If a full round of
// threads passes without progress, Down fails with a deadlock.
func (s *Scheduler) Down(rt *runtime.Runtime, pos genie.Pos, sema runtime.Ref) error {
	me := s.current
	for {
		cell, err := semaCell(rt, pos, sema)
		if err != nil {
			return err
		}
		if v := runtime.GetInt(cell); v > 0 {
			runtime.PutInt(cell, v-1)
			s.progress++
			return nil
		}
		p := s.progress
		state := me.State
		me.State = Blocked
		s.yield(rt)
		stalled := s.progress == p && s.stalled(me)
		me.State = state
		if err := me.group.aborted(); err != nil {
			return err
		}
		if err := s.checkTime(pos); err != nil {
			return err
		}
		if stalled {
			return runtime.Errorf(pos, runtime.Deadlock, "thread %d waits for a semaphore forever", me.ID)
		}
	}
}
