// Package sched implements the priority scheduler: 32 ready-queue
// levels, a bitmap of non-empty levels, SCHED_OTHER/RR/FIFO quantum
// handling, and Reschedule's HAL-mediated context switch (spec.md
// §4.4). Grounded in structural idiom on the teacher's thread-table
// style (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/tinfo/tinfo.go's map-of-notes-under-a-mutex) and on
// `other_examples/71b72230_Tingjia-0v0-SchedTest__sys-linux-init.go.go`
// for the shape of a priority-fixture test harness (SPEC_FULL.md DOMAIN
// STACK); the level/bitmap/quantum design has no direct teacher analog
// since biscuit schedules via the Go runtime's own goroutine scheduler.
package sched

import (
	"container/list"
	"math/bits"
	"sync"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/hal"
)

// Thread is one schedulable unit (spec.md §3). The scheduler's ready
// queues and running slot hold *Thread pointers, not Tids.
type Thread struct {
	Tid      defs.Tid_t
	Pid      defs.Pid_t
	Policy   defs.SchedPolicy_t
	Priority int
	State    defs.ThreadState_t
	Ctx      *hal.ContextFrame // saved register frame, restored by the HAL
	quantum  int
	elem     *list.Element // this thread's node in its ready-queue level
}

const quantumJiffies = 10 // spec.md Glossary: 1 jiffy = 1/JiffiesPerSecond

// NewThread returns a thread owned by pid, starting at SCHED_OTHER's
// lowest priority with a fresh quantum, not yet in any ready queue
// (the caller schedules it in via SchedReady).
func NewThread(pid defs.Pid_t, tid defs.Tid_t, ctx *hal.ContextFrame) *Thread {
	return &Thread{
		Tid:      tid,
		Pid:      pid,
		Policy:   defs.SCHED_OTHER,
		Priority: defs.OtherPrioMin,
		State:    defs.TS_READY,
		Ctx:      ctx,
		quantum:  quantumJiffies,
	}
}

// Scheduler owns the 32 ready-queue levels, the non-empty bitmap, and
// the currently running thread.
type Scheduler struct {
	mu      sync.Mutex
	queues  [defs.PrioLevels]*list.List
	bitmap  uint32
	running *Thread
	h       hal.HAL
}

// New builds an empty scheduler bound to a HAL for context switches.
func New(h hal.HAL) *Scheduler {
	s := &Scheduler{h: h}
	for i := range s.queues {
		s.queues[i] = list.New()
	}
	return s
}

// SchedReady enqueues t at the tail of its priority level, sets the
// level's bitmap bit, and requests a reschedule if t now outranks the
// running thread.
func (s *Scheduler) SchedReady(t *Thread) {
	s.mu.Lock()
	q := s.queues[t.Priority]
	t.elem = q.PushBack(t)
	s.bitmap |= 1 << uint(t.Priority)
	t.State = defs.TS_READY
	needResched := s.running == nil || t.Priority > s.running.Priority
	s.mu.Unlock()
	if needResched {
		s.Reschedule()
	}
}

// SchedUnready removes t from its ready-queue level, clearing the
// level's bitmap bit if the queue becomes empty.
func (s *Scheduler) SchedUnready(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.elem == nil {
		return
	}
	q := s.queues[t.Priority]
	q.Remove(t.elem)
	t.elem = nil
	if q.Len() == 0 {
		s.bitmap &^= 1 << uint(t.Priority)
	}
}

// highestLocked returns the highest non-empty priority level, or -1 if
// every queue is empty. s.mu must be held.
func (s *Scheduler) highestLocked() int {
	if s.bitmap == 0 {
		return -1
	}
	return 31 - bits.LeadingZeros32(s.bitmap)
}

// Reschedule switches to the highest-priority runnable thread if it
// differs from the one currently running, via the HAL's context-switch
// primitive.
func (s *Scheduler) Reschedule() {
	s.mu.Lock()
	level := s.highestLocked()
	if level < 0 {
		s.mu.Unlock()
		return
	}
	head := s.queues[level].Front()
	next := head.Value.(*Thread)
	prev := s.running
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.running = next
	next.State = defs.TS_RUNNING
	s.mu.Unlock()

	if s.h != nil && prev != nil {
		s.h.SwitchContext(prev.Ctx, next.Ctx)
	}
}

// Running returns the currently scheduled thread, or nil.
func (s *Scheduler) Running() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TimerTopHalf runs once per jiffy: it decrements the running thread's
// RR quantum and, on expiry, rotates it to the tail of its level and
// requests a reschedule. SCHED_FIFO threads never expire by timer;
// SCHED_OTHER is treated as RR within its own priority band.
func (s *Scheduler) TimerTopHalf() {
	s.mu.Lock()
	t := s.running
	if t == nil || t.Policy == defs.SCHED_FIFO {
		s.mu.Unlock()
		return
	}
	t.quantum--
	if t.quantum > 0 {
		s.mu.Unlock()
		return
	}
	t.quantum = quantumJiffies
	q := s.queues[t.Priority]
	if t.elem != nil {
		q.MoveToBack(t.elem)
	}
	s.mu.Unlock()
	s.Reschedule()
}

// SetSchedParams validates and applies a new policy/priority for t,
// performing SchedUnready -> update -> SchedReady -> Reschedule as one
// sequence (spec.md §4.4 sys_thread_setschedparams). Callers are
// expected to have already checked PRIV_SCHED/PRIV_SCHED_RR.
func (s *Scheduler) SetSchedParams(t *Thread, policy defs.SchedPolicy_t, priority int) defs.Err_t {
	switch policy {
	case defs.SCHED_OTHER:
		if priority < defs.OtherPrioMin || priority > defs.OtherPrioMax {
			return -defs.EINVAL
		}
	case defs.SCHED_RR, defs.SCHED_FIFO:
		if priority < defs.RealtimePrioMin || priority > defs.RealtimePrioMax {
			return -defs.EINVAL
		}
	default:
		return -defs.EINVAL
	}
	wasReady := t.elem != nil
	if wasReady {
		s.SchedUnready(t)
	}
	t.Policy = policy
	t.Priority = priority
	t.quantum = quantumJiffies
	if wasReady {
		s.SchedReady(t)
	}
	return 0
}
