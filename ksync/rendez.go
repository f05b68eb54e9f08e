// Package ksync implements the core's synchronization primitives: the
// Rendez condition variable, the drain-aware RWLock, and the
// address-keyed Futex table (spec.md §4.3). Grounded on the teacher's
// Tnote_t.Killnaps pattern (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/tinfo/tinfo.go): a channel plus
// sync.Cond for waking a specific thread versus broadcasting, adapted
// here into a reusable condition variable rather than one baked into
// the thread-note struct.
package ksync

import (
	"sync"

	"cheviot-kernel-sub001/defs"
)

// Waiter is one thread's parked state on a Rendez: a wake channel the
// thread blocks receiving from, and the reason it was woken.
type Waiter struct {
	wake chan defs.WakeReason_t
}

// Rendez is the core's condition variable (spec.md §4.3). Unlike
// sync.Cond, it supports waking the oldest single waiter
// (TaskWakeupSpecific) and tags each wakeup with the reason, so TaskSleepInterruptible can
// tell a requested wakeup from an interruption.
type Rendez struct {
	mu      sync.Mutex
	waiters []*Waiter
}

// TaskSleep blocks the calling goroutine until the next TaskWakeup,
// TaskWakeupSpecific or Interrupt call. Its mask is empty, so an
// Interrupt wakes it like a normal wakeup and nothing is reported.
func (r *Rendez) TaskSleep() {
	r.TaskSleepInterruptible(0)
}

// TaskSleepInterruptible blocks until woken. If the wakeup reason has
// any bit set in mask (spec.md §4.3) it returns -ETIMEDOUT for
// WAKE_TIMER and -EINTR for any other reason; otherwise 0. A WAKE_NORMAL
// wakeup (from TaskWakeup/TaskWakeupSpecific) never matches mask, since
// mask is defined over the asynchronous interruption causes only.
func (r *Rendez) TaskSleepInterruptible(mask defs.WakeReason_t) defs.Err_t {
	w := &Waiter{wake: make(chan defs.WakeReason_t, 1)}
	r.mu.Lock()
	r.waiters = append(r.waiters, w)
	r.mu.Unlock()

	reason := <-w.wake
	if reason&mask != 0 {
		switch {
		case reason&defs.WAKE_TIMER != 0:
			return -defs.ETIMEDOUT
		default:
			return -defs.EINTR
		}
	}
	return 0
}

// TaskWakeup marks every blocked thread READY with reason WAKE_NORMAL.
func (r *Rendez) TaskWakeup() {
	r.wakeAll(defs.WAKE_NORMAL)
}

// TaskWakeupSpecific wakes exactly one waiter, the one blocked longest,
// and reports whether any waiter was blocked. It cannot select a
// particular thread.
func (r *Rendez) TaskWakeupSpecific() bool {
	r.mu.Lock()
	if len(r.waiters) == 0 {
		r.mu.Unlock()
		return false
	}
	w := r.waiters[0]
	r.waiters = r.waiters[1:]
	r.mu.Unlock()
	w.wake <- defs.WAKE_NORMAL
	return true
}

// Interrupt wakes every waiter with the given asynchronous reason
// (WAKE_SIGNAL/WAKE_EVENT/WAKE_CANCEL/WAKE_TIMER), used by the signal
// and timer subsystems to unblock a TaskSleepInterruptible wait.
func (r *Rendez) Interrupt(reason defs.WakeReason_t) {
	r.wakeAll(reason)
}

func (r *Rendez) wakeAll(reason defs.WakeReason_t) {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()
	for _, w := range waiters {
		w.wake <- reason
	}
}

// NumWaiters reports how many threads are currently parked, for tests
// and for diagnostics.
func (r *Rendez) NumWaiters() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
