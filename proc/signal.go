// Package proc implements the process/thread data model (spec.md §3):
// Process (address space, bounded fd table, credentials, privilege
// bitmaps, parent linkage, signal state) built atop vm.Pmap, fd.Fd_t,
// and sched.Thread. Grounded structurally on the teacher's Proc_t/
// Tnote_t pairing (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/proc/proc.go), generalized from
// biscuit's fork/exec/wait bookkeeping to spec.md §3's process model.
package proc

import (
	"sync"

	"cheviot-kernel-sub001/defs"
)

// SignalDisposition is a process's signal-handling table: one
// disposition per signal number, a pending set raised by Raise and
// drained by DeliverPending, and a set of fd-keyed notification
// callbacks for sys_signalnotify (SPEC_FULL.md Open Question #1:
// decided fd-only, not (fd, inode)).
type SignalDisposition struct {
	mu      sync.Mutex
	actions [defs.NSIG]defs.SigDisposition
	pending uint32
	notify  map[int]func(defs.Signal)
}

// NewSignalDisposition returns a table with every signal at its
// default disposition.
func NewSignalDisposition() *SignalDisposition {
	return &SignalDisposition{}
}

// SetAction changes sig's disposition. SIGKILL and SIGSTOP can never be
// caught or ignored, matching every POSIX-derived signal model
// original_source/fs/signal.c follows.
func (sd *SignalDisposition) SetAction(sig defs.Signal, disp defs.SigDisposition) defs.Err_t {
	if sig <= 0 || int(sig) >= defs.NSIG {
		return -defs.EINVAL
	}
	if sig == defs.SIGKILL || sig == defs.SIGSTOP {
		return -defs.EINVAL
	}
	sd.mu.Lock()
	sd.actions[sig] = disp
	sd.mu.Unlock()
	return 0
}

// Action returns sig's current disposition.
func (sd *SignalDisposition) Action(sig defs.Signal) defs.SigDisposition {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.actions[sig]
}

// Raise marks sig pending and fires any sys_signalnotify registrations,
// unless sig is currently ignored (spec.md §9: delivered at syscall
// return and preemption points, never from inside an exclusively-held
// RWLock -- Raise itself only sets a bit and calls notify callbacks, it
// never blocks).
func (sd *SignalDisposition) Raise(sig defs.Signal) {
	sd.mu.Lock()
	if sd.actions[sig] == defs.SIG_IGN {
		sd.mu.Unlock()
		return
	}
	sd.pending |= 1 << uint(sig)
	var cbs []func(defs.Signal)
	for _, cb := range sd.notify {
		cbs = append(cbs, cb)
	}
	sd.mu.Unlock()
	for _, cb := range cbs {
		cb(sig)
	}
}

// DeliverPending drains and returns every pending, non-ignored signal
// number, clearing each as it's collected. Called at a syscall-return
// or preemption boundary.
func (sd *SignalDisposition) DeliverPending() []defs.Signal {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	var out []defs.Signal
	for s := 1; s < defs.NSIG; s++ {
		bit := uint32(1) << uint(s)
		if sd.pending&bit == 0 {
			continue
		}
		sd.pending &^= bit
		if sd.actions[s] == defs.SIG_IGN {
			continue
		}
		out = append(out, defs.Signal(s))
	}
	return out
}

// SignalNotify registers cb to be called whenever a signal is raised,
// keyed by fd (spec.md §9 Open Question #1's fd-only decision). A
// second call for the same fd replaces the prior registration.
func (sd *SignalDisposition) SignalNotify(fd int, cb func(defs.Signal)) {
	sd.mu.Lock()
	if sd.notify == nil {
		sd.notify = make(map[int]func(defs.Signal))
	}
	sd.notify[fd] = cb
	sd.mu.Unlock()
}

// SignalUnnotify removes fd's registration, e.g. on close.
func (sd *SignalDisposition) SignalUnnotify(fd int) {
	sd.mu.Lock()
	delete(sd.notify, fd)
	sd.mu.Unlock()
}
