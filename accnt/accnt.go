// Package accnt accumulates per-thread and per-process CPU/wall-clock
// accounting, adapted from the teacher's accnt package. proc.Process
// embeds one Accnt_t per process; proc does not add thread counters
// into it. Rusage serializes a snapshot in a sys_getrusage-style byte
// layout (SPEC_FULL.md DOMAIN STACK).
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"cheviot-kernel-sub001/util"
)

// Accnt_t accumulates user and system time in nanoseconds. The embedded
// mutex protects Add/Fetch so a caller reading usage via rusage sees a
// consistent pair of counters rather than a torn snapshot.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds of user time.
func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userns, int64(delta))
}

// Systadd adds delta nanoseconds of system time.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

// Now returns the current wall-clock time in nanoseconds.
func (a *Accnt_t) Now() int64 {
	return time.Now().UnixNano()
}

// IOTime backs out time spent blocked on I/O from the system-time
// counter, so a thread waiting on a message-port reply is not charged
// kernel CPU time for the wait.
func (a *Accnt_t) IOTime(since int64) {
	a.Systadd(int(since - a.Now()))
}

// SleepTime backs out time spent parked on a Rendez from the system-time
// counter, the Rendez-aware counterpart of IOTime.
func (a *Accnt_t) SleepTime(since int64) {
	a.Systadd(int(since - a.Now()))
}

// Finish adds the time since inttime (an interrupt/syscall entry
// timestamp) to the system-time counter.
func (a *Accnt_t) Finish(inttime int64) {
	a.Systadd(int(a.Now() - inttime))
}

// Add merges n's counters into a, taking a's lock.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
	a.Unlock()
}

// Fetch returns a consistent (Userns, Sysns) snapshot.
func (a *Accnt_t) Fetch() (int64, int64) {
	a.Lock()
	defer a.Unlock()
	return a.Userns, a.Sysns
}

// Rusage serializes a usage snapshot as two {sec, usec} timeval pairs
// (user, then system), the layout a sys_getrusage-style accessor copies
// out to user space.
func (a *Accnt_t) Rusage() []uint8 {
	un, sn := a.Fetch()
	ret := make([]uint8, 4*8)
	totv := func(nano int64) (int, int) {
		return int(nano / 1e9), int((nano % 1e9) / 1000)
	}
	off := 0
	s, us := totv(un)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	s, us = totv(sn)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	return ret
}
