// Package limits defines the system-wide resource ceilings, adapted
// from the teacher's limits package; of these, only Procs is consulted,
// by proc.New (and so proc.Fork). The set of fields is narrowed from the
// teacher's (spec.md §1 Non-goals excludes networking and
// multi-socket bookkeeping, so the teacher's Arpents/Routes/Tcpsegs/Socks
// fields have no home here).
package limits

import (
	"sync/atomic"
	"unsafe"
)

// Sysatomic_t is a budget counter that can be taken from and given back
// to atomically, without a lock.
type Sysatomic_t int64

func (s *Sysatomic_t) aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

// Given increases the budget by n.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64(s.aptr(), int64(n))
}

// Taken decrements the budget by n and reports whether the budget stayed
// non-negative; on failure the decrement is rolled back.
func (s *Sysatomic_t) Taken(n uint) bool {
	if atomic.AddInt64(s.aptr(), -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64(s.aptr(), int64(n))
	return false
}

// Take is Taken(1).
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }

// Give is Given(1).
func (s *Sysatomic_t) Give() { s.Given(1) }

// Syslimit_t tracks the system-wide resource ceilings spec.md §3/§9 refer
// to as consulted budgets. Only Procs is taken and given back (by
// proc.New and proc.Exit); no package takes from the other fields.
type Syslimit_t struct {
	Procs     Sysatomic_t /// concurrently live processes
	Threads   Sysatomic_t /// concurrently live threads, across all processes
	Vnodes    Sysatomic_t /// in-core VNode table slots
	Futexes   Sysatomic_t /// entries in ksync's futex table
	MsgPorts  Sysatomic_t /// open message ports
	Blocks    Sysatomic_t /// buffer-cache pages
	DNames    Sysatomic_t /// DName cache entries
	Timers    Sysatomic_t /// armed timing-wheel timers
}

// Syslimit holds the process-wide default ceilings, mirroring the
// teacher's package-level Syslimit variable.
var Syslimit = MkSysLimit()

// MkSysLimit returns a fresh set of default limits, sized for a small
// ARM SBC rather than the teacher's server-class defaults.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Procs:    256,
		Threads:  1024,
		Vnodes:   4096,
		Futexes:  1024,
		MsgPorts: 512,
		Blocks:   8192,
		DNames:   4096,
		Timers:   512,
	}
}
