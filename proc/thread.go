package proc

import (
	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/hal"
	"cheviot-kernel-sub001/sched"
)

// NewThread allocates a thread belonging to p and registers it with p's
// thread set. The caller still owes the scheduler a SchedReady call to
// make it runnable.
func NewThread(p *Process, ctx *hal.ContextFrame) *sched.Thread {
	t := sched.NewThread(p.Pid, AllocTid(), ctx)
	p.AddThread(t)
	return t
}

// SetSchedParams validates p's privilege to request policy/priority
// before delegating to the scheduler (spec.md §4.4
// sys_thread_setschedparams): SCHED_RR/SCHED_FIFO require
// PRIV_SCHED_RR; raising priority at all (including within SCHED_OTHER)
// requires PRIV_SCHED.
func SetSchedParams(p *Process, s *sched.Scheduler, t *sched.Thread, policy defs.SchedPolicy_t, priority int) defs.Err_t {
	if policy == defs.SCHED_RR || policy == defs.SCHED_FIFO {
		if !p.Priv.Has(defs.PRIV_SCHED_RR) {
			return -defs.EPERM
		}
	}
	if priority > t.Priority && !p.Priv.Has(defs.PRIV_SCHED) {
		return -defs.EPERM
	}
	return s.SetSchedParams(t, policy, priority)
}

// ExitThread unready's t, removes it from p's thread set, and -- if it
// was the process's last thread -- finishes process teardown via Exit.
func ExitThread(p *Process, s *sched.Scheduler, t *sched.Thread, exitCode int) {
	s.SchedUnready(t)
	t.State = defs.TS_ZOMBIE
	if p.RemoveThread(t.Tid) {
		p.Exit(exitCode)
	}
}
