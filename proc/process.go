package proc

import (
	"sync"
	"sync/atomic"

	"cheviot-kernel-sub001/accnt"
	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/fd"
	"cheviot-kernel-sub001/hal"
	"cheviot-kernel-sub001/ksync"
	"cheviot-kernel-sub001/limits"
	"cheviot-kernel-sub001/mem"
	"cheviot-kernel-sub001/sched"
	"cheviot-kernel-sub001/vm"
)

// Creds is a process's identity for permission checks (spec.md §3).
type Creds struct {
	Uid, Gid   int
	Euid, Egid int
	Pgrp       int
}

var nextPid int32
var nextTid int32

// AllocPid returns a fresh, kernel-image-unique pid.
func AllocPid() defs.Pid_t {
	return defs.Pid_t(atomic.AddInt32(&nextPid, 1))
}

// AllocTid returns a fresh, kernel-image-unique tid.
func AllocTid() defs.Tid_t {
	return defs.Tid_t(atomic.AddInt32(&nextTid, 1))
}

// Process is a protection domain (spec.md §3): an address space, a
// bounded open-file table, credentials, three privilege bitmaps, a
// parent back-reference, a signal-disposition table, and a set of
// threads. Destroyed when its last thread exits and its parent has
// reaped it (Wait).
type Process struct {
	mu      sync.Mutex
	Pid     defs.Pid_t
	Parent  *Process
	Pmap    *vm.Pmap
	Cwd     *fd.Cwd_t
	Fds     []*fd.Fd_t
	Creds   Creds
	Priv    defs.Privileges_t
	Signals *SignalDisposition
	Accnt   accnt.Accnt_t

	threads  map[defs.Tid_t]*sched.Thread
	zombie   bool
	exitCode int
	reaped   ksync.Rendez
}

// New allocates a process with a fresh address space and an fdMax-slot
// open-file table, parented by parent (nil for the kernel's root
// process). Consults limits.Syslimit.Procs.
func New(pid defs.Pid_t, parent *Process, h hal.HAL, phys *mem.Physmem_t, fdMax int, priv defs.Privileges_t) (*Process, defs.Err_t) {
	if !limits.Syslimit.Procs.Take() {
		return nil, -defs.EAGAIN
	}
	pm, err := vm.PmapCreate(h, phys)
	if err != 0 {
		limits.Syslimit.Procs.Give()
		return nil, err
	}
	return &Process{
		Pid:     pid,
		Parent:  parent,
		Pmap:    pm,
		Fds:     make([]*fd.Fd_t, fdMax),
		Priv:    priv,
		Signals: NewSignalDisposition(),
		threads: make(map[defs.Tid_t]*sched.Thread),
	}, 0
}

// AddThread registers t as belonging to this process.
func (p *Process) AddThread(t *sched.Thread) {
	p.mu.Lock()
	p.threads[t.Tid] = t
	p.mu.Unlock()
}

// RemoveThread drops t from this process's thread set, reporting
// whether it was the last one (the caller must then finish teardown:
// free the Pmap, close remaining fds, mark the process a zombie for
// Wait).
func (p *Process) RemoveThread(tid defs.Tid_t) (last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.threads, tid)
	return len(p.threads) == 0
}

// ThreadCount reports how many threads this process currently owns.
func (p *Process) ThreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// AddFd installs f in the first free slot, returning -EMFILE if the
// table is full.
func (p *Process) AddFd(f *fd.Fd_t) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, slot := range p.Fds {
		if slot == nil {
			p.Fds[i] = f
			return i, 0
		}
	}
	return -1, -defs.EMFILE
}

// GetFd returns the fd at index i, or -EBADF if out of range or empty.
func (p *Process) GetFd(i int) (*fd.Fd_t, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.Fds) || p.Fds[i] == nil {
		return nil, -defs.EBADF
	}
	return p.Fds[i], 0
}

// CloseFd closes and clears slot i. Per spec.md §4.8 do_close's
// contract, the slot is always freed even if the underlying Close
// fails; the error is still reported to the caller.
func (p *Process) CloseFd(i int) defs.Err_t {
	p.mu.Lock()
	if i < 0 || i >= len(p.Fds) || p.Fds[i] == nil {
		p.mu.Unlock()
		return -defs.EBADF
	}
	f := p.Fds[i]
	p.Fds[i] = nil
	p.mu.Unlock()

	p.Signals.SignalUnnotify(i)
	return f.Fops.Close()
}

// Fork builds a child process sharing this process's credentials and
// an independent (Copyfd'd) duplicate of every open fd, with its "now"
// privilege bitmap narrowed by its after_fork bitmap per OnFork. The
// child's address space starts empty: this core builds no COW-clone
// path in vm.Pmap (see DESIGN.md), so populating the child's user
// mappings is the caller's responsibility once address-space cloning
// lands.
func (p *Process) Fork(childPid defs.Pid_t, h hal.HAL, phys *mem.Physmem_t) (*Process, defs.Err_t) {
	p.mu.Lock()
	creds := p.Creds
	priv := p.Priv.OnFork()
	srcFds := make([]*fd.Fd_t, len(p.Fds))
	copy(srcFds, p.Fds)
	p.mu.Unlock()

	child, err := New(childPid, p, h, phys, len(srcFds), priv)
	if err != 0 {
		return nil, err
	}
	child.Creds = creds

	for i, f := range srcFds {
		if f == nil {
			continue
		}
		nf, ferr := fd.Copyfd(f)
		if ferr != 0 {
			continue
		}
		child.Fds[i] = nf
	}
	return child, 0
}

// Exec narrows the process's privilege bitmap per OnExec, discards
// close-on-exec fds, and replaces the address space with a fresh one
// (the loaded image populates it; out of this core's scope).
func (p *Process) Exec(h hal.HAL, phys *mem.Physmem_t) defs.Err_t {
	p.mu.Lock()
	p.Priv.OnExec()
	for i, f := range p.Fds {
		if f != nil && f.Perms&fd.FD_CLOEXEC != 0 {
			fd.ClosePanic(f)
			p.Fds[i] = nil
		}
	}
	p.mu.Unlock()

	old := p.Pmap
	pm, err := vm.PmapCreate(h, phys)
	if err != 0 {
		return err
	}
	p.mu.Lock()
	p.Pmap = pm
	p.mu.Unlock()
	old.Free()
	return 0
}

// Exit marks the process a zombie with the given exit code, frees its
// address space, and wakes any parent blocked in Wait. Callers must
// have already torn down every thread (RemoveThread returning last ==
// true) before calling Exit.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	p.zombie = true
	p.exitCode = code
	pm := p.Pmap
	p.mu.Unlock()

	if pm != nil {
		pm.Free()
	}
	limits.Syslimit.Procs.Give()
	if p.Parent != nil {
		p.Parent.reaped.TaskWakeup()
	}
}

// Wait blocks until child becomes a zombie, then returns its exit code.
// It does not itself remove child from any process table; that's the
// caller's bookkeeping (spec.md §3: "destroyed when last thread exits
// AND parent has waited").
func (p *Process) Wait(child *Process) int {
	for {
		child.mu.Lock()
		if child.zombie {
			code := child.exitCode
			child.mu.Unlock()
			return code
		}
		child.mu.Unlock()
		p.reaped.TaskSleep()
	}
}

// IsZombie reports whether the process has exited and not yet been
// reaped.
func (p *Process) IsZombie() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zombie
}
