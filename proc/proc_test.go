package proc

import (
	"testing"
	"time"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/fd"
	"cheviot-kernel-sub001/fdops"
	"cheviot-kernel-sub001/mem"
	"cheviot-kernel-sub001/sched"
)

func newTestProcess(t *testing.T) (*Process, *mem.Physmem_t) {
	t.Helper()
	phys := mem.NewPhysmem_tForTest()
	p, err := New(AllocPid(), nil, nil, phys, 8, defs.DefaultPrivileges())
	if err != 0 {
		t.Fatalf("New: %v", err)
	}
	return p, phys
}

type noopFdops struct{ closed bool }

func (n *noopFdops) Close() defs.Err_t                                     { n.closed = true; return 0 }
func (n *noopFdops) Fstat(st *fdops.StatDest) defs.Err_t                    { return 0 }
func (n *noopFdops) Read(dst fdops.Userio_i, offset int) (int, defs.Err_t)  { return 0, 0 }
func (n *noopFdops) Write(src fdops.Userio_i, offset int) (int, defs.Err_t) { return 0, 0 }
func (n *noopFdops) Reopen() defs.Err_t                                    { return 0 }

func TestAddGetCloseFd(t *testing.T) {
	p, _ := newTestProcess(t)
	nf := &noopFdops{}
	f := &fd.Fd_t{Fops: nf, Perms: fd.FD_READ}

	idx, err := p.AddFd(f)
	if err != 0 {
		t.Fatalf("AddFd: %v", err)
	}
	got, err := p.GetFd(idx)
	if err != 0 || got != f {
		t.Fatalf("GetFd mismatch: %v %v", got, err)
	}
	if err := p.CloseFd(idx); err != 0 {
		t.Fatalf("CloseFd: %v", err)
	}
	if !nf.closed {
		t.Fatal("expected underlying Fops.Close to be called")
	}
	if _, err := p.GetFd(idx); err != -defs.EBADF {
		t.Fatalf("expected EBADF after close, got %v", err)
	}
}

func TestAddFdFailsWhenTableFull(t *testing.T) {
	p, err := New(AllocPid(), nil, nil, mem.NewPhysmem_tForTest(), 1, defs.DefaultPrivileges())
	if err != 0 {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.AddFd(&fd.Fd_t{Fops: &noopFdops{}, Perms: fd.FD_READ}); err != 0 {
		t.Fatalf("first AddFd: %v", err)
	}
	if _, err := p.AddFd(&fd.Fd_t{Fops: &noopFdops{}, Perms: fd.FD_READ}); err != -defs.EMFILE {
		t.Fatalf("expected EMFILE, got %v", err)
	}
}

func TestForkDuplicatesFdsAndNarrowsPrivileges(t *testing.T) {
	p, phys := newTestProcess(t)
	nf := &noopFdops{}
	if _, err := p.AddFd(&fd.Fd_t{Fops: nf, Perms: fd.FD_READ}); err != 0 {
		t.Fatalf("AddFd: %v", err)
	}
	p.Priv.Narrow(defs.PRIV_AFTER_FORK, defs.PRIV_RAWIO)

	child, err := p.Fork(AllocPid(), nil, phys)
	if err != 0 {
		t.Fatalf("Fork: %v", err)
	}
	if child.Fds[0] == nil {
		t.Fatal("expected child to inherit a duplicated fd")
	}
	if child.Priv.Has(defs.PRIV_RAWIO) {
		t.Fatal("expected PRIV_RAWIO narrowed away in child per after_fork bitmap")
	}
}

func TestExitWakesWaitingParent(t *testing.T) {
	parent, phys := newTestProcess(t)
	child, err := parent.Fork(AllocPid(), nil, phys)
	if err != 0 {
		t.Fatalf("Fork: %v", err)
	}

	done := make(chan int)
	go func() {
		done <- parent.Wait(child)
	}()

	time.Sleep(10 * time.Millisecond)
	child.Exit(7)

	select {
	case code := <-done:
		if code != 7 {
			t.Fatalf("expected exit code 7, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait never returned")
	}
	if !child.IsZombie() {
		t.Fatal("expected child to be a zombie after Exit")
	}
}

func TestExitThreadFinishesProcessOnLastThread(t *testing.T) {
	p, _ := newTestProcess(t)
	s := sched.New(nil)
	th := NewThread(p, nil)
	s.SchedReady(th)

	if p.ThreadCount() != 1 {
		t.Fatalf("expected 1 thread, got %d", p.ThreadCount())
	}
	ExitThread(p, s, th, 3)
	if p.ThreadCount() != 0 {
		t.Fatalf("expected 0 threads after exit, got %d", p.ThreadCount())
	}
	if !p.IsZombie() {
		t.Fatal("expected process to become a zombie once its last thread exits")
	}
}

func TestSetSchedParamsRejectsRRWithoutPrivilege(t *testing.T) {
	p, _ := newTestProcess(t)
	p.Priv.Narrow(defs.PRIV_NOW, defs.PRIV_SCHED_RR)
	s := sched.New(nil)
	th := NewThread(p, nil)
	s.SchedReady(th)

	if err := SetSchedParams(p, s, th, defs.SCHED_RR, defs.RealtimePrioMin); err != -defs.EPERM {
		t.Fatalf("expected EPERM, got %v", err)
	}
}

func TestSignalRaiseAndDeliverPending(t *testing.T) {
	sd := NewSignalDisposition()
	sd.Raise(defs.SIGUSR1)
	sd.Raise(defs.SIGTERM)

	pending := sd.DeliverPending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending signals, got %d", len(pending))
	}
	if more := sd.DeliverPending(); len(more) != 0 {
		t.Fatalf("expected pending set drained, got %v", more)
	}
}

func TestSignalIgnoredNeverBecomesPending(t *testing.T) {
	sd := NewSignalDisposition()
	sd.SetAction(defs.SIGUSR1, defs.SIG_IGN)
	sd.Raise(defs.SIGUSR1)
	if pending := sd.DeliverPending(); len(pending) != 0 {
		t.Fatalf("expected ignored signal to never become pending, got %v", pending)
	}
}

func TestSignalKillCannotBeIgnored(t *testing.T) {
	sd := NewSignalDisposition()
	if err := sd.SetAction(defs.SIGKILL, defs.SIG_IGN); err != -defs.EINVAL {
		t.Fatalf("expected EINVAL, got %v", err)
	}
}

func TestSignalNotifyFiresOnRaise(t *testing.T) {
	sd := NewSignalDisposition()
	fired := make(chan defs.Signal, 1)
	sd.SignalNotify(3, func(s defs.Signal) { fired <- s })
	sd.Raise(defs.SIGCHLD)

	select {
	case s := <-fired:
		if s != defs.SIGCHLD {
			t.Fatalf("expected SIGCHLD, got %v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("SignalNotify callback never fired")
	}
}
