package intr

import (
	"sync"
	"testing"
	"time"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/hal"
	"cheviot-kernel-sub001/sched"
)

type fakeHAL struct {
	mu      sync.Mutex
	pending uint64
	masked  map[uint32]bool
}

func newFakeHAL() *fakeHAL { return &fakeHAL{masked: make(map[uint32]bool)} }

func (f *fakeHAL) MMIORead(hal.Reg) uint32            { return 0 }
func (f *fakeHAL) MMIOWrite(hal.Reg, uint32)          {}
func (f *fakeHAL) DSB()                               {}
func (f *fakeHAL) ISB()                               {}
func (f *fakeHAL) MboxWrite(uint8, uintptr)           {}
func (f *fakeHAL) MboxRead(uint8) uintptr             { return 0 }
func (f *fakeHAL) SwitchContext(_, _ *hal.ContextFrame) {}
func (f *fakeHAL) TLBInvalidate(hal.ASID, uintptr, int) {}
func (f *fakeHAL) CacheClean(uintptr, int)            {}
func (f *fakeHAL) ReadClock() uint64                  { return 0 }
func (f *fakeHAL) Shutdown(hal.ShutdownHow) defs.Err_t { return 0 }

func (f *fakeHAL) PendingIRQs() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}
func (f *fakeHAL) raise(irq uint32) {
	f.mu.Lock()
	f.pending |= 1 << irq
	f.mu.Unlock()
}
func (f *fakeHAL) MaskIRQ(irq uint32) {
	f.mu.Lock()
	f.masked[irq] = true
	f.pending &^= 1 << irq
	f.mu.Unlock()
}
func (f *fakeHAL) UnmaskIRQ(irq uint32) {
	f.mu.Lock()
	f.masked[irq] = false
	f.mu.Unlock()
}
func (f *fakeHAL) isMasked(irq uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.masked[irq]
}

type fakeSink struct {
	mu     sync.Mutex
	woken  []defs.Tid_t
	reason []defs.WakeReason_t
}

func (s *fakeSink) SetEventAndWake(owner defs.Tid_t, reason defs.WakeReason_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.woken = append(s.woken, owner)
	s.reason = append(s.reason, reason)
}

func TestTopHalfTimerIRQDrivesScheduler(t *testing.T) {
	h := newFakeHAL()
	s := sched.New(nil)
	sink := &fakeSink{}
	c := New(h, sink, s)

	h.raise(TimerIRQ)
	c.TopHalf() // should not panic with no running thread and no handlers
	if len(sink.woken) != 0 {
		t.Fatalf("timer IRQ must not deliver to the handler sink")
	}
}

func TestTopHalfWakesHandlerAndAutoMasks(t *testing.T) {
	h := newFakeHAL()
	s := sched.New(nil)
	sink := &fakeSink{}
	c := New(h, sink, s)

	id, err := c.AddInterruptServer(5, defs.Tid_t(7), defs.WAKE_EVENT)
	if err != 0 {
		t.Fatalf("AddInterruptServer failed: %v", err)
	}
	h.raise(5)
	c.TopHalf()

	if len(sink.woken) != 1 || sink.woken[0] != defs.Tid_t(7) {
		t.Fatalf("expected owner 7 woken once, got %v", sink.woken)
	}
	if !h.isMasked(5) {
		t.Fatalf("expected IRQ auto-masked after delivery")
	}
	if err := c.UnmaskInterrupt(5); err != 0 {
		t.Fatalf("unmask failed: %v", err)
	}
	if h.isMasked(5) {
		t.Fatalf("expected IRQ unmasked")
	}
	_ = id
}

func TestMaskUnmaskIsReferenceCounted(t *testing.T) {
	h := newFakeHAL()
	s := sched.New(nil)
	c := New(h, &fakeSink{}, s)

	c.MaskInterrupt(3)
	c.MaskInterrupt(3)
	if err := c.UnmaskInterrupt(3); err != 0 {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.isMasked(3) {
		t.Fatalf("expected IRQ still masked after one of two unmasks")
	}
	if err := c.UnmaskInterrupt(3); err != 0 {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.isMasked(3) {
		t.Fatalf("expected IRQ unmasked after matching unmask count")
	}
}

func TestFreeAllISRHandlersDropsOwnerAndDecrementsMask(t *testing.T) {
	h := newFakeHAL()
	s := sched.New(nil)
	sink := &fakeSink{}
	c := New(h, sink, s)

	c.AddInterruptServer(9, defs.Tid_t(1), defs.WAKE_EVENT)
	h.raise(9)
	c.TopHalf()
	if !h.isMasked(9) {
		t.Fatalf("expected auto-mask after delivery")
	}

	c.FreeAllISRHandlers(defs.Tid_t(1))
	if h.isMasked(9) {
		t.Fatalf("expected mask count drained to zero on owner teardown")
	}
	if err := c.RemInterruptServer(1); err != -defs.EINVAL {
		t.Fatalf("expected already-freed handler to be gone, got %v", err)
	}
}

func TestDPCDrainsQueuedWork(t *testing.T) {
	h := newFakeHAL()
	s := sched.New(nil)
	sink := &fakeSink{}
	c := New(h, sink, s)
	c.AddInterruptServer(2, defs.Tid_t(1), defs.WAKE_EVENT)

	processed := make(chan uint32, 1)
	go c.RunDPC(func(irq uint32) { processed <- irq })

	h.raise(2)
	c.TopHalf()

	select {
	case irq := <-processed:
		if irq != 2 {
			t.Fatalf("expected DPC work for irq 2, got %d", irq)
		}
	case <-time.After(time.Second):
		t.Fatal("DPC thread never processed queued work")
	}
}
