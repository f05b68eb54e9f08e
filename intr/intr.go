// Package intr implements the two-layer interrupt subsystem (spec.md
// §4.5): a top half that runs with interrupts disabled, reading pending
// IRQ bits from the HAL and either driving the scheduler's timer tick or
// waking every ISRHandler registered on the line, and a DPC thread that
// drains deferred work with normal interrupts enabled. Grounded on the
// teacher's `_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/fs/blk.go` pattern of an intrusive `list.List`
// queue plus a `Rendez`-style wakeup for a dedicated worker, and on
// `hashtable` (SPEC_FULL.md DOMAIN STACK: "intr ISR-handler registry
// keyed by IRQ") for the handler-set-per-IRQ table.
package intr

import (
	"container/list"
	"sync"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/hal"
	"cheviot-kernel-sub001/hashtable"
	"cheviot-kernel-sub001/ksync"
	"cheviot-kernel-sub001/sched"
)

// TimerIRQ is the interrupt line the top half treats specially: instead
// of waking ISRHandlers, it drives the scheduler's quantum accounting
// and ticks the attached timer wheel. The top half does not reprogram
// the timer's next compare value.
const TimerIRQ uint32 = 0

// ISRHandler is one (irq, owner-thread) registration (spec.md §4.5).
type ISRHandler struct {
	ID    uint32
	IRQ   uint32
	Owner defs.Tid_t
	Event defs.WakeReason_t
}

// EventSink delivers a woken interrupt to its owning thread. proc
// implements this by setting the thread's pending-event bits and
// calling the thread's Rendez.Interrupt; intr only needs the narrow
// capability, not the whole process table.
type EventSink interface {
	SetEventAndWake(owner defs.Tid_t, reason defs.WakeReason_t)
}

type irqState struct {
	mu        sync.Mutex
	handlers  []*ISRHandler
	maskCount int
}

type dpcWork struct {
	IRQ uint32
}

// Ticker is ktimer.Wheel's narrow collaborator capability: advance
// hardclock_time by one jiffy. intr depends on this interface rather
// than importing ktimer directly, keeping the two packages decoupled.
type Ticker interface {
	Tick()
}

// Controller owns the ISR-handler registry, the per-IRQ mask-reference
// counts, and the DPC work queue.
type Controller struct {
	mu       sync.Mutex
	byIRQ    *hashtable.Hashtable_t // uint32 IRQ -> *irqState
	byID     map[uint32]uint32      // handler ID -> IRQ, for RemInterruptServer
	nextID   uint32
	h        hal.HAL
	sink     EventSink
	s        *sched.Scheduler
	timers   Ticker
	dpcRendz ksync.Rendez
	dpcMu    sync.Mutex
	dpcList  *list.List
}

// AttachTimerWheel wires a ktimer.Wheel (or test double) so the timer
// IRQ advances it alongside the scheduler's quantum accounting.
func (c *Controller) AttachTimerWheel(t Ticker) {
	c.timers = t
}

// New builds a Controller bound to a HAL for register access, an
// EventSink for waking ISR owners, and the scheduler driven by the
// timer IRQ.
func New(h hal.HAL, sink EventSink, s *sched.Scheduler) *Controller {
	return &Controller{
		byIRQ:   hashtable.MkHash(64),
		byID:    make(map[uint32]uint32),
		h:       h,
		sink:    sink,
		s:       s,
		dpcList: list.New(),
	}
}

func (c *Controller) stateFor(irq uint32, create bool) *irqState {
	if v, ok := c.byIRQ.Get(irq); ok {
		return v.(*irqState)
	}
	if !create {
		return nil
	}
	st := &irqState{}
	if v, inserted := c.byIRQ.Set(irq, st); !inserted {
		return v.(*irqState)
	}
	return st
}

// AddInterruptServer registers owner to receive event whenever irq
// fires, returning a handler id the owner later passes to
// RemInterruptServer.
func (c *Controller) AddInterruptServer(irq uint32, owner defs.Tid_t, event defs.WakeReason_t) (uint32, defs.Err_t) {
	st := c.stateFor(irq, true)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.byID[id] = irq
	c.mu.Unlock()

	st.mu.Lock()
	st.handlers = append(st.handlers, &ISRHandler{ID: id, IRQ: irq, Owner: owner, Event: event})
	st.mu.Unlock()
	return id, 0
}

// RemInterruptServer unregisters the handler identified by id.
func (c *Controller) RemInterruptServer(id uint32) defs.Err_t {
	c.mu.Lock()
	irq, ok := c.byID[id]
	if ok {
		delete(c.byID, id)
	}
	c.mu.Unlock()
	if !ok {
		return -defs.EINVAL
	}

	st := c.stateFor(irq, false)
	if st == nil {
		return -defs.EINVAL
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, hd := range st.handlers {
		if hd.ID == id {
			st.handlers = append(st.handlers[:i], st.handlers[i+1:]...)
			return 0
		}
	}
	return -defs.EINVAL
}

// MaskInterrupt increments irq's mask-reference count, physically
// masking the line at the controller on the 0->1 edge. Each call must
// be paired with UnmaskInterrupt.
func (c *Controller) MaskInterrupt(irq uint32) defs.Err_t {
	st := c.stateFor(irq, true)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.maskCount++
	if st.maskCount == 1 {
		c.h.MaskIRQ(irq)
	}
	return 0
}

// UnmaskInterrupt decrements irq's mask-reference count, physically
// unmasking the line on the 1->0 edge.
func (c *Controller) UnmaskInterrupt(irq uint32) defs.Err_t {
	st := c.stateFor(irq, false)
	if st == nil {
		return -defs.EINVAL
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.maskCount == 0 {
		return -defs.EINVAL
	}
	st.maskCount--
	if st.maskCount == 0 {
		c.h.UnmaskIRQ(irq)
	}
	return 0
}

// TopHalf runs with interrupts disabled: it reads the HAL's pending-IRQ
// bitmap and, for each asserted line, either drives the scheduler's
// timer tick or wakes every registered handler and auto-masks the line
// (spec.md §4.5's invariant: at most one delivery pending per (IRQ,
// handler) between mask and unmask).
func (c *Controller) TopHalf() {
	pending := c.h.PendingIRQs()
	if pending == 0 {
		return
	}
	for irq := uint32(0); irq < 64; irq++ {
		if pending&(1<<irq) == 0 {
			continue
		}
		if irq == TimerIRQ {
			c.s.TimerTopHalf()
			if c.timers != nil {
				c.timers.Tick()
			}
			continue
		}
		c.deliver(irq)
	}
}

func (c *Controller) deliver(irq uint32) {
	st := c.stateFor(irq, false)
	if st == nil {
		return
	}
	st.mu.Lock()
	for _, hd := range st.handlers {
		c.sink.SetEventAndWake(hd.Owner, hd.Event)
	}
	delivered := len(st.handlers) > 0
	if delivered {
		st.maskCount++
		if st.maskCount == 1 {
			c.h.MaskIRQ(irq)
		}
	}
	st.mu.Unlock()
	if delivered {
		c.enqueueDPC(irq)
	}
}

func (c *Controller) enqueueDPC(irq uint32) {
	c.dpcMu.Lock()
	c.dpcList.PushBack(dpcWork{IRQ: irq})
	c.dpcMu.Unlock()
	c.dpcRendz.TaskWakeup()
}

// RunDPC is the body of the dedicated DPC kernel thread: it drains the
// work list with normal interrupts enabled, calling process for each
// queued IRQ, then blocks on the DPC rendez until the next enqueue
// wakes it. It never returns; callers run it in its own goroutine.
func (c *Controller) RunDPC(process func(irq uint32)) {
	for {
		for {
			c.dpcMu.Lock()
			front := c.dpcList.Front()
			if front == nil {
				c.dpcMu.Unlock()
				break
			}
			c.dpcList.Remove(front)
			c.dpcMu.Unlock()
			process(front.Value.(dpcWork).IRQ)
		}
		c.dpcRendz.TaskSleep()
	}
}

// FreeAllISRHandlers removes every handler owned by owner and undoes
// the corresponding auto-mask reference, the do_free_all_isrhandlers
// behavior spec.md §4.5 requires on thread/process exit.
func (c *Controller) FreeAllISRHandlers(owner defs.Tid_t) {
	c.mu.Lock()
	var ids []uint32
	for id, irq := range c.byID {
		st := c.stateFor(irq, false)
		if st == nil {
			continue
		}
		st.mu.Lock()
		for _, hd := range st.handlers {
			if hd.ID == id && hd.Owner == owner {
				ids = append(ids, id)
			}
		}
		st.mu.Unlock()
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.mu.Lock()
		irq := c.byID[id]
		delete(c.byID, id)
		c.mu.Unlock()

		st := c.stateFor(irq, false)
		if st == nil {
			continue
		}
		st.mu.Lock()
		for i, hd := range st.handlers {
			if hd.ID == id {
				st.handlers = append(st.handlers[:i], st.handlers[i+1:]...)
				break
			}
		}
		if st.maskCount > 0 {
			st.maskCount--
			if st.maskCount == 0 {
				c.h.UnmaskIRQ(irq)
			}
		}
		st.mu.Unlock()
	}
}
