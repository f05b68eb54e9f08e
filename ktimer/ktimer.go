// Package ktimer implements the timing wheel of spec.md §4.6: 100
// (JiffiesPerSecond) slots indexed by expiration mod 100, a hardclock
// tick advanced once per timer IRQ, and a dedicated timer kernel thread
// that scans the current slot for due entries and invokes their
// callbacks (typically ksync.Rendez.TaskWakeupSpecific). Grounded
// structurally on the same intrusive-list-plus-Rendez-worker idiom used
// throughout this pass (intr's DPC queue, in turn grounded on the
// teacher's _examples/Oichkatzelesfrettschen-biscuit/biscuit/src/fs/blk.go pattern); biscuit itself has no
// timing wheel of its own since it schedules timeouts through the Go
// runtime's time package.
package ktimer

import (
	"container/list"
	"sync"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/ksync"
)

// Callback is invoked by the timer thread when a timer fires. Rearming
// is the callback's own responsibility; Arm never reschedules on its
// own (spec.md §4.6).
type Callback func(id uint64)

type timerEntry struct {
	id         uint64
	expiration uint64
	callback   Callback
	elem       *list.Element
}

// Wheel is the timing wheel: JiffiesPerSecond slots, each an intrusive
// list of armed timers whose expiration falls in that slot.
type Wheel struct {
	mu            sync.Mutex
	slots         [defs.JiffiesPerSecond]*list.List
	hardclockTime uint64
	byID          map[uint64]*timerEntry
	nextID        uint64
	due           ksync.Rendez
}

// New returns an empty wheel with hardclock_time at zero.
func New() *Wheel {
	w := &Wheel{byID: make(map[uint64]*timerEntry)}
	for i := range w.slots {
		w.slots[i] = list.New()
	}
	return w
}

func (w *Wheel) slotFor(expiration uint64) int {
	return int(expiration % defs.JiffiesPerSecond)
}

// Arm schedules callback to fire once hardclock_time reaches
// HardclockTime()+delay, returning a handle Disarm can cancel.
// Timeouts longer than the wheel period are not staged separately: the
// entry simply sits in its slot across however many revolutions it
// takes for its absolute 64-bit expiration to catch up to
// hardclock_time, which is what the timer thread actually compares
// against rather than slot membership alone.
func (w *Wheel) Arm(delay uint64, callback Callback) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	exp := w.hardclockTime + delay
	e := &timerEntry{id: id, expiration: exp, callback: callback}
	e.elem = w.slots[w.slotFor(exp)].PushBack(e)
	w.byID[id] = e
	return id
}

// Disarm cancels a still-armed timer, returning false if it already
// fired or id was never armed.
func (w *Wheel) Disarm(id uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.byID[id]
	if !ok {
		return false
	}
	delete(w.byID, id)
	w.slots[w.slotFor(e.expiration)].Remove(e.elem)
	return true
}

// HardclockTime returns the wheel's current absolute jiffy count.
func (w *Wheel) HardclockTime() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hardclockTime
}

// Tick advances hardclock_time by one jiffy (called once per timer
// IRQ from the interrupt top half) and wakes the timer kernel thread if
// the new current slot holds any entry whose expiration has arrived.
func (w *Wheel) Tick() {
	w.mu.Lock()
	w.hardclockTime++
	slot := w.slots[w.slotFor(w.hardclockTime)]
	due := false
	for e := slot.Front(); e != nil; e = e.Next() {
		if e.Value.(*timerEntry).expiration <= w.hardclockTime {
			due = true
			break
		}
	}
	w.mu.Unlock()
	if due {
		w.due.TaskWakeup()
	}
}

// RunTimerThread is the body of the dedicated timer kernel thread: it
// blocks on the wheel's rendez and, once woken, scans the current slot
// and invokes every due callback. It never returns; callers run it in
// its own goroutine.
func (w *Wheel) RunTimerThread() {
	for {
		w.due.TaskSleep()
		w.scanCurrentSlot()
	}
}

func (w *Wheel) scanCurrentSlot() {
	w.mu.Lock()
	slot := w.slots[w.slotFor(w.hardclockTime)]
	var fired []*timerEntry
	for e := slot.Front(); e != nil; {
		next := e.Next()
		te := e.Value.(*timerEntry)
		if te.expiration <= w.hardclockTime {
			slot.Remove(e)
			delete(w.byID, te.id)
			fired = append(fired, te)
		}
		e = next
	}
	w.mu.Unlock()

	for _, te := range fired {
		te.callback(te.id)
	}
}
