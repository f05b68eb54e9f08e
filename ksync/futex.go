// Futex implements address-keyed futex wait/wake/requeue, keyed on
// (process, user virtual address) per spec.md §4.3. Grounded on the
// bucket-lock-then-recheck pattern the teacher uses for its message
// port AckCh rendezvous (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/fs/blk.go's Bdev_req_t), adapted
// to a FIFO wait queue per uaddr rather than a single-shot channel.
package ksync

import (
	"sync"

	"cheviot-kernel-sub001/defs"
)

// FutexKey identifies one futex: the owning process and the user
// virtual address of the futex word.
type FutexKey struct {
	Pid defs.Pid_t
	UVA uintptr
}

type futexWaiter struct {
	wake chan defs.Err_t
}

type futexEntry struct {
	mu      sync.Mutex
	waiters []*futexWaiter
}

// FutexTable holds every live futex in the kernel, created lazily and
// destroyed on last-waiter departure or process teardown
// (spec.md's `fini_futexes`, SPEC_FULL.md Supplemented Features).
type FutexTable struct {
	mu      sync.Mutex
	entries map[FutexKey]*futexEntry
}

// NewFutexTable returns an empty futex table.
func NewFutexTable() *FutexTable {
	return &FutexTable{entries: make(map[FutexKey]*futexEntry)}
}

func (t *FutexTable) entry(key FutexKey, create bool) *futexEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[key]
	if e == nil && create {
		e = &futexEntry{}
		t.entries[key] = e
	}
	return e
}

func (t *FutexTable) dropIfEmpty(key FutexKey, e *futexEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.mu.Lock()
	empty := len(e.waiters) == 0
	e.mu.Unlock()
	if empty && t.entries[key] == e {
		delete(t.entries, key)
	}
}

// Wait re-reads *uaddr (via readWord, supplied by the caller since only
// vm knows how to fault in and read a user VA) after taking the
// bucket's lock; if it no longer equals val, returns EAGAIN without
// sleeping, otherwise blocks until woken by Wake/Requeue.
func (t *FutexTable) Wait(key FutexKey, val uint32, readWord func() (uint32, defs.Err_t)) defs.Err_t {
	e := t.entry(key, true)
	e.mu.Lock()
	cur, err := readWord()
	if err != 0 {
		e.mu.Unlock()
		return err
	}
	if cur != val {
		e.mu.Unlock()
		t.dropIfEmpty(key, e)
		return -defs.EAGAIN
	}
	w := &futexWaiter{wake: make(chan defs.Err_t, 1)}
	e.waiters = append(e.waiters, w)
	e.mu.Unlock()

	res := <-w.wake
	t.dropIfEmpty(key, e)
	return res
}

// Wake wakes at most n waiters on key, FIFO, returning the count woken.
func (t *FutexTable) Wake(key FutexKey, n int) int {
	e := t.entry(key, false)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	woken := 0
	for woken < n && len(e.waiters) > 0 {
		w := e.waiters[0]
		e.waiters = e.waiters[1:]
		w.wake <- 0
		woken++
	}
	e.mu.Unlock()
	t.dropIfEmpty(key, e)
	return woken
}

// Requeue wakes n waiters from key and moves up to m more of key's
// remaining waiters to key2, without waking them -- they stay parked,
// now waiting on key2.
func (t *FutexTable) Requeue(key FutexKey, n int, key2 FutexKey, m int) (woken int, moved int) {
	src := t.entry(key, false)
	if src == nil {
		return 0, 0
	}
	dst := t.entry(key2, true)

	src.mu.Lock()
	for woken < n && len(src.waiters) > 0 {
		w := src.waiters[0]
		src.waiters = src.waiters[1:]
		w.wake <- 0
		woken++
	}
	var toMove []*futexWaiter
	for moved < m && len(src.waiters) > 0 {
		toMove = append(toMove, src.waiters[0])
		src.waiters = src.waiters[1:]
		moved++
	}
	src.mu.Unlock()

	if len(toMove) > 0 {
		dst.mu.Lock()
		dst.waiters = append(dst.waiters, toMove...)
		dst.mu.Unlock()
	}
	t.dropIfEmpty(key, src)
	return woken, moved
}

// Destroy wakes every waiter on key with EINTR and removes the entry,
// used by both explicit futex_destroy and process teardown's
// fini_futexes sweep.
func (t *FutexTable) Destroy(key FutexKey) {
	e := t.entry(key, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	for _, w := range e.waiters {
		w.wake <- -defs.EINTR
	}
	e.waiters = nil
	e.mu.Unlock()
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// TeardownProcess destroys every futex belonging to pid, the
// fini_futexes behavior referenced in spec.md §4.3 and resolved from
// original_source/proc/globals.c's teardown ordering.
func (t *FutexTable) TeardownProcess(pid defs.Pid_t) {
	t.mu.Lock()
	var keys []FutexKey
	for k := range t.entries {
		if k.Pid == pid {
			keys = append(keys, k)
		}
	}
	t.mu.Unlock()
	for _, k := range keys {
		t.Destroy(k)
	}
}
