// RWLock implements the drain-aware reader/writer lock of spec.md §4.3:
// share_cnt/exclusive_cnt/is_draining state, LK_SHARED/EXCLUSIVE/
// UPGRADE/DOWNGRADE/DRAIN/RELEASE requests, writer-preferred fairness
// with FIFO tie-break. There is no direct teacher analog (biscuit uses
// bare sync.RWMutex); the drain mode and explicit fairness policy are
// grounded on the Rendez/Killnaps wake-one-or-all pattern in
// _examples/Oichkatzelesfrettschen-biscuit/biscuit/src/tinfo/tinfo.go, generalized into a queue the releaser
// walks to decide who gets admitted next.
package ksync

import (
	"sync"
)

// LKMode names an RWLock request.
type LKMode int

const (
	LK_SHARED LKMode = iota
	LK_EXCLUSIVE
	LK_UPGRADE
	LK_DOWNGRADE
	LK_DRAIN
	LK_RELEASE
)

type rwWaiter struct {
	mode LKMode
	wake chan struct{}
}

// RWLock is the core's drain-aware reader/writer lock.
type RWLock struct {
	mu           sync.Mutex
	shareCnt     int
	exclusiveCnt int
	isDraining   bool
	// waiters is the FIFO queue of blocked requests that
	// admitNextLocked walks on release. LK_DRAIN's reentrancy rule is
	// not tracked here: LKDrain's caller states whether it already
	// holds the lock exclusively.
	waiters []*rwWaiter
}

// LKShared blocks while exclusiveCnt > 0 or the lock is draining, then
// takes a shared hold.
func (l *RWLock) LKShared() {
	l.acquire(LK_SHARED)
}

// LKExclusive blocks while any counter is nonzero, then takes the
// exclusive hold.
func (l *RWLock) LKExclusive() {
	l.acquire(LK_EXCLUSIVE)
}

// LKDrain blocks new sharers/exclusives and waits for existing holders
// to leave, for object teardown. A thread that already holds the lock
// exclusively may call LKDrain without blocking (reentrant drain).
func (l *RWLock) LKDrain(alreadyExclusiveHolder bool) {
	l.mu.Lock()
	if alreadyExclusiveHolder && l.exclusiveCnt > 0 {
		l.isDraining = true
		l.mu.Unlock()
		return
	}
	if l.shareCnt == 0 && l.exclusiveCnt == 0 && len(l.waiters) == 0 {
		l.isDraining = true
		l.mu.Unlock()
		return
	}
	l.blockLocked(LK_DRAIN)
	l.mu.Lock()
	l.isDraining = true
	l.mu.Unlock()
}

// LKUpgrade atomically converts a shared hold into an exclusive hold,
// blocking if any other sharer remains. The caller's own shared count
// is consumed by the upgrade.
func (l *RWLock) LKUpgrade() {
	l.mu.Lock()
	if l.shareCnt == 1 {
		l.shareCnt = 0
		l.exclusiveCnt = 1
		l.mu.Unlock()
		return
	}
	l.shareCnt--
	l.blockLocked(LK_EXCLUSIVE)
}

// LKDowngrade converts the caller's exclusive hold into a shared hold
// with no window where the lock is unheld.
func (l *RWLock) LKDowngrade() {
	l.mu.Lock()
	l.exclusiveCnt = 0
	l.shareCnt = 1
	l.mu.Unlock()
}

// LKRelease releases a shared or exclusive hold, as indicated by
// wasExclusive, and on transition to zero admits the next waiter(s)
// per the fairness policy.
func (l *RWLock) LKRelease(wasExclusive bool) {
	l.mu.Lock()
	if wasExclusive {
		l.exclusiveCnt = 0
	} else {
		l.shareCnt--
	}
	if l.shareCnt == 0 && l.exclusiveCnt == 0 {
		l.isDraining = false
		l.admitNextLocked()
	}
	l.mu.Unlock()
}

func (l *RWLock) acquire(mode LKMode) {
	l.mu.Lock()
	blocked := l.isDraining || l.exclusiveCnt > 0
	if mode == LK_EXCLUSIVE {
		blocked = blocked || l.shareCnt > 0
	}
	if !blocked && len(l.waiters) == 0 {
		if mode == LK_SHARED {
			l.shareCnt++
		} else {
			l.exclusiveCnt = 1
		}
		l.mu.Unlock()
		return
	}
	l.blockLocked(mode)
}

// blockLocked enqueues the caller and waits for admitNextLocked to
// grant it the lock; l.mu must be held on entry, is released before
// waiting, and is not held on return.
func (l *RWLock) blockLocked(mode LKMode) {
	w := &rwWaiter{mode: mode, wake: make(chan struct{})}
	l.waiters = append(l.waiters, w)
	l.mu.Unlock()
	<-w.wake
}

// admitNextLocked chooses who runs next when the lock is free:
// exclusive (and drain) waiters are preferred over shared waiters to
// avoid writer starvation, ties broken FIFO; when the head of the queue
// is a shared waiter, every other contiguous shared waiter ahead of the
// next exclusive waiter is admitted together. l.mu must be held.
func (l *RWLock) admitNextLocked() {
	if len(l.waiters) == 0 {
		return
	}
	// Prefer the earliest exclusive/drain waiter over any shared
	// waiters, even ones that arrived first -- writer preference.
	for i, w := range l.waiters {
		if w.mode == LK_EXCLUSIVE || w.mode == LK_DRAIN {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			l.exclusiveCnt = 1
			close(w.wake)
			return
		}
	}
	// No exclusive/drain waiter pending: admit every shared waiter,
	// FIFO order preserved among themselves.
	admitted := l.waiters
	l.waiters = nil
	for _, w := range admitted {
		l.shareCnt++
		close(w.wake)
	}
}
