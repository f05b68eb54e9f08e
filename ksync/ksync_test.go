package ksync

import (
	"testing"
	"time"

	"cheviot-kernel-sub001/defs"
)

func TestRendezWakeupSpecific(t *testing.T) {
	var r Rendez
	done := make(chan defs.Err_t, 1)
	go func() { done <- r.TaskSleepInterruptible(defs.WakeAny) }()

	for r.NumWaiters() == 0 {
		time.Sleep(time.Millisecond)
	}
	if !r.TaskWakeupSpecific() {
		t.Fatal("expected a waiter to wake")
	}
	if err := <-done; err != 0 {
		t.Fatalf("expected normal wakeup, got %v", err)
	}
}

func TestRendezInterruptible(t *testing.T) {
	var r Rendez
	done := make(chan defs.Err_t, 1)
	go func() { done <- r.TaskSleepInterruptible(defs.WAKE_SIGNAL) }()
	for r.NumWaiters() == 0 {
		time.Sleep(time.Millisecond)
	}
	r.Interrupt(defs.WAKE_SIGNAL)
	if err := <-done; err != -defs.EINTR {
		t.Fatalf("expected EINTR, got %v", err)
	}
}

func TestRWLockExclusivePreferredOverShared(t *testing.T) {
	var l RWLock
	l.LKExclusive()

	order := make(chan string, 2)
	go func() {
		l.LKShared()
		order <- "shared2"
		l.LKRelease(false)
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		l.LKExclusive()
		order <- "exclusive"
		l.LKRelease(true)
	}()
	time.Sleep(10 * time.Millisecond)

	l.LKRelease(true) // release the initial exclusive hold
	first := <-order
	<-order
	if first != "exclusive" {
		t.Fatalf("expected exclusive waiter admitted first, got %q", first)
	}
}

func TestRWLockDrainReentrant(t *testing.T) {
	var l RWLock
	l.LKExclusive()
	l.LKDrain(true)
	l.LKRelease(true)
}

func TestFutexWaitWrongValueReturnsEAGAIN(t *testing.T) {
	ft := NewFutexTable()
	key := FutexKey{Pid: 1, UVA: 0x1000}
	err := ft.Wait(key, 5, func() (uint32, defs.Err_t) { return 6, 0 })
	if err != -defs.EAGAIN {
		t.Fatalf("expected EAGAIN, got %v", err)
	}
}

func TestFutexWaitWake(t *testing.T) {
	ft := NewFutexTable()
	key := FutexKey{Pid: 1, UVA: 0x2000}
	done := make(chan defs.Err_t, 1)
	go func() {
		done <- ft.Wait(key, 0, func() (uint32, defs.Err_t) { return 0, 0 })
	}()
	time.Sleep(10 * time.Millisecond)
	if n := ft.Wake(key, 1); n != 1 {
		t.Fatalf("expected 1 waiter woken, got %d", n)
	}
	if err := <-done; err != 0 {
		t.Fatalf("expected success, got %v", err)
	}
}
