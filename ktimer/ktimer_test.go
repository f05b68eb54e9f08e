package ktimer

import (
	"sync"
	"testing"
	"time"
)

func TestArmFiresAfterDelay(t *testing.T) {
	w := New()
	fired := make(chan uint64, 1)
	go w.RunTimerThread()

	w.Arm(3, func(id uint64) { fired <- id })
	for i := 0; i < 3; i++ {
		w.Tick()
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestDisarmPreventsCallback(t *testing.T) {
	w := New()
	var mu sync.Mutex
	called := false
	id := w.Arm(2, func(uint64) {
		mu.Lock()
		called = true
		mu.Unlock()
	})
	if !w.Disarm(id) {
		t.Fatal("expected Disarm to succeed on an armed timer")
	}
	if w.Disarm(id) {
		t.Fatal("expected second Disarm of the same id to fail")
	}
	for i := 0; i < 5; i++ {
		w.Tick()
	}
	w.scanCurrentSlot()
	mu.Lock()
	defer mu.Unlock()
	if called {
		t.Fatal("disarmed timer must not fire")
	}
}

func TestTimeoutLongerThanWheelPeriodStillFires(t *testing.T) {
	w := New()
	fired := make(chan uint64, 1)
	go w.RunTimerThread()

	w.Arm(250, func(id uint64) { fired <- id }) // > JiffiesPerSecond slots
	for i := 0; i < 250; i++ {
		w.Tick()
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer armed for multiple wheel revolutions never fired")
	}
}

func TestRearmIsCallbackResponsibility(t *testing.T) {
	w := New()
	count := make(chan int, 1)
	var mu sync.Mutex
	n := 0
	var arm func()
	arm = func() {
		w.Arm(1, func(uint64) {
			mu.Lock()
			n++
			cur := n
			mu.Unlock()
			if cur < 2 {
				arm()
			} else {
				count <- cur
			}
		})
	}
	go w.RunTimerThread()
	arm()
	for i := 0; i < 10; i++ {
		w.Tick()
	}

	select {
	case got := <-count:
		if got != 2 {
			t.Fatalf("expected exactly 2 fires via manual rearm, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("rearmed timer never completed its second fire")
	}
}
