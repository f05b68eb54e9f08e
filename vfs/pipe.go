package vfs

import (
	"sync"

	"cheviot-kernel-sub001/circbuf"
	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/fdops"
	"cheviot-kernel-sub001/ksync"
	"cheviot-kernel-sub001/mem"
)

// pipeState backs a VFIFO vnode's write_to_pipe/read_from_pipe dispatch
// with a single-page circbuf, blocking writers when full and readers
// when empty.
type pipeState struct {
	mu       sync.Mutex
	cb       circbuf.Circbuf
	notEmpty ksync.Rendez
	notFull  ksync.Rendez
}

func newPipeState(pages mem.Page_i) *pipeState {
	p := &pipeState{}
	p.cb.Init(mem.PGSIZE, pages)
	return p
}

func (p *pipeState) write(src fdops.Userio_i) (int, defs.Err_t) {
	if src.Remain() == 0 {
		return 0, 0
	}
	for {
		p.mu.Lock()
		n, err := p.cb.Copyin(src)
		p.mu.Unlock()
		if err != 0 {
			return 0, err
		}
		if n > 0 {
			p.notEmpty.TaskWakeup()
			return n, 0
		}
		p.notFull.TaskSleep()
	}
}

func (p *pipeState) read(dst fdops.Userio_i) (int, defs.Err_t) {
	if dst.Remain() == 0 {
		return 0, 0
	}
	for {
		p.mu.Lock()
		n, err := p.cb.Copyout(dst)
		p.mu.Unlock()
		if err != 0 {
			return 0, err
		}
		if n > 0 {
			p.notFull.TaskWakeup()
			return n, 0
		}
		p.notEmpty.TaskSleep()
	}
}
