// Package msgport implements the VFS message-port transport (spec.md
// §4.7): user-mode filesystem servers each present a port bound to a
// SuperBlock, and the kernel's VFS translates vnode operations into
// IORequest/IOResponse messages delivered FIFO per port. The
// request/response op-tagging surface is modeled on jacobsa/fuse's
// FileSystem interface shape (`other_examples/433cd83e_jacobsa-fuse__
// file_system.go.go`), reimplemented as a queue of tagged messages
// rather than one Go method per op, since the wire format here is
// kernel-internal rather than real FUSE (SPEC_FULL.md DOMAIN STACK).
package msgport

import (
	"container/list"
	"sync"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/ksync"
)

// Op tags an IORequest's kind (spec.md §4.7 step 1).
type Op int

const (
	OpLookup Op = iota
	OpRead
	OpWrite
	OpMknod
	OpUnlink
	OpTruncate
	OpReadlink
	OpSymlink
	OpLink
	OpIoctl
)

func (o Op) String() string {
	switch o {
	case OpLookup:
		return "lookup"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpMknod:
		return "mknod"
	case OpUnlink:
		return "unlink"
	case OpTruncate:
		return "truncate"
	case OpReadlink:
		return "readlink"
	case OpSymlink:
		return "symlink"
	case OpLink:
		return "link"
	case OpIoctl:
		return "ioctl"
	default:
		return "unknown"
	}
}

// IORequest is one message a caller formats and enqueues on a Port.
type IORequest struct {
	Op     Op
	Path   string
	Data   []byte
	Offset int64
	Arg    uint64
}

// IOResponse is the server's reply, matched back to the caller by
// request id.
type IOResponse struct {
	Err  defs.Err_t
	Data []byte
	N    int
}

type pendingReq struct {
	id        uint64
	req       *IORequest
	resp      IOResponse
	rendez    ksync.Rendez
	abandoned bool
	elem      *list.Element
}

// Port is a message port bound to one SuperBlock. Callers enqueue
// requests via Send and block until the server replies; the server
// drains requests FIFO via Receive and completes them via Reply, free
// to pipeline internally (spec.md §4.7's ordering guarantee: FIFO
// delivery, not FIFO completion).
type Port struct {
	mu       sync.Mutex
	queue    *list.List // of *pendingReq
	notEmpty ksync.Rendez
	nextID   uint64
	byID     map[uint64]*pendingReq
}

// NewPort returns an empty, ready-to-use port.
func NewPort() *Port {
	return &Port{queue: list.New(), byID: make(map[uint64]*pendingReq)}
}

// Send enqueues req FIFO and blocks the caller until the server replies
// or the caller is interrupted (spec.md §4.7 steps 2 and 4). A non-zero
// error return on interruption means the request was marked abandoned:
// the eventual reply, if any, is silently discarded.
func (p *Port) Send(req *IORequest) (IOResponse, defs.Err_t) {
	pr := &pendingReq{req: req}
	p.mu.Lock()
	p.nextID++
	pr.id = p.nextID
	p.byID[pr.id] = pr
	pr.elem = p.queue.PushBack(pr)
	p.mu.Unlock()
	p.notEmpty.TaskWakeup()

	if err := pr.rendez.TaskSleepInterruptible(defs.WAKE_SIGNAL | defs.WAKE_CANCEL); err != 0 {
		p.mu.Lock()
		pr.abandoned = true
		p.mu.Unlock()
		return IOResponse{}, err
	}
	return pr.resp, pr.resp.Err
}

// Receive blocks until a request is available, then dequeues and
// returns it FIFO along with the id Reply must later use.
func (p *Port) Receive() (id uint64, req *IORequest) {
	for {
		p.mu.Lock()
		front := p.queue.Front()
		if front != nil {
			p.queue.Remove(front)
			pr := front.Value.(*pendingReq)
			p.mu.Unlock()
			return pr.id, pr.req
		}
		p.mu.Unlock()
		p.notEmpty.TaskSleep()
	}
}

// Reply completes the request identified by id. If the caller already
// abandoned it (cancelled while waiting), the reply is discarded and
// the tracking entry is freed without waking anyone (spec.md §4.7 step
// 4).
func (p *Port) Reply(id uint64, resp IOResponse) defs.Err_t {
	p.mu.Lock()
	pr, ok := p.byID[id]
	if ok {
		delete(p.byID, id)
	}
	p.mu.Unlock()
	if !ok {
		return -defs.EINVAL
	}
	if pr.abandoned {
		return 0
	}
	pr.resp = resp
	pr.rendez.TaskWakeupSpecific()
	return 0
}

// Pending returns the number of requests still queued or in flight.
func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}
