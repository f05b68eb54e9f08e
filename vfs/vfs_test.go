package vfs

import (
	"sync/atomic"
	"testing"
	"time"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/mem"
	"cheviot-kernel-sub001/msgport"
	"cheviot-kernel-sub001/ustr"
)

// startFakeServer drains port forever, replying via handler. Tests
// leave it running past their own return; the goroutine parks on
// Receive and is harmless to leak.
func startFakeServer(port *msgport.Port, handler func(req *msgport.IORequest) msgport.IOResponse) {
	go func() {
		for {
			id, req := port.Receive()
			port.Reply(id, handler(req))
		}
	}()
}

func newTestVFS(t *testing.T, port *msgport.Port) (*VFS, *VNode) {
	t.Helper()
	sb := NewSuperBlock(1, port)
	root := NewVNode(sb, 1, defs.VDIR)
	fs := NewVFS(root, NewDNameCache(defs.NR_DNAME), NewBufCache(4, 64), mem.NewPhysmem_tForTest())
	return fs, root
}

func TestLookupCachesAcrossCalls(t *testing.T) {
	port := msgport.NewPort()
	var calls int32
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		if req.Op != msgport.OpLookup || req.Path != "foo" {
			return msgport.IOResponse{Err: -defs.ENOENT}
		}
		atomic.AddInt32(&calls, 1)
		return msgport.IOResponse{N: 42, Data: []byte{byte(defs.VREG)}}
	})
	fs, _ := newTestVFS(t, port)

	ld, err := fs.Lookup(ustr.Ustr("/foo"), 0)
	if err != 0 {
		t.Fatalf("lookup: %d", err)
	}
	if ld.Vn.Ino != 42 || ld.Vn.Type != defs.VREG {
		t.Fatalf("unexpected vnode: %+v", ld.Vn)
	}
	ld.Parent.Put()
	ld.Vn.Put()

	ld2, err := fs.Lookup(ustr.Ustr("/foo"), 0)
	if err != 0 {
		t.Fatalf("second lookup: %d", err)
	}
	ld2.Parent.Put()
	ld2.Vn.Put()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one server round trip, got %d", calls)
	}
}

func TestLookupMissingReturnsENOENT(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		return msgport.IOResponse{Err: -defs.ENOENT}
	})
	fs, _ := newTestVFS(t, port)

	_, err := fs.Lookup(ustr.Ustr("/nope"), 0)
	if err != -defs.ENOENT {
		t.Fatalf("expected ENOENT, got %d", err)
	}
}

func TestMknodRejectsExistingName(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		switch req.Op {
		case msgport.OpLookup:
			return msgport.IOResponse{N: 7, Data: []byte{byte(defs.VREG)}}
		default:
			t.Errorf("unexpected op %v reached server after EEXIST should short-circuit", req.Op)
			return msgport.IOResponse{Err: -defs.EINVAL}
		}
	})
	fs, _ := newTestVFS(t, port)

	err := fs.Mknod(ustr.Ustr("/dev0"), defs.VCHR, 0)
	if err != -defs.EEXIST {
		t.Fatalf("expected EEXIST, got %d", err)
	}
}

func TestMknodCreatesAndCachesNewNode(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		switch req.Op {
		case msgport.OpLookup:
			return msgport.IOResponse{Err: -defs.ENOENT}
		case msgport.OpMknod:
			return msgport.IOResponse{N: 9}
		default:
			return msgport.IOResponse{Err: -defs.EINVAL}
		}
	})
	fs, _ := newTestVFS(t, port)

	if err := fs.Mknod(ustr.Ustr("/dev0"), defs.VCHR, 5); err != 0 {
		t.Fatalf("mknod: %d", err)
	}

	ld, err := fs.Lookup(ustr.Ustr("/dev0"), 0)
	if err != 0 {
		t.Fatalf("lookup after mknod: %d", err)
	}
	defer func() { ld.Parent.Put(); ld.Vn.Put() }()
	if ld.Vn.Ino != 9 || ld.Vn.Type != defs.VCHR {
		t.Fatalf("unexpected vnode after mknod: %+v", ld.Vn)
	}
}

func TestUnlinkInvalidatesDNameCache(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		switch req.Op {
		case msgport.OpLookup:
			return msgport.IOResponse{N: 3, Data: []byte{byte(defs.VREG)}}
		case msgport.OpUnlink:
			return msgport.IOResponse{}
		default:
			return msgport.IOResponse{Err: -defs.EINVAL}
		}
	})
	fs, root := newTestVFS(t, port)

	if err := fs.Unlink(ustr.Ustr("/file")); err != 0 {
		t.Fatalf("unlink: %d", err)
	}
	if _, ok := fs.dcache.Lookup(root.Ino, ustr.Ustr("file")); ok {
		t.Fatalf("expected dcache entry to be invalidated")
	}
}

func TestUnlinkMissingReturnsENOENT(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		return msgport.IOResponse{Err: -defs.ENOENT}
	})
	fs, _ := newTestVFS(t, port)

	if err := fs.Unlink(ustr.Ustr("/nope")); err != -defs.ENOENT {
		t.Fatalf("expected ENOENT, got %d", err)
	}
}

func TestSysWriteReadRegularFileAdvancesOffset(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		return msgport.IOResponse{Err: -defs.EINVAL}
	})
	fs, _ := newTestVFS(t, port)
	sb := NewSuperBlock(2, port)
	v := NewVNode(sb, 100, defs.VREG)
	f := fs.NewFilp(v, defs.W_OK|defs.R_OK)

	payload := []byte("hello, kernel")
	n, err := fs.SysWrite(f, newFakeUioSrc(payload))
	if err != 0 || n != len(payload) {
		t.Fatalf("write: n=%d err=%d", n, err)
	}
	if f.Offset != int64(len(payload)) {
		t.Fatalf("expected offset %d, got %d", len(payload), f.Offset)
	}

	f.Offset = 0
	dst := newFakeUioDst(len(payload))
	n, err = fs.SysRead(f, dst)
	if err != 0 || n != len(payload) {
		t.Fatalf("read: n=%d err=%d", n, err)
	}
	if string(dst.data) != string(payload) {
		t.Fatalf("expected %q, got %q", payload, dst.data)
	}
	if f.Offset != int64(len(payload)) {
		t.Fatalf("expected offset to advance on read, got %d", f.Offset)
	}
}

func TestFilpReadWriteDoesNotAdvanceOffset(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		return msgport.IOResponse{Err: -defs.EINVAL}
	})
	fs, _ := newTestVFS(t, port)
	sb := NewSuperBlock(3, port)
	v := NewVNode(sb, 101, defs.VREG)
	f := fs.NewFilp(v, defs.W_OK)

	n, err := f.Write(newFakeUioSrc([]byte("abc")), 10)
	if err != 0 || n != 3 {
		t.Fatalf("write: n=%d err=%d", n, err)
	}
	if f.Offset != 0 {
		t.Fatalf("Filp.Write must not touch the cursor, got offset %d", f.Offset)
	}
}

func TestPipeWriteReadRoundTrip(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		return msgport.IOResponse{Err: -defs.EINVAL}
	})
	fs, _ := newTestVFS(t, port)
	sb := NewSuperBlock(4, port)
	v := NewVNode(sb, 200, defs.VFIFO)
	wf := fs.NewFilp(v, defs.W_OK)
	v.Ref()
	rf := fs.NewFilp(v, defs.R_OK)

	n, err := fs.SysWrite(wf, newFakeUioSrc([]byte("ping")))
	if err != 0 || n != 4 {
		t.Fatalf("pipe write: n=%d err=%d", n, err)
	}

	done := make(chan struct{})
	var dst *fakeUioDst
	go func() {
		d := newFakeUioDst(4)
		fs.SysRead(rf, d)
		dst = d
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pipe read timed out")
	}
	if string(dst.data) != "ping" {
		t.Fatalf("expected ping, got %q", dst.data)
	}
}

func TestCloseReleasesVnodeOnLastReference(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		return msgport.IOResponse{Err: -defs.EINVAL}
	})
	fs, _ := newTestVFS(t, port)
	sb := NewSuperBlock(5, port)
	v := NewVNode(sb, 300, defs.VREG)
	f := fs.NewFilp(v, defs.R_OK)

	if err := f.Close(); err != 0 {
		t.Fatalf("close: %d", err)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic from double Put via a second close")
			}
		}()
		v.Put()
	}()
}

func TestReopenAddsIndependentReferences(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		return msgport.IOResponse{Err: -defs.EINVAL}
	})
	fs, _ := newTestVFS(t, port)
	sb := NewSuperBlock(6, port)
	v := NewVNode(sb, 301, defs.VREG)
	f := fs.NewFilp(v, defs.R_OK)

	if err := f.Reopen(); err != 0 {
		t.Fatalf("reopen: %d", err)
	}
	if v.Refcnt() != 2 {
		t.Fatalf("expected refcnt 2 after reopen, got %d", v.Refcnt())
	}

	if err := f.Close(); err != 0 {
		t.Fatalf("first close: %d", err)
	}
	if v.Refcnt() != 2 {
		t.Fatalf("Close only frees the vnode on the filp's own last reference, got refcnt %d", v.Refcnt())
	}
}

func TestTruncateRequiresWritePermission(t *testing.T) {
	port := msgport.NewPort()
	startFakeServer(port, func(req *msgport.IORequest) msgport.IOResponse {
		return msgport.IOResponse{}
	})
	fs, _ := newTestVFS(t, port)
	sb := NewSuperBlock(7, port)
	v := NewVNode(sb, 302, defs.VREG)
	f := fs.NewFilp(v, defs.R_OK)

	if err := fs.Truncate(f, 0); err != -defs.EACCES {
		t.Fatalf("expected EACCES, got %d", err)
	}
}
