// Package vfs implements the VFS core of spec.md §4.8: vnode/filp/
// superblock lifecycle, the buffer cache, the DName cache, lookup,
// sys_write's mode dispatch, close semantics, and knote integration.
// Grounded structurally on the teacher's _examples/Oichkatzelesfrettschen-biscuit/biscuit/src/fs package (the
// Bdev_block_t/BlkList_t intrusive-list idiom in blk.go) but retargeted
// from biscuit's local on-disk filesystem onto spec.md §4.7's
// message-port transport to a user-mode server, since this kernel's
// filesystems are remote, not a disk format the kernel itself parses.
package vfs

import (
	"sync"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/msgport"
)

// SuperBlock binds a mounted filesystem's message port to an
// identifier the buffer cache and DName cache key their entries under.
type SuperBlock struct {
	ID   int
	Port *msgport.Port
}

// NewSuperBlock returns a SuperBlock bound to port, identified by id.
func NewSuperBlock(id int, port *msgport.Port) *SuperBlock {
	return &SuperBlock{ID: id, Port: port}
}

// Knote is a subscription to a vnode's write/attrib/extend events
// (spec.md §4.8's knote integration). Notify is called after knote has
// released the vnode lock.
type Knote struct {
	Filter defs.NoteFilter
	Notify func(defs.NoteFilter)
}

// VNode is the kernel's in-memory representation of a remote file,
// refcounted and released via Put (spec.md §4.8 lookup's "caller must
// release with vnode_put").
type VNode struct {
	mu     sync.Mutex
	SB     *SuperBlock
	Ino    int
	Type   defs.VNodeType
	Mode   uint
	Rdev   uint
	size   int64
	refcnt int
	knotes []*Knote
	pipe   *pipeState // lazily allocated for VFIFO vnodes
}

// NewVNode returns a vnode with an initial reference count of one.
func NewVNode(sb *SuperBlock, ino int, typ defs.VNodeType) *VNode {
	return &VNode{SB: sb, Ino: ino, Type: typ, refcnt: 1}
}

// Ref increments the vnode's reference count.
func (v *VNode) Ref() {
	v.mu.Lock()
	v.refcnt++
	v.mu.Unlock()
}

// Put releases a reference; the caller must not use v again if this
// was the last one.
func (v *VNode) Put() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.refcnt <= 0 {
		panic("vnode_put: reference count underflow")
	}
	v.refcnt--
}

// Refcnt reports the current reference count (tests and teardown use
// this to confirm DName cache invalidation released its holds).
func (v *VNode) Refcnt() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refcnt
}

// Size returns the vnode's current size in bytes.
func (v *VNode) Size() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

func (v *VNode) setSize(sz int64) {
	v.mu.Lock()
	v.size = sz
	v.mu.Unlock()
}

// AddKnote subscribes k to v's write/attrib/extend events.
func (v *VNode) AddKnote(k *Knote) {
	v.mu.Lock()
	v.knotes = append(v.knotes, k)
	v.mu.Unlock()
}

// knote fires filter on every subscriber whose mask intersects it. It
// takes v.mu itself to copy the subscriber list, so it cannot be called
// with v.mu held; each Notify runs without the lock.
func (v *VNode) knote(filter defs.NoteFilter) {
	v.mu.Lock()
	subs := v.knotes
	v.mu.Unlock()
	for _, k := range subs {
		if k.Filter&filter != 0 {
			k.Notify(filter)
		}
	}
}

// Filp is a per-open-file handle onto a VNode: offset, access
// permissions, and its own reference count independent of the vnode's
// (spec.md §3 Filp, §4.8 close semantics).
type Filp struct {
	mu     sync.Mutex
	V      *VNode
	Offset int64
	Perms  int
	refcnt int
	owner  *VFS
}

// NewFilp returns a Filp over v with an initial reference count of one.
func (fs *VFS) NewFilp(v *VNode, perms int) *Filp {
	return &Filp{V: v, Perms: perms, refcnt: 1, owner: fs}
}

// Ref increments the filp's reference count (e.g. on dup/fork).
func (f *Filp) Ref() {
	f.mu.Lock()
	f.refcnt++
	f.mu.Unlock()
}
