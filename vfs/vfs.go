package vfs

import (
	"sync"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/fdops"
	"cheviot-kernel-sub001/mem"
	"cheviot-kernel-sub001/msgport"
	"cheviot-kernel-sub001/ustr"
)

// VFS is the kernel-wide VFS instance: one rooted namespace backed by a
// single SuperBlock, a shared DName cache and buffer cache (spec.md
// §4.8). Multi-mount namespace composition is out of scope; see
// DESIGN.md.
type VFS struct {
	mu      sync.Mutex
	root    *VNode
	dcache  *DNameCache
	bufs    *BufCache
	pages   mem.Page_i
	nextIno int
}

// NewVFS returns a VFS rooted at root, using dcache/bufs as its caches
// and pages for pipe backing-store allocation.
func NewVFS(root *VNode, dcache *DNameCache, bufs *BufCache, pages mem.Page_i) *VFS {
	return &VFS{root: root, dcache: dcache, bufs: bufs, pages: pages}
}

// Root returns the filesystem's root vnode without taking a reference;
// callers that retain it must Ref() it themselves.
func (fs *VFS) Root() *VNode {
	return fs.root
}

// LookupResult is the outcome of a path walk: the containing directory
// (nil only for the root itself), the resolved vnode (nil if the leaf
// does not exist and LOOKUP_PARENT was requested), and the leaf's name
// as seen by the parent.
type LookupResult struct {
	Parent *VNode
	Vn     *VNode
	Name   ustr.Ustr
}

// Lookup walks path component by component starting at the VFS root,
// consulting the DName cache before round-tripping through the owning
// SuperBlock's message port (spec.md §4.8). With LOOKUP_PARENT set, the
// final component is not required to exist: Vn is nil and Name holds
// the unresolved leaf, letting mknod/symlink/link/unlink create or
// remove it. Every non-nil VNode returned is a reference the caller
// must Put().
func (fs *VFS) Lookup(path ustr.Ustr, flags int) (*LookupResult, defs.Err_t) {
	if len(path) == 0 {
		return nil, -defs.EINVAL
	}
	cur := fs.root
	cur.Ref()
	rest := path
	for {
		head, tail, ok := rest.PopFirst()
		if !ok {
			// path was "/" or "" after stripping separators: cur is the
			// target and has no parent within this walk. A caller asking
			// for the parent of a name has nothing to name.
			if flags&defs.LOOKUP_PARENT != 0 {
				cur.Put()
				return nil, -defs.EINVAL
			}
			return &LookupResult{Parent: nil, Vn: cur, Name: nil}, 0
		}
		last := len(tail) == 0
		if last && flags&defs.LOOKUP_PARENT != 0 {
			child, found := fs.resolveChild(cur, head)
			if !found {
				return &LookupResult{Parent: cur, Vn: nil, Name: head}, 0
			}
			return &LookupResult{Parent: cur, Vn: child, Name: head}, 0
		}
		child, found := fs.resolveChild(cur, head)
		if !found {
			cur.Put()
			return nil, -defs.ENOENT
		}
		if last {
			return &LookupResult{Parent: cur, Vn: child, Name: head}, 0
		}
		cur.Put()
		cur = child
		rest = tail
	}
}

// resolveChild resolves one path component under parent, consulting
// the DName cache first and falling back to a message-port OpLookup
// round trip on a miss, inserting the result on success. The returned
// vnode, if found, is a reference the caller owns.
func (fs *VFS) resolveChild(parent *VNode, name ustr.Ustr) (*VNode, bool) {
	if v, ok := fs.dcache.Lookup(parent.Ino, name); ok {
		v.Ref()
		return v, true
	}

	resp, err := parent.SB.Port.Send(&msgport.IORequest{Op: msgport.OpLookup, Path: name.String()})
	if err != 0 || resp.Err != 0 {
		return nil, false
	}
	child := fs.vnodeFromResponse(parent.SB, resp)
	fs.dcache.Insert(parent.Ino, name, child)
	return child, true
}

// vnodeFromResponse decodes an OpLookup/OpMknod/OpSymlink reply into a
// fresh vnode: the kernel-internal convention is that the resolved
// inode number is carried in N and the vnode type in Data[0].
func (fs *VFS) vnodeFromResponse(sb *SuperBlock, resp msgport.IOResponse) *VNode {
	typ := defs.VREG
	if len(resp.Data) > 0 {
		typ = defs.VNodeType(resp.Data[0])
	}
	return NewVNode(sb, resp.N, typ)
}

// Mknod creates a device/regular/fifo node at path (spec.md's
// supplemented mknod operation). Validation order: the type must be
// valid, then the parent must exist and the leaf must not (EEXIST),
// only then is the message-port round trip attempted.
func (fs *VFS) Mknod(path ustr.Ustr, typ defs.VNodeType, rdev uint) defs.Err_t {
	if typ == defs.VNON {
		return -defs.EINVAL
	}
	ld, err := fs.Lookup(path, defs.LOOKUP_PARENT)
	if err != 0 {
		return err
	}
	defer ld.Parent.Put()
	if ld.Vn != nil {
		ld.Vn.Put()
		return -defs.EEXIST
	}

	resp, serr := ld.Parent.SB.Port.Send(&msgport.IORequest{Op: msgport.OpMknod, Path: ld.Name.String(), Arg: uint64(rdev)})
	if serr != 0 {
		return serr
	}
	if resp.Err != 0 {
		return resp.Err
	}
	child := fs.vnodeFromResponse(ld.Parent.SB, resp)
	child.Type = typ
	child.Rdev = rdev
	fs.dcache.Insert(ld.Parent.Ino, ld.Name, child)
	return 0
}

// Symlink creates a symbolic link at path pointing at target.
func (fs *VFS) Symlink(path, target ustr.Ustr) defs.Err_t {
	ld, err := fs.Lookup(path, defs.LOOKUP_PARENT)
	if err != 0 {
		return err
	}
	defer ld.Parent.Put()
	if ld.Vn != nil {
		ld.Vn.Put()
		return -defs.EEXIST
	}

	resp, serr := ld.Parent.SB.Port.Send(&msgport.IORequest{Op: msgport.OpSymlink, Path: ld.Name.String(), Data: []byte(target.String())})
	if serr != 0 {
		return serr
	}
	if resp.Err != 0 {
		return resp.Err
	}
	child := fs.vnodeFromResponse(ld.Parent.SB, resp)
	child.Type = defs.VLNK
	fs.dcache.Insert(ld.Parent.Ino, ld.Name, child)
	return 0
}

// Readlink returns the target path stored at path.
func (fs *VFS) Readlink(path ustr.Ustr) ([]byte, defs.Err_t) {
	ld, err := fs.Lookup(path, 0)
	if err != 0 {
		return nil, err
	}
	defer func() {
		if ld.Parent != nil {
			ld.Parent.Put()
		}
		ld.Vn.Put()
	}()
	if ld.Vn.Type != defs.VLNK {
		return nil, -defs.ENOLINK
	}
	resp, serr := ld.Vn.SB.Port.Send(&msgport.IORequest{Op: msgport.OpReadlink, Arg: uint64(ld.Vn.Ino)})
	if serr != 0 {
		return nil, serr
	}
	if resp.Err != 0 {
		return nil, resp.Err
	}
	return resp.Data, 0
}

// Link creates newPath as an additional name for the file at oldPath.
func (fs *VFS) Link(oldPath, newPath ustr.Ustr) defs.Err_t {
	target, err := fs.Lookup(oldPath, 0)
	if err != 0 {
		return err
	}
	defer func() {
		if target.Parent != nil {
			target.Parent.Put()
		}
		target.Vn.Put()
	}()

	ld, err2 := fs.Lookup(newPath, defs.LOOKUP_PARENT)
	if err2 != 0 {
		return err2
	}
	defer ld.Parent.Put()
	if ld.Vn != nil {
		ld.Vn.Put()
		return -defs.EEXIST
	}

	resp, serr := ld.Parent.SB.Port.Send(&msgport.IORequest{Op: msgport.OpLink, Path: ld.Name.String(), Arg: uint64(target.Vn.Ino)})
	if serr != 0 {
		return serr
	}
	if resp.Err != 0 {
		return resp.Err
	}
	target.Vn.Ref()
	fs.dcache.Insert(ld.Parent.Ino, ld.Name, target.Vn)
	return 0
}

// Unlink removes the name at path. The DName entry is invalidated and
// an attrib knote fires on the target whether or not this was its last
// link.
func (fs *VFS) Unlink(path ustr.Ustr) defs.Err_t {
	ld, err := fs.Lookup(path, defs.LOOKUP_PARENT|defs.LOOKUP_REMOVE)
	if err != 0 {
		return err
	}
	defer ld.Parent.Put()
	if ld.Vn == nil {
		return -defs.ENOENT
	}

	resp, serr := ld.Parent.SB.Port.Send(&msgport.IORequest{Op: msgport.OpUnlink, Path: ld.Name.String()})
	if serr != 0 {
		ld.Vn.Put()
		return serr
	}
	if resp.Err != 0 {
		ld.Vn.Put()
		return resp.Err
	}
	fs.dcache.Invalidate(ld.Parent.Ino, ld.Name)
	ld.Vn.knote(defs.NOTE_ATTRIB)
	ld.Vn.Put()
	return 0
}

// Truncate changes f's vnode size to sz, requiring the filp be opened
// for writing.
func (fs *VFS) Truncate(f *Filp, sz int64) defs.Err_t {
	f.mu.Lock()
	v := f.V
	perms := f.Perms
	f.mu.Unlock()
	if perms&defs.W_OK == 0 {
		return -defs.EACCES
	}
	resp, serr := v.SB.Port.Send(&msgport.IORequest{Op: msgport.OpTruncate, Arg: uint64(v.Ino), Offset: sz})
	if serr != 0 {
		return serr
	}
	if resp.Err != 0 {
		return resp.Err
	}
	v.setSize(sz)
	v.knote(defs.NOTE_ATTRIB | defs.NOTE_EXTEND)
	return 0
}

// Ioctl forwards a device control request to f's owning server.
func (fs *VFS) Ioctl(f *Filp, cmd uint, arg uint64) (uint64, defs.Err_t) {
	f.mu.Lock()
	v := f.V
	f.mu.Unlock()
	resp, serr := v.SB.Port.Send(&msgport.IORequest{Op: msgport.OpIoctl, Arg: arg, Offset: int64(cmd)})
	if serr != 0 {
		return 0, serr
	}
	return uint64(resp.N), resp.Err
}

// SysWrite is the cursor-based write syscall entry point (spec.md
// §4.8): it reads f's current offset, dispatches through writeAt, and
// on success advances the offset for regular files. Filp.Write, by
// contrast, implements the explicit-offset Fdops_i contract and never
// touches f.Offset itself.
func (fs *VFS) SysWrite(f *Filp, src fdops.Userio_i) (int, defs.Err_t) {
	f.mu.Lock()
	offset := f.Offset
	v := f.V
	f.mu.Unlock()

	n, err := fs.writeAt(v, src, offset)
	if err != 0 {
		return n, err
	}
	if v.Type == defs.VREG {
		f.mu.Lock()
		f.Offset += int64(n)
		f.mu.Unlock()
	}
	return n, 0
}

func (fs *VFS) writeAt(v *VNode, src fdops.Userio_i, offset int64) (int, defs.Err_t) {
	v.mu.Lock()
	typ := v.Type
	v.mu.Unlock()

	var n int
	var err defs.Err_t
	switch typ {
	case defs.VCHR:
		n, err = fs.writeToChar(v, src)
	case defs.VREG, defs.VBLK:
		n, err = fs.writeToCache(v, src, offset)
	case defs.VFIFO:
		n, err = fs.writeToPipe(v, src)
	default:
		return 0, -defs.EINVAL
	}
	if err == 0 && n > 0 {
		v.knote(defs.NOTE_WRITE)
	}
	return n, err
}

func (fs *VFS) writeToChar(v *VNode, src fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	resp, serr := v.SB.Port.Send(&msgport.IORequest{Op: msgport.OpWrite, Data: buf[:n]})
	if serr != 0 {
		return 0, serr
	}
	return resp.N, resp.Err
}

// writeToCache stages writes through the shared buffer cache, marking
// each touched block dirty for later write-back or eviction
// (spec.md §4.8's "write_to_cache"). VBLK vnodes take this same path;
// there is no separate block-device writer.
func (fs *VFS) writeToCache(v *VNode, src fdops.Userio_i, offset int64) (int, defs.Err_t) {
	total := src.Remain()
	buf := make([]byte, total)
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}

	written := 0
	for written < n {
		blockNo := int((offset + int64(written)) / int64(fs.bufs.blockSize))
		blockOff := int((offset + int64(written)) % int64(fs.bufs.blockSize))
		b := fs.bufs.Get(v.SB, blockNo)
		c := copy(b.Data[blockOff:], buf[written:n])
		b.MarkDirty()
		fs.bufs.Release(b)
		if c == 0 {
			break
		}
		written += c
	}

	if end := offset + int64(written); end > v.Size() {
		v.setSize(end)
	}
	return written, 0
}

func (fs *VFS) writeToPipe(v *VNode, src fdops.Userio_i) (int, defs.Err_t) {
	v.mu.Lock()
	if v.pipe == nil {
		v.pipe = newPipeState(fs.pages)
	}
	p := v.pipe
	v.mu.Unlock()
	return p.write(src)
}

// SysRead is the cursor-based read syscall entry point, symmetric with
// SysWrite.
func (fs *VFS) SysRead(f *Filp, dst fdops.Userio_i) (int, defs.Err_t) {
	f.mu.Lock()
	offset := f.Offset
	v := f.V
	f.mu.Unlock()

	n, err := fs.readAt(v, dst, offset)
	if err != 0 {
		return n, err
	}
	if v.Type == defs.VREG {
		f.mu.Lock()
		f.Offset += int64(n)
		f.mu.Unlock()
	}
	return n, 0
}

func (fs *VFS) readAt(v *VNode, dst fdops.Userio_i, offset int64) (int, defs.Err_t) {
	v.mu.Lock()
	typ := v.Type
	v.mu.Unlock()

	switch typ {
	case defs.VCHR:
		return fs.readFromChar(v, dst)
	case defs.VREG, defs.VBLK:
		return fs.readFromCache(v, dst, offset)
	case defs.VFIFO:
		return fs.readFromPipe(v, dst)
	}
	return 0, -defs.EINVAL
}

func (fs *VFS) readFromChar(v *VNode, dst fdops.Userio_i) (int, defs.Err_t) {
	resp, err := v.SB.Port.Send(&msgport.IORequest{Op: msgport.OpRead, Arg: uint64(dst.Remain())})
	if err != 0 {
		return 0, err
	}
	if resp.Err != 0 {
		return 0, resp.Err
	}
	n, werr := dst.Uiowrite(resp.Data)
	if werr != 0 {
		return 0, werr
	}
	return n, 0
}

func (fs *VFS) readFromCache(v *VNode, dst fdops.Userio_i, offset int64) (int, defs.Err_t) {
	sz := dst.Remain()
	if limit := v.Size(); offset+int64(sz) > limit {
		sz = int(limit - offset)
		if sz < 0 {
			sz = 0
		}
	}
	read := 0
	for read < sz {
		blockNo := int((offset + int64(read)) / int64(fs.bufs.blockSize))
		blockOff := int((offset + int64(read)) % int64(fs.bufs.blockSize))
		b := fs.bufs.Get(v.SB, blockNo)
		avail := fs.bufs.blockSize - blockOff
		want := sz - read
		if want > avail {
			want = avail
		}
		n, err := dst.Uiowrite(b.Data[blockOff : blockOff+want])
		fs.bufs.Release(b)
		if err != 0 {
			return read, err
		}
		read += n
		if n < want {
			break
		}
	}
	return read, 0
}

func (fs *VFS) readFromPipe(v *VNode, dst fdops.Userio_i) (int, defs.Err_t) {
	v.mu.Lock()
	if v.pipe == nil {
		v.pipe = newPipeState(fs.pages)
	}
	p := v.pipe
	v.mu.Unlock()
	return p.read(dst)
}

// Close drops one reference to f; on the last one it invalidates the
// vnode's DName cache entries and releases f's reference to its vnode.
// do_close's contract (spec.md §4.8): the fd slot is always freed by
// the caller regardless of this return value. Close sends nothing to
// the server and always returns 0.
func (f *Filp) Close() defs.Err_t {
	f.mu.Lock()
	f.refcnt--
	last := f.refcnt == 0
	v := f.V
	f.mu.Unlock()
	if !last {
		return 0
	}
	f.owner.dcache.InvalidateVNode(v)
	v.Put()
	return 0
}

// Fstat fills st from f's vnode.
func (f *Filp) Fstat(st *fdops.StatDest) defs.Err_t {
	f.mu.Lock()
	v := f.V
	f.mu.Unlock()
	d := *st
	d.Wdev(uint(v.SB.ID))
	d.Wino(uint(v.Ino))
	d.Wmode(v.Mode)
	d.Wsize(uint(v.Size()))
	d.Wrdev(v.Rdev)
	return 0
}

// Read implements the explicit-offset Fdops_i contract: it dispatches
// directly through readAt with the caller's offset and never touches
// f.Offset. Callers wanting cursor semantics use VFS.SysRead instead.
func (f *Filp) Read(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	f.mu.Lock()
	v := f.V
	f.mu.Unlock()
	return f.owner.readAt(v, dst, int64(offset))
}

// Write implements the explicit-offset Fdops_i contract; see Read.
func (f *Filp) Write(src fdops.Userio_i, offset int) (int, defs.Err_t) {
	f.mu.Lock()
	v := f.V
	f.mu.Unlock()
	return f.owner.writeAt(v, src, int64(offset))
}

// Reopen accounts for fd.Copyfd's shallow Fd_t duplication: the copy
// shares this same Filp (and therefore this same VNode) through its
// Fops interface value, so the only correction needed is an extra
// vnode reference to be released by the duplicate's own eventual
// Close().
func (f *Filp) Reopen() defs.Err_t {
	f.mu.Lock()
	f.refcnt++
	v := f.V
	f.mu.Unlock()
	v.Ref()
	return 0
}
