// Package fdops declares the descriptor-operations and user-I/O
// interfaces that fd.Fd_t, circbuf, vfs, and vm wire together, adapted
// from the teacher's fdops package (kept as a pure-interface seam so
// vfs does not import vm, and vm does not import vfs).
package fdops

import "cheviot-kernel-sub001/defs"

// Userio_i abstracts a source or sink for bytes crossing the user/kernel
// boundary: a user-space buffer, a scatter/gather iovec, or an
// in-kernel stand-in used when the kernel itself is the "user" of an
// operation (spec.md §4.2). This package declares only the interface.
type Userio_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Remain() int
	Totalsz() int
}

// Fdops_i is the operation set every Filp variant (VNode, message port,
// kqueue) implements (spec.md §3 Filp, §4.8).
type Fdops_i interface {
	Close() defs.Err_t
	Fstat(st *StatDest) defs.Err_t
	Read(dst Userio_i, offset int) (int, defs.Err_t)
	Write(src Userio_i, offset int) (int, defs.Err_t)
	Reopen() defs.Err_t
}

// StatDest is the write-only view of stat.Stat_t that Fdops_i.Fstat
// fills in; declared here rather than importing the stat package
// directly, keeping fdops a leaf that imports only defs.
type StatDest interface {
	Wdev(uint)
	Wino(uint)
	Wmode(uint)
	Wsize(uint)
	Wrdev(uint)
}
