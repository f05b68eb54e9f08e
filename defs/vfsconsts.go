package defs

/// VNodeType classifies what a vnode dispatches to on sys_write and close
/// (spec.md §4.8's write-path and close-semantics dispatch table).
type VNodeType int

const (
	VNON VNodeType = iota
	VREG           /// regular file, backed by the buffer cache
	VCHR           /// character device, synchronous message to its server
	VBLK           /// block device
	VFIFO          /// named pipe
	VDIR
	VLNK
)

/// Access-check bits for sys_write's W_OK gate and friends.
const (
	R_OK = 1 << iota
	W_OK
	X_OK
)

/// lookup() flags (spec.md §4.8).
const (
	LOOKUP_PARENT = 1 << iota /// return parent and last component even if the leaf is missing
	LOOKUP_REMOVE             /// passed by unlink; Lookup does not consult it and takes no extra locks
)

/// Knote event bits fired by write/truncate/unlink (spec.md §4.8's knote
/// integration).
type NoteFilter uint32

const (
	NOTE_WRITE NoteFilter = 1 << iota
	NOTE_ATTRIB
	NOTE_EXTEND
)

/// NR_DNAME bounds the DName cache's capacity (spec.md §4.8 Glossary).
const NR_DNAME = 4096
