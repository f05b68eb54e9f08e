// Package stat serializes VNode metadata into the fixed-layout structure
// a stat(2)-style syscall copies out to user space, adapted from the
// teacher's stat package.
package stat

import "unsafe"

// Stat_t mirrors the on-wire stat structure: device, inode, mode, size,
// rdev, owning uid, block count, and mtime. Fields are private so every
// write goes through an accessor that documents its unit, matching the
// teacher's convention in fs/super.go and stat/stat.go.
type Stat_t struct {
	dev    uint
	ino    uint
	mode   uint
	size   uint
	rdev   uint
	uid    uint
	blocks uint
	mSec   uint
	mNsec  uint
}

func (st *Stat_t) Wdev(v uint)    { st.dev = v }
func (st *Stat_t) Wino(v uint)    { st.ino = v }
func (st *Stat_t) Wmode(v uint)   { st.mode = v }
func (st *Stat_t) Wsize(v uint)   { st.size = v }
func (st *Stat_t) Wrdev(v uint)   { st.rdev = v }
func (st *Stat_t) Wuid(v uint)    { st.uid = v }
func (st *Stat_t) Wblocks(v uint) { st.blocks = v }
func (st *Stat_t) Wmtime(sec, nsec uint) {
	st.mSec = sec
	st.mNsec = nsec
}

func (st *Stat_t) Dev() uint    { return st.dev }
func (st *Stat_t) Ino() uint    { return st.ino }
func (st *Stat_t) Mode() uint   { return st.mode }
func (st *Stat_t) Size() uint   { return st.size }
func (st *Stat_t) Rdev() uint   { return st.rdev }
func (st *Stat_t) Uid() uint    { return st.uid }
func (st *Stat_t) Blocks() uint { return st.blocks }

// Bytes exposes the structure's raw memory for a direct copy to a
// message-port reply buffer, the same unsafe-reinterpretation approach
// the teacher's Stat_t.Bytes uses.
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]uint8)(unsafe.Pointer(&st.dev))
	return sl[:]
}
