package vfs

import "cheviot-kernel-sub001/defs"

// fakeUioSrc is a minimal read-only fdops.Userio_i, standing in for a
// real user-space source buffer in tests.
type fakeUioSrc struct {
	data []byte
	off  int
}

func newFakeUioSrc(data []byte) *fakeUioSrc {
	return &fakeUioSrc{data: data}
}

func (u *fakeUioSrc) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.data[u.off:])
	u.off += n
	return n, 0
}

func (u *fakeUioSrc) Uiowrite(src []uint8) (int, defs.Err_t) {
	panic("fakeUioSrc is not a write destination")
}

func (u *fakeUioSrc) Remain() int { return len(u.data) - u.off }
func (u *fakeUioSrc) Totalsz() int { return len(u.data) }

// fakeUioDst is a minimal write-only fdops.Userio_i bounded to cap
// bytes, standing in for a real user-space destination buffer.
type fakeUioDst struct {
	cap  int
	data []byte
}

func newFakeUioDst(cap int) *fakeUioDst {
	return &fakeUioDst{cap: cap}
}

func (u *fakeUioDst) Uioread(dst []uint8) (int, defs.Err_t) {
	panic("fakeUioDst is not a read source")
}

func (u *fakeUioDst) Uiowrite(src []uint8) (int, defs.Err_t) {
	room := u.cap - len(u.data)
	if room < len(src) {
		src = src[:room]
	}
	u.data = append(u.data, src...)
	return len(src), 0
}

func (u *fakeUioDst) Remain() int  { return u.cap - len(u.data) }
func (u *fakeUioDst) Totalsz() int { return u.cap }
