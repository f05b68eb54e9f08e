// Package circbuf implements a single-page circular byte buffer, the
// backing store vfs uses for VFIFO pipe vnodes (SPEC_FULL.md DOMAIN
// STACK). Adapted
// from the teacher's _examples/Oichkatzelesfrettschen-biscuit/biscuit/src/circbuf/circbuf.go: same head/tail
// wraparound arithmetic and lazy page allocation, renamed to this
// repo's exported-method-naming convention and retargeted at
// mem.Page_i/fdops.Userio_i instead of the teacher's x86 mem package.
package circbuf

import (
	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/fdops"
	"cheviot-kernel-sub001/mem"
)

// Circbuf is a single-page circular buffer. It is not safe for
// concurrent use and references no global state; callers serialize
// access themselves (vfs does this via its pipe state's mutex).
type Circbuf struct {
	pages mem.Page_i
	buf   []uint8
	bufsz int
	head  int
	tail  int
	ppg   mem.Pa_t
}

// Bufsz returns the configured capacity in bytes.
func (cb *Circbuf) Bufsz() int { return cb.bufsz }

// Init lazily allocates a backing page when required; size must not
// exceed one page.
func (cb *Circbuf) Init(sz int, pages mem.Page_i) defs.Err_t {
	if sz <= 0 || sz > mem.PGSIZE {
		panic("bad circbuf size")
	}
	cb.pages = pages
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
	return 0
}

func (cb *Circbuf) initPhys(v []uint8, ppg mem.Pa_t, pages mem.Page_i) {
	cb.pages = pages
	cb.pages.Refup(ppg)
	cb.ppg = ppg
	cb.buf = v
	cb.bufsz = len(v)
	cb.head, cb.tail = 0, 0
}

// Release drops the reference to the backing page, if any.
func (cb *Circbuf) Release() {
	if cb.buf == nil {
		return
	}
	cb.pages.Refdown(cb.ppg)
	cb.ppg = 0
	cb.buf = nil
	cb.head, cb.tail = 0, 0
}

func (cb *Circbuf) ensure() defs.Err_t {
	if cb.buf != nil {
		return 0
	}
	if cb.bufsz == 0 {
		panic("circbuf not initialized")
	}
	pg, ppg, ok := cb.pages.RefpgNewNozero()
	if !ok {
		return -defs.ENOMEM
	}
	bpg := mem.Pg2Bytes(pg)[:cb.bufsz]
	cb.initPhys(bpg, ppg, cb.pages)
	return 0
}

// Full reports whether the buffer can accept no more data.
func (cb *Circbuf) Full() bool { return cb.head-cb.tail == cb.bufsz }

// Empty reports whether the buffer holds no data.
func (cb *Circbuf) Empty() bool { return cb.head == cb.tail }

// Left returns the remaining capacity in bytes.
func (cb *Circbuf) Left() int { return cb.bufsz - (cb.head - cb.tail) }

// Used returns the number of bytes currently buffered.
func (cb *Circbuf) Used() int { return cb.head - cb.tail }

// Copyin reads from src into the circular buffer, returning the bytes
// written.
func (cb *Circbuf) Copyin(src fdops.Userio_i) (int, defs.Err_t) {
	if err := cb.ensure(); err != 0 {
		return 0, err
	}
	if cb.Full() {
		return 0, 0
	}
	hi := cb.head % cb.bufsz
	ti := cb.tail % cb.bufsz
	c := 0
	if ti <= hi {
		dst := cb.buf[hi:]
		wrote, err := src.Uioread(dst)
		if err != 0 {
			return 0, err
		}
		if wrote != len(dst) {
			cb.head += wrote
			return wrote, 0
		}
		c += wrote
		hi = (cb.head + wrote) % cb.bufsz
	}
	if hi > ti {
		panic("circbuf: inconsistent head/tail")
	}
	dst := cb.buf[hi:ti]
	wrote, err := src.Uioread(dst)
	c += wrote
	if err != 0 {
		return c, err
	}
	cb.head += c
	return c, 0
}

// Copyout writes the full buffer contents to dst.
func (cb *Circbuf) Copyout(dst fdops.Userio_i) (int, defs.Err_t) {
	return cb.CopyoutN(dst, 0)
}

// CopyoutN writes up to max bytes of the buffer to dst (max == 0 means
// unbounded).
func (cb *Circbuf) CopyoutN(dst fdops.Userio_i, max int) (int, defs.Err_t) {
	if err := cb.ensure(); err != 0 {
		return 0, err
	}
	if cb.Empty() {
		return 0, 0
	}
	hi := cb.head % cb.bufsz
	ti := cb.tail % cb.bufsz
	c := 0
	if hi <= ti {
		src := cb.buf[ti:]
		if max != 0 && max < len(src) {
			src = src[:max]
		}
		wrote, err := dst.Uiowrite(src)
		if err != 0 {
			return 0, err
		}
		if wrote != len(src) || wrote == max {
			cb.tail += wrote
			return wrote, 0
		}
		c += wrote
		if max != 0 {
			max -= c
		}
		ti = (cb.tail + wrote) % cb.bufsz
	}
	if ti > hi {
		panic("circbuf: inconsistent head/tail")
	}
	src := cb.buf[ti:hi]
	if max != 0 && max < len(src) {
		src = src[:max]
	}
	wrote, err := dst.Uiowrite(src)
	if err != 0 {
		return 0, err
	}
	c += wrote
	cb.tail += c
	return c, 0
}

// Advhead advances the head index, exposing sz more previously-written
// bytes for reading.
func (cb *Circbuf) Advhead(sz int) {
	if cb.Full() || cb.Left() < sz {
		panic("circbuf: advancing a full buffer")
	}
	cb.head += sz
}

// Advtail advances the tail index after sz bytes have been consumed.
func (cb *Circbuf) Advtail(sz int) {
	if sz != 0 && (cb.Empty() || cb.Used() < sz) {
		panic("circbuf: advancing an empty buffer")
	}
	cb.tail += sz
}
