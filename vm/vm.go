// Package vm implements the address-space (Pmap) abstraction: per-process
// virtual-to-physical mappings, reverse PTE lists for unmap/invalidation,
// and page-fault classification/resolution (spec.md §4.2). The actual
// page-table walk and TLB/cache maintenance are HAL concerns (spec.md
// §6); this package tracks mappings in its own structures and calls the
// HAL only to invalidate TLB entries on Remove, the same split the teacher's
// Vm_t/Vmregion_t (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/vm/as.go) makes between address-space
// bookkeeping and the x86-specific Pmap_t walk -- generalized here to an
// id-based reverse-PTE list per spec.md §9's Open Question #1 instead of
// the teacher's packed-PTE-pointer scheme.
package vm

import (
	"sync"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/hal"
	"cheviot-kernel-sub001/klog"
	"cheviot-kernel-sub001/mem"
)

// Prot is a bitmask of the protection bits a mapping carries.
type Prot uint8

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
)

// MapFlag controls pmap_enter's conflict handling.
type MapFlag uint8

const (
	MapReplace MapFlag = 1 << iota // overwrite an existing mapping instead of EEXIST
	MapCOW                         // mapping is copy-on-write
	MapShared                      // mapping is a shared (non-COW) file/anon mapping
)

// FaultKind classifies a page fault per spec.md §4.2.
type FaultKind int

const (
	FaultNotPresent FaultKind = iota
	FaultProtection
	FaultAlign
	FaultBus
)

// PmapVPTE is one reverse-mapping descriptor: "virtual address va in
// address space AS maps this frame". Appended to a Pageframe's list by
// pmap_enter, walked and removed by pmap_remove; the core's id/generation
// handle style (spec.md §9) applied to what the teacher represents as an
// intrusive pointer-linked list entry.
type PmapVPTE struct {
	AS    *Pmap
	VA    uintptr
	Prot  Prot
	Flags MapFlag
}

// reverseList is a physical frame's set of PmapVPTEs, keyed by physical
// address; a single global map plays the role the teacher attaches
// per-Physpg_t, since mem.Physmem_t's frame table has no room reserved
// for it (this keeps mem.Pa_t-only buddy bookkeeping free of a vm-layer
// concern).
type reverseList struct {
	mu      sync.Mutex
	entries map[mem.Pa_t][]*PmapVPTE
}

func newReverseList() *reverseList {
	return &reverseList{entries: make(map[mem.Pa_t][]*PmapVPTE)}
}

func (rl *reverseList) add(pa mem.Pa_t, e *PmapVPTE) {
	rl.mu.Lock()
	rl.entries[pa] = append(rl.entries[pa], e)
	rl.mu.Unlock()
}

func (rl *reverseList) removeWhere(pa mem.Pa_t, as *Pmap, va uintptr) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	list := rl.entries[pa]
	for i, e := range list {
		if e.AS == as && e.VA == va {
			list[i] = list[len(list)-1]
			rl.entries[pa] = list[:len(list)-1]
			return
		}
	}
}

func (rl *reverseList) forEach(pa mem.Pa_t, f func(*PmapVPTE)) {
	rl.mu.Lock()
	list := append([]*PmapVPTE(nil), rl.entries[pa]...)
	rl.mu.Unlock()
	for _, e := range list {
		f(e)
	}
}

// mapping is one user-visible translation tracked by a Pmap, keyed by
// the faulting/target virtual address rounded down to a page boundary.
type mapping struct {
	pa    mem.Pa_t
	prot  Prot
	flags MapFlag
}

// Pmap is one process's address space: the user-space translations
// entered through Enter and EnterAnon. It never walks or programs a
// hardware page table -- Enter only records the mapping, Remove asks the
// HAL for a TLB invalidate, and pmap_fault resolves against this
// package's own bookkeeping.
type Pmap struct {
	mu       sync.Mutex
	asid     hal.ASID
	h        hal.HAL
	phys     *mem.Physmem_t
	rev      *reverseList
	mappings map[uintptr]*mapping

	// anonZero records, for demand-zero regions not yet backed by a
	// frame, that a fault at this VA should allocate-and-zero rather
	// than fail; file-backed regions are populated by the VFS layer
	// calling EnterFile before any fault can occur.
	anonZero map[uintptr]bool
}

var nextASID hal.ASID = 1

// globalRev holds every frame's reverse-PTE list across all address
// spaces, so a shared (COW-forked) frame's list reflects every mapper,
// not just the Pmap that happened to allocate it.
var globalRev = newReverseList()

// PmapCreate allocates a new, empty address space sharing no user
// mappings with any other Pmap. It installs no kernel mappings, and no
// function of this package adds them.
func PmapCreate(h hal.HAL, phys *mem.Physmem_t) (*Pmap, defs.Err_t) {
	p := &Pmap{
		asid:     nextASID,
		h:        h,
		phys:     phys,
		rev:      globalRev,
		mappings: make(map[uintptr]*mapping),
		anonZero: make(map[uintptr]bool),
	}
	nextASID++
	return p, 0
}

// ASID returns the address space's TLB tag.
func (p *Pmap) ASID() hal.ASID { return p.asid }

func pageRound(va uintptr) uintptr {
	return va &^ uintptr(mem.PGSIZE-1)
}

// Enter installs a va->pa mapping with the given protection, appending
// a PmapVPTE to pa's reverse list (spec.md §4.2 pmap_enter). Without
// MapReplace, a conflicting existing mapping returns EEXIST.
func (p *Pmap) Enter(va uintptr, pa mem.Pa_t, prot Prot, flags MapFlag) defs.Err_t {
	va = pageRound(va)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.mappings[va]; exists && flags&MapReplace == 0 {
		return -defs.EEXIST
	}
	if old, exists := p.mappings[va]; exists && old != nil {
		p.rev.removeWhere(old.pa, p, va)
	}
	p.mappings[va] = &mapping{pa: pa, prot: prot, flags: flags}
	delete(p.anonZero, va)
	p.rev.add(pa, &PmapVPTE{AS: p, VA: va, Prot: prot, Flags: flags})
	return 0
}

// EnterAnon marks va as demand-zero: the first fault allocates a fresh
// zeroed frame and maps it, rather than failing with NOT_PRESENT.
func (p *Pmap) EnterAnon(va uintptr, prot Prot) {
	va = pageRound(va)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.anonZero[va] = true
	p.mappings[va] = nil
	_ = prot
}

// Remove unmaps [va, va+length), removing each page's PmapVPTE from its
// frame's reverse list and invalidating the TLB range (spec.md §4.2
// pmap_remove).
func (p *Pmap) Remove(va uintptr, length int) defs.Err_t {
	start := pageRound(va)
	end := pageRound(va + uintptr(length) + uintptr(mem.PGSIZE-1))
	p.mu.Lock()
	npages := 0
	for a := start; a < end; a += uintptr(mem.PGSIZE) {
		if m, ok := p.mappings[a]; ok {
			if m != nil {
				p.rev.removeWhere(m.pa, p, a)
			}
			delete(p.mappings, a)
			delete(p.anonZero, a)
			npages++
		}
	}
	p.mu.Unlock()
	if p.h != nil && npages > 0 {
		p.h.TLBInvalidate(p.asid, start, npages)
	}
	return 0
}

// Lookup returns the physical page currently backing va, if any.
func (p *Pmap) Lookup(va uintptr) (mem.Pa_t, Prot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.mappings[pageRound(va)]
	if m == nil {
		return 0, 0, false
	}
	return m.pa, m.prot, true
}

// Fault resolves a page fault at va of the given kind, per spec.md
// §4.2 pmap_fault. A NOT_PRESENT fault on a demand-zero region
// (EnterAnon) allocates a frame and maps it read/write. Copy-on-write
// is not resolved: the MapCOW flag is recorded on a mapping but never
// consulted here. Every other fault kind (and a NOT_PRESENT fault with
// no backing region) returns EFAULT, a true fault the caller must
// deliver SIGSEGV for.
func (p *Pmap) Fault(va uintptr, kind FaultKind) defs.Err_t {
	va = pageRound(va)
	if kind != FaultNotPresent {
		return -defs.EFAULT
	}
	p.mu.Lock()
	_, mapped := p.mappings[va]
	demandZero := p.anonZero[va]
	p.mu.Unlock()
	if mapped && !demandZero {
		// Already resolved by a racing fault on another thread.
		return 0
	}
	if !demandZero {
		return -defs.EFAULT
	}
	if p.phys == nil {
		klog.KernelPanic("vm: Fault on anon page with no allocator attached")
	}
	_, pa, ok := p.phys.RefpgNew()
	if !ok {
		return -defs.ENOMEM
	}
	return p.Enter(va, pa, ProtRead|ProtWrite, MapReplace)
}

// Free releases every user mapping in the address space, dropping the
// allocator's reference on each backing frame -- Uvmfree's role in the
// teacher (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/vm/as.go), called when a process's last thread
// exits.
func (p *Pmap) Free() {
	p.mu.Lock()
	mappings := p.mappings
	p.mappings = make(map[uintptr]*mapping)
	p.anonZero = make(map[uintptr]bool)
	p.mu.Unlock()

	for va, m := range mappings {
		if m == nil {
			continue
		}
		p.rev.removeWhere(m.pa, p, va)
		if p.phys != nil {
			p.phys.Refdown(m.pa)
		}
	}
}
