// Package hal declares the board collaborator the core depends on but
// never implements (spec.md §1 Non-goals, §6 HAL contract): MMIO
// register access, memory/instruction barriers, the RPi mailbox, the
// context-switch primitive, and TLB/cache maintenance. Concrete
// BCM2835/BCM2711 register code lives outside this repo; callers (mem,
// vm, sched, intr, ktimer) take a HAL value and never reach past it.
package hal

import "cheviot-kernel-sub001/defs"

// Reg identifies a memory-mapped register by its offset from the
// peripheral base the HAL was configured with.
type Reg uintptr

// ASID is an address-space identifier tagging TLB entries, letting the
// HAL invalidate one process's mappings without a full flush.
type ASID uint16

// ContextFrame is the opaque saved register block a HAL implementation
// knows how to save into and restore from; the core only ever passes
// pointers to it between Reschedule and SwitchContext.
type ContextFrame struct {
	_ [0]byte
}

// HAL is the board collaborator interface consumed by the core,
// matching spec.md §6's contract one method per bullet.
type HAL interface {
	// MMIORead/MMIOWrite access a peripheral register with the
	// ordering the hardware requires; callers never assume posted
	// writes complete without an explicit barrier.
	MMIORead(reg Reg) uint32
	MMIOWrite(reg Reg, val uint32)

	// DSB/ISB are the data/instruction synchronization barriers the
	// core must issue around page-table edits and self-modifying
	// bootstrap code.
	DSB()
	ISB()

	// MboxWrite/MboxRead drive the RPi mailbox used for rpi_mailbox
	// property-tag requests (spec.md §6 syscall table).
	MboxWrite(channel uint8, pa uintptr)
	MboxRead(channel uint8) uintptr

	// SwitchContext restores next's saved register frame after saving
	// prev's, the primitive sched.Reschedule calls when the chosen
	// thread differs from the running one.
	SwitchContext(prev, next *ContextFrame)

	// TLBInvalidate and CacheClean give the vm package a way to drop
	// stale translations and flush dirty cache lines after a pmap
	// edit, keyed by virtual address range and ASID.
	TLBInvalidate(asid ASID, va uintptr, npages int)
	CacheClean(va uintptr, npages int)

	// ReadClock returns the current free-running counter value the
	// ktimer package programs the next compare against.
	ReadClock() uint64

	// PendingIRQs returns a bitmap of asserted interrupt lines, one bit
	// per IRQ number, read from the interrupt controller's pending
	// registers (spec.md §4.5's top half, bit 0 is TimerIRQ).
	PendingIRQs() uint64

	// MaskIRQ/UnmaskIRQ program the interrupt controller directly; intr
	// layers its own mask-count on top, calling these only at the 0->1
	// and 1->0 edges of that count.
	MaskIRQ(irq uint32)
	UnmaskIRQ(irq uint32)

	// Shutdown powers off or resets the board per the "how" argument
	// of shutdown_os (spec.md §6 syscall table).
	Shutdown(how ShutdownHow) defs.Err_t
}

// ShutdownHow selects shutdown_os's behavior.
type ShutdownHow int

const (
	ShutdownPowerOff ShutdownHow = iota
	ShutdownReboot
)
