// Package klog wraps the standard logger with the level-tagged console
// prefixes the core uses at boot and during fault handling, matching the
// teacher's bare fmt.Printf/log.Fatal console style (mem/mem.go,
// kernel/chentry.go) rather than reaching for a structured logger --
// the boot console of a microkernel core has no log aggregator to
// structure output for.
package klog

import (
	"fmt"
	"log"
	"os"

	"cheviot-kernel-sub001/caller"
)

var std = log.New(os.Stderr, "", 0)

// Kern logs a kernel-subsystem message ("KERN: ..."), the register the
// teacher's mem/vm/proc init paths print boot progress in.
func Kern(format string, args ...interface{}) {
	std.Printf("KERN: "+format, args...)
}

// Dpc logs a deferred-procedure-call dispatch message.
func Dpc(format string, args ...interface{}) {
	std.Printf("DPC: "+format, args...)
}

// Vfs logs a VFS-layer message.
func Vfs(format string, args ...interface{}) {
	std.Printf("VFS: "+format, args...)
}

// dist suppresses repeated reports of the same panic call chain, so a
// recurring fault (e.g. a misbehaving user-mode ISR server) doesn't
// flood the console.
var dist = &caller.Distinct_t{Enabled: true}

// KernelPanic logs a formatted message with a call-stack dump and halts
// the calling goroutine by panicking. Distinct call chains are always
// reported; a call chain seen before is collapsed to a one-line notice.
func KernelPanic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if fresh, stack := dist.Distinct(); fresh {
		std.Printf("PANIC: %s\n%s", msg, stack)
	} else {
		std.Printf("PANIC (repeat): %s\n", msg)
	}
	panic(msg)
}
