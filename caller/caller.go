// Package caller provides call-stack diagnostics for kernel panic dumps
// and duplicate-bug-report suppression, adapted from the teacher's caller
// package.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

// Dump returns the call stack starting at the given skip depth as a
// string, one frame per line, the style
// klog.KernelPanic uses to annotate a panic before halting.
func Dump(skip int) string {
	i := skip
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	return s
}

// Distinct_t tracks whether a particular call chain has already been
// reported, so the interrupt and scheduler subsystems can log a
// recurring condition (e.g. a mistimed DPC reschedule) once instead of
// flooding the console on every occurrence.
type Distinct_t struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
	Whitel  map[string]bool
}

func (dc *Distinct_t) pchash(pcs []uintptr) uintptr {
	if len(pcs) == 0 {
		panic("empty call stack")
	}
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

// Len returns the number of distinct call chains recorded so far.
func (dc *Distinct_t) Len() int {
	dc.Lock()
	defer dc.Unlock()
	return len(dc.did)
}

// Distinct reports whether the current call chain has not been seen
// before; when true it also returns a formatted stack trace.
func (dc *Distinct_t) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}
	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}

	var pcs []uintptr
	for sz, got := 30, 30; got >= sz; sz *= 2 {
		pcs = make([]uintptr, sz)
		got = runtime.Callers(3, pcs)
		if got == 0 {
			panic("runtime.Callers returned nothing")
		}
		pcs = pcs[:got]
	}
	h := dc.pchash(pcs)
	if dc.did[h] {
		return false, ""
	}
	dc.did[h] = true

	frames := runtime.CallersFrames(pcs)
	fs := ""
	for {
		fr, more := frames.Next()
		if dc.Whitel[fr.Function] {
			return false, ""
		}
		if fs == "" {
			fs = fmt.Sprintf("%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		} else {
			fs += fmt.Sprintf("\t%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, fs
}
