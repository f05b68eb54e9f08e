package defs

// Sysconf names, grounded on original_source/proc/sysconf.c. The syscall
// glue that reads these from user space is out of the core's scope
// (spec.md §1); Sysconf itself is the boundary-crossing accessor the core
// must provide a correct answer for.
type SysconfName int

const (
	SC_PAGESIZE SysconfName = iota
	SC_CLK_TCK
	SC_OPEN_MAX
	SC_PRIO_MIN_OTHER
	SC_PRIO_MAX_OTHER
	SC_PRIO_MIN_RT
	SC_PRIO_MAX_RT
	SC_NPROCESSORS_CONF
)

/// Sysconf returns the value of the named system configuration parameter,
/// or -ENOSYS if name is not recognized (spec.md §6 error table).
func Sysconf(name SysconfName, pageSize int, openMax int) (int, Err_t) {
	switch name {
	case SC_PAGESIZE:
		return pageSize, 0
	case SC_CLK_TCK:
		return JiffiesPerSecond, 0
	case SC_OPEN_MAX:
		return openMax, 0
	case SC_PRIO_MIN_OTHER:
		return OtherPrioMin, 0
	case SC_PRIO_MAX_OTHER:
		return OtherPrioMax, 0
	case SC_PRIO_MIN_RT:
		return RealtimePrioMin, 0
	case SC_PRIO_MAX_RT:
		return RealtimePrioMax, 0
	case SC_NPROCESSORS_CONF:
		// single-CPU dispatch is assumed (spec.md §1 Non-goals)
		return 1, 0
	default:
		return 0, -ENOSYS
	}
}

/// JiffiesPerSecond is the timing wheel's tick rate (spec.md §4.6, Glossary).
const JiffiesPerSecond = 100
