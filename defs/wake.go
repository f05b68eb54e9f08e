package defs

/// WakeReason_t is a bitmask of causes that can interrupt a sleeping
/// thread (spec.md §4.3 TaskSleepInterruptible, §5 Cancellation).
type WakeReason_t uint32

const (
	WAKE_NORMAL WakeReason_t = 1 << iota /// TaskWakeup/TaskWakeupSpecific
	WAKE_SIGNAL                         /// a pending signal
	WAKE_EVENT                          /// an inbound ISR/message event
	WAKE_CANCEL                         /// an explicit thread cancel
	WAKE_TIMER                          /// the sleep's own timeout fired
)

/// WakeAny is a mask matching every interruption cause; used by callers
/// that want TaskSleepInterruptible to behave like a plain interruptible
/// wait on all four asynchronous causes.
const WakeAny = WAKE_SIGNAL | WAKE_EVENT | WAKE_CANCEL | WAKE_TIMER
