// Package defs holds the types and constants shared by every subsystem of
// the core: the error taxonomy, thread/process identifiers, privilege
// bitmaps, device numbers, and the boot-time configuration block. It
// imports no other package of the core and depends on nothing but the
// standard library, mirroring the role the teacher's defs package plays for biscuit.
package defs

/// Err_t is a kernel error code: 0 on success, a negative errno otherwise.
/// Errors are values throughout the core -- never exceptions -- per the
/// propagation policy in spec.md §7.
type Err_t int

// Error taxonomy (spec.md §7). Stored as positive magnitudes; callers
// return the negated value, e.g. `return -EINVAL`.
const (
	EPERM     Err_t = 1  /// operation not permitted
	ENOENT    Err_t = 2  /// no such file or directory
	EIO       Err_t = 5  /// I/O error
	EAGAIN    Err_t = 11 /// resource temporarily unavailable; try again
	ENOMEM    Err_t = 12 /// out of memory
	EACCES    Err_t = 13 /// permission denied
	EFAULT    Err_t = 14 /// bad address
	EEXIST    Err_t = 17 /// file exists
	EINVAL    Err_t = 22 /// invalid argument
	ENOSYS    Err_t = 38 /// function not implemented
	ENOTSUP   Err_t = 95 /// operation not supported
	ETIMEDOUT Err_t = 110 /// operation timed out
	EINTR     Err_t = 4   /// interrupted system call
	E2BIG     Err_t = 7   /// argument list too long
	ENOLINK   Err_t = 67  /// link has been severed (bad symlink target)
	ENAMETOOLONG Err_t = 36 /// path component too long
	ENOHEAP   Err_t = 150 /// kernel heap/resource budget exhausted (res package equivalent)
	EBADF     Err_t = 9   /// bad file descriptor
	EMFILE    Err_t = 24  /// too many open files
	ECHILD    Err_t = 10  /// no child processes
	ESRCH     Err_t = 3   /// no such process or thread
)

/// Error implements the error interface so Err_t can be used with %v/%w
/// where convenient (tests, CLI tooling); kernel-internal code never relies
/// on it and always compares/returns the raw Err_t.
func (e Err_t) Error() string {
	if e == 0 {
		return "success"
	}
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return "unknown error"
}

var errnoNames = map[Err_t]string{
	EPERM:        "operation not permitted",
	ENOENT:       "no such file or directory",
	EIO:          "I/O error",
	EAGAIN:       "resource temporarily unavailable",
	ENOMEM:       "out of memory",
	EACCES:       "permission denied",
	EFAULT:       "bad address",
	EEXIST:       "file exists",
	EINVAL:       "invalid argument",
	ENOSYS:       "function not implemented",
	ENOTSUP:      "operation not supported",
	ETIMEDOUT:    "timed out",
	EINTR:        "interrupted",
	E2BIG:        "argument list too long",
	ENOLINK:      "link severed",
	ENAMETOOLONG: "name too long",
	ENOHEAP:      "kernel resource budget exhausted",
	EBADF:        "bad file descriptor",
	EMFILE:       "too many open files",
	ECHILD:       "no child processes",
	ESRCH:        "no such process or thread",
}
