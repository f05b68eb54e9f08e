// Package fd implements the per-process file-descriptor table entry and
// current-working-directory tracking, adapted from the teacher's fd
// package.
package fd

import (
	"sync"

	"cheviot-kernel-sub001/bpath"
	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/fdops"
	"cheviot-kernel-sub001/ustr"
)

// File descriptor permission bits.
const (
	FD_READ    = 0x1
	FD_WRITE   = 0x2
	FD_CLOEXEC = 0x4
)

// Fd_t is one entry of a process's open-file table.
type Fd_t struct {
	Fops  fdops.Fdops_i // pointer-receiver interface value, not a copy
	Perms int
}

// Copyfd duplicates fd by reopening its underlying Fdops_i, the
// semantics dup/dup2/fork need (a shared underlying object, an
// independent Fd_t).
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	if err := nfd.Fops.Reopen(); err != 0 {
		return nil, err
	}
	return nfd, 0
}

// ClosePanic closes fd and panics if Close fails, for call sites where
// failure would indicate a prior double-close bug rather than a runtime
// condition.
func ClosePanic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("fd close must succeed")
	}
}

// Cwd_t tracks a process's current working directory: the open
// descriptor on that directory plus its canonical path string, so
// relative lookups don't need a full path walk from "/" each time.
type Cwd_t struct {
	sync.Mutex // serializes concurrent chdir calls
	Fd         *Fd_t
	Path       ustr.Ustr
}

// Canonicalpath resolves p (absolute or relative) against cwd, returning
// a dot-free absolute path.
func (cwd *Cwd_t) Canonicalpath(p ustr.Ustr) (ustr.Ustr, defs.Err_t) {
	cwd.Lock()
	base := cwd.Path
	cwd.Unlock()
	return bpath.Canonicalize(base, p)
}

// MkRootCwd builds a Cwd_t rooted at "/" backed by fd.
func MkRootCwd(fd *Fd_t) *Cwd_t {
	return &Cwd_t{Fd: fd, Path: ustr.MkUstrRoot()}
}

// Chdir updates the working directory to newPath (already canonical)
// backed by newFd, closing the previous directory descriptor.
func (cwd *Cwd_t) Chdir(newFd *Fd_t, newPath ustr.Ustr) {
	cwd.Lock()
	defer cwd.Unlock()
	if cwd.Fd != nil {
		ClosePanic(cwd.Fd)
	}
	cwd.Fd = newFd
	cwd.Path = newPath
}
