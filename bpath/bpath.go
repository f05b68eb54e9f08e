// Package bpath canonicalizes filesystem paths against a current-working
// directory, resolving "." and ".." components without touching the VFS.
// Generalized out of the teacher's Cwd_t-bound path walker so callers that
// don't carry a full file-descriptor table (proc, mount handling) can use
// it too.
package bpath

import (
	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/ustr"
)

// Canonicalize resolves path against cwd, producing an absolute,
// dot-free path. A leading '/' in path makes it absolute on its own;
// otherwise it is resolved relative to cwd, which must already be
// absolute and canonical.
func Canonicalize(cwd ustr.Ustr, path ustr.Ustr) (ustr.Ustr, defs.Err_t) {
	if len(path) == 0 {
		return nil, -defs.ENOENT
	}

	var stack []ustr.Ustr
	rest := path
	if path.IsAbsolute() {
		rest = path
	} else {
		if !cwd.IsAbsolute() {
			return nil, -defs.EINVAL
		}
		stack = split(cwd)
		rest = path
	}

	for {
		var head ustr.Ustr
		var ok bool
		head, rest, ok = rest.PopFirst()
		if !ok {
			break
		}
		switch {
		case head.Isdot():
			// no-op
		case head.Isdotdot():
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, head)
		}
	}

	return join(stack), 0
}

func split(p ustr.Ustr) []ustr.Ustr {
	var out []ustr.Ustr
	rest := p
	for {
		var head ustr.Ustr
		var ok bool
		head, rest, ok = rest.PopFirst()
		if !ok {
			break
		}
		out = append(out, head)
	}
	return out
}

func join(components []ustr.Ustr) ustr.Ustr {
	if len(components) == 0 {
		return ustr.MkUstrRoot()
	}
	out := ustr.MkUstr()
	for _, c := range components {
		out = out.Extend(c)
	}
	// Extend always prefixes with '/', so out is already absolute.
	return out
}
