package vfs

import (
	"container/list"
	"sync"

	"cheviot-kernel-sub001/hashtable"
	"cheviot-kernel-sub001/ustr"
)

// dentry is one DName cache entry: a (parent vnode, name) pair resolved
// to a child vnode, globally LRU-ordered.
type dentry struct {
	parent int
	name   string
	child  *VNode
	elem   *list.Element
}

// DNameCache caches (parent, name) -> vnode resolutions, hashed for
// lookup and globally LRU-bounded to NR_DNAME entries. Negative caching
// is not performed (spec.md §4.8).
type DNameCache struct {
	mu       sync.Mutex
	table    *hashtable.Hashtable_t
	lru      *list.List // front = LRU, back = MRU
	capacity int
}

// NewDNameCache returns an empty DName cache bounded to capacity
// entries (spec.md's NR_DNAME when called with defs.NR_DNAME).
func NewDNameCache(capacity int) *DNameCache {
	return &DNameCache{table: hashtable.MkHash(nextPow2(capacity)), lru: list.New(), capacity: capacity}
}

// Lookup returns the cached child vnode for (parent, name), bumping it
// to MRU on hit.
func (dc *DNameCache) Lookup(parent int, name ustr.Ustr) (*VNode, bool) {
	key := hashtable.MkDNameKey(parent, name)
	dc.mu.Lock()
	defer dc.mu.Unlock()
	v, ok := dc.table.Get(key)
	if !ok {
		return nil, false
	}
	d := v.(*dentry)
	dc.lru.MoveToBack(d.elem)
	return d.child, true
}

// Insert records that (parent, name) resolves to child, evicting the
// LRU entry first if the cache is at capacity.
func (dc *DNameCache) Insert(parent int, name ustr.Ustr, child *VNode) {
	key := hashtable.MkDNameKey(parent, name)
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if _, ok := dc.table.Get(key); ok {
		return
	}
	if dc.table.Size() >= dc.capacity {
		front := dc.lru.Front()
		if front != nil {
			victim := front.Value.(*dentry)
			dc.lru.Remove(front)
			dc.table.Del(hashtable.MkDNameKey(victim.parent, ustr.Ustr(victim.name)))
		}
	}
	d := &dentry{parent: parent, name: name.String(), child: child}
	d.elem = dc.lru.PushBack(d)
	dc.table.Set(key, d)
}

// Invalidate removes the (parent, name) entry, used on rename/unlink
// (spec.md §4.8).
func (dc *DNameCache) Invalidate(parent int, name ustr.Ustr) {
	key := hashtable.MkDNameKey(parent, name)
	dc.mu.Lock()
	defer dc.mu.Unlock()
	v, ok := dc.table.Get(key)
	if !ok {
		return
	}
	d := v.(*dentry)
	dc.lru.Remove(d.elem)
	dc.table.Del(key)
}

// InvalidateVNode removes every entry referencing v as either parent or
// child, used on vnode teardown (spec.md §4.8).
func (dc *DNameCache) InvalidateVNode(v *VNode) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	var dead []*dentry
	dc.table.Iter(func(_ interface{}, val interface{}) bool {
		d := val.(*dentry)
		if d.child == v || d.parent == v.Ino {
			dead = append(dead, d)
		}
		return false
	})
	for _, d := range dead {
		dc.lru.Remove(d.elem)
		dc.table.Del(hashtable.MkDNameKey(d.parent, ustr.Ustr(d.name)))
	}
}
