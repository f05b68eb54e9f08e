package vfs

import (
	"container/list"
	"sync"

	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/hashtable"
	"cheviot-kernel-sub001/ksync"
	"cheviot-kernel-sub001/msgport"
)

// Buf is one cached disk block, keyed by (SuperBlock, block number).
// Busy/dirty state is protected by its own mutex; Get takes it while
// holding the cache-wide lock, MarkDirty and Flush take it alone.
type Buf struct {
	mu    sync.Mutex
	SB    *SuperBlock
	Block int
	Data  []byte
	busy  bool
	dirty bool
	elem  *list.Element // this buf's node in the avail LRU, nil while busy
}

// MarkDirty flags b for write-back on eviction or explicit flush.
func (b *Buf) MarkDirty() {
	b.mu.Lock()
	b.dirty = true
	b.mu.Unlock()
}

// BufCache is the VFS buffer cache (spec.md §4.8): a hash table keyed
// by (SuperBlock, block-number) plus an LRU of non-busy buffers.
// Guarantee: at most one owner of a busy buffer at a time.
type BufCache struct {
	mu        sync.Mutex
	table     *hashtable.Hashtable_t
	avail     *list.List // front = LRU, back = MRU
	capacity  int
	blockSize int
	busyWait  ksync.Rendez
}

// NewBufCache returns an empty buffer cache bounded to capacity blocks
// of blockSize bytes each.
func NewBufCache(capacity, blockSize int) *BufCache {
	return &BufCache{
		table:     hashtable.MkHash(nextPow2(capacity)),
		avail:     list.New(),
		capacity:  capacity,
		blockSize: blockSize,
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p < 1 {
		p = 1
	}
	return p
}

// Get returns the buffer for (sb, block), marked busy. On a cache miss
// it reclaims the LRU head if the cache is at capacity, writing it back
// first if dirty. On a hit against an already-busy buffer it blocks on
// buf_list_rendez until the holder releases it.
func (bc *BufCache) Get(sb *SuperBlock, block int) *Buf {
	key := hashtable.MkBlockKey(sb.ID, block)
	for {
		bc.mu.Lock()
		if v, ok := bc.table.Get(key); ok {
			b := v.(*Buf)
			b.mu.Lock()
			if b.busy {
				b.mu.Unlock()
				bc.mu.Unlock()
				bc.busyWait.TaskSleep()
				continue
			}
			if b.elem != nil {
				bc.avail.Remove(b.elem)
				b.elem = nil
			}
			b.busy = true
			b.mu.Unlock()
			bc.mu.Unlock()
			return b
		}

		if bc.table.Size() >= bc.capacity {
			front := bc.avail.Front()
			if front == nil {
				// every buffer is busy; wait for one to free before
				// attempting eviction again.
				bc.mu.Unlock()
				bc.busyWait.TaskSleep()
				continue
			}
			victim := front.Value.(*Buf)
			bc.avail.Remove(front)
			victim.mu.Lock()
			victim.elem = nil
			dirty := victim.dirty
			victim.mu.Unlock()
			if dirty {
				bc.writeback(victim)
			}
			bc.table.Del(hashtable.MkBlockKey(victim.SB.ID, victim.Block))
		}

		nb := &Buf{SB: sb, Block: block, Data: make([]byte, bc.blockSize), busy: true}
		bc.table.Set(key, nb)
		bc.mu.Unlock()
		return nb
	}
}

// Release clears BUSY, pushes b to the avail tail (MRU), and broadcasts
// to any buf_get callers waiting on this or another busy buffer.
func (bc *BufCache) Release(b *Buf) {
	b.mu.Lock()
	b.busy = false
	b.mu.Unlock()

	bc.mu.Lock()
	b.elem = bc.avail.PushBack(b)
	bc.mu.Unlock()
	bc.busyWait.TaskWakeup()
}

func (bc *BufCache) writeback(b *Buf) defs.Err_t {
	_, err := b.SB.Port.Send(&msgport.IORequest{
		Op:     msgport.OpWrite,
		Offset: int64(b.Block) * int64(bc.blockSize),
		Data:   b.Data,
	})
	return err
}

// Flush forces a write-back of b if dirty, without evicting it.
func (bc *BufCache) Flush(b *Buf) defs.Err_t {
	b.mu.Lock()
	dirty := b.dirty
	b.mu.Unlock()
	if !dirty {
		return 0
	}
	if err := bc.writeback(b); err != 0 {
		return err
	}
	b.mu.Lock()
	b.dirty = false
	b.mu.Unlock()
	return 0
}
