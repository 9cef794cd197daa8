// pkg/store/iterator.go

package store

// HashIterator walks every live entry in bucket-table order. It takes no
// lock: a concurrent Set/Del can move entries between buckets or free
// their storage mid-walk, so it only guarantees every entry present for
// the iterator's *entire* lifetime is visited at least once.
type HashIterator struct {
	mc     *MapCore
	bucket uint64
	cur    uint64
}

// NewHashIterator returns an iterator positioned before the first bucket.
func (mc *MapCore) NewHashIterator() *HashIterator {
	return &HashIterator{mc: mc, bucket: 0, cur: nilOffset}
}

// Next advances to the next live entry and decodes it, or returns
// (nil, false) once every bucket has been exhausted.
func (it *HashIterator) Next() (*BlockData, bool) {
	for {
		if it.cur != nilOffset {
			off := it.cur
			it.cur = it.mc.blk.BucketNext(off)
			bd, err := it.mc.blk.Read(off)
			if err != nil {
				continue
			}
			return bd, true
		}
		if it.bucket >= it.mc.bucketCount {
			return nil, false
		}
		it.cur = it.mc.bucketHead(it.bucket)
		it.bucket++
	}
}

// LockOrder selects which intrusive chain a LockIterator walks.
type LockOrder int

const (
	// OrderSet walks insertion order, newest first.
	OrderSet LockOrder = iota
	// OrderGet walks access order, most-recently-read first.
	OrderGet
	// OrderDirty walks pending-writeback order, most-recently-dirtied first.
	OrderDirty
)

// LockIterator walks the SET, GET, or DIRTY chain in strict order. The
// caller must hold mc's write lock for the iterator's entire lifetime,
// since those chains splice on every Get/Set/Sync.
type LockIterator struct {
	mc    *MapCore
	order LockOrder
	cur   uint64
}

// NewLockIterator returns an iterator over the given chain, starting
// from its head. Callers must have already locked mc (see WithLock).
func (mc *MapCore) NewLockIterator(order LockOrder) *LockIterator {
	var head uint64
	switch order {
	case OrderGet:
		head = mc.h.GetHead()
	case OrderDirty:
		head = mc.h.DirtyHead()
	default:
		head = mc.h.SetHead()
	}
	return &LockIterator{mc: mc, order: order, cur: head}
}

// Next decodes the current entry and advances, or returns (nil, false)
// at the end of the chain.
func (it *LockIterator) Next() (*BlockData, bool) {
	if it.cur == nilOffset {
		return nil, false
	}
	off := it.cur
	switch it.order {
	case OrderGet:
		it.cur = it.mc.blk.GetNext(off)
	case OrderDirty:
		it.cur = it.mc.blk.DirtyNext(off)
	default:
		it.cur = it.mc.blk.SetNext(off)
	}
	bd, err := it.mc.blk.Read(off)
	if err != nil {
		return nil, false
	}
	return bd, true
}

// WithLock runs fn while holding mc's write lock, the safe way to drive
// a LockIterator to completion.
func (mc *MapCore) WithLock(fn func()) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	fn()
}
