// pkg/store/mapcore.go

package store

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Config parameterizes a fresh region. Values are stamped into the
// header at Create and read back unchanged at Connect; only ReadOnly,
// AutoEvict, ErasePolicy, EraseBatch, WritebackAge and the hash function
// can be changed after the fact.
type Config struct {
	Path         string
	RegionSize   uint64
	MinChunkSize uint64
	MaxChunkSize uint64
	Factor       float64
	BucketRatio  uint64 // chunk_count / bucket_count target
	ErasePolicy  uint64
	AutoEvict    bool
	EraseBatch   uint64
	WritebackAge time.Duration
	HashFunc     HashFunc
}

// MapCore is the persistent, in-place hash map. It is safe for
// concurrent use from multiple goroutines in this process; concurrent
// use from multiple processes attached to the same region relies on the
// Journal for structural consistency and an external cooperative lock
// (pkg/lock) for serializing writers.
type MapCore struct {
	mu sync.RWMutex

	region *Region
	file   *FileRegion // set when the region is backed by a real file; nil otherwise
	j      *Journal
	h      *Header
	blk    *BlockEngine
	alloc  *MultiChunkAllocator
	hash   HashFunc

	bucketCount uint64
}

func bucketOffset(idx uint64) uint64 { return bucketTableOffset + idx*bucketEntrySize }

const (
	bucketHeadOff = 0
	bucketLenOff  = 8
)

// Create formats a brand-new region at cfg.Path and returns a MapCore
// attached to it. The bucket count is derived once, from an estimate of
// how many chunks the allocator will end up with (N is the smallest
// prime >= chunk_count / ratio); since the allocator's own
// layout depends on where the bucket table ends, this is necessarily an
// estimate rather than an exact solve.
func Create(cfg Config) (*MapCore, error) {
	if cfg.BucketRatio == 0 {
		cfg.BucketRatio = 2
	}
	if cfg.Factor <= 1.0 {
		cfg.Factor = 1.5
	}
	fr, err := CreateFileRegion(cfg.Path, cfg.RegionSize)
	if err != nil {
		return nil, err
	}
	region := fr.Region

	sizes := classSizes(cfg.MinChunkSize, cfg.MaxChunkSize, cfg.Factor)
	var sumSizes uint64
	for _, s := range sizes {
		sumSizes += s
	}
	avgSize := sumSizes / uint64(len(sizes))
	usableEstimate := cfg.RegionSize - headerSize - journalSize
	estChunks := usableEstimate / avgSize
	bucketCount := nextPrime(estChunks / cfg.BucketRatio)
	if bucketCount < 1 {
		bucketCount = 1
	}

	allocBase := bucketTableOffset + bucketCount*bucketEntrySize
	if allocBase >= cfg.RegionSize {
		return nil, errors.New("store: region too small for bucket table")
	}
	_, count := planAllocator(cfg.RegionSize-allocBase, cfg.MinChunkSize, cfg.MaxChunkSize, cfg.Factor)
	if count == 0 {
		return nil, errors.New("store: region too small for even one chunk per class")
	}
	alloc := newAllocator(region, allocBase, sizes, count)
	alloc.formatFree()

	buf := region.buf
	for i := uint64(0); i < bucketCount; i++ {
		putWord(buf, bucketOffset(i)+bucketHeadOff, Width8, nilOffset)
		putWord(buf, bucketOffset(i)+bucketLenOff, Width8, 0)
	}

	id := uuid.New()
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])

	putWord(buf, hVerMajor, Width8, MaxVersion)
	minor := uint64(MinVersion64)
	if math.MaxUint == math.MaxUint32 {
		minor = MinVersion32
	}
	putWord(buf, hVerMinor, Width8, minor)
	putWord(buf, hReadOnly, Width8, 0)
	putWord(buf, hAutoEvict, Width8, boolWord(cfg.AutoEvict))
	putWord(buf, hErasePolicy, Width8, cfg.ErasePolicy)
	putWord(buf, hRegionSize, Width8, cfg.RegionSize)
	putWord(buf, hMinChunk, Width8, cfg.MinChunkSize)
	putWord(buf, hMaxChunk, Width8, cfg.MaxChunkSize)
	putWord(buf, hFactorBits, Width8, math.Float64bits(cfg.Factor))
	putWord(buf, hRatioBits, Width8, cfg.BucketRatio)
	putWord(buf, hElementCount, Width8, 0)
	putWord(buf, hDirtyCount, Width8, 0)
	putWord(buf, hOnlyKeyCount, Width8, 0)
	putWord(buf, hSetHead, Width8, nilOffset)
	putWord(buf, hSetTail, Width8, nilOffset)
	putWord(buf, hGetHead, Width8, nilOffset)
	putWord(buf, hGetTail, Width8, nilOffset)
	putWord(buf, hDirtyHead, Width8, nilOffset)
	putWord(buf, hDirtyTail, Width8, nilOffset)
	putWord(buf, hBackupCursor, Width8, nilOffset)
	putWord(buf, hSyncCursor, Width8, nilOffset)
	putWord(buf, hWritebackAge, Width8, uint64(cfg.WritebackAge/time.Second))
	putWord(buf, hUsedChunk, Width8, 0)
	putWord(buf, hGetCount, Width8, 0)
	putWord(buf, hHitCount, Width8, 0)
	putWord(buf, hEraseBatch, Width8, cfg.EraseBatch)
	putWord(buf, hBucketCount, Width8, bucketCount)
	putWord(buf, hAppendBytes, Width8, 0)
	putWord(buf, hInstanceIDHi, Width8, hi)
	putWord(buf, hInstanceIDLo, Width8, lo)

	j := newJournal(region)
	j.reset()

	hashFn := cfg.HashFunc
	if hashFn == nil {
		hashFn = DefaultHash
	}

	mc := &MapCore{
		region:      region,
		file:        fr,
		j:           j,
		h:           newHeader(region, j),
		blk:         newBlockEngine(region, j, alloc),
		alloc:       alloc,
		hash:        hashFn,
		bucketCount: bucketCount,
	}
	alloc.SetEvictionHook(mc.evictOne)
	return mc, nil
}

// Connect attaches to an already-formatted region file, replays any
// interrupted journal epoch, and re-derives the allocator's in-memory
// layout deterministically from header fields (never trusted blindly:
// Recover(true) should be run whenever the previous attach may not have
// shut down cleanly).
func Connect(path string, hashFn HashFunc) (*MapCore, error) {
	fr, err := OpenFileRegion(path)
	if err != nil {
		return nil, err
	}
	region := fr.Region
	j := newJournal(region)
	j.Replay()

	buf := region.buf
	if getWord(buf, hVerMajor, Width8) != MaxVersion {
		return nil, ErrVersionMismatch
	}
	bucketCount := getWord(buf, hBucketCount, Width8)
	minChunk := getWord(buf, hMinChunk, Width8)
	maxChunk := getWord(buf, hMaxChunk, Width8)
	factor := math.Float64frombits(getWord(buf, hFactorBits, Width8))
	regionSize := getWord(buf, hRegionSize, Width8)
	if regionSize != region.Size() {
		return nil, errors.Wrap(ErrLoadData, "store: region size mismatch")
	}

	sizes := classSizes(minChunk, maxChunk, factor)
	allocBase := bucketTableOffset + bucketCount*bucketEntrySize
	appendBytes := getWord(buf, hAppendBytes, Width8)
	origRegionSize := regionSize - appendBytes

	_, count := planAllocator(origRegionSize-allocBase, minChunk, maxChunk, factor)
	alloc := newAllocator(region, allocBase, sizes, count)
	if appendBytes > 0 {
		_, extraCount := planAllocator(appendBytes, minChunk, maxChunk, factor)
		alloc.addGeneration(origRegionSize, extraCount)
	}

	if hashFn == nil {
		hashFn = DefaultHash
	}
	mc := &MapCore{
		region:      region,
		file:        fr,
		j:           j,
		h:           newHeader(region, j),
		blk:         newBlockEngine(region, j, alloc),
		alloc:       alloc,
		hash:        hashFn,
		bucketCount: bucketCount,
	}
	alloc.SetEvictionHook(mc.evictOne)
	return mc, nil
}

func (mc *MapCore) bucketIndex(key []byte) uint64 {
	return mc.hash(key) % mc.bucketCount
}

func (mc *MapCore) bucketHead(idx uint64) uint64 { return getWord(mc.region.buf, bucketOffset(idx)+bucketHeadOff, Width8) }
func (mc *MapCore) bucketLen(idx uint64) uint64  { return getWord(mc.region.buf, bucketOffset(idx)+bucketLenOff, Width8) }

func setBucketHeadSlot(idx, v uint64) slot { return slot{offset: bucketOffset(idx) + bucketHeadOff, width: Width8, value: v} }
func setBucketLenSlot(idx, v uint64) slot  { return slot{offset: bucketOffset(idx) + bucketLenOff, width: Width8, value: v} }

// findInBucket walks the bucket chain comparing raw key bytes; O(chain
// length), a standard separate-chaining lookup.
func (mc *MapCore) findInBucket(idx uint64, key []byte) (*BlockData, error) {
	off := mc.bucketHead(idx)
	for off != nilOffset {
		bd, err := mc.blk.Read(off)
		if err != nil {
			return nil, err
		}
		if string(bd.Key) == string(key) {
			return bd, nil
		}
		off = mc.blk.BucketNext(off)
	}
	return nil, nil
}

// --- linking helpers: each returns a small, self-contained slot batch ---

func (mc *MapCore) linkBucketHead(idx, off uint64) []slot {
	old := mc.bucketHead(idx)
	slots := []slot{
		mc.blk.SetBucketNextSlot(off, old),
		mc.blk.SetBucketPrevSlot(off, nilOffset),
	}
	if old != nilOffset {
		slots = append(slots, mc.blk.SetBucketPrevSlot(old, off))
	}
	slots = append(slots, setBucketHeadSlot(idx, off), setBucketLenSlot(idx, mc.bucketLen(idx)+1))
	return slots
}

func (mc *MapCore) unlinkBucket(off uint64) []slot {
	idx := mc.blk.BucketIndex(off)
	prev, next := mc.blk.BucketPrev(off), mc.blk.BucketNext(off)
	var slots []slot
	if prev != nilOffset {
		slots = append(slots, mc.blk.SetBucketNextSlot(prev, next))
	} else {
		slots = append(slots, setBucketHeadSlot(idx, next))
	}
	if next != nilOffset {
		slots = append(slots, mc.blk.SetBucketPrevSlot(next, prev))
	}
	slots = append(slots, setBucketLenSlot(idx, mc.bucketLen(idx)-1))
	return slots
}

func (mc *MapCore) linkSetHead(off uint64) []slot {
	old := mc.h.SetHead()
	slots := []slot{mc.blk.SetSetNextSlot(off, old), mc.blk.SetSetPrevSlot(off, nilOffset)}
	if old != nilOffset {
		slots = append(slots, mc.blk.SetSetPrevSlot(old, off))
	} else {
		slots = append(slots, setSlot(hSetTail, off))
	}
	slots = append(slots, setSlot(hSetHead, off))
	return slots
}

func (mc *MapCore) unlinkSet(off uint64) []slot {
	prev, next := mc.blk.SetPrev(off), mc.blk.SetNext(off)
	var slots []slot
	if prev != nilOffset {
		slots = append(slots, mc.blk.SetSetNextSlot(prev, next))
	} else {
		slots = append(slots, setSlot(hSetHead, next))
	}
	if next != nilOffset {
		slots = append(slots, mc.blk.SetSetPrevSlot(next, prev))
	} else {
		slots = append(slots, setSlot(hSetTail, prev))
	}
	return slots
}

func (mc *MapCore) linkGetHead(off uint64) []slot {
	old := mc.h.GetHead()
	slots := []slot{mc.blk.SetGetNextSlot(off, old), mc.blk.SetGetPrevSlot(off, nilOffset)}
	if old != nilOffset {
		slots = append(slots, mc.blk.SetGetPrevSlot(old, off))
	} else {
		slots = append(slots, setSlot(hGetTail, off))
	}
	slots = append(slots, setSlot(hGetHead, off))
	return slots
}

func (mc *MapCore) unlinkGet(off uint64) []slot {
	prev, next := mc.blk.GetPrev(off), mc.blk.GetNext(off)
	var slots []slot
	if prev != nilOffset {
		slots = append(slots, mc.blk.SetGetNextSlot(prev, next))
	} else {
		slots = append(slots, setSlot(hGetHead, next))
	}
	if next != nilOffset {
		slots = append(slots, mc.blk.SetGetPrevSlot(next, prev))
	} else {
		slots = append(slots, setSlot(hGetTail, prev))
	}
	return slots
}

func (mc *MapCore) linkDirtyHead(off uint64) []slot {
	old := mc.h.DirtyHead()
	slots := []slot{mc.blk.SetDirtyNextSlot(off, old), mc.blk.SetDirtyPrevSlot(off, nilOffset)}
	if old != nilOffset {
		slots = append(slots, mc.blk.SetDirtyPrevSlot(old, off))
	} else {
		slots = append(slots, setSlot(hDirtyTail, off))
	}
	slots = append(slots, setSlot(hDirtyHead, off))
	return slots
}

// linkDirtyTail is linkDirtyHead's mirror, used by SetDirtyAfterSync to
// put an entry whose writeback failed at the DIRTY tail, the end Sync
// visits first.
func (mc *MapCore) linkDirtyTail(off uint64) []slot {
	old := mc.h.DirtyTail()
	slots := []slot{mc.blk.SetDirtyPrevSlot(off, old), mc.blk.SetDirtyNextSlot(off, nilOffset)}
	if old != nilOffset {
		slots = append(slots, mc.blk.SetDirtyNextSlot(old, off))
	} else {
		slots = append(slots, setSlot(hDirtyHead, off))
	}
	slots = append(slots, setSlot(hDirtyTail, off))
	return slots
}

func (mc *MapCore) unlinkDirty(off uint64) []slot {
	prev, next := mc.blk.DirtyPrev(off), mc.blk.DirtyNext(off)
	var slots []slot
	if prev != nilOffset {
		slots = append(slots, mc.blk.SetDirtyNextSlot(prev, next))
	} else {
		slots = append(slots, setSlot(hDirtyHead, next))
	}
	if next != nilOffset {
		slots = append(slots, mc.blk.SetDirtyPrevSlot(next, prev))
	} else {
		slots = append(slots, setSlot(hDirtyTail, prev))
	}
	return slots
}

// removeEntry unlinks off from every chain it might participate in and
// frees its storage. It does not touch ElementCount/DirtyCount/
// OnlyKeyCount; callers commit those alongside the caller's own reason
// for removing the entry.
func (mc *MapCore) removeEntry(bd *BlockData) error {
	if err := mc.j.Commit(mc.unlinkBucket(bd.Offset)); err != nil {
		return err
	}
	if err := mc.j.Commit(mc.unlinkSet(bd.Offset)); err != nil {
		return err
	}
	if mc.blk.GetPrev(bd.Offset) != nilOffset || mc.blk.GetNext(bd.Offset) != nilOffset || mc.h.GetHead() == bd.Offset {
		if err := mc.j.Commit(mc.unlinkGet(bd.Offset)); err != nil {
			return err
		}
	}
	if bd.Dirty {
		if err := mc.j.Commit(mc.unlinkDirty(bd.Offset)); err != nil {
			return err
		}
	}
	freed := mc.blk.Free(bd.Offset)
	return mc.j.Commit([]slot{subSlot(hUsedChunk, mc.h.UsedChunk(), freed)})
}

// evictOne picks a victim by the configured erase policy (SET tail for
// insertion-order LRU, GET tail for access-order LRU) and removes it. It
// is installed as the allocator's EvictionHook and is also the building
// block for Erase.
func (mc *MapCore) evictOne() (*BlockData, bool, error) {
	var victimOff uint64
	if mc.h.ErasePolicy() == ErasePolicyBySet {
		victimOff = mc.h.SetTail()
	} else {
		victimOff = mc.h.GetTail()
		if victimOff == nilOffset {
			victimOff = mc.h.SetTail()
		}
	}
	if victimOff == nilOffset {
		return nil, false, nil
	}
	bd, err := mc.blk.Read(victimOff)
	if err != nil {
		return nil, false, err
	}
	if err := mc.removeEntry(bd); err != nil {
		return nil, false, err
	}
	counterSlots := []slot{decSlot(hElementCount, mc.h.ElementCount())}
	if bd.Dirty {
		counterSlots = append(counterSlots, decSlot(hDirtyCount, mc.h.DirtyCount()))
	}
	if bd.OnlyKey {
		counterSlots = append(counterSlots, decSlot(hOnlyKeyCount, mc.h.OnlyKeyCount()))
	}
	if err := mc.j.Commit(counterSlots); err != nil {
		return nil, false, err
	}
	return bd, true, nil
}

// Get looks the key up and bumps the get counter, and the hit counter
// when the key is found; unless peek is set, it also moves a found entry
// to the head of the GET chain.
func (mc *MapCore) Get(key []byte, peek bool) (*BlockData, Code, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	idx := mc.bucketIndex(key)
	bd, err := mc.findInBucket(idx, key)
	if err != nil {
		return nil, RTOk, err
	}
	counters := []slot{incSlot(hGetCount, mc.h.GetCount())}
	if bd == nil {
		if err := mc.j.Commit(counters); err != nil {
			return nil, RTOk, err
		}
		return nil, RTNoData, nil
	}
	counters = append(counters, incSlot(hHitCount, mc.h.HitCount()))
	if err := mc.j.Commit(counters); err != nil {
		return nil, RTOk, err
	}

	if !peek {
		if mc.blk.GetPrev(bd.Offset) != nilOffset || mc.blk.GetNext(bd.Offset) != nilOffset || mc.h.GetHead() == bd.Offset {
			if err := mc.j.Commit(mc.unlinkGet(bd.Offset)); err != nil {
				return nil, RTOk, err
			}
		}
		if err := mc.j.Commit(mc.linkGetHead(bd.Offset)); err != nil {
			return nil, RTOk, err
		}
	}

	if bd.OnlyKey {
		return bd, RTOnlyKey, nil
	}
	if bd.Dirty {
		return bd, RTDirtyData, nil
	}
	return bd, RTOk, nil
}

// set is shared by Set and SetOnlyKey. wantDirty is forced false for
// only-key entries regardless of what the caller asked for (I3: only
// non-only-key entries may be dirty). It returns whatever entries the
// allocator evicted to make room — callers under AutoEvict must be
// able to see (and, if still dirty, re-flush) anything the map evicted
// on their behalf.
func (mc *MapCore) set(key, value []byte, onlyKey, dirty bool) (Code, []*BlockData, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.h.ReadOnly() {
		return RTReadOnly, nil, nil
	}
	wantDirty := dirty && !onlyKey

	idx := mc.bucketIndex(key)
	existing, err := mc.findInBucket(idx, key)
	if err != nil {
		return RTOk, nil, err
	}

	wasDirty, wasOnlyKey := false, false
	if existing != nil {
		wasDirty, wasOnlyKey = existing.Dirty, existing.OnlyKey
		if err := mc.removeEntry(existing); err != nil {
			return RTOk, nil, err
		}
	}

	off, chunks, evicted, err := mc.blk.Allocate(idx, key, value, onlyKey, mc.h.AutoEvict())
	if err != nil {
		return RTNoMemory, evicted, err
	}
	if err := mc.j.Commit([]slot{addSlot(hUsedChunk, mc.h.UsedChunk(), chunks)}); err != nil {
		return RTOk, evicted, err
	}

	if err := mc.j.Commit(mc.linkBucketHead(idx, off)); err != nil {
		return RTOk, evicted, err
	}
	if err := mc.j.Commit(mc.linkSetHead(off)); err != nil {
		return RTOk, evicted, err
	}
	if wantDirty {
		if err := mc.j.Commit([]slot{mc.blk.SetDirtyFlagSlot(off, true)}); err != nil {
			return RTOk, evicted, err
		}
		if err := mc.j.Commit(mc.linkDirtyHead(off)); err != nil {
			return RTOk, evicted, err
		}
	}

	counters := []slot{}
	if existing == nil {
		counters = append(counters, incSlot(hElementCount, mc.h.ElementCount()))
	}
	if wantDirty && !wasDirty {
		counters = append(counters, incSlot(hDirtyCount, mc.h.DirtyCount()))
	} else if !wantDirty && wasDirty {
		counters = append(counters, decSlot(hDirtyCount, mc.h.DirtyCount()))
	}
	if onlyKey && !wasOnlyKey {
		counters = append(counters, incSlot(hOnlyKeyCount, mc.h.OnlyKeyCount()))
	} else if !onlyKey && wasOnlyKey {
		counters = append(counters, decSlot(hOnlyKeyCount, mc.h.OnlyKeyCount()))
	}
	if len(counters) > 0 {
		if err := mc.j.Commit(counters); err != nil {
			return RTOk, evicted, err
		}
	}
	return RTOk, evicted, nil
}

// Set inserts or overwrites key with value, moving it to the front of
// the SET chain, dirty exactly as the caller specifies. It returns any
// entries the allocator had to evict to make room.
func (mc *MapCore) Set(key, value []byte, dirty bool) (Code, []*BlockData, error) {
	return mc.set(key, value, false, dirty)
}

// SetOnlyKey inserts or overwrites key with no associated value; always
// clean, since only-key entries can never be dirty.
func (mc *MapCore) SetOnlyKey(key []byte) (Code, []*BlockData, error) {
	return mc.set(key, nil, true, false)
}

// Del removes key unconditionally.
func (mc *MapCore) Del(key []byte) (Code, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.h.ReadOnly() {
		return RTReadOnly, nil
	}
	idx := mc.bucketIndex(key)
	bd, err := mc.findInBucket(idx, key)
	if err != nil {
		return RTOk, err
	}
	if bd == nil {
		return RTNoData, nil
	}
	if err := mc.removeEntry(bd); err != nil {
		return RTOk, err
	}
	counters := []slot{decSlot(hElementCount, mc.h.ElementCount())}
	if bd.Dirty {
		counters = append(counters, decSlot(hDirtyCount, mc.h.DirtyCount()))
	}
	if bd.OnlyKey {
		counters = append(counters, decSlot(hOnlyKeyCount, mc.h.OnlyKeyCount()))
	}
	if err := mc.j.Commit(counters); err != nil {
		return RTOk, err
	}
	return RTOk, nil
}

// Erase evicts victims by the configured policy until used chunks fall
// below targetLoadPct percent of total capacity, stopping early
// (without evicting) once it meets a dirty entry, when skipDirty is set.
// It returns every entry it removed so a caller can flush anything
// still dirty before its storage is gone for good.
func (mc *MapCore) Erase(targetLoadPct float64, skipDirty bool, maxCount uint64) ([]*BlockData, Code, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var victims []*BlockData
	total := mc.alloc.TotalChunks()
	for maxCount == 0 || uint64(len(victims)) < maxCount {
		used := mc.h.UsedChunk()
		if total == 0 || float64(used)*100/float64(total) < targetLoadPct {
			break
		}
		var victimOff uint64
		if mc.h.ErasePolicy() == ErasePolicyBySet {
			victimOff = mc.h.SetTail()
		} else {
			victimOff = mc.h.GetTail()
			if victimOff == nilOffset {
				victimOff = mc.h.SetTail()
			}
		}
		if victimOff == nilOffset {
			break
		}
		bd, err := mc.blk.Read(victimOff)
		if err != nil {
			return victims, RTOk, err
		}
		if bd.Dirty && skipDirty {
			return victims, RTDirtyData, nil
		}
		if err := mc.removeEntry(bd); err != nil {
			return victims, RTOk, err
		}
		counters := []slot{decSlot(hElementCount, mc.h.ElementCount())}
		if bd.Dirty {
			counters = append(counters, decSlot(hDirtyCount, mc.h.DirtyCount()))
		}
		if bd.OnlyKey {
			counters = append(counters, decSlot(hOnlyKeyCount, mc.h.OnlyKeyCount()))
		}
		if err := mc.j.Commit(counters); err != nil {
			return victims, RTOk, err
		}
		victims = append(victims, bd)
	}
	if len(victims) == 0 {
		return nil, RTDone, nil
	}
	return victims, RTEraseOk, nil
}

// CheckDirty reports whether key currently needs a writeback.
func (mc *MapCore) CheckDirty(key []byte) (Code, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	bd, err := mc.findInBucket(mc.bucketIndex(key), key)
	if err != nil {
		return RTOk, err
	}
	if bd == nil {
		return RTNoData, nil
	}
	if bd.Dirty {
		return RTNeedSync, nil
	}
	return RTNoNeedSync, nil
}

// SetDirty marks key dirty and moves it to the DIRTY chain head, without
// changing its value; used when a caller mutates a value out of band and
// must tell the map to writeback later.
func (mc *MapCore) SetDirty(key []byte) (Code, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	bd, err := mc.findInBucket(mc.bucketIndex(key), key)
	if err != nil {
		return RTOk, err
	}
	if bd == nil {
		return RTNoData, nil
	}
	if bd.OnlyKey {
		return RTOnlyKey, nil
	}
	if bd.Dirty {
		return RTOk, nil
	}
	if err := mc.j.Commit([]slot{mc.blk.SetDirtyFlagSlot(bd.Offset, true)}); err != nil {
		return RTOk, err
	}
	if err := mc.j.Commit(mc.linkDirtyHead(bd.Offset)); err != nil {
		return RTOk, err
	}
	return RTOk, mc.j.Commit([]slot{incSlot(hDirtyCount, mc.h.DirtyCount())})
}

// setClean is shared by SetClean and the internal Sync loop.
func (mc *MapCore) setClean(off uint64, syncTime time.Time) error {
	if err := mc.j.Commit(mc.unlinkDirty(off)); err != nil {
		return err
	}
	return mc.j.Commit([]slot{
		mc.blk.SetDirtyFlagSlot(off, false),
		mc.blk.SetLastSyncTimeSlot(off, syncTime),
		decSlot(hDirtyCount, mc.h.DirtyCount()),
	})
}

// SetClean marks key clean without performing any writeback itself
// (caller has already flushed it elsewhere).
func (mc *MapCore) SetClean(key []byte) (Code, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	bd, err := mc.findInBucket(mc.bucketIndex(key), key)
	if err != nil {
		return RTOk, err
	}
	if bd == nil {
		return RTNoData, nil
	}
	if !bd.Dirty {
		return RTNoNeedSync, nil
	}
	return RTOk, mc.setClean(bd.Offset, time.Now())
}

// SetDirtyAfterSync re-marks key dirty and moves it to the DIRTY chain
// tail, the end Sync visits first; a write-behind flusher calls this
// when a writeback attempt failed, so the update is kept rather than
// lost. This is the opposite of setClean: syncTime, stored as the
// entry's LastSyncTime, records when the failed attempt happened, not a
// successful sync, so Sync skips the entry until WritebackAge has passed
// since then.
func (mc *MapCore) SetDirtyAfterSync(key []byte, syncTime time.Time) (Code, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	bd, err := mc.findInBucket(mc.bucketIndex(key), key)
	if err != nil {
		return RTOk, err
	}
	if bd == nil {
		return RTNoData, nil
	}
	if bd.OnlyKey {
		return RTOnlyKey, nil
	}
	if bd.Dirty {
		if err := mc.j.Commit(mc.unlinkDirty(bd.Offset)); err != nil {
			return RTOk, err
		}
	}
	if err := mc.j.Commit([]slot{mc.blk.SetDirtyFlagSlot(bd.Offset, true)}); err != nil {
		return RTOk, err
	}
	if err := mc.j.Commit(mc.linkDirtyTail(bd.Offset)); err != nil {
		return RTOk, err
	}
	if err := mc.j.Commit([]slot{mc.blk.SetLastSyncTimeSlot(bd.Offset, syncTime)}); err != nil {
		return RTOk, err
	}
	if !bd.Dirty {
		return RTOk, mc.j.Commit([]slot{incSlot(hDirtyCount, mc.h.DirtyCount())})
	}
	return RTOk, nil
}

// Sync walks the DIRTY chain oldest-first, calling flush for each entry
// whose last sync is at least WritebackAge old, and marks every
// successfully flushed entry clean. Entries not yet due are left dirty
// and untouched. It stops at the first flush error, leaving that entry
// and every entry not yet visited (the newer ones, nearer the head)
// dirty.
func (mc *MapCore) Sync(flush func(key, value []byte) error) (uint64, Code, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	off := mc.h.DirtyTail()
	if off == nilOffset {
		return 0, RTDone, nil
	}
	var flushed uint64
	now := time.Now()
	age := mc.h.WritebackAge()
	for off != nilOffset {
		bd, err := mc.blk.Read(off)
		if err != nil {
			return flushed, RTOk, err
		}
		prev := mc.blk.DirtyPrev(off) // capture before unlinking
		if !bd.LastSyncTime.IsZero() && now.Sub(bd.LastSyncTime) < age {
			off = prev
			continue
		}
		if err := flush(bd.Key, bd.Value); err != nil {
			return flushed, RTNeedSync, err
		}
		if err := mc.setClean(off, now); err != nil {
			return flushed, RTOk, err
		}
		flushed++
		off = prev
	}
	if flushed == 0 {
		return 0, RTDone, nil
	}
	return flushed, RTOk, nil
}

// Backup sweeps every live entry via the SET chain and hands each to
// visit, skipping only-key entries since they carry no value worth
// snapshotting. Unlike Sync, it does not mutate any entry.
func (mc *MapCore) Backup(visit func(*BlockData) error) (Code, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	off := mc.h.SetHead()
	if off == nilOffset {
		return RTDone, nil
	}
	for off != nilOffset {
		bd, err := mc.blk.Read(off)
		if err != nil {
			return RTOk, err
		}
		if !bd.OnlyKey {
			if err := visit(bd); err != nil {
				return RTOk, err
			}
		}
		off = mc.blk.SetNext(off)
	}
	return RTOk, mc.j.Commit([]slot{setSlot(hBackupCursor, nilOffset)})
}

// Recover replays the journal and, when repair is set, walks every live
// chain reachable from the bucket table and rebuilds every allocator
// free list from scratch. Run this after opening a region that may not
// have been closed cleanly.
func (mc *MapCore) Recover(repair bool) (Code, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.j.Replay()
	if !repair {
		return RTOk, nil
	}
	err := mc.alloc.Rebuild(func(visit func(uint64)) {
		for i := uint64(0); i < mc.bucketCount; i++ {
			off := mc.bucketHead(i)
			for off != nilOffset {
				for _, c := range mc.blk.chainOf(off) {
					visit(c)
				}
				off = mc.blk.BucketNext(off)
			}
		}
	})
	if err != nil {
		return RTOk, err
	}
	return RTOk, nil
}

// Append grows the region by extraBytes and lays down one further
// generation of allocator pools over the new space, leaving every
// existing header field, bucket, and chunk untouched.
//
// Growing the backing file and committing the header's new size are two
// separate steps that the fixed-slot journal cannot cover as one atomic
// unit — a crash between them leaves the file bigger than the header
// claims, and the next Connect's region-size check rejects such a file
// before Recover can run on it; no code path here reopens a region left
// in that state. A region may be Append'd to at
// most once: further growth would need a header field per generation,
// which this format doesn't reserve room for.
func (mc *MapCore) Append(extraBytes uint64) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.h.ReadOnly() {
		return errors.New("store: region is read-only")
	}
	if mc.file == nil {
		return errors.New("store: append requires a file-backed region")
	}
	if mc.h.AppendBytes() != 0 {
		return errors.New("store: region has already been appended to once")
	}

	minChunk, maxChunk := mc.h.MinChunk(), mc.h.MaxChunk()
	factor := math.Float64frombits(getWord(mc.region.buf, hFactorBits, Width8))
	_, extraCount := planAllocator(extraBytes, minChunk, maxChunk, factor)
	if extraCount == 0 {
		return errors.New("store: extraBytes too small for even one chunk per class")
	}

	origSize := mc.region.Size()
	if err := mc.file.AppendFile(extraBytes); err != nil {
		return err
	}

	mc.alloc.addGeneration(origSize, extraCount)
	mc.alloc.FormatLastGeneration()

	return mc.j.Commit([]slot{
		setSlot(hRegionSize, origSize+extraBytes),
		setSlot(hAppendBytes, extraBytes),
	})
}

// Clear resets a live region to its just-created state — every bucket,
// every chunk pool's free list, and every header counter and chain head/
// tail — without touching its configuration (chunk sizes, bucket count,
// region size, instance ID) or reallocating the backing buffer.
//
// Like Rebuild, Clear writes bucket and chunk-pool bytes directly rather
// than through the journal: it touches far more words than the fixed
// 20-slot batch can hold in one atomic commit, so it is a maintenance
// operation, not a live-traffic one. A crash mid-Clear leaves the region
// needing Recover(true) on the next Connect, exactly as an interrupted
// Rebuild would.
func (mc *MapCore) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.h.ReadOnly() {
		return errors.New("store: region is read-only")
	}

	buf := mc.region.buf
	for i := uint64(0); i < mc.bucketCount; i++ {
		putWord(buf, bucketOffset(i)+bucketHeadOff, Width8, nilOffset)
		putWord(buf, bucketOffset(i)+bucketLenOff, Width8, 0)
	}
	mc.alloc.formatFree()

	putWord(buf, hElementCount, Width8, 0)
	putWord(buf, hDirtyCount, Width8, 0)
	putWord(buf, hOnlyKeyCount, Width8, 0)
	putWord(buf, hSetHead, Width8, nilOffset)
	putWord(buf, hSetTail, Width8, nilOffset)
	putWord(buf, hGetHead, Width8, nilOffset)
	putWord(buf, hGetTail, Width8, nilOffset)
	putWord(buf, hDirtyHead, Width8, nilOffset)
	putWord(buf, hDirtyTail, Width8, nilOffset)
	putWord(buf, hBackupCursor, Width8, nilOffset)
	putWord(buf, hSyncCursor, Width8, nilOffset)
	putWord(buf, hUsedChunk, Width8, 0)
	putWord(buf, hGetCount, Width8, 0)
	putWord(buf, hHitCount, Width8, 0)
	return nil
}

// Stats summarizes region occupancy for CLI/monitoring use.
type Stats struct {
	BucketCount    uint64
	ElementCount   uint64
	DirtyCount     uint64
	OnlyKeyCount   uint64
	UsedChunk      uint64
	TotalChunk     uint64
	GetCount       uint64
	HitCount       uint64
	MaxBucketChain uint64
	EmptyBuckets   uint64
}

// Describe returns current header counters plus a bucket occupancy scan.
func (mc *MapCore) Describe() Stats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	st := Stats{
		BucketCount:  mc.bucketCount,
		ElementCount: mc.h.ElementCount(),
		DirtyCount:   mc.h.DirtyCount(),
		OnlyKeyCount: mc.h.OnlyKeyCount(),
		UsedChunk:    mc.h.UsedChunk(),
		TotalChunk:   mc.alloc.TotalChunks(),
		GetCount:     mc.h.GetCount(),
		HitCount:     mc.h.HitCount(),
	}
	for i := uint64(0); i < mc.bucketCount; i++ {
		l := mc.bucketLen(i)
		if l == 0 {
			st.EmptyBuckets++
		}
		if l > st.MaxBucketChain {
			st.MaxBucketChain = l
		}
	}
	return st
}

// AnalyseHash reports the chain length for every bucket, letting a
// caller judge whether the installed hash function is distributing keys
// evenly.
func (mc *MapCore) AnalyseHash() []uint64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	lens := make([]uint64, mc.bucketCount)
	for i := range lens {
		lens[i] = mc.bucketLen(uint64(i))
	}
	return lens
}

// Close releases the underlying file mapping, if any.
func (mc *MapCore) Close() error {
	if mc.file == nil {
		return nil
	}
	return mc.file.Close()
}
