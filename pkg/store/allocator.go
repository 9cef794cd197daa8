// pkg/store/allocator.go

package store

import "github.com/pkg/errors"

// EvictionHook lets the allocator ask MapCore to free exactly one entry
// (by the configured eviction policy) when every pool it tries is out
// of chunks. It must not itself call back into the allocator except to
// deallocate — recursive allocation from inside an eviction hook is
// forbidden.
type EvictionHook func() (evicted *BlockData, ok bool, err error)

// MultiChunkAllocator holds a geometric series of ChunkPools
// (min_size, min_size*f, ..., max_size) and satisfies allocation
// requests from the smallest class that fits, chaining chunks together
// for payloads larger than the biggest class.
//
// pools may contain more than one ChunkPool per size class: Append adds
// a further generation of pools, one per class, over newly grown region
// bytes, without disturbing any existing pool's base offset or count
// (see MapCore.Append). classFor/largestFitting reason about sizes
// only; popSizeWithEviction tries every pool of a matching size, oldest
// generation first, before falling back to eviction.
type MultiChunkAllocator struct {
	r       *Region
	sizes   []uint64 // the geometric class-size series, shared by every generation
	pools   []*ChunkPool
	onEvict EvictionHook
}

// classSizes computes the geometric series of total chunk sizes for the
// given min/max/factor, clamping the final class to maxSize exactly so
// oversized values still terminate the series predictably.
func classSizes(minSize, maxSize uint64, factor float64) []uint64 {
	if factor <= 1.0 {
		return []uint64{minSize}
	}
	var sizes []uint64
	sz := float64(minSize)
	for uint64(sz) < maxSize {
		sizes = append(sizes, uint64(sz))
		sz *= factor
	}
	sizes = append(sizes, maxSize)
	return sizes
}

// planAllocator computes the per-class chunk count n (shared across all
// classes) that best fills the bytes available for the allocator's
// section of the region, and returns the region layout for it.
func planAllocator(available uint64, minSize, maxSize uint64, factor float64) (sizes []uint64, count uint64) {
	sizes = classSizes(minSize, maxSize, factor)
	descBytes := uint64(len(sizes)) * 8
	if available <= descBytes {
		return sizes, 0
	}
	var sumSizes uint64
	for _, s := range sizes {
		sumSizes += s
	}
	if sumSizes == 0 {
		return sizes, 0
	}
	count = (available - descBytes) / sumSizes
	return sizes, count
}

func newAllocator(r *Region, base uint64, sizes []uint64, count uint64) *MultiChunkAllocator {
	a := &MultiChunkAllocator{r: r, sizes: sizes}
	if count > 0 {
		a.addGeneration(base, count)
	}
	return a
}

// addGeneration lays out one more ChunkPool per size class starting at
// base, each holding count chunks, and appends them to pools. Used both
// by newAllocator (generation 0) and by MapCore.Append (later
// generations over freshly grown region bytes).
func (a *MultiChunkAllocator) addGeneration(base, count uint64) {
	descBase := base
	chunkBase := base + uint64(len(a.sizes))*8
	for i, sz := range a.sizes {
		pool := newChunkPool(a.r, descBase+uint64(i)*8, chunkBase, sz, count)
		a.pools = append(a.pools, pool)
		chunkBase += sz * count
	}
}

// formatFree initializes every pool's free list; only valid on pools
// that have never held live data (a fresh region at Create, or a new
// generation just added by Append).
func (a *MultiChunkAllocator) formatFree() {
	for _, p := range a.pools {
		p.formatFree()
	}
}

// FormatLastGeneration formats only the most recently added generation
// (the last len(sizes) pools), for MapCore.Append: the rest of the
// pools already hold live data and must not be reformatted.
func (a *MultiChunkAllocator) FormatLastGeneration() {
	for _, p := range a.pools[len(a.pools)-len(a.sizes):] {
		p.formatFree()
	}
}

// SetEvictionHook installs the callback used when every candidate pool
// is exhausted and auto-evict is enabled.
func (a *MultiChunkAllocator) SetEvictionHook(h EvictionHook) { a.onEvict = h }

// Pools exposes every pool across every generation, for stats/CLI use.
func (a *MultiChunkAllocator) Pools() []*ChunkPool { return a.pools }

// poolsOfSize returns every pool (across every generation) whose chunk
// size equals size, oldest generation first.
func (a *MultiChunkAllocator) poolsOfSize(size uint64) []*ChunkPool {
	var out []*ChunkPool
	for _, p := range a.pools {
		if p.chunkSize == size {
			out = append(out, p)
		}
	}
	return out
}

// classFor returns the smallest class size >= need, or ok=false if none
// is big enough.
func (a *MultiChunkAllocator) classFor(need uint64) (size uint64, ok bool) {
	for _, s := range a.sizes {
		if s >= need {
			return s, true
		}
	}
	return 0, false
}

// largestFitting returns the largest class size <= budget, or ok=false
// if even the smallest class exceeds it.
func (a *MultiChunkAllocator) largestFitting(budget uint64) (size uint64, ok bool) {
	for _, s := range a.sizes {
		if s <= budget {
			size, ok = s, true
		}
	}
	return size, ok
}

// popSizeWithEviction pops a free chunk of the given class size,
// trying every generation's pool for that size before evicting.
func (a *MultiChunkAllocator) popSizeWithEviction(size uint64, autoErase bool) (uint64, []*BlockData, error) {
	var evicted []*BlockData
	pools := a.poolsOfSize(size)
	for {
		for _, p := range pools {
			if off, err := p.pop(); err == nil {
				putWord(a.r.buf, off+cCapacity, Width8, size)
				return off, evicted, nil
			}
		}
		if !autoErase || a.onEvict == nil {
			return 0, evicted, ErrNoMemory
		}
		victim, ok, herr := a.onEvict()
		if herr != nil {
			return 0, evicted, herr
		}
		if !ok {
			return 0, evicted, ErrNoMemory
		}
		evicted = append(evicted, victim)
	}
}

// Allocate carves out a chunk chain able to hold a payload of logical
// length payloadLen, whose head chunk additionally reserves headOverhead
// bytes for the Block header. It returns the head chunk offset, the
// full chain in order, and any entries evicted along the way.
func (a *MultiChunkAllocator) Allocate(payloadLen, headOverhead uint64, autoErase bool) (head uint64, chain []uint64, evicted []*BlockData, err error) {
	need := payloadLen + headOverhead
	if size, ok := a.classFor(need); ok {
		off, ev, perr := a.popSizeWithEviction(size, autoErase)
		if perr != nil {
			return 0, nil, ev, perr
		}
		return off, []uint64{off}, ev, nil
	}

	// Oversized: head chunk from the largest class, then continuation
	// chunks chosen greedily (largest that still fits the remaining
	// tail bytes), each reserving only chunkHeaderSize.
	topSize := a.sizes[len(a.sizes)-1]
	headOff, ev, perr := a.popSizeWithEviction(topSize, autoErase)
	if perr != nil {
		return 0, nil, ev, perr
	}
	chain = append(chain, headOff)
	remaining := need - topSize

	for remaining > 0 {
		budget := remaining + chunkHeaderSize
		size, ok := a.largestFitting(budget)
		if !ok {
			size = a.sizes[0] // even the smallest class must be tried; it will just chain further
		}
		off, ev2, perr := a.popSizeWithEviction(size, autoErase)
		if perr != nil {
			a.Deallocate(chain)
			evicted = append(evicted, ev2...)
			return 0, nil, evicted, perr
		}
		evicted = append(evicted, ev2...)
		chain = append(chain, off)
		cap := size - chunkHeaderSize
		if cap >= remaining {
			remaining = 0
		} else {
			remaining -= cap
		}
	}
	evicted = append(ev, evicted...)
	return headOff, chain, evicted, nil
}

// Deallocate pushes every chunk in chain back onto its size class's
// free list. The chunk size is read straight off the chunk header
// (cCapacity), which every chunk carries regardless of head/continuation
// role.
func (a *MultiChunkAllocator) Deallocate(chain []uint64) {
	for _, off := range chain {
		sz := getWord(a.r.buf, off+cCapacity, Width8)
		for _, p := range a.pools {
			if p.chunkSize == sz {
				p.push(off)
				break
			}
		}
	}
}

// Rebuild re-derives every pool's free list from scratch by walking
// every live chunk reachable from the header, the bucket table, and
// every block chain (via walk), marking each chunk it visits, then
// rebuilding each pool's free list from what's left over. Required
// after Load, since chunk-pool free-list pointers are not journaled
// (see ChunkPool doc comment).
func (a *MultiChunkAllocator) Rebuild(walk func(visit func(chunkOffset uint64))) error {
	live := make(map[uint64]bool)
	walk(func(off uint64) { live[off] = true })
	for _, p := range a.pools {
		p.rebuildFreeList(live)
	}
	return nil
}

// TotalChunks returns the number of chunks across every pool of every
// generation, free or used, from descriptor bookkeeping (no scan).
func (a *MultiChunkAllocator) TotalChunks() uint64 {
	var total uint64
	for _, p := range a.pools {
		total += p.count
	}
	return total
}

func (a *MultiChunkAllocator) validate() error {
	if len(a.pools) == 0 {
		return errors.New("allocator: no size classes")
	}
	return nil
}
