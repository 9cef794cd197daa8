// pkg/store/chunkpool.go

package store

// ChunkPool manages one size class: a fixed-count array of fixed-size
// chunks, with a stack-style free list threaded through the chunks
// themselves (each free chunk stores the offset of the next free chunk
// in its first 8 bytes).
//
// Free-list pointer writes are deliberately NOT routed through the
// Journal: crash recovery of allocator metadata is handled by
// MultiChunkAllocator.Rebuild (called from Load), not by journal
// replay. The header's used-chunk counter is not kept here: MapCore
// commits it through the Journal, one slot per allocation or free.
type ChunkPool struct {
	r         *Region
	chunkSize uint64 // bytes per chunk, header included
	count     uint64 // number of chunks in this class
	base      uint64 // region offset of chunk 0
	freeHead  uint64 // region offset within descriptor words, see below
	descOff   uint64 // offset of this pool's freeHead word in the region
}

func newChunkPool(r *Region, descOff, base, chunkSize, count uint64) *ChunkPool {
	return &ChunkPool{r: r, chunkSize: chunkSize, count: count, base: base, descOff: descOff}
}

// ChunkSize returns the fixed chunk size of this size class.
func (p *ChunkPool) ChunkSize() uint64 { return p.chunkSize }

// Capacity returns the number of chunks in this size class.
func (p *ChunkPool) Capacity() uint64 { return p.count }

func (p *ChunkPool) readFreeHead() uint64 {
	return getWord(p.r.buf, p.descOff, Width8)
}

func (p *ChunkPool) writeFreeHead(off uint64) {
	putWord(p.r.buf, p.descOff, Width8, off)
}

// formatFree initializes every chunk in this class into one descending
// free list, called only by MultiChunkAllocator.formatFree and
// FormatLastGeneration on pools that hold no live data.
func (p *ChunkPool) formatFree() {
	var prev uint64 = nilOffset
	for i := uint64(0); i < p.count; i++ {
		off := p.base + i*p.chunkSize
		putWord(p.r.buf, off, Width8, prev)
		prev = off
	}
	p.writeFreeHead(prev)
}

// clearFree empties this class's free list (no chunk is free afterwards)
// without touching any chunk's contents.
func (p *ChunkPool) clearFree() {
	p.writeFreeHead(nilOffset)
}

// pop removes and returns a chunk offset from the free list, or fails
// with ErrOutOfChunks.
func (p *ChunkPool) pop() (uint64, error) {
	head := p.readFreeHead()
	if head == nilOffset {
		return 0, ErrOutOfChunks
	}
	next := getWord(p.r.buf, head, Width8)
	p.writeFreeHead(next)
	return head, nil
}

// push returns a chunk to the free list.
func (p *ChunkPool) push(off uint64) {
	head := p.readFreeHead()
	putWord(p.r.buf, off, Width8, head)
	p.writeFreeHead(off)
}

// rebuildFreeList replaces the free list with every chunk of this class
// that is not in live; used only by Rebuild, which walks live chains first
// and then must exclude every chunk it saw from the rebuilt free list.
// It rebuilds the list from the "live" set rather than unlinking
// mid-list, see MultiChunkAllocator.Rebuild.
func (p *ChunkPool) rebuildFreeList(live map[uint64]bool) {
	var head uint64 = nilOffset
	for i := int64(p.count) - 1; i >= 0; i-- {
		off := p.base + uint64(i)*p.chunkSize
		if live[off] {
			continue
		}
		putWord(p.r.buf, off, Width8, head)
		head = off
	}
	p.writeFreeHead(head)
}
