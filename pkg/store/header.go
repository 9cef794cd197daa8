// pkg/store/header.go

package store

import "time"

// Header is a thin accessor over the fixed-offset header word block.
// Reads go straight to the region; writes always go through the
// Journal so that no header field can tear.
type Header struct {
	r *Region
	j *Journal
}

func newHeader(r *Region, j *Journal) *Header { return &Header{r: r, j: j} }

func (h *Header) get(off uint64) uint64 { return getWord(h.r.buf, off, Width8) }

func (h *Header) set(off uint64, v uint64) error {
	return h.j.Commit([]slot{{offset: off, width: Width8, value: v}})
}

func (h *Header) VerMajor() uint64    { return h.get(hVerMajor) }
func (h *Header) VerMinor() uint64    { return h.get(hVerMinor) }
func (h *Header) ReadOnly() bool      { return h.get(hReadOnly) != 0 }
func (h *Header) AutoEvict() bool     { return h.get(hAutoEvict) != 0 }
func (h *Header) ErasePolicy() uint64 { return h.get(hErasePolicy) }
func (h *Header) RegionSize() uint64  { return h.get(hRegionSize) }
func (h *Header) MinChunk() uint64    { return h.get(hMinChunk) }
func (h *Header) MaxChunk() uint64    { return h.get(hMaxChunk) }
func (h *Header) ElementCount() uint64 { return h.get(hElementCount) }
func (h *Header) DirtyCount() uint64  { return h.get(hDirtyCount) }
func (h *Header) OnlyKeyCount() uint64 { return h.get(hOnlyKeyCount) }
func (h *Header) SetHead() uint64     { return h.get(hSetHead) }
func (h *Header) SetTail() uint64     { return h.get(hSetTail) }
func (h *Header) GetHead() uint64     { return h.get(hGetHead) }
func (h *Header) GetTail() uint64     { return h.get(hGetTail) }
func (h *Header) DirtyHead() uint64   { return h.get(hDirtyHead) }
func (h *Header) DirtyTail() uint64   { return h.get(hDirtyTail) }
func (h *Header) BackupCursor() uint64 { return h.get(hBackupCursor) }
func (h *Header) SyncCursor() uint64  { return h.get(hSyncCursor) }
func (h *Header) WritebackAge() time.Duration {
	return time.Duration(h.get(hWritebackAge)) * time.Second
}
func (h *Header) UsedChunk() uint64  { return h.get(hUsedChunk) }
func (h *Header) GetCount() uint64   { return h.get(hGetCount) }
func (h *Header) HitCount() uint64   { return h.get(hHitCount) }
func (h *Header) EraseBatch() uint64 { return h.get(hEraseBatch) }
func (h *Header) BucketCount() uint64 { return h.get(hBucketCount) }
// AppendBytes is how many of the region's tail bytes belong to the
// generation of allocator pools laid down by the last Append call (0 if
// Append has never been called on this region).
func (h *Header) AppendBytes() uint64 { return h.get(hAppendBytes) }
func (h *Header) InstanceID() [16]byte {
	var id [16]byte
	byteOrder.PutUint64(id[:8], h.get(hInstanceIDHi))
	byteOrder.PutUint64(id[8:], h.get(hInstanceIDLo))
	return id
}

func (h *Header) SetReadOnly(v bool) error  { return h.set(hReadOnly, boolWord(v)) }
func (h *Header) SetAutoEvict(v bool) error { return h.set(hAutoEvict, boolWord(v)) }
func (h *Header) SetErasePolicy(v uint64) error { return h.set(hErasePolicy, v) }
func (h *Header) SetWritebackAge(d time.Duration) error {
	return h.set(hWritebackAge, uint64(d/time.Second))
}
func (h *Header) SetEraseBatch(n uint64) error { return h.set(hEraseBatch, n) }

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// The counters below are mutated far more often than the configuration
// fields above, so they get dedicated helpers that a caller can batch
// alongside other slots in a single Commit rather than paying a
// separate journal epoch per counter — these must stay exactly in sync
// with the chains they describe.

func incSlot(off uint64, cur uint64) slot         { return slot{offset: off, width: Width8, value: cur + 1} }
func decSlot(off uint64, cur uint64) slot         { return slot{offset: off, width: Width8, value: cur - 1} }
func setSlot(off uint64, v uint64) slot           { return slot{offset: off, width: Width8, value: v} }
func addSlot(off uint64, cur, n uint64) slot      { return slot{offset: off, width: Width8, value: cur + n} }
func subSlot(off uint64, cur, n uint64) slot      { return slot{offset: off, width: Width8, value: cur - n} }
