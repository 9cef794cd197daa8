// pkg/store/journal.go

package store

import "github.com/pkg/errors"

// slot is one pending word-sized write: the target offset, its width in
// bytes, and the value to write.
type slot struct {
	offset uint64
	width  uint8
	value  uint64
}

// Journal is the fixed-slot redo log embedded at journalStatusOff. It
// makes a batch of up to journalSlots word writes atomic with respect
// to a crash and to a concurrent reader that reruns Replay before every
// access.
type Journal struct {
	r *Region
}

func newJournal(r *Region) *Journal { return &Journal{r: r} }

func (j *Journal) status() uint64 {
	return getWord(j.r.buf, journalStatusOff, Width8)
}

func (j *Journal) setStatus(s uint64) {
	putWord(j.r.buf, journalStatusOff, Width8, s)
}

func (j *Journal) cursor() uint64 {
	return getWord(j.r.buf, journalCursorOff, Width8)
}

func (j *Journal) slotOffset(i uint64) uint64 {
	return journalSlotsOff + i*journalSlotSize
}

func (j *Journal) readSlot(i uint64) slot {
	base := j.slotOffset(i)
	return slot{
		offset: getWord(j.r.buf, base, Width8),
		width:  uint8(getWord(j.r.buf, base+8, Width8)),
		value:  getWord(j.r.buf, base+16, Width8),
	}
}

func (j *Journal) writeSlot(i uint64, s slot) {
	base := j.slotOffset(i)
	putWord(j.r.buf, base, Width8, s.offset)
	putWord(j.r.buf, base+8, Width8, uint64(s.width))
	putWord(j.r.buf, base+16, Width8, s.value)
}

// reset clears the journal to idle with a zero cursor; used only at
// Create() time, before the region is shared with any reader.
func (j *Journal) reset() {
	j.setStatus(journalIdle)
	putWord(j.r.buf, journalCursorOff, Width8, 0)
}

// Commit atomically applies the given writes to the region: it stages
// them into the slot array, flips status to prepared, applies each
// write in order, then flips status through applied back to idle. A
// crash at any point leaves either the pre-image (status<=idle observed
// before any target write happened) or, after Replay, the exact
// post-image — never a partial block.
//
// A single logical mutation that needs more than journalSlots writes
// must be split into multiple Commit calls (epochs); invariants must
// hold at each epoch boundary, which every BlockEngine/MapCore mutation
// in this package is written to guarantee.
func (j *Journal) Commit(writes []slot) error {
	if len(writes) == 0 {
		return nil
	}
	if len(writes) > journalSlots {
		return errors.Errorf("journal: %d writes exceeds %d slots", len(writes), journalSlots)
	}
	for i, w := range writes {
		j.writeSlot(uint64(i), w)
	}
	putWord(j.r.buf, journalCursorOff, Width8, uint64(len(writes)))
	j.setStatus(journalPrepared)

	j.apply(uint64(len(writes)))

	j.setStatus(journalApplied)
	j.setStatus(journalIdle)
	return nil
}

// apply performs the target writes for slots [0, n) in order. It is
// idempotent: replaying an already-applied slot set writes the same
// bytes again, which is required for Replay after an applied-but-not-
// yet-idle crash.
func (j *Journal) apply(n uint64) {
	for i := uint64(0); i < n; i++ {
		s := j.readSlot(i)
		putWord(j.r.buf, s.offset, s.width, s.value)
	}
}

// Replay brings the journal (and the region it protects) to a stable
// idle state. Call it on every attach point (Connect, and defensively
// before any operation that a peer process might have interrupted).
//
//   - status == prepared: the crash happened mid-commit or mid-apply.
//     Re-applying every slot is safe because apply is idempotent, so we
//     just finish the commit.
//   - status == applied: all target writes landed, only the final status
//     flip to idle was lost. Finish that flip.
//   - status == idle: nothing to do.
func (j *Journal) Replay() {
	switch j.status() {
	case journalPrepared:
		j.apply(j.cursor())
		j.setStatus(journalApplied)
		j.setStatus(journalIdle)
	case journalApplied:
		j.setStatus(journalIdle)
	}
}

// IsIdle reports whether the journal is at a stable, externally visible
// state.
func (j *Journal) IsIdle() bool {
	return j.status() == journalIdle
}
