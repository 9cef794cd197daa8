// pkg/store/region.go

package store

import "github.com/pkg/errors"

// Region owns the raw byte buffer backing a map instance and translates
// between absolute pointers (Go slice indices) and region-relative
// offsets. It carries no other semantics: everything else in this
// package treats a Region purely as addressable bytes.
type Region struct {
	buf []byte
}

// NewRegion wraps an existing byte slice (already allocated, mmap'd, or
// otherwise owned by the caller) as a Region.
func NewRegion(buf []byte) *Region {
	return &Region{buf: buf}
}

// Size returns the total number of addressable bytes.
func (r *Region) Size() uint64 { return uint64(len(r.buf)) }

// Bytes exposes the raw buffer, for dump/load byte-for-byte I/O.
func (r *Region) Bytes() []byte { return r.buf }

// Absolute returns the byte slice for a region-relative offset.
func (r *Region) Absolute(off uint64) []byte {
	return r.buf[off:]
}

// Slice returns the byte range [off, off+n) as a slice into the region.
func (r *Region) Slice(off, n uint64) []byte {
	return r.buf[off : off+n]
}

// Grow appends extra bytes to the in-memory buffer (Append grows a
// file-backed region through FileRegion.AppendFile instead). It never
// shrinks: shrinking a live region is not supported.
func (r *Region) Grow(extra []byte) error {
	if len(extra) == 0 {
		return errors.New("region: empty growth")
	}
	r.buf = append(r.buf, extra...)
	return nil
}

// Rebind replaces the backing buffer wholesale, used when the caller
// remaps a larger file over the same Region (mmap re-open after Append).
func (r *Region) Rebind(buf []byte) {
	r.buf = buf
}
