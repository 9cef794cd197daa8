//go:build linux || darwin

// pkg/store/region_unix.go

package store

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// FileRegion is a Region backed by a memory-mapped file, the typical
// carrier for the region: a memory-mapped file or a shared-memory
// segment that outlives the process.
type FileRegion struct {
	*Region
	f    *os.File
	mmap []byte
}

// CreateFileRegion creates (or truncates) a file of exactly size bytes
// and maps it read-write.
func CreateFileRegion(path string, size uint64) (*FileRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "create region file")
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "truncate region file")
	}
	return mapRegionFile(f, size)
}

// OpenFileRegion maps an existing region file read-write.
func OpenFileRegion(path string) (*FileRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open region file")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat region file")
	}
	return mapRegionFile(f, uint64(fi.Size()))
}

func mapRegionFile(f *os.File, size uint64) (*FileRegion, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "mmap region file")
	}
	return &FileRegion{Region: NewRegion(data), f: f, mmap: data}, nil
}

// Sync flushes dirty pages to disk, analogous to msync(MS_SYNC).
func (fr *FileRegion) Sync() error {
	return unix.Msync(fr.mmap, unix.MS_SYNC)
}

// AppendFile grows the backing file by extra bytes and remaps it,
// implementing region growth over a memory-mapped file.
func (fr *FileRegion) AppendFile(extra uint64) error {
	fi, err := fr.f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat region file")
	}
	newSize := fi.Size() + int64(extra)
	if err := unix.Munmap(fr.mmap); err != nil {
		return errors.Wrap(err, "unmap region file")
	}
	if err := fr.f.Truncate(newSize); err != nil {
		return errors.Wrap(err, "grow region file")
	}
	data, err := unix.Mmap(int(fr.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrap(err, "remap region file")
	}
	fr.mmap = data
	fr.Rebind(data)
	return nil
}

// Close unmaps and closes the backing file.
func (fr *FileRegion) Close() error {
	if err := unix.Munmap(fr.mmap); err != nil {
		return errors.Wrap(err, "munmap region file")
	}
	return fr.f.Close()
}
