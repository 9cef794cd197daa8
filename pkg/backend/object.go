// pkg/backend/object.go

package backend

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ObjectStorage is the target a dump or backup snapshot is shipped to.
// It is intentionally narrow — dump/backup only ever need to put a
// whole snapshot or fetch it back, never partial object access — so
// implementations stay simple to wrap (bwlimit, encryption) and simple
// to swap (local disk, SFTP, S3-compatible).
type ObjectStorage interface {
	String() string
	Get(key string, off, limit int64) (io.ReadCloser, error)
	Put(key string, in io.Reader) error
}

// DiskStore stores snapshots as plain files under a root directory, the
// default target for single-host deployments.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore { return &DiskStore{root: root} }

func (d *DiskStore) String() string { return "disk://" + d.root }

func (d *DiskStore) path(key string) string { return filepath.Join(d.root, key) }

func (d *DiskStore) Get(key string, off, limit int64) (io.ReadCloser, error) {
	f, err := os.Open(d.path(key))
	if err != nil {
		return nil, errors.Wrap(err, "backend: open snapshot")
	}
	if off > 0 {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	if limit < 0 {
		return f, nil
	}
	return &limitedReadCloser{io.LimitReader(f, limit), f}, nil
}

type limitedReadCloser struct {
	io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Close() error { return l.c.Close() }

func (d *DiskStore) Put(key string, in io.Reader) error {
	if err := os.MkdirAll(d.root, 0755); err != nil {
		return errors.Wrap(err, "backend: mkdir snapshot root")
	}
	tmp := d.path(key) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "backend: create snapshot")
	}
	if _, err := io.Copy(f, in); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "backend: write snapshot")
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, d.path(key))
}

var _ ObjectStorage = (*DiskStore)(nil)
