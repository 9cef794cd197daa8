// pkg/backend/bwlimit.go

package backend

import (
	"fmt"
	"io"

	"github.com/juju/ratelimit"
)

// limitedReader ground: AveFS pkg/object/bwlimit.go's limitedReader —
// same token-bucket-gated Read, adapted to drop Seek support the
// snapshot path never needs.
type limitedReader struct {
	io.Reader
	bucket *ratelimit.Bucket
}

func (l *limitedReader) Read(buf []byte) (int, error) {
	n, err := l.Reader.Read(buf)
	if l.bucket != nil && n > 0 {
		l.bucket.Wait(int64(n))
	}
	return n, err
}

func (l *limitedReader) Close() error {
	if c, ok := l.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type bwLimited struct {
	ObjectStorage
	up, down *ratelimit.Bucket
}

// NewLimited wraps o so Put/Get never exceed up/down bytes/sec, letting
// a large backup run without starving the map's own I/O — backup is
// meant to run alongside live traffic, not in place of it.
func NewLimited(o ObjectStorage, up, down int64) ObjectStorage {
	bw := &bwLimited{ObjectStorage: o}
	if up > 0 {
		bw.up = ratelimit.NewBucketWithRate(float64(up)*0.85, up)
	}
	if down > 0 {
		bw.down = ratelimit.NewBucketWithRate(float64(down)*0.85, down)
	}
	return bw
}

func (b *bwLimited) String() string { return fmt.Sprintf("%s(bwlimit)", b.ObjectStorage) }

func (b *bwLimited) Get(key string, off, limit int64) (io.ReadCloser, error) {
	r, err := b.ObjectStorage.Get(key, off, limit)
	if err != nil {
		return nil, err
	}
	return &limitedReader{r, b.down}, nil
}

func (b *bwLimited) Put(key string, in io.Reader) error {
	return b.ObjectStorage.Put(key, &limitedReader{in, b.up})
}

var _ ObjectStorage = (*bwLimited)(nil)
