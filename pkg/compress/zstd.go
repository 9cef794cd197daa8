// pkg/compress/zstd.go

package compress

import "github.com/DataDog/zstd"

// Zstd wraps DataDog/zstd's default compression level, a good default
// for cache values that are read far more often than written.
type Zstd struct{}

func (Zstd) Name() string { return "zstd" }

func (Zstd) Compress(src []byte) ([]byte, error) {
	return zstd.Compress(nil, src)
}

func (Zstd) Decompress(src []byte) ([]byte, error) {
	return zstd.Decompress(nil, src)
}
