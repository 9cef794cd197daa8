// pkg/compress/lz4.go

package compress

import lz4 "github.com/hungys/go-lz4"

// LZ4 trades ratio for speed relative to Zstd, useful when a workload's
// hot path can't absorb zstd's extra CPU per Get.
type LZ4 struct{}

func (LZ4) Name() string { return "lz4" }

func (LZ4) Compress(src []byte) ([]byte, error) {
	return lz4.Encode(nil, src)
}

func (LZ4) Decompress(src []byte) ([]byte, error) {
	return lz4.Decode(nil, src)
}
