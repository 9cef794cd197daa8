// pkg/compress/codec.go

package compress

// Codec compresses and decompresses values before they cross the
// journal boundary into a chunk chain, trading CPU for chunk-pool
// occupancy on large values. Payload packing says nothing about the
// byte content itself, so compression is applied above the pack/unpack
// layer, transparently to MapCore.
type Codec interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// None is the identity codec, the default when no compression is configured.
type None struct{}

func (None) Name() string                          { return "none" }
func (None) Compress(src []byte) ([]byte, error)   { return src, nil }
func (None) Decompress(src []byte) ([]byte, error) { return src, nil }

// ByName resolves a codec by its registered name ("zstd", "lz4"); any
// other name yields None.
func ByName(name string) Codec {
	switch name {
	case "zstd":
		return Zstd{}
	case "lz4":
		return LZ4{}
	default:
		return None{}
	}
}
