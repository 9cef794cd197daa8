package compress_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"MemKV/pkg/compress"
)

func Test_ByName_Resolves_Known_Codecs_And_Falls_Back_To_None(t *testing.T) {
	require.Equal(t, "zstd", compress.ByName("zstd").Name())
	require.Equal(t, "lz4", compress.ByName("lz4").Name())
	require.Equal(t, "none", compress.ByName("").Name())
	require.Equal(t, "none", compress.ByName("bogus").Name())
}

func Test_None_Codec_Round_Trips_Bytes_Unchanged(t *testing.T) {
	src := []byte("hello, world")
	c := compress.None{}

	compressed, err := c.Compress(src)
	require.NoError(t, err)
	require.Equal(t, src, compressed)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, src, decompressed)
}

func Test_Zstd_Round_Trips_Data(t *testing.T) {
	src := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")
	c := compress.Zstd{}

	compressed, err := c.Compress(src)
	require.NoError(t, err)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, src, decompressed)
}

func Test_LZ4_Round_Trips_Data(t *testing.T) {
	src := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")
	c := compress.LZ4{}

	compressed, err := c.Compress(src)
	require.NoError(t, err)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, src, decompressed)
}
