package store

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Dump_Then_LoadInto_Round_Trips_Every_Entry(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		_, _, err := mc.Set([]byte(k), []byte(v), true)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, mc.Dump(&buf))

	loadPath := filepath.Join(t.TempDir(), "loaded.mkv")
	loaded, err := LoadInto(loadPath, &buf, nil)
	require.NoError(t, err)
	defer loaded.Close()

	for k, v := range want {
		bd, _, err := loaded.Get([]byte(k), true)
		require.NoError(t, err)
		require.NotNil(t, bd, "key %q missing after load", k)
		require.Equal(t, v, string(bd.Value))
	}
}

func Test_LoadInto_Rejects_A_Bad_Magic(t *testing.T) {
	loadPath := filepath.Join(t.TempDir(), "loaded.mkv")
	_, err := LoadInto(loadPath, bytes.NewReader(make([]byte, 24)), nil)
	require.Error(t, err)
}

func Test_LoadInto_Rebuilds_Allocator_Free_Lists_So_Further_Sets_Succeed(t *testing.T) {
	mc := newTestMap(t, 1<<20)
	_, _, err := mc.Set([]byte("k"), []byte("v"), true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, mc.Dump(&buf))

	loadPath := filepath.Join(t.TempDir(), "loaded.mkv")
	loaded, err := LoadInto(loadPath, &buf, nil)
	require.NoError(t, err)
	defer loaded.Close()

	_, _, err = loaded.Set([]byte("k2"), []byte("v2"), true)
	require.NoError(t, err)
}
