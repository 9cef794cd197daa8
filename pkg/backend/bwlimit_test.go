package backend_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"MemKV/pkg/backend"
)

func Test_Limited_ObjectStorage_Round_Trips_Content(t *testing.T) {
	disk := backend.NewDiskStore(t.TempDir())
	limited := backend.NewLimited(disk, 0, 0) // no throttling, exercise passthrough only

	require.NoError(t, limited.Put("k", bytes.NewReader([]byte("data"))))

	rc, err := limited.Get("k", 0, -1)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "data", string(got))
}

func Test_Limited_ObjectStorage_String_Reflects_Wrapping(t *testing.T) {
	disk := backend.NewDiskStore("/tmp/x")
	limited := backend.NewLimited(disk, 100, 100)
	require.Contains(t, limited.String(), "bwlimit")
}
