package backend_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"MemKV/pkg/backend"
)

func Test_DiskStore_Put_Then_Get_Round_Trips_Content(t *testing.T) {
	d := backend.NewDiskStore(t.TempDir())

	require.NoError(t, d.Put("snapshot-1", bytes.NewReader([]byte("payload"))))

	rc, err := d.Get("snapshot-1", 0, -1)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}

func Test_DiskStore_Get_Respects_Offset_And_Limit(t *testing.T) {
	d := backend.NewDiskStore(t.TempDir())
	require.NoError(t, d.Put("k", bytes.NewReader([]byte("0123456789"))))

	rc, err := d.Get("k", 2, 3)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "234", string(got))
}

func Test_DiskStore_Get_Of_Missing_Key_Errors(t *testing.T) {
	d := backend.NewDiskStore(t.TempDir())
	_, err := d.Get("nope", 0, -1)
	require.Error(t, err)
}

func Test_DiskStore_Put_Is_Atomic_Never_Leaves_A_Partial_File_On_The_Final_Path(t *testing.T) {
	d := backend.NewDiskStore(t.TempDir())

	require.NoError(t, d.Put("k", bytes.NewReader([]byte("first"))))
	require.NoError(t, d.Put("k", bytes.NewReader([]byte("second"))))

	rc, err := d.Get("k", 0, -1)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "second", string(got))
}
