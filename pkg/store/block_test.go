package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Set_Then_Get_Round_Trips_An_Empty_Value(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	_, _, err := mc.Set([]byte("k"), []byte{}, true)
	require.NoError(t, err)

	bd, _, err := mc.Get([]byte("k"), true)
	require.NoError(t, err)
	require.Empty(t, bd.Value)
	require.False(t, bd.OnlyKey)
}

func Test_Set_Then_Get_Round_Trips_A_Value_Spanning_Multiple_Chunks(t *testing.T) {
	mc := newTestMap(t, 4<<20)

	big := bytes.Repeat([]byte("x"), 5000) // several times over MaxChunkSize (1024)
	_, _, err := mc.Set([]byte("big"), big, true)
	require.NoError(t, err)

	bd, _, err := mc.Get([]byte("big"), true)
	require.NoError(t, err)
	require.Equal(t, big, bd.Value)
}

func Test_Set_Then_Get_Round_Trips_A_Long_Key(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	key := bytes.Repeat([]byte("k"), 300)
	_, _, err := mc.Set(key, []byte("v"), true)
	require.NoError(t, err)

	bd, _, err := mc.Get(key, true)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), bd.Value)
	require.Equal(t, key, bd.Key)
}
